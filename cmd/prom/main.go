// Command prom runs criteria queries against SQLite tables described by a
// YAML or CUE schema file.
package main

import (
	"os"

	"github.com/viggyfresh/prom/internal/cli"
)

func main() {
	os.Exit(cli.Main(os.Args[1:], os.Stdout, os.Stderr))
}
