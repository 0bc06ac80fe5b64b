package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/viggyfresh/prom/internal/backend/sqlite"
	"github.com/viggyfresh/prom/internal/query"
	"github.com/viggyfresh/prom/internal/schema"
)

// TableInfo describes one table of a schema file.
type TableInfo struct {
	Table   string         `json:"table"`
	PK      string         `json:"pk"`
	Fields  []schema.Field `json:"fields"`
	Indexes []schema.Index `json:"indexes,omitempty"`

	// Created and Added are set by --apply.
	Created bool     `json:"created,omitempty"`
	Added   []string `json:"added,omitempty"`
}

// SchemaResult is the payload of the schema command.
type SchemaResult struct {
	File   string      `json:"file"`
	Tables []TableInfo `json:"tables"`
}

func (r SchemaResult) String() string {
	var b strings.Builder
	for i, t := range r.Tables {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s (pk %s)", t.Table, t.PK)
		switch {
		case t.Created:
			b.WriteString(" [created]")
		case len(t.Added) > 0:
			fmt.Fprintf(&b, " [added %s]", strings.Join(t.Added, ", "))
		}
		b.WriteString("\n")
		for _, f := range t.Fields {
			fmt.Fprintf(&b, "  %-20s %s", f.Name, f.Type)
			if f.Required {
				b.WriteString(" required")
			}
			if len(f.Aliases) > 0 {
				fmt.Fprintf(&b, " aliases=%s", strings.Join(f.Aliases, ","))
			}
			b.WriteString("\n")
		}
		for _, idx := range t.Indexes {
			kind := "index"
			if idx.Unique {
				kind = "unique index"
			}
			fmt.Fprintf(&b, "  %s %s (%s)\n", kind, idx.Name, strings.Join(idx.Fields, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show or apply table definitions",
		Long: `Show the tables defined in the schema file. With --apply, create missing
tables and add missing nullable columns in the database.

Examples:
  prom schema --schema pets.yaml
  prom schema --schema shop.cue --apply --db shop.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(cmd, rootOpts, apply)
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "create missing tables and columns")
	return cmd
}

func runSchema(cmd *cobra.Command, opts *RootOptions, apply bool) error {
	cfg := opts.Config
	if cfg.Schema.File == "" {
		return NewExitError(ExitCommandError, "no schema file: pass --schema or set schema.file")
	}
	set, err := schema.LoadFile(cfg.Schema.File)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load schema", err)
	}

	tables := set.Tables()
	if cfg.Schema.Table != "" {
		if _, ok := set.Get(cfg.Schema.Table); !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("table %q not defined in %s", cfg.Schema.Table, cfg.Schema.File))
		}
		tables = []string{cfg.Schema.Table}
	}

	result := SchemaResult{File: cfg.Schema.File, Tables: make([]TableInfo, 0, len(tables))}
	for _, name := range tables {
		s, _ := set.Get(name)
		result.Tables = append(result.Tables, TableInfo{
			Table:   s.Table,
			PK:      s.PrimaryKeyName(),
			Fields:  s.Fields(),
			Indexes: s.Indexes,
		})
	}

	if apply {
		if err := applySchema(cmd, opts, set, result.Tables); err != nil {
			return err
		}
	}
	return formatter(cmd, opts).Success(result)
}

func applySchema(cmd *cobra.Command, opts *RootOptions, set schema.Set, tables []TableInfo) error {
	cfg := opts.Config
	logger, err := newLogger(cmd, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create logger", err)
	}
	db, err := sqlite.Open(sqlite.Config{
		Path:        cfg.Database.Path,
		Driver:      cfg.Database.Driver,
		BusyTimeout: cfg.Database.BusyTimeout,
		ForeignKeys: cfg.Database.ForeignKeys,
		Logger:      logger,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	for i := range tables {
		s, _ := set.Get(tables[i].Table)
		exists, err := db.HasTable(ctx, s.Table)
		if err != nil {
			return WrapExitError(ExitFailure, "apply failed", err)
		}
		if !exists {
			if err := db.CreateTable(ctx, s); err != nil {
				return WrapExitError(ExitFailure, "apply failed", err)
			}
			tables[i].Created = true
			continue
		}
		added, err := db.AddMissingColumns(ctx, s)
		if err != nil {
			return WrapExitError(ExitFailure, "apply failed", err)
		}
		tables[i].Added = added
	}
	return nil
}

// NewMethodsCommand creates the methods command.
func NewMethodsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List the verbs accepted by --where",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return formatter(cmd, rootOpts).Success(strings.Join(query.Methods(), "\n"))
		},
	}
}
