package cli

import (
	"github.com/spf13/cobra"

	"github.com/viggyfresh/prom/internal/backend"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	filters := &filterOptions{}

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch matching rows",
		Long: `Fetch the rows matching --where criteria.

With --limit, one extra row is requested to tell whether more rows exist.

Examples:
  prom get --schema pets.yaml --where is_species=dog --sort -age
  prom get --schema pets.yaml --where in_species=dog,cat --limit 10 --page 2
  prom get --schema pets.yaml --sort species:fish,dog,cat --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, rootOpts, filters)
		},
	}
	filters.register(cmd.Flags(), true)
	return cmd
}

func runGet(cmd *cobra.Command, opts *RootOptions, filters *filterOptions) error {
	sess, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	q := sess.query()
	if err := filters.apply(q); err != nil {
		return WrapExitError(ExitFailure, "invalid criteria", err)
	}
	res, err := q.Get(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "query failed", err)
	}
	return formatter(cmd, opts).Rows(NewRowsResult(sess.schema.Table, columns(sess, filters), res.Rows(), res.HasMore))
}

// NewAllCommand creates the all command.
func NewAllCommand(rootOpts *RootOptions) *cobra.Command {
	filters := &filterOptions{}

	cmd := &cobra.Command{
		Use:   "all",
		Short: "Walk every matching row in chunks",
		Long: `Walk every row matching --where criteria, fetching --limit rows (or
--chunk-size rows when no limit is given) per round trip, starting at
--offset.

Examples:
  prom all --schema pets.yaml --limit 500
  prom all --schema pets.yaml --where gte_age=2 --chunk-size 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAll(cmd, rootOpts, filters)
		},
	}
	filters.register(cmd.Flags(), true)
	return cmd
}

func runAll(cmd *cobra.Command, opts *RootOptions, filters *filterOptions) error {
	sess, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	q := sess.query()
	if err := filters.apply(q); err != nil {
		return WrapExitError(ExitFailure, "invalid criteria", err)
	}

	out := formatter(cmd, opts)
	it := q.All(cmd.Context())
	out.VerboseLog("iterating in chunks of %d", it.ChunkSize())

	rows := []backend.Row{}
	for v, err := range it.Seq() {
		if err != nil {
			return WrapExitError(ExitFailure, "query failed", err)
		}
		rows = append(rows, v.(backend.Row))
	}
	return out.Rows(NewRowsResult(sess.schema.Table, columns(sess, filters), rows, false))
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	filters := &filterOptions{}

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count matching rows",
		Long: `Count the rows matching --where criteria.

Examples:
  prom count --schema pets.yaml
  prom count --schema pets.yaml --where nin_species=fish --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(cmd, rootOpts, filters)
		},
	}
	filters.register(cmd.Flags(), false)
	return cmd
}

// CountResult is the payload of the count command.
type CountResult struct {
	Table string `json:"table"`
	Count int64  `json:"count"`
}

func (r CountResult) String() string {
	return formatCell(r.Count)
}

func runCount(cmd *cobra.Command, opts *RootOptions, filters *filterOptions) error {
	sess, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	q := sess.query()
	if err := filters.apply(q); err != nil {
		return WrapExitError(ExitFailure, "invalid criteria", err)
	}
	n, err := q.Count(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "query failed", err)
	}
	return formatter(cmd, opts).Success(CountResult{Table: sess.schema.Table, Count: n})
}

// columns is the header used when no rows came back.
func columns(sess *session, filters *filterOptions) []string {
	if len(filters.Select) > 0 {
		out := make([]string, len(filters.Select))
		for i, f := range filters.Select {
			out[i] = sess.schema.FieldName(f)
		}
		return out
	}
	return sess.schema.FieldNames()
}
