package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// WriteResult is the payload of insert, update and delete.
type WriteResult struct {
	Table    string `json:"table"`
	ID       any    `json:"id,omitempty"`
	Affected int64  `json:"affected"`
}

func (r WriteResult) String() string {
	if r.ID != nil {
		return fmt.Sprintf("inserted %s", formatCell(r.ID))
	}
	return fmt.Sprintf("%d row(s) affected", r.Affected)
}

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	var set []string

	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert one row",
		Long: `Insert one row built from --set name=value pairs and print its primary
key. The table, and any columns it lacks, are created on first use.

Examples:
  prom insert --schema pets.yaml --set name=Rex --set species=dog --set age=4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer sess.Close()

			fields, err := parseAssignments(sess.schema, set)
			if err != nil {
				return WrapExitError(ExitFailure, "invalid --set", err)
			}
			id, err := sess.query().SetFields(fields).Insert(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "insert failed", err)
			}
			return formatter(cmd, rootOpts).Success(WriteResult{Table: sess.schema.Table, ID: id, Affected: 1})
		},
	}
	cmd.Flags().StringArrayVar(&set, "set", nil, "field value as name=value (repeatable)")
	_ = cmd.MarkFlagRequired("set")
	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	filters := &filterOptions{}
	var set []string
	var all bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update matching rows",
		Long: `Apply --set name=value pairs to every row matching --where criteria.
Updating without criteria requires --all.

Examples:
  prom update --schema pets.yaml --where is_name=Rex --set age=5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(filters.Where) == 0 && !all {
				return NewExitError(ExitCommandError, "refusing to update every row without --all")
			}
			sess, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer sess.Close()

			fields, err := parseAssignments(sess.schema, set)
			if err != nil {
				return WrapExitError(ExitFailure, "invalid --set", err)
			}
			q := sess.query()
			if err := filters.apply(q); err != nil {
				return WrapExitError(ExitFailure, "invalid criteria", err)
			}
			n, err := q.SetFields(fields).Update(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "update failed", err)
			}
			return formatter(cmd, rootOpts).Success(WriteResult{Table: sess.schema.Table, Affected: n})
		},
	}
	filters.register(cmd.Flags(), false)
	cmd.Flags().StringArrayVar(&set, "set", nil, "field value as name=value (repeatable)")
	cmd.Flags().BoolVar(&all, "all", false, "allow updating every row")
	_ = cmd.MarkFlagRequired("set")
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	filters := &filterOptions{}
	var all bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete matching rows",
		Long: `Delete every row matching --where criteria. Deleting without criteria
requires --all.

Examples:
  prom delete --schema pets.yaml --where lt_age=1
  prom delete --schema pets.yaml --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(filters.Where) == 0 && !all {
				return NewExitError(ExitCommandError, "refusing to delete every row without --all")
			}
			sess, err := openSession(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer sess.Close()

			q := sess.query()
			if err := filters.apply(q); err != nil {
				return WrapExitError(ExitFailure, "invalid criteria", err)
			}
			n, err := q.Delete(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "delete failed", err)
			}
			return formatter(cmd, rootOpts).Success(WriteResult{Table: sess.schema.Table, Affected: n})
		},
	}
	filters.register(cmd.Flags(), false)
	cmd.Flags().BoolVar(&all, "all", false, "allow deleting every row")
	return cmd
}
