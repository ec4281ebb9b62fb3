package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obelixia/reclock/internal/domain/record"
)

func getCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a record and its version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := opts.client().Get(cmd.Context(), "", args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, rec)
		},
	}
}

func listCmd(opts *globalOptions) *cobra.Command {
	var listOpts record.ListRecordsOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			refs, err := opts.client().List(cmd.Context(), listOpts)
			if err != nil {
				return err
			}
			return printJSON(cmd, refs)
		},
	}
	cmd.Flags().StringVar(&listOpts.Collection, "collection", "", "only records in this collection")
	cmd.Flags().IntVar(&listOpts.Limit, "limit", 0, "maximum number of records")
	cmd.Flags().IntVar(&listOpts.Offset, "offset", 0, "records to skip")
	return cmd
}

func createCmd(opts *globalOptions) *cobra.Command {
	var (
		id         string
		collection string
		sets       []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			rec, err := opts.client().Create(cmd.Context(), record.CreateRequest{
				ID:         id,
				Collection: collection,
				Fields:     fields,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, rec)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "record ID (generated when empty)")
	cmd.Flags().StringVar(&collection, "collection", "", "collection the record belongs to")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field assignment key=value (repeatable)")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

func deleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func checkCmd(opts *globalOptions) *cobra.Command {
	var version int64
	cmd := &cobra.Command{
		Use:   "check <id>",
		Short: "Check whether a version is still current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := opts.client().Check(cmd.Context(), args[0], record.Version(version), nil)
			if err != nil {
				return err
			}
			if info != nil {
				return conflictError(cmd, info)
			}
			return printJSON(cmd, map[string]string{"status": "ok"})
		},
	}
	cmd.Flags().Int64Var(&version, "version", 0, "version the caller last read")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}

func setCmd(opts *globalOptions) *cobra.Command {
	var (
		version int64
		sets    []string
		replace bool
	)
	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Update a record if it still has the given version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			out := opts.client().GuardedUpdate(cmd.Context(), "", record.UpdateRequest{
				ID:      args[0],
				Fields:  fields,
				Version: record.Version(version),
				Replace: replace,
			})
			return printOutcome(cmd, out)
		},
	}
	cmd.Flags().Int64Var(&version, "version", 0, "version the caller last read")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field assignment key=value (repeatable)")
	cmd.Flags().BoolVar(&replace, "replace", false, "replace all fields instead of merging")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}

func forceCmd(opts *globalOptions) *cobra.Command {
	var (
		sets    []string
		replace bool
	)
	cmd := &cobra.Command{
		Use:   "force <id>",
		Short: "Overwrite a record without a version check",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			out := opts.client().ForceUpdate(cmd.Context(), "", record.ForceRequest{
				ID:      args[0],
				Fields:  fields,
				Replace: replace,
			})
			return printOutcome(cmd, out)
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field assignment key=value (repeatable)")
	cmd.Flags().BoolVar(&replace, "replace", false, "replace all fields instead of merging")
	return cmd
}

func printOutcome(cmd *cobra.Command, out record.Outcome) error {
	switch out.Kind() {
	case record.OutcomeSuccess:
		rec, _ := out.Record()
		return printJSON(cmd, rec)
	case record.OutcomeConflict:
		info, _ := out.Conflict()
		return conflictError(cmd, info)
	default:
		return out.Err()
	}
}
