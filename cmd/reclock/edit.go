package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/obelixia/reclock/internal/domain/activity"
	"github.com/obelixia/reclock/internal/domain/editor"
	"github.com/obelixia/reclock/internal/domain/record"
)

const onConflictAbort = "abort"

func editCmd(opts *globalOptions) *cobra.Command {
	var (
		version    int64
		sets       []string
		replace    bool
		onConflict string
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Save changes through a conflict-aware editor",
		Long: `Opens the record, saves the given fields and settles any conflict.

--version bases the edit on an earlier read. On conflict, reload discards the
changes and shows the stored record, force writes them anyway and abort
leaves the record untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resolution editor.Resolution
			if onConflict != onConflictAbort {
				r, err := editor.ParseResolution(onConflict)
				if err != nil || r == editor.ResolutionDismiss {
					return fmt.Errorf("invalid --on-conflict %q, want reload, force or abort", onConflict)
				}
				resolution = r
			}
			fields, err := parseAssignments(sets)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			c := opts.client()
			e, err := editor.Open(ctx, c, "", args[0],
				editor.WithSession(opts.session),
				editor.WithBaseVersion(record.Version(version)),
			)
			if err != nil {
				return err
			}

			out := e.Save(ctx, fields, replace)
			if out.Kind() != record.OutcomeConflict {
				return printOutcome(cmd, out)
			}

			info, _ := out.Conflict()
			if resolution == "" {
				return conflictError(cmd, info)
			}
			resolved, err := e.Resolve(ctx, resolution, fields, replace)
			if err != nil {
				return err
			}
			if err := logResolution(cmd, resolution, info); err != nil {
				return err
			}
			if resolution == editor.ResolutionReload && resolved.Err() == nil {
				if err := printOutcome(cmd, resolved); err != nil {
					return err
				}
				return fmt.Errorf("%w: changes discarded, record reloaded", errConflict)
			}
			return printOutcome(cmd, resolved)
		},
	}
	cmd.Flags().Int64Var(&version, "version", 0, "version the edit is based on (defaults to the stored version)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field assignment key=value (repeatable)")
	cmd.Flags().BoolVar(&replace, "replace", false, "replace all fields instead of merging")
	cmd.Flags().StringVar(&onConflict, "on-conflict", onConflictAbort, "reload, force or abort")
	return cmd
}

// logResolution notes on stderr how the conflict was settled.
func logResolution(cmd *cobra.Command, res editor.Resolution, info *record.ConflictInfo) error {
	_, err := fmt.Fprintf(cmd.ErrOrStderr(), "conflict on %s (server %s, local %s): %s\n",
		info.RecordID, info.ServerVersion, info.LocalVersion, res)
	return err
}

func activityCmd(opts *globalOptions) *cobra.Command {
	var (
		listOpts activity.ListActivityOptions
		recordID string
		kind     string
	)
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if recordID != "" {
				listOpts.RecordID = &recordID
			}
			if kind != "" {
				t := activity.ActivityType(kind)
				listOpts.ActivityType = &t
			}
			entries, err := opts.client().Activity(cmd.Context(), listOpts)
			if err != nil {
				return err
			}
			return printJSON(cmd, entries)
		},
	}
	cmd.Flags().StringVar(&listOpts.Collection, "collection", "", "only activity in this collection")
	cmd.Flags().StringVar(&recordID, "record", "", "only activity on this record")
	cmd.Flags().StringVar(&kind, "type", "", "only activity of this type")
	cmd.Flags().Int64Var(&listOpts.SinceVersion, "since", 0, "only activity after this record version")
	cmd.Flags().IntVar(&listOpts.Limit, "limit", 20, "maximum number of entries")
	return cmd
}
