package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newRetryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "retry <id>",
		GroupID: "manage",
		Short:   "Retry syncing one item",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			it, err := a.newManager().Retry(cmd.Context(), id)
			if err != nil {
				return err
			}
			renderItem(a.out, it, time.Now())
			return nil
		},
	}
}

func newRetryAllCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "retry-all",
		GroupID: "manage",
		Short:   "Move every FAILED item back to PENDING",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.confirm("Retry all failed sync items?") {
				fmt.Fprintln(a.out, "Aborted.")
				return nil
			}
			res, err := a.newManager().RetryAllFailed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Retried: %d\n", res.Retried)
			return nil
		},
	}
}

func newSyncAllCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "sync-all",
		GroupID: "manage",
		Short:   "Force a sync attempt on every PENDING item",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.newManager().SyncAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Synced: %d, failed: %d\n", res.Synced, res.Failed)
			return nil
		},
	}
}

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "clear <id>",
		GroupID: "manage",
		Short:   "Remove one item from the queue",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			if !a.confirm(fmt.Sprintf("Delete sync item %d?", id)) {
				fmt.Fprintln(a.out, "Aborted.")
				return nil
			}
			return a.newManager().Delete(cmd.Context(), id)
		},
	}
}

func newClearSyncedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "clear-synced",
		GroupID: "manage",
		Short:   "Remove every SYNCED item",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.confirm("Clear all synced items?") {
				fmt.Fprintln(a.out, "Aborted.")
				return nil
			}
			res, err := a.newManager().ClearAllSynced(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Cleared: %d\n", res.Cleared)
			return nil
		},
	}
}

func newClearFailedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "clear-failed",
		GroupID: "manage",
		Short:   "Remove every FAILED item",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.confirm("Clear all failed items? They will not be synced.") {
				fmt.Fprintln(a.out, "Aborted.")
				return nil
			}
			res, err := a.newManager().ClearAllFailed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Cleared: %d\n", res.Cleared)
			return nil
		},
	}
}
