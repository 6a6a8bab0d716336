package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"syncqueue-client/internal/syncqueue"
)

func newListCmd(a *app) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:     "list",
		GroupID: "view",
		Short:   "List sync queue items",
		Long: `List every item in the sync queue, newest first as the backend returns them.

--status narrows the output to PENDING, SYNCED or FAILED items. The full queue
is always fetched; the filter only changes what is shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := a.newManager()
			if cmd.Flags().Changed("status") {
				f, err := syncqueue.ParseFilter(status)
				if err != nil {
					return err
				}
				m.SetFilter(f)
			}
			if err := m.Load(cmd.Context()); err != nil {
				return err
			}
			snap := m.Snapshot()
			renderItems(a.out, snap.Items, snap.Total, time.Now())
			return nil
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "Only show items with this status (ALL, PENDING, SYNCED, FAILED)")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "get <id>",
		GroupID: "view",
		Short:   "Show one sync item with its entity snapshot",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			it, err := a.newManager().Details(cmd.Context(), id)
			if err != nil {
				return err
			}
			renderItem(a.out, it, time.Now())
			return nil
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "stats",
		GroupID: "view",
		Short:   "Show queue counts per status and the last sync time",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.newManager().LoadStats(cmd.Context())
			if err != nil {
				return err
			}
			renderStats(a.out, st, time.Now())
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:     "export",
		GroupID: "view",
		Short:   "Export the whole queue as CSV",
		Long: `Export every sync item as CSV, ignoring any status filter.

The file defaults to sync-status-YYYY-MM-DD.csv in the current directory.
Use --out - to write to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := a.newManager()
			if err := m.Load(cmd.Context()); err != nil {
				return err
			}

			if out == "-" {
				return m.Export(a.out)
			}
			if out == "" {
				out = syncqueue.ExportFilename(time.Now())
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			if err := m.Export(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Fprintf(a.out, "Wrote %d items to %s\n", len(m.Items()), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, or - for stdout")
	return cmd
}

func parseItemID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", s)
	}
	return id, nil
}
