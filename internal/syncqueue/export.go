package syncqueue

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

var csvHeader = []string{"ID", "Entity Type", "Operation", "Status", "Created At", "Retry Count", "Error Message"}

// DateLayout is the human-facing timestamp format used in exports and the CLI.
const DateLayout = "Jan 2, 2006, 03:04 PM"

func FormatDate(ts *Timestamp) string {
	if ts == nil || ts.IsZero() {
		return "N/A"
	}
	return ts.Format(DateLayout)
}

// WriteCSV writes items as CSV, one row per item, in the given order.
func WriteCSV(w io.Writer, items []Item) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, it := range items {
		reason := it.FailureReason()
		if reason == "" {
			reason = "N/A"
		}
		created := it.CreatedAt
		row := []string{
			strconv.FormatInt(it.ID, 10),
			FormatEntityType(it.EntityType),
			string(it.OperationType),
			string(it.SyncStatus),
			FormatDate(&created),
			strconv.Itoa(it.RetryCount),
			reason,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write item %d: %w", it.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFilename names an export after the UTC date of now.
func ExportFilename(now time.Time) string {
	return "sync-status-" + now.UTC().Format("2006-01-02") + ".csv"
}
