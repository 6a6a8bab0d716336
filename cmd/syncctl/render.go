package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"syncqueue-client/internal/sync"
	"syncqueue-client/internal/syncqueue"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	syncedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	cellStyle    = lipgloss.NewStyle().PaddingRight(1)
	labelStyle   = headerStyle.Width(10)
)

const statusCol = 3

func statusStyle(s syncqueue.Status) lipgloss.Style {
	switch s {
	case syncqueue.StatusPending:
		return pendingStyle
	case syncqueue.StatusSynced:
		return syncedStyle
	case syncqueue.StatusFailed:
		return failedStyle
	}
	return mutedStyle
}

// ago renders a timestamp relative to now, "never" for nil or zero.
func ago(ts *syncqueue.Timestamp, now time.Time) string {
	if ts == nil || ts.IsZero() {
		return "never"
	}
	return humanize.RelTime(ts.Time, now, "ago", "from now")
}

func renderItems(w io.Writer, items []syncqueue.Item, total int, now time.Time) {
	if len(items) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No sync items."))
		return
	}

	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			strconv.FormatInt(it.ID, 10),
			syncqueue.FormatEntityType(it.EntityType),
			string(it.OperationType),
			string(it.SyncStatus),
			strconv.Itoa(it.RetryCount),
			ago(&it.CreatedAt, now),
			it.FailureReason(),
		})
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("ID", "ENTITY", "OPERATION", "STATUS", "RETRIES", "CREATED", "ERROR").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle.PaddingRight(1)
			case col == statusCol && row >= 0 && row < len(items):
				return statusStyle(items[row].SyncStatus).PaddingRight(1)
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.Render())

	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d of %d items", len(items), total)))
}

func renderItem(w io.Writer, it syncqueue.Item, now time.Time) {
	field := func(name, value string) {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(name), value)
	}
	field("ID", strconv.FormatInt(it.ID, 10))
	field("User", strconv.FormatInt(it.UserID, 10))
	field("Entity", fmt.Sprintf("%s #%s", syncqueue.FormatEntityType(it.EntityType), it.EntityID))
	field("Operation", string(it.OperationType))
	field("Status", statusStyle(it.SyncStatus).Render(string(it.SyncStatus)))
	field("Retries", strconv.Itoa(it.RetryCount))
	field("Created", fmt.Sprintf("%s (%s)", syncqueue.FormatDate(&it.CreatedAt), ago(&it.CreatedAt, now)))
	field("Synced", fmt.Sprintf("%s (%s)", syncqueue.FormatDate(it.SyncedAt), ago(it.SyncedAt, now)))
	if msg := it.FailureReason(); msg != "" {
		field("Error", failedStyle.Render(msg))
	}
}

func renderStats(w io.Writer, st syncqueue.Stats, now time.Time) {
	fmt.Fprintf(w, "%s %s\n", pendingStyle.Render("Pending:"), humanize.Comma(int64(st.TotalPending)))
	fmt.Fprintf(w, "%s  %s\n", syncedStyle.Render("Synced:"), humanize.Comma(int64(st.TotalSynced)))
	fmt.Fprintf(w, "%s  %s\n", failedStyle.Render("Failed:"), humanize.Comma(int64(st.TotalFailed)))
	fmt.Fprintf(w, "%s   %s\n", headerStyle.Render("Total:"), humanize.Comma(int64(st.Total())))
	fmt.Fprintf(w, "Last sync: %s\n", ago(st.LastSyncTime, now))
}

// terminalNotifier prints view notifications, coloured by level.
type terminalNotifier struct {
	w io.Writer
}

func (n *terminalNotifier) Success(msg string) { fmt.Fprintln(n.w, syncedStyle.Render("✓ "+msg)) }
func (n *terminalNotifier) Info(msg string)    { fmt.Fprintln(n.w, infoStyle.Render(msg)) }
func (n *terminalNotifier) Warn(msg string)    { fmt.Fprintln(n.w, pendingStyle.Render("! "+msg)) }
func (n *terminalNotifier) Error(msg string)   { fmt.Fprintln(n.w, failedStyle.Render("✗ "+msg)) }

// terminalNavigator can't navigate, so it tells the user where to log in.
type terminalNavigator struct {
	w io.Writer
}

func (n *terminalNavigator) Redirect(route, returnURL string) {
	target := sync.Redirect{Route: route, ReturnURL: returnURL}.URL()
	fmt.Fprintf(n.w, "Log in again at %s, then update auth.token.\n", target)
}
