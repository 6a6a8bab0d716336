package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncqueue-client/internal/syncqueue"
)

func TestRenderItems_AlignsWideRunes(t *testing.T) {
	now := time.Now()
	msg := "délai dépassé, réessayer"
	items := []syncqueue.Item{
		{ID: 1, EntityType: "ÉVÉNEMENT_INDÉSIRABLE", OperationType: syncqueue.OperationCreate,
			SyncStatus: syncqueue.StatusFailed, ErrorMessage: &msg, CreatedAt: syncqueue.NewTimestamp(now)},
		{ID: 22, EntityType: "PATIENT", OperationType: syncqueue.OperationUpdate,
			SyncStatus: syncqueue.StatusPending, CreatedAt: syncqueue.NewTimestamp(now)},
	}

	var buf bytes.Buffer
	renderItems(&buf, items, 2, now)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Greater(t, len(lines), 3)
	assert.Contains(t, buf.String(), "Événement Indésirable")
	assert.Contains(t, lines[len(lines)-1], "2 of 2 items")

	table := lines[:len(lines)-1]
	width := lipgloss.Width(table[0])
	for _, l := range table {
		assert.Equal(t, width, lipgloss.Width(l), "line %q", l)
	}
}

func TestAgo(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "never", ago(nil, now))
	assert.Equal(t, "never", ago(&syncqueue.Timestamp{}, now))
	assert.Equal(t, "1 hour ago", ago(syncqueue.At(now.Add(-time.Hour)), now))
}
