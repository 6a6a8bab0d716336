package syncqueue

import (
	"strings"
	"unicode/utf8"
)

func (s Status) BadgeClass() string {
	switch s {
	case StatusPending:
		return "status-pending"
	case StatusSynced:
		return "status-synced"
	case StatusFailed:
		return "status-failed"
	}
	return "status-unknown"
}

// Icon names follow the Material icon set used by the web front-end.
func (s Status) Icon() string {
	switch s {
	case StatusPending:
		return "schedule"
	case StatusSynced:
		return "check_circle"
	case StatusFailed:
		return "error"
	}
	return "help"
}

func (o OperationType) Icon() string {
	switch o {
	case OperationCreate:
		return "add_circle"
	case OperationUpdate:
		return "edit"
	case OperationDelete:
		return "delete"
	}
	return "sync"
}

// FormatEntityType turns "ADVERSE_EVENT" into "Adverse Event".
func FormatEntityType(entityType string) string {
	words := strings.Split(entityType, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(w)
		words[i] = strings.ToUpper(string(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
