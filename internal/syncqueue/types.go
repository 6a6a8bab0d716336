// Package syncqueue holds the records exchanged with the backend's offline
// sync queue and the pure helpers that operate on already-fetched data.
package syncqueue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSynced  Status = "SYNCED"
	StatusFailed  Status = "FAILED"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPending, StatusSynced, StatusFailed}

var ErrInvalidItem = errors.New("invalid sync queue item")

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusSynced, StatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown sync status %q", ErrInvalidItem, s)
}

func (s Status) String() string { return string(s) }

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: sync status: %v", ErrInvalidItem, err)
	}
	st, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

type OperationType string

const (
	OperationCreate OperationType = "CREATE"
	OperationUpdate OperationType = "UPDATE"
	OperationDelete OperationType = "DELETE"
)

// ParseOperationType accepts INSERT as the backend's spelling of CREATE.
func ParseOperationType(s string) (OperationType, error) {
	switch op := OperationType(strings.ToUpper(strings.TrimSpace(s))); op {
	case OperationCreate, OperationUpdate, OperationDelete:
		return op, nil
	case "INSERT":
		return OperationCreate, nil
	}
	return "", fmt.Errorf("%w: unknown operation type %q", ErrInvalidItem, s)
}

func (o OperationType) String() string { return string(o) }

func (o *OperationType) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: operation type: %v", ErrInvalidItem, err)
	}
	op, err := ParseOperationType(raw)
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// Item is one unit of work in the remote sync queue.
type Item struct {
	ID            int64         `json:"id"`
	UserID        int64         `json:"userId"`
	EntityType    string        `json:"entityType"`
	EntityID      string        `json:"entityId"`
	OperationType OperationType `json:"operationType"`
	EntityData    string        `json:"entityData"`
	SyncStatus    Status        `json:"syncStatus"`
	RetryCount    int           `json:"retryCount"`
	ErrorMessage  *string       `json:"errorMessage"`
	CreatedAt     Timestamp     `json:"createdAt"`
	SyncedAt      *Timestamp    `json:"syncedAt"`
}

// Validate checks the status-dependent invariants: SyncedAt is set exactly
// when the item is SYNCED and ErrorMessage exactly when it is FAILED.
func (it Item) Validate() error {
	if it.SyncStatus == "" {
		return fmt.Errorf("%w: item %d has no sync status", ErrInvalidItem, it.ID)
	}
	if it.OperationType == "" {
		return fmt.Errorf("%w: item %d has no operation type", ErrInvalidItem, it.ID)
	}
	if it.RetryCount < 0 {
		return fmt.Errorf("%w: item %d has negative retry count %d", ErrInvalidItem, it.ID, it.RetryCount)
	}
	synced := it.SyncStatus == StatusSynced
	if synced != (it.SyncedAt != nil) {
		return fmt.Errorf("%w: item %d is %s but syncedAt set=%t", ErrInvalidItem, it.ID, it.SyncStatus, it.SyncedAt != nil)
	}
	failed := it.SyncStatus == StatusFailed
	if failed != (it.ErrorMessage != nil) {
		return fmt.Errorf("%w: item %d is %s but errorMessage set=%t", ErrInvalidItem, it.ID, it.SyncStatus, it.ErrorMessage != nil)
	}
	return nil
}

// FailureReason returns the last error message, or "" for items that are not FAILED.
func (it Item) FailureReason() string {
	if it.ErrorMessage == nil {
		return ""
	}
	return *it.ErrorMessage
}

// ValidateAll returns the first invariant violation in items.
func ValidateAll(items []Item) error {
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type Stats struct {
	TotalPending int        `json:"totalPending"`
	TotalSynced  int        `json:"totalSynced"`
	TotalFailed  int        `json:"totalFailed"`
	LastSyncTime *Timestamp `json:"lastSyncTime"`
}

func (s Stats) Total() int {
	return s.TotalPending + s.TotalSynced + s.TotalFailed
}

// StatsOf counts items per status. LastSyncTime is left unset; only the
// backend knows when the last full sync ran.
func StatsOf(items []Item) Stats {
	var s Stats
	for _, it := range items {
		switch it.SyncStatus {
		case StatusPending:
			s.TotalPending++
		case StatusSynced:
			s.TotalSynced++
		case StatusFailed:
			s.TotalFailed++
		}
	}
	return s
}

type RetryAllResult struct {
	Message string `json:"message"`
	Retried int    `json:"retried"`
}

type ClearResult struct {
	Message string `json:"message"`
	Cleared int    `json:"cleared"`
}

type SyncAllResult struct {
	Message string `json:"message"`
	Synced  int    `json:"synced"`
	Failed  int    `json:"failed"`
}
