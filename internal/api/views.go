package api

import (
	"syncqueue-client/internal/sync"
	"syncqueue-client/internal/syncqueue"
)

// itemView is a queue item plus what the status page needs to draw it.
type itemView struct {
	syncqueue.Item
	EntityLabel   string `json:"entityLabel"`
	BadgeClass    string `json:"badgeClass"`
	StatusIcon    string `json:"statusIcon"`
	OperationIcon string `json:"operationIcon"`
}

func newItemView(it syncqueue.Item) itemView {
	return itemView{
		Item:          it,
		EntityLabel:   syncqueue.FormatEntityType(it.EntityType),
		BadgeClass:    it.SyncStatus.BadgeClass(),
		StatusIcon:    it.SyncStatus.Icon(),
		OperationIcon: it.OperationType.Icon(),
	}
}

type snapshotView struct {
	Filter  syncqueue.Filter `json:"filter"`
	Items   []itemView       `json:"items"`
	Total   int              `json:"total"`
	Stats   syncqueue.Stats  `json:"stats"`
	Loading bool             `json:"loading"`
	// Busy is true while any request to the backend is outstanding, writes included.
	Busy bool `json:"busy"`
}

func newSnapshotView(s sync.Snapshot, busy bool) snapshotView {
	items := make([]itemView, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, newItemView(it))
	}
	return snapshotView{
		Filter:  s.Filter,
		Items:   items,
		Total:   s.Total,
		Stats:   s.Stats,
		Loading: s.Loading,
		Busy:    busy,
	}
}
