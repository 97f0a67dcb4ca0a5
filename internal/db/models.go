package db

import (
	"encoding/json"
	"time"

	"github.com/sqlc-dev/pqtype"
)

type LayoutSnapshot struct {
	ID        int64                 `json:"id"`
	Step      int64                 `json:"step"`
	Version   int64                 `json:"version"`
	Dims      int32                 `json:"dims"`
	NodeCount int32                 `json:"node_count"`
	Energy    float64               `json:"energy"`
	Positions json.RawMessage       `json:"positions"`
	Tree      pqtype.NullRawMessage `json:"tree"`
	CreatedAt time.Time             `json:"created_at"`
}

// LayoutSnapshotSummary is a snapshot row without its payloads.
type LayoutSnapshotSummary struct {
	ID        int64     `json:"id"`
	Step      int64     `json:"step"`
	Version   int64     `json:"version"`
	Dims      int32     `json:"dims"`
	NodeCount int32     `json:"node_count"`
	Energy    float64   `json:"energy"`
	CreatedAt time.Time `json:"created_at"`
}
