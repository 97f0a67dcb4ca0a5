package db

import (
	"context"
	"encoding/json"

	"github.com/sqlc-dev/pqtype"
)

const insertLayoutSnapshot = `-- name: InsertLayoutSnapshot :one
INSERT INTO layout_snapshots (step, version, dims, node_count, energy, positions, tree)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at
`

type InsertLayoutSnapshotParams struct {
	Step      int64                 `json:"step"`
	Version   int64                 `json:"version"`
	Dims      int32                 `json:"dims"`
	NodeCount int32                 `json:"node_count"`
	Energy    float64               `json:"energy"`
	Positions json.RawMessage       `json:"positions"`
	Tree      pqtype.NullRawMessage `json:"tree"`
}

func (q *Queries) InsertLayoutSnapshot(ctx context.Context, arg InsertLayoutSnapshotParams) (LayoutSnapshot, error) {
	row := q.db.QueryRowContext(ctx, insertLayoutSnapshot,
		arg.Step,
		arg.Version,
		arg.Dims,
		arg.NodeCount,
		arg.Energy,
		arg.Positions,
		arg.Tree,
	)
	i := LayoutSnapshot{
		Step:      arg.Step,
		Version:   arg.Version,
		Dims:      arg.Dims,
		NodeCount: arg.NodeCount,
		Energy:    arg.Energy,
		Positions: arg.Positions,
		Tree:      arg.Tree,
	}
	err := row.Scan(&i.ID, &i.CreatedAt)
	return i, err
}

const getLatestLayoutSnapshot = `-- name: GetLatestLayoutSnapshot :one
SELECT id, step, version, dims, node_count, energy, positions, tree, created_at
FROM layout_snapshots
ORDER BY id DESC
LIMIT 1
`

func (q *Queries) GetLatestLayoutSnapshot(ctx context.Context) (LayoutSnapshot, error) {
	row := q.db.QueryRowContext(ctx, getLatestLayoutSnapshot)
	var i LayoutSnapshot
	err := row.Scan(
		&i.ID,
		&i.Step,
		&i.Version,
		&i.Dims,
		&i.NodeCount,
		&i.Energy,
		&i.Positions,
		&i.Tree,
		&i.CreatedAt,
	)
	return i, err
}

const listLayoutSnapshots = `-- name: ListLayoutSnapshots :many
SELECT id, step, version, dims, node_count, energy, created_at
FROM layout_snapshots
ORDER BY id DESC
LIMIT $1
`

func (q *Queries) ListLayoutSnapshots(ctx context.Context, limit int32) ([]LayoutSnapshotSummary, error) {
	rows, err := q.db.QueryContext(ctx, listLayoutSnapshots, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LayoutSnapshotSummary
	for rows.Next() {
		var i LayoutSnapshotSummary
		if err := rows.Scan(
			&i.ID,
			&i.Step,
			&i.Version,
			&i.Dims,
			&i.NodeCount,
			&i.Energy,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteOldLayoutSnapshots = `-- name: DeleteOldLayoutSnapshots :execrows
DELETE FROM layout_snapshots
WHERE id NOT IN (SELECT id FROM layout_snapshots ORDER BY id DESC LIMIT $1)
`

// DeleteOldLayoutSnapshots keeps the newest keep rows and returns how many
// were deleted.
func (q *Queries) DeleteOldLayoutSnapshots(ctx context.Context, keep int32) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteOldLayoutSnapshots, keep)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countLayoutSnapshots = `-- name: CountLayoutSnapshots :one
SELECT count(*) FROM layout_snapshots
`

func (q *Queries) CountLayoutSnapshots(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countLayoutSnapshots)
	var count int64
	err := row.Scan(&count)
	return count, err
}
