package layout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/barnes-hut-tree/internal/db"
)

func testParams() Params {
	p := DefaultParams()
	p.Seed = 42
	return p
}

func newTestEngine(t *testing.T, p Params) *Engine {
	t.Helper()
	e, err := NewEngine(p)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func mustAdd(t *testing.T, e *Engine, id string, pos ...float64) {
	t.Helper()
	if err := e.AddNode(id, pos); err != nil {
		t.Fatalf("AddNode(%q): %v", id, err)
	}
}

func mustValidate(t *testing.T, e *Engine) {
	t.Helper()
	if err := e.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

// fakeStore is an in-memory SnapshotStore.
type fakeStore struct {
	mu      sync.Mutex
	rows    []db.LayoutSnapshot
	nextID  int64
	err     error
	pruneTo []int32
}

func (f *fakeStore) InsertLayoutSnapshot(_ context.Context, arg db.InsertLayoutSnapshotParams) (db.LayoutSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return db.LayoutSnapshot{}, f.err
	}
	f.nextID++
	row := db.LayoutSnapshot{
		ID:        f.nextID,
		Step:      arg.Step,
		Version:   arg.Version,
		Dims:      arg.Dims,
		NodeCount: arg.NodeCount,
		Energy:    arg.Energy,
		Positions: arg.Positions,
		Tree:      arg.Tree,
		CreatedAt: time.Now(),
	}
	f.rows = append(f.rows, row)
	return row, nil
}

func (f *fakeStore) GetLatestLayoutSnapshot(context.Context) (db.LayoutSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return db.LayoutSnapshot{}, f.err
	}
	if len(f.rows) == 0 {
		return db.LayoutSnapshot{}, sql.ErrNoRows
	}
	return f.rows[len(f.rows)-1], nil
}

func (f *fakeStore) DeleteOldLayoutSnapshots(_ context.Context, keep int32) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruneTo = append(f.pruneTo, keep)
	if int(keep) >= len(f.rows) {
		return 0, nil
	}
	n := len(f.rows) - int(keep)
	f.rows = append([]db.LayoutSnapshot(nil), f.rows[n:]...)
	return int64(n), nil
}

func (f *fakeStore) CountLayoutSnapshots(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return int64(len(f.rows)), nil
}

func (f *fakeStore) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

var errStoreDown = errors.New("store down")

func gridIDs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("n%03d", i)
	}
	return out
}
