// Package snapshot flattens a bhtree.Tree into parallel arrays for debugging
// and golden-file comparison. It only reads the tree through Walk.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/onnwee/barnes-hut-tree/internal/bhtree"
)

// OptIndex is a nullable index that encodes as JSON null when unset.
type OptIndex struct {
	Index int
	Valid bool
}

// Some returns a set OptIndex.
func Some(i int) OptIndex { return OptIndex{Index: i, Valid: true} }

// None is the unset OptIndex.
var None = OptIndex{}

func (o OptIndex) String() string {
	if !o.Valid {
		return "null"
	}
	return strconv.Itoa(o.Index)
}

func (o OptIndex) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(o.Index)), nil
}

func (o *OptIndex) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*o = None
		return nil
	}
	var i int
	if err := json.Unmarshal(b, &i); err != nil {
		return fmt.Errorf("snapshot: index: %w", err)
	}
	*o = Some(i)
	return nil
}

// Snapshot is the flattened tree. Node arrays are in walk order, so node k
// owns VCS[k*Dim:(k+1)*Dim] and BCS[k*Dim:(k+1)*Dim]. Point arrays are in
// external index order.
type Snapshot struct {
	Dim int `json:"dim"`
	Num int `json:"num"`

	VCS      []float64  `json:"vcs"`
	BCS      []float64  `json:"bcs"`
	BRS      []float64  `json:"brs"`
	NS       []int      `json:"ns"`
	Parents  []OptIndex `json:"parents"`
	FromDirs []OptIndex `json:"from_dirs"`

	VS      []float64  `json:"vs"`
	ToLeafs []OptIndex `json:"to_leafs"`
	Idxs    []OptIndex `json:"idxs"`
}

// Take flattens t in one walk.
func Take(t *bhtree.Tree) *Snapshot {
	dim, nodes, n := t.Dims(), t.NodeCount(), t.Len()
	s := &Snapshot{
		Dim:      dim,
		Num:      nodes,
		VCS:      make([]float64, 0, nodes*dim),
		BCS:      make([]float64, 0, nodes*dim),
		BRS:      make([]float64, 0, nodes),
		NS:       make([]int, 0, nodes),
		Parents:  make([]OptIndex, 0, nodes),
		FromDirs: make([]OptIndex, 0, nodes),
		VS:       make([]float64, 0, n*dim),
		ToLeafs:  make([]OptIndex, n),
		Idxs:     make([]OptIndex, n),
	}
	for i := 0; i < n; i++ {
		p, _ := t.Get(i)
		s.VS = append(s.VS, p...)
	}
	t.Walk(func(info bhtree.NodeInfo) bool {
		s.VCS = append(s.VCS, info.Centroid...)
		s.BCS = append(s.BCS, info.Box.Center...)
		s.BRS = append(s.BRS, info.Box.HalfWidth)
		s.NS = append(s.NS, info.Count)
		if info.ParentID < 0 {
			s.Parents = append(s.Parents, None)
			s.FromDirs = append(s.FromDirs, None)
		} else {
			s.Parents = append(s.Parents, Some(info.ParentID))
			s.FromDirs = append(s.FromDirs, Some(info.Octant))
		}
		for slot, pi := range info.Points {
			s.ToLeafs[pi] = Some(info.ID)
			s.Idxs[pi] = Some(slot)
		}
		return true
	})
	return s
}

// Parse decodes a JSON snapshot.
func Parse(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	return &s, nil
}

// Marshal encodes s as JSON.
func (s *Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// ErrMismatch is wrapped by Compare for every differing field.
var ErrMismatch = errors.New("snapshot: mismatch")

// Compare reports every field where got differs from want. Float arrays are
// compared with the absolute tolerance tol.
func Compare(got, want *Snapshot, tol float64) error {
	var errs []error
	mismatch := func(field string, g, w any) {
		errs = append(errs, fmt.Errorf("%w: %s\n  expected: %v\n       got: %v", ErrMismatch, field, w, g))
	}
	if got.Dim != want.Dim {
		mismatch("dim", got.Dim, want.Dim)
	}
	if got.Num != want.Num {
		mismatch("num (total node number)", got.Num, want.Num)
	}
	floatFields := []struct {
		name string
		g, w []float64
	}{
		{"bcs (box centers)", got.BCS, want.BCS},
		{"brs (box half-widths)", got.BRS, want.BRS},
		{"vcs (centroids)", got.VCS, want.VCS},
		{"vs (point coordinates)", got.VS, want.VS},
	}
	for _, f := range floatFields {
		if !floatsClose(f.g, f.w, tol) {
			mismatch(f.name, f.g, f.w)
		}
	}
	if !slices.Equal(got.NS, want.NS) {
		mismatch("ns (points per node)", got.NS, want.NS)
	}
	optFields := []struct {
		name string
		g, w []OptIndex
	}{
		{"parents", got.Parents, want.Parents},
		{"from_dirs", got.FromDirs, want.FromDirs},
		{"to_leafs", got.ToLeafs, want.ToLeafs},
		{"idxs", got.Idxs, want.Idxs},
	}
	for _, f := range optFields {
		if !slices.Equal(f.g, f.w) {
			mismatch(f.name, f.g, f.w)
		}
	}
	return errors.Join(errs...)
}

func floatsClose(a, b []float64, tol float64) bool {
	return len(a) == len(b) && floats.EqualApprox(a, b, tol)
}
