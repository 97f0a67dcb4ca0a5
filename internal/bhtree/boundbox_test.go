package bhtree

import (
	"math"
	"testing"
)

func TestBoxOctant(t *testing.T) {
	b := newBox(Vector{0, 0, 0}, 2)
	tests := []struct {
		p    Vector
		want int
	}{
		{Vector{1, 1, 1}, 7},
		{Vector{-1, 1, 1}, 3},
		{Vector{1, -1, -1}, 4},
		{Vector{-1, -1, -1}, 0},
		{Vector{0, 0, 0}, 7}, // on the center counts as upper half
		{Vector{-1, -1, 0}, 1},
	}
	for _, tt := range tests {
		if got := b.Octant(tt.p); got != tt.want {
			t.Errorf("Octant(%v) = %d, want %d", tt.p, got, tt.want)
		}
	}
}

func TestBoxChild(t *testing.T) {
	b := newBox(Vector{0, 0, 0}, 2)
	tests := []struct {
		octant int
		want   Box
	}{
		{7, Box{Center: Vector{1, 1, 1}, HalfWidth: 1}},
		{3, Box{Center: Vector{-1, 1, 1}, HalfWidth: 1}},
		{0, Box{Center: Vector{-1, -1, -1}, HalfWidth: 1}},
	}
	for _, tt := range tests {
		got := b.Child(tt.octant)
		if !got.Center.Equal(tt.want.Center) || got.HalfWidth != tt.want.HalfWidth {
			t.Errorf("Child(%d) = %+v, want %+v", tt.octant, got, tt.want)
		}
	}
	if !b.Center.Equal(Vector{0, 0, 0}) {
		t.Errorf("Child mutated parent center: %v", b.Center)
	}
}

func TestBoxContains(t *testing.T) {
	b := newBox(Vector{0, 0, 0}, 2)
	tests := []struct {
		p    Vector
		want bool
	}{
		{Vector{3, 0, 0}, false},
		{Vector{0, 1, 0}, true},
		{Vector{0, 3, 0}, false},
		{Vector{-2, 0, 0}, true}, // lower bound is closed
		{Vector{2, 0, 0}, false}, // upper bound is open
	}
	for _, tt := range tests {
		if got := b.Contains(tt.p); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestBoxReverseExpand(t *testing.T) {
	tests := []struct {
		name       string
		p          Vector
		wantCenter Vector
		wantOctant int
	}{
		{"toward positive", Vector{3, 0, 0}, Vector{2, 2, 2}, 0},
		{"mixed", Vector{3, -1, -1}, Vector{2, -2, -2}, 3},
		{"toward negative", Vector{-3, -3, -3}, Vector{-2, -2, -2}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBox(Vector{0, 0, 0}, 2)
			got, oct := b.ReverseExpand(tt.p)
			if !got.Center.Equal(tt.wantCenter) || got.HalfWidth != 4 {
				t.Errorf("ReverseExpand box = %+v, want center %v half-width 4", got, tt.wantCenter)
			}
			if oct != tt.wantOctant {
				t.Errorf("ReverseExpand octant = %d, want %d", oct, tt.wantOctant)
			}
			if c := got.Child(oct); !c.Center.Equal(b.Center) || c.HalfWidth != b.HalfWidth {
				t.Errorf("old box is not child %d of the new box: %+v", oct, c)
			}
		})
	}
}

func TestBoxSelfExpand(t *testing.T) {
	b := newBox(Vector{0, 0}, 2)
	b.selfExpand(Vector{1, 3})
	if !b.Center.Equal(Vector{2, 2}) || b.HalfWidth != 4 {
		t.Errorf("selfExpand = %+v, want center [2 2] half-width 4", b)
	}
}

func TestNewBoxPanicsOnNonFinite(t *testing.T) {
	defer func() {
		r := recover()
		if _, ok := r.(*InvariantError); !ok {
			t.Fatalf("expected *InvariantError panic, got %v", r)
		}
	}()
	newBox(Vector{0, 0}, math.NaN())
}
