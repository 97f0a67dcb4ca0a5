package bhtree

import (
	"errors"
	"math"
	"testing"
)

func TestNewVector(t *testing.T) {
	tests := []struct {
		name    string
		coords  []float64
		wantErr bool
	}{
		{"finite", []float64{1, -2.5, 3}, false},
		{"empty", []float64{}, false},
		{"nan", []float64{1, math.NaN()}, true},
		{"positive infinity", []float64{math.Inf(1)}, true},
		{"negative infinity", []float64{0, math.Inf(-1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewVector(tt.coords)
			if tt.wantErr {
				if !errors.Is(err, ErrNonFinite) {
					t.Fatalf("expected ErrNonFinite, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !v.Equal(tt.coords) {
				t.Errorf("got %v, want %v", v, tt.coords)
			}
		})
	}
}

func TestNewVectorCopies(t *testing.T) {
	raw := []float64{1, 2}
	v, _ := NewVector(raw)
	raw[0] = 99
	if v[0] != 1 {
		t.Errorf("NewVector aliased its input: %v", v)
	}
}

func TestOnlineAverage(t *testing.T) {
	members := []Vector{{1, 3}, {3, 1}, {-4, 8}, {0, 0}}
	avg := make(Vector, 2)
	for n, m := range members {
		avg.addMember(n, m)
	}
	// (1+3-4+0)/4, (3+1+8+0)/4
	want := Vector{0, 3}
	for d := range want {
		if math.Abs(avg[d]-want[d]) > 1e-12 {
			t.Fatalf("average after adds = %v, want %v", avg, want)
		}
	}

	avg.removeMember(4, Vector{-4, 8})
	want = Vector{4.0 / 3, 4.0 / 3}
	for d := range want {
		if math.Abs(avg[d]-want[d]) > 1e-12 {
			t.Fatalf("average after removal = %v, want %v", avg, want)
		}
	}

	avg.removeMember(3, Vector{1, 3})
	avg.removeMember(2, Vector{3, 1})
	if math.Abs(avg[0]) > 1e-12 || math.Abs(avg[1]) > 1e-12 {
		t.Errorf("after removing down to [0 0], got %v", avg)
	}
	avg.removeMember(1, Vector{0, 0})
	if !avg.Equal(Vector{0, 0}) {
		t.Errorf("removing the last member should reset to zero, got %v", avg)
	}
}

func TestRemoveLastMemberResetsToZero(t *testing.T) {
	avg := Vector{5, -7}
	avg.removeMember(1, Vector{5, -7})
	if !avg.Equal(Vector{0, 0}) {
		t.Errorf("got %v, want zeros", avg)
	}
}

func TestAddMemberPanicsOnOverflow(t *testing.T) {
	defer func() {
		r := recover()
		if _, ok := r.(*InvariantError); !ok {
			t.Fatalf("expected *InvariantError panic, got %v", r)
		}
	}()
	avg := Vector{math.MaxFloat64}
	avg.addMember(1, Vector{math.Inf(1)})
}
