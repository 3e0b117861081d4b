package analysis

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/eugenenazirov/zetafill/internal/geometry"
	"github.com/eugenenazirov/zetafill/internal/packing"
	"github.com/eugenenazirov/zetafill/internal/sequence"
)

func TestMerge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []Interval
		want []Interval
	}{
		{name: "Empty", in: nil, want: nil},
		{
			name: "Disjoint",
			in:   []Interval{{3, 4}, {0, 1}},
			want: []Interval{{0, 1}, {3, 4}},
		},
		{
			name: "Overlapping",
			in:   []Interval{{0, 2}, {1, 3}, {5, 6}},
			want: []Interval{{0, 3}, {5, 6}},
		},
		{
			name: "Nested",
			in:   []Interval{{1, 2}, {0, 5}, {3, 4}},
			want: []Interval{{0, 5}},
		},
		{
			name: "Touching",
			in:   []Interval{{1, 2}, {0, 1}},
			want: []Interval{{0, 2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := slices.Clone(tt.in)
			got := Merge(tt.in)
			if !slices.Equal(got, tt.want) {
				t.Fatalf("Merge(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if !slices.Equal(in, tt.in) {
				t.Fatalf("Merge modified its input")
			}
		})
	}
}

func TestBuffersOf(t *testing.T) {
	t.Parallel()

	snap := packing.Snapshot{
		Container:   packing.Box{Dimension: 1, Side: 10, Area: 10, Convergent: true},
		CoveredArea: 3,
		NextRadius:  0.5,
		Disks: []geometry.Disk{
			{X: 2, R: 1},
			{X: 7, R: 0.5},
		},
	}

	got, err := BuffersOf(snap)
	if err != nil {
		t.Fatalf("BuffersOf() error = %v", err)
	}
	want := []Interval{{0, 3.5}, {6, 8}, {9.5, 10}}
	if !slices.Equal(got.Excluded, want) {
		t.Fatalf("excluded = %v, want %v", got.Excluded, want)
	}
	assertClose(t, "disk", got.DiskPercent, 30)
	assertClose(t, "buffer", got.BufferPercent, 30)
	assertClose(t, "open", got.OpenPercent, 40)
}

func TestBuffersOfRun(t *testing.T) {
	t.Parallel()

	e, err := packing.New(packing.Params{
		Dimension:   1,
		Sequence:    sequence.Params{Family: sequence.Hurwitz, Exponent: 1.5, Offset: 2},
		Sizing:      geometry.SizingScaled,
		MaxAttempts: 50_000,
		MaxDisks:    30,
		Seed:        17,
	})
	if err != nil {
		t.Fatalf("packing.New() error = %v", err)
	}
	for e.Advance().Kind == packing.Placed {
	}

	got, err := BuffersOf(e.Snapshot())
	if err != nil {
		t.Fatalf("BuffersOf() error = %v", err)
	}
	if got.DiskPercent <= 0 || got.BufferPercent < 0 || got.OpenPercent < 0 {
		t.Fatalf("negative share in %+v", got)
	}
	assertClose(t, "total", got.DiskPercent+got.BufferPercent+got.OpenPercent, 100)
}

func TestBuffersOfRejectsPlane(t *testing.T) {
	t.Parallel()

	_, err := BuffersOf(packing.Snapshot{Container: packing.Box{Dimension: 2, Side: 1, Area: 1}})
	if !errors.Is(err, ErrWrongDimension) {
		t.Fatalf("BuffersOf() error = %v, want %v", err, ErrWrongDimension)
	}
}

func assertClose(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}
