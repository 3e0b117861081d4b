package geometry

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

func TestRadiusAreaRoundTrip(t *testing.T) {
	t.Parallel()

	for _, dim := range []Dimension{Line{}, Plane{}} {
		for _, r := range []float64{0, 1e-9, 0.01, 0.5641895835, 1, 17.25} {
			got := dim.RadiusFromArea(dim.AreaFromRadius(r))
			if math.Abs(got-r) > 1e-12*math.Max(1, r) {
				t.Fatalf("rank %d: round trip of %v gave %v", dim.Rank(), r, got)
			}
		}
	}
}

func TestConversions(t *testing.T) {
	t.Parallel()

	if got := (Plane{}).RadiusFromArea(math.Pi); math.Abs(got-1) > 1e-15 {
		t.Fatalf("unit disk radius = %v", got)
	}
	if got := (Line{}).RadiusFromArea(0.5); got != 0.25 {
		t.Fatalf("segment half-width = %v", got)
	}
	if (Plane{}).BoxArea(2) != 4 || (Line{}).BoxArea(2) != 2 {
		t.Fatalf("unexpected box areas")
	}
}

func TestForRank(t *testing.T) {
	t.Parallel()

	if d, err := ForRank(1); err != nil || d.Rank() != 1 {
		t.Fatalf("ForRank(1) = %v, %v", d, err)
	}
	if d, err := ForRank(2); err != nil || d.Rank() != 2 {
		t.Fatalf("ForRank(2) = %v, %v", d, err)
	}
	if _, err := ForRank(3); !errors.Is(err, ErrInvalidDimension) {
		t.Fatalf("expected ErrInvalidDimension, got %v", err)
	}
}

func TestInBoundsIsInclusive(t *testing.T) {
	t.Parallel()

	p := Plane{}
	tests := []struct {
		name string
		d    Disk
		want bool
	}{
		{name: "Centre", d: Disk{X: 1, Y: 1, R: 0.5}, want: true},
		{name: "TouchesLeft", d: Disk{X: 0.5, Y: 1, R: 0.5}, want: true},
		{name: "TouchesTopRight", d: Disk{X: 1.5, Y: 1.5, R: 0.5}, want: true},
		{name: "CrossesBottom", d: Disk{X: 1, Y: 0.4, R: 0.5}, want: false},
		{name: "CrossesRight", d: Disk{X: 1.6, Y: 1, R: 0.5}, want: false},
	}
	for _, tc := range tests {
		if got := p.InBounds(tc.d, 2); got != tc.want {
			t.Fatalf("%s: InBounds = %v, want %v", tc.name, got, tc.want)
		}
	}

	l := Line{}
	if !l.InBounds(Disk{X: 0.25, R: 0.25}, 1) || l.InBounds(Disk{X: 0.9, R: 0.25}, 1) {
		t.Fatalf("unexpected 1-D bounds result")
	}
}

func TestOverlapIsStrict(t *testing.T) {
	t.Parallel()

	p := Plane{}
	a := Disk{X: 0, Y: 0, R: 1}
	if p.Overlap(a, Disk{X: 2, Y: 0, R: 1}) {
		t.Fatalf("tangent disks must not overlap")
	}
	if !p.Overlap(a, Disk{X: 1.9, Y: 0, R: 1}) {
		t.Fatalf("expected overlap")
	}
	if p.Overlap(a, Disk{X: 1.5, Y: 1.5, R: 1}) {
		t.Fatalf("diagonal disks at distance 2.12 must not overlap")
	}

	l := Line{}
	if l.Overlap(Disk{X: 0, R: 1}, Disk{X: 2, R: 1}) {
		t.Fatalf("touching segments must not overlap")
	}
	if !l.Overlap(Disk{X: 0, R: 1}, Disk{X: -1.5, R: 1}) {
		t.Fatalf("expected segment overlap")
	}
}

func TestSampleStaysInRange(t *testing.T) {
	t.Parallel()

	src := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 1000; i++ {
		d := Plane{}.Sample(src, 3, 0.1)
		if d.X < 0 || d.X >= 3 || d.Y < 0 || d.Y >= 3 || d.R != 0.1 {
			t.Fatalf("sample out of range: %+v", d)
		}
		s := Line{}.Sample(src, 3, 0.1)
		if s.Y != 0 || s.X < 0 || s.X >= 3 {
			t.Fatalf("1-D sample out of range: %+v", s)
		}
	}
}

func TestContainers(t *testing.T) {
	t.Parallel()

	c, err := NewFixed(Plane{}, 2)
	if err != nil || c.Area != 4 || !c.Convergent {
		t.Fatalf("NewFixed = %+v, %v", c, err)
	}
	for _, side := range []float64{0, -1, math.Inf(1), math.NaN()} {
		if _, err := NewFixed(Plane{}, side); !errors.Is(err, ErrInvalidContainer) {
			t.Fatalf("expected ErrInvalidContainer for side %v, got %v", side, err)
		}
	}

	scaled := NewScaled(Plane{}, math.Pi*math.Pi/6)
	if math.Abs(scaled.Side*scaled.Side-scaled.Area) > 1e-12 || !scaled.Convergent {
		t.Fatalf("unexpected scaled container %+v", scaled)
	}
	line := NewScaled(Line{}, 3)
	if line.Side != 3 || line.Area != 3 {
		t.Fatalf("unexpected 1-D scaled container %+v", line)
	}

	for _, total := range []float64{math.Inf(1), math.NaN(), -1.46} {
		fallback := NewScaled(Plane{}, total)
		if fallback.Convergent || fallback.Side != FallbackSide || math.IsNaN(fallback.Area) {
			t.Fatalf("expected fallback container for total %v, got %+v", total, fallback)
		}
	}
}
