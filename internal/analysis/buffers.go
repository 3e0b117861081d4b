package analysis

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/eugenenazirov/zetafill/internal/geometry"
	"github.com/eugenenazirov/zetafill/internal/packing"
)

// ErrWrongDimension is returned when a statistic does not apply to the run's
// dimensionality.
var ErrWrongDimension = errors.New("statistic not defined for this dimension")

// Interval is a closed range [Left, Right] on the line.
type Interval struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// Len returns Right - Left.
func (iv Interval) Len() float64 { return iv.Right - iv.Left }

// Buffers splits a 1-D container into segments, the buffer zones around
// them where the next centre cannot go, and the open remainder. Percentages
// are of the container length.
type Buffers struct {
	DiskPercent   float64    `json:"diskPercent"`
	BufferPercent float64    `json:"bufferPercent"`
	OpenPercent   float64    `json:"openPercent"`
	NextRadius    float64    `json:"nextRadius"`
	Excluded      []Interval `json:"excluded"`
}

// BuffersOf computes the buffer accounting of a 1-D snapshot. Each segment
// excludes [x-r-rNext, x+r+rNext] clipped to the box and each wall excludes
// rNext.
func BuffersOf(s packing.Snapshot) (Buffers, error) {
	if s.Container.Dimension != 1 {
		return Buffers{}, fmt.Errorf("%w: buffers need dimension 1, got %d", ErrWrongDimension, s.Container.Dimension)
	}
	side := s.Container.Side
	excluded := Merge(exclusionZones(s.Disks, side, s.NextRadius))

	var union float64
	for _, iv := range excluded {
		union += iv.Len()
	}
	return Buffers{
		DiskPercent:   100 * s.CoveredArea / side,
		BufferPercent: 100 * (union - s.CoveredArea) / side,
		OpenPercent:   100 * math.Max(side-union, 0) / side,
		NextRadius:    s.NextRadius,
		Excluded:      excluded,
	}, nil
}

func exclusionZones(disks []geometry.Disk, side, next float64) []Interval {
	zones := make([]Interval, 0, len(disks)+2)
	for _, d := range disks {
		reach := d.R + next
		zones = append(zones, Interval{
			Left:  math.Max(d.X-reach, 0),
			Right: math.Min(d.X+reach, side),
		})
	}
	zones = append(zones,
		Interval{Left: 0, Right: math.Min(next, side)},
		Interval{Left: math.Max(side-next, 0), Right: side},
	)
	return zones
}

// Merge sorts intervals and joins the ones that touch or overlap.
func Merge(in []Interval) []Interval {
	if len(in) == 0 {
		return nil
	}
	sorted := slices.Clone(in)
	slices.SortFunc(sorted, func(a, b Interval) int {
		if c := cmpFloat(a.Left, b.Left); c != 0 {
			return c
		}
		return cmpFloat(a.Right, b.Right)
	})

	out := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if iv.Left > last.Right {
			out = append(out, iv)
			continue
		}
		last.Right = math.Max(last.Right, iv.Right)
	}
	return out
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
