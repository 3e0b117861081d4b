// Package geometry holds the per-dimension rules for disks in a container:
// area/radius conversion, the boundary test, the overlap test and uniform
// candidate sampling. A Line models 1-D segments, a Plane 2-D disks.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDimension is returned for a dimensionality other than 1 or 2.
var ErrInvalidDimension = errors.New("dimension must be 1 or 2")

// Disk is a placed or candidate disk. In one dimension it is the segment
// [X-R, X+R] and Y is always zero.
type Disk struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	R float64 `json:"r"`
}

// Source yields uniform floats in [0, 1). *math/rand/v2.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Dimension is the closed set of per-dimension rules, chosen once per run.
type Dimension interface {
	Rank() int
	RadiusFromArea(area float64) float64
	AreaFromRadius(r float64) float64
	// BoxArea is the measure of a container with the given side.
	BoxArea(side float64) float64
	// SideFromArea inverts BoxArea.
	SideFromArea(area float64) float64
	// InBounds reports whether d lies entirely inside [0, side] on every axis.
	// Touching the wall is allowed.
	InBounds(d Disk, side float64) bool
	// Overlap reports whether two disks strictly overlap. Tangent disks do not.
	Overlap(a, b Disk) bool
	// Sample draws a candidate of radius r with a uniform centre in [0, side).
	Sample(src Source, side, r float64) Disk
}

// ForRank returns the Dimension for 1 or 2.
func ForRank(rank int) (Dimension, error) {
	switch rank {
	case 1:
		return Line{}, nil
	case 2:
		return Plane{}, nil
	default:
		return nil, fmt.Errorf("%w, got %d", ErrInvalidDimension, rank)
	}
}

// Line is the one-dimensional model: area is length, a disk is a segment.
type Line struct{}

func (Line) Rank() int { return 1 }
func (Line) RadiusFromArea(area float64) float64 { return area / 2 }
func (Line) AreaFromRadius(r float64) float64 { return 2 * r }
func (Line) BoxArea(side float64) float64 { return side }
func (Line) SideFromArea(area float64) float64 { return area }
func (Line) InBounds(d Disk, side float64) bool { return d.X-d.R >= 0 && d.X+d.R <= side }
func (Line) Overlap(a, b Disk) bool { return math.Abs(a.X-b.X) < a.R+b.R }
func (Line) Sample(src Source, side, r float64) Disk {
	return Disk{X: src.Float64() * side, R: r}
}

// Plane is the two-dimensional model: circular disks in a square.
type Plane struct{}

func (Plane) Rank() int { return 2 }
func (Plane) RadiusFromArea(area float64) float64 { return math.Sqrt(area / math.Pi) }
func (Plane) AreaFromRadius(r float64) float64 { return math.Pi * r * r }
func (Plane) BoxArea(side float64) float64 { return side * side }
func (Plane) SideFromArea(area float64) float64 { return math.Sqrt(area) }

func (Plane) InBounds(d Disk, side float64) bool {
	return d.X-d.R >= 0 &&
		d.X+d.R <= side &&
		d.Y-d.R >= 0 &&
		d.Y+d.R <= side
}

func (Plane) Overlap(a, b Disk) bool {
	dx := a.X - b.X
	dy := a.Y - b.Y
	s := a.R + b.R
	return dx*dx+dy*dy < s*s
}

func (Plane) Sample(src Source, side, r float64) Disk {
	x := src.Float64() * side
	y := src.Float64() * side
	return Disk{X: x, Y: y, R: r}
}
