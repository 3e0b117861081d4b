package geometry

import (
	"errors"
	"fmt"
	"math"
)

// FallbackSide is the side used when a scaled container's series diverges.
const FallbackSide = 1.0

// ErrInvalidContainer is returned for a non-positive or non-finite side.
var ErrInvalidContainer = errors.New("container side must be a positive finite number")

// Sizing selects how the container side is chosen.
type Sizing string

const (
	// SizingFixed uses a caller-supplied side.
	SizingFixed Sizing = "fixed"
	// SizingScaled sets the container area to the series total.
	SizingScaled Sizing = "scaled"
)

// Container is the square (2-D) or segment (1-D) disks are packed into.
type Container struct {
	Side float64 `json:"side"`
	Area float64 `json:"area"`
	// Total is the series total a scaled container was sized from; +Inf
	// when divergent and zero for fixed containers.
	Total float64 `json:"-"`
	// Convergent is false when a scaled container fell back to FallbackSide.
	Convergent bool `json:"convergent"`
}

// NewFixed returns a container with the given side.
func NewFixed(dim Dimension, side float64) (Container, error) {
	if !(side > 0) || math.IsInf(side, 0) {
		return Container{}, fmt.Errorf("%w, got %v", ErrInvalidContainer, side)
	}
	return Container{Side: side, Area: dim.BoxArea(side), Convergent: true}, nil
}

// NewScaled returns a container whose area equals total. A divergent total
// (non-finite or non-positive) yields a FallbackSide container marked
// non-convergent instead of NaN geometry.
func NewScaled(dim Dimension, total float64) Container {
	if math.IsInf(total, 0) || math.IsNaN(total) || total <= 0 {
		return Container{
			Side:       FallbackSide,
			Area:       dim.BoxArea(FallbackSide),
			Total:      math.Inf(1),
			Convergent: false,
		}
	}
	return Container{
		Side:       dim.SideFromArea(total),
		Area:       total,
		Total:      total,
		Convergent: true,
	}
}

// NewContainer builds a container for the given sizing. side is used by
// SizingFixed and total by SizingScaled.
func NewContainer(dim Dimension, sizing Sizing, side, total float64) (Container, error) {
	switch sizing {
	case SizingFixed, "":
		return NewFixed(dim, side)
	case SizingScaled:
		return NewScaled(dim, total), nil
	default:
		return Container{}, fmt.Errorf("unknown sizing %q", sizing)
	}
}
