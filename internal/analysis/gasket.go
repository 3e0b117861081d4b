package analysis

import (
	"fmt"
	"math"

	"github.com/eugenenazirov/zetafill/internal/packing"
)

// Gasket measures the uncovered region of a 2-D run.
type Gasket struct {
	Area      float64 `json:"area"`
	Perimeter float64 `json:"perimeter"`
	// Width is Area / Perimeter.
	Width float64 `json:"width"`
	// Dimensionless is Width over the diameter of the next disk.
	Dimensionless float64 `json:"dimensionless"`
}

// GasketOf computes gasket statistics for a 2-D snapshot. The perimeter is
// the box outline plus every disk circumference.
func GasketOf(s packing.Snapshot) (Gasket, error) {
	if s.Container.Dimension != 2 {
		return Gasket{}, fmt.Errorf("%w: gasket needs dimension 2, got %d", ErrWrongDimension, s.Container.Dimension)
	}
	perimeter := 4 * s.Container.Side
	for _, d := range s.Disks {
		perimeter += 2 * math.Pi * d.R
	}
	g := Gasket{
		Area:      s.Container.Area - s.CoveredArea,
		Perimeter: perimeter,
	}
	g.Width = g.Area / g.Perimeter
	if s.NextRadius > 0 {
		g.Dimensionless = g.Width / (2 * s.NextRadius)
	}
	return g, nil
}
