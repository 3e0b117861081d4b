package packing

import (
	"fmt"
	"math"
	"strings"

	"github.com/eugenenazirov/zetafill/internal/geometry"
	"github.com/eugenenazirov/zetafill/internal/sequence"
	"github.com/eugenenazirov/zetafill/internal/spatial"
)

const (
	DefaultDimension   = 2
	DefaultBoxSide     = 2.0
	DefaultMaxAttempts = 10_000_000
	DefaultMaxDisks    = 100_000
	DefaultMinDiskArea = 1e-7

	// MaxInitialK bounds the leading terms a scaled container subtracts from
	// the series total.
	MaxInitialK = 1_000_000
)

// Placement selects how candidate positions are chosen.
type Placement string

const (
	// PlacementRandom samples uniform candidates until one fits.
	PlacementRandom Placement = "random"
	// PlacementLeftToRight lays 1-D segments edge to edge from x = 0.
	PlacementLeftToRight Placement = "left-to-right"
)

// Params is the per-run input configuration. Zero values select defaults;
// see Normalize.
type Params struct {
	Dimension   int             `json:"dimension" yaml:"dimension" toml:"dimension"`
	Sequence    sequence.Params `json:"sequence" yaml:"sequence" toml:"sequence"`
	Sizing      geometry.Sizing `json:"sizing" yaml:"sizing" toml:"sizing"`
	BoxSide     float64         `json:"boxSide,omitempty" yaml:"box_side" toml:"box_side"`
	InitialK    int             `json:"initialK" yaml:"initial_k" toml:"initial_k"`
	MaxAttempts int             `json:"maxAttempts" yaml:"max_attempts" toml:"max_attempts"`
	MaxDisks    int             `json:"maxDisks" yaml:"max_disks" toml:"max_disks"`
	MinDiskArea float64         `json:"minDiskArea" yaml:"min_disk_area" toml:"min_disk_area"`
	GridSize    int             `json:"gridSize" yaml:"grid_size" toml:"grid_size"`
	Placement   Placement       `json:"placement" yaml:"placement" toml:"placement"`
	Seed        uint64          `json:"seed" yaml:"seed" toml:"seed"`
}

// Normalize fills unset fields with defaults. InitialK below the sequence's
// first valid index is raised to it by New, not here.
func (p Params) Normalize() Params {
	if p.Dimension == 0 {
		p.Dimension = DefaultDimension
	}
	if p.Sizing == "" {
		p.Sizing = geometry.SizingFixed
	}
	p.Sizing = geometry.Sizing(strings.ToLower(string(p.Sizing)))
	if p.Sizing == geometry.SizingFixed && p.BoxSide == 0 {
		p.BoxSide = DefaultBoxSide
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.MaxDisks == 0 {
		p.MaxDisks = DefaultMaxDisks
	}
	if p.MinDiskArea == 0 {
		p.MinDiskArea = DefaultMinDiskArea
	}
	if p.GridSize == 0 {
		p.GridSize = spatial.DefaultResolution
	}
	if p.Placement == "" {
		p.Placement = PlacementRandom
	}
	p.Placement = Placement(strings.ToLower(string(p.Placement)))
	return p
}

// Validate checks normalized parameters. It does not build the sequence.
func (p Params) Validate() error {
	if p.Dimension != 1 && p.Dimension != 2 {
		return fmt.Errorf("%w: %w, got %d", ErrInvalidConfig, geometry.ErrInvalidDimension, p.Dimension)
	}
	switch p.Sizing {
	case geometry.SizingFixed:
		if !(p.BoxSide > 0) || math.IsInf(p.BoxSide, 0) {
			return fmt.Errorf("%w: %w, got %v", ErrInvalidConfig, geometry.ErrInvalidContainer, p.BoxSide)
		}
	case geometry.SizingScaled:
	default:
		return fmt.Errorf("%w: unknown sizing %q", ErrInvalidConfig, p.Sizing)
	}
	if p.InitialK < 0 || p.InitialK > MaxInitialK {
		return fmt.Errorf("%w: initial k must be in [0, %d], got %d", ErrInvalidConfig, MaxInitialK, p.InitialK)
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be >= 1, got %d", ErrInvalidConfig, p.MaxAttempts)
	}
	if p.MaxDisks < 1 {
		return fmt.Errorf("%w: max disks must be >= 1, got %d", ErrInvalidConfig, p.MaxDisks)
	}
	if p.MinDiskArea < 0 || math.IsNaN(p.MinDiskArea) {
		return fmt.Errorf("%w: min disk area must be >= 0, got %v", ErrInvalidConfig, p.MinDiskArea)
	}
	if p.GridSize < 1 || p.GridSize > spatial.MaxResolution {
		return fmt.Errorf("%w: %w, got %d", ErrInvalidConfig, spatial.ErrInvalidGrid, p.GridSize)
	}
	switch p.Placement {
	case PlacementRandom:
	case PlacementLeftToRight:
		if p.Dimension != 1 {
			return fmt.Errorf("%w: left-to-right placement requires dimension 1", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown placement %q", ErrInvalidConfig, p.Placement)
	}
	return nil
}
