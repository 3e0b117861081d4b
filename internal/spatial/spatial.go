package spatial

import (
	"errors"
	"fmt"
	"math"

	"github.com/eugenenazirov/zetafill/internal/geometry"
)

// DefaultResolution is the default number of grid rows and columns.
const DefaultResolution = 32

// MaxResolution bounds the rows and columns of a grid, keeping the cell
// table at about a million entries.
const MaxResolution = 1024

var plane geometry.Plane

// ErrInvalidGrid is returned for a non-positive side or a resolution outside
// 1..MaxResolution.
var ErrInvalidGrid = errors.New("invalid grid resolution or side")

// Tier says where a committed disk is filed.
type Tier uint8

const (
	// TierCell disks live in exactly one grid cell.
	TierCell Tier = iota
	// TierBig disks are checked against every candidate.
	TierBig
	// TierList disks live in a Linear index.
	TierList
)

func (t Tier) String() string {
	switch t {
	case TierCell:
		return "cell"
	case TierBig:
		return "big"
	case TierList:
		return "list"
	default:
		return "unknown"
	}
}

// Index stores committed disks and answers overlap queries against them.
type Index interface {
	// Add commits d and returns its arena index.
	Add(d geometry.Disk) int
	// Collides reports whether c strictly overlaps any committed disk.
	Collides(c geometry.Disk) bool
	// Disks returns the committed disks in commit order. Callers must not
	// modify the returned slice.
	Disks() []geometry.Disk
	Len() int
	// Reset discards every disk.
	Reset()
}

// Grid is the two-tier index for the plane.
type Grid struct {
	side      float64
	res       int
	cellWidth float64
	bigLimit  float64

	disks []geometry.Disk
	tiers []Tier
	big   []int
	cells [][]int
}

// NewGrid builds an empty res×res grid over [0, side]².
func NewGrid(side float64, res int) (*Grid, error) {
	if res <= 0 || res > MaxResolution || !(side > 0) || math.IsInf(side, 0) {
		return nil, fmt.Errorf("%w: side=%v resolution=%d", ErrInvalidGrid, side, res)
	}
	width := side / float64(res)
	g := &Grid{
		side:      side,
		res:       res,
		cellWidth: width,
		bigLimit:  width / 2,
	}
	g.Reset()
	return g, nil
}

// BigLimit is the radius at or above which a disk goes on the big list.
func (g *Grid) BigLimit() float64 { return g.bigLimit }

// Resolution returns R.
func (g *Grid) Resolution() int { return g.res }

// CellIndex maps a coordinate in [0, side] to a row or column in [0, R-1].
func (g *Grid) CellIndex(c float64) int {
	i := int(math.Floor(c / g.side * float64(g.res)))
	if i < 0 {
		return 0
	}
	if i >= g.res {
		return g.res - 1
	}
	return i
}

// Classify returns the tier d would be filed under. A disk is big once its
// radius reaches half a cell width (side/(2R) for resolution R), not a full
// cell. Small disks are then filed by center, and Collides widens its cell
// scan to cover their reach.
func (g *Grid) Classify(d geometry.Disk) Tier {
	if d.R >= g.bigLimit {
		return TierBig
	}
	return TierCell
}

func (g *Grid) Add(d geometry.Disk) int {
	id := len(g.disks)
	g.disks = append(g.disks, d)
	tier := g.Classify(d)
	g.tiers = append(g.tiers, tier)
	if tier == TierBig {
		g.big = append(g.big, id)
		return id
	}
	cell := g.CellIndex(d.X)*g.res + g.CellIndex(d.Y)
	g.cells[cell] = append(g.cells[cell], id)
	return id
}

// Collides tests c against the big list and every cell close enough to hold
// a small disk that could reach it. For a small candidate that is the 3×3
// block around its own cell.
func (g *Grid) Collides(c geometry.Disk) bool {
	for _, id := range g.big {
		if plane.Overlap(c, g.disks[id]) {
			return true
		}
	}
	reach := int(math.Ceil((c.R + g.bigLimit) / g.cellWidth))
	if reach < 1 {
		reach = 1
	}
	cx, cy := g.CellIndex(c.X), g.CellIndex(c.Y)
	for x := max(cx-reach, 0); x <= min(cx+reach, g.res-1); x++ {
		for y := max(cy-reach, 0); y <= min(cy+reach, g.res-1); y++ {
			for _, id := range g.cells[x*g.res+y] {
				if plane.Overlap(c, g.disks[id]) {
					return true
				}
			}
		}
	}
	return false
}

func (g *Grid) Disks() []geometry.Disk { return g.disks }

func (g *Grid) Len() int { return len(g.disks) }

// TierOf returns where the disk with arena index id is filed.
func (g *Grid) TierOf(id int) Tier { return g.tiers[id] }

// Members returns how many disks sit on the big list and in cells.
func (g *Grid) Members() (big, cells int) {
	for _, c := range g.cells {
		cells += len(c)
	}
	return len(g.big), cells
}

func (g *Grid) Reset() {
	g.disks = nil
	g.tiers = nil
	g.big = nil
	g.cells = make([][]int, g.res*g.res)
}

// Linear checks every committed disk.
type Linear struct {
	dim   geometry.Dimension
	disks []geometry.Disk
}

// NewLinear returns an empty list index using dim's overlap rule.
func NewLinear(dim geometry.Dimension) *Linear {
	return &Linear{dim: dim}
}

func (l *Linear) Add(d geometry.Disk) int {
	l.disks = append(l.disks, d)
	return len(l.disks) - 1
}

func (l *Linear) Collides(c geometry.Disk) bool {
	for _, d := range l.disks {
		if l.dim.Overlap(c, d) {
			return true
		}
	}
	return false
}

func (l *Linear) Disks() []geometry.Disk { return l.disks }

func (l *Linear) Len() int { return len(l.disks) }

func (l *Linear) Reset() { l.disks = nil }

// New picks the index for a dimension: a Grid in the plane, a Linear list
// on the line.
func New(dim geometry.Dimension, side float64, res int) (Index, error) {
	if dim.Rank() == 1 {
		return NewLinear(dim), nil
	}
	return NewGrid(side, res)
}
