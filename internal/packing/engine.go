package packing

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/eugenenazirov/zetafill/internal/geometry"
	"github.com/eugenenazirov/zetafill/internal/sequence"
	"github.com/eugenenazirov/zetafill/internal/spatial"
)

// commitSlack shrinks a committed disk's radius for the overlap test so that
// disks which were tangent when placed survive a round trip through export.
const commitSlack = 1e-9

// Option configures an Engine.
type Option func(*Engine)

// WithSource replaces the seeded PCG source.
func WithSource(src geometry.Source) Option {
	return func(e *Engine) {
		if src != nil {
			e.src = src
		}
	}
}

// WithLogger sets the logger used for terminal transitions.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSequence replaces the sequence built from Params.Sequence, for
// caller-defined area rules.
func WithSequence(seq sequence.Sequence) Option {
	return func(e *Engine) {
		e.seq = seq
	}
}

// Engine packs disks for one run. It is not safe for concurrent use.
type Engine struct {
	params Params
	seq    sequence.Sequence
	dim    geometry.Dimension
	box    geometry.Container
	src    geometry.Source
	logger *zap.Logger

	cur *runState
}

type runState struct {
	index         spatial.Index
	state         State
	k             int
	diskCount     int
	covered       float64
	lastArea      float64
	totalAttempts int64
	// leftX is the right edge of the last segment for left-to-right placement.
	leftX float64
}

// New validates p and returns an idle engine. Malformed parameters fail with
// ErrInvalidConfig before any placement.
func New(p Params, opts ...Option) (*Engine, error) {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{params: p, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}

	if e.seq == nil {
		seq, err := sequence.New(p.Sequence)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		e.seq = seq
	}
	if e.params.InitialK < e.seq.FirstK() {
		e.params.InitialK = e.seq.FirstK()
	}

	dim, err := geometry.ForRank(p.Dimension)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	e.dim = dim

	box, err := geometry.NewContainer(dim, p.Sizing, p.BoxSide, sequence.Sum(e.seq, e.params.InitialK))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	e.box = box
	e.params.BoxSide = box.Side

	if e.src == nil {
		e.src = rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))
	}

	cur, err := e.newRun()
	if err != nil {
		return nil, err
	}
	e.cur = cur
	return e, nil
}

func (e *Engine) newRun() (*runState, error) {
	index, err := spatial.New(e.dim, e.box.Side, e.params.GridSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &runState{index: index, state: Idle, k: e.params.InitialK}, nil
}

// Params returns the normalized parameters, with InitialK and BoxSide as
// actually used.
func (e *Engine) Params() Params { return e.params }

// Dimension returns the per-dimension rules of the run.
func (e *Engine) Dimension() geometry.Dimension { return e.dim }

// Container returns the container the run packs into.
func (e *Engine) Container() geometry.Container { return e.box }

// Sequence returns the area sequence.
func (e *Engine) Sequence() sequence.Sequence { return e.seq }

// State returns the current lifecycle state.
func (e *Engine) State() State { return e.cur.state }

// DiskCount returns the number of committed disks.
func (e *Engine) DiskCount() int { return e.cur.diskCount }

// LastArea returns the area of the most recently committed disk, or zero.
func (e *Engine) LastArea() float64 { return e.cur.lastArea }

// CoveredArea returns the running sum of committed areas.
func (e *Engine) CoveredArea() float64 { return e.cur.covered }

// Disks returns a copy of the committed disks in commit order.
func (e *Engine) Disks() []geometry.Disk {
	src := e.cur.index.Disks()
	out := make([]geometry.Disk, len(src))
	copy(out, src)
	return out
}

// Start moves Idle or Paused to Running. A terminal run is reset first.
func (e *Engine) Start() error {
	switch e.cur.state {
	case Idle, Paused:
	case Jammed, Exhausted:
		if err := e.Reset(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, e.cur.state)
	}
	e.cur.state = Running
	return nil
}

// Pause moves Running to Paused.
func (e *Engine) Pause() error {
	if e.cur.state != Running {
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, e.cur.state)
	}
	e.cur.state = Paused
	return nil
}

// Reset discards every disk and returns the run to Idle. The random source
// is not rewound.
func (e *Engine) Reset() error {
	cur, err := e.newRun()
	if err != nil {
		return err
	}
	e.cur = cur
	return nil
}

// Advance tries to place the next disk. Jams and exhaustion are reported in
// the outcome; a run in a terminal state keeps reporting it. Advancing an
// idle run starts it; a paused run stays paused, which allows single steps.
func (e *Engine) Advance() Outcome {
	out, _ := e.AdvanceContext(context.Background())
	return out
}

// ctxCheckInterval is how many placement attempts pass between context checks.
const ctxCheckInterval = 4096

// AdvanceContext is Advance with cancellation. ctx is checked every
// ctxCheckInterval attempts. Once it is done no disk is placed, the run keeps
// its prior state and the outcome is empty.
func (e *Engine) AdvanceContext(ctx context.Context) (Outcome, error) {
	cur := e.cur
	prev := cur.state
	switch cur.state {
	case Jammed:
		return e.outcome(KindJammed, nil, 0), nil
	case Exhausted:
		return e.outcome(KindExhausted, nil, 0), nil
	case Idle:
		cur.state = Running
	}

	area := e.seq.Area(cur.k)
	if e.exhausted(cur.diskCount, area) {
		e.terminate(Exhausted, 0)
		return e.outcome(KindExhausted, nil, 0), nil
	}

	r := e.dim.RadiusFromArea(area)
	if 2*r > e.box.Side {
		e.terminate(Jammed, 0)
		return e.outcome(KindJammed, nil, 0), nil
	}

	if e.params.Placement == PlacementLeftToRight {
		c := geometry.Disk{X: cur.leftX + r, R: r}
		if !e.dim.InBounds(c, e.box.Side) {
			e.terminate(Jammed, 1)
			return e.outcome(KindJammed, nil, 1), nil
		}
		return e.commit(c, area, 1), nil
	}

	for attempt := 1; attempt <= e.params.MaxAttempts; attempt++ {
		if attempt%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				cur.state = prev
				return Outcome{}, err
			}
		}
		c := e.dim.Sample(e.src, e.box.Side, r)
		if !e.dim.InBounds(c, e.box.Side) {
			continue
		}
		if cur.index.Collides(c) {
			continue
		}
		return e.commit(c, area, attempt), nil
	}
	e.terminate(Jammed, e.params.MaxAttempts)
	return e.outcome(KindJammed, nil, e.params.MaxAttempts), nil
}

// AdvanceN calls AdvanceContext until n disks are placed, the run stops, or
// ctx is done. It returns the last outcome and the number of disks placed.
func (e *Engine) AdvanceN(ctx context.Context, n int) (Outcome, int, error) {
	if n < 1 {
		return Outcome{}, 0, fmt.Errorf("steps must be >= 1, got %d", n)
	}
	var (
		last   Outcome
		placed int
	)
	for placed < n {
		if err := ctx.Err(); err != nil {
			return last, placed, err
		}
		out, err := e.AdvanceContext(ctx)
		if err != nil {
			return last, placed, err
		}
		last = out
		if last.Kind != Placed {
			break
		}
		placed++
	}
	return last, placed, nil
}

// Commit places d as the next disk without sampling. d must carry the radius
// the sequence prescribes at the current index and must fit the run.
func (e *Engine) Commit(d geometry.Disk) (Outcome, error) {
	cur := e.cur
	if cur.state.Terminal() {
		return Outcome{}, fmt.Errorf("%w: commit in %s", ErrInvalidTransition, cur.state)
	}
	area := e.seq.Area(cur.k)
	r := e.dim.RadiusFromArea(area)
	if math.Abs(d.R-r) > commitSlack*math.Max(1, r) {
		return Outcome{}, fmt.Errorf("%w: k=%d want r=%g, got %g", ErrReplayMismatch, cur.k, r, d.R)
	}
	if e.dim.Rank() == 1 {
		d.Y = 0
	}
	if !e.dim.InBounds(d, e.box.Side) {
		return Outcome{}, fmt.Errorf("%w: %+v", ErrOutOfBounds, d)
	}
	shrunk := d
	shrunk.R *= 1 - commitSlack
	if cur.index.Collides(shrunk) {
		return Outcome{}, fmt.Errorf("%w: %+v", ErrOverlap, d)
	}
	return e.commit(d, area, 0), nil
}

// Replay rebuilds the run from an exported disk list, in order, and leaves it
// paused unless a limit was reached. On error the previous run is left
// untouched.
func (e *Engine) Replay(disks []geometry.Disk) ([]Outcome, error) {
	fresh, err := e.newRun()
	if err != nil {
		return nil, err
	}
	prev := e.cur
	e.cur = fresh

	outcomes := make([]Outcome, 0, len(disks))
	for i, d := range disks {
		out, err := e.Commit(d)
		if err != nil {
			e.cur = prev
			return nil, fmt.Errorf("replay disk %d: %w", i, err)
		}
		outcomes = append(outcomes, out)
	}
	if len(disks) > 0 && !fresh.state.Terminal() {
		fresh.state = Paused
	}
	return outcomes, nil
}

func (e *Engine) commit(d geometry.Disk, area float64, attempts int) Outcome {
	cur := e.cur
	cur.index.Add(d)
	k := cur.k
	cur.k++
	cur.diskCount++
	cur.covered += area
	cur.lastArea = area
	cur.totalAttempts += int64(attempts)
	cur.leftX = d.X + d.R

	out := e.outcome(Placed, &d, attempts)
	out.K = k

	if e.exhausted(cur.diskCount, e.seq.Area(cur.k)) {
		e.terminate(Exhausted, 0)
	}
	return out
}

// exhausted applies the stopping policy. The area floor is inclusive.
func (e *Engine) exhausted(count int, nextArea float64) bool {
	return count >= e.params.MaxDisks || !(nextArea > e.params.MinDiskArea)
}

func (e *Engine) terminate(s State, attempts int) {
	cur := e.cur
	cur.state = s
	cur.totalAttempts += int64(attempts)
	e.logger.Debug("run stopped",
		zap.Stringer("state", s),
		zap.Int("k", cur.k),
		zap.Int("disk_count", cur.diskCount),
		zap.Int("attempts", attempts),
	)
}

func (e *Engine) outcome(kind Kind, d *geometry.Disk, attempts int) Outcome {
	cur := e.cur
	return Outcome{
		Kind:           kind,
		Disk:           d,
		K:              cur.k,
		DiskCount:      cur.diskCount,
		CoveredArea:    cur.covered,
		PercentCovered: e.percent(cur.covered),
		Attempts:       attempts,
	}
}

func (e *Engine) percent(covered float64) float64 {
	return 100 * covered / e.box.Area
}

// Summary is Snapshot without the disk list.
func (e *Engine) Summary() Snapshot {
	cur := e.cur
	next := e.seq.Area(cur.k)
	return Snapshot{
		Params:         e.params,
		Formula:        e.seq.String(),
		State:          cur.state,
		K:              cur.k,
		DiskCount:      cur.diskCount,
		CoveredArea:    cur.covered,
		PercentCovered: e.percent(cur.covered),
		NextArea:       next,
		NextRadius:     e.dim.RadiusFromArea(next),
		LastArea:       cur.lastArea,
		Container: Box{
			Dimension:  e.dim.Rank(),
			Side:       e.box.Side,
			Area:       e.box.Area,
			Convergent: e.box.Convergent,
		},
		TotalAttempts: cur.totalAttempts,
	}
}

// Snapshot returns the full state of the run including a copy of the disks.
func (e *Engine) Snapshot() Snapshot {
	s := e.Summary()
	s.Disks = e.Disks()
	return s
}
