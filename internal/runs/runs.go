package runs

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eugenenazirov/zetafill/internal/analysis"
	"github.com/eugenenazirov/zetafill/internal/geometry"
	"github.com/eugenenazirov/zetafill/internal/packing"
)

var (
	// ErrNotFound indicates no live run has the requested id.
	ErrNotFound = errors.New("run not found")
	// ErrTooManyRuns indicates the run limit is reached.
	ErrTooManyRuns = errors.New("too many live runs")
)

// Defaults fill zero fields of incoming packing.Params. Zero values here
// defer to the packing package defaults.
type Defaults struct {
	GridSize    int
	MaxAttempts int
	MaxDisks    int
	MinDiskArea float64
}

func (d Defaults) apply(p packing.Params) packing.Params {
	if p.GridSize == 0 {
		p.GridSize = d.GridSize
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.MaxDisks == 0 {
		p.MaxDisks = d.MaxDisks
	}
	if p.MinDiskArea == 0 {
		p.MinDiskArea = d.MinDiskArea
	}
	return p
}

// Info is the externally visible state of a run.
type Info struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	packing.Snapshot
}

// Step is the result of advancing a run.
type Step struct {
	Outcome packing.Outcome `json:"outcome"`
	Placed  int             `json:"placed"`
	Run     Info            `json:"run"`
}

// Analysis holds the statistic that applies to the run's dimension.
type Analysis struct {
	Buffers *analysis.Buffers `json:"buffers,omitempty"`
	Gasket  *analysis.Gasket  `json:"gasket,omitempty"`
}

type run struct {
	id      string
	created time.Time

	mu     sync.Mutex
	engine *packing.Engine
}

func (r *run) info() Info {
	return Info{ID: r.id, CreatedAt: r.created, Snapshot: r.engine.Summary()}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger passed to every engine.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithDefaults sets the parameter defaults applied on Create.
func WithDefaults(d Defaults) Option {
	return func(m *Manager) {
		m.defaults = d
	}
}

// WithMaxRuns caps the number of live runs. Zero means no limit.
func WithMaxRuns(n int) Option {
	return func(m *Manager) {
		m.maxRuns = n
	}
}

// Manager owns the live runs.
type Manager struct {
	logger   *zap.Logger
	clock    func() time.Time
	defaults Defaults
	maxRuns  int

	mu   sync.RWMutex
	runs map[string]*run
}

// NewManager returns an empty Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		logger: zap.NewNop(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
		runs: make(map[string]*run),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create builds an idle run from p.
func (m *Manager) Create(p packing.Params) (Info, error) {
	r, err := m.newRun(p)
	if err != nil {
		return Info{}, err
	}
	if err := m.insert(r); err != nil {
		return Info{}, err
	}
	m.logger.Info("run created",
		zap.String("run_id", r.id),
		zap.String("formula", r.engine.Sequence().String()),
		zap.Int("dimension", r.engine.Params().Dimension),
	)
	return r.info(), nil
}

// Restore creates a run from p and replays disks into it.
func (m *Manager) Restore(p packing.Params, disks []geometry.Disk) (Info, error) {
	r, err := m.newRun(p)
	if err != nil {
		return Info{}, err
	}
	if _, err := r.engine.Replay(disks); err != nil {
		return Info{}, err
	}
	if err := m.insert(r); err != nil {
		return Info{}, err
	}
	m.logger.Info("run restored", zap.String("run_id", r.id), zap.Int("disk_count", len(disks)))
	return r.info(), nil
}

func (m *Manager) newRun(p packing.Params) (*run, error) {
	e, err := packing.New(m.defaults.apply(p), packing.WithLogger(m.logger))
	if err != nil {
		return nil, err
	}
	return &run{id: uuid.NewString(), created: m.clock(), engine: e}, nil
}

func (m *Manager) insert(r *run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxRuns > 0 && len(m.runs) >= m.maxRuns {
		return fmt.Errorf("%w: limit %d", ErrTooManyRuns, m.maxRuns)
	}
	m.runs[r.id] = r
	return nil
}

func (m *Manager) lookup(id string) (*run, error) {
	m.mu.RLock()
	r, ok := m.runs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

// with runs fn on the run while holding its lock.
func (m *Manager) with(id string, fn func(r *run) error) error {
	r, err := m.lookup(id)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r)
}

// Get returns the run summary.
func (m *Manager) Get(id string) (Info, error) {
	var info Info
	err := m.with(id, func(r *run) error {
		info = r.info()
		return nil
	})
	return info, err
}

// List returns every run ordered by creation time.
func (m *Manager) List() []Info {
	m.mu.RLock()
	all := make([]*run, 0, len(m.runs))
	for _, r := range m.runs {
		all = append(all, r)
	}
	m.mu.RUnlock()

	out := make([]Info, 0, len(all))
	for _, r := range all {
		r.mu.Lock()
		out = append(out, r.info())
		r.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b Info) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Delete discards a run.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.runs, id)
	m.logger.Info("run deleted", zap.String("run_id", id))
	return nil
}

// Advance places up to steps disks.
func (m *Manager) Advance(ctx context.Context, id string, steps int) (Step, error) {
	var step Step
	err := m.with(id, func(r *run) error {
		out, placed, err := r.engine.AdvanceN(ctx, steps)
		if err != nil {
			return err
		}
		step = Step{Outcome: out, Placed: placed, Run: r.info()}
		return nil
	})
	return step, err
}

// Start moves the run to Running, resetting a stopped run.
func (m *Manager) Start(id string) (Info, error) {
	return m.transition(id, (*packing.Engine).Start)
}

// Pause moves a running run to Paused.
func (m *Manager) Pause(id string) (Info, error) {
	return m.transition(id, (*packing.Engine).Pause)
}

// Reset discards the disks of a run.
func (m *Manager) Reset(id string) (Info, error) {
	return m.transition(id, (*packing.Engine).Reset)
}

func (m *Manager) transition(id string, fn func(*packing.Engine) error) (Info, error) {
	var info Info
	err := m.with(id, func(r *run) error {
		if err := fn(r.engine); err != nil {
			return err
		}
		info = r.info()
		return nil
	})
	return info, err
}

// Export returns the full snapshot of a run including its disks.
func (m *Manager) Export(id string) (packing.Snapshot, error) {
	var snap packing.Snapshot
	err := m.with(id, func(r *run) error {
		snap = r.engine.Snapshot()
		return nil
	})
	return snap, err
}

// Replay rebuilds a run from disks. A failed replay leaves the run as it was.
func (m *Manager) Replay(id string, disks []geometry.Disk) (Info, error) {
	var info Info
	err := m.with(id, func(r *run) error {
		if _, err := r.engine.Replay(disks); err != nil {
			return err
		}
		info = r.info()
		return nil
	})
	return info, err
}

// Analyze computes buffer statistics for 1-D runs and gasket statistics for
// 2-D runs.
func (m *Manager) Analyze(id string) (Analysis, error) {
	snap, err := m.Export(id)
	if err != nil {
		return Analysis{}, err
	}
	if snap.Container.Dimension == 1 {
		b, err := analysis.BuffersOf(snap)
		if err != nil {
			return Analysis{}, err
		}
		return Analysis{Buffers: &b}, nil
	}
	g, err := analysis.GasketOf(snap)
	if err != nil {
		return Analysis{}, err
	}
	return Analysis{Gasket: &g}, nil
}

// Len returns the number of live runs.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}
