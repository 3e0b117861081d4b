package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/eugenenazirov/zetafill/internal/packing"
)

// DefaultJamDisks caps each jam-statistics trial when Params.MaxDisks is unset.
const DefaultJamDisks = 200

// ErrInvalidTrials is returned for a non-positive trial count.
var ErrInvalidTrials = errors.New("trials must be positive")

// Trial is the result of one run.
type Trial struct {
	Seed     uint64       `json:"seed"`
	Disks    int          `json:"disks"`
	Outcome  packing.Kind `json:"outcome"`
	Attempts int64        `json:"attempts"`
}

// Bin counts the trials that stopped after Disks placements.
type Bin struct {
	Disks int `json:"disks"`
	Count int `json:"count"`
}

// JamReport summarises a batch of trials.
type JamReport struct {
	Trials    []Trial `json:"trials"`
	Jammed    int     `json:"jammed"`
	Exhausted int     `json:"exhausted"`
	MinDisks  int     `json:"minDisks"`
	MaxDisks  int     `json:"maxDisks"`
	MeanDisks float64 `json:"meanDisks"`
	Histogram []Bin   `json:"histogram"`
}

// JamStats runs trials independent engines with seeds p.Seed, p.Seed+1, ...
// on up to workers goroutines and histograms how many disks each placed
// before it jammed or hit the limit. workers <= 0 uses GOMAXPROCS.
func JamStats(ctx context.Context, p packing.Params, trials, workers int) (JamReport, error) {
	if trials < 1 {
		return JamReport{}, fmt.Errorf("%w, got %d", ErrInvalidTrials, trials)
	}
	if p.MaxDisks == 0 {
		p.MaxDisks = DefaultJamDisks
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	// Fail fast on bad parameters before starting goroutines.
	if _, err := packing.New(p); err != nil {
		return JamReport{}, err
	}

	results := make([]Trial, trials)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trials {
		g.Go(func() error {
			tp := p
			tp.Seed = p.Seed + uint64(i)
			t, err := runTrial(ctx, tp)
			if err != nil {
				return err
			}
			results[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return JamReport{}, err
	}
	return summarize(results), nil
}

func runTrial(ctx context.Context, p packing.Params) (Trial, error) {
	e, err := packing.New(p)
	if err != nil {
		return Trial{}, err
	}
	// A run always stops by MaxDisks, so this never places n disks.
	last, _, err := e.AdvanceN(ctx, e.Params().MaxDisks+1)
	if err != nil {
		return Trial{}, err
	}
	return Trial{
		Seed:     p.Seed,
		Disks:    e.DiskCount(),
		Outcome:  last.Kind,
		Attempts: e.Summary().TotalAttempts,
	}, nil
}

func summarize(trials []Trial) JamReport {
	r := JamReport{Trials: trials, MinDisks: math.MaxInt}
	counts := make(map[int]int)
	var total int
	for _, t := range trials {
		switch t.Outcome {
		case packing.KindJammed:
			r.Jammed++
		case packing.KindExhausted:
			r.Exhausted++
		}
		counts[t.Disks]++
		total += t.Disks
		r.MinDisks = min(r.MinDisks, t.Disks)
		r.MaxDisks = max(r.MaxDisks, t.Disks)
	}
	r.MeanDisks = float64(total) / float64(len(trials))

	r.Histogram = make([]Bin, 0, len(counts))
	for disks, count := range counts {
		r.Histogram = append(r.Histogram, Bin{Disks: disks, Count: count})
	}
	slices.SortFunc(r.Histogram, func(a, b Bin) int { return a.Disks - b.Disks })
	return r
}
