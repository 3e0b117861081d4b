// Command jamstats runs many independent packings of one parameter set and
// reports how many disks each placed before it jammed or hit its limit.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/zetafill/internal/analysis"
	"github.com/eugenenazirov/zetafill/internal/geometry"
	"github.com/eugenenazirov/zetafill/internal/logging"
	"github.com/eugenenazirov/zetafill/internal/packing"
	"github.com/eugenenazirov/zetafill/internal/sequence"
)

type options struct {
	paramsFile  string
	dimension   int
	family      string
	exponent    float64
	offset      float64
	base        float64
	area        float64
	sizing      string
	boxSide     float64
	initialK    int
	maxAttempts int
	maxDisks    int
	minDiskArea float64
	gridSize    int
	placement   string
	seed        uint64
	trials      int
	workers     int
	jsonOutput  bool
	logLevel    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, styleError.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	var opts options
	app := kingpin.New("jamstats", "Histogram the number of disks random packings place before jamming")
	set := make(map[string]*bool)
	flag := func(name, help string) *kingpin.FlagClause {
		set[name] = new(bool)
		return app.Flag(name, help).IsSetByUser(set[name])
	}

	app.Flag("params", "YAML or TOML file with run parameters; flags override it").StringVar(&opts.paramsFile)
	flag("dimension", "1 for segments on a line, 2 for disks in a square").Default("2").IntVar(&opts.dimension)
	flag("family", "Area sequence family").Default("fixed").EnumVar(&opts.family, familyNames()...)
	flag("s", "Exponent for power and hurwitz sequences").Float64Var(&opts.exponent)
	flag("a", "Offset for harmonic and hurwitz sequences").Float64Var(&opts.offset)
	flag("base", "Base for the geometric sequence").Float64Var(&opts.base)
	flag("area", "Disk area for the fixed sequence").Default("0.01").Float64Var(&opts.area)
	flag("sizing", "Container sizing (fixed or scaled)").Default("fixed").EnumVar(&opts.sizing, "fixed", "scaled")
	flag("box-side", "Container side for fixed sizing").Default("1").Float64Var(&opts.boxSide)
	flag("initial-k", "First sequence index to place").IntVar(&opts.initialK)
	flag("max-attempts", "Random positions tried per disk before a jam").Default("100000").IntVar(&opts.maxAttempts)
	flag("max-disks", "Disks per trial before it counts as exhausted").Default(strconv.Itoa(analysis.DefaultJamDisks)).IntVar(&opts.maxDisks)
	flag("min-disk-area", "Stop a trial once the next area is at or below this").Float64Var(&opts.minDiskArea)
	flag("grid-size", "Spatial grid resolution").IntVar(&opts.gridSize)
	flag("placement", "Placement strategy").Default(string(packing.PlacementRandom)).EnumVar(&opts.placement,
		string(packing.PlacementRandom), string(packing.PlacementLeftToRight))
	flag("seed", "Seed of the first trial; trial i uses seed+i").Default("1").Uint64Var(&opts.seed)
	app.Flag("trials", "Number of independent runs").Default("100").IntVar(&opts.trials)
	app.Flag("workers", "Concurrent runs (0 uses every CPU)").IntVar(&opts.workers)
	app.Flag("json", "Print the report as JSON").BoolVar(&opts.jsonOutput)
	app.Flag("log-level", "Log level (debug, info, warn, error)").Default("warn").EnumVar(&opts.logLevel, "debug", "info", "warn", "error")

	if _, err := app.Parse(args); err != nil {
		return err
	}

	logger, err := logging.New(opts.logLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	p, err := buildParams(opts, set)
	if err != nil {
		return err
	}

	start := time.Now()
	report, err := analysis.JamStats(ctx, p, opts.trials, opts.workers)
	if err != nil {
		return fmt.Errorf("jam statistics: %w", err)
	}
	logger.Info("jam statistics complete",
		zap.Int("trials", opts.trials),
		zap.Int("jammed", report.Jammed),
		zap.Duration("elapsed", time.Since(start)),
	)

	if opts.jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return renderReport(stdout, p, report)
}

func familyNames() []string {
	fams := sequence.Families()
	out := make([]string, len(fams))
	for i, f := range fams {
		out[i] = string(f)
	}
	return out
}

// buildParams starts from the params file, if any, and applies flags. Without
// a file every flag applies, including defaults; with one only flags the user
// set override it.
func buildParams(opts options, set map[string]*bool) (packing.Params, error) {
	var p packing.Params
	fromFile := opts.paramsFile != ""
	if fromFile {
		loaded, err := loadParams(opts.paramsFile)
		if err != nil {
			return packing.Params{}, err
		}
		p = loaded
	}
	apply := func(name string) bool {
		if !fromFile {
			return true
		}
		byUser, ok := set[name]
		return ok && *byUser
	}

	if apply("dimension") {
		p.Dimension = opts.dimension
	}
	if apply("family") {
		p.Sequence.Family = sequence.Family(opts.family)
	}
	if apply("s") {
		p.Sequence.Exponent = opts.exponent
	}
	if apply("a") {
		p.Sequence.Offset = opts.offset
	}
	if apply("base") {
		p.Sequence.Base = opts.base
	}
	if apply("area") {
		p.Sequence.Area = opts.area
	}
	if apply("sizing") {
		p.Sizing = geometry.Sizing(opts.sizing)
	}
	if apply("box-side") {
		p.BoxSide = opts.boxSide
	}
	if apply("initial-k") {
		p.InitialK = opts.initialK
	}
	if apply("max-attempts") {
		p.MaxAttempts = opts.maxAttempts
	}
	if apply("max-disks") {
		p.MaxDisks = opts.maxDisks
	}
	if apply("min-disk-area") {
		p.MinDiskArea = opts.minDiskArea
	}
	if apply("grid-size") {
		p.GridSize = opts.gridSize
	}
	if apply("placement") {
		p.Placement = packing.Placement(opts.placement)
	}
	if apply("seed") {
		p.Seed = opts.seed
	}
	return p, nil
}

// loadParams decodes run parameters from a YAML or TOML file.
func loadParams(path string) (packing.Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return packing.Params{}, fmt.Errorf("read params: %w", err)
	}
	var p packing.Params
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, &p); err != nil {
			return packing.Params{}, fmt.Errorf("parse TOML params: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return packing.Params{}, fmt.Errorf("parse YAML params: %w", err)
		}
	default:
		return packing.Params{}, fmt.Errorf("unsupported params file extension %q", ext)
	}
	return p, nil
}
