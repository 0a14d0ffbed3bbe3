// Package action runs the convert, join and match workflows end to end.
//
// Every run discovers its input files, parses each one into a dataset and
// records a per-file result, transforms the parsed datasets into one and
// exports it. The run and its file results go to the optional ledger, and a
// summary is sent to the optional notifier once the run is over.
package action

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/cageconvert/internal/config"
	"github.com/rewired-gh/cageconvert/internal/dataset"
	"github.com/rewired-gh/cageconvert/internal/export"
	"github.com/rewired-gh/cageconvert/internal/logger"
	"github.com/rewired-gh/cageconvert/internal/models"
	"github.com/rewired-gh/cageconvert/internal/scanner"
	"github.com/rewired-gh/cageconvert/internal/vendor"
)

// canonicalSystem is the parser used for files this tool wrote itself.
const canonicalSystem = "analysis-vis"

// ErrNoInput is returned when none of the scanned files could be parsed.
var ErrNoInput = errors.New("no input file could be parsed")

// Ledger stores runs and their file results.
type Ledger interface {
	StartRun(ctx context.Context, run *models.Run) error
	FinishRun(ctx context.Context, run *models.Run) error
	RecordFile(ctx context.Context, result *models.FileResult) error
}

// Notifier delivers the summary of a finished run.
type Notifier interface {
	SendSummary(run *models.Run, files []models.FileResult) error
}

// Runner executes actions with one configuration.
type Runner struct {
	cfg      *config.Config
	log      *logger.Logger
	ledger   Ledger
	notifier Notifier
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLedger records every run in l.
func WithLedger(l Ledger) Option {
	return func(r *Runner) { r.ledger = l }
}

// WithNotifier sends a summary to n after every run.
func WithNotifier(n Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// WithClock replaces time.Now, which also dates the output files.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a runner. A nil logger discards all output.
func New(cfg *config.Config, log *logger.Logger, opts ...Option) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	r := &Runner{cfg: cfg, log: log, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result is the outcome of one run.
type Result struct {
	Run     *models.Run
	Files   []models.FileResult
	Dataset *dataset.Dataset
}

// Parsed counts the files that were parsed successfully.
func (r *Result) Parsed() int {
	n := 0
	for _, f := range r.Files {
		if !f.Failed() {
			n++
		}
	}
	return n
}

// input is one successfully parsed file.
type input struct {
	name string
	data *dataset.Dataset
}

// combiner turns the parsed inputs into the dataset that is exported.
type combiner func(inputs []input, reducers dataset.Reducers) (*dataset.Dataset, error)

// Convert parses vendor export files and writes them as one canonical dataset.
func (r *Runner) Convert(ctx context.Context) (*Result, error) {
	return r.execute(ctx, models.ActionConvert, r.cfg.Input.System, r.convert)
}

// Join concatenates canonical files of one experiment in time.
func (r *Runner) Join(ctx context.Context) (*Result, error) {
	return r.execute(ctx, models.ActionJoin, canonicalSystem, r.join)
}

// Match aligns canonical files of several experiments to a common start,
// frequency and length.
func (r *Runner) Match(ctx context.Context) (*Result, error) {
	return r.execute(ctx, models.ActionMatch, canonicalSystem, r.match)
}

func (r *Runner) execute(ctx context.Context, action, system string, combine combiner) (*Result, error) {
	run := &models.Run{
		ID:        uuid.NewString(),
		Action:    action,
		System:    system,
		Input:     r.cfg.Input.Path,
		Output:    r.cfg.Output.Dir,
		Frequency: r.cfg.Process.Frequency,
		Status:    models.RunRunning,
		StartedAt: r.now(),
	}
	result := &Result{Run: run}

	if r.ledger != nil {
		if err := r.ledger.StartRun(ctx, run); err != nil {
			r.log.Warn("Failed to record start of run %s: %v", run.ID, err)
		}
	}
	r.log.Info("Starting %s run %s (system: %s, input: %s)", action, run.ID, system, run.Input)

	err := r.process(ctx, result, combine)

	run.FinishedAt = r.now()
	if err != nil {
		run.Status = models.RunFailed
		run.Error = err.Error()
		r.log.Error("Run %s failed: %v", run.ID, err)
	} else {
		run.Status = models.RunSucceeded
		r.log.Info("Run %s finished: %d/%d files parsed, %d outputs written",
			run.ID, result.Parsed(), len(result.Files), len(run.Outputs))
	}

	if r.ledger != nil {
		if ferr := r.ledger.FinishRun(context.WithoutCancel(ctx), run); ferr != nil {
			r.log.Warn("Failed to record end of run %s: %v", run.ID, ferr)
		}
	}
	if r.notifier != nil {
		if nerr := r.notifier.SendSummary(run, result.Files); nerr != nil {
			r.log.Warn("Failed to send run summary: %v", nerr)
		}
	}

	return result, err
}

func (r *Runner) process(ctx context.Context, result *Result, combine combiner) error {
	run := result.Run

	parser, err := r.parser(run.Action, run.System)
	if err != nil {
		return err
	}
	exporter, err := export.New(r.cfg.Output.Format, r.cfg.Output.Orientation, r.cfg.Output.Precision)
	if err != nil {
		return err
	}
	options, err := r.datasetOptions(parser)
	if err != nil {
		return err
	}

	files, err := scanner.New(r.cfg.Input.Path, r.cfg.Input.Extensions, r.cfg.Input.Pattern, r.cfg.Input.ExcludePattern).Scan()
	if err != nil {
		return fmt.Errorf("failed to scan input: %w", err)
	}
	r.log.Info("Found %d input files (%s)", len(files), scanner.TotalSize(files))

	var inputs []input
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		fr, d := r.load(run.ID, f, options)
		result.Files = append(result.Files, fr)
		if r.ledger != nil {
			if err := r.ledger.RecordFile(ctx, &fr); err != nil {
				r.log.Warn("Failed to record file %s: %v", f.Name, err)
			}
		}
		if d != nil {
			inputs = append(inputs, input{name: f.Name, data: d})
		}
	}
	if len(inputs) == 0 {
		return ErrNoInput
	}

	out, err := combine(inputs, parser.Spec().Reducers())
	if err != nil {
		return err
	}
	result.Dataset = out
	if run.Frequency == 0 {
		run.Frequency = out.Frequency()
	}

	meta := export.Metadata(out,
		export.Field{Key: "action", Value: run.Action},
		export.Field{Key: "system", Value: run.System},
		export.Field{Key: "run_id", Value: run.ID},
	)
	base := export.BaseName(run.StartedAt, r.cfg.Output.Suffix, run.Action)
	paths, err := exporter.Export(out, meta, r.cfg.Output.Dir, base)
	run.Outputs = paths
	if err != nil {
		return fmt.Errorf("failed to export: %w", err)
	}
	for _, p := range paths {
		r.log.Info("Results were saved to %s", p)
	}
	return nil
}

// parser builds the vendor parser. Input time formats and custom column
// specifications only apply to vendor files.
func (r *Runner) parser(action, system string) (vendor.Parser, error) {
	opts := vendor.Options{RepairHeader: r.cfg.Input.RepairHeader}
	if action == models.ActionConvert {
		opts.TimeFormat = r.cfg.Input.TimeFmtIn
		if r.cfg.Input.ColSpec != "" {
			spec, err := vendor.ReadSpecFile(r.cfg.Input.ColSpec)
			if err != nil {
				return nil, err
			}
			opts.Spec = spec
		}
	}
	return vendor.New(system, opts)
}

func (r *Runner) datasetOptions(parser vendor.Parser) ([]dataset.Option, error) {
	darkStart, err := dataset.ParseClock(r.cfg.Phase.DarkStart)
	if err != nil {
		return nil, err
	}
	darkEnd, err := dataset.ParseClock(r.cfg.Phase.DarkEnd)
	if err != nil {
		return nil, err
	}
	return []dataset.Option{
		dataset.WithLoader(vendor.Loader(parser)),
		dataset.WithSink(r.log),
		dataset.WithDarkPeriod(darkStart, darkEnd),
		dataset.WithForceRegularize(r.cfg.Process.ForceRegularize),
	}, nil
}

// load parses one file. A file that fails is reported in its result and
// skipped; it never fails the run on its own.
func (r *Runner) load(runID string, f scanner.FileInfo, options []dataset.Option) (models.FileResult, *dataset.Dataset) {
	res := models.FileResult{
		RunID:       runID,
		Path:        f.Path,
		Size:        f.Size,
		ProcessedAt: r.now(),
	}

	r.log.Debug("Parsing %s (%s)", f.Name, f.HumanSize())
	d, err := dataset.New(f.Path, options...)
	if err != nil {
		res.Status = models.FileFailed
		res.Error = err.Error()
		r.log.Warn("Skipping %s: %v", f.Name, err)
		return res, nil
	}

	res.Status = models.FileParsed
	res.Subjects = len(d.Subjects())
	res.Observations = d.Len()
	res.Frequency = d.Frequency()
	res.Regular = d.Regular()
	r.log.Info("Parsed %s: %d subjects, %d observations every %ds", f.Name, res.Subjects, res.Observations, res.Frequency)
	return res, d
}

// convert aggregates every file to the requested frequency and places the
// subjects of all files side by side.
func (r *Runner) convert(inputs []input, reducers dataset.Reducers) (*dataset.Dataset, error) {
	sets, err := r.aggregateEach(inputs, r.cfg.Process.Frequency, reducers)
	if err != nil {
		return nil, err
	}
	if len(sets) == 1 {
		return sets[0], nil
	}
	merged, err := dataset.Merge(sets...)
	if err != nil {
		return nil, fmt.Errorf("failed to merge files: %w", err)
	}
	return merged, nil
}

// join appends the recordings in time order and aggregates the result.
func (r *Runner) join(inputs []input, reducers dataset.Reducers) (*dataset.Dataset, error) {
	sets := make([]*dataset.Dataset, len(inputs))
	for i, in := range inputs {
		sets[i] = in.data
	}
	joined, err := dataset.Join(sets...)
	if err != nil {
		return nil, fmt.Errorf("failed to join files: %w", err)
	}
	r.log.Info("Joined %d files: %d subjects from %s to %s",
		len(sets), len(joined.Subjects()), joined.Start().Format(dataset.TimeLayout), joined.End().Format(dataset.TimeLayout))

	if freq := r.cfg.Process.Frequency; freq > 0 {
		if joined, err = joined.Aggregate(freq, reducers); err != nil {
			return nil, err
		}
	}
	return joined, nil
}

// match drops each experiment's incomplete first phase, moves all of them to
// the configured start date at the clock time of the first experiment,
// aggregates them to one frequency and cuts them to a common length.
func (r *Runner) match(inputs []input, reducers dataset.Reducers) (*dataset.Dataset, error) {
	trimmed := make([]input, len(inputs))
	for i, in := range inputs {
		d, err := in.data.RemoveIncompleteCycle()
		if err != nil {
			return nil, fmt.Errorf("failed to remove incomplete cycle of %s: %w", in.name, err)
		}
		trimmed[i] = input{name: in.name, data: d}
	}

	clock := dataset.ClockOf(trimmed[0].data.Start()).String()
	r.log.Debug("Matching %d experiments to start at %s %s", len(trimmed), r.cfg.Process.MatchStart, clock)
	for i, in := range trimmed {
		d, err := in.data.SetDatetimeStart(r.cfg.Process.MatchStart, clock)
		if err != nil {
			return nil, fmt.Errorf("failed to shift %s: %w", in.name, err)
		}
		trimmed[i].data = d
	}

	freq := commonFrequency(trimmed, r.cfg.Process.Frequency)
	r.log.Info("Common frequency is %ds", freq)
	sets, err := r.aggregateEach(trimmed, freq, reducers)
	if err != nil {
		return nil, err
	}

	if sets, err = disambiguate(trimmed, sets); err != nil {
		return nil, err
	}
	merged, err := dataset.Merge(sets...)
	if err != nil {
		return nil, fmt.Errorf("failed to merge experiments: %w", err)
	}
	return merged.EqualizeObservations(r.cfg.Process.TrimFromEnd)
}

// aggregateEach regularizes every input and aggregates it to freq; zero keeps
// the base frequency.
func (r *Runner) aggregateEach(inputs []input, freq int64, reducers dataset.Reducers) ([]*dataset.Dataset, error) {
	sets := make([]*dataset.Dataset, len(inputs))
	for i, in := range inputs {
		regular, err := in.data.Regularize()
		if err != nil {
			return nil, fmt.Errorf("failed to regularize %s: %w", in.name, err)
		}
		if regular != in.data {
			r.log.Info("Regularized %s to %ds", in.name, regular.Frequency())
		}
		sets[i] = regular
		if freq <= 0 {
			continue
		}
		d, err := regular.Aggregate(freq, reducers)
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate %s: %w", in.name, err)
		}
		r.log.Debug("Aggregated %s from %ds to %ds", in.name, regular.Frequency(), freq)
		sets[i] = d
	}
	return sets, nil
}

// commonFrequency is the requested frequency, or the coarsest base frequency
// among the inputs when none was requested.
func commonFrequency(inputs []input, requested int64) int64 {
	if requested > 0 {
		return requested
	}
	var freq int64
	for _, in := range inputs {
		if f := in.data.Frequency(); f > freq {
			freq = f
		}
	}
	return freq
}

// disambiguate prefixes subject names with their file name when two
// experiments share a subject name.
func disambiguate(inputs []input, sets []*dataset.Dataset) ([]*dataset.Dataset, error) {
	seen := make(map[string]int)
	for _, d := range sets {
		for _, s := range d.Subjects() {
			seen[s]++
		}
	}
	clash := false
	for _, n := range seen {
		if n > 1 {
			clash = true
			break
		}
	}
	if !clash {
		return sets, nil
	}

	out := make([]*dataset.Dataset, len(sets))
	for i, d := range sets {
		prefix := strings.TrimSuffix(inputs[i].name, filepath.Ext(inputs[i].name))
		renamed, err := d.RenameSubjectsFunc(func(s string) string { return prefix + "_" + s })
		if err != nil {
			return nil, fmt.Errorf("failed to rename subjects of %s: %w", inputs[i].name, err)
		}
		out[i] = renamed
	}
	return out, nil
}
