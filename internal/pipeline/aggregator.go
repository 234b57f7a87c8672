// Package pipeline runs the frame-to-record extraction over an ordered set of
// frames and accounts for every accepted and rejected frame.
package pipeline

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/hudscan/internal/extract"
	"github.com/MeKo-Tech/hudscan/internal/frames"
	"github.com/MeKo-Tech/hudscan/internal/region"
	"github.com/MeKo-Tech/hudscan/internal/validate"
	"github.com/google/uuid"
)

// FieldExtractor recognizes the text of every region of a frame.
type FieldExtractor interface {
	Extract(ctx context.Context, frame image.Image, regions []region.Region) (map[string]extract.RawFieldText, error)
}

// CropDumper is implemented by extractors that can write their preprocessed
// crops for inspection.
type CropDumper interface {
	DumpCrops(dir, frameName string, frame image.Image, regions []region.Region)
}

// ImageOpener decodes a frame file.
type ImageOpener func(path string) (image.Image, error)

// SizeProber reads the pixel bounds of a frame file without decoding it.
type SizeProber func(path string) (image.Rectangle, error)

// Aggregator drives extraction and validation over a run of frames.
type Aggregator struct {
	catalog   *region.Catalog
	extractor FieldExtractor
	open      ImageOpener
	probe     SizeProber
	workers   int
	progress  ProgressCallback
	onOutcome func(FrameOutcome)
	debugDir  string
	runID     string
	logger    *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithWorkers sets the number of frames processed concurrently. Values below
// one mean sequential processing.
func WithWorkers(n int) Option {
	return func(a *Aggregator) { a.workers = max(n, 1) }
}

// WithProgress reports progress to cb.
func WithProgress(cb ProgressCallback) Option {
	return func(a *Aggregator) {
		if cb != nil {
			a.progress = cb
		}
	}
}

// WithOutcomeHook calls fn for every frame, in frame order, from a single
// goroutine.
func WithOutcomeHook(fn func(FrameOutcome)) Option {
	return func(a *Aggregator) { a.onOutcome = fn }
}

// WithDebugDir writes the preprocessed crops of every frame into dir when
// the extractor supports it.
func WithDebugDir(dir string) Option {
	return func(a *Aggregator) { a.debugDir = dir }
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(a *Aggregator) { a.runID = id }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithImageOpener replaces the frame decoder.
func WithImageOpener(open ImageOpener, probe SizeProber) Option {
	return func(a *Aggregator) {
		a.open = open
		a.probe = probe
	}
}

// NewAggregator creates an Aggregator for catalog and extractor.
func NewAggregator(catalog *region.Catalog, extractor FieldExtractor, opts ...Option) *Aggregator {
	a := &Aggregator{
		catalog:   catalog,
		extractor: extractor,
		open:      frames.Open,
		probe:     frames.Size,
		workers:   1,
		progress:  NoOpProgressCallback{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run processes samples and returns the accepted records in frame order
// together with the run summary. A rejected frame never aborts the run; a
// misplaced region catalog or context cancellation does.
func (a *Aggregator) Run(ctx context.Context, samples []frames.FrameSample) (*Result, error) {
	start := time.Now()
	runID := a.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := a.logger.With("run_id", runID)
	result := &Result{
		RunID:   runID,
		Records: make([]validate.Record, 0, len(samples)),
		Workers: min(a.workers, max(len(samples), 1)),
	}

	logger.Info("Starting extraction run", "frames", len(samples), "workers", result.Workers)

	if len(samples) == 0 {
		logger.Info("Extraction run finished", "accepted", 0, "rejected", 0, "error_rate", "undefined")
		recordRunMetrics(result.Summary, nil)
		return result, nil
	}

	if err := a.checkBounds(samples); err != nil {
		recordRunMetrics(result.Summary, err)
		return nil, err
	}

	regions := a.catalog.Regions()
	a.progress.OnStart(len(samples))
	processed := 0
	err := a.dispatch(ctx, samples, regions, func(fo FrameOutcome) {
		processed++
		result.Summary.Add(fo.Outcome)
		if fo.Outcome.Accepted() {
			result.Records = append(result.Records, *fo.Outcome.Record)
		} else if rej := fo.Outcome.Rejection; rej != nil {
			logger.Debug("Frame rejected",
				"frame", fo.Frame.Name(),
				"index", fo.Frame.Index,
				"reason", rej.Reason,
				"field", rej.Field,
				"detail", rej.Detail,
			)
		}
		recordOutcomeMetrics(fo)
		a.progress.OnProgress(processed, len(samples), result.Summary)
		if a.onOutcome != nil {
			a.onOutcome(fo)
		}
	})
	result.Duration = time.Since(start)
	recordRunMetrics(result.Summary, err)
	if err != nil {
		a.progress.OnError(processed, err)
		logger.Error("Extraction run aborted", "processed", processed, "error", err)
		return nil, err
	}
	a.progress.OnComplete(result.Summary)

	rate, _ := result.Summary.ErrorRate()
	logger.Info("Extraction run finished",
		"accepted", result.Summary.Accepted,
		"rejected", result.Summary.Rejected,
		"error_rate", rate,
		"duration", result.Duration.Round(time.Millisecond),
	)
	return result, nil
}

// checkBounds validates the catalog against the first frame whose header can
// be read. When no frame is readable every frame will be rejected anyway.
func (a *Aggregator) checkBounds(samples []frames.FrameSample) error {
	for _, s := range samples {
		bounds, err := a.probe(s.Path)
		if err != nil {
			continue
		}
		return a.catalog.ValidateBounds(bounds)
	}
	return nil
}

type frameJob struct {
	pos    int
	sample frames.FrameSample
}

type frameResult struct {
	pos     int
	outcome validate.Outcome
	err     error
}

// dispatch processes samples on a bounded worker pool and hands outcomes to
// emit strictly in input order.
func (a *Aggregator) dispatch(
	parent context.Context,
	samples []frames.FrameSample,
	regions []region.Region,
	emit func(FrameOutcome),
) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	workers := min(a.workers, len(samples))
	jobs := make(chan frameJob)
	results := make(chan frameResult, workers)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go a.worker(ctx, regions, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i, s := range samples {
			select {
			case jobs <- frameJob{pos: i, sample: s}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	pending := make(map[int]validate.Outcome)
	next := 0
	var firstErr error
	for res := range results {
		if firstErr != nil {
			continue
		}
		if res.err != nil {
			firstErr = res.err
			cancel()
			continue
		}
		pending[res.pos] = res.outcome
		for {
			o, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			emit(FrameOutcome{Frame: samples[next], Outcome: o})
			next++
		}
	}

	if firstErr != nil {
		return firstErr
	}
	if err := parent.Err(); err != nil {
		return err
	}
	if next != len(samples) {
		return errors.New("pipeline stopped before all frames were processed")
	}
	return nil
}

func (a *Aggregator) worker(
	ctx context.Context,
	regions []region.Region,
	jobs <-chan frameJob,
	results chan<- frameResult,
	wg *sync.WaitGroup,
) {
	defer wg.Done()
	activeWorkers.Inc()
	defer activeWorkers.Dec()

	for job := range jobs {
		outcome, err := a.processFrame(ctx, job.sample, regions)
		select {
		case results <- frameResult{pos: job.pos, outcome: outcome, err: err}:
		case <-ctx.Done():
			return
		}
	}
}

// processFrame decodes, extracts and validates one frame. The decoded image
// does not outlive the call. Only context cancellation is returned as an
// error; every other failure becomes a rejection.
func (a *Aggregator) processFrame(ctx context.Context, s frames.FrameSample, regions []region.Region) (validate.Outcome, error) {
	start := time.Now()
	defer func() { frameProcessingDuration.Observe(time.Since(start).Seconds()) }()

	if err := ctx.Err(); err != nil {
		return validate.Outcome{}, err
	}

	img, err := a.open(s.Path)
	if err != nil {
		return validate.Reject(validate.ReasonFrameUnreadable, "", err.Error()), nil
	}

	if a.debugDir != "" {
		if d, ok := a.extractor.(CropDumper); ok {
			d.DumpCrops(a.debugDir, s.Name(), img, regions)
		}
	}

	raw, err := a.extractor.Extract(ctx, img, regions)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return validate.Outcome{}, ctxErr
		}
		var rf *extract.RecognitionFailure
		if errors.As(err, &rf) {
			return validate.Reject(validate.ReasonRecognitionFailure, rf.Field, rf.Err.Error()), nil
		}
		// The frame decoded but does not match the first frame's layout.
		return validate.Reject(validate.ReasonFrameUnreadable, "", err.Error()), nil
	}

	out := validate.Validate(raw)
	if out.Record != nil {
		out.Record.FrameIndex = s.Index
		out.Record.FrameOffset = s.Offset
	}
	return out, nil
}
