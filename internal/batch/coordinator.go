// Package batch drives the per-title downloads for one reconciliation run.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/datfetch/datfetch/internal/fetch"
	"github.com/datfetch/datfetch/internal/logctx"
	"github.com/datfetch/datfetch/internal/reconcile"
)

const dirPerm = 0755

// Outcome error kinds. An empty kind means success.
const (
	ErrKindNoMatch    = "no_match"
	ErrKindNetwork    = "network"
	ErrKindFilesystem = "filesystem"
	ErrKindCancelled  = "cancelled"
)

// Outcome records the terminal state of one title: downloaded, failed, or
// never matched to a remote file. Appended to the run log and never mutated.
type Outcome struct {
	Title    string
	Filename string
	Bytes    int64
	Elapsed  time.Duration
	Success  bool
	ErrKind  string
}

// OverallSample reports batch-wide progress after each completed record.
type OverallSample struct {
	Completed  int
	Total      int
	BytesDone  int64
	BytesTotal int64
	Rate       float64
	ETA        time.Duration
}

// OverallProgressFunc receives an OverallSample after every record completes.
type OverallProgressFunc func(sample OverallSample)

// ItemProgressFunc observes per-transfer progress alongside the title it
// belongs to.
type ItemProgressFunc func(title string, sample fetch.Sample)

// Coordinator sequences the fetches for a batch of match records. Transfers
// run strictly one at a time by default, a politeness choice towards the
// remote host; MaxParallel raises that to a bounded worker pool.
type Coordinator struct {
	fetcher     *fetch.Fetcher
	maxParallel int

	// OnItemProgress, when set, receives the per-transfer samples the
	// fetcher emits.
	OnItemProgress ItemProgressFunc
}

// NewCoordinator creates a Coordinator. maxParallel values below 1 are
// treated as sequential.
func NewCoordinator(fetcher *fetch.Fetcher, maxParallel int) *Coordinator {
	if maxParallel < 1 {
		maxParallel = 1
	}

	return &Coordinator{fetcher: fetcher, maxParallel: maxParallel}
}

// Run processes every match record in order and returns one outcome per
// record, in input order. Unmatched records are recorded without any network
// activity; a failed download is recorded and never aborts the batch.
// Cancellation stops the batch between records and returns the outcomes
// accumulated so far. Only a non-creatable destination directory fails the
// run as a whole.
func (c *Coordinator) Run(ctx context.Context, records []reconcile.MatchRecord, destDir string, onOverall OverallProgressFunc) ([]Outcome, error) {
	if err := os.MkdirAll(destDir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create destination directory %s: %w", destDir, err)
	}

	if c.maxParallel > 1 {
		return c.runParallel(ctx, records, destDir, onOverall)
	}

	return c.runSequential(ctx, records, destDir, onOverall)
}

func (c *Coordinator) runSequential(ctx context.Context, records []reconcile.MatchRecord, destDir string, onOverall OverallProgressFunc) ([]Outcome, error) {
	logger := logctx.LoggerFromContext(ctx)
	agg := newAggregator(records)
	outcomes := make([]Outcome, 0, len(records))

	for i, record := range records {
		if ctx.Err() != nil {
			logger.Info("batch cancelled", "completed", len(outcomes), "total", len(records))

			return outcomes, nil
		}

		outcome := c.processRecord(ctx, record, destDir)
		outcomes = append(outcomes, outcome)

		agg.complete(outcome)
		if onOverall != nil {
			onOverall(agg.sample(i+1, len(records)))
		}
	}

	return outcomes, nil
}

// runParallel is the bounded worker-pool variant. Outcomes land in a slice
// indexed by input position, so the returned order still matches the input
// regardless of which transfer finishes first.
func (c *Coordinator) runParallel(ctx context.Context, records []reconcile.MatchRecord, destDir string, onOverall OverallProgressFunc) ([]Outcome, error) {
	agg := newAggregator(records)
	outcomes := make([]Outcome, len(records))
	scheduled := make([]bool, len(records))

	var (
		mu        sync.Mutex
		completed int
	)

	wg, runCtx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, c.maxParallel)

	for i := range records {
		// Cancellation stops scheduling; in-flight transfers drain below.
		if ctx.Err() != nil {
			break
		}

		record := records[i]
		idx := i
		scheduled[i] = true
		sem <- struct{}{}

		wg.Go(func() error {
			defer func() { <-sem }()

			outcome := c.processRecord(runCtx, record, destDir)

			mu.Lock()
			outcomes[idx] = outcome
			completed++
			agg.complete(outcome)

			if onOverall != nil {
				onOverall(agg.sample(completed, len(records)))
			}
			mu.Unlock()

			// Failures are recorded, never propagated; returning an error
			// here would cancel the sibling transfers.
			return nil
		})
	}

	_ = wg.Wait()

	out := make([]Outcome, 0, len(outcomes))
	for i, o := range outcomes {
		if scheduled[i] {
			out = append(out, o)
		}
	}

	return out, nil
}

// processRecord turns one match record into one outcome.
func (c *Coordinator) processRecord(ctx context.Context, record reconcile.MatchRecord, destDir string) Outcome {
	logger := logctx.LoggerFromContext(ctx).With("title", record.Title.Name)

	if !record.Matched() {
		logger.Warn("no remote match for title")

		return Outcome{Title: record.Title.Name, ErrKind: ErrKindNoMatch}
	}

	destPath := filepath.Join(destDir, record.Filename)

	if _, err := os.Stat(destPath); err == nil {
		logger.Info("file already present, skipping", "file", record.Filename)

		return Outcome{Title: record.Title.Name, Filename: record.Filename, Success: true}
	}

	logger.Info("downloading", "file", record.Filename, "size", humanize.IBytes(record.Size))

	var onProgress fetch.ProgressFunc
	if c.OnItemProgress != nil {
		title := record.Title.Name
		onProgress = func(s fetch.Sample) { c.OnItemProgress(title, s) }
	}

	written, elapsed, err := c.fetcher.Fetch(ctx, record.URL, destPath, record.Size, onProgress)
	outcome := Outcome{
		Title:    record.Title.Name,
		Filename: record.Filename,
		Bytes:    written,
		Elapsed:  elapsed,
	}

	if err != nil {
		outcome.ErrKind = classify(ctx, err)
		logger.Error("download failed", "file", record.Filename, "kind", outcome.ErrKind, "err", err)

		return outcome
	}

	outcome.Success = true
	logger.Info("downloaded", "file", record.Filename,
		"size", humanize.IBytes(uint64(written)),
		"elapsed", elapsed.Round(time.Millisecond))

	return outcome
}

// classify folds a fetch error into the outcome taxonomy.
func classify(ctx context.Context, err error) string {
	if ctx.Err() != nil {
		return ErrKindCancelled
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return ErrKindFilesystem
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ErrKindNetwork
	}

	return ErrKindNetwork
}

// aggregator tracks batch totals for overall progress samples.
type aggregator struct {
	start      time.Time
	bytesDone  int64
	bytesTotal int64
}

func newAggregator(records []reconcile.MatchRecord) *aggregator {
	agg := &aggregator{start: time.Now()}
	for _, r := range records {
		if r.Matched() {
			agg.bytesTotal += int64(r.Size)
		}
	}

	return agg
}

func (a *aggregator) complete(o Outcome) {
	a.bytesDone += o.Bytes
}

func (a *aggregator) sample(completed, total int) OverallSample {
	elapsed := time.Since(a.start)

	var rate float64
	if elapsed > 0 {
		rate = float64(a.bytesDone) / elapsed.Seconds()
	}

	var remaining time.Duration
	if rate > 0 && a.bytesTotal > a.bytesDone {
		remaining = time.Duration(float64(a.bytesTotal-a.bytesDone) / rate * float64(time.Second))
	}

	return OverallSample{
		Completed:  completed,
		Total:      total,
		BytesDone:  a.bytesDone,
		BytesTotal: a.bytesTotal,
		Rate:       rate,
		ETA:        remaining,
	}
}
