// Package pipeline ties the reconciliation stages together: fetch the remote
// listing, index it, match the desired titles, download what is missing, and
// report per-title outcomes.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/datfetch/datfetch/internal/batch"
	"github.com/datfetch/datfetch/internal/listing"
	"github.com/datfetch/datfetch/internal/logctx"
	"github.com/datfetch/datfetch/internal/reconcile"
	"github.com/datfetch/datfetch/internal/storage"
	"github.com/datfetch/datfetch/internal/telemetry"
	"github.com/datfetch/datfetch/internal/units"
)

// maxListingBytes caps how much of a listing document is read; directory
// indexes for even the largest collections stay well under this.
const maxListingBytes = 64 << 20

// Run is the immutable context for one reconciliation: everything the
// pipeline needs, passed explicitly so tests never touch ambient state.
type Run struct {
	BaseURL     string
	ListingPath string
	Titles      []reconcile.Title
	DestDir     string
}

// Report is the externally consumed result of a run.
type Report struct {
	RunID      string
	Outcomes   []batch.Outcome
	Matched    int
	Unmatched  int
	Downloaded int
	Failed     int
	Bytes      int64
	Elapsed    time.Duration
}

// Summary renders the end-of-run line the log and the notifier share.
func (r *Report) Summary() string {
	return fmt.Sprintf("downloaded %d/%d matched titles (%d unmatched, %d failed), %s in %s, avg %s/s",
		r.Downloaded, r.Matched, r.Unmatched, r.Failed,
		humanize.IBytes(uint64(r.Bytes)),
		units.FormatDuration(r.Elapsed.Seconds()),
		humanize.IBytes(uint64(averageRate(r.Bytes, r.Elapsed))))
}

// Notifier receives the end-of-run summary.
type Notifier interface {
	Notify(content string) error
}

// Pipeline executes reconciliation runs. Repo and Notifier are optional;
// a nil value disables that side effect.
type Pipeline struct {
	Client      *http.Client
	Coordinator *batch.Coordinator
	Telemetry   *telemetry.Telemetry
	Repo        storage.OutcomeWriteRepository
	Notifier    Notifier

	status *statusBoard
}

// New creates a Pipeline around the given collaborators.
func New(client *http.Client, coordinator *batch.Coordinator, tel *telemetry.Telemetry) *Pipeline {
	return &Pipeline{
		Client:      client,
		Coordinator: coordinator,
		Telemetry:   tel,
		status:      newStatusBoard(),
	}
}

// Execute performs one full reconciliation run. Per-title failures are
// absorbed into the report; only run-wide preconditions surface as errors.
func (p *Pipeline) Execute(ctx context.Context, run Run) (*Report, error) {
	logger := logctx.LoggerFromContext(ctx)
	start := time.Now()
	runID := start.UTC().Format("20060102T150405Z")

	p.status.begin(runID, len(run.Titles))
	defer p.status.finish()

	idx, err := p.fetchIndex(ctx, run)
	if err != nil {
		return nil, &SetupError{Stage: "listing", Err: err}
	}

	logger.Info("remote index built", "files", idx.Len(), "skipped_rows", idx.SkippedRows)
	p.Telemetry.RecordListingParse(ctx, idx.Len(), idx.SkippedRows)

	records := reconcile.Match(run.Titles, idx)

	matched := 0
	for _, r := range records {
		if r.Matched() {
			matched++
		}
	}

	logger.Info("matched titles against remote index", "matched", matched, "unmatched", len(records)-matched)
	p.Telemetry.RecordMatches(ctx, matched, len(records)-matched)
	p.status.matched(matched)

	outcomes, err := p.Coordinator.Run(ctx, records, run.DestDir, p.status.overall)
	if err != nil {
		return nil, &SetupError{Stage: "destination", Err: err}
	}

	report := buildReport(runID, outcomes, matched, time.Since(start))
	p.status.report(report)

	p.persist(ctx, report)
	p.recordMetrics(ctx, outcomes)
	p.notify(ctx, report)

	return report, nil
}

// Status returns a point-in-time snapshot of the running batch.
func (p *Pipeline) Status() Status {
	return p.status.snapshot()
}

// Outcomes returns the outcome log accumulated by the most recent run.
func (p *Pipeline) Outcomes() []batch.Outcome {
	return p.status.outcomes()
}

func (p *Pipeline) fetchIndex(ctx context.Context, run Run) (*listing.Index, error) {
	logger := logctx.LoggerFromContext(ctx)

	listingURL := strings.TrimSuffix(run.BaseURL, "/") + "/" + strings.TrimPrefix(run.ListingPath, "/")
	logger.Info("fetching remote listing", "url", listingURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return nil, &ListingError{URL: listingURL, Err: err}
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, &ListingError{URL: listingURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ListingError{URL: listingURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListingBytes))
	if err != nil {
		return nil, &ListingError{URL: listingURL, Err: err}
	}

	return listing.ParseListing(string(body), listingURL), nil
}

func (p *Pipeline) persist(ctx context.Context, report *Report) {
	if p.Repo == nil {
		return
	}

	logger := logctx.LoggerFromContext(ctx)

	for _, o := range report.Outcomes {
		record := storage.OutcomeRecord{
			RunID:     report.RunID,
			Title:     o.Title,
			FilePath:  o.Filename,
			Bytes:     o.Bytes,
			ElapsedMS: o.Elapsed.Milliseconds(),
			Status:    outcomeStatus(o),
			ErrorKind: o.ErrKind,
		}

		if err := p.Repo.RecordOutcome(record); err != nil {
			logger.Error("failed to persist outcome", "title", o.Title, "err", err)
		}
	}
}

func (p *Pipeline) recordMetrics(ctx context.Context, outcomes []batch.Outcome) {
	for _, o := range outcomes {
		p.Telemetry.DownloadFinished(ctx, outcomeStatus(o), o.Bytes, o.Elapsed)
	}
}

func (p *Pipeline) notify(ctx context.Context, report *Report) {
	if p.Notifier == nil {
		return
	}

	if err := p.Notifier.Notify(report.Summary()); err != nil {
		logctx.LoggerFromContext(ctx).Warn("failed to send run notification", "err", err)
	}
}

func buildReport(runID string, outcomes []batch.Outcome, matched int, elapsed time.Duration) *Report {
	report := &Report{
		RunID:    runID,
		Outcomes: outcomes,
		Matched:  matched,
		Elapsed:  elapsed,
	}

	for _, o := range outcomes {
		report.Bytes += o.Bytes

		switch {
		case o.ErrKind == batch.ErrKindNoMatch:
			report.Unmatched++
		case o.Success:
			report.Downloaded++
		default:
			report.Failed++
		}
	}

	return report
}

// outcomeStatus maps an outcome to the three user-visible terminal states.
func outcomeStatus(o batch.Outcome) string {
	switch {
	case o.ErrKind == batch.ErrKindNoMatch:
		return storage.StatusUnmatched
	case o.Success:
		return storage.StatusDownloaded
	default:
		return storage.StatusFailed
	}
}

func averageRate(bytes int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}

	return float64(bytes) / elapsed.Seconds()
}
