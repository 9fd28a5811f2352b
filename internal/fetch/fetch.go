// Package fetch performs single streamed HTTP downloads with periodic
// progress reporting.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/datfetch/datfetch/internal/logctx"
)

const (
	dirPerm = 0755

	// PartialSuffix marks in-flight downloads. A failed transfer leaves its
	// partial file behind for inspection; a fresh run truncates it and
	// restarts from byte zero.
	PartialSuffix = ".partial"

	defaultStallTimeout     = 60 * time.Second
	defaultProgressInterval = time.Second

	chunkSize = 32 * 1024

	// Listings go stale; only differences beyond this are worth a log line.
	sizeMismatchNote = 1 << 20
)

// ProgressFunc receives download progress at a fixed wall-clock cadence.
type ProgressFunc func(sample Sample)

// Sample is one ephemeral progress observation. Rate reflects a short
// trailing window rather than the whole-transfer average.
type Sample struct {
	BytesDone  int64
	BytesTotal int64
	Rate       float64
	ETA        time.Duration
}

// Fetcher streams remote files to disk. The zero value is not usable; use
// NewFetcher.
type Fetcher struct {
	client           *http.Client
	stallTimeout     time.Duration
	progressInterval time.Duration
}

// Option adjusts a Fetcher.
type Option func(*Fetcher)

// WithStallTimeout overrides the ceiling on connection setup and per-read
// stalls.
func WithStallTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.stallTimeout = d }
}

// WithProgressInterval overrides the progress callback cadence.
func WithProgressInterval(d time.Duration) Option {
	return func(f *Fetcher) { f.progressInterval = d }
}

// NewFetcher creates a Fetcher using the given HTTP client. The client's own
// timeout should be zero; stall handling is per-read here, so a whole-request
// deadline would kill long transfers.
func NewFetcher(client *http.Client, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:           client,
		stallTimeout:     defaultStallTimeout,
		progressInterval: defaultProgressInterval,
	}
	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch streams rawURL into destPath, reporting progress on a fixed cadence.
// The payload is written incrementally through a partial file that is renamed
// into place only on success. The returned byte count is what actually
// arrived, even on failure.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, destPath string, expectedSize uint64, onProgress ProgressFunc) (int64, time.Duration, error) {
	logger := logctx.LoggerFromContext(ctx).With("url", rawURL)
	start := time.Now()

	// Each read refreshes the stall timer; a quiet link cancels the request.
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stall := time.AfterFunc(f.stallTimeout, cancel)
	defer stall.Stop()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, time.Since(start), fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, time.Since(start), fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, time.Since(start), fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, rawURL)
	}

	total := resp.ContentLength
	if total <= 0 && expectedSize > 0 {
		total = int64(expectedSize)
	}

	if resp.ContentLength > 0 && expectedSize > 0 {
		if diff := resp.ContentLength - int64(expectedSize); diff > sizeMismatchNote || diff < -sizeMismatchNote {
			logger.Info("remote size differs from listing",
				"listed", humanize.IBytes(expectedSize),
				"reported", humanize.IBytes(uint64(resp.ContentLength)))
		}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), dirPerm); err != nil {
		return 0, time.Since(start), fmt.Errorf("failed to create destination directory: %w", err)
	}

	partialPath := destPath + PartialSuffix

	out, err := os.Create(partialPath)
	if err != nil {
		return 0, time.Since(start), fmt.Errorf("failed to create partial file: %w", err)
	}

	written, copyErr := f.copyWithProgress(out, resp.Body, total, stall, onProgress)

	if closeErr := out.Close(); copyErr == nil && closeErr != nil {
		copyErr = fmt.Errorf("failed to close partial file: %w", closeErr)
	}

	elapsed := time.Since(start)

	if copyErr != nil {
		// The partial file stays on disk so a later run can decide its fate.
		return written, elapsed, fmt.Errorf("transfer interrupted after %d bytes: %w", written, copyErr)
	}

	if err := os.Rename(partialPath, destPath); err != nil {
		return written, elapsed, fmt.Errorf("failed to finalize download: %w", err)
	}

	if onProgress != nil {
		onProgress(Sample{BytesDone: written, BytesTotal: total, Rate: averageRate(written, elapsed)})
	}

	return written, elapsed, nil
}

// copyWithProgress streams body to out chunk by chunk, refreshing the stall
// timer on every read and invoking the callback at most once per interval.
func (f *Fetcher) copyWithProgress(out io.Writer, body io.Reader, total int64, stall *time.Timer, onProgress ProgressFunc) (int64, error) {
	var written int64

	window := newRateWindow(time.Now())
	lastEmit := time.Now()
	buf := make([]byte, chunkSize)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			stall.Reset(f.stallTimeout)

			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return written, writeErr
			}

			written += int64(n)

			now := time.Now()
			window.observe(now, written)

			if onProgress != nil && now.Sub(lastEmit) >= f.progressInterval {
				rate := window.rate(now)
				onProgress(Sample{
					BytesDone:  written,
					BytesTotal: total,
					Rate:       rate,
					ETA:        eta(written, total, rate),
				})
				lastEmit = now
			}
		}

		if readErr == io.EOF {
			return written, nil
		}

		if readErr != nil {
			return written, readErr
		}
	}
}

func averageRate(written int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}

	return float64(written) / elapsed.Seconds()
}

func eta(written, total int64, rate float64) time.Duration {
	if total <= 0 || rate <= 0 || written >= total {
		return 0
	}

	return time.Duration(float64(total-written) / rate * float64(time.Second))
}
