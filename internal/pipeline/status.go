package pipeline

import (
	"sync"
	"time"

	"github.com/datfetch/datfetch/internal/batch"
)

// Run states as exposed by the status endpoint.
const (
	StateIdle     = "idle"
	StateRunning  = "running"
	StateFinished = "finished"
)

// Status is a point-in-time view of the current run for the status endpoint.
type Status struct {
	RunID      string  `json:"run_id"`
	State      string  `json:"state"`
	Titles     int     `json:"titles"`
	Matched    int     `json:"matched"`
	Completed  int     `json:"completed"`
	BytesDone  int64   `json:"bytes_done"`
	BytesTotal int64   `json:"bytes_total"`
	Rate       float64 `json:"rate_bytes_per_sec"`
	ETASeconds float64 `json:"eta_seconds"`
}

// statusBoard is the shared mutable view the HTTP server reads while the
// batch runs. All access goes through the mutex.
type statusBoard struct {
	mu      sync.Mutex
	status  Status
	results []batch.Outcome
}

func newStatusBoard() *statusBoard {
	return &statusBoard{status: Status{State: StateIdle}}
}

func (b *statusBoard) begin(runID string, titles int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.status = Status{RunID: runID, State: StateRunning, Titles: titles}
	b.results = nil
}

func (b *statusBoard) matched(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.status.Matched = n
}

// overall is handed to the coordinator as its progress callback.
func (b *statusBoard) overall(sample batch.OverallSample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.status.Completed = sample.Completed
	b.status.BytesDone = sample.BytesDone
	b.status.BytesTotal = sample.BytesTotal
	b.status.Rate = sample.Rate
	b.status.ETASeconds = sample.ETA.Round(time.Second).Seconds()
}

func (b *statusBoard) report(report *Report) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.results = report.Outcomes
}

func (b *statusBoard) finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.status.State = StateFinished
}

func (b *statusBoard) snapshot() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.status
}

func (b *statusBoard) outcomes() []batch.Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]batch.Outcome, len(b.results))
	copy(out, b.results)

	return out
}
