package storage

// OutcomeRecord is one persisted download outcome within a run.
type OutcomeRecord struct {
	RunID      string
	Title      string
	FilePath   string
	Bytes      int64
	ElapsedMS  int64
	Status     string
	ErrorKind  string
	RecordedAt string
}

// Outcome statuses as stored.
const (
	StatusDownloaded = "downloaded"
	StatusFailed     = "failed"
	StatusUnmatched  = "unmatched"
)

// OutcomeWriteRepository persists outcomes as they are produced.
type OutcomeWriteRepository interface {
	RecordOutcome(record OutcomeRecord) error
}

// OutcomeReadRepository serves run history queries.
type OutcomeReadRepository interface {
	GetRunOutcomes(runID string) ([]OutcomeRecord, error)
	GetRecentOutcomes(limit int) ([]OutcomeRecord, error)
}
