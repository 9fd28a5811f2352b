package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/datfetch/datfetch/internal/storage"
	"github.com/datfetch/datfetch/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *sqlite.OutcomeRepository {
	t.Helper()

	db, err := sqlite.InitDB(filepath.Join(t.TempDir(), "outcomes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return sqlite.NewOutcomeRepository(db)
}

func TestRecordAndQueryOutcomes(t *testing.T) {
	repo := newRepo(t)

	records := []storage.OutcomeRecord{
		{RunID: "run-1", Title: "Game A", FilePath: "Game A.zip", Bytes: 100, ElapsedMS: 1200, Status: storage.StatusDownloaded},
		{RunID: "run-1", Title: "Game B", Status: storage.StatusFailed, ErrorKind: "network", Bytes: 42},
		{RunID: "run-1", Title: "Game C", Status: storage.StatusUnmatched},
		{RunID: "run-2", Title: "Game D", FilePath: "Game D.zip", Bytes: 7, Status: storage.StatusDownloaded},
	}
	for _, r := range records {
		require.NoError(t, repo.RecordOutcome(r))
	}

	run1, err := repo.GetRunOutcomes("run-1")
	require.NoError(t, err)
	require.Len(t, run1, 3)
	assert.Equal(t, "Game A", run1[0].Title)
	assert.Equal(t, storage.StatusFailed, run1[1].Status)
	assert.Equal(t, "network", run1[1].ErrorKind)
	assert.Equal(t, storage.StatusUnmatched, run1[2].Status)
	assert.NotEmpty(t, run1[0].RecordedAt)

	recent, err := repo.GetRecentOutcomes(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "Game D", recent[0].Title)
}

func TestGetRunOutcomesEmptyRun(t *testing.T) {
	repo := newRepo(t)

	outcomes, err := repo.GetRunOutcomes("nope")
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}
