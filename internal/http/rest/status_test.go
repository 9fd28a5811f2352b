package rest_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/datfetch/datfetch/internal/batch"
	"github.com/datfetch/datfetch/internal/http/rest"
	"github.com/datfetch/datfetch/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	status   pipeline.Status
	outcomes []batch.Outcome
}

func (f *fakeSource) Status() pipeline.Status   { return f.status }
func (f *fakeSource) Outcomes() []batch.Outcome { return f.outcomes }

func TestStatusEndpoint(t *testing.T) {
	src := &fakeSource{status: pipeline.Status{
		RunID:     "20260115T120000Z",
		State:     pipeline.StateRunning,
		Titles:    10,
		Matched:   8,
		Completed: 3,
		BytesDone: 1024,
	}}

	ts := httptest.NewServer(rest.NewHandler(src, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got pipeline.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, src.status, got)
}

func TestOutcomesEndpoint(t *testing.T) {
	src := &fakeSource{outcomes: []batch.Outcome{
		{Title: "Game A", Filename: "Game A.zip", Bytes: 100, Elapsed: 1500 * time.Millisecond, Success: true},
		{Title: "Game B", ErrKind: batch.ErrKindNoMatch},
	}}

	ts := httptest.NewServer(rest.NewHandler(src, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/outcomes")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, "Game A", got[0]["title"])
	assert.Equal(t, float64(1500), got[0]["elapsed_ms"])
	assert.Equal(t, true, got[0]["success"])
	assert.Equal(t, "no_match", got[1]["error_kind"])
}

func TestHealthz(t *testing.T) {
	ts := httptest.NewServer(rest.NewHandler(&fakeSource{}, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
