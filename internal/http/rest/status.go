// Package rest exposes the run status endpoints served while a batch runs.
package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/datfetch/datfetch/internal/batch"
	"github.com/datfetch/datfetch/internal/logctx"
	"github.com/datfetch/datfetch/internal/pipeline"
)

// StatusSource is the read side of a running pipeline.
type StatusSource interface {
	Status() pipeline.Status
	Outcomes() []batch.Outcome
}

// outcomeView is the JSON shape of one outcome row.
type outcomeView struct {
	Title     string `json:"title"`
	Filename  string `json:"filename,omitempty"`
	Bytes     int64  `json:"bytes"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Success   bool   `json:"success"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// NewHandler builds the router: run status, outcome log, health and metrics.
func NewHandler(src StatusSource, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, src.Status())
	})

	r.Get("/outcomes", func(w http.ResponseWriter, req *http.Request) {
		outcomes := src.Outcomes()
		views := make([]outcomeView, 0, len(outcomes))
		for _, o := range outcomes {
			views = append(views, outcomeView{
				Title:     o.Title,
				Filename:  o.Filename,
				Bytes:     o.Bytes,
				ElapsedMS: o.Elapsed.Milliseconds(),
				Success:   o.Success,
				ErrorKind: o.ErrKind,
			})
		}
		writeJSON(w, views)
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding failed", http.StatusInternalServerError)
	}
}

// requestLogger logs each request with the context logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		logger := logctx.LoggerFromContext(req.Context())
		logger.Debug("http request", "method", req.Method, "path", req.URL.Path)
		next.ServeHTTP(w, req)
	})
}
