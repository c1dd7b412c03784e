package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/leapgov/internal/dataset"
	"github.com/leapstack-labs/leapgov/internal/engine"
	"github.com/leapstack-labs/leapgov/internal/notifier"
	"github.com/leapstack-labs/leapgov/internal/registry"
	"github.com/leapstack-labs/leapgov/pkg/core"
	"github.com/starfederation/datastar-go/datastar"
)

// RunEvent is the server-sent event type announcing a completed run.
const RunEvent datastar.EventType = "run"

// httpError carries the status code for errors raised by the handlers
// themselves.
type httpError struct {
	status int
	err    error
}

func (e *httpError) Error() string { return e.err.Error() }
func (e *httpError) Unwrap() error { return e.err }

func withStatus(status int, err error) error {
	return &httpError{status: status, err: err}
}

// statusFor maps an error to a response status: configuration problems are
// client errors, anything else is an internal error.
func statusFor(err error) int {
	var he *httpError
	switch {
	case errors.As(err, &he):
		return he.status
	case errors.Is(err, core.ErrDatasetNotFound):
		return http.StatusNotFound
	case core.IsConfigError(err):
		return http.StatusBadRequest
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// datasetInfo is one entry of GET /v1/datasets.
type datasetInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Checks  int      `json:"checks"`
	PIIScan bool     `json:"pii_scan"`
}

func (s *Server) listDatasets(w http.ResponseWriter, _ *http.Request) {
	rules := s.engine.Rules()
	out := []datasetInfo{}
	for _, name := range rules.Names() {
		rs := rules.Datasets[name]
		out = append(out, datasetInfo{
			Name:    name,
			Columns: rs.Schema.Columns(),
			Checks:  len(rs.QualityChecks),
			PIIScan: rs.PIIScan,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// runDataset governs the CSV request body. The optional "source" query
// parameter labels the input in lineage.
func (s *Server) runDataset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := s.engine.Rules().Lookup(name); err != nil {
		s.writeError(w, r, err)
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	table, err := dataset.ReadCSV(body, dataset.ReadOptions{})
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, withStatus(http.StatusRequestEntityTooLarge, err))
			return
		}
		s.writeError(w, r, withStatus(http.StatusBadRequest, fmt.Errorf("invalid CSV body: %w", err)))
		return
	}

	report, err := s.engine.Run(r.Context(), engine.RunRequest{
		Dataset:    name,
		SourcePath: r.URL.Query().Get("source"),
		Table:      table,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.notifier.Broadcast(notifier.EventFromReport(report))
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := s.engine.Rules().Lookup(name); err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.engine.ReadReport(name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) listLineage(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, r, withStatus(http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw)))
			return
		}
		limit = n
	}

	records, err := s.engine.Lineage().History(r.Context(), r.URL.Query().Get("dataset"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) listRegistry(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.Registry().List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) getRegistryEntry(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	entry, err := s.engine.Registry().Get(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entry == nil {
		s.writeError(w, r, withStatus(http.StatusNotFound, fmt.Errorf("dataset %s is not registered", name)))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) getRegistryHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	versions, err := s.engine.Registry().History(r.Context(), name)
	if errors.Is(err, registry.ErrHistoryUnsupported) {
		s.writeError(w, r, withStatus(http.StatusNotImplemented, err))
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

// streamEvents pushes a "run" server-sent event for every completed run
// until the client disconnects.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	updates := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(updates)

	sse := datastar.NewSSE(w, r)
	for {
		select {
		case <-sse.Context().Done():
			return
		case ev := <-updates:
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("failed to encode event", "error", err)
				continue
			}
			if err := sse.Send(RunEvent, []string{string(data)}, datastar.WithSSEEventId(ev.RunID)); err != nil {
				s.logger.Debug("event stream closed", "error", err)
				return
			}
		}
	}
}
