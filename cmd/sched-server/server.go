package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/driftline/scheddef/core"
	"github.com/driftline/scheddef/instrument"
	"github.com/driftline/scheddef/internal/archive"
	"github.com/driftline/scheddef/internal/logging"
	"github.com/driftline/scheddef/internal/observability"
	"github.com/driftline/scheddef/model"
	"github.com/driftline/scheddef/timectrl"
)

// maxSubmissionBytes bounds a submitted schedule file.
const maxSubmissionBytes = 4 << 20

type server struct {
	store   *archive.Store
	metrics *observability.SubmissionCollector
	profile instrument.Profile
	clock   timectrl.Clock
	log     logging.Logger
}

type submissionResponse struct {
	ID          int64  `json:"id"`
	ProjectCode string `json:"project_code"`
	Variant     string `json:"variant"`
	Sessions    int    `json:"sessions"`
	Scans       int    `json:"scans"`
}

type errorResponse struct {
	Error       string   `json:"error"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}

func newServer(store *archive.Store, metrics *observability.SubmissionCollector, prof instrument.Profile, clk timectrl.Clock, log logging.Logger) http.Handler {
	if log == nil {
		log = logging.Noop()
	}
	if clk == nil {
		clk = timectrl.System()
	}
	s := &server{store: store, metrics: metrics, profile: prof, clock: clk, log: log}

	mux := http.NewServeMux()
	mux.Handle("POST /schedules", metrics.Middleware("/schedules", http.HandlerFunc(s.handleSubmit)))
	mux.Handle("GET /schedules", metrics.Middleware("/schedules", http.HandlerFunc(s.handleList)))
	mux.Handle("GET /schedules/{id}", metrics.Middleware("/schedules/{id}", http.HandlerFunc(s.handleGet)))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx, log := logging.WithRequestLogger(r.Context(), s.log)
	ctx, span := otel.Tracer("sched-server").Start(ctx, "schedule.submit")
	defer span.End()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSubmissionBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body", nil)
		return
	}
	if len(body) > maxSubmissionBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "schedule file too large", nil)
		return
	}

	draft, err := core.Parse(bytes.NewReader(body), s.profile)
	if err != nil {
		span.SetStatus(codes.Error, "malformed")
		s.metrics.RecordSubmission("unknown", observability.OutcomeMalformed)
		log.Warn(ctx, "submission rejected as malformed", logging.Err(err))
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	variant := draft.Variant.String()
	span.SetAttributes(
		attribute.String("schedule.variant", variant),
		attribute.String("schedule.project_code", draft.Code),
	)

	v, err := core.Finalize(draft, s.profile)
	if err != nil {
		span.SetStatus(codes.Error, "constraint failure")
		s.metrics.RecordSubmission(variant, observability.OutcomeConstraintFailure)
		log.Warn(ctx, "submission failed validation",
			logging.String("project_code", draft.Code),
			logging.Err(err),
		)
		writeError(w, http.StatusUnprocessableEntity, "schedule failed validation", diagnosticsOf(draft, s.profile))
		return
	}

	canonical, err := v.Render()
	if err != nil {
		s.metrics.RecordSubmission(variant, observability.OutcomeConstraintFailure)
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	id, err := s.store.Put(ctx, v.Project(), canonical, s.clock.Now())
	if err != nil {
		span.SetStatus(codes.Error, "storage failure")
		s.metrics.RecordSubmission(variant, observability.OutcomeStorageFailure)
		log.Error(ctx, "archive write failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "archive write failed", nil)
		return
	}

	s.metrics.RecordSubmission(variant, observability.OutcomeAccepted)
	if n, err := s.store.Count(ctx); err == nil {
		s.metrics.SetArchivedCount(n)
	}

	scans := 0
	for _, sess := range v.Project().Sessions {
		scans += len(sess.Scans)
	}
	log.Info(ctx, "schedule accepted",
		logging.Int64("archive_id", id),
		logging.String("project_code", v.Project().Code),
		logging.String("variant", variant),
		logging.Int("scans", scans),
	)

	writeJSON(w, http.StatusCreated, submissionResponse{
		ID:          id,
		ProjectCode: v.Project().Code,
		Variant:     variant,
		Sessions:    len(v.Project().Sessions),
		Scans:       scans,
	})
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", nil)
			return
		}
		limit = n
	}

	entries, err := s.store.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "archive read failed", nil)
		return
	}

	type summary struct {
		ID          int64     `json:"id"`
		ProjectCode string    `json:"project_code"`
		Variant     string    `json:"variant"`
		Observer    string    `json:"observer"`
		Sessions    int       `json:"sessions"`
		Scans       int       `json:"scans"`
		SubmittedAt time.Time `json:"submitted_at"`
	}
	out := make([]summary, 0, len(entries))
	for _, e := range entries {
		out = append(out, summary{
			ID:          e.ID,
			ProjectCode: e.ProjectCode,
			Variant:     e.Variant,
			Observer:    e.Observer,
			Sessions:    e.Sessions,
			Scans:       e.Scans,
			SubmittedAt: e.SubmittedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "schedule id must be an integer", nil)
		return
	}

	entry, err := s.store.Get(r.Context(), id)
	if errors.Is(err, archive.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error(), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "archive read failed", nil)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, entry.Body)
}

// diagnosticsOf re-runs validation to recover the individual diagnostic
// strings for the response body.
func diagnosticsOf(p *model.Project, prof instrument.Profile) []string {
	rep := core.Validate(p, prof)
	out := make([]string, 0, len(rep.Diagnostics))
	for _, d := range rep.Diagnostics {
		out = append(out, d.String())
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string, diagnostics []string) {
	writeJSON(w, status, errorResponse{Error: msg, Diagnostics: diagnostics})
}
