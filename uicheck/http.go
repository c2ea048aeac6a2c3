package uicheck

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/uicheck/internal/shield"
)

// maxRequestBody caps POST bodies; a run request is a list of paths.
const maxRequestBody = 1 << 20

// Handler returns the HTTP API:
//
//	GET  /health
//	GET  /metrics
//	GET  /api/runs?limit=N
//	POST /api/runs                      {"urls": [...]} optional
//	GET  /api/runs/{runID}
//	GET  /api/runs/{runID}/violations
//	GET  /api/scan?url=...&focusable=1
//	POST /api/audit                     {"url": "..."}
func (a *Auditor) Handler() http.Handler {
	ep := a.endpoints()

	r := chi.NewRouter()
	for _, mw := range shield.Stack(a.cfg.Logger, maxRequestBody) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", a.cfg.Metrics.Handler())

	r.Route("/api/runs", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			resp, err := ep.listRuns(r.Context(), &listRunsRequest{Limit: queryInt(r, "limit", 20)})
			respond(w, http.StatusOK, resp, err)
		})

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req startRunRequest
			if err := decodeOptional(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			resp, err := ep.startRun(r.Context(), &req)
			respond(w, http.StatusCreated, resp, err)
		})

		r.Get("/{runID}", func(w http.ResponseWriter, r *http.Request) {
			if a.cfg.Store == nil {
				writeError(w, http.StatusServiceUnavailable, ErrNoStore)
				return
			}
			run, err := a.cfg.Store.GetRun(r.Context(), chi.URLParam(r, "runID"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			if run == nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
				return
			}
			writeJSON(w, http.StatusOK, run)
		})

		r.Get("/{runID}/violations", func(w http.ResponseWriter, r *http.Request) {
			if a.cfg.Store == nil {
				writeError(w, http.StatusServiceUnavailable, ErrNoStore)
				return
			}
			runID := chi.URLParam(r, "runID")
			run, err := a.cfg.Store.GetRun(r.Context(), runID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			if run == nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
				return
			}
			vs, err := a.cfg.Store.ListViolations(r.Context(), runID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			if vs == nil {
				writeJSON(w, http.StatusOK, []any{})
				return
			}
			writeJSON(w, http.StatusOK, vs)
		})
	})

	r.Get("/api/scan", func(w http.ResponseWriter, r *http.Request) {
		focusable, _ := strconv.ParseBool(r.URL.Query().Get("focusable"))
		resp, err := ep.tabbable(r.Context(), &tabbableRequest{
			URL:       r.URL.Query().Get("url"),
			Focusable: focusable,
		})
		respond(w, http.StatusOK, resp, err)
	})

	r.Post("/api/audit", func(w http.ResponseWriter, r *http.Request) {
		var req auditPageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := ep.auditPage(r.Context(), &req)
		respond(w, http.StatusOK, resp, err)
	})

	return r
}

// respond maps endpoint errors to status codes.
func respond(w http.ResponseWriter, code int, resp any, err error) {
	switch {
	case err == nil:
		writeJSON(w, code, resp)
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, ErrNoStore):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

// decodeOptional decodes a JSON body, accepting an empty one.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
