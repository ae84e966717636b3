package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
	apiContext "tokenaudit/internal/api/context"
	"tokenaudit/internal/engine/tokens"
	"tokenaudit/internal/pkg/errors"
	"tokenaudit/internal/platform/audit"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 100
)

// RunLister reads past runs from the audit log.
type RunLister interface {
	List(ctx context.Context, limit int) ([]*audit.Run, error)
}

type RunsHandler struct {
	latest LatestProvider
	runs   RunLister
}

// NewRunsHandler builds the runs endpoints. runs may be nil when the audit
// log is disabled.
func NewRunsHandler(latest LatestProvider, runs RunLister) *RunsHandler {
	return &RunsHandler{latest: latest, runs: runs}
}

type runResponse struct {
	*audit.Run
	FetchErrorDetail string                    `json:"fetch_error_detail,omitempty"`
	ByScope          map[string]tokens.Summary `json:"by_scope"`
}

func (h *RunsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	res := h.latest.Latest()
	if res == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "No monitoring run has completed yet", nil)
		return
	}

	resp := runResponse{
		Run:     audit.FromResult(res),
		ByScope: make(map[string]tokens.Summary, len(res.ByScope)),
	}
	for scope, summary := range res.ByScope {
		resp.ByScope[scope.String()] = summary
	}
	if res.FetchErrors != nil {
		resp.FetchErrorDetail = res.FetchErrors.Error()
	}
	errors.WriteJSON(w, http.StatusOK, resp)
}

func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Audit log is disabled", nil)
		return
	}

	limit := defaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRunLimit {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "limit must be between 1 and 100", nil)
			return
		}
		limit = n
	}

	runs, err := h.runs.List(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Str("request_id", apiContext.RequestIDFrom(r.Context())).Msg("failed to list audit runs")
		errors.WriteError(w, http.StatusServiceUnavailable, errors.ErrCodeUnavailable, "Audit log unavailable", nil)
		return
	}
	if runs == nil {
		runs = []*audit.Run{}
	}
	errors.WriteJSON(w, http.StatusOK, runs)
}
