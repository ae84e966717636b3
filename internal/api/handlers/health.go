package handlers

import (
	"context"
	"net/http"
	"time"

	"tokenaudit/internal/engine/monitor"
	"tokenaudit/internal/pkg/errors"
	"tokenaudit/internal/platform/database"
)

// LatestProvider exposes the most recent monitoring result.
type LatestProvider interface {
	Latest() *monitor.Result
}

type HealthHandler struct {
	auditDB *database.AuditDB
	latest  LatestProvider
	now     func() time.Time
}

func NewHealthHandler(auditDB *database.AuditDB, latest LatestProvider) *HealthHandler {
	return &HealthHandler{auditDB: auditDB, latest: latest, now: time.Now}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"

	switch {
	case !h.auditDB.Enabled():
		checks["audit_db"] = "disabled"
	default:
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.auditDB.Ping(ctx); err != nil {
			checks["audit_db"] = "unhealthy: " + err.Error()
			status = "degraded"
		} else {
			checks["audit_db"] = "healthy"
		}
	}

	if res := h.latest.Latest(); res == nil {
		checks["last_run"] = "pending"
	} else {
		checks["last_run"] = res.Outcome
		if res.Outcome == monitor.OutcomeReportFailed {
			checks["last_report"] = "unhealthy: " + errorText(res.ReportError)
		}
	}

	response := struct {
		Status    string            `json:"status"`
		Timestamp int64             `json:"timestamp"`
		Checks    map[string]string `json:"checks"`
	}{
		Status:    status,
		Timestamp: h.now().Unix(),
		Checks:    checks,
	}

	statusCode := http.StatusOK
	if status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	errors.WriteJSON(w, statusCode, response)
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
