package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tokenaudit/internal/api/handlers"
	"tokenaudit/internal/engine/monitor"
	"tokenaudit/internal/engine/tokens"
	"tokenaudit/internal/platform/audit"
	"tokenaudit/internal/platform/database"
)

type fixedLatest struct {
	res *monitor.Result
}

func (f *fixedLatest) Latest() *monitor.Result { return f.res }

type fakeRuns struct {
	runs  []*audit.Run
	err   error
	limit int
}

func (f *fakeRuns) List(ctx context.Context, limit int) ([]*audit.Run, error) {
	f.limit = limit
	return f.runs, f.err
}

func newTestRouter(latest *fixedLatest, runs handlers.RunLister, auditDB *database.AuditDB) http.Handler {
	return NewRouter(&Dependencies{
		HealthHandler:  handlers.NewHealthHandler(auditDB, latest),
		MetricsHandler: handlers.NewMetricsHandler(),
		RunsHandler:    handlers.NewRunsHandler(latest, runs),
	})
}

func serve(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func completedRun() *monitor.Result {
	started := time.Unix(1704067200, 0)
	return &monitor.Result{
		ID:         "run-7",
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Summary:    tokens.Summary{TotalTokens: 3, ExpiredCount: 1, HealthyCount: 2, ProblematicCount: 1},
		ByScope: map[tokens.Scope]tokens.Summary{
			tokens.ScopePersonal: {TotalTokens: 2, ExpiredCount: 1, HealthyCount: 1, ProblematicCount: 1},
			tokens.ScopeProject:  {TotalTokens: 1, HealthyCount: 1},
			tokens.ScopeGroup:    {},
		},
		Outcome:     monitor.OutcomeReported,
		ReportSent:  true,
		FetchErrors: errors.New("group 4: 403 Forbidden"),
	}
}

func TestLatestRun(t *testing.T) {
	t.Run("Before First Run", func(t *testing.T) {
		rec := serve(newTestRouter(&fixedLatest{}, nil, nil), "/api/v1/runs/latest")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)
	})

	t.Run("Completed Run", func(t *testing.T) {
		rec := serve(newTestRouter(&fixedLatest{res: completedRun()}, nil, nil), "/api/v1/runs/latest")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

		var body struct {
			ID               string                    `json:"id"`
			Outcome          string                    `json:"outcome"`
			ReportSent       bool                      `json:"report_sent"`
			ProblematicCount int                       `json:"problematic_count"`
			FetchErrors      int                       `json:"fetch_errors"`
			FetchErrorDetail string                    `json:"fetch_error_detail"`
			ByScope          map[string]tokens.Summary `json:"by_scope"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "run-7", body.ID)
		assert.Equal(t, monitor.OutcomeReported, body.Outcome)
		assert.True(t, body.ReportSent)
		assert.Equal(t, 1, body.ProblematicCount)
		assert.Equal(t, 1, body.FetchErrors)
		assert.Equal(t, "group 4: 403 Forbidden", body.FetchErrorDetail)
		assert.Equal(t, 2, body.ByScope["personal"].TotalTokens)
		assert.Contains(t, body.ByScope, "group")
	})
}

func TestListRuns(t *testing.T) {
	t.Run("Audit Disabled", func(t *testing.T) {
		rec := serve(newTestRouter(&fixedLatest{}, nil, nil), "/api/v1/runs")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Default Limit", func(t *testing.T) {
		runs := &fakeRuns{runs: []*audit.Run{{ID: "run-2"}, {ID: "run-1"}}}
		rec := serve(newTestRouter(&fixedLatest{}, runs, nil), "/api/v1/runs")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 20, runs.limit)

		var body []audit.Run
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body, 2)
		assert.Equal(t, "run-2", body[0].ID)
	})

	t.Run("Empty Log Is An Empty Array", func(t *testing.T) {
		rec := serve(newTestRouter(&fixedLatest{}, &fakeRuns{}, nil), "/api/v1/runs?limit=5")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
	})

	t.Run("Invalid Limit", func(t *testing.T) {
		for _, q := range []string{"0", "101", "abc"} {
			rec := serve(newTestRouter(&fixedLatest{}, &fakeRuns{}, nil), "/api/v1/runs?limit="+q)
			assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", q)
		}
	})

	t.Run("Store Failure", func(t *testing.T) {
		rec := serve(newTestRouter(&fixedLatest{}, &fakeRuns{err: errors.New("database is locked")}, nil), "/api/v1/runs")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.NotContains(t, rec.Body.String(), "locked")
	})
}

func TestHealth(t *testing.T) {
	t.Run("Audit Disabled Before First Run", func(t *testing.T) {
		rec := serve(newTestRouter(&fixedLatest{}, nil, database.NewAuditDBWrapper(nil)), "/health")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"audit_db":"disabled"`)
		assert.Contains(t, rec.Body.String(), `"last_run":"pending"`)
	})

	t.Run("Audit Reachable", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectPing()

		res := completedRun()
		res.Outcome = monitor.OutcomeReportFailed
		res.ReportError = errors.New("send report: dial tcp: refused")

		rec := serve(newTestRouter(&fixedLatest{res: res}, nil, database.NewAuditDBWrapper(db)), "/health")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"audit_db":"healthy"`)
		assert.Contains(t, rec.Body.String(), `"last_run":"report_failed"`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Audit Unreachable", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectPing().WillReturnError(errors.New("disk I/O error"))

		rec := serve(newTestRouter(&fixedLatest{}, nil, database.NewAuditDBWrapper(db)), "/health")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(newTestRouter(&fixedLatest{}, nil, nil), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRequestIDPropagation(t *testing.T) {
	router := newTestRouter(&fixedLatest{}, &fakeRuns{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
