package audit

import (
	"context"
	"database/sql"
	"fmt"

	"tokenaudit/internal/engine/monitor"
)

// Schema holds one row per monitoring run. No per-token data is stored.
const Schema = `
CREATE TABLE IF NOT EXISTS monitor_runs (
	id TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	total_tokens INTEGER NOT NULL,
	expired_count INTEGER NOT NULL,
	expiring_count INTEGER NOT NULL,
	healthy_count INTEGER NOT NULL,
	permanent_count INTEGER NOT NULL,
	problematic_count INTEGER NOT NULL,
	outcome TEXT NOT NULL,
	report_sent INTEGER NOT NULL DEFAULT 0,
	fetch_errors INTEGER NOT NULL DEFAULT 0,
	error TEXT
);
CREATE INDEX IF NOT EXISTS idx_monitor_runs_started_at ON monitor_runs (started_at);
`

type Run struct {
	ID               string `json:"id"`
	StartedAt        int64  `json:"started_at"`
	FinishedAt       int64  `json:"finished_at"`
	TotalTokens      int    `json:"total_tokens"`
	ExpiredCount     int    `json:"expired_count"`
	ExpiringCount    int    `json:"expiring_count"`
	HealthyCount     int    `json:"healthy_count"`
	PermanentCount   int    `json:"permanent_count"`
	ProblematicCount int    `json:"problematic_count"`
	Outcome          string `json:"outcome"`
	ReportSent       bool   `json:"report_sent"`
	FetchErrors      int    `json:"fetch_errors"`
	Error            string `json:"error,omitempty"`
}

// FromResult flattens a monitor result into an audit row.
func FromResult(res *monitor.Result) *Run {
	run := &Run{
		ID:               res.ID,
		StartedAt:        res.StartedAt.Unix(),
		FinishedAt:       res.FinishedAt.Unix(),
		TotalTokens:      res.Summary.TotalTokens,
		ExpiredCount:     res.Summary.ExpiredCount,
		ExpiringCount:    res.Summary.ExpiringCount,
		HealthyCount:     res.Summary.HealthyCount,
		PermanentCount:   res.Summary.PermanentCount,
		ProblematicCount: res.Summary.ProblematicCount,
		Outcome:          res.Outcome,
		ReportSent:       res.ReportSent,
		FetchErrors:      res.FetchErrorCount(),
	}
	if res.ReportError != nil {
		run.Error = res.ReportError.Error()
	}
	return run
}

type Recorder struct {
	db *sql.DB
}

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// EnsureSchema creates the audit table if it does not exist.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

func (r *Recorder) Record(ctx context.Context, res *monitor.Result) error {
	run := FromResult(res)

	query := `
		INSERT INTO monitor_runs (id, started_at, finished_at, total_tokens, expired_count, expiring_count, healthy_count, permanent_count, problematic_count, outcome, report_sent, fetch_errors, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.StartedAt, run.FinishedAt,
		run.TotalTokens, run.ExpiredCount, run.ExpiringCount, run.HealthyCount, run.PermanentCount, run.ProblematicCount,
		run.Outcome, run.ReportSent, run.FetchErrors, nullString(run.Error),
	)
	return err
}

// List returns the most recent runs, newest first.
func (r *Recorder) List(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT id, started_at, finished_at, total_tokens, expired_count, expiring_count, healthy_count, permanent_count, problematic_count, outcome, report_sent, fetch_errors, error FROM monitor_runs ORDER BY started_at DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var errText sql.NullString
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt,
			&run.TotalTokens, &run.ExpiredCount, &run.ExpiringCount, &run.HealthyCount, &run.PermanentCount, &run.ProblematicCount,
			&run.Outcome, &run.ReportSent, &run.FetchErrors, &errText); err != nil {
			return nil, err
		}
		run.Error = errText.String
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
