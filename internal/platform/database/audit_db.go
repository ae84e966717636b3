package database

import (
	"context"
	"database/sql"
)

// AuditDB wraps the optional audit connection so handlers can report on it
// even when the audit log is disabled.
type AuditDB struct {
	DB *sql.DB
}

func NewAuditDBWrapper(db *sql.DB) *AuditDB {
	return &AuditDB{DB: db}
}

func (a *AuditDB) Enabled() bool {
	return a != nil && a.DB != nil
}

func (a *AuditDB) Ping(ctx context.Context) error {
	if !a.Enabled() {
		return nil
	}
	return a.DB.PingContext(ctx)
}
