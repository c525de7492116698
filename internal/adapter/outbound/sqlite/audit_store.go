package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Geo-fs/NeroAI/internal/domain/audit"
)

// AuditStore persists audit records.
type AuditStore struct {
	db *DB
}

// NewAuditStore creates an AuditStore over the shared database.
func NewAuditStore(db *DB) *AuditStore {
	return &AuditStore{db: db}
}

// Append stores records in order, one batch per transaction.
func (s *AuditStore) Append(ctx context.Context, records ...audit.Record) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO audit_logs (id, session_id, event_type, summary, payload, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			payload, err := json.Marshal(rec.Payload)
			if err != nil {
				return fmt.Errorf("encode payload: %w", err)
			}
			createdAt := nowRFC3339()
			if !rec.CreatedAt.IsZero() {
				createdAt = rec.CreatedAt.UTC().Format(time.RFC3339Nano)
			}
			if _, err := stmt.ExecContext(ctx,
				rec.ID, nullable(rec.SessionID), rec.EventType, rec.Summary, string(payload), createdAt,
			); err != nil {
				return fmt.Errorf("insert audit row: %w", err)
			}
		}
		return nil
	})
}

// List returns records matching the filter, newest first.
func (s *AuditStore) List(ctx context.Context, filter audit.Filter) ([]audit.Record, error) {
	var (
		conds []string
		args  []any
	)
	if filter.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.EventType != "" {
		conds = append(conds, "event_type = ?")
		args = append(args, filter.EventType)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = audit.DefaultListLimit
	}

	query := `SELECT id, session_id, event_type, summary, payload, created_at FROM audit_logs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var (
			rec       audit.Record
			sessionID sql.NullString
			payload   string
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &sessionID, &rec.EventType, &rec.Summary, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		rec.SessionID = sessionID.String
		rec.CreatedAt = parseTime(createdAt)
		if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

var _ audit.Store = (*AuditStore)(nil)
