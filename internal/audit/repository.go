// Package audit persists one record per terminal gate operation and
// provides paginated access to the operation history.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/boomgate-core/internal/dispatch"
	"github.com/nerrad567/boomgate-core/internal/gate"
)

// OperationLog is a single persisted gate operation.
type OperationLog struct {
	ID            string       `json:"id"`
	GateID        string       `json:"gate_id"`
	Command       string       `json:"command"`
	Source        string       `json:"source"`
	TransactionID string       `json:"transaction_id,omitempty"`
	VehiclePlate  string       `json:"vehicle_plate,omitempty"`
	Outcome       gate.Outcome `json:"outcome"`
	StartedAt     time.Time    `json:"started_at"`
	EndedAt       time.Time    `json:"ended_at"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Filter controls which operation logs to return.
type Filter struct {
	GateID        string // optional: filter by gate
	Outcome       string // optional: filter by outcome (completed, aborted, failed)
	TransactionID string // optional: filter by payment transaction
	Limit         int    // default 50, max 200
	Offset        int    // pagination offset
}

// ListResult contains the paginated operation log results.
type ListResult struct {
	Operations []OperationLog `json:"operations"`
	Total      int            `json:"total"`
	Limit      int            `json:"limit"`
	Offset     int            `json:"offset"`
}

// Repository defines the interface for operation log access.
type Repository interface {
	Record(ctx context.Context, rec dispatch.OperationRecord) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores operation logs in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new operation log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts one terminal-outcome record. The ID is taken from the
// dispatcher's operation id, or generated if empty.
func (r *SQLiteRepository) Record(ctx context.Context, rec dispatch.OperationRecord) error {
	id := rec.OperationID
	if id == "" {
		id = "op-" + uuid.NewString()[:8]
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO gate_operations
		 (id, gate_id, command, source, transaction_id, vehicle_plate, outcome, started_at, ended_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.GateID, string(rec.Command), string(rec.Source),
		nullableString(rec.TransactionID), nullableString(rec.VehiclePlate),
		string(rec.Outcome),
		rec.StartedAt.UTC().Format(time.RFC3339),
		rec.EndedAt.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting operation log: %w", err)
	}

	return nil
}

// nullableString returns nil for nil or empty strings, for nullable
// TEXT columns in SQLite.
func nullableString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

// List returns operation logs matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.GateID != "" {
		conditions = append(conditions, "gate_id = ?")
		args = append(args, filter.GateID)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, filter.Outcome)
	}
	if filter.TransactionID != "" {
		conditions = append(conditions, "transaction_id = ?")
		args = append(args, filter.TransactionID)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// WHERE is built from parameterised conditions (? placeholders); no
	// user input reaches the SQL string.
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM gate_operations %s", where)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting operation logs: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT id, gate_id, command, source, transaction_id, vehicle_plate, outcome, started_at, ended_at, created_at
		 FROM gate_operations %s ORDER BY started_at DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying operation logs: %w", err)
	}
	defer rows.Close()

	var logs []OperationLog
	for rows.Next() {
		var log OperationLog
		var txID, plate sql.NullString
		var startedAt, endedAt, createdAt string

		if err := rows.Scan(&log.ID, &log.GateID, &log.Command, &log.Source,
			&txID, &plate, &log.Outcome, &startedAt, &endedAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning operation log: %w", err)
		}

		if txID.Valid {
			log.TransactionID = txID.String
		}
		if plate.Valid {
			log.VehiclePlate = plate.String
		}

		if log.StartedAt, err = parseTimestamp(startedAt); err != nil {
			return nil, err
		}
		if log.EndedAt, err = parseTimestamp(endedAt); err != nil {
			return nil, err
		}
		if log.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}

		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operation logs: %w", err)
	}

	if logs == nil {
		logs = []OperationLog{}
	}

	return &ListResult{
		Operations: logs,
		Total:      total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

// parseTimestamp parses the RFC3339 timestamps written by Record.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing operation log timestamp %q: %w", s, err)
	}
	return t, nil
}
