package database

import (
	"context"
	"fmt"
)

// schema is the full database schema. All statements are idempotent
// (CREATE ... IF NOT EXISTS) so applySchema can run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS gate_operations (
	id TEXT PRIMARY KEY,
	gate_id TEXT NOT NULL,
	command TEXT NOT NULL,
	source TEXT NOT NULL,
	transaction_id TEXT,
	vehicle_plate TEXT,
	outcome TEXT NOT NULL,
	started_at TEXT NOT NULL,
	ended_at TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_gate_operations_gate
	ON gate_operations(gate_id, started_at DESC);

CREATE INDEX IF NOT EXISTS idx_gate_operations_transaction
	ON gate_operations(transaction_id);
`

// applySchema creates the required tables and indexes if they do not exist.
func (d *DB) applySchema(ctx context.Context) error {
	if _, err := d.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}
