package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/boomgate-core/internal/dispatch"
	"github.com/nerrad567/boomgate-core/internal/gate"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE gate_operations (
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
		)`)
	if err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	return NewSQLiteRepository(db)
}

func makeRecord(id string, outcome gate.Outcome, started time.Time) dispatch.OperationRecord {
	return dispatch.OperationRecord{
		OperationID: id,
		GateID:      "gate-test",
		Command:     dispatch.CmdAutoCycle,
		Source:      dispatch.SourceAutomatedTrigger,
		Outcome:     outcome,
		StartedAt:   started,
		EndedAt:     started.Add(5 * time.Second),
	}
}

func TestRecordAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	txID := "txn-100"
	plate := "ABC-123"
	rec := makeRecord("op-1", gate.OutcomeCompleted, time.Now().UTC())
	rec.TransactionID = &txID
	rec.VehiclePlate = &plate

	if err := repo.Record(ctx, rec); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("Total = %d, want 1", result.Total)
	}

	got := result.Operations[0]
	if got.ID != "op-1" {
		t.Errorf("ID = %q, want %q", got.ID, "op-1")
	}
	if got.TransactionID != txID {
		t.Errorf("TransactionID = %q, want %q", got.TransactionID, txID)
	}
	if got.VehiclePlate != plate {
		t.Errorf("VehiclePlate = %q, want %q", got.VehiclePlate, plate)
	}
	if got.Outcome != gate.OutcomeCompleted {
		t.Errorf("Outcome = %q, want %q", got.Outcome, gate.OutcomeCompleted)
	}
	if !got.EndedAt.After(got.StartedAt) {
		t.Error("EndedAt should be after StartedAt")
	}
}

func TestRecordNilOptionalFields(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Record(ctx, makeRecord("op-2", gate.OutcomeAborted, time.Now().UTC())); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	got := result.Operations[0]
	if got.TransactionID != "" || got.VehiclePlate != "" {
		t.Errorf("optional fields should be empty, got %q / %q", got.TransactionID, got.VehiclePlate)
	}
}

func TestListFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Now().UTC()

	txID := "txn-55"
	recs := []dispatch.OperationRecord{
		makeRecord("op-a", gate.OutcomeCompleted, base.Add(-3*time.Minute)),
		makeRecord("op-b", gate.OutcomeAborted, base.Add(-2*time.Minute)),
		makeRecord("op-c", gate.OutcomeCompleted, base.Add(-1*time.Minute)),
	}
	recs[1].TransactionID = &txID
	for _, r := range recs {
		if err := repo.Record(ctx, r); err != nil {
			t.Fatalf("Record(%s) error = %v", r.OperationID, err)
		}
	}

	t.Run("by outcome", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{Outcome: string(gate.OutcomeAborted)})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if result.Total != 1 || result.Operations[0].ID != "op-b" {
			t.Errorf("got %+v, want only op-b", result.Operations)
		}
	})

	t.Run("by transaction", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{TransactionID: txID})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if result.Total != 1 || result.Operations[0].ID != "op-b" {
			t.Errorf("got %+v, want only op-b", result.Operations)
		}
	})

	t.Run("most recent first", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(result.Operations) != 3 {
			t.Fatalf("got %d operations, want 3", len(result.Operations))
		}
		if result.Operations[0].ID != "op-c" {
			t.Errorf("first = %q, want newest op-c", result.Operations[0].ID)
		}
	})

	t.Run("pagination", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{Limit: 2, Offset: 2})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if result.Total != 3 {
			t.Errorf("Total = %d, want 3", result.Total)
		}
		if len(result.Operations) != 1 || result.Operations[0].ID != "op-a" {
			t.Errorf("page = %+v, want only op-a", result.Operations)
		}
	})
}

func TestListEmptyRepository(t *testing.T) {
	repo := newTestRepo(t)

	result, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Operations == nil {
		t.Error("Operations should be an empty slice, not nil")
	}
	if result.Total != 0 {
		t.Errorf("Total = %d, want 0", result.Total)
	}
}

func TestListClampsLimit(t *testing.T) {
	repo := newTestRepo(t)

	result, err := repo.List(context.Background(), Filter{Limit: 9999, Offset: -5})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Limit != 200 {
		t.Errorf("Limit = %d, want clamped 200", result.Limit)
	}
	if result.Offset != 0 {
		t.Errorf("Offset = %d, want clamped 0", result.Offset)
	}
}
