package gate

import (
	"sync"
	"testing"
)

func TestNewMachineStartsClosed(t *testing.T) {
	m := NewMachine("gate-test", true)

	if got := m.Position(); got != PositionClosed {
		t.Errorf("Position() = %q, want %q", got, PositionClosed)
	}
	if !m.SoundEnabled() {
		t.Error("SoundEnabled() = false, want true")
	}

	snap := m.Snapshot()
	if snap.GateID != "gate-test" {
		t.Errorf("GateID = %q, want %q", snap.GateID, "gate-test")
	}
	if snap.SequenceVersion != 0 {
		t.Errorf("SequenceVersion = %d, want 0", snap.SequenceVersion)
	}
	if snap.LastOperation != nil {
		t.Error("LastOperation should be nil before any operation")
	}
}

func TestTransitionLegalEdges(t *testing.T) {
	tests := []struct {
		name string
		path []Position
	}{
		{"open cycle", []Position{PositionOpening, PositionOpen, PositionClosing, PositionClosed}},
		{"stop from closed", []Position{PositionEmergencyStopped}},
		{"stop mid travel", []Position{PositionOpening, PositionEmergencyStopped}},
		{"stop then reset", []Position{PositionOpening, PositionEmergencyStopped, PositionClosed}},
		{"repeated stop", []Position{PositionEmergencyStopped, PositionEmergencyStopped}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine("gate-test", false)
			for _, to := range tt.path {
				if _, err := m.Transition(to); err != nil {
					t.Fatalf("Transition(%q) error = %v", to, err)
				}
			}
			if got := m.Position(); got != tt.path[len(tt.path)-1] {
				t.Errorf("Position() = %q, want %q", got, tt.path[len(tt.path)-1])
			}
		})
	}
}

func TestTransitionIllegalEdges(t *testing.T) {
	tests := []struct {
		name string
		from []Position // legal path to reach the starting position
		to   Position
	}{
		{"closed to open skips opening", nil, PositionOpen},
		{"closed to closing", nil, PositionClosing},
		{"opening to closed", []Position{PositionOpening}, PositionClosed},
		{"open to opening", []Position{PositionOpening, PositionOpen}, PositionOpening},
		{"stopped to opening without reset", []Position{PositionEmergencyStopped}, PositionOpening},
		{"stopped to open without reset", []Position{PositionEmergencyStopped}, PositionOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine("gate-test", false)
			for _, p := range tt.from {
				if _, err := m.Transition(p); err != nil {
					t.Fatalf("setup Transition(%q) error = %v", p, err)
				}
			}
			before := m.Snapshot()

			_, err := m.Transition(tt.to)
			if err == nil {
				t.Fatalf("Transition(%q) should fail from %q", tt.to, before.Position)
			}

			after := m.Snapshot()
			if after.Position != before.Position {
				t.Errorf("position changed on rejected transition: %q -> %q", before.Position, after.Position)
			}
			if after.SequenceVersion != before.SequenceVersion {
				t.Error("sequence version changed on rejected transition")
			}
		})
	}
}

func TestTransitionInvalidPosition(t *testing.T) {
	m := NewMachine("gate-test", false)
	if _, err := m.Transition(Position("sideways")); err == nil {
		t.Error("Transition() should reject an unknown position")
	}
}

func TestSequenceVersionMonotonic(t *testing.T) {
	m := NewMachine("gate-test", true)

	var versions []uint64
	record := func(snap Snapshot) { versions = append(versions, snap.SequenceVersion) }

	snap, _ := m.Transition(PositionOpening)
	record(snap)
	record(m.ToggleSound())
	snap, _ = m.Transition(PositionOpen)
	record(snap)
	record(m.FinishOperation(OutcomeCompleted))

	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Fatalf("version not strictly increasing: %v", versions)
		}
	}
}

func TestToggleSoundIndependentOfPosition(t *testing.T) {
	m := NewMachine("gate-test", true)
	if _, err := m.Transition(PositionOpening); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	snap := m.ToggleSound()
	if snap.SoundEnabled {
		t.Error("SoundEnabled = true after toggle, want false")
	}
	if snap.Position != PositionOpening {
		t.Errorf("Position = %q after toggle, want %q", snap.Position, PositionOpening)
	}

	snap = m.ToggleSound()
	if !snap.SoundEnabled {
		t.Error("SoundEnabled = false after second toggle, want true")
	}
}

func TestOperationLifecycle(t *testing.T) {
	m := NewMachine("gate-test", false)

	txID := "txn-123"
	plate := "ABC-123"
	m.BeginOperation(&txID, &plate)

	snap := m.Snapshot()
	if snap.LastOperation == nil {
		t.Fatal("LastOperation should be set after BeginOperation")
	}
	if snap.LastOperation.Outcome != nil {
		t.Error("Outcome should be nil while the operation is in flight")
	}
	if got := *snap.LastOperation.TransactionID; got != txID {
		t.Errorf("TransactionID = %q, want %q", got, txID)
	}

	snap = m.FinishOperation(OutcomeCompleted)
	if snap.LastOperation.Outcome == nil || *snap.LastOperation.Outcome != OutcomeCompleted {
		t.Errorf("Outcome = %v, want %q", snap.LastOperation.Outcome, OutcomeCompleted)
	}
	if snap.LastOperation.EndedAt == nil {
		t.Error("EndedAt should be stamped by FinishOperation")
	}
}

func TestResetClearsOutcome(t *testing.T) {
	m := NewMachine("gate-test", false)
	m.BeginOperation(nil, nil)
	if _, err := m.Transition(PositionEmergencyStopped); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	m.FinishOperation(OutcomeAborted)

	snap, err := m.Transition(PositionClosed)
	if err != nil {
		t.Fatalf("reset Transition() error = %v", err)
	}
	if snap.LastOperation == nil {
		t.Fatal("LastOperation should survive the reset")
	}
	if snap.LastOperation.Outcome != nil {
		t.Errorf("Outcome = %q after reset, want nil", *snap.LastOperation.Outcome)
	}
}

// publisherFunc adapts a function to the Publisher interface.
type publisherFunc func(Snapshot)

func (f publisherFunc) Publish(snap Snapshot) { f(snap) }

func TestPublishOrderMatchesVersionOrder(t *testing.T) {
	m := NewMachine("gate-test", true)

	var mu sync.Mutex
	var published []uint64
	m.SetPublisher(publisherFunc(func(snap Snapshot) {
		mu.Lock()
		published = append(published, snap.SequenceVersion)
		mu.Unlock()
	}))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.ToggleSound()
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(published) != 10 {
		t.Fatalf("published %d snapshots, want 10", len(published))
	}
	for i := 1; i < len(published); i++ {
		if published[i] <= published[i-1] {
			t.Fatalf("publish order does not match version order: %v", published)
		}
	}
}

func TestSnapshotDoesNotAliasState(t *testing.T) {
	m := NewMachine("gate-test", false)
	txID := "txn-1"
	m.BeginOperation(&txID, nil)

	snap := m.Snapshot()
	*snap.LastOperation.TransactionID = "mutated"

	if got := *m.Snapshot().LastOperation.TransactionID; got != "txn-1" {
		t.Errorf("machine state mutated through snapshot: %q", got)
	}
}
