package gate

import (
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Machine.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Publisher receives a snapshot for every accepted mutation.
//
// Publish is called while the machine's lock is held so that broadcast
// order matches sequence version order. Implementations must therefore
// never block; the status broadcaster satisfies this by using buffered
// per-observer channels with drop-oldest semantics.
type Publisher interface {
	Publish(snapshot Snapshot)
}

// legalEdges enumerates the permitted position transitions.
// Emergency stop is reachable from every position (including itself,
// so repeated stop commands still produce a fresh snapshot). The only
// way out of emergency_stopped is the explicit reset edge to closed.
var legalEdges = map[Position][]Position{
	PositionClosed:           {PositionOpening, PositionEmergencyStopped},
	PositionOpening:          {PositionOpen, PositionEmergencyStopped},
	PositionOpen:             {PositionClosing, PositionEmergencyStopped},
	PositionClosing:          {PositionClosed, PositionEmergencyStopped},
	PositionEmergencyStopped: {PositionClosed, PositionEmergencyStopped},
}

// Machine is the single source of truth for one gate's status.
//
// It owns the position, the sound toggle, the last-operation record and
// the sequence version, and enforces the legal transition edges. All
// mutation happens under one mutex; the snapshot passed to the publisher
// is taken inside the same critical section, so a concurrent reader can
// never observe a partially applied transition and snapshots are
// published in version order.
//
// Mutual exclusion between whole operations (one sequence at a time) is
// the dispatcher's job, not the machine's; the machine only guarantees
// per-mutation consistency.
//
// Thread Safety: all methods are safe for concurrent use.
type Machine struct {
	gateID string

	mu           sync.Mutex
	position     Position
	soundEnabled bool
	version      uint64
	lastOp       *Operation

	publisher Publisher
	logger    Logger
}

// NewMachine creates a gate machine in the closed position.
//
// Parameters:
//   - gateID: Identifier stamped on every snapshot
//   - soundEnabled: Initial state of the sound toggle
//
// Returns:
//   - *Machine: Machine ready for use, with no publisher attached
func NewMachine(gateID string, soundEnabled bool) *Machine {
	return &Machine{
		gateID:       gateID,
		position:     PositionClosed,
		soundEnabled: soundEnabled,
		logger:       noopLogger{},
	}
}

// SetLogger sets the logger for the machine.
func (m *Machine) SetLogger(logger Logger) {
	m.logger = logger
}

// SetPublisher attaches the snapshot publisher. Must be called before
// the machine is shared between goroutines.
func (m *Machine) SetPublisher(p Publisher) {
	m.publisher = p
}

// GateID returns the identifier of this gate instance.
func (m *Machine) GateID() string {
	return m.gateID
}

// Transition moves the gate to a new position.
//
// The transition is applied only if it matches a legal edge; otherwise
// ErrInvalidTransition is returned and the state is unchanged. Every
// accepted transition increments the sequence version and publishes a
// snapshot.
//
// The reset edge (emergency_stopped to closed) additionally clears the
// outcome marker on the last-operation record, representing operator
// acknowledgement of the stop.
//
// Parameters:
//   - to: Target position
//
// Returns:
//   - Snapshot: State after the transition
//   - error: ErrInvalidPosition or ErrInvalidTransition
func (m *Machine) Transition(to Position) (Snapshot, error) {
	if !to.Valid() {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrInvalidPosition, to)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.position
	if !edgeAllowed(from, to) {
		m.logger.Warn("transition rejected",
			"gate_id", m.gateID,
			"from", from,
			"to", to,
		)
		return Snapshot{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}

	if from == PositionEmergencyStopped && to == PositionClosed && m.lastOp != nil {
		m.lastOp.Outcome = nil
	}

	m.position = to
	m.version++

	snap := m.snapshotLocked()
	m.logger.Info("transition applied",
		"gate_id", m.gateID,
		"from", from,
		"to", to,
		"sequence_version", snap.SequenceVersion,
	)
	m.publishLocked(snap)
	return snap, nil
}

// ToggleSound flips the sound-enabled flag and publishes the resulting
// snapshot. The toggle is independent of any running sequence.
//
// Returns:
//   - Snapshot: State after the toggle
func (m *Machine) ToggleSound() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.soundEnabled = !m.soundEnabled
	m.version++

	snap := m.snapshotLocked()
	m.logger.Info("sound toggled", "gate_id", m.gateID, "enabled", m.soundEnabled)
	m.publishLocked(snap)
	return snap
}

// SoundEnabled reports the current state of the sound toggle.
func (m *Machine) SoundEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.soundEnabled
}

// Position returns the current gate position.
func (m *Machine) Position() Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// BeginOperation records the start of a new operation. It does not
// publish a snapshot; the first transition of the sequence does.
//
// Parameters:
//   - transactionID: Payment transaction that triggered the operation, if any
//   - vehiclePlate: Recognised plate associated with the trigger, if any
func (m *Machine) BeginOperation(transactionID, vehiclePlate *string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastOp = &Operation{
		TransactionID: transactionID,
		VehiclePlate:  vehiclePlate,
		StartedAt:     time.Now().UTC(),
	}
}

// FinishOperation stamps the terminal outcome and end time on the
// current operation record and publishes a final snapshot.
//
// Parameters:
//   - outcome: Terminal outcome of the sequence
//
// Returns:
//   - Snapshot: Final state including the completed operation record
func (m *Machine) FinishOperation(outcome Outcome) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastOp != nil {
		now := time.Now().UTC()
		m.lastOp.EndedAt = &now
		m.lastOp.Outcome = &outcome
	}
	m.version++

	snap := m.snapshotLocked()
	m.logger.Info("operation finished",
		"gate_id", m.gateID,
		"outcome", outcome,
		"position", snap.Position,
	)
	m.publishLocked(snap)
	return snap
}

// Snapshot returns a consistent copy of the current status.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// snapshotLocked builds a snapshot. Caller must hold m.mu.
func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		GateID:          m.gateID,
		Position:        m.position,
		SoundEnabled:    m.soundEnabled,
		SequenceVersion: m.version,
		LastOperation:   m.lastOp.copyOf(),
		Timestamp:       time.Now().UTC(),
	}
}

// publishLocked delivers a snapshot to the publisher. Caller must hold m.mu.
func (m *Machine) publishLocked(snap Snapshot) {
	if m.publisher != nil {
		m.publisher.Publish(snap)
	}
}

// edgeAllowed reports whether from -> to is a legal transition.
func edgeAllowed(from, to Position) bool {
	for _, allowed := range legalEdges[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
