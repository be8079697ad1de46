package gate

import "time"

// Position represents the physical position of the barrier arm.
type Position string

// Valid gate positions.
const (
	PositionClosed           Position = "closed"
	PositionOpening          Position = "opening"
	PositionOpen             Position = "open"
	PositionClosing          Position = "closing"
	PositionEmergencyStopped Position = "emergency_stopped"
)

// Valid reports whether p is a recognised position.
func (p Position) Valid() bool {
	switch p {
	case PositionClosed, PositionOpening, PositionOpen, PositionClosing, PositionEmergencyStopped:
		return true
	}
	return false
}

// Outcome is the terminal result of a gate operation.
type Outcome string

// Terminal operation outcomes.
const (
	// OutcomeCompleted means the sequence ran all steps to the end.
	OutcomeCompleted Outcome = "completed"

	// OutcomeAborted means an emergency stop preempted the sequence.
	OutcomeAborted Outcome = "aborted"

	// OutcomeFailed means a transition was rejected mid-sequence.
	// This indicates a sequencing defect, not an operational condition.
	OutcomeFailed Outcome = "failed"
)

// Operation records the most recent (or in-flight) gate operation.
// TransactionID and VehiclePlate are set only for operations triggered
// by a completed payment.
type Operation struct {
	TransactionID *string    `json:"transaction_id,omitempty"`
	VehiclePlate  *string    `json:"vehicle_plate,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	Outcome       *Outcome   `json:"outcome,omitempty"`
}

// copyOf returns a deep copy so snapshots never alias machine state.
func (o *Operation) copyOf() *Operation {
	if o == nil {
		return nil
	}
	cp := Operation{StartedAt: o.StartedAt}
	if o.TransactionID != nil {
		v := *o.TransactionID
		cp.TransactionID = &v
	}
	if o.VehiclePlate != nil {
		v := *o.VehiclePlate
		cp.VehiclePlate = &v
	}
	if o.EndedAt != nil {
		v := *o.EndedAt
		cp.EndedAt = &v
	}
	if o.Outcome != nil {
		v := *o.Outcome
		cp.Outcome = &v
	}
	return &cp
}

// Snapshot is an immutable copy of the gate status at a point in time.
// Snapshots are published to observers on every accepted transition and
// on sound toggles; SequenceVersion is strictly increasing across the
// lifetime of the machine.
type Snapshot struct {
	GateID          string     `json:"gate_id"`
	Position        Position   `json:"position"`
	SoundEnabled    bool       `json:"sound_enabled"`
	SequenceVersion uint64     `json:"sequence_version"`
	LastOperation   *Operation `json:"last_operation,omitempty"`
	Timestamp       time.Time  `json:"timestamp"`
}
