package dispatch

import (
	"fmt"
	"time"

	"github.com/nerrad567/boomgate-core/internal/gate"
)

// Command is a recognised gate command.
type Command string

// The full command vocabulary accepted at the trigger boundary.
const (
	CmdOpen          Command = "open"
	CmdClose         Command = "close"
	CmdAutoCycle     Command = "auto_cycle"
	CmdEmergencyStop Command = "emergency_stop"
	CmdToggleSound   Command = "toggle_sound"
	CmdGetStatus     Command = "get_status"
)

// ParseCommand converts a wire-level command string into a Command.
//
// Returns:
//   - Command: The parsed command
//   - error: ErrUnknownCommand (wrapped with the offending string)
func ParseCommand(s string) (Command, error) {
	switch Command(s) {
	case CmdOpen, CmdClose, CmdAutoCycle, CmdEmergencyStop, CmdToggleSound, CmdGetStatus:
		return Command(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// Source identifies which trigger path a request arrived from.
type Source string

// Trigger sources.
const (
	// SourceControlChannel is the operator-facing real-time channel.
	// Callers from this source see every failure.
	SourceControlChannel Source = "control_channel"

	// SourceAutomatedTrigger is the payment-completion path. Contention
	// is absorbed at the dispatcher boundary for this source: a busy
	// gate must never fail a completed payment.
	SourceAutomatedTrigger Source = "automated_trigger"
)

// Request is one incoming trigger. It is consumed immediately by
// Submit and not retained.
type Request struct {
	Command             Command
	TransactionID       *string
	VehiclePlate        *string
	OpenDurationSeconds *float64
	Source              Source
}

// Ack is the immediate result of Submit.
//
// Accepted is true when a sequence was started or the command was
// applied. For the automated source, an absorbed contention failure
// yields Accepted false with a Reason and a nil error.
type Ack struct {
	Accepted    bool           `json:"accepted"`
	Command     Command        `json:"command"`
	OperationID string         `json:"operation_id,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Snapshot    *gate.Snapshot `json:"snapshot,omitempty"`
}

// OperationRecord is the audit record produced for every terminal
// outcome, one per sequencer run.
type OperationRecord struct {
	OperationID   string
	GateID        string
	Command       Command
	Source        Source
	TransactionID *string
	VehiclePlate  *string
	Outcome       gate.Outcome
	StartedAt     time.Time
	EndedAt       time.Time
}
