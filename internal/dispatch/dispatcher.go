package dispatch

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/boomgate-core/internal/gate"
	"github.com/nerrad567/boomgate-core/internal/sequence"
)

// Logger defines the logging interface used by the Dispatcher.
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

// AuditRecorder persists one record per terminal operation outcome.
// Recording failures must not affect gate operation; the dispatcher
// logs and continues.
type AuditRecorder interface {
	Record(ctx context.Context, rec OperationRecord) error
}

// auditRecordTimeout bounds the audit write after a run finishes.
const auditRecordTimeout = 5 * time.Second

// Dispatcher is the single entry point for both trigger paths.
//
// It owns the exclusive operation slot: at most one sequencer run is
// active at any instant, regardless of which path a request arrives
// from. Slot acquisition never blocks; a losing request fails fast
// with ErrGateBusy. Emergency stop bypasses the slot entirely and
// preempts the active run through its cancellation context.
//
// Thread Safety: Submit is safe for concurrent use from any number of
// goroutines.
type Dispatcher struct {
	machine *gate.Machine
	runner  *sequence.Runner
	audit   AuditRecorder // optional
	logger  Logger

	// defaultOpen is the auto-cycle hold applied when the request does
	// not carry a duration.
	defaultOpen time.Duration

	// mu guards the operation slot and the preemption handle.
	mu        sync.Mutex
	running   bool
	cancelRun context.CancelFunc
	runToken  uint64 // identifies the slot owner; guards stale releases
}

// New creates a dispatcher for one gate.
//
// Parameters:
//   - machine: The gate state machine
//   - runner: Sequence runner driving the machine
//   - defaultOpen: Auto-cycle hold when no duration is supplied
func New(machine *gate.Machine, runner *sequence.Runner, defaultOpen time.Duration) *Dispatcher {
	return &Dispatcher{
		machine:     machine,
		runner:      runner,
		defaultOpen: defaultOpen,
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// SetAuditRecorder attaches the audit collaborator. Must be called
// before the dispatcher is shared between goroutines.
func (d *Dispatcher) SetAuditRecorder(rec AuditRecorder) {
	d.audit = rec
}

// Submit handles one trigger request and returns immediately.
//
// Sequence commands (open, close, auto_cycle) acquire the operation
// slot or fail fast; an accepted sequence runs on its own goroutine
// and releases the slot at its terminal outcome. Emergency stop
// bypasses the slot and always succeeds. Toggle and status commands
// never touch the slot.
//
// Parameters:
//   - ctx: Bounds synchronous work only; an accepted sequence outlives it
//   - req: The trigger request
//
// Returns:
//   - Ack: Immediate acknowledgement (see Ack for the absorbed-busy case)
//   - error: ErrUnknownCommand, ErrInvalidParameter, ErrGateBusy or
//     gate.ErrInvalidTransition
func (d *Dispatcher) Submit(ctx context.Context, req Request) (Ack, error) {
	switch req.Command {
	case CmdGetStatus:
		snap := d.machine.Snapshot()
		return Ack{Accepted: true, Command: req.Command, Snapshot: &snap}, nil

	case CmdToggleSound:
		snap := d.machine.ToggleSound()
		return Ack{Accepted: true, Command: req.Command, Snapshot: &snap}, nil

	case CmdEmergencyStop:
		snap := d.emergencyStop()
		return Ack{Accepted: true, Command: req.Command, Snapshot: &snap}, nil

	case CmdOpen, CmdClose, CmdAutoCycle:
		return d.startSequence(ctx, req)
	}

	return Ack{Command: req.Command}, fmt.Errorf("%w: %q", ErrUnknownCommand, req.Command)
}

// startSequence validates the request, acquires the slot and launches
// the sequencer run.
func (d *Dispatcher) startSequence(ctx context.Context, req Request) (Ack, error) {
	openFor := d.defaultOpen
	if req.Command == CmdAutoCycle && req.OpenDurationSeconds != nil {
		v := *req.OpenDurationSeconds
		// Validated before slot acquisition: a bad duration must never
		// occupy the slot, even momentarily.
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return Ack{Command: req.Command}, fmt.Errorf(
				"%w: open_duration_seconds must be a positive number, got %v",
				ErrInvalidParameter, v,
			)
		}
		openFor = time.Duration(v * float64(time.Second))
	}

	runCtx, token, err := d.acquireSlot()
	if err != nil {
		if req.Source == SourceAutomatedTrigger {
			// A busy gate must never fail a completed payment.
			d.logger.Info("gate busy, automated trigger absorbed",
				"command", req.Command,
				"transaction_id", deref(req.TransactionID),
			)
			return Ack{Command: req.Command, Reason: "gate busy"}, nil
		}
		return Ack{Command: req.Command}, err
	}

	// Reset path: a close command on a stopped gate is the operator
	// acknowledgement edge, not a close sequence.
	if req.Command == CmdClose && d.machine.Position() == gate.PositionEmergencyStopped {
		defer d.releaseSlot(runCtx, token)
		snap, terr := d.machine.Transition(gate.PositionClosed)
		if terr != nil {
			return Ack{Command: req.Command}, terr
		}
		d.logger.Info("emergency stop acknowledged, gate reset", "source", req.Source)
		return Ack{Accepted: true, Command: req.Command, Snapshot: &snap}, nil
	}

	// Pre-flight the first edge so an impossible request fails the
	// caller synchronously instead of beeping for two seconds first.
	if perr := d.preflight(req.Command); perr != nil {
		d.releaseSlot(runCtx, token)
		return Ack{Command: req.Command}, perr
	}

	operationID := "op-" + uuid.NewString()[:8]
	d.machine.BeginOperation(req.TransactionID, req.VehiclePlate)

	d.logger.Info("sequence accepted",
		"operation_id", operationID,
		"command", req.Command,
		"source", req.Source,
		"transaction_id", deref(req.TransactionID),
		"vehicle_plate", deref(req.VehiclePlate),
	)

	go d.execute(runCtx, token, operationID, req, openFor)

	return Ack{Accepted: true, Command: req.Command, OperationID: operationID}, nil
}

// execute runs one sequence to its terminal outcome, then records the
// outcome and releases the slot. Runs on its own goroutine.
func (d *Dispatcher) execute(runCtx context.Context, token uint64, operationID string, req Request, openFor time.Duration) {
	started := time.Now().UTC()

	var outcome gate.Outcome
	var err error
	switch req.Command {
	case CmdOpen:
		outcome, err = d.runner.Open(runCtx)
	case CmdClose:
		outcome, err = d.runner.Close(runCtx)
	case CmdAutoCycle:
		outcome, err = d.runner.AutoCycle(runCtx, openFor)
	}

	if err != nil {
		d.logger.Error("sequence failed",
			"operation_id", operationID,
			"command", req.Command,
			"error", err,
		)
	}

	// A stop accepted after the runner's last preemption check arrives
	// as a cancelled context on a completed run. It still has to take
	// effect: apply the transition here and downgrade the outcome.
	if runCtx.Err() != nil && outcome == gate.OutcomeCompleted {
		d.logger.Warn("emergency stop arrived at sequence end, applying",
			"operation_id", operationID,
		)
		if _, terr := d.machine.Transition(gate.PositionEmergencyStopped); terr == nil {
			outcome = gate.OutcomeAborted
		}
	}

	snap := d.machine.FinishOperation(outcome)

	// The slot is freed before the audit write so a stop submitted
	// while the record is in flight takes the direct path instead of
	// cancelling a run that no longer exists.
	d.releaseSlot(runCtx, token)
	d.recordOutcome(operationID, req, outcome, started)

	d.logger.Info("sequence finished",
		"operation_id", operationID,
		"command", req.Command,
		"outcome", outcome,
		"position", snap.Position,
		"sequence_version", snap.SequenceVersion,
	)
}

// recordOutcome writes the audit record for a finished run. Failures
// are logged and swallowed.
func (d *Dispatcher) recordOutcome(operationID string, req Request, outcome gate.Outcome, started time.Time) {
	if d.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditRecordTimeout)
	defer cancel()

	rec := OperationRecord{
		OperationID:   operationID,
		GateID:        d.machine.GateID(),
		Command:       req.Command,
		Source:        req.Source,
		TransactionID: req.TransactionID,
		VehiclePlate:  req.VehiclePlate,
		Outcome:       outcome,
		StartedAt:     started,
		EndedAt:       time.Now().UTC(),
	}
	if err := d.audit.Record(ctx, rec); err != nil {
		d.logger.Error("audit record failed", "operation_id", operationID, "error", err)
	}
}

// emergencyStop preempts any active run; with no run active it forces
// the transition directly. Always succeeds.
func (d *Dispatcher) emergencyStop() gate.Snapshot {
	d.mu.Lock()
	if d.running && d.cancelRun != nil {
		// Cancel while holding the slot lock: a run releasing the slot
		// concurrently either observes the cancellation inside
		// releaseSlot or has already freed it, in which case the
		// direct-transition path below runs instead. Either way the
		// stop is applied, never dropped.
		d.cancelRun()
		d.mu.Unlock()
		d.logger.Warn("emergency stop: preempting active sequence")
		// The running sequencer applies the transition at its next
		// check point; the snapshot returned here may still show the
		// pre-stop position.
		return d.machine.Snapshot()
	}
	d.mu.Unlock()

	d.logger.Warn("emergency stop: no active sequence, forcing transition")
	snap, err := d.machine.Transition(gate.PositionEmergencyStopped)
	if err != nil {
		// Unreachable: the stop edge is legal from every position.
		d.logger.Error("emergency transition failed", "error", err)
		return d.machine.Snapshot()
	}
	return snap
}

// preflight checks that the first transition of a sequence is legal
// from the current position. Caller must hold the slot, so no other
// run can move the gate between the check and the run start.
func (d *Dispatcher) preflight(cmd Command) error {
	pos := d.machine.Position()
	switch cmd {
	case CmdOpen, CmdAutoCycle:
		if pos != gate.PositionClosed {
			return fmt.Errorf("%w: %s to %s", gate.ErrInvalidTransition, pos, gate.PositionOpening)
		}
	case CmdClose:
		if pos != gate.PositionOpen {
			return fmt.Errorf("%w: %s to %s", gate.ErrInvalidTransition, pos, gate.PositionClosing)
		}
	}
	return nil
}

// acquireSlot takes the exclusive operation slot, never blocking.
//
// Returns:
//   - context.Context: Cancellation context for the run
//   - uint64: Token identifying this acquisition
//   - error: ErrGateBusy if the slot is held
func (d *Dispatcher) acquireSlot() (context.Context, uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil, 0, ErrGateBusy
	}

	runCtx, cancel := context.WithCancel(context.Background())
	d.running = true
	d.cancelRun = cancel
	d.runToken++
	return runCtx, d.runToken, nil
}

// releaseSlot frees the slot if token still owns it. A stale token
// (from a run that was preempted and already superseded) is a no-op.
//
// Release is the last point a stop accepted against this run can be
// applied: emergencyStop cancels under the same lock, so a cancellation
// not yet reflected in the gate position is caught here before the slot
// opens to new sequences.
func (d *Dispatcher) releaseSlot(runCtx context.Context, token uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.runToken != token {
		return
	}
	if runCtx != nil && runCtx.Err() != nil &&
		d.machine.Position() != gate.PositionEmergencyStopped {
		if _, err := d.machine.Transition(gate.PositionEmergencyStopped); err != nil {
			d.logger.Error("late emergency transition failed", "error", err)
		}
	}
	if d.cancelRun != nil {
		d.cancelRun() // release the context's resources
	}
	d.running = false
	d.cancelRun = nil
}

// deref returns the pointed-to string or empty, for log fields.
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
