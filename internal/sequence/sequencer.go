package sequence

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/boomgate-core/internal/gate"
	"github.com/nerrad567/boomgate-core/internal/infrastructure/config"
	"github.com/nerrad567/boomgate-core/internal/sound"
)

// Logger defines the logging interface used by the Runner.
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

// Timings holds the physical timing parameters of a sequence run.
type Timings struct {
	// TravelTime is the arm travel duration between end positions.
	TravelTime time.Duration

	// WarningInterval is the spacing between warning beeps.
	WarningInterval time.Duration

	// OpenWarningBeeps and CloseWarningBeeps are the beep counts
	// before the respective movement starts.
	OpenWarningBeeps  int
	CloseWarningBeeps int

	// MotorStartLead is the pause between the motor-start cue and the
	// arm beginning to travel.
	MotorStartLead time.Duration
}

// TimingsFromConfig converts the gate configuration into run timings.
func TimingsFromConfig(cfg config.GateConfig) Timings {
	return Timings{
		TravelTime:        cfg.TravelTime(),
		WarningInterval:   cfg.WarningInterval(),
		OpenWarningBeeps:  cfg.OpenWarningBeeps,
		CloseWarningBeeps: cfg.CloseWarningBeeps,
		MotorStartLead:    cfg.MotorStartLead(),
	}
}

// OpenDuration returns the wall time a full open sequence takes.
func (t Timings) OpenDuration() time.Duration {
	return time.Duration(t.OpenWarningBeeps)*t.WarningInterval + t.MotorStartLead + t.TravelTime
}

// CloseDuration returns the wall time a full close sequence takes.
func (t Timings) CloseDuration() time.Duration {
	return time.Duration(t.CloseWarningBeeps)*t.WarningInterval + t.MotorStartLead + t.TravelTime
}

// stepKind discriminates the entries of a sequence step list.
type stepKind int

const (
	stepCue stepKind = iota
	stepHold
	stepTransition
)

// step is one entry of a sequence. Exactly one of phase, duration or
// target is meaningful depending on kind.
type step struct {
	kind     stepKind
	phase    sound.Phase
	duration time.Duration
	target   gate.Position
}

// Runner executes one gate sequence at a time, driving the state
// machine and dispatching audio cues on a shared timeline.
//
// Holds are the only suspension points: preemption (context
// cancellation) is checked at every hold boundary and immediately
// before and after each state transition. Worst-case preemption
// latency is therefore bounded by the longest single hold.
//
// The Runner itself holds no cross-run state; the dispatcher ensures
// at most one run is active per gate.
type Runner struct {
	machine  *gate.Machine
	timeline *sound.Timeline
	player   sound.Player
	timings  Timings
	logger   Logger
}

// NewRunner creates a sequence runner.
//
// Parameters:
//   - machine: Gate state machine to drive
//   - timeline: Audio cue timeline
//   - player: Cue dispatcher (failures are soft)
//   - timings: Physical timing parameters
func NewRunner(machine *gate.Machine, timeline *sound.Timeline, player sound.Player, timings Timings) *Runner {
	return &Runner{
		machine:  machine,
		timeline: timeline,
		player:   player,
		timings:  timings,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the runner.
func (r *Runner) SetLogger(logger Logger) {
	r.logger = logger
}

// Timings returns the timing parameters of this runner.
func (r *Runner) Timings() Timings {
	return r.timings
}

// Open runs the full open sequence: warning beeps, transition to
// opening, motor cues across the travel hold, transition to open,
// confirmation cue.
//
// Returns:
//   - gate.Outcome: Completed, or Aborted if preempted
//   - error: Non-nil only with outcome Failed (rejected transition)
func (r *Runner) Open(ctx context.Context) (gate.Outcome, error) {
	return r.run(ctx, r.openSteps())
}

// Close runs the full close sequence, the mirror of Open.
func (r *Runner) Close(ctx context.Context) (gate.Outcome, error) {
	return r.run(ctx, r.closeSteps())
}

// AutoCycle runs the open sequence, holds the gate open for openFor,
// then runs the close sequence. The open hold is a suspension point
// like any other: an emergency stop during it aborts before any close
// transition is applied.
//
// Parameters:
//   - ctx: Cancelled to preempt the run
//   - openFor: How long to hold the gate open between sequences
func (r *Runner) AutoCycle(ctx context.Context, openFor time.Duration) (gate.Outcome, error) {
	outcome, err := r.run(ctx, r.openSteps())
	if outcome != gate.OutcomeCompleted {
		return outcome, err
	}

	r.logger.Info("gate open, holding", "duration", openFor)
	if !r.hold(ctx, openFor) {
		return r.abort(), nil
	}

	return r.run(ctx, r.closeSteps())
}

// run executes a step list, checking for preemption at every hold
// boundary and around every transition.
func (r *Runner) run(ctx context.Context, steps []step) (gate.Outcome, error) {
	for _, st := range steps {
		switch st.kind {
		case stepCue:
			r.playPhase(st.phase)

		case stepHold:
			if !r.hold(ctx, st.duration) {
				return r.abort(), nil
			}

		case stepTransition:
			if preempted(ctx) {
				return r.abort(), nil
			}
			if _, err := r.machine.Transition(st.target); err != nil {
				// Should not occur under correct sequencing; treated
				// as a defect and surfaced to the caller.
				r.logger.Error("mid-sequence transition rejected",
					"target", st.target,
					"error", err,
				)
				r.playPhase(sound.PhaseEmergency)
				return gate.OutcomeFailed, err
			}
			if preempted(ctx) {
				return r.abort(), nil
			}
		}
	}
	return gate.OutcomeCompleted, nil
}

// abort halts the run: the gate is forced to emergency_stopped and the
// error cue is played. Already-applied transitions and dispatched cues
// are not rolled back.
func (r *Runner) abort() gate.Outcome {
	if _, err := r.machine.Transition(gate.PositionEmergencyStopped); err != nil {
		// Emergency stop is legal from every position; failure here
		// means the machine is gone, which only logging can report.
		r.logger.Error("emergency transition failed", "error", err)
	}
	r.playPhase(sound.PhaseEmergency)
	r.logger.Warn("sequence aborted by emergency stop")
	return gate.OutcomeAborted
}

// hold waits for d or until the context is cancelled.
//
// Returns:
//   - bool: true if the full duration elapsed, false if preempted
func (r *Runner) hold(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return !preempted(ctx)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// playPhase dispatches all cues of a phase, fire-and-forget.
//
// Cues with a positive offset are scheduled asynchronously so playback
// never delays the mechanical timeline. Audio failures are logged and
// swallowed; sound-disabled gates skip dispatch entirely but keep the
// step timing identical.
func (r *Runner) playPhase(phase sound.Phase) {
	if !r.machine.SoundEnabled() {
		return
	}
	for _, cue := range r.timeline.CuesFor(phase) {
		if cue.OffsetMillis > 0 {
			cue := cue
			time.AfterFunc(time.Duration(cue.OffsetMillis)*time.Millisecond, func() {
				r.playCue(cue)
			})
			continue
		}
		r.playCue(cue)
	}
}

// playCue plays one cue, downgrading any failure to a log line.
func (r *Runner) playCue(cue sound.Cue) {
	if err := r.player.Play(cue); err != nil {
		if errors.Is(err, sound.ErrAudioUnavailable) {
			r.logger.Warn("audio unavailable, continuing sequence",
				"clip_id", cue.ClipID,
				"error", err,
			)
			return
		}
		r.logger.Error("cue dispatch failed", "clip_id", cue.ClipID, "error", err)
	}
}

// openSteps builds the step list for the open sequence.
func (r *Runner) openSteps() []step {
	steps := make([]step, 0, 2*r.timings.OpenWarningBeeps+8)
	for i := 0; i < r.timings.OpenWarningBeeps; i++ {
		steps = append(steps,
			step{kind: stepCue, phase: sound.PhaseOpenWarning},
			step{kind: stepHold, duration: r.timings.WarningInterval},
		)
	}
	steps = append(steps,
		step{kind: stepTransition, target: gate.PositionOpening},
		step{kind: stepCue, phase: sound.PhaseMotorStart},
		step{kind: stepHold, duration: r.timings.MotorStartLead},
		step{kind: stepCue, phase: sound.PhaseMotorRun},
		step{kind: stepHold, duration: r.timings.TravelTime},
		step{kind: stepCue, phase: sound.PhaseMotorStop},
		step{kind: stepTransition, target: gate.PositionOpen},
		step{kind: stepCue, phase: sound.PhaseOpenConfirm},
	)
	return steps
}

// closeSteps builds the step list for the close sequence.
func (r *Runner) closeSteps() []step {
	steps := make([]step, 0, 2*r.timings.CloseWarningBeeps+8)
	for i := 0; i < r.timings.CloseWarningBeeps; i++ {
		steps = append(steps,
			step{kind: stepCue, phase: sound.PhaseCloseWarning},
			step{kind: stepHold, duration: r.timings.WarningInterval},
		)
	}
	steps = append(steps,
		step{kind: stepTransition, target: gate.PositionClosing},
		step{kind: stepCue, phase: sound.PhaseMotorStart},
		step{kind: stepHold, duration: r.timings.MotorStartLead},
		step{kind: stepCue, phase: sound.PhaseMotorRun},
		step{kind: stepHold, duration: r.timings.TravelTime},
		step{kind: stepCue, phase: sound.PhaseMotorStop},
		step{kind: stepTransition, target: gate.PositionClosed},
		step{kind: stepCue, phase: sound.PhaseCloseConfirm},
	)
	return steps
}

// preempted reports whether the run context has been cancelled.
func preempted(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
