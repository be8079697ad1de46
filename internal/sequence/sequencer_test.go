package sequence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/boomgate-core/internal/gate"
	"github.com/nerrad567/boomgate-core/internal/sound"
)

// testTimings returns millisecond-scale timings so a full sequence
// finishes in well under a second.
func testTimings() Timings {
	return Timings{
		TravelTime:        20 * time.Millisecond,
		WarningInterval:   5 * time.Millisecond,
		OpenWarningBeeps:  3,
		CloseWarningBeeps: 2,
		MotorStartLead:    5 * time.Millisecond,
	}
}

// recordingPlayer captures every dispatched cue.
type recordingPlayer struct {
	mu   sync.Mutex
	cues []sound.Cue
	err  error
}

func (p *recordingPlayer) Play(cue sound.Cue) error {
	p.mu.Lock()
	p.cues = append(p.cues, cue)
	p.mu.Unlock()
	return p.err
}

func (p *recordingPlayer) clips() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.cues))
	for i, c := range p.cues {
		out[i] = c.ClipID
	}
	return out
}

func newTestRunner(t *testing.T, soundEnabled bool) (*Runner, *gate.Machine, *recordingPlayer) {
	t.Helper()
	machine := gate.NewMachine("gate-test", soundEnabled)
	player := &recordingPlayer{}
	runner := NewRunner(machine, sound.NewTimeline(), player, testTimings())
	return runner, machine, player
}

func TestOpenSequenceCompletes(t *testing.T) {
	runner, machine, player := newTestRunner(t, true)

	outcome, err := runner.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if outcome != gate.OutcomeCompleted {
		t.Errorf("outcome = %q, want %q", outcome, gate.OutcomeCompleted)
	}
	if got := machine.Position(); got != gate.PositionOpen {
		t.Errorf("Position() = %q, want %q", got, gate.PositionOpen)
	}

	// Three warning beeps, then the motor cues and the open confirmation.
	clips := player.clips()
	beeps := 0
	for _, c := range clips {
		if c == sound.ClipWarningBeep {
			beeps++
		}
	}
	if beeps != 3 {
		t.Errorf("warning beeps = %d, want 3 (clips: %v)", beeps, clips)
	}
	if clips[len(clips)-1] != sound.ClipGateOpen {
		t.Errorf("last clip = %q, want %q", clips[len(clips)-1], sound.ClipGateOpen)
	}
}

func TestCloseSequenceCompletes(t *testing.T) {
	runner, machine, player := newTestRunner(t, true)

	if outcome, err := runner.Open(context.Background()); err != nil || outcome != gate.OutcomeCompleted {
		t.Fatalf("Open() = %q, %v", outcome, err)
	}

	outcome, err := runner.Close(context.Background())
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if outcome != gate.OutcomeCompleted {
		t.Errorf("outcome = %q, want %q", outcome, gate.OutcomeCompleted)
	}
	if got := machine.Position(); got != gate.PositionClosed {
		t.Errorf("Position() = %q, want %q", got, gate.PositionClosed)
	}

	clips := player.clips()
	if clips[len(clips)-1] != sound.ClipGateClose {
		t.Errorf("last clip = %q, want %q", clips[len(clips)-1], sound.ClipGateClose)
	}

	// Two transitions per sequence, four for the round trip.
	if got := machine.Snapshot().SequenceVersion; got != 4 {
		t.Errorf("SequenceVersion = %d after round trip, want 4", got)
	}
}

func TestAutoCycleRoundTrip(t *testing.T) {
	runner, machine, _ := newTestRunner(t, false)

	openFor := 30 * time.Millisecond
	start := time.Now()
	outcome, err := runner.AutoCycle(context.Background(), openFor)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("AutoCycle() error = %v", err)
	}
	if outcome != gate.OutcomeCompleted {
		t.Errorf("outcome = %q, want %q", outcome, gate.OutcomeCompleted)
	}
	if got := machine.Position(); got != gate.PositionClosed {
		t.Errorf("Position() = %q, want %q", got, gate.PositionClosed)
	}

	// The cycle must take at least the open travel, the hold, and the
	// close travel. Generous upper bound for slow CI machines.
	tm := runner.Timings()
	min := tm.OpenDuration() + openFor + tm.CloseDuration()
	if elapsed < min {
		t.Errorf("AutoCycle() took %v, want at least %v", elapsed, min)
	}
	if elapsed > min+2*time.Second {
		t.Errorf("AutoCycle() took %v, far beyond the expected %v", elapsed, min)
	}
}

func TestPreemptionDuringTravelAborts(t *testing.T) {
	runner, machine, player := newTestRunner(t, true)

	ctx, cancel := context.WithCancel(context.Background())
	// Cancel mid-travel: after the warning beeps have passed but well
	// before the open transition.
	tm := runner.Timings()
	time.AfterFunc(time.Duration(tm.OpenWarningBeeps)*tm.WarningInterval+tm.MotorStartLead+5*time.Millisecond, cancel)

	outcome, err := runner.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if outcome != gate.OutcomeAborted {
		t.Errorf("outcome = %q, want %q", outcome, gate.OutcomeAborted)
	}
	if got := machine.Position(); got != gate.PositionEmergencyStopped {
		t.Errorf("Position() = %q, want %q", got, gate.PositionEmergencyStopped)
	}

	clips := player.clips()
	if len(clips) == 0 || clips[len(clips)-1] != sound.ClipError {
		t.Errorf("last clip = %v, want %q", clips, sound.ClipError)
	}
}

func TestPreemptionDuringOpenHoldSkipsClose(t *testing.T) {
	runner, machine, _ := newTestRunner(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	tm := runner.Timings()
	// Cancel during the open hold, after the open sequence has finished.
	time.AfterFunc(tm.OpenDuration()+10*time.Millisecond, cancel)

	outcome, err := runner.AutoCycle(ctx, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("AutoCycle() error = %v", err)
	}
	if outcome != gate.OutcomeAborted {
		t.Errorf("outcome = %q, want %q", outcome, gate.OutcomeAborted)
	}
	// The gate stopped from open; no closing transition was ever applied.
	if got := machine.Position(); got != gate.PositionEmergencyStopped {
		t.Errorf("Position() = %q, want %q", got, gate.PositionEmergencyStopped)
	}
}

func TestPreemptionBeforeStartAborts(t *testing.T) {
	runner, machine, _ := newTestRunner(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := runner.Open(ctx)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if outcome != gate.OutcomeAborted {
		t.Errorf("outcome = %q, want %q", outcome, gate.OutcomeAborted)
	}
	if got := machine.Position(); got != gate.PositionEmergencyStopped {
		t.Errorf("Position() = %q, want %q", got, gate.PositionEmergencyStopped)
	}
}

func TestAudioFailureDoesNotAffectSequence(t *testing.T) {
	machine := gate.NewMachine("gate-test", true)
	player := &recordingPlayer{err: sound.ErrAudioUnavailable}
	runner := NewRunner(machine, sound.NewTimeline(), player, testTimings())

	outcome, err := runner.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if outcome != gate.OutcomeCompleted {
		t.Errorf("outcome = %q, want %q", outcome, gate.OutcomeCompleted)
	}
	if got := machine.Position(); got != gate.PositionOpen {
		t.Errorf("Position() = %q, want %q", got, gate.PositionOpen)
	}
}

func TestSoundDisabledSkipsDispatchKeepsTiming(t *testing.T) {
	runner, _, player := newTestRunner(t, false)

	tm := runner.Timings()
	start := time.Now()
	outcome, err := runner.Open(context.Background())
	elapsed := time.Since(start)

	if err != nil || outcome != gate.OutcomeCompleted {
		t.Fatalf("Open() = %q, %v", outcome, err)
	}
	if clips := player.clips(); len(clips) != 0 {
		t.Errorf("dispatched %d cues with sound disabled, want 0", len(clips))
	}
	if elapsed < tm.OpenDuration() {
		t.Errorf("Open() took %v with sound disabled, want at least %v", elapsed, tm.OpenDuration())
	}
}

func TestRejectedTransitionFailsRun(t *testing.T) {
	machine := gate.NewMachine("gate-test", false)
	// Force the machine off the expected path before running a close.
	if _, err := machine.Transition(gate.PositionEmergencyStopped); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	runner := NewRunner(machine, sound.NewTimeline(), sound.NullPlayer{}, testTimings())

	outcome, err := runner.Close(context.Background())
	if outcome != gate.OutcomeFailed {
		t.Errorf("outcome = %q, want %q", outcome, gate.OutcomeFailed)
	}
	if !errors.Is(err, gate.ErrInvalidTransition) {
		t.Errorf("error = %v, want ErrInvalidTransition", err)
	}
}
