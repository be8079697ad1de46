package sound

// Phase names a stage of a gate sequence that carries audio cues.
type Phase string

// Sequence phases with audio feedback.
const (
	PhaseOpenWarning  Phase = "open_warning"
	PhaseCloseWarning Phase = "close_warning"
	PhaseMotorStart   Phase = "motor_start"
	PhaseMotorRun     Phase = "motor_run"
	PhaseMotorStop    Phase = "motor_stop"
	PhaseOpenConfirm  Phase = "open_confirm"
	PhaseCloseConfirm Phase = "close_confirm"
	PhaseEmergency    Phase = "emergency"
)

// Cue is a single timed audio event within a phase. Offsets are
// relative to the start of the phase; clip ids map to files in the
// configured clip directory.
type Cue struct {
	Phase        Phase  `json:"phase"`
	OffsetMillis int    `json:"offset_millis"`
	ClipID       string `json:"clip_id"`
}

// Clip identifiers. These match the asset filenames shipped alongside
// the service (clip id + ".wav").
const (
	ClipWarningBeep = "warning_beep"
	ClipMotorStart  = "motor_start"
	ClipMotorRun    = "motor_run"
	ClipMotorStop   = "motor_stop"
	ClipGateOpen    = "gate_open"
	ClipGateClose   = "gate_close"
	ClipError       = "error_sound"
)

// Timeline maps sequence phases to their ordered audio cues.
//
// The cue tables are built once at construction and never mutated, so
// CuesFor is safe for concurrent use and free of side effects.
type Timeline struct {
	cues map[Phase][]Cue
}

// NewTimeline builds the static cue tables for the gate sequences.
func NewTimeline() *Timeline {
	t := &Timeline{cues: make(map[Phase][]Cue)}
	add := func(phase Phase, offsetMillis int, clipID string) {
		t.cues[phase] = append(t.cues[phase], Cue{
			Phase:        phase,
			OffsetMillis: offsetMillis,
			ClipID:       clipID,
		})
	}

	add(PhaseOpenWarning, 0, ClipWarningBeep)
	add(PhaseCloseWarning, 0, ClipWarningBeep)
	add(PhaseMotorStart, 0, ClipMotorStart)
	add(PhaseMotorRun, 0, ClipMotorRun)
	add(PhaseMotorStop, 0, ClipMotorStop)
	add(PhaseOpenConfirm, 0, ClipGateOpen)
	add(PhaseCloseConfirm, 0, ClipGateClose)
	add(PhaseEmergency, 0, ClipError)

	return t
}

// CuesFor returns the ordered cues for a phase.
//
// The returned slice is a copy; callers can safely modify it. Unknown
// phases yield an empty slice rather than an error: a phase without
// cues is silent, not broken.
func (t *Timeline) CuesFor(phase Phase) []Cue {
	src := t.cues[phase]
	out := make([]Cue, len(src))
	copy(out, src)
	return out
}
