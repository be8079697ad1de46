package sound

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestTimelinePhasesHaveCues(t *testing.T) {
	tl := NewTimeline()

	tests := []struct {
		phase Phase
		clip  string
	}{
		{PhaseOpenWarning, ClipWarningBeep},
		{PhaseCloseWarning, ClipWarningBeep},
		{PhaseMotorStart, ClipMotorStart},
		{PhaseMotorRun, ClipMotorRun},
		{PhaseMotorStop, ClipMotorStop},
		{PhaseOpenConfirm, ClipGateOpen},
		{PhaseCloseConfirm, ClipGateClose},
		{PhaseEmergency, ClipError},
	}

	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			cues := tl.CuesFor(tt.phase)
			if len(cues) == 0 {
				t.Fatalf("CuesFor(%q) returned no cues", tt.phase)
			}
			if cues[0].ClipID != tt.clip {
				t.Errorf("ClipID = %q, want %q", cues[0].ClipID, tt.clip)
			}
		})
	}
}

func TestTimelineUnknownPhaseIsSilent(t *testing.T) {
	tl := NewTimeline()
	if cues := tl.CuesFor(Phase("fanfare")); len(cues) != 0 {
		t.Errorf("CuesFor(unknown) = %d cues, want 0", len(cues))
	}
}

func TestCuesForReturnsCopy(t *testing.T) {
	tl := NewTimeline()

	cues := tl.CuesFor(PhaseMotorStart)
	cues[0].ClipID = "mutated"

	if got := tl.CuesFor(PhaseMotorStart)[0].ClipID; got != ClipMotorStart {
		t.Errorf("timeline mutated through returned slice: %q", got)
	}
}

func TestFilePlayerMissingClip(t *testing.T) {
	p := NewFilePlayer(t.TempDir(), nil)

	err := p.Play(Cue{Phase: PhaseMotorStart, ClipID: ClipMotorStart})
	if !errors.Is(err, ErrAudioUnavailable) {
		t.Errorf("Play() error = %v, want ErrAudioUnavailable", err)
	}
}

func TestFilePlayerExistingClip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ClipWarningBeep+".wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0o600); err != nil {
		t.Fatalf("writing clip fixture: %v", err)
	}

	p := NewFilePlayer(dir, nil)
	if err := p.Play(Cue{Phase: PhaseOpenWarning, ClipID: ClipWarningBeep}); err != nil {
		t.Errorf("Play() error = %v", err)
	}
}

func TestNullPlayerNeverFails(t *testing.T) {
	if err := (NullPlayer{}).Play(Cue{ClipID: "anything"}); err != nil {
		t.Errorf("Play() error = %v", err)
	}
}
