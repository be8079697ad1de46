package sound

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrAudioUnavailable is returned when a cue cannot be dispatched to
// the audio device, typically because the clip asset is missing.
//
// Callers must treat this as a soft failure: the mechanical sequence
// proceeds on schedule regardless of audio health.
var ErrAudioUnavailable = errors.New("sound: audio unavailable")

// Logger is the minimal logging interface the players need.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Player dispatches audio cues. Play is fire-and-forget: it returns as
// soon as the cue is handed to the device and is never awaited to
// clip completion.
type Player interface {
	Play(cue Cue) error
}

// FilePlayer dispatches cues against a directory of clip files. It
// stands in for a real audio device in the simulator: a cue "plays" by
// verifying the clip asset exists and logging the dispatch.
type FilePlayer struct {
	dir    string
	logger Logger
}

// NewFilePlayer creates a player over the given clip directory.
func NewFilePlayer(dir string, logger Logger) *FilePlayer {
	return &FilePlayer{dir: dir, logger: logger}
}

// Play dispatches a single cue.
//
// Returns:
//   - error: ErrAudioUnavailable (wrapped) if the clip asset is missing
func (p *FilePlayer) Play(cue Cue) error {
	path := filepath.Join(p.dir, cue.ClipID+".wav")
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: clip %q: %v", ErrAudioUnavailable, cue.ClipID, err)
	}
	if p.logger != nil {
		p.logger.Debug("playing clip", "clip_id", cue.ClipID, "phase", cue.Phase)
	}
	return nil
}

// NullPlayer discards all cues. Used in tests and when no clip
// directory is configured.
type NullPlayer struct{}

// Play discards the cue.
func (NullPlayer) Play(Cue) error { return nil }
