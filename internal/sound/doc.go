// Package sound provides the audio cue timeline for gate sequences.
//
// The Timeline maps each sequence phase to its ordered cues; querying
// it is deterministic and side-effect free. A Player dispatches cues
// fire-and-forget, and playback failure is always soft: the sequencer
// logs ErrAudioUnavailable and keeps the mechanical timeline on
// schedule.
package sound
