// Package sequence executes the timed open, close and auto-cycle gate
// sequences.
//
// A run is a fixed, ordered list of cue, hold and transition steps.
// Holds are the only suspension points; preemption is checked at every
// hold boundary and immediately before and after each transition, which
// bounds emergency-stop latency to one hold's duration. Audio cues are
// dispatched fire-and-forget and never affect the mechanical timeline.
package sequence
