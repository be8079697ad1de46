// Package gate implements the boom gate state machine.
//
// The Machine is the single source of truth for one gate's position,
// sound toggle, last-operation record and sequence version. Positions
// move only along legal edges:
//
//	closed → opening → open → closing → closed
//
// with emergency_stopped reachable from any position, and an explicit
// reset edge emergency_stopped → closed that represents operator
// acknowledgement.
//
// Every accepted mutation increments the sequence version and publishes
// an immutable Snapshot in version order. The machine deliberately does
// not arbitrate between concurrent operations; that is the dispatch
// package's exclusive-slot discipline.
package gate
