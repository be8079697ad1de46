// Package dispatch arbitrates all gate triggers through one entry point.
//
// Both the operator control channel and the automated payment trigger
// call Submit on the same Dispatcher instance, so the exclusive
// operation slot and the emergency-stop preemption hold regardless of
// which path a request arrives from. Slot acquisition is
// acquire-or-fail: a second sequence command while one runs fails fast
// with ErrGateBusy rather than queuing. For the automated source,
// contention is absorbed here so a busy gate never fails a completed
// payment.
package dispatch
