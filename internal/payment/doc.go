// Package payment bridges the payment processor to the gate dispatcher.
//
// When a transaction settles, the processor publishes a completion
// event to boomgate/payments/completed; this package turns each event
// into an auto-cycle request on the same dispatcher the operator
// channel uses. The bridge is strictly fire-and-forget toward the
// broker: contention, audio trouble or even a malformed event never
// surfaces as a payment failure.
package payment
