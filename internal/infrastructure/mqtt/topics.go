package mqtt

import "fmt"

// Topic prefixes for the Boom Gate MQTT namespace.
//
// Gate topics carry retained state; payment topics carry transient
// completion events published by the payment processor.
const (
	// TopicPrefixGate is the base for gate state topics.
	TopicPrefixGate = "boomgate/gate"

	// TopicPrefixPayments is the base for payment processor topics.
	TopicPrefixPayments = "boomgate/payments"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "boomgate/system"
)

// Topics provides builders for Boom Gate MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// GateState returns the retained state topic for a gate.
//
// Example: boomgate/gate/gate-main/state
func (Topics) GateState(gateID string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixGate, gateID)
}

// PaymentCompleted returns the topic payment-completion events arrive on.
//
// Example: boomgate/payments/completed
func (Topics) PaymentCompleted() string {
	return fmt.Sprintf("%s/completed", TopicPrefixPayments)
}

// SystemStatus returns the system status topic (online/offline, LWT).
//
// Example: boomgate/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllGateStates returns a pattern matching every gate's state topic.
//
// Pattern: boomgate/gate/+/state
func (Topics) AllGateStates() string {
	return fmt.Sprintf("%s/+/state", TopicPrefixGate)
}
