// Package mqtt wraps the Eclipse Paho client for the Boom Gate MQTT
// namespace.
//
// Inbound, the payment processor publishes completion events to
// boomgate/payments/completed; outbound, every gate snapshot is
// published retained to boomgate/gate/{id}/state so dashboards can
// follow the gate without holding a WebSocket. The wrapper adds
// reconnect-safe subscription tracking, LWT-based offline detection
// and panic recovery around message handlers.
package mqtt
