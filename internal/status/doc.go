// Package status fans gate snapshots out to observers.
//
// The Broadcaster keeps a registry of subscribed observers and
// delivers every published snapshot to each of them without blocking:
// a stuck observer loses its oldest buffered snapshots, never the
// actuator's time. Snapshots arrive in sequence-version order per
// observer. Current answers get_status queries synchronously from the
// state machine.
package status
