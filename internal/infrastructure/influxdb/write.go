package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteGateTransition records one gate state change as a measurement point.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - gateID: Gate the transition belongs to
//   - position: Position after the transition
//   - sequenceVersion: Monotonic version of the snapshot
func (c *Client) WriteGateTransition(gateID, position string, sequenceVersion uint64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"gate_transitions",
		map[string]string{
			"gate_id":  gateID,
			"position": position,
		},
		map[string]interface{}{
			"sequence_version": int64(sequenceVersion),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
