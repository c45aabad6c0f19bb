package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSyncDecision records the outcome of a single actuator sync evaluation.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: The actuator's device identifier
//   - zoneID: The zone the actuator belongs to
//   - outcome: What the evaluation decided ("written", "skipped", "forced", "failed")
//   - target: The sensor temperature the actuator should track
//   - current: The actuator's value before the evaluation (NaN if unknown)
//   - diff: Absolute difference between target and current
//
// Example:
//
//	client.WriteSyncDecision("trv-living", "zone-living", "written", 20.5, 19.8, 0.7)
func (c *Client) WriteSyncDecision(deviceID, zoneID, outcome string, target, current, diff float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sync_decisions",
		map[string]string{
			"device_id": deviceID,
			"zone_id":   zoneID,
			"outcome":   outcome,
		},
		map[string]interface{}{
			"target":  target,
			"current": current,
			"diff":    diff,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteZoneTemperature records a zone's ambient temperature reading.
//
// Used to keep a history of sensor readings alongside sync decisions
// so drift between sensor and actuator can be charted.
//
// Parameters:
//   - zoneID: The zone identifier
//   - temperature: Ambient temperature in degrees C
func (c *Client) WriteZoneTemperature(zoneID string, temperature float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"zone_temperature",
		map[string]string{
			"zone_id": zoneID,
		},
		map[string]interface{}{
			"value": temperature,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
