package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-nhc/internal/nhc"
)

// RecordBridgeHealth writes a bridge health snapshot to InfluxDB.
//
// Invoked by the health reporter on every publish. Writes are
// non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - status: Overall bridge status ("healthy", "degraded", "starting", ...)
//   - stats: Controller session statistics at snapshot time
//   - endpoints: Number of configured endpoints
func (c *Client) RecordBridgeHealth(status string, stats nhc.ClientStats, endpoints int) {
	if !c.IsConnected() {
		return
	}

	connected := 0
	if stats.Connected {
		connected = 1
	}

	point := write.NewPoint(
		"bridge_health",
		map[string]string{
			"protocol": "nhc",
			"status":   status,
		},
		map[string]interface{}{
			"controller_connected": connected,
			"actions":              stats.Actions,
			"endpoints":            endpoints,
			"events_rx":            int64(stats.EventsRx),   //nolint:gosec // counter, wraps at int64 max
			"commands_tx":          int64(stats.CommandsTx), //nolint:gosec // counter, wraps at int64 max
			"reconnects":           int64(stats.Reconnects), //nolint:gosec // counter, wraps at int64 max
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteEndpointState writes an endpoint state change measurement.
//
// Used for historical charts of dimmer levels, shutter positions and
// switch activity.
//
// Parameters:
//   - endpointID: Endpoint identifier (e.g., "light-living-main")
//   - channel: State channel ("switch", "brightness", "rollershutter", "button")
//   - value: The numeric state value (on=1/off=0 for switches)
func (c *Client) WriteEndpointState(endpointID string, channel string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"endpoint_state",
		map[string]string{
			"protocol":    "nhc",
			"endpoint_id": endpointID,
			"channel":     channel,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteCommandMetric records a processed command for throughput and
// failure-rate dashboards.
//
// Parameters:
//   - endpointID: Target endpoint identifier
//   - status: Ack status ("accepted" or "failed")
func (c *Client) WriteCommandMetric(endpointID string, status string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"bridge_commands",
		map[string]string{
			"protocol":    "nhc",
			"endpoint_id": endpointID,
			"status":      status,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "bridge-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
