package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementRuns holds one point per recorded automation run.
const MeasurementRuns = "automation_runs"

// RunMetric describes one recorded run.
type RunMetric struct {
	Automation string
	Title      string
	State      string
	Duration   time.Duration
	Retry      bool
	At         time.Time
}

// RunPoint converts a run into an automation_runs point. Automation and
// state are tags; everything else is a field. A zero At means now.
func RunPoint(m RunMetric) *write.Point {
	at := m.At
	if at.IsZero() {
		at = time.Now()
	}
	return write.NewPoint(
		MeasurementRuns,
		map[string]string{
			"automation": m.Automation,
			"state":      m.State,
		},
		map[string]interface{}{
			"duration_ms": m.Duration.Milliseconds(),
			"retry":       m.Retry,
			"title":       m.Title,
		},
		at,
	)
}

// WriteRun queues a run point. It does nothing on a nil or closed client.
func (c *Client) WriteRun(m RunMetric) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(RunPoint(m))
}
