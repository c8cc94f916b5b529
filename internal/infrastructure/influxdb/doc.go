// Package influxdb records automation run metrics in InfluxDB.
//
// It wraps influxdb-client-go v2 with connection management, a health
// check and non-blocking batched writes. Every run that reaches the audit
// log becomes one point in the automation_runs measurement:
//
//	automation_runs,automation=<uuid>,state=DONE duration_ms=12i,retry=false,title="Forward SMS"
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteRun(influxdb.RunMetric{Automation: id, State: "DONE", ...})
//
// Writes are batched per batch_size and flush_interval. Batch errors are
// delivered to the SetOnError callback; Connect and HealthCheck return
// theirs directly.
package influxdb
