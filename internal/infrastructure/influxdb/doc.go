// Package influxdb provides InfluxDB connectivity for Climate Sync Core.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, sync-history writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series storage for:
//   - Sync decision history (target, current, diff, outcome per actuator)
//   - Zone temperature telemetry
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "home",
//	    Bucket:  "climatesync",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteSyncDecision("trv-living", "zone-living", "written", 21.5, 19.0, 2.5)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This keeps the sync path free of network round-trips.
package influxdb
