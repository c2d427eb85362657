// Package influxdb provides optional time series storage of session
// events for the bridge.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Session event history (connections, recording transitions, errors)
//   - Recording state over time per supervised host
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "mocap",
//	    Bucket: "shogunosc",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	forwarder := influxdb.NewForwarder(client, notifier, cfg.Shogun.Host)
//	go forwarder.Run(ctx)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via
// the SetOnError callback. Connection and health check errors are
// returned directly.
package influxdb
