// Package mqtt provides the bridge's optional MQTT notification mirror.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing session events with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The mirror is one-directional. Session events (connection state,
// recording state, capture setting changes, errors) are published
// under a configurable topic prefix so dashboards and automation can
// observe a capture session without speaking OSC.
//
//	OSC bridge -> MQTT Broker -> dashboards / automation
//
// Commands are never accepted over MQTT; the OSC dispatcher is the
// only command surface.
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	forwarder := mqtt.NewForwarder(client, notifier)
//	go forwarder.Run(ctx)
package mqtt
