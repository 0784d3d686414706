// Package mqtt provides MQTT client connectivity for the NHC bridge.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Gray Logic uses MQTT as the internal message bus connecting the Core
// to protocol bridges. This bridge translates between the Niko Home
// Control controller and the bus; the broker (Mosquitto) decouples it
// from the Core and other consumers.
//
//	NHC Controller ↔ NHC Bridge ↔ MQTT Broker ↔ Gray Logic Core
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all commands addressed to this bridge
//	err = client.Subscribe(mqtt.Topics{}.AllBridgeCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish endpoint state
//	topic := mqtt.Topics{}.BridgeState("nhc", "light-living")
//	client.Publish(topic, []byte(`{"on":true}`), 1, true)
package mqtt
