// Package mqtt provides the panel's MQTT connection to the Home Assistant
// broker.
//
// This package manages:
//   - Connection with auto-reconnect and subscription restore
//   - Availability: a retained "offline" last will on D/availability,
//     "online" on every connect, "offline" on Close
//   - Topic builders for every entity topic of the panel
//
// # Usage
//
//	topics := mqtt.Topics{DeviceID: cfg.Device.ID}
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	for _, topic := range topics.CommandTopics() {
//	    if err := client.Subscribe(topic, 1, loop.HandleMessage); err != nil {
//	        return err
//	    }
//	}
//
// Broker-backed tests are behind the integration build tag.
package mqtt
