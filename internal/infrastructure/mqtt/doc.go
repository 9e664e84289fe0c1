// Package mqtt connects devicehub to an MQTT broker.
//
// The broker is used in two directions. Accepted telemetry is published
// on {prefix}/telemetry/{device_id}/{topic}, and devices that cannot
// speak HTTP publish readings on {prefix}/ingest/{device_id}/{topic}.
// A retained presence document on {prefix}/system/status reports whether
// devicehub is online; the broker's will message flips it to offline if
// the connection dies.
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllIngest(), client.QoS(), handle)
package mqtt
