// Package mqtt republishes communication-object writes onto an MQTT
// broker and accepts inbound group-write commands from a command topic,
// an external observer of the device object model's com_object_write
// event. It wraps github.com/eclipse/paho.mqtt.golang with connection
// options, auto-reconnect, a last-will status message and a
// subscription table restored on reconnect.
package mqtt
