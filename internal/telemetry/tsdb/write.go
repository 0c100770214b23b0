package tsdb

import (
	"encoding/hex"

	"github.com/basilfx/knx-devstack/internal/knx"
	"github.com/basilfx/knx-devstack/internal/knxdevice"
)

// PointWriter is the slice of Client the sink needs; narrowed to an
// interface so tests can observe points without a server.
type PointWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any)
}

// Sink records every communication-object write as one point per
// associated group address.
type Sink struct {
	writer      PointWriter
	device      *knxdevice.Device
	measurement string
}

// NewSink creates a Sink writing under the given measurement name
// (typically "comobject_value").
func NewSink(writer PointWriter, device *knxdevice.Device, measurement string) *Sink {
	return &Sink{writer: writer, device: device, measurement: measurement}
}

// HandleEvent is a knxdevice.EventCallback turning communication-object
// writes into time-series points.
func (s *Sink) HandleEvent(dev *knxdevice.Device, event knxdevice.Event) {
	write, ok := event.(knxdevice.ComObjectWriteEvent)
	if !ok {
		return
	}

	index, ok := dev.ComObjectIndex(write.ComObject)
	if !ok {
		return
	}

	for _, group := range dev.GroupAddressesFor(index) {
		tags, fields := comObjectPoint(group, index, write.ComObject)
		s.writer.WritePoint(s.measurement, tags, fields)
	}
}

// comObjectPoint builds the tag and field sets for one association. Tags
// stay low-cardinality (group address and object type); the raw value and
// the decoded convenience value go into fields. The decode follows the
// conventional datapoint type for the object's size, same as the MQTT
// state messages: 1-bit as boolean, 1-byte as DPT 5.001 percentage,
// 2-byte as DPT 9.x float.
func comObjectPoint(group knx.Address, index int, obj *knxdevice.ComObject) (map[string]string, map[string]any) {
	tags := map[string]string{
		"group_address": group.FormatGroup(),
		"type":          obj.Type.String(),
	}
	fields := map[string]any{
		"com_object": index,
		"raw":        hex.EncodeToString(obj.Value()),
	}

	switch obj.Type {
	case knxdevice.Bit1:
		if v, err := knxdevice.DecodeDPT1(obj.Value()); err == nil {
			fields["value"] = boolToFloat(v)
		}
	case knxdevice.Byte1:
		if v, err := knxdevice.DecodeDPT5(obj.Value()); err == nil {
			fields["value"] = v
		}
	case knxdevice.Byte2:
		if v, err := knxdevice.DecodeDPT9(obj.Value()); err == nil {
			fields["value"] = v
		}
	}

	return tags, fields
}

// boolToFloat keeps the value field a single numeric type across all
// decodable objects, which InfluxDB requires per field key.
func boolToFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
