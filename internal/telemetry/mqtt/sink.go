package mqtt

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/basilfx/knx-devstack/internal/knx"
	"github.com/basilfx/knx-devstack/internal/knxdevice"
)

// Publisher is the slice of Client the sink needs; narrowed to an
// interface so tests can observe publishes without a broker.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler MessageHandler) error
}

// GroupWriter pushes a host-initiated communication-object value change
// out onto the bus. Satisfied by the application layer.
type GroupWriter interface {
	UpdateComObject(ctx context.Context, index int, value []byte) error
}

// StateMessage is the JSON document published on each state topic when a
// communication object's value changes.
type StateMessage struct {
	GroupAddress string `json:"group_address"`
	ComObject    int    `json:"com_object"`
	Type         string `json:"type"`
	Raw          string `json:"raw"`
	Value        any    `json:"value,omitempty"`
}

// CommandMessage is the JSON document accepted on the set topics. The
// first present value field, in the order Raw, On, Percent, Value, is
// used; a typed field is encoded with its own DPT encoder without checking
// the communication object's type.
type CommandMessage struct {
	Raw     *string  `json:"raw,omitempty"`
	On      *bool    `json:"on,omitempty"`
	Percent *float64 `json:"percent,omitempty"`
	Value   *float64 `json:"value,omitempty"`
}

// Sink republishes communication-object writes onto the broker's state
// topics and accepts group-write commands from the matching set topics.
// It observes the device through its event callback and writes back
// through the application layer, so every MQTT-initiated change travels
// the same outbound path a host application's would.
type Sink struct {
	client Publisher
	device *knxdevice.Device
	writer GroupWriter
	prefix string
	qos    byte
	logger Logger
}

// NewSink creates a Sink publishing under the given topic prefix
// (typically "knx").
func NewSink(client Publisher, device *knxdevice.Device, writer GroupWriter, prefix string, qos byte, logger Logger) *Sink {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Sink{
		client: client,
		device: device,
		writer: writer,
		prefix: prefix,
		qos:    qos,
		logger: logger,
	}
}

// StateTopic returns the topic a group address's value changes are
// published on: <prefix>/<main>/<mid>/<sub>/state.
func StateTopic(prefix string, group knx.Address) string {
	return prefix + "/" + group.FormatGroup() + "/state"
}

// commandFilter is the wildcard subscription matching every set topic
// under the prefix.
func commandFilter(prefix string) string {
	return prefix + "/+/+/+/set"
}

// ParseCommandTopic extracts the group address from a set topic:
// <prefix>/<main>/<mid>/<sub>/set.
func ParseCommandTopic(prefix, topic string) (knx.Address, error) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return 0, fmt.Errorf("%w: %q does not start with %q", ErrInvalidTopic, topic, prefix)
	}
	rest, ok = strings.CutSuffix(rest, "/set")
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a set topic", ErrInvalidTopic, topic)
	}
	group, err := knx.ParseGroup(rest)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidTopic, topic, err)
	}
	return group, nil
}

// Start subscribes to the command topics. HandleEvent can be wired to the
// device's event callback before or after Start; the two paths are
// independent.
func (s *Sink) Start(ctx context.Context) error {
	return s.client.Subscribe(commandFilter(s.prefix), s.qos, func(topic string, payload []byte) error {
		return s.handleCommand(ctx, topic, payload)
	})
}

// HandleEvent is a knxdevice.EventCallback republishing every
// communication-object write as one retained state message per associated
// group address.
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
		payload, err := json.Marshal(stateMessage(group, index, write.ComObject))
		if err != nil {
			s.logger.Error("mqtt state marshal failed", "group_address", group.FormatGroup(), "error", err)
			continue
		}
		if err := s.client.Publish(StateTopic(s.prefix, group), payload, s.qos, true); err != nil {
			s.logger.Warn("mqtt state publish failed", "group_address", group.FormatGroup(), "error", err)
		}
	}
}

// stateMessage builds the published document for one association. The
// decoded convenience value follows the conventional datapoint type for
// the object's size: 1-bit objects as DPT 1.x booleans, 1-byte objects as
// DPT 5.001 percentages, 2-byte objects as DPT 9.x floats. Everything
// else is raw-only.
func stateMessage(group knx.Address, index int, obj *knxdevice.ComObject) StateMessage {
	msg := StateMessage{
		GroupAddress: group.FormatGroup(),
		ComObject:    index,
		Type:         obj.Type.String(),
		Raw:          hex.EncodeToString(obj.Value()),
	}

	switch obj.Type {
	case knxdevice.Bit1:
		if v, err := knxdevice.DecodeDPT1(obj.Value()); err == nil {
			msg.Value = v
		}
	case knxdevice.Byte1:
		if v, err := knxdevice.DecodeDPT5(obj.Value()); err == nil {
			msg.Value = v
		}
	case knxdevice.Byte2:
		if v, err := knxdevice.DecodeDPT9(obj.Value()); err == nil {
			msg.Value = v
		}
	}

	return msg
}

// handleCommand processes one inbound set message: resolve the group
// address to its associated communication objects, encode the payload,
// and push the new value out through the application layer (which stores
// it and emits the Group-Value-Write telegrams).
func (s *Sink) handleCommand(ctx context.Context, topic string, payload []byte) error {
	group, err := ParseCommandTopic(s.prefix, topic)
	if err != nil {
		return err
	}

	indices := s.comObjectsFor(group)
	if len(indices) == 0 {
		s.logger.Debug("mqtt command for unassociated group address", "group_address", group.FormatGroup())
		return nil
	}

	for _, index := range indices {
		obj, err := s.device.ComObjectByIndex(index)
		if err != nil {
			continue
		}
		value, err := decodeCommand(payload, obj)
		if err != nil {
			return err
		}
		if err := s.writer.UpdateComObject(ctx, index, value); err != nil {
			return fmt.Errorf("mqtt: applying command for %s: %w", group.FormatGroup(), err)
		}
	}
	return nil
}

// comObjectsFor returns the distinct communication-object indices
// associated with a group address, in association-table order.
func (s *Sink) comObjectsFor(group knx.Address) []int {
	var out []int
	seen := make(map[int]struct{})

	idx, err := s.device.Associations.FindByGroupAddress(group)
	for err == nil {
		index := s.device.Associations.At(idx).ComObject
		if _, dup := seen[index]; !dup {
			seen[index] = struct{}{}
			out = append(out, index)
		}
		idx, err = s.device.Associations.IterByGroupAddress(idx, group)
	}
	return out
}

// decodeCommand turns a CommandMessage into the raw bytes to store in the
// target object.
func decodeCommand(payload []byte, obj *knxdevice.ComObject) ([]byte, error) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	switch {
	case cmd.Raw != nil:
		value, err := hex.DecodeString(*cmd.Raw)
		if err != nil {
			return nil, fmt.Errorf("%w: bad raw hex: %w", ErrInvalidCommand, err)
		}
		if len(value) < obj.Size() {
			return nil, fmt.Errorf("%w: raw value is %d bytes, object needs %d", ErrInvalidCommand, len(value), obj.Size())
		}
		return value, nil
	case cmd.On != nil:
		return knxdevice.EncodeDPT1(*cmd.On), nil
	case cmd.Percent != nil:
		return knxdevice.EncodeDPT5(*cmd.Percent), nil
	case cmd.Value != nil:
		value, err := knxdevice.EncodeDPT9(*cmd.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
		return value, nil
	default:
		return nil, fmt.Errorf("%w: no value field", ErrInvalidCommand)
	}
}
