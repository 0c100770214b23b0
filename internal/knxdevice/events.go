package knxdevice

import "github.com/basilfx/knx-devstack/internal/knx"

// Event is the marker interface implemented by every device event
// variant raised through a Device's event callback. Each variant is its
// own small struct rather than one struct with a kind discriminator —
// the idiomatic Go analogue of the tagged-union events the application
// layer signals on every state transition it performs.
type Event interface {
	isEvent()
}

// RestartEvent is raised when the application layer processes a Restart
// service request.
type RestartEvent struct{}

func (RestartEvent) isEvent() {}

// AuthorizeEvent is raised when an Authorize-Request is processed,
// carrying the access level the supplied key resolved to.
type AuthorizeEvent struct {
	Level uint8
}

func (AuthorizeEvent) isEvent() {}

// ComObjectReadEvent is raised after a Group-Value-Read is answered from
// a communication object.
type ComObjectReadEvent struct {
	ComObject *ComObject
}

func (ComObjectReadEvent) isEvent() {}

// ComObjectWriteEvent is raised after a communication object's value is
// updated by a Group-Value-Write.
type ComObjectWriteEvent struct {
	ComObject *ComObject
}

func (ComObjectWriteEvent) isEvent() {}

// MemReadEvent is raised after a Memory-Read is answered from a segment.
type MemReadEvent struct {
	Segment *MemorySegment
}

func (MemReadEvent) isEvent() {}

// MemWriteEvent is raised after a Memory-Write updates a segment.
type MemWriteEvent struct {
	Segment *MemorySegment
}

func (MemWriteEvent) isEvent() {}

// PropReadEvent is raised after a Property-Value-Read is answered.
type PropReadEvent struct {
	Property *Property
	Object   int
	Count    int
	Start    int
}

func (PropReadEvent) isEvent() {}

// PropWriteEvent is raised after a Property-Value-Write updates a
// property.
type PropWriteEvent struct {
	Property *Property
	Object   int
	Count    int
	Start    int
	Data     []byte
}

func (PropWriteEvent) isEvent() {}

// SetAddressEvent is raised when the device's own physical address is
// changed by an Individual-Address-Write or Extended-Individual-Address-
// Serial-Write.
type SetAddressEvent struct {
	Address knx.Address
}

func (SetAddressEvent) isEvent() {}

// EventCallback receives every event the device aggregate raises while
// processing application-layer services.
type EventCallback func(dev *Device, event Event)

// FanoutEvents composes callbacks into one: each is invoked in order for
// every event. Nil entries are skipped, so optional observers (telemetry
// sinks that may be disabled) can be passed unconditionally.
func FanoutEvents(callbacks ...EventCallback) EventCallback {
	return func(dev *Device, event Event) {
		for _, cb := range callbacks {
			if cb != nil {
				cb(dev, event)
			}
		}
	}
}
