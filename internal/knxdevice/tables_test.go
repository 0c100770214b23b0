package knxdevice

import (
	"testing"

	"github.com/basilfx/knx-devstack/internal/knx"
)

func TestBuildComObjectsUnpacksFlags(t *testing.T) {
	rows := []ComObjectTableRow{
		{Type: Byte1, Flags: 0xF0 | byte(knx.PriorityHigh)},
	}
	objs := BuildComObjects(rows)
	if len(objs) != 1 {
		t.Fatalf("len = %d, want 1", len(objs))
	}
	obj := objs[0]
	if !obj.Access.Enabled || !obj.Access.Read || !obj.Access.Write || !obj.Access.Transmit {
		t.Errorf("Access = %+v, want all top bits set", obj.Access)
	}
	if obj.Access.Update {
		t.Errorf("Access.Update = true, want false")
	}
	if obj.Priority != knx.PriorityHigh {
		t.Errorf("Priority = %v, want PriorityHigh", obj.Priority)
	}
}
