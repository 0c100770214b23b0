package knx

import "testing"

func TestPhysicalRoundTrip(t *testing.T) {
	tests := []struct {
		area, line, device uint8
	}{
		{0, 0, 0},
		{1, 1, 8},
		{15, 15, 255},
	}
	for _, tt := range tests {
		addr, err := PhysicalAddress(tt.area, tt.line, tt.device)
		if err != nil {
			t.Fatalf("PhysicalAddress(%d,%d,%d): %v", tt.area, tt.line, tt.device, err)
		}
		area, line, device := addr.Physical()
		if area != tt.area || line != tt.line || device != tt.device {
			t.Errorf("round trip mismatch: got %d.%d.%d, want %d.%d.%d", area, line, device, tt.area, tt.line, tt.device)
		}
		if formatted := addr.FormatPhysical(); formatted == "" {
			t.Errorf("FormatPhysical returned empty string")
		}
		parsed, err := ParsePhysical(addr.FormatPhysical())
		if err != nil || parsed != addr {
			t.Errorf("ParsePhysical(FormatPhysical(%v)) = %v, %v", addr, parsed, err)
		}
	}
}

func TestPhysicalOutOfRange(t *testing.T) {
	if _, err := PhysicalAddress(16, 0, 0); err == nil {
		t.Error("expected ErrAddressRange for area=16")
	}
	if _, err := PhysicalAddress(0, 16, 0); err == nil {
		t.Error("expected ErrAddressRange for line=16")
	}
}

func TestGroupRoundTrip(t *testing.T) {
	addr, err := GroupAddress(1, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	main, mid, sub := addr.Group()
	if main != 1 || mid != 2 || sub != 3 {
		t.Errorf("got %d/%d/%d, want 1/2/3", main, mid, sub)
	}
	parsed, err := ParseGroup(addr.FormatGroup())
	if err != nil || parsed != addr {
		t.Errorf("ParseGroup(FormatGroup) round trip failed: %v %v", parsed, err)
	}
}

func TestGroup2RoundTrip(t *testing.T) {
	addr, err := GroupAddress2(5, 1000)
	if err != nil {
		t.Fatal(err)
	}
	main, sub := addr.Group2()
	if main != 5 || sub != 1000 {
		t.Errorf("got %d/%d, want 5/1000", main, sub)
	}
	parsed, err := ParseGroup(addr.FormatGroup2())
	if err != nil || parsed != addr {
		t.Errorf("ParseGroup(FormatGroup2) round trip failed: %v %v", parsed, err)
	}
}

func TestGroupOutOfRange(t *testing.T) {
	if _, err := GroupAddress(32, 0, 0); err == nil {
		t.Error("expected ErrAddressRange for main=32")
	}
	if _, err := GroupAddress(0, 8, 0); err == nil {
		t.Error("expected ErrAddressRange for mid=8")
	}
}

func TestParseIllegalFormat(t *testing.T) {
	if _, err := ParsePhysical("1.2"); err == nil {
		t.Error("expected ErrAddressFormat for short physical address")
	}
	if _, err := ParseGroup("1/2/3/4"); err == nil {
		t.Error("expected ErrAddressFormat for 4-component group address")
	}
}

func TestCompareAndEqual(t *testing.T) {
	a, _ := PhysicalAddress(1, 1, 1)
	b, _ := PhysicalAddress(1, 1, 2)
	if a.Compare(b) >= 0 {
		t.Error("expected a < b")
	}
	if !a.Equal(a) {
		t.Error("expected a == a")
	}
	if a.Equal(b) {
		t.Error("expected a != b")
	}
}

func TestSentinels(t *testing.T) {
	if Broadcast != 0x0000 {
		t.Errorf("Broadcast = %#04x, want 0x0000", uint16(Broadcast))
	}
	if Undefined != 0xFFFF {
		t.Errorf("Undefined = %#04x, want 0xFFFF", uint16(Undefined))
	}
}
