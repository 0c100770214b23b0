package transceiver

import "testing"

func TestClassifyOrdersPollBeforeDataRequest(t *testing.T) {
	cmd := tpuartCommands
	_, min, max, ok := classify(cmd.LPollDataRequest, cmd)
	if !ok || min != 7 || max != 7 {
		t.Fatalf("classify(poll) = (%d,%d,%v), want (7,7,true)", min, max, ok)
	}
	_, min, max, ok = classify(cmd.LDataRequest, cmd)
	if !ok || min != 8 || max != 23 {
		t.Fatalf("classify(data request) = (%d,%d,%v), want (8,23,true)", min, max, ok)
	}
	_, min, max, ok = classify(cmd.LExtDataRequest, cmd)
	if !ok || min != 9 || max != 263 {
		t.Fatalf("classify(ext data request) = (%d,%d,%v), want (9,263,true)", min, max, ok)
	}
	if _, _, _, ok := classify(0x00, cmd); ok {
		t.Fatal("classify(0x00) = ok, want not ok")
	}
}

func TestVariantsDifferInSetAddressCommand(t *testing.T) {
	tp := TPUARTParams()
	ncn := NCN5120Params()
	if tp.Commands.SetAddress == ncn.Commands.SetAddress {
		t.Fatal("TPUART and NCN5120 SetAddress command bytes must differ")
	}
	if tp.Commands.SetAddress != 0x28 {
		t.Errorf("TPUART SetAddress = %#x, want 0x28", tp.Commands.SetAddress)
	}
	if ncn.Commands.SetAddress != 0xf1 {
		t.Errorf("NCN5120 SetAddress = %#x, want 0xf1", ncn.Commands.SetAddress)
	}
}

func TestMatchesIsAllBitsOfMask(t *testing.T) {
	if !matches(0x8b, 0x0b) {
		t.Error("matches(0x8b, 0x0b) = false, want true")
	}
	if matches(0x80, 0x0b) {
		t.Error("matches(0x80, 0x0b) = true, want false")
	}
}
