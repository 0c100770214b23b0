package knx

import "testing"

func BenchmarkParseStandard(b *testing.B) {
	raw := []byte{0xBC, 0x11, 0x03, 0x01, 0x01, 0xE1, 0x00, 0x80, 0x30}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Parse(raw); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkUpdateChecksum(b *testing.B) {
	t, err := Parse([]byte{0xBC, 0x11, 0x03, 0x01, 0x01, 0xE1, 0x00, 0x80, 0x30})
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		t.UpdateChecksum()
	}
}
