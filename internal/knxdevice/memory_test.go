package knxdevice

import (
	"errors"
	"testing"
)

func TestMemoryTableAddOverlapRejected(t *testing.T) {
	table := &MemoryTable{}
	if err := table.Add(&MemorySegment{StartAddr: 0x0000, Backing: make([]byte, 16)}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	err := table.Add(&MemorySegment{StartAddr: 0x0008, Backing: make([]byte, 16)})
	if !errors.Is(err, ErrOverlap) {
		t.Fatalf("Add overlapping: err = %v, want ErrOverlap", err)
	}
	if err := table.Add(&MemorySegment{StartAddr: 0x0010, Backing: make([]byte, 16)}); err != nil {
		t.Fatalf("Add adjacent: %v", err)
	}
}

func TestMemorySegmentReadWrite(t *testing.T) {
	seg := &MemorySegment{
		StartAddr: 0x0100,
		Kind:      EEPROM,
		Flags:     MemoryFlags{Readable: true, Writable: true},
		Backing:   make([]byte, 8),
	}
	if err := seg.Write(0x0102, []byte{0xAA, 0xBB}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !seg.Flags.Modified {
		t.Error("Modified flag not set after write")
	}
	got, err := seg.Read(0x0102, 2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got[0] != 0xAA || got[1] != 0xBB {
		t.Errorf("Read = %v, want [0xAA 0xBB]", got)
	}
}

func TestMemoryTableFindRejectsStraddlingRange(t *testing.T) {
	table := &MemoryTable{}
	_ = table.Add(&MemorySegment{StartAddr: 0, Flags: MemoryFlags{Readable: true}, Backing: make([]byte, 4)})
	_ = table.Add(&MemorySegment{StartAddr: 4, Flags: MemoryFlags{Readable: true}, Backing: make([]byte, 4)})

	if _, err := table.Find(2, 4); !errors.Is(err, ErrNotFound) {
		t.Errorf("Find straddling range: err = %v, want ErrNotFound", err)
	}
	if _, err := table.Find(0, 4); err != nil {
		t.Errorf("Find within first segment: %v", err)
	}
}

func TestMemorySegmentWriteNotWritable(t *testing.T) {
	seg := &MemorySegment{StartAddr: 0, Kind: FLASH, Backing: make([]byte, 4)}
	if err := seg.Write(0, []byte{0x01}); !errors.Is(err, ErrNotWritable) {
		t.Errorf("Write: err = %v, want ErrNotWritable", err)
	}
}
