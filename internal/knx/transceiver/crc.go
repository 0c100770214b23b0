package transceiver

import "github.com/snksoft/crc"

// crc16CCITT describes the CRC16-CCITT variant used by both chips: no
// reflection, no final XOR, differing only in the initial value (TPUART
// seeds 0x1d0f, NCN5120 seeds 0xffff).
var crc16CCITT = &crc.Parameters{
	Width:      16,
	Polynomial: 0x1021,
	ReflectIn:  false,
	ReflectOut: false,
	Init:       0,
	FinalXor:   0,
}

// rollingCRC wraps a crc.Hash seeded per the variant, updated one byte at
// a time as telegram bytes arrive.
type rollingCRC struct {
	hash *crc.Hash
}

func newRollingCRC(seed uint16) *rollingCRC {
	params := *crc16CCITT
	params.Init = uint64(seed)
	h := crc.NewHash(&params)
	return &rollingCRC{hash: h}
}

func (r *rollingCRC) update(b byte) {
	r.hash.Update([]byte{b})
}

func (r *rollingCRC) sum16() uint16 {
	return r.hash.CRC16()
}
