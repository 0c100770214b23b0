package transceiver

import (
	"io"
	"time"

	"github.com/tarm/serial"
)

// OpenUART opens the physical UART a TPUART or NCN5120 chip is attached
// to. Both chips run at 19200 baud, 8E1.
func OpenUART(device string, readTimeout time.Duration) (io.ReadWriteCloser, error) {
	cfg := &serial.Config{
		Name:        device,
		Baud:        19200,
		Parity:      serial.ParityEven,
		Size:        8,
		StopBits:    serial.Stop1,
		ReadTimeout: readTimeout,
	}
	return serial.OpenPort(cfg)
}
