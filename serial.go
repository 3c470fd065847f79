package gdbstub

import (
	"bufio"

	"go.bug.st/serial"
)

// SerialTransport speaks RSP over a serial device, the classic link for a
// DOS-extender target.
type SerialTransport struct {
	port serial.Port
	r    *bufio.Reader
	buf  [1]byte
}

// OpenSerialTransport opens device (e.g. "/dev/ttyS0" or "COM1") in 8N1 at
// the given baud rate.
func OpenSerialTransport(device string, baud int) (*SerialTransport, error) {
	port, err := serial.Open(device, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	return &SerialTransport{port: port, r: bufio.NewReader(port)}, nil
}

func (t *SerialTransport) GetByte() (byte, error) {
	return t.r.ReadByte()
}

func (t *SerialTransport) PutByte(b byte) error {
	t.buf[0] = b
	_, err := t.port.Write(t.buf[:])
	return err
}

// Close releases the underlying device.
func (t *SerialTransport) Close() error {
	return t.port.Close()
}
