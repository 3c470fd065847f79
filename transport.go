package gdbstub

import (
	"bufio"
	"io"
)

// Transport is the byte link to the GDB host. Both operations block: the
// debuggee is frozen while the stub waits, and no timer fires user code.
type Transport interface {
	GetByte() (byte, error)
	PutByte(b byte) error
}

// IOTransport adapts any io.ReadWriter (a net.Conn, a pty, a UART device
// file) to the byte transport the stub consumes. Reads are buffered;
// writes go straight through so the host sees acks without a flush.
type IOTransport struct {
	r   *bufio.Reader
	w   io.Writer
	buf [1]byte
}

// NewIOTransport wraps rw as a Transport.
func NewIOTransport(rw io.ReadWriter) *IOTransport {
	return &IOTransport{r: bufio.NewReader(rw), w: rw}
}

func (t *IOTransport) GetByte() (byte, error) {
	return t.r.ReadByte()
}

func (t *IOTransport) PutByte(b byte) error {
	t.buf[0] = b
	_, err := t.w.Write(t.buf[:])
	return err
}
