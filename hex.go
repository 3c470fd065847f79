package gdbstub

const hexDigits = "0123456789abcdef"

// hexNibble converts a hex character to its value, or -1 if it isn't one.
func hexNibble(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

// parseHex reads leading hex characters from buf and returns the value and
// how many characters were consumed. n == 0 means no hex was present.
func parseHex(buf []byte) (v uint32, n int) {
	for n < len(buf) {
		d := hexNibble(buf[n])
		if d < 0 {
			break
		}
		v = v<<4 | uint32(d)
		n++
	}
	return v, n
}

// appendHex appends two lowercase hex characters per input byte.
func appendHex(dst []byte, src []byte) []byte {
	for _, b := range src {
		dst = append(dst, hexDigits[b>>4], hexDigits[b&0xf])
	}
	return dst
}

// hexToBytes decodes exactly len(dst)*2 hex characters from src into dst.
// It reports false when src is too short or contains a non-hex character.
func hexToBytes(dst []byte, src []byte) bool {
	if len(src) < len(dst)*2 {
		return false
	}
	for i := range dst {
		hi := hexNibble(src[2*i])
		lo := hexNibble(src[2*i+1])
		if hi < 0 || lo < 0 {
			return false
		}
		dst[i] = byte(hi<<4 | lo)
	}
	return true
}

// memToHex appends the hex encoding of count target bytes starting at addr.
// With mayFault the reads run inside the fault-armed window: a faulting read
// stops the loop, leaves the output truncated and sets memErr.
func (s *Stub) memToHex(addr uint32, count int, out []byte, mayFault bool) []byte {
	read := func() {
		for i := 0; i < count; i++ {
			b := s.mem.Load(addr + uint32(i))
			out = append(out, hexDigits[b>>4], hexDigits[b&0xf])
		}
	}
	if mayFault {
		s.withFaultWindow(read)
	} else {
		read()
	}
	return out
}

// hexToMem writes count bytes decoded from hx to target memory at addr, the
// dual of memToHex. The caller has already validated the hex characters.
func (s *Stub) hexToMem(hx []byte, addr uint32, count int, mayFault bool) {
	write := func() {
		for i := 0; i < count; i++ {
			hi := hexNibble(hx[2*i])
			lo := hexNibble(hx[2*i+1])
			s.mem.Store(addr+uint32(i), byte(hi<<4|lo))
		}
	}
	if mayFault {
		s.withFaultWindow(write)
	} else {
		write()
	}
}
