package gdbstub

import "go.uber.org/zap"

// byteWriter accumulates the first transport error so the framing code can
// emit a whole packet and check once.
type byteWriter struct {
	t   Transport
	err error
}

func (w *byteWriter) put(b byte) {
	if w.err == nil {
		w.err = w.t.PutByte(b)
	}
}

// getPacket scans for the next well-formed inbound packet and returns its
// payload, acknowledging with '+' or asking for a retransmit with '-'.
// Packet format: "$<payload>#<cc>" where cc is the two-hex-char 8-bit sum
// of the payload. An optional "xx:" sequence prefix is stripped here and
// echoed on the next outbound packet. The returned slice aliases the
// inbound buffer and is only valid until the next call.
func (s *Stub) getPacket() ([]byte, error) {
	for {
		// Discard bytes until the start of a packet. This also swallows
		// GDB's 0x03 interrupt byte arriving at an already-stopped target.
		b, err := s.transport.GetByte()
		if err != nil {
			return nil, err
		}
		if b != '$' {
			continue
		}

		var sum uint8
		count := 0
		overflow := false
		for {
			b, err = s.transport.GetByte()
			if err != nil {
				return nil, err
			}
			if b == '$' {
				// New packet start mid-payload: the sender gave up on
				// this one, start over.
				sum, count, overflow = 0, 0, false
				continue
			}
			if b == '#' {
				break
			}
			if count < bufMax-1 {
				s.inBuf[count] = b
				count++
				sum += b
			} else {
				overflow = true
			}
		}

		hi, err := s.transport.GetByte()
		if err != nil {
			return nil, err
		}
		lo, err := s.transport.GetByte()
		if err != nil {
			return nil, err
		}
		want := -1
		if h, l := hexNibble(hi), hexNibble(lo); h >= 0 && l >= 0 {
			want = h<<4 | l
		}
		if overflow || int(sum) != want {
			if s.remoteDebug {
				s.log.Debug("bad checksum, asking for retransmit",
					zap.Int("got", want), zap.Uint8("computed", sum))
			}
			if err := s.transport.PutByte('-'); err != nil {
				return nil, err
			}
			continue
		}
		if err := s.transport.PutByte('+'); err != nil {
			return nil, err
		}

		pkt := s.inBuf[:count]
		if count >= 3 && pkt[2] == ':' {
			s.seq[0], s.seq[1] = pkt[0], pkt[1]
			s.haveSeq = true
			pkt = pkt[3:]
		}
		if s.remoteDebug {
			s.log.Debug("packet received", zap.ByteString("payload", pkt))
		}
		return pkt, nil
	}
}

// putPacket frames and sends payload, then waits for the host's ack.
// Anything but '+' triggers a retransmit; there is no retry limit, the
// protocol assumes the line eventually converges. A pending sequence
// prefix is echoed ahead of the payload and included in the checksum.
func (s *Stub) putPacket(payload []byte) error {
	for {
		w := byteWriter{t: s.transport}
		var sum uint8
		w.put('$')
		if s.haveSeq {
			w.put(s.seq[0])
			w.put(s.seq[1])
			w.put(':')
			sum += s.seq[0] + s.seq[1] + ':'
		}
		for _, b := range payload {
			w.put(b)
			sum += b
		}
		w.put('#')
		w.put(hexDigits[sum>>4])
		w.put(hexDigits[sum&0xf])
		if w.err != nil {
			return w.err
		}
		if s.remoteDebug {
			s.log.Debug("packet sent", zap.ByteString("payload", payload))
		}

		b, err := s.transport.GetByte()
		if err != nil {
			return err
		}
		if b == '+' {
			s.haveSeq = false
			return nil
		}
		if s.remoteDebug {
			s.log.Debug("nak, retransmitting", zap.ByteString("payload", payload))
		}
	}
}
