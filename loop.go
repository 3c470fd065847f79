package gdbstub

import (
	"bytes"

	"go.uber.org/zap"
)

// vecExtenderBreak is a synthetic vector some DOS extenders deliver for
// their own int3 hook instead of the architectural vector 3.
const vecExtenderBreak = 302

// computeSignal translates a CPU exception vector to a GDB signal number.
func computeSignal(vector int) int {
	switch vector {
	case 0: // divide error
		return SigFpe
	case 1: // debug exception
		return SigTrap
	case 3, vecExtenderBreak: // breakpoint
		return SigTrap
	case 4: // into instruction (overflow)
		return SigUrg
	case 5: // bound instruction
		return SigUrg
	case 6: // invalid opcode
		return SigIll
	case 7: // coprocessor not available
		return SigFpe
	case 8: // double fault
		return SigBus
	case 9: // coprocessor segment overrun
		return SigSegv
	case 10: // invalid TSS
		return SigSegv
	case 11: // segment not present
		return SigSegv
	case 12: // stack exception
		return SigSegv
	case 13: // general protection
		return SigSegv
	case 14: // page fault
		return SigSegv
	case 16: // coprocessor error
		return SigBus
	default:
		return SigBus // software-generated
	}
}

// commandLoop reports the stop to the host and serves packets until a
// continue or step resumes the debuggee. The register snapshot is the
// authoritative CPU state for the whole exchange.
func (s *Stub) commandLoop(vector int) {
	sig := computeSignal(vector)

	out := appendStopReply(s.outBuf[:0], sig)
	if err := s.putPacket(out); err != nil {
		s.log.Error("transport failed, resuming debuggee", zap.Error(err))
		return
	}

	for {
		pkt, err := s.getPacket()
		if err != nil {
			s.log.Error("transport failed, resuming debuggee", zap.Error(err))
			return
		}
		out = s.outBuf[:0]

		if len(pkt) == 0 {
			// Nothing to dispatch on; answer with an empty packet.
		} else if pkt[0] == '?' {
			out = appendStopReply(out, sig)
		} else if pkt[0] == 'd' {
			// Toggle wire-level debug logging. No reply payload.
			s.remoteDebug = !s.remoteDebug
		} else if pkt[0] == 'g' {
			var raw [numRegBytes]byte
			encodeRegs(&s.regs, raw[:])
			out = appendHex(out, raw[:])
		} else if pkt[0] == 'G' {
			var raw [numRegBytes]byte
			if hexToBytes(raw[:], pkt[1:]) {
				decodeRegs(raw[:], &s.regs)
				out = append(out, "OK"...)
			} else {
				out = append(out, "E01"...)
			}
		} else if pkt[0] == 'P' {
			out = s.handleWriteRegister(pkt[1:], out)
		} else if pkt[0] == 'm' {
			out = s.handleReadMemory(pkt[1:], out)
		} else if pkt[0] == 'M' {
			out = s.handleWriteMemory(pkt[1:], out)
		} else if pkt[0] == 'c' || pkt[0] == 's' {
			if addr, n := parseHex(pkt[1:]); n > 0 {
				s.regs[regEIP] = addr
			}
			// Force the trace flag to match the resume mode so the next
			// instruction either traps (step) or doesn't (continue),
			// regardless of what the debuggee had in EFLAGS.
			if pkt[0] == 's' {
				s.regs[regEFL] |= flagTrace
			} else {
				s.regs[regEFL] &^= flagTrace
			}
			return
		} else if pkt[0] == 'H' {
			// Thread selection; there is only one thread.
			out = append(out, "OK"...)
		} else if bytes.HasPrefix(pkt, []byte("qC")) {
			out = append(out, "QC0"...)
		} else if bytes.HasPrefix(pkt, []byte("qAttached")) {
			out = append(out, '1')
		} else if bytes.HasPrefix(pkt, []byte("qfThreadInfo")) {
			out = append(out, "m0"...)
		} else if bytes.HasPrefix(pkt, []byte("qsThreadInfo")) {
			out = append(out, 'l')
		} else if bytes.HasPrefix(pkt, []byte("qSymbol")) {
			out = append(out, "OK"...)
		} else if pkt[0] == 'k' {
			// Kill is deliberately a no-op: GDB tears the connection down
			// itself, and the debuggee has nowhere to exit to under the
			// extender. Flagged for review if hosts start to expect more.
		}
		// Anything else: empty reply, the protocol's "unsupported".

		if err := s.putPacket(out); err != nil {
			s.log.Error("transport failed, resuming debuggee", zap.Error(err))
			return
		}
	}
}

// appendStopReply appends "Snn" for a GDB signal number.
func appendStopReply(out []byte, sig int) []byte {
	return append(out, 'S', hexDigits[(sig>>4)&0xf], hexDigits[sig&0xf])
}

// handleWriteRegister serves "P n=r", where r is the register value in
// wire order (little-endian, 8 hex chars).
func (s *Stub) handleWriteRegister(args, out []byte) []byte {
	n, used := parseHex(args)
	if used == 0 || used >= len(args) || args[used] != '=' || n >= numRegs {
		return append(out, "E01"...)
	}
	var wire [4]byte
	if !hexToBytes(wire[:], args[used+1:]) {
		return append(out, "E01"...)
	}
	setReg(&s.regs, int(n), wire[:])
	return append(out, "OK"...)
}

// handleReadMemory serves "m addr,length".
func (s *Stub) handleReadMemory(args, out []byte) []byte {
	addr, used := parseHex(args)
	if used == 0 || used >= len(args) || args[used] != ',' {
		return append(out, "E01"...)
	}
	count, used2 := parseHex(args[used+1:])
	if used2 == 0 || int(count)*2 >= bufMax {
		return append(out, "E01"...)
	}
	out = s.memToHex(addr, int(count), out, true)
	if s.memErr {
		return append(out[:0], "E03"...)
	}
	return out
}

// handleWriteMemory serves "M addr,length:values".
func (s *Stub) handleWriteMemory(args, out []byte) []byte {
	addr, used := parseHex(args)
	if used == 0 || used >= len(args) || args[used] != ',' {
		return append(out, "E02"...)
	}
	rest := args[used+1:]
	count, used2 := parseHex(rest)
	if used2 == 0 || used2 >= len(rest) || rest[used2] != ':' {
		return append(out, "E02"...)
	}
	hx := rest[used2+1:]
	if len(hx) < int(count)*2 {
		return append(out, "E02"...)
	}
	for i := 0; i < int(count)*2; i++ {
		if hexNibble(hx[i]) < 0 {
			return append(out, "E02"...)
		}
	}
	s.hexToMem(hx, addr, int(count), true)
	if s.memErr {
		return append(out, "E03"...)
	}
	return append(out, "OK"...)
}
