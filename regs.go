package gdbstub

import "encoding/binary"

// Register snapshot indices, in the order GDB expects i386 general
// registers on the wire.
const (
	regEAX = iota
	regECX
	regEDX
	regEBX
	regESP
	regEBP
	regESI
	regEDI
	regEIP
	regEFL
	regCS
	regSS
	regDS
	regES
	regFS
	regGS

	numRegs     = 16
	numRegBytes = numRegs * 4
)

// Segment-selector slots carry only their low 16 bits; the upper half is
// zeroed on write.
func isSegmentReg(n int) bool { return n >= regCS }

// Trace flag, EFLAGS bit 8. Set means the CPU raises vector 1 after each
// instruction.
const flagTrace = 1 << 8

// encodeRegs writes the snapshot in wire order: little-endian per register,
// concatenated. The result is numRegBytes bytes (128 hex chars once
// hex-encoded).
func encodeRegs(regs *[numRegs]uint32, out []byte) {
	for i, r := range regs {
		binary.LittleEndian.PutUint32(out[i*4:], r)
	}
}

// decodeRegs is the inverse of encodeRegs.
func decodeRegs(in []byte, regs *[numRegs]uint32) {
	for i := range regs {
		v := binary.LittleEndian.Uint32(in[i*4:])
		if isSegmentReg(i) {
			v &= 0xffff
		}
		regs[i] = v
	}
}

// setReg stores one register from its 4-byte wire representation.
func setReg(regs *[numRegs]uint32, n int, wire []byte) {
	v := binary.LittleEndian.Uint32(wire)
	if isSegmentReg(n) {
		v &= 0xffff
	}
	regs[n] = v
}
