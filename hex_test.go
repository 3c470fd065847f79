package gdbstub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexNibble(t *testing.T) {
	assert.Equal(t, 0, hexNibble('0'))
	assert.Equal(t, 9, hexNibble('9'))
	assert.Equal(t, 10, hexNibble('a'))
	assert.Equal(t, 15, hexNibble('f'))
	assert.Equal(t, 10, hexNibble('A'))
	assert.Equal(t, 15, hexNibble('F'))
	assert.Equal(t, -1, hexNibble('g'))
	assert.Equal(t, -1, hexNibble(' '))
	assert.Equal(t, -1, hexNibble(':'))
}

func TestParseHex(t *testing.T) {
	v, n := parseHex([]byte("1000,3"))
	assert.Equal(t, uint32(0x1000), v)
	assert.Equal(t, 4, n)

	v, n = parseHex([]byte("ffffffff"))
	assert.Equal(t, uint32(0xffffffff), v)
	assert.Equal(t, 8, n)

	v, n = parseHex([]byte("DEADbeef,"))
	assert.Equal(t, uint32(0xdeadbeef), v)
	assert.Equal(t, 8, n)

	_, n = parseHex([]byte(",3"))
	assert.Equal(t, 0, n)

	v, n = parseHex([]byte("0"))
	assert.Equal(t, uint32(0), v)
	assert.Equal(t, 1, n)
}

func TestHexBytesRoundTrip(t *testing.T) {
	src := []byte{0x00, 0x01, 0x7f, 0x80, 0xff, 0xde, 0xad}
	hx := appendHex(nil, src)
	assert.Equal(t, "00017f80ffdead", string(hx))

	dst := make([]byte, len(src))
	require.True(t, hexToBytes(dst, hx))
	assert.Equal(t, src, dst)
}

func TestHexToBytesRejectsBadInput(t *testing.T) {
	dst := make([]byte, 2)
	assert.False(t, hexToBytes(dst, []byte("00")))   // too short
	assert.False(t, hexToBytes(dst, []byte("00zz"))) // non-hex
	assert.True(t, hexToBytes(dst, []byte("00ff")))
}

func TestMemToHexTruncatesOnFault(t *testing.T) {
	mem := &mapMemory{data: map[uint32]byte{0x10: 0xaa, 0x11: 0xbb}}
	s := New(WithMemory(mem), WithTransport(&scriptTransport{}))
	mem.s = s

	out := s.memToHex(0x10, 4, nil, true)
	assert.Equal(t, "aabb", string(out))
	assert.True(t, s.memErr)
	assert.Nil(t, s.memFaultRoutine)
}

func TestHexToMemWritesThrough(t *testing.T) {
	mem := &mapMemory{data: map[uint32]byte{0x10: 0, 0x11: 0}}
	s := New(WithMemory(mem), WithTransport(&scriptTransport{}))
	mem.s = s

	s.hexToMem([]byte("c0de"), 0x10, 2, true)
	assert.False(t, s.memErr)
	assert.Equal(t, byte(0xc0), mem.data[0x10])
	assert.Equal(t, byte(0xde), mem.data[0x11])
}

func TestFaultWindowDisarmsAfterCleanRun(t *testing.T) {
	s := New(WithTransport(&scriptTransport{}))
	ran := false
	s.withFaultWindow(func() { ran = true })
	assert.True(t, ran)
	assert.False(t, s.memErr)
	assert.Nil(t, s.memFaultRoutine)
}

func TestFaultWindowPassesForeignPanics(t *testing.T) {
	s := New(WithTransport(&scriptTransport{}))
	require.PanicsWithValue(t, "boom", func() {
		s.withFaultWindow(func() { panic("boom") })
	})
	assert.Nil(t, s.memFaultRoutine)
}
