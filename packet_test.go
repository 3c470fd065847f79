package gdbstub

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPacketStub(input string) (*Stub, *scriptTransport) {
	tr := &scriptTransport{in: []byte(input)}
	return New(WithTransport(tr)), tr
}

func TestGetPacketSimple(t *testing.T) {
	s, tr := newPacketStub(encodePacket("m1000,3"))
	pkt, err := s.getPacket()
	require.NoError(t, err)
	assert.Equal(t, "m1000,3", string(pkt))
	assert.Equal(t, "+", string(tr.out))
}

func TestGetPacketSkipsLeadingNoise(t *testing.T) {
	s, tr := newPacketStub("\x03junk" + encodePacket("?"))
	pkt, err := s.getPacket()
	require.NoError(t, err)
	assert.Equal(t, "?", string(pkt))
	assert.Equal(t, "+", string(tr.out))
}

func TestGetPacketRestartsOnDollar(t *testing.T) {
	// The sender abandoned a packet mid-payload and started over.
	s, _ := newPacketStub("$m10" + encodePacket("g"))
	pkt, err := s.getPacket()
	require.NoError(t, err)
	assert.Equal(t, "g", string(pkt))
}

func TestGetPacketBadChecksum(t *testing.T) {
	s, tr := newPacketStub("$m1000,1#00" + encodePacket("m1000,1"))
	pkt, err := s.getPacket()
	require.NoError(t, err)
	assert.Equal(t, "m1000,1", string(pkt))
	assert.Equal(t, "-+", string(tr.out))
}

func TestGetPacketSequencePrefix(t *testing.T) {
	s, tr := newPacketStub(encodePacket("AB:g") + "+")
	pkt, err := s.getPacket()
	require.NoError(t, err)
	assert.Equal(t, "g", string(pkt))
	require.True(t, s.haveSeq)
	assert.Equal(t, "AB", string(s.seq[:]))

	// The prefix is echoed ahead of the next reply, inside the checksum.
	tr.out = nil
	require.NoError(t, s.putPacket([]byte("OK")))
	assert.Equal(t, encodePacket("AB:OK"), string(tr.out))
	assert.False(t, s.haveSeq)
}

func TestSequencePrefixEchoedOnReply(t *testing.T) {
	_, replies, _ := runSession(t, &Frame{}, 3, script("AB:?", "c"))
	require.Equal(t, []string{"S05", "AB:S05"}, replies)
}

func TestGetPacketMaxPayload(t *testing.T) {
	// The codec accepts payloads up to bufMax-1 bytes.
	payload := strings.Repeat("a", bufMax-1)
	s, tr := newPacketStub(encodePacket(payload))
	pkt, err := s.getPacket()
	require.NoError(t, err)
	assert.Equal(t, payload, string(pkt))
	assert.Equal(t, "+", string(tr.out))
}

func TestGetPacketOversizedRejected(t *testing.T) {
	payload := strings.Repeat("a", bufMax)
	s, tr := newPacketStub(encodePacket(payload) + encodePacket("g"))
	pkt, err := s.getPacket()
	require.NoError(t, err)
	assert.Equal(t, "g", string(pkt))
	assert.Equal(t, "-+", string(tr.out))
}

func TestPutPacketChecksum(t *testing.T) {
	s, tr := newPacketStub("+")
	require.NoError(t, s.putPacket([]byte("OK")))
	assert.Equal(t, "$OK#9a", string(tr.out))
}

func TestPutPacketEmpty(t *testing.T) {
	s, tr := newPacketStub("+")
	require.NoError(t, s.putPacket(nil))
	assert.Equal(t, "$#00", string(tr.out))
}

func TestPutPacketRetransmitOnNak(t *testing.T) {
	s, tr := newPacketStub("-x+")
	require.NoError(t, s.putPacket([]byte("S05")))
	// One retransmit for the nak, one for the noise byte.
	assert.Equal(t, "$S05#b8$S05#b8$S05#b8", string(tr.out))
}

func TestPutPacketChecksumInvariant(t *testing.T) {
	for _, payload := range []string{"", "OK", "E03", "S05", "QC0", strings.Repeat("7f", 64)} {
		s, tr := newPacketStub("+")
		require.NoError(t, s.putPacket([]byte(payload)))
		sum := byte(0)
		for i := 0; i < len(payload); i++ {
			sum += payload[i]
		}
		want := "$" + payload + "#" + string([]byte{hexDigits[sum>>4], hexDigits[sum&0xf]})
		assert.Equal(t, want, string(tr.out))
	}
}
