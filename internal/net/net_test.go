package net

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Setup & Helpers --------------------------------------------------------

// fakeProcessor decodes messages whose width depends on the tag byte:
// 'a' is 3 bytes, 'b' is 5 bytes. Tag 'x' claims 200 bytes without checking
// the buffer.
type fakeProcessor struct {
	calls [][]byte
}

var errUnknownTag = errors.New("unknown tag")

func (p *fakeProcessor) ProcessPacket(buf []byte) (int, error) {
	c := NewCursor(buf)
	tag, err := c.Peek()
	if err != nil {
		return 0, err
	}
	var width int
	switch tag {
	case 'a':
		width = 3
	case 'b':
		width = 5
	case 'x':
		p.calls = append(p.calls, buf)
		return 200, nil
	default:
		return 0, errUnknownTag
	}
	msg, err := c.Fields(width)
	if err != nil {
		return 0, err
	}
	p.calls = append(p.calls, msg)
	return width, nil
}

func block(payload ...byte) []byte {
	buf := make([]byte, 2, 2+len(payload))
	binary.BigEndian.PutUint16(buf, uint16(len(payload)))
	return append(buf, payload...)
}

func moldPacket(session string, seq uint64, messages ...[]byte) []byte {
	buf := make([]byte, MoldUDP64HeaderLen)
	copy(buf, []byte(session+"          ")[:MoldSessionLen])
	binary.BigEndian.PutUint64(buf[moldSequenceOffset:], seq)
	binary.BigEndian.PutUint16(buf[moldSequenceOffset+8:], uint16(len(messages)))
	return appendBlocks(buf, messages)
}

func moldUDPPacket(session string, seq uint32, messages ...[]byte) []byte {
	buf := make([]byte, MoldUDPHeaderLen)
	copy(buf, []byte(session+"          ")[:MoldSessionLen])
	binary.BigEndian.PutUint32(buf[moldSequenceOffset:], seq)
	binary.BigEndian.PutUint16(buf[moldSequenceOffset+4:], uint16(len(messages)))
	return appendBlocks(buf, messages)
}

func appendBlocks(buf []byte, messages [][]byte) []byte {
	for _, msg := range messages {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(msg)))
		buf = append(buf, msg...)
	}
	return buf
}

// --- Cursor -----------------------------------------------------------------

func TestCursor_BigEndianReads(t *testing.T) {
	c := NewCursor([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 'A', 'B', ' ', ' '})

	v16, err := c.Uint16(0)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), v16)

	v32, err := c.Uint32(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x02030405), v32)

	v48, err := c.Uint48(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x010203040506), v48)

	v64, err := c.Uint64(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), v64)

	text, err := c.Text(8, 4)
	require.NoError(t, err)
	assert.Equal(t, "AB", text)

	field, err := c.Field(8, 4)
	require.NoError(t, err)
	assert.Equal(t, "AB  ", field)
}

func TestCursor_BoundsChecked(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3})

	_, err := c.Uint32(0)
	assert.ErrorIs(t, err, ErrTruncated)
	_, err = c.Uint8(3)
	assert.ErrorIs(t, err, ErrTruncated)
	_, err = c.Slice(-1, 1)
	assert.ErrorIs(t, err, ErrTruncated)
	_, err = c.Fields(4)
	assert.ErrorIs(t, err, ErrTruncated)
	assert.ErrorIs(t, c.Require(4), ErrTruncated)
	assert.NoError(t, c.Require(3))

	next, err := c.Advance(2)
	require.NoError(t, err)
	assert.Equal(t, 1, next.Len())
	assert.Equal(t, 2, c.Limit(2).Len())

	_, err = NewCursor(nil).Peek()
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestCursor_SliceDoesNotCopy(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	s, err := NewCursor(buf).Slice(1, 2)
	require.NoError(t, err)
	buf[1] = 9
	assert.Equal(t, byte(9), s[0])
	assert.Equal(t, 2, cap(s))
}

// --- BinaryFILE -------------------------------------------------------------

func TestBinaryFile_EndOfSession(t *testing.T) {
	p := &fakeProcessor{}
	n, err := BinaryFile(p, []byte{0x00, 0x00, 'a', 1, 2})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, p.calls)
}

func TestBinaryFile_MultipleMessages(t *testing.T) {
	p := &fakeProcessor{}
	buf := block('a', 1, 2, 'b', 1, 2, 3, 4, 'a', 5, 6)
	buf = append(buf, block('a', 0, 0)...)

	n, err := BinaryFile(p, buf)
	require.NoError(t, err)
	assert.Equal(t, 13, n)
	require.Len(t, p.calls, 3)
	assert.Equal(t, []byte{'b', 1, 2, 3, 4}, []byte(p.calls[1]))

	n, err = BinaryFile(p, buf[n:])
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Len(t, p.calls, 4)
}

func TestBinaryFile_PayloadOverflow(t *testing.T) {
	// A 'b' message needs 5 bytes but only 4 payload bytes are declared,
	// even though the buffer itself is long enough.
	buf := append(block('a', 1, 2, 'b'), 1, 2, 3, 4)
	_, err := BinaryFile(&fakeProcessor{}, buf)
	assert.ErrorIs(t, err, ErrPayloadOverflow)

	// A processor claiming more than is left.
	_, err = BinaryFile(&fakeProcessor{}, block('x', 1, 2))
	assert.ErrorIs(t, err, ErrPayloadOverflow)
}

func TestBinaryFile_Truncated(t *testing.T) {
	_, err := BinaryFile(&fakeProcessor{}, []byte{0x00})
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = BinaryFile(&fakeProcessor{}, []byte{0x00, 0x05, 'a', 1, 2})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestBinaryFile_DecodeErrorPropagates(t *testing.T) {
	_, err := BinaryFile(&fakeProcessor{}, block('?', 1, 2))
	assert.ErrorIs(t, err, errUnknownTag)
}

// --- MoldUDP64 --------------------------------------------------------------

func TestMoldUDP64_Messages(t *testing.T) {
	p := &fakeProcessor{}
	mold := NewMoldUDP64(nil)

	pkt := moldPacket("SESSION1", 10, []byte{'a', 1, 2}, []byte{'b', 1, 2, 3, 4})
	n, err := mold.Process(p, pkt)
	require.NoError(t, err)
	assert.Equal(t, len(pkt), n)
	assert.Len(t, p.calls, 2)

	next, ok := mold.Expected("SESSION1")
	assert.True(t, ok)
	assert.Equal(t, uint64(12), next)
}

func TestMoldUDP64_Gap(t *testing.T) {
	type gap struct {
		session       string
		expected, got uint64
	}
	var gaps []gap
	mold := NewMoldUDP64(func(session string, expected, got uint64) {
		gaps = append(gaps, gap{session, expected, got})
	})
	p := &fakeProcessor{}

	_, err := mold.Process(p, moldPacket("S", 1, []byte{'a', 0, 0}))
	require.NoError(t, err)
	_, err = mold.Process(p, moldPacket("S", 5, []byte{'a', 0, 0}))
	require.NoError(t, err)

	assert.Equal(t, []gap{{"S", 2, 5}}, gaps)
	assert.Len(t, p.calls, 2)
}

func TestMoldUDP64_HeartbeatAndEndOfSession(t *testing.T) {
	p := &fakeProcessor{}
	mold := NewMoldUDP64(nil)

	n, err := mold.Process(p, moldPacket("S", 1))
	require.NoError(t, err)
	assert.Equal(t, MoldUDP64HeaderLen, n)

	eos := moldPacket("S", 1)
	binary.BigEndian.PutUint16(eos[moldSequenceOffset+8:], MoldEndOfSession)
	n, err = mold.Process(p, eos)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, p.calls)
}

func TestMoldUDP64_LengthMismatch(t *testing.T) {
	mold := NewMoldUDP64(nil)
	_, err := mold.Process(&fakeProcessor{}, moldPacket("S", 1, []byte{'a', 1, 2, 3}))
	assert.ErrorIs(t, err, ErrMessageLength)

	pkt := moldPacket("S", 2, []byte{'a', 1, 2})
	_, err = mold.Process(&fakeProcessor{}, pkt[:len(pkt)-1])
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestMoldUDP64_FailedPacketKeepsSequence(t *testing.T) {
	var gaps int
	mold := NewMoldUDP64(func(string, uint64, uint64) { gaps++ })
	p := &fakeProcessor{}

	_, err := mold.Process(p, moldPacket("S", 1, []byte{'a', 0, 0}))
	require.NoError(t, err)

	// The second block fails to decode, so neither message counts as seen.
	_, err = mold.Process(p, moldPacket("S", 2, []byte{'a', 0, 0}, []byte{'z', 0}))
	assert.ErrorIs(t, err, errUnknownTag)
	next, ok := mold.Expected("S")
	assert.True(t, ok)
	assert.Equal(t, uint64(2), next)

	_, err = mold.Process(p, moldPacket("S", 2, []byte{'a', 0, 0}))
	require.NoError(t, err)
	assert.Zero(t, gaps)
	next, _ = mold.Expected("S")
	assert.Equal(t, uint64(3), next)
}

// --- MoldUDP ----------------------------------------------------------------

func TestMoldUDP_Messages(t *testing.T) {
	p := &fakeProcessor{}
	mold := NewMoldUDP(nil)

	pkt := moldUDPPacket("NORDIC1", 7, []byte{'b', 1, 2, 3, 4}, []byte{'a', 1, 2})
	n, err := mold.Process(p, pkt)
	require.NoError(t, err)
	assert.Equal(t, len(pkt), n)
	require.Len(t, p.calls, 2)
	assert.Equal(t, []byte{'a', 1, 2}, []byte(p.calls[1]))

	next, ok := mold.Expected("NORDIC1")
	assert.True(t, ok)
	assert.Equal(t, uint64(9), next)
}

func TestMoldUDP_GapAndEndOfSession(t *testing.T) {
	var got []uint64
	mold := NewMoldUDP(func(session string, expected, seq uint64) {
		got = append(got, expected, seq)
	})
	p := &fakeProcessor{}

	_, err := mold.Process(p, moldUDPPacket("S", 0xFFFFFFF0, []byte{'a', 0, 0}))
	require.NoError(t, err)
	_, err = mold.Process(p, moldUDPPacket("S", 0xFFFFFFF5, []byte{'a', 0, 0}))
	require.NoError(t, err)
	assert.Equal(t, []uint64{0xFFFFFFF1, 0xFFFFFFF5}, got)

	eos := moldUDPPacket("S", 1)
	binary.BigEndian.PutUint16(eos[moldSequenceOffset+4:], MoldEndOfSession)
	n, err := mold.Process(p, eos)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = mold.Process(p, make([]byte, MoldUDPHeaderLen-1))
	assert.ErrorIs(t, err, ErrTruncated)
}
