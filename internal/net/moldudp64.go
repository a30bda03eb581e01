package net

import (
	"errors"
	"fmt"
)

var ErrMessageLength = errors.New("message length mismatch")

const (
	MoldSessionLen     = 10
	MoldUDP64HeaderLen = MoldSessionLen + 8 + 2
	MoldUDPHeaderLen   = MoldSessionLen + 4 + 2
	MoldBlockHeaderLen = 2
	MoldEndOfSession   = 0xFFFF
	moldSequenceOffset = MoldSessionLen
)

// GapFunc is told about sequence numbers that never arrived.
type GapFunc func(session string, expected, got uint64)

// mold decodes downstream packets of the Mold family: a header carrying the
// session, the sequence number of the first message and a message count,
// followed by that many 2-byte length prefixed message blocks. MoldUDP and
// MoldUDP64 only differ in the width of the sequence number.
//
// Sequence gaps are reported and otherwise ignored, there is no
// retransmission here.
type mold struct {
	name   string
	seqLen int
	next   map[string]uint64
	onGap  GapFunc
}

func newMold(name string, seqLen int, onGap GapFunc) mold {
	return mold{
		name:   name,
		seqLen: seqLen,
		next:   make(map[string]uint64),
		onGap:  onGap,
	}
}

func (m *mold) headerLen() int {
	return MoldSessionLen + m.seqLen + 2
}

func (m *mold) sequence(header Fields) uint64 {
	if m.seqLen == 4 {
		return uint64(header.U32(moldSequenceOffset))
	}
	return header.U64(moldSequenceOffset)
}

// Process feeds every message block of one packet to p. It returns the bytes
// consumed, or 0 for an end-of-session packet. The expected sequence number
// only moves once every block decoded.
func (m *mold) Process(p Processor, buf []byte) (int, error) {
	c := NewCursor(buf)
	header, err := c.Fields(m.headerLen())
	if err != nil {
		return 0, fmt.Errorf("%s header: %w", m.name, err)
	}
	session := header.Text(0, MoldSessionLen)
	sequence := m.sequence(header)
	count := header.U16(moldSequenceOffset + m.seqLen)

	if count == MoldEndOfSession {
		return 0, nil
	}

	if expected, ok := m.next[session]; ok && sequence != expected && m.onGap != nil {
		m.onGap(session, expected, sequence)
	}

	offset := m.headerLen()
	for i := 0; i < int(count); i++ {
		length, err := c.Uint16(offset)
		if err != nil {
			return 0, fmt.Errorf("%s block %d: %w", m.name, i, err)
		}
		offset += MoldBlockHeaderLen

		msg, err := c.Slice(offset, int(length))
		if err != nil {
			return 0, fmt.Errorf("%s block %d: %w", m.name, i, err)
		}
		n, err := p.ProcessPacket(msg)
		if err != nil {
			return 0, err
		}
		if n != int(length) {
			return 0, fmt.Errorf("%w: block %d is %d bytes, message decoded as %d", ErrMessageLength, i, length, n)
		}
		offset += n
	}
	m.next[session] = sequence + uint64(count)
	return offset, nil
}

// Expected returns the next sequence number expected on session.
func (m *mold) Expected(session string) (uint64, bool) {
	seq, ok := m.next[session]
	return seq, ok
}

// MoldUDP64 decodes MoldUDP64 packets, which carry a 64-bit sequence number.
type MoldUDP64 struct {
	mold
}

func NewMoldUDP64(onGap GapFunc) *MoldUDP64 {
	return &MoldUDP64{mold: newMold("moldudp64", 8, onGap)}
}

// MoldUDP decodes MoldUDP packets as sent by NASDAQ OMX Nordic, which carry a
// 32-bit sequence number.
type MoldUDP struct {
	mold
}

func NewMoldUDP(onGap GapFunc) *MoldUDP {
	return &MoldUDP{mold: newMold("moldudp", 4, onGap)}
}
