package protocol

import (
	"heimdall/internal/net"

	"github.com/rs/zerolog/log"
)

// BinaryFileSession feeds BinaryFILE blocks to a handler. Everything but
// ProcessPacket is the handler's own.
type BinaryFileSession struct {
	Handler
}

func NewBinaryFileSession(h Handler) *BinaryFileSession {
	return &BinaryFileSession{Handler: h}
}

// ProcessPacket takes one whole block, length prefix included.
func (s *BinaryFileSession) ProcessPacket(buf []byte) (int, error) {
	n, err := net.BinaryFile(s.Handler, buf)
	if err != nil {
		s.Metrics().DecodeError(s.Protocol())
	}
	return n, err
}

func (s *BinaryFileSession) LengthPrefixed() bool { return true }

// moldFramer is implemented by net.MoldUDP and net.MoldUDP64.
type moldFramer interface {
	Process(p net.Processor, buf []byte) (int, error)
	Expected(session string) (uint64, bool)
}

// MoldSession feeds MoldUDP or MoldUDP64 packets to a handler. Sequence gaps
// are logged and counted but not recovered.
type MoldSession struct {
	Handler
	mold moldFramer
}

func NewMoldUDP64Session(h Handler) *MoldSession {
	s := &MoldSession{Handler: h}
	s.mold = net.NewMoldUDP64(s.gap)
	return s
}

func NewMoldUDPSession(h Handler) *MoldSession {
	s := &MoldSession{Handler: h}
	s.mold = net.NewMoldUDP(s.gap)
	return s
}

func (s *MoldSession) gap(session string, expected, got uint64) {
	log.Warn().
		Str("protocol", s.Protocol()).
		Str("session", session).
		Uint64("expected", expected).
		Uint64("got", got).
		Msg("sequence gap")
	s.Metrics().SequenceGap()
}

// ProcessPacket takes one datagram.
func (s *MoldSession) ProcessPacket(buf []byte) (int, error) {
	n, err := s.mold.Process(s.Handler, buf)
	if err != nil {
		s.Metrics().DecodeError(s.Protocol())
	}
	return n, err
}

// Expected returns the next sequence number expected on a Mold session.
func (s *MoldSession) Expected(session string) (uint64, bool) {
	return s.mold.Expected(session)
}
