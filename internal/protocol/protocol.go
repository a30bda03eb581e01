// Package protocol selects a wire protocol and its framing by name.
package protocol

import (
	"errors"
	"fmt"
	"strings"

	"heimdall/internal/agent"
	"heimdall/internal/feed"
	"heimdall/internal/feed/bist"
	"heimdall/internal/feed/itch50"
	"heimdall/internal/feed/pmd"
	"heimdall/internal/metrics"
)

var ErrUnknownProtocol = errors.New("unknown protocol")

type Kind uint8

const (
	KindUnknown Kind = iota
	NasdaqBinaryFileITCH50
	NasdaqMoldUDP64ITCH50
	NasdaqBinaryFileITCHBist
	NasdaqMoldUDP64ITCHBist
	ParityBinaryFilePMD
	ParityMoldUDP64PMD
	NasdaqMoldUDPITCHBist
)

var kindNames = []string{
	NasdaqBinaryFileITCH50:   "nasdaq-binaryfile-itch50",
	NasdaqMoldUDP64ITCH50:    "nasdaq-moldudp64-itch50",
	NasdaqBinaryFileITCHBist: "nasdaq-binaryfile-itch-bist",
	NasdaqMoldUDP64ITCHBist:  "nasdaq-moldudp64-itch-bist",
	ParityBinaryFilePMD:      "parity-binaryfile-pmd",
	ParityMoldUDP64PMD:       "parity-moldudp64-pmd",
	NasdaqMoldUDPITCHBist:    "nasdaq-moldudp-itch-bist",
}

func (k Kind) String() string {
	if k == KindUnknown || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// BinaryFile reports whether the kind reads BinaryFILE blocks rather than
// Mold packets.
func (k Kind) BinaryFile() bool {
	switch k {
	case NasdaqBinaryFileITCH50, NasdaqBinaryFileITCHBist, ParityBinaryFilePMD:
		return true
	}
	return false
}

// MoldUDP reports whether the kind reads MoldUDP packets with 32-bit sequence
// numbers.
func (k Kind) MoldUDP() bool {
	return k == NasdaqMoldUDPITCHBist
}

// Names lists every protocol name ParseKind accepts.
func Names() []string {
	return kindNames[1:]
}

func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n != "" && n == name {
			return Kind(k), nil
		}
	}
	return KindUnknown, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownProtocol, name, strings.Join(Names(), ", "))
}

// Handler is a protocol decoder before framing is applied. Every handler in
// feed/* satisfies it through feed.Base.
type Handler interface {
	feed.Session
	Protocol() string
	Metrics() *metrics.Metrics
	Book(symbol string) (*agent.Agent, bool)
}

func newHandler(k Kind, opts ...feed.Option) Handler {
	switch k {
	case NasdaqBinaryFileITCH50, NasdaqMoldUDP64ITCH50:
		return itch50.New(opts...)
	case NasdaqBinaryFileITCHBist, NasdaqMoldUDP64ITCHBist, NasdaqMoldUDPITCHBist:
		return bist.New(opts...)
	case ParityBinaryFilePMD, ParityMoldUDP64PMD:
		return pmd.New(opts...)
	}
	return nil
}

// New builds the session for a protocol name: the message handler wrapped in
// the framing the name selects.
func New(name string, opts ...feed.Option) (Handler, error) {
	k, err := ParseKind(name)
	if err != nil {
		return nil, err
	}
	h := newHandler(k, opts...)
	switch {
	case k.BinaryFile():
		return NewBinaryFileSession(h), nil
	case k.MoldUDP():
		return NewMoldUDPSession(h), nil
	}
	return NewMoldUDP64Session(h), nil
}
