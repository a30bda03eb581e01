package net

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrPayloadOverflow = errors.New("payload overflow")

// Processor decodes one protocol message from the start of a buffer and
// returns the number of bytes it occupied.
type Processor interface {
	ProcessPacket(buf []byte) (int, error)
}

// BinaryFileHeaderLen is the 2-byte big-endian payload length in front of
// every BinaryFILE block.
const BinaryFileHeaderLen = 2

// BinaryFile peels one length-prefixed block off buf and feeds every message
// in its payload to p. It returns the bytes consumed including the length
// prefix, or 0 when the block declares an empty payload, which marks the end
// of the session.
func BinaryFile(p Processor, buf []byte) (int, error) {
	if len(buf) < BinaryFileHeaderLen {
		return 0, fmt.Errorf("%w: block header", ErrTruncated)
	}
	payloadLen := int(binary.BigEndian.Uint16(buf))
	if payloadLen == 0 {
		return 0, nil
	}

	offset := BinaryFileHeaderLen
	if offset+payloadLen > len(buf) {
		return 0, fmt.Errorf("%w: block declares %d payload bytes, have %d", ErrTruncated, payloadLen, len(buf)-offset)
	}

	remaining := payloadLen
	for remaining > 0 {
		n, err := p.ProcessPacket(buf[offset : offset+remaining])
		if errors.Is(err, ErrTruncated) {
			// The message is wider than what is left of the declared payload.
			return 0, fmt.Errorf("%w: %w", ErrPayloadOverflow, err)
		}
		if err != nil {
			return 0, err
		}
		if n <= 0 || n > remaining {
			return 0, fmt.Errorf("%w: message of %d bytes with %d payload bytes left", ErrPayloadOverflow, n, remaining)
		}
		remaining -= n
		offset += n
	}
	return offset, nil
}
