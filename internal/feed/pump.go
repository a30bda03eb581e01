package feed

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"heimdall/internal/utils"

	"github.com/rs/zerolog/log"
)

const recordHeaderLen = 2

// Pump feeds a session from a byte source, running every ProcessPacket call
// as its own task on the owner loop. Consumer reads queued on the owner loop
// therefore interleave between records instead of waiting for the whole
// input.
type Pump struct {
	session  Session
	owner    *utils.RunLoop
	prefixed bool

	packets int
	bytes   int
}

func NewPump(session Session, owner *utils.RunLoop) *Pump {
	p := &Pump{session: session, owner: owner}
	if lp, ok := session.(LengthPrefixed); ok {
		p.prefixed = lp.LengthPrefixed()
	}
	return p
}

// Run reads 2-byte big-endian length prefixed records from r until a zero
// length record, EOF, cancellation of ctx or a decode error.
func (p *Pump) Run(ctx context.Context, r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header := make([]byte, recordHeaderLen)
		if _, err := io.ReadFull(br, header); err != nil {
			if errors.Is(err, io.EOF) {
				return p.done("end of input")
			}
			return fmt.Errorf("read record header: %w", err)
		}
		length := int(binary.BigEndian.Uint16(header))
		if length == 0 {
			return p.done("end of session")
		}

		record := make([]byte, recordHeaderLen+length)
		copy(record, header)
		if _, err := io.ReadFull(br, record[recordHeaderLen:]); err != nil {
			return fmt.Errorf("read record of %d bytes: %w", length, err)
		}
		if !p.prefixed {
			record = record[recordHeaderLen:]
		}

		n, err := p.process(record)
		if err != nil {
			return err
		}
		if n == 0 {
			return p.done("end of session")
		}
	}
}

// RunBuffer processes an in-memory buffer, advancing by what each
// ProcessPacket call consumed.
func (p *Pump) RunBuffer(ctx context.Context, buf []byte) error {
	for offset := 0; offset < len(buf); {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := p.process(buf[offset:])
		if err != nil {
			return fmt.Errorf("at offset %d: %w", offset, err)
		}
		if n == 0 {
			return p.done("end of session")
		}
		offset += n
	}
	return p.done("end of input")
}

type result struct {
	n   int
	err error
}

func (p *Pump) process(packet []byte) (int, error) {
	res, err := utils.Submit(p.owner, func() result {
		n, err := p.session.ProcessPacket(packet)
		return result{n, err}
	})
	if err != nil {
		return 0, err
	}
	if res.err != nil {
		return 0, res.err
	}
	p.packets++
	p.bytes += res.n
	return res.n, nil
}

func (p *Pump) done(reason string) error {
	log.Info().
		Str("reason", reason).
		Int("packets", p.packets).
		Int("bytes", p.bytes).
		Msg("pump finished")
	return nil
}
