package net

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrTruncated = errors.New("truncated packet")

// Cursor is a read-only view over a packet buffer. It never copies or
// retains anything beyond the slice it was given, and every read is bounds
// checked against that slice. Multi-byte integers are big-endian.
type Cursor struct {
	buf []byte
}

func NewCursor(buf []byte) Cursor {
	return Cursor{buf: buf}
}

func (c Cursor) Len() int      { return len(c.buf) }
func (c Cursor) Bytes() []byte { return c.buf }

// Require fails unless the view holds at least n bytes. Decoders call it once
// with the fixed message width before reading fields.
func (c Cursor) Require(n int) error {
	if n > len(c.buf) {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, n, len(c.buf))
	}
	return nil
}

func (c Cursor) check(off, n int) error {
	if off < 0 || n < 0 || off+n > len(c.buf) {
		return fmt.Errorf("%w: read of %d bytes at offset %d, have %d", ErrTruncated, n, off, len(c.buf))
	}
	return nil
}

// Peek returns the first byte, which is the message type tag for every
// protocol handled here.
func (c Cursor) Peek() (byte, error) {
	return c.Uint8(0)
}

func (c Cursor) Slice(off, n int) ([]byte, error) {
	if err := c.check(off, n); err != nil {
		return nil, err
	}
	return c.buf[off : off+n : off+n], nil
}

// Advance returns a view starting n bytes further.
func (c Cursor) Advance(n int) (Cursor, error) {
	if err := c.check(0, n); err != nil {
		return Cursor{}, err
	}
	return Cursor{buf: c.buf[n:]}, nil
}

// Limit returns a view of at most the first n bytes.
func (c Cursor) Limit(n int) Cursor {
	if n < len(c.buf) {
		return Cursor{buf: c.buf[:n:n]}
	}
	return c
}

func (c Cursor) Uint8(off int) (uint8, error) {
	if err := c.check(off, 1); err != nil {
		return 0, err
	}
	return c.buf[off], nil
}

func (c Cursor) Char(off int) (byte, error) {
	return c.Uint8(off)
}

func (c Cursor) Uint16(off int) (uint16, error) {
	if err := c.check(off, 2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(c.buf[off:]), nil
}

func (c Cursor) Uint32(off int) (uint32, error) {
	if err := c.check(off, 4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(c.buf[off:]), nil
}

// Uint48 reads a 6 byte big-endian integer, the ITCH 5.0 timestamp width.
func (c Cursor) Uint48(off int) (uint64, error) {
	if err := c.check(off, 6); err != nil {
		return 0, err
	}
	b := c.buf[off : off+6]
	return uint64(b[0])<<40 | uint64(b[1])<<32 | uint64(b[2])<<24 |
		uint64(b[3])<<16 | uint64(b[4])<<8 | uint64(b[5]), nil
}

func (c Cursor) Uint64(off int) (uint64, error) {
	if err := c.check(off, 8); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(c.buf[off:]), nil
}

// Text reads a fixed-width ASCII field with trailing padding removed.
func (c Cursor) Text(off, n int) (string, error) {
	b, err := c.Slice(off, n)
	if err != nil {
		return "", err
	}
	end := len(b)
	for end > 0 && (b[end-1] == ' ' || b[end-1] == 0) {
		end--
	}
	return string(b[:end]), nil
}

// Field reads a fixed-width ASCII field as is, padding included.
func (c Cursor) Field(off, n int) (string, error) {
	b, err := c.Slice(off, n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Fields is one fixed-width message whose full length has already been
// checked, so field reads inside it do not return errors.
type Fields []byte

// Fields returns the first n bytes as a message, or ErrTruncated.
func (c Cursor) Fields(n int) (Fields, error) {
	b, err := c.Slice(0, n)
	if err != nil {
		return nil, err
	}
	return Fields(b), nil
}

func (f Fields) U8(off int) uint8   { return f[off] }
func (f Fields) U16(off int) uint16 { return binary.BigEndian.Uint16(f[off:]) }
func (f Fields) U32(off int) uint32 { return binary.BigEndian.Uint32(f[off:]) }
func (f Fields) U64(off int) uint64 { return binary.BigEndian.Uint64(f[off:]) }

func (f Fields) U48(off int) uint64 {
	v, _ := NewCursor(f).Uint48(off)
	return v
}

// Text reads a padded ASCII field with the padding removed.
func (f Fields) Text(off, n int) string {
	v, _ := NewCursor(f).Text(off, n)
	return v
}

// Raw reads a padded ASCII field as is.
func (f Fields) Raw(off, n int) string {
	return string(f[off : off+n])
}
