package rifx

import (
	"encoding/binary"
	"fmt"
)

// SeqBuffer is a forward cursor over a byte slice. Every read advances the
// cursor by exactly the width it decoded; a read that would run past the end
// fails with ErrShortBuffer and leaves the cursor where it was.
type SeqBuffer struct {
	buf          []byte
	off          int
	littleEndian bool
}

// NewSeqBuffer returns a cursor at offset 0.
func NewSeqBuffer(b []byte, littleEndian bool) *SeqBuffer {
	return &SeqBuffer{buf: b, littleEndian: littleEndian}
}

// BigEndian returns a big-endian cursor over b. Cast-level payloads use it
// regardless of the container byte order.
func BigEndian(b []byte) *SeqBuffer {
	return NewSeqBuffer(b, false)
}

func (s *SeqBuffer) LittleEndian() bool { return s.littleEndian }

func (s *SeqBuffer) order() binary.ByteOrder {
	if s.littleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// Offset is the current cursor position.
func (s *SeqBuffer) Offset() int { return s.off }

// Len is the total length of the underlying slice.
func (s *SeqBuffer) Len() int { return len(s.buf) }

// Remaining is the number of unread bytes.
func (s *SeqBuffer) Remaining() int { return len(s.buf) - s.off }

// Peek returns the unread bytes without advancing.
func (s *SeqBuffer) Peek() []byte { return s.buf[s.off:] }

// AtEnd reports whether every byte has been consumed.
func (s *SeqBuffer) AtEnd() bool { return s.off >= len(s.buf) }

// Seek moves the cursor to an absolute offset.
func (s *SeqBuffer) Seek(off int) error {
	if off < 0 || off > len(s.buf) {
		return fmt.Errorf("%w: seek to %d of %d", ErrShortBuffer, off, len(s.buf))
	}
	s.off = off
	return nil
}

// Skip advances the cursor by n bytes.
func (s *SeqBuffer) Skip(n int) error {
	_, err := s.ReadBytes(n)
	return err
}

func (s *SeqBuffer) need(n int) error {
	if n < 0 || n > s.Remaining() {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortBuffer, n, s.off, s.Remaining())
	}
	return nil
}

// ReadBytes returns the next n bytes. The result aliases the buffer.
func (s *SeqBuffer) ReadBytes(n int) ([]byte, error) {
	if err := s.need(n); err != nil {
		return nil, err
	}
	b := s.buf[s.off : s.off+n : s.off+n]
	s.off += n
	return b, nil
}

// Rest consumes and returns all unread bytes.
func (s *SeqBuffer) Rest() []byte {
	b := s.buf[s.off:]
	s.off = len(s.buf)
	return b
}

func (s *SeqBuffer) ReadU8() (uint8, error) {
	if err := s.need(1); err != nil {
		return 0, err
	}
	v := s.buf[s.off]
	s.off++
	return v, nil
}

func (s *SeqBuffer) ReadI8() (int8, error) {
	v, err := s.ReadU8()
	return int8(v), err
}

func (s *SeqBuffer) ReadU16() (uint16, error) {
	b, err := s.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return s.order().Uint16(b), nil
}

func (s *SeqBuffer) ReadI16() (int16, error) {
	v, err := s.ReadU16()
	return int16(v), err
}

func (s *SeqBuffer) ReadU32() (uint32, error) {
	b, err := s.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return s.order().Uint32(b), nil
}

func (s *SeqBuffer) ReadI32() (int32, error) {
	v, err := s.ReadU32()
	return int32(v), err
}

// ReadTag reads a four-byte tag and canonicalizes it.
func (s *SeqBuffer) ReadTag() (Tag, error) {
	b, err := s.ReadBytes(4)
	if err != nil {
		return "", err
	}
	return TagFromBytes(b, s.littleEndian), nil
}

// ReadString8 reads a one-byte length followed by that many raw bytes.
func (s *SeqBuffer) ReadString8() ([]byte, error) {
	start := s.off
	n, err := s.ReadU8()
	if err != nil {
		return nil, err
	}
	b, err := s.ReadBytes(int(n))
	if err != nil {
		s.off = start
		return nil, err
	}
	return b, nil
}

// ReadVarint reads 7-bit groups, most significant group first, while the
// high bit is set.
func (s *SeqBuffer) ReadVarint() (uint64, error) {
	start := s.off
	var v uint64
	for {
		d, err := s.ReadU8()
		if err != nil {
			s.off = start
			return 0, err
		}
		if v>>57 != 0 {
			s.off = start
			return 0, fmt.Errorf("%w at offset %d", ErrVarintOverflow, start)
		}
		v = v<<7 | uint64(d&0x7f)
		if d < 0x80 {
			return v, nil
		}
	}
}

// Decode fills v, a fixed-size value or pointer to one, using the buffer's
// byte order.
func (s *SeqBuffer) Decode(v any) error {
	n := binary.Size(v)
	if n < 0 {
		return fmt.Errorf("rifx: cannot decode %T", v)
	}
	if err := s.need(n); err != nil {
		return err
	}
	if _, err := binary.Decode(s.buf[s.off:s.off+n], s.order(), v); err != nil {
		return err
	}
	s.off += n
	return nil
}
