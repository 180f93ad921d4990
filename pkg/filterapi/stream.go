package filterapi

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortResource is returned when a resource ends before a field it declares.
var ErrShortResource = errors.New("filterapi: resource data truncated")

// Stream reads the packed binary layout of compiled resources (PiPL, aete). Resources are
// big-endian when compiled on the Mac and little-endian when compiled for Windows.
type Stream struct {
	data  []byte
	pos   int
	order binary.ByteOrder
}

// NewStream creates a reader over data.
func NewStream(data []byte, order binary.ByteOrder) *Stream {
	return &Stream{data: data, order: order}
}

// Pos returns the current read offset.
func (s *Stream) Pos() int { return s.pos }

// Remaining returns the number of unread bytes.
func (s *Stream) Remaining() int { return len(s.data) - s.pos }

// Order returns the byte order in use.
func (s *Stream) Order() binary.ByteOrder { return s.order }

func (s *Stream) take(n int) ([]byte, error) {
	if n < 0 || s.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortResource, n, s.pos, s.Remaining())
	}
	b := s.data[s.pos : s.pos+n]
	s.pos += n
	return b, nil
}

// Read returns the next n bytes without copying.
func (s *Stream) Read(n int) ([]byte, error) { return s.take(n) }

// Skip advances n bytes.
func (s *Stream) Skip(n int) error {
	_, err := s.take(n)
	return err
}

// Seek moves to an absolute offset.
func (s *Stream) Seek(pos int) error {
	if pos < 0 || pos > len(s.data) {
		return fmt.Errorf("%w: seek to %d of %d", ErrShortResource, pos, len(s.data))
	}
	s.pos = pos
	return nil
}

func (s *Stream) ReadUint8() (uint8, error) {
	b, err := s.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (s *Stream) ReadUint16() (uint16, error) {
	b, err := s.take(2)
	if err != nil {
		return 0, err
	}
	return s.order.Uint16(b), nil
}

func (s *Stream) ReadInt16() (int16, error) {
	v, err := s.ReadUint16()
	return int16(v), err
}

func (s *Stream) ReadUint32() (uint32, error) {
	b, err := s.take(4)
	if err != nil {
		return 0, err
	}
	return s.order.Uint32(b), nil
}

func (s *Stream) ReadInt32() (int32, error) {
	v, err := s.ReadUint32()
	return int32(v), err
}

// ReadOSType reads a four character code in the stream's byte order.
func (s *Stream) ReadOSType() (OSType, error) {
	v, err := s.ReadUint32()
	return OSType(v), err
}

// ReadPString reads a Pascal string: a length byte followed by the characters.
func (s *Stream) ReadPString() (string, error) {
	n, err := s.ReadUint8()
	if err != nil {
		return "", err
	}
	b, err := s.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadCString reads a zero-terminated string occupying exactly n bytes.
func (s *Stream) ReadCString(n int) (string, error) {
	b, err := s.take(n)
	if err != nil {
		return "", err
	}
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), nil
		}
	}
	return string(b), nil
}

// Align advances to the next multiple of n relative to the start of the data.
func (s *Stream) Align(n int) error {
	if rem := s.pos % n; rem != 0 {
		return s.Skip(n - rem)
	}
	return nil
}

// StreamWriter produces the same layout Stream reads. The host uses it to build
// resources for Go-implemented filters and in tests.
type StreamWriter struct {
	buf   []byte
	order binary.AppendByteOrder
}

// NewStreamWriter creates an empty writer.
func NewStreamWriter(order binary.AppendByteOrder) *StreamWriter {
	return &StreamWriter{order: order}
}

// Bytes returns the data written so far.
func (w *StreamWriter) Bytes() []byte { return w.buf }

// Len returns the number of bytes written.
func (w *StreamWriter) Len() int { return len(w.buf) }

func (w *StreamWriter) Write(b []byte)          { w.buf = append(w.buf, b...) }
func (w *StreamWriter) WriteUint8(v uint8)      { w.buf = append(w.buf, v) }
func (w *StreamWriter) WriteUint16(v uint16)    { w.buf = w.order.AppendUint16(w.buf, v) }
func (w *StreamWriter) WriteInt16(v int16)      { w.WriteUint16(uint16(v)) }
func (w *StreamWriter) WriteUint32(v uint32)    { w.buf = w.order.AppendUint32(w.buf, v) }
func (w *StreamWriter) WriteInt32(v int32)      { w.WriteUint32(uint32(v)) }
func (w *StreamWriter) WriteOSType(t OSType)    { w.WriteUint32(uint32(t)) }
func (w *StreamWriter) WriteCString(str string) { w.Write(append([]byte(str), 0)) }

// WritePString writes a Pascal string, truncated to 255 bytes.
func (w *StreamWriter) WritePString(str string) {
	if len(str) > 255 {
		str = str[:255]
	}
	w.WriteUint8(uint8(len(str)))
	w.Write([]byte(str))
}

// Align pads with zeros to the next multiple of n.
func (w *StreamWriter) Align(n int) {
	for len(w.buf)%n != 0 {
		w.buf = append(w.buf, 0)
	}
}
