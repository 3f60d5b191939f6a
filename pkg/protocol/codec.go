package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	// MaxFieldSize caps a single length-prefixed string or byte field.
	MaxFieldSize = 4 << 20

	// MaxListLen caps the item count of a list read off the wire.
	MaxListLen = 100_000
)

var (
	ErrVarintOverflow = errors.New("protocol: varint overflow")
	ErrFieldTooLarge  = errors.New("protocol: field exceeds size limit")
	ErrListTooLong    = errors.New("protocol: list exceeds length limit")
)

// Encoder appends wire values to a buffer.
type Encoder struct {
	buf []byte
}

func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 256)}
}

// Reset empties the encoder and keeps its buffer.
func (e *Encoder) Reset() { e.buf = e.buf[:0] }

// Bytes returns the encoded bytes. They are valid until the next write.
func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) Len() int { return len(e.buf) }

func (e *Encoder) WriteByte(b byte) { e.buf = append(e.buf, b) }

func (e *Encoder) WriteBytes(b []byte) { e.buf = append(e.buf, b...) }

func (e *Encoder) WriteUvarint(v uint64) { e.buf = binary.AppendUvarint(e.buf, v) }

func (e *Encoder) WriteString(s string) {
	e.WriteUvarint(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *Encoder) WriteLenBytes(b []byte) {
	e.WriteUvarint(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *Encoder) WriteBool(b bool) {
	var v byte
	if b {
		v = 1
	}
	e.buf = append(e.buf, v)
}

func (e *Encoder) WriteUint16(v uint16) { e.buf = binary.BigEndian.AppendUint16(e.buf, v) }

func (e *Encoder) WriteUint64(v uint64) { e.buf = binary.BigEndian.AppendUint64(e.buf, v) }

// Decoder reads wire values from a byte slice. Running out of input is
// reported as io.ErrUnexpectedEOF.
type Decoder struct {
	buf []byte
}

func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

func (d *Decoder) next(n int) ([]byte, error) {
	if n > len(d.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := d.buf[:n]
	d.buf = d.buf[n:]
	return b, nil
}

func (d *Decoder) ReadByte() (byte, error) {
	b, err := d.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) ReadUvarint() (uint64, error) {
	v, n := binary.Uvarint(d.buf)
	switch {
	case n == 0:
		return 0, io.ErrUnexpectedEOF
	case n < 0:
		return 0, ErrVarintOverflow
	}
	d.buf = d.buf[n:]
	return v, nil
}

// field reads a length prefix and the bytes it covers, aliasing the input.
func (d *Decoder) field() ([]byte, error) {
	n, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(d.buf)) {
		return nil, io.ErrUnexpectedEOF
	}
	if n > MaxFieldSize {
		return nil, ErrFieldTooLarge
	}
	return d.next(int(n))
}

func (d *Decoder) ReadString() (string, error) {
	b, err := d.field()
	return string(b), err
}

// ReadLenBytes returns a copy of a length-prefixed byte field.
func (d *Decoder) ReadLenBytes() ([]byte, error) {
	b, err := d.field()
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// ReadBool treats any non-zero byte as true.
func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.ReadByte()
	return b != 0, err
}

func (d *Decoder) ReadUint16() (uint16, error) {
	b, err := d.next(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *Decoder) ReadUint64() (uint64, error) {
	b, err := d.next(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadCollectionCount reads a list length. Every item takes at least one
// byte, so a count larger than the rest of the input is truncated.
func (d *Decoder) ReadCollectionCount() (int, error) {
	n, err := d.ReadUvarint()
	if err != nil {
		return 0, err
	}
	if n > MaxListLen {
		return 0, ErrListTooLong
	}
	if n > uint64(len(d.buf)) {
		return 0, io.ErrUnexpectedEOF
	}
	return int(n), nil
}
