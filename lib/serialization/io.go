package serialization

import (
	"encoding/binary"
	"math"

	"github.com/dgrid/dgrid/lib/errs"
)

// --------------------------------------------------------------------------
// Output
// --------------------------------------------------------------------------

// ObjectDataOutput appends big endian primitives to a growing buffer.
// Nested objects are written through the owning Service.
type ObjectDataOutput struct {
	buf     []byte
	service *Service
}

func newObjectDataOutput(service *Service, capacity int) *ObjectDataOutput {
	return &ObjectDataOutput{buf: make([]byte, 0, capacity), service: service}
}

// Bytes returns the written bytes.
func (o *ObjectDataOutput) Bytes() []byte {
	return o.buf
}

func (o *ObjectDataOutput) WriteBool(v bool) {
	if v {
		o.buf = append(o.buf, 1)
	} else {
		o.buf = append(o.buf, 0)
	}
}

func (o *ObjectDataOutput) WriteUInt8(v uint8) {
	o.buf = append(o.buf, v)
}

func (o *ObjectDataOutput) WriteUInt16(v uint16) {
	o.buf = binary.BigEndian.AppendUint16(o.buf, v)
}

func (o *ObjectDataOutput) WriteInt16(v int16) {
	o.buf = binary.BigEndian.AppendUint16(o.buf, uint16(v))
}

func (o *ObjectDataOutput) WriteInt32(v int32) {
	o.buf = binary.BigEndian.AppendUint32(o.buf, uint32(v))
}

func (o *ObjectDataOutput) WriteInt64(v int64) {
	o.buf = binary.BigEndian.AppendUint64(o.buf, uint64(v))
}

func (o *ObjectDataOutput) WriteFloat32(v float32) {
	o.buf = binary.BigEndian.AppendUint32(o.buf, math.Float32bits(v))
}

func (o *ObjectDataOutput) WriteFloat64(v float64) {
	o.buf = binary.BigEndian.AppendUint64(o.buf, math.Float64bits(v))
}

// WriteString writes the UTF-8 length followed by the bytes.
func (o *ObjectDataOutput) WriteString(v string) {
	o.WriteInt32(int32(len(v)))
	o.buf = append(o.buf, v...)
}

// WriteByteArray writes a length prefixed byte slice. A nil slice is written
// with length -1.
func (o *ObjectDataOutput) WriteByteArray(v []byte) {
	if v == nil {
		o.WriteInt32(-1)
		return
	}
	o.WriteInt32(int32(len(v)))
	o.buf = append(o.buf, v...)
}

// WriteObject writes the type id of v followed by its payload.
func (o *ObjectDataOutput) WriteObject(v interface{}) error {
	return o.service.writeObject(o, v)
}

// --------------------------------------------------------------------------
// Input
// --------------------------------------------------------------------------

// ObjectDataInput reads big endian primitives from a byte slice. The first
// failure is sticky: every later read returns a zero value and Err reports
// the failure.
type ObjectDataInput struct {
	buf     []byte
	pos     int
	err     error
	service *Service
}

func newObjectDataInput(service *Service, buf []byte) *ObjectDataInput {
	return &ObjectDataInput{buf: buf, service: service}
}

// Err returns the first read failure.
func (i *ObjectDataInput) Err() error {
	return i.err
}

// Remaining returns the number of unread bytes.
func (i *ObjectDataInput) Remaining() int {
	return len(i.buf) - i.pos
}

func (i *ObjectDataInput) take(n int) []byte {
	if i.err != nil {
		return nil
	}
	if n < 0 || i.pos+n > len(i.buf) {
		i.err = errs.Newf(errs.CodeSerialization, "malformed payload: need %d bytes at offset %d, have %d", n, i.pos, len(i.buf)-i.pos)
		return nil
	}
	b := i.buf[i.pos : i.pos+n]
	i.pos += n
	return b
}

// fail records err unless a failure was already recorded.
func (i *ObjectDataInput) fail(err error) {
	if i.err == nil {
		i.err = err
	}
}

func (i *ObjectDataInput) ReadBool() bool {
	b := i.take(1)
	return b != nil && b[0] != 0
}

func (i *ObjectDataInput) ReadUInt8() uint8 {
	b := i.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (i *ObjectDataInput) ReadUInt16() uint16 {
	b := i.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (i *ObjectDataInput) ReadInt16() int16 {
	return int16(i.ReadUInt16())
}

func (i *ObjectDataInput) ReadInt32() int32 {
	b := i.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (i *ObjectDataInput) ReadInt64() int64 {
	b := i.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func (i *ObjectDataInput) ReadFloat32() float32 {
	return math.Float32frombits(uint32(i.ReadInt32()))
}

func (i *ObjectDataInput) ReadFloat64() float64 {
	return math.Float64frombits(uint64(i.ReadInt64()))
}

func (i *ObjectDataInput) ReadString() string {
	n := i.ReadInt32()
	if n < 0 {
		i.fail(errs.Newf(errs.CodeSerialization, "malformed payload: negative string length %d", n))
		return ""
	}
	return string(i.take(int(n)))
}

// ReadByteArray reads a length prefixed byte slice; length -1 yields nil.
func (i *ObjectDataInput) ReadByteArray() []byte {
	n := i.ReadInt32()
	if n == -1 || i.err != nil {
		return nil
	}
	b := i.take(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// readLength reads an array length and rejects values that cannot fit into
// the remaining bytes, given the minimum encoded size of one element.
func (i *ObjectDataInput) readLength(minElemSize int) int {
	n := i.ReadInt32()
	if i.err != nil {
		return 0
	}
	if n < 0 || int(n)*minElemSize > i.Remaining() {
		i.fail(errs.Newf(errs.CodeSerialization, "malformed payload: bad array length %d", n))
		return 0
	}
	return int(n)
}

// ReadObject reads a type id and the payload that follows it.
func (i *ObjectDataInput) ReadObject() (interface{}, error) {
	v, err := i.service.readObject(i)
	if err != nil {
		i.fail(err)
		return nil, i.err
	}
	return v, i.err
}
