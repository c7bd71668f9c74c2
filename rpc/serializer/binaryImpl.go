package serializer

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/dgrid/dgrid/lib/errs"
	"github.com/dgrid/dgrid/lib/serialization"
	"github.com/dgrid/dgrid/rpc/common"
)

// NewBinarySerializer creates a new serializer using the binary payload
// format of the client protocol
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format:
// [uint32 message type][uint32 presence mask][present fields in bit order]
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasName            uint32 = 1 << 0
	hasKey             uint32 = 1 << 1
	hasValue           uint32 = 1 << 2
	hasPredicate       uint32 = 1 << 3
	hasAggregator      uint32 = 1 << 4
	hasValues          uint32 = 1 << 5
	hasEntries         uint32 = 1 << 6
	hasAnchors         uint32 = 1 << 7
	hasOk              uint32 = 1 << 8
	hasNum             uint32 = 1 << 9
	hasErr             uint32 = 1 << 10
	hasMembers         uint32 = 1 << 11
	hasPartitionOwners uint32 = 1 << 12
	hasVersion         uint32 = 1 << 13
	hasMemberUUID      uint32 = 1 << 14
)

const headerSize = 8

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg *common.Message) ([]byte, error) {
	// Calculate total size needed
	w := writer{buf: make([]byte, headerSize, b.sizeBytes(msg))}
	binary.BigEndian.PutUint32(w.buf[0:4], uint32(msg.MsgType))

	var flags uint32

	if msg.Name != "" {
		flags |= hasName
		w.bytes([]byte(msg.Name))
	}
	if msg.Key != nil {
		flags |= hasKey
		w.bytes(msg.Key)
	}
	if msg.Value != nil {
		flags |= hasValue
		w.bytes(msg.Value)
	}
	if msg.Predicate != nil {
		flags |= hasPredicate
		w.bytes(msg.Predicate)
	}
	if msg.Aggregator != nil {
		flags |= hasAggregator
		w.bytes(msg.Aggregator)
	}
	if msg.Values != nil {
		flags |= hasValues
		w.uint32(uint32(len(msg.Values)))
		for _, v := range msg.Values {
			w.bytes(v)
		}
	}
	if msg.Entries != nil {
		flags |= hasEntries
		w.uint32(uint32(len(msg.Entries)))
		for _, e := range msg.Entries {
			w.bytes(e.Key)
			w.bytes(e.Value)
		}
	}
	if msg.Anchors != nil {
		flags |= hasAnchors
		w.uint32(uint32(len(msg.Anchors)))
		for _, a := range msg.Anchors {
			w.uint32(uint32(a.Page))
			w.bytes(a.Key)
			w.bytes(a.Value)
		}
	}
	if msg.Ok {
		flags |= hasOk
		w.buf = append(w.buf, 1)
	}
	if msg.Num != 0 {
		flags |= hasNum
		w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(msg.Num))
	}
	if msg.ErrCode != 0 || msg.Err != "" {
		flags |= hasErr
		w.uint32(uint32(msg.ErrCode))
		w.bytes([]byte(msg.Err))
	}
	if msg.Members != nil {
		flags |= hasMembers
		w.uint32(uint32(len(msg.Members)))
		for _, m := range msg.Members {
			w.buf = append(w.buf, m.UUID[:]...)
			w.bytes([]byte(m.Address))
			w.uint32(uint32(m.Version))
		}
	}
	if msg.PartitionOwners != nil {
		flags |= hasPartitionOwners
		w.uint32(uint32(len(msg.PartitionOwners)))
		for _, o := range msg.PartitionOwners {
			w.buf = append(w.buf, o[:]...)
		}
	}
	if msg.Version != 0 {
		flags |= hasVersion
		w.uint32(uint32(msg.Version))
	}
	if msg.MemberUUID != uuid.Nil {
		flags |= hasMemberUUID
		w.buf = append(w.buf, msg.MemberUUID[:]...)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint32(w.buf[4:8], flags)

	return w.buf, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return errs.New(errs.CodeSerialization, "data too short for message header")
	}

	partitionID := msg.PartitionID
	*msg = common.Message{
		MsgType:     common.MessageType(binary.BigEndian.Uint32(data[0:4])),
		PartitionID: partitionID,
	}
	flags := binary.BigEndian.Uint32(data[4:8])
	r := reader{data: data, pos: headerSize}

	if flags&hasName != 0 {
		msg.Name = string(r.bytes("name"))
	}
	if flags&hasKey != 0 {
		msg.Key = r.serialized("key")
	}
	if flags&hasValue != 0 {
		msg.Value = r.serialized("value")
	}
	if flags&hasPredicate != 0 {
		msg.Predicate = r.serialized("predicate")
	}
	if flags&hasAggregator != 0 {
		msg.Aggregator = r.serialized("aggregator")
	}
	if flags&hasValues != 0 {
		n := r.count("values", 4)
		msg.Values = make([]serialization.Data, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			msg.Values = append(msg.Values, r.serialized("values"))
		}
	}
	if flags&hasEntries != 0 {
		n := r.count("entries", 8)
		msg.Entries = make([]common.DataEntry, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			msg.Entries = append(msg.Entries, common.DataEntry{Key: r.serialized("entry key"), Value: r.serialized("entry value")})
		}
	}
	if flags&hasAnchors != 0 {
		n := r.count("anchors", 12)
		msg.Anchors = make([]common.DataAnchor, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			page := int32(r.uint32("anchor page"))
			msg.Anchors = append(msg.Anchors, common.DataAnchor{Page: page, Key: r.serialized("anchor key"), Value: r.serialized("anchor value")})
		}
	}
	if flags&hasOk != 0 {
		if ok := r.take(1, "Ok flag"); ok != nil {
			msg.Ok = ok[0] != 0
		}
	}
	if flags&hasNum != 0 {
		if num := r.take(8, "Num"); num != nil {
			msg.Num = int64(binary.BigEndian.Uint64(num))
		}
	}
	if flags&hasErr != 0 {
		msg.ErrCode = int32(r.uint32("error code"))
		msg.Err = string(r.bytes("error"))
	}
	if flags&hasMembers != 0 {
		n := r.count("members", 24)
		msg.Members = make([]common.MemberInfo, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			m := common.MemberInfo{UUID: r.uuid("member uuid")}
			m.Address = string(r.bytes("member address"))
			m.Version = int32(r.uint32("member version"))
			msg.Members = append(msg.Members, m)
		}
	}
	if flags&hasPartitionOwners != 0 {
		n := r.count("partition owners", 16)
		msg.PartitionOwners = make([]uuid.UUID, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			msg.PartitionOwners = append(msg.PartitionOwners, r.uuid("partition owner"))
		}
	}
	if flags&hasVersion != 0 {
		msg.Version = int32(r.uint32("version"))
	}
	if flags&hasMemberUUID != 0 {
		msg.MemberUUID = r.uuid("member uuid")
	}

	if r.err != nil {
		return r.err
	}
	if r.pos != len(data) {
		return errs.Newf(errs.CodeSerialization, "%d trailing bytes after message", len(data)-r.pos)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg *common.Message) int {
	// 4 bytes for MsgType + 4 bytes for flags
	size := headerSize

	if msg.Name != "" {
		size += 4 + len(msg.Name)
	}
	for _, d := range [][]byte{msg.Key, msg.Value, msg.Predicate, msg.Aggregator} {
		if d != nil {
			size += 4 + len(d)
		}
	}
	if msg.Values != nil {
		size += 4
		for _, v := range msg.Values {
			size += 4 + len(v)
		}
	}
	if msg.Entries != nil {
		size += 4
		for _, e := range msg.Entries {
			size += 8 + len(e.Key) + len(e.Value)
		}
	}
	if msg.Anchors != nil {
		size += 4
		for _, a := range msg.Anchors {
			size += 12 + len(a.Key) + len(a.Value)
		}
	}
	if msg.Ok {
		size += 1
	}
	if msg.Num != 0 {
		size += 8
	}
	if msg.ErrCode != 0 || msg.Err != "" {
		size += 8 + len(msg.Err)
	}
	if msg.Members != nil {
		size += 4
		for _, m := range msg.Members {
			size += 24 + len(m.Address)
		}
	}
	if msg.PartitionOwners != nil {
		size += 4 + 16*len(msg.PartitionOwners)
	}
	if msg.Version != 0 {
		size += 4
	}
	if msg.MemberUUID != uuid.Nil {
		size += 16
	}
	return size
}

type writer struct {
	buf []byte
}

func (w *writer) uint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

// bytes writes a length prefixed byte slice
func (w *writer) bytes(b []byte) {
	w.uint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// reader reads fields and keeps the first error
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) take(n int, field string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = errs.Newf(errs.CodeSerialization, "data too short for %s", field)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *reader) uint32(field string) uint32 {
	if b := r.take(4, field); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

// bytes reads a length prefixed byte slice without copying
func (r *reader) bytes(field string) []byte {
	n := r.uint32(field + " length")
	return r.take(int(n), field)
}

// serialized reads a length prefixed serialized value and copies it out of the
// frame buffer, which the transport may reuse
func (r *reader) serialized(field string) serialization.Data {
	b := r.bytes(field)
	if b == nil {
		return nil
	}
	out := make(serialization.Data, len(b))
	copy(out, b)
	return out
}

func (r *reader) uuid(field string) uuid.UUID {
	var u uuid.UUID
	copy(u[:], r.take(16, field))
	return u
}

// count reads an element count and checks it against the remaining bytes
func (r *reader) count(field string, minElemSize int) int {
	n := int(r.uint32(field + " count"))
	if r.err == nil && n*minElemSize > len(r.data)-r.pos {
		r.err = errs.Newf(errs.CodeSerialization, "invalid %s count %d", field, n)
		return 0
	}
	return n
}
