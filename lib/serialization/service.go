package serialization

import (
	"encoding/binary"
	"fmt"
	"reflect"

	"github.com/dgrid/dgrid/lib/errs"
)

// --------------------------------------------------------------------------
// Interface Definitions
// --------------------------------------------------------------------------

// Codec encodes and decodes the payload of one type id.
type Codec interface {
	// TypeID returns the type id written in front of the payload
	TypeID() int32
	// Write writes the payload of v
	Write(out *ObjectDataOutput, v interface{}) error
	// Read reads a payload written by Write
	Read(in *ObjectDataInput) (interface{}, error)
}

// IdentifiedDataSerializable is implemented by values that are encoded with a
// (factory id, class id) pair instead of reflection. Predicates, aggregators
// and comparators are all identified data serializable.
type IdentifiedDataSerializable interface {
	FactoryID() int32
	ClassID() int32
	WriteData(out *ObjectDataOutput) error
	ReadData(in *ObjectDataInput) error
}

// IdentifiedFactory creates a zero instance for a class id of one factory.
// It returns nil for unknown class ids.
type IdentifiedFactory func(classID int32) IdentifiedDataSerializable

// PartitionAware values route by the partition key they return instead of by
// their own serialized bytes.
type PartitionAware interface {
	PartitionKey() interface{}
}

// --------------------------------------------------------------------------
// Service
// --------------------------------------------------------------------------

// Service is the serialization registry of one client (or member). It is not
// a global so that clients with different registrations can coexist.
type Service struct {
	byTypeID   map[int32]Codec
	byGoType   map[reflect.Type]Codec
	identified map[TypeDescriptor]func() IdentifiedDataSerializable
	factories  map[int32]IdentifiedFactory
}

// NewService creates a registry with all built-in codecs registered.
func NewService() *Service {
	s := &Service{
		byTypeID:   make(map[int32]Codec),
		byGoType:   make(map[reflect.Type]Codec),
		identified: make(map[TypeDescriptor]func() IdentifiedDataSerializable),
		factories:  make(map[int32]IdentifiedFactory),
	}
	registerBuiltins(s)
	return s
}

// RegisterCodec registers a custom codec for values of goType. Custom codecs
// must use positive type ids; non-positive ids are reserved.
func (s *Service) RegisterCodec(goType reflect.Type, codec Codec) error {
	if codec == nil || goType == nil {
		return errs.New(errs.CodeInvalidConfiguration, "codec and type must not be nil")
	}
	if codec.TypeID() <= 0 {
		return errs.Newf(errs.CodeInvalidConfiguration, "custom codec type id must be positive, got %d", codec.TypeID())
	}
	return s.register(goType, codec)
}

// RegisterIdentified registers the constructor of one identified class.
// Constructors registered this way take precedence over factories.
func (s *Service) RegisterIdentified(desc TypeDescriptor, ctor func() IdentifiedDataSerializable) error {
	if ctor == nil {
		return errs.Newf(errs.CodeInvalidConfiguration, "nil constructor for %s", desc)
	}
	desc.TypeID = TypeIdentified
	if _, ok := s.identified[desc]; ok {
		return errs.Newf(errs.CodeInvalidConfiguration, "%s is already registered", desc)
	}
	s.identified[desc] = ctor
	return nil
}

// RegisterFactory registers a factory for all classes of factoryID.
func (s *Service) RegisterFactory(factoryID int32, factory IdentifiedFactory) error {
	if factory == nil {
		return errs.Newf(errs.CodeInvalidConfiguration, "nil factory for id %d", factoryID)
	}
	if _, ok := s.factories[factoryID]; ok {
		return errs.Newf(errs.CodeInvalidConfiguration, "factory %d is already registered", factoryID)
	}
	s.factories[factoryID] = factory
	return nil
}

// ToData serializes v. A nil value yields a Data with the null type id.
func (s *Service) ToData(v interface{}) (Data, error) {
	if d, ok := v.(Data); ok {
		return d, nil
	}
	out := newObjectDataOutput(s, 64)
	out.WriteInt32(0) // partition hash, patched below for PartitionAware values
	if err := s.writeObject(out, v); err != nil {
		return nil, err
	}
	data := Data(out.Bytes())

	if pa, ok := v.(PartitionAware); ok {
		key, err := s.ToData(pa.PartitionKey())
		if err != nil {
			return nil, fmt.Errorf("serializing partition key: %w", err)
		}
		hash := key.PartitionHash()
		if hash == 0 {
			hash = 1 // zero means "not set" in the header
		}
		binary.BigEndian.PutUint32(data[partitionHashOffset:], uint32(hash))
	}
	return data, nil
}

// ToObject deserializes d. Trailing bytes after the payload are a
// malformed-payload error.
func (s *Service) ToObject(d Data) (interface{}, error) {
	if len(d) == 0 {
		return nil, nil
	}
	if len(d) < DataOffset {
		return nil, errs.Newf(errs.CodeSerialization, "malformed data: %d bytes is shorter than the header", len(d))
	}
	in := newObjectDataInput(s, d[typeOffset:])
	v, err := s.readObject(in)
	if err != nil {
		return nil, err
	}
	if in.Remaining() != 0 {
		return nil, errs.Newf(errs.CodeSerialization, "malformed data: %d trailing bytes", in.Remaining())
	}
	return v, nil
}

// Descriptor returns the type descriptor of d without decoding the value.
func (s *Service) Descriptor(d Data) (TypeDescriptor, error) {
	desc := TypeDescriptor{TypeID: d.TypeID()}
	if desc.TypeID != TypeIdentified {
		return desc, nil
	}
	in := newObjectDataInput(s, d.Payload())
	in.ReadBool()
	desc.FactoryID = in.ReadInt32()
	desc.ClassID = in.ReadInt32()
	return desc, in.Err()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *Service) register(goType reflect.Type, codec Codec) error {
	if _, ok := s.byTypeID[codec.TypeID()]; ok {
		return errs.Newf(errs.CodeInvalidConfiguration, "type id %d is already registered", codec.TypeID())
	}
	if _, ok := s.byGoType[goType]; ok {
		return errs.Newf(errs.CodeInvalidConfiguration, "go type %s is already registered", goType)
	}
	s.byTypeID[codec.TypeID()] = codec
	s.byGoType[goType] = codec
	return nil
}

// codecFor finds the codec of a Go value
func (s *Service) codecFor(v interface{}) (Codec, error) {
	switch v.(type) {
	case nil:
		return nullCodec{}, nil
	case IdentifiedDataSerializable:
		return identifiedCodec{service: s}, nil
	}
	if c, ok := s.byGoType[reflect.TypeOf(v)]; ok {
		return c, nil
	}
	return nil, errs.Newf(errs.CodeSerialization, "no codec registered for %T", v)
}

func (s *Service) writeObject(out *ObjectDataOutput, v interface{}) error {
	codec, err := s.codecFor(v)
	if err != nil {
		return err
	}
	out.WriteInt32(codec.TypeID())
	if err := codec.Write(out, v); err != nil {
		if errs.CodeOf(err) == errs.CodeSerialization {
			return err
		}
		return errs.Wrap(errs.CodeSerialization, err, fmt.Sprintf("encoding %T", v))
	}
	return nil
}

func (s *Service) readObject(in *ObjectDataInput) (interface{}, error) {
	typeID := in.ReadInt32()
	if in.Err() != nil {
		return nil, in.Err()
	}
	var codec Codec
	switch typeID {
	case TypeNull:
		return nil, nil
	case TypeIdentified:
		codec = identifiedCodec{service: s}
	default:
		c, ok := s.byTypeID[typeID]
		if !ok {
			return nil, errs.Newf(errs.CodeSerialization, "no codec registered for type id %d", typeID)
		}
		codec = c
	}
	v, err := codec.Read(in)
	if err != nil {
		if errs.CodeOf(err) == errs.CodeSerialization {
			return nil, err
		}
		return nil, errs.Wrap(errs.CodeSerialization, err, fmt.Sprintf("decoding type id %d", typeID))
	}
	if in.Err() != nil {
		return nil, in.Err()
	}
	return v, nil
}

// newIdentified resolves a descriptor to a zero instance
func (s *Service) newIdentified(factoryID, classID int32) (IdentifiedDataSerializable, error) {
	if ctor, ok := s.identified[Identified(factoryID, classID)]; ok {
		return ctor(), nil
	}
	if factory, ok := s.factories[factoryID]; ok {
		if v := factory(classID); v != nil {
			return v, nil
		}
		return nil, errs.Newf(errs.CodeSerialization, "factory %d does not know class id %d", factoryID, classID)
	}
	return nil, errs.Newf(errs.CodeSerialization, "no factory registered for %s", Identified(factoryID, classID))
}

// --------------------------------------------------------------------------
// Identified / Null Codecs
// --------------------------------------------------------------------------

type nullCodec struct{}

func (nullCodec) TypeID() int32                              { return TypeNull }
func (nullCodec) Write(*ObjectDataOutput, interface{}) error { return nil }
func (nullCodec) Read(*ObjectDataInput) (interface{}, error) { return nil, nil }

// identifiedCodec writes [bool identified][int32 factory][int32 class][fields]
type identifiedCodec struct {
	service *Service
}

func (c identifiedCodec) TypeID() int32 { return TypeIdentified }

func (c identifiedCodec) Write(out *ObjectDataOutput, v interface{}) error {
	ids := v.(IdentifiedDataSerializable)
	out.WriteBool(true)
	out.WriteInt32(ids.FactoryID())
	out.WriteInt32(ids.ClassID())
	return ids.WriteData(out)
}

func (c identifiedCodec) Read(in *ObjectDataInput) (interface{}, error) {
	if !in.ReadBool() {
		if in.Err() != nil {
			return nil, in.Err()
		}
		return nil, errs.New(errs.CodeSerialization, "bad tag: only identified data serializable payloads are supported")
	}
	factoryID := in.ReadInt32()
	classID := in.ReadInt32()
	if in.Err() != nil {
		return nil, in.Err()
	}
	v, err := c.service.newIdentified(factoryID, classID)
	if err != nil {
		return nil, err
	}
	if err := v.ReadData(in); err != nil {
		return nil, err
	}
	return v, in.Err()
}
