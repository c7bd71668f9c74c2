package serialization

import (
	"errors"
	"reflect"
	"testing"

	"github.com/dgrid/dgrid/lib/errs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// point is a custom identified type used by the tests
type point struct {
	X, Y int32
}

func (p *point) FactoryID() int32 { return 7 }
func (p *point) ClassID() int32   { return 1 }
func (p *point) WriteData(out *ObjectDataOutput) error {
	out.WriteInt32(p.X)
	out.WriteInt32(p.Y)
	return nil
}
func (p *point) ReadData(in *ObjectDataInput) error {
	p.X = in.ReadInt32()
	p.Y = in.ReadInt32()
	return in.Err()
}

type failing struct{}

func (failing) FactoryID() int32                  { return 7 }
func (failing) ClassID() int32                    { return 2 }
func (failing) WriteData(*ObjectDataOutput) error { return errors.New("boom") }
func (failing) ReadData(*ObjectDataInput) error   { return nil }

type routed struct {
	Key string
}

func (r routed) PartitionKey() interface{} { return r.Key }

type routedCodec struct{}

func (routedCodec) TypeID() int32 { return 1000 }
func (routedCodec) Write(out *ObjectDataOutput, v interface{}) error {
	out.WriteString(v.(routed).Key)
	return nil
}
func (routedCodec) Read(in *ObjectDataInput) (interface{}, error) {
	return routed{Key: in.ReadString()}, in.Err()
}

func pointFactory(classID int32) IdentifiedDataSerializable {
	if classID == 1 {
		return &point{}
	}
	return nil
}

func TestBuiltinRoundTrip(t *testing.T) {
	s := NewService()
	values := []interface{}{
		nil,
		true,
		uint8(7),
		uint16('x'),
		int16(-3),
		int32(42),
		int64(-1 << 40),
		float32(1.5),
		24.5,
		"hello grid",
		"",
		uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		[]byte{1, 2, 3},
		[]bool{true, false},
		[]uint16{1, 2},
		[]int16{-1, 1},
		[]int32{1, 2, 3},
		[]int64{4, 5},
		[]float32{0.5},
		[]float64{1.25, 2.5},
		[]string{"a", "b"},
		[]interface{}{int32(1), "two", nil, []interface{}{3.0}},
	}

	for _, v := range values {
		data, err := s.ToData(v)
		require.NoError(t, err, "encode %T", v)
		got, err := s.ToObject(data)
		require.NoError(t, err, "decode %T", v)
		assert.True(t, reflect.DeepEqual(v, got), "round trip %T: want %#v, got %#v", v, v, got)
	}
}

func TestTypeIDs(t *testing.T) {
	s := NewService()
	testCases := []struct {
		value  interface{}
		typeID int32
	}{
		{nil, TypeNull},
		{int32(1), TypeInt},
		{int64(1), TypeLong},
		{7, TypeLong},
		{1.0, TypeDouble},
		{"s", TypeString},
		{[]interface{}{}, TypeList},
		{&point{}, TypeIdentified},
	}
	require.NoError(t, s.RegisterFactory(7, pointFactory))

	for _, tc := range testCases {
		data, err := s.ToData(tc.value)
		require.NoError(t, err)
		assert.Equal(t, tc.typeID, data.TypeID(), "%T", tc.value)
	}
}

func TestIdentifiedRoundTrip(t *testing.T) {
	s := NewService()
	require.NoError(t, s.RegisterFactory(7, pointFactory))

	data, err := s.ToData(&point{X: 3, Y: -4})
	require.NoError(t, err)

	desc, err := s.Descriptor(data)
	require.NoError(t, err)
	assert.Equal(t, Identified(7, 1), desc)

	got, err := s.ToObject(data)
	require.NoError(t, err)
	assert.Equal(t, &point{X: 3, Y: -4}, got)
}

func TestRegisterIdentifiedTakesPrecedence(t *testing.T) {
	s := NewService()
	calls := 0
	require.NoError(t, s.RegisterIdentified(Identified(7, 1), func() IdentifiedDataSerializable {
		calls++
		return &point{}
	}))
	require.NoError(t, s.RegisterFactory(7, pointFactory))

	data, err := s.ToData(&point{X: 1})
	require.NoError(t, err)
	_, err = s.ToObject(data)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestUnregisteredIdentifiedIsDecodeError(t *testing.T) {
	writer := NewService()
	reader := NewService()

	// encoding needs no registration, decoding does
	data, err := writer.ToData(&point{X: 1, Y: 2})
	require.NoError(t, err)

	_, err = reader.ToObject(data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrSerialization))

	require.NoError(t, reader.RegisterFactory(7, func(int32) IdentifiedDataSerializable { return nil }))
	_, err = reader.ToObject(data)
	assert.True(t, errors.Is(err, errs.ErrSerialization))
}

func TestEncodeErrors(t *testing.T) {
	s := NewService()

	_, err := s.ToData(struct{}{})
	assert.True(t, errors.Is(err, errs.ErrSerialization), "missing codec")

	_, err = s.ToData(failing{})
	assert.True(t, errors.Is(err, errs.ErrSerialization), "failing custom codec")
}

func TestMalformedData(t *testing.T) {
	s := NewService()
	data, err := s.ToData("a longer string value")
	require.NoError(t, err)

	testCases := map[string]Data{
		"short header":   data[:5],
		"truncated":      data[:len(data)-3],
		"trailing bytes": append(append(Data{}, data...), 0xFF),
		"unknown type":   Data{0, 0, 0, 0, 0, 0, 0x7F, 0x7F},
	}

	for name, d := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := s.ToObject(d)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrSerialization))
		})
	}
}

func TestBadArrayLength(t *testing.T) {
	s := NewService()
	out := newObjectDataOutput(s, 16)
	out.WriteInt32(0)
	out.WriteInt32(TypeLongArray)
	out.WriteInt32(1 << 20) // far more elements than bytes follow
	out.WriteInt64(1)

	_, err := s.ToObject(out.Bytes())
	assert.True(t, errors.Is(err, errs.ErrSerialization))
}

func TestCustomCodecRegistration(t *testing.T) {
	s := NewService()

	err := s.RegisterCodec(reflect.TypeOf(routed{}), funcCodec{id: -5})
	assert.True(t, errors.Is(err, errs.ErrInvalidConfiguration), "reserved id")

	require.NoError(t, s.RegisterCodec(reflect.TypeOf(routed{}), routedCodec{}))
	err = s.RegisterCodec(reflect.TypeOf(routed{}), routedCodec{})
	assert.True(t, errors.Is(err, errs.ErrInvalidConfiguration), "duplicate")

	data, err := s.ToData(routed{Key: "user-1"})
	require.NoError(t, err)
	got, err := s.ToObject(data)
	require.NoError(t, err)
	assert.Equal(t, routed{Key: "user-1"}, got)
}

func TestPartitionAwareUsesPartitionKeyHash(t *testing.T) {
	s := NewService()
	require.NoError(t, s.RegisterCodec(reflect.TypeOf(routed{}), routedCodec{}))

	keyData, err := s.ToData("user-1")
	require.NoError(t, err)
	data, err := s.ToData(routed{Key: "user-1"})
	require.NoError(t, err)

	assert.True(t, data.HasPartitionHash())
	assert.Equal(t, keyData.PartitionHash(), data.PartitionHash())
}

func TestDataEqualIgnoresPartitionHash(t *testing.T) {
	a := Data{0, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xF9, 1, 2}
	b := Data{0, 0, 0, 9, 0xFF, 0xFF, 0xFF, 0xF9, 1, 2}
	c := Data{0, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xF9, 1, 3}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestClassName(t *testing.T) {
	assert.Equal(t, "java.lang.Integer", ClassName(TypeInt))
	assert.Equal(t, "java.lang.Double", ClassName(TypeDouble))
	assert.Equal(t, "", ClassName(TypeIdentified))
}

func TestDataIdentity(t *testing.T) {
	a := Data{0, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xF9, 1, 2}
	b := Data{0, 0, 0, 9, 0xFF, 0xFF, 0xFF, 0xF9, 1, 2}
	c := Data{0, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xF8, 1, 2}

	assert.Equal(t, a.Identity(), b.Identity())
	assert.NotEqual(t, a.Identity(), c.Identity())
	assert.Equal(t, "", Data{1, 2}.Identity())
}
