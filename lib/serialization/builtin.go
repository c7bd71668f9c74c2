package serialization

import (
	"reflect"

	"github.com/google/uuid"
)

// funcCodec adapts a pair of functions to the Codec interface. All built-in
// primitive codecs are expressed this way.
type funcCodec struct {
	id    int32
	write func(out *ObjectDataOutput, v interface{}) error
	read  func(in *ObjectDataInput) (interface{}, error)
}

func (c funcCodec) TypeID() int32 { return c.id }

func (c funcCodec) Write(out *ObjectDataOutput, v interface{}) error { return c.write(out, v) }

func (c funcCodec) Read(in *ObjectDataInput) (interface{}, error) { return c.read(in) }

// registerBuiltins registers every reserved codec. Registration of built-ins
// cannot fail, so errors are not checked.
func registerBuiltins(s *Service) {
	add := func(sample interface{}, c funcCodec) {
		_ = s.register(reflect.TypeOf(sample), c)
	}

	add(false, funcCodec{TypeBool,
		func(o *ObjectDataOutput, v interface{}) error { o.WriteBool(v.(bool)); return nil },
		func(i *ObjectDataInput) (interface{}, error) { return i.ReadBool(), i.Err() },
	})
	add(uint8(0), funcCodec{TypeByte,
		func(o *ObjectDataOutput, v interface{}) error { o.WriteUInt8(v.(uint8)); return nil },
		func(i *ObjectDataInput) (interface{}, error) { return i.ReadUInt8(), i.Err() },
	})
	add(uint16(0), funcCodec{TypeChar,
		func(o *ObjectDataOutput, v interface{}) error { o.WriteUInt16(v.(uint16)); return nil },
		func(i *ObjectDataInput) (interface{}, error) { return i.ReadUInt16(), i.Err() },
	})
	add(int16(0), funcCodec{TypeShort,
		func(o *ObjectDataOutput, v interface{}) error { o.WriteInt16(v.(int16)); return nil },
		func(i *ObjectDataInput) (interface{}, error) { return i.ReadInt16(), i.Err() },
	})
	add(int32(0), funcCodec{TypeInt,
		func(o *ObjectDataOutput, v interface{}) error { o.WriteInt32(v.(int32)); return nil },
		func(i *ObjectDataInput) (interface{}, error) { return i.ReadInt32(), i.Err() },
	})
	add(int64(0), funcCodec{TypeLong,
		func(o *ObjectDataOutput, v interface{}) error { o.WriteInt64(v.(int64)); return nil },
		func(i *ObjectDataInput) (interface{}, error) { return i.ReadInt64(), i.Err() },
	})
	// int has no wire type of its own; it is written as a long and decodes
	// as int64
	s.byGoType[reflect.TypeOf(0)] = funcCodec{TypeLong,
		func(o *ObjectDataOutput, v interface{}) error { o.WriteInt64(int64(v.(int))); return nil },
		nil,
	}
	add(float32(0), funcCodec{TypeFloat,
		func(o *ObjectDataOutput, v interface{}) error { o.WriteFloat32(v.(float32)); return nil },
		func(i *ObjectDataInput) (interface{}, error) { return i.ReadFloat32(), i.Err() },
	})
	add(float64(0), funcCodec{TypeDouble,
		func(o *ObjectDataOutput, v interface{}) error { o.WriteFloat64(v.(float64)); return nil },
		func(i *ObjectDataInput) (interface{}, error) { return i.ReadFloat64(), i.Err() },
	})
	add("", funcCodec{TypeString,
		func(o *ObjectDataOutput, v interface{}) error { o.WriteString(v.(string)); return nil },
		func(i *ObjectDataInput) (interface{}, error) { return i.ReadString(), i.Err() },
	})
	add(uuid.UUID{}, funcCodec{TypeUUID,
		func(o *ObjectDataOutput, v interface{}) error {
			u := v.(uuid.UUID)
			o.buf = append(o.buf, u[:]...)
			return nil
		},
		func(i *ObjectDataInput) (interface{}, error) {
			var u uuid.UUID
			copy(u[:], i.take(16))
			return u, i.Err()
		},
	})
	add([]byte(nil), funcCodec{TypeByteArray,
		func(o *ObjectDataOutput, v interface{}) error { o.WriteByteArray(v.([]byte)); return nil },
		func(i *ObjectDataInput) (interface{}, error) { return i.ReadByteArray(), i.Err() },
	})

	// primitive arrays
	add([]bool(nil), arrayCodec(TypeBoolArray, 1, (*ObjectDataOutput).WriteBool, (*ObjectDataInput).ReadBool))
	add([]uint16(nil), arrayCodec(TypeCharArray, 2, (*ObjectDataOutput).WriteUInt16, (*ObjectDataInput).ReadUInt16))
	add([]int16(nil), arrayCodec(TypeShortArray, 2, (*ObjectDataOutput).WriteInt16, (*ObjectDataInput).ReadInt16))
	add([]int32(nil), arrayCodec(TypeIntArray, 4, (*ObjectDataOutput).WriteInt32, (*ObjectDataInput).ReadInt32))
	add([]int64(nil), arrayCodec(TypeLongArray, 8, (*ObjectDataOutput).WriteInt64, (*ObjectDataInput).ReadInt64))
	add([]float32(nil), arrayCodec(TypeFloatArray, 4, (*ObjectDataOutput).WriteFloat32, (*ObjectDataInput).ReadFloat32))
	add([]float64(nil), arrayCodec(TypeDoubleArray, 8, (*ObjectDataOutput).WriteFloat64, (*ObjectDataInput).ReadFloat64))
	add([]string(nil), arrayCodec(TypeStringArray, 4, (*ObjectDataOutput).WriteString, (*ObjectDataInput).ReadString))

	// heterogeneous list, every element is written as a nested object
	add([]interface{}(nil), funcCodec{TypeList,
		func(o *ObjectDataOutput, v interface{}) error {
			list := v.([]interface{})
			o.WriteInt32(int32(len(list)))
			for _, elem := range list {
				if err := o.WriteObject(elem); err != nil {
					return err
				}
			}
			return nil
		},
		func(i *ObjectDataInput) (interface{}, error) {
			n := i.readLength(4)
			list := make([]interface{}, 0, n)
			for k := 0; k < n; k++ {
				elem, err := i.ReadObject()
				if err != nil {
					return nil, err
				}
				list = append(list, elem)
			}
			return list, i.Err()
		},
	})
}

// arrayCodec builds a codec for a slice of primitives
func arrayCodec[T any](
	id int32,
	minElemSize int,
	write func(*ObjectDataOutput, T),
	read func(*ObjectDataInput) T,
) funcCodec {
	return funcCodec{
		id: id,
		write: func(o *ObjectDataOutput, v interface{}) error {
			arr := v.([]T)
			o.WriteInt32(int32(len(arr)))
			for _, elem := range arr {
				write(o, elem)
			}
			return nil
		},
		read: func(i *ObjectDataInput) (interface{}, error) {
			n := i.readLength(minElemSize)
			arr := make([]T, n)
			for k := 0; k < n; k++ {
				arr[k] = read(i)
			}
			return arr, i.Err()
		},
	}
}
