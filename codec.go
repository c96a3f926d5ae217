// Package binser is a self-describing binary serializer for Go object graphs.
//
// A stream is a sequence of tagged fields. Each field header carries the wire
// type, the hash of the field name, the offset of its data and the data size,
// so a reader can match fields by name, skip what it does not know and walk
// nested objects without a schema. Objects are written as start/end scopes.
//
// The codecs used for individual Go types are kept in a Registry. Struct
// types without a codec are walked field by field using the cached ClassField
// tree of the type.
package binser

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Enum is implemented by integer types with a closed set of named constants.
// The integer value of a constant is its index in EnumNames.
type Enum interface {
	fmt.Stringer
	EnumNames() []string
}

// Container is implemented by collection types that choose their own wire
// type: TypeList, TypeQueue, TypeSet or TypeCollection. The elements are
// exposed as a slice through Elements and restored through SetElements.
type Container interface {
	ContainerType() WireType
	Elements() any
	SetElements(elems any) error
}

// Marshal serializes v, a struct or a pointer to one, into a new byte slice.
func Marshal(v any, opts ...Option) ([]byte, error) {
	if v == nil {
		return nil, ErrNilObject
	}
	buf := getBuffer()
	defer putBuffer(buf)

	s := NewSerializer(buf, opts...)
	if err := s.Serialize(v); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.Bytes()...), nil
}

// Unmarshal deserializes data into v, which must be a non-nil pointer.
// Fields present in data but not in v are skipped, fields of v missing from
// data keep their values.
func Unmarshal(data []byte, v any, opts ...Option) error {
	if v == nil {
		return ErrNilObject
	}
	if len(data) == 0 {
		return errors.Wrap(ErrOutOfBounds, "empty stream")
	}
	return NewSerializer(WrapBuffer(data), opts...).Deserialize(v)
}
