package binser

import (
	"encoding"
	"fmt"
	"reflect"
)

// WireType is the single byte identifying how a value is encoded on the wire.
// The numbering is fixed by the protocol and shared with every other producer.
type WireType byte

const (
	TypeStartMarker WireType = 0

	TypeBool   WireType = 1
	TypeByte   WireType = 2
	TypeShort  WireType = 3
	TypeInt    WireType = 4
	TypeLong   WireType = 5
	TypeFloat  WireType = 6
	TypeDouble WireType = 7
	TypeChar   WireType = 8
	TypeString WireType = 9

	TypeBoolArray   WireType = 101
	TypeByteArray   WireType = 102
	TypeShortArray  WireType = 103
	TypeIntArray    WireType = 104
	TypeLongArray   WireType = 105
	TypeFloatArray  WireType = 106
	TypeDoubleArray WireType = 107
	TypeCharArray   WireType = 108
	TypeStringArray WireType = 109

	TypeCollection WireType = 200
	TypeEnum       WireType = 201
	TypeList       WireType = 202
	TypeMap        WireType = 203
	TypeQueue      WireType = 204
	TypeSet        WireType = 205

	TypeOther     WireType = 0xFD
	TypeEndMarker WireType = 0xFE
)

var wireTypeNames = map[WireType]string{
	TypeStartMarker: "START_MARKER",
	TypeBool:        "BOOL",
	TypeByte:        "BYTE",
	TypeShort:       "SHORT",
	TypeInt:         "INT",
	TypeLong:        "LONG",
	TypeFloat:       "FLOAT",
	TypeDouble:      "DOUBLE",
	TypeChar:        "CHAR",
	TypeString:      "STRING",
	TypeBoolArray:   "BOOL_ARRAY",
	TypeByteArray:   "BYTE_ARRAY",
	TypeShortArray:  "SHORT_ARRAY",
	TypeIntArray:    "INT_ARRAY",
	TypeLongArray:   "LONG_ARRAY",
	TypeFloatArray:  "FLOAT_ARRAY",
	TypeDoubleArray: "DOUBLE_ARRAY",
	TypeCharArray:   "CHAR_ARRAY",
	TypeStringArray: "STRING_ARRAY",
	TypeCollection:  "COLLECTION",
	TypeEnum:        "ENUM",
	TypeList:        "LIST",
	TypeMap:         "MAP",
	TypeQueue:       "QUEUE",
	TypeSet:         "SET",
	TypeOther:       "OTHER",
	TypeEndMarker:   "END_MARKER",
}

func (t WireType) String() string {
	if name, ok := wireTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("WireType(%d)", byte(t))
}

// Valid reports whether t is part of the protocol.
func (t WireType) Valid() bool {
	_, ok := wireTypeNames[t]
	return ok
}

// IsScalar reports whether t is a fixed-size primitive.
func (t WireType) IsScalar() bool {
	return t >= TypeBool && t <= TypeChar
}

// IsArray reports whether t is one of the primitive/string array types.
func (t WireType) IsArray() bool {
	return t >= TypeBoolArray && t <= TypeStringArray
}

// IsCollection reports whether t is one of the collection-like container types.
func (t WireType) IsCollection() bool {
	switch t {
	case TypeCollection, TypeList, TypeQueue, TypeSet:
		return true
	}
	return false
}

// opensScope reports whether a header of type t is closed by an END_MARKER.
func (t WireType) opensScope() bool {
	return t == TypeStartMarker || t == TypeOther
}

// PrimitiveSize returns the encoded size of a scalar value, or -1 when the size
// is only known once the value has been written.
func (t WireType) PrimitiveSize() int {
	switch t {
	case TypeBool, TypeByte:
		return SizeOfByte
	case TypeShort:
		return SizeOfShort
	case TypeChar:
		return SizeOfChar
	case TypeInt:
		return SizeOfInt
	case TypeLong:
		return SizeOfLong
	case TypeFloat:
		return SizeOfFloat
	case TypeDouble:
		return SizeOfDouble
	case TypeStartMarker, TypeEndMarker:
		return 0
	}
	return -1
}

// Element returns the scalar type of an array type and t itself otherwise.
func (t WireType) Element() WireType {
	if t.IsArray() {
		return t - 100
	}
	return t
}

// ArrayOf returns the array form of a scalar or string type.
func (t WireType) ArrayOf() WireType {
	if t >= TypeBool && t <= TypeString {
		return t + 100
	}
	return TypeOther
}

var (
	enumType        = reflect.TypeFor[Enum]()
	containerType   = reflect.TypeFor[Container]()
	marshalerType   = reflect.TypeFor[encoding.BinaryMarshaler]()
	unmarshalerType = reflect.TypeFor[encoding.BinaryUnmarshaler]()
	emptyStructType = reflect.TypeFor[struct{}]()
)

// DataTypeOf maps a Go type onto the wire type used for its field header.
// Pointers are looked through. Compound types that have no dedicated wire
// representation map to TypeOther.
func DataTypeOf(t reflect.Type) WireType {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Interface && t.Implements(containerType) {
		return reflect.Zero(t).Interface().(Container).ContainerType()
	}
	if t.Kind() != reflect.Interface && implements(t, containerType) {
		return reflect.New(t).Interface().(Container).ContainerType()
	}
	if implements(t, enumType) {
		return TypeEnum
	}
	if wt := scalarWireType(t.Kind()); wt != TypeOther {
		return wt
	}
	switch t.Kind() {
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 || t.Elem().Kind() == reflect.Int8 {
			return TypeByteArray
		}
		if et := scalarWireType(t.Elem().Kind()); et != TypeOther && isDirectArrayElem(t.Elem()) {
			return et.ArrayOf()
		}
		return TypeCollection
	case reflect.Array:
		et := innermostElem(t)
		if wt := scalarWireType(et.Kind()); wt != TypeOther {
			return wt.ArrayOf()
		}
		return TypeOther
	case reflect.Map:
		if t.Elem() == emptyStructType {
			return TypeSet
		}
		return TypeMap
	}
	return TypeOther
}

// scalarWireType maps basic kinds onto their wire scalar. Unsigned kinds share
// the signed encoding of the same width, except uint16 which is a char.
func scalarWireType(k reflect.Kind) WireType {
	switch k {
	case reflect.Bool:
		return TypeBool
	case reflect.Int8, reflect.Uint8:
		return TypeByte
	case reflect.Int16:
		return TypeShort
	case reflect.Uint16:
		return TypeChar
	case reflect.Int32, reflect.Uint32:
		return TypeInt
	case reflect.Int64, reflect.Uint64, reflect.Int, reflect.Uint, reflect.Uintptr:
		return TypeLong
	case reflect.Float32:
		return TypeFloat
	case reflect.Float64:
		return TypeDouble
	case reflect.String:
		return TypeString
	}
	return TypeOther
}

// isDirectArrayElem reports whether a slice of e is encoded as a primitive
// array: the element kind must have exactly the wire width.
func isDirectArrayElem(e reflect.Type) bool {
	switch e.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Uint8, reflect.Int16, reflect.Uint16,
		reflect.Int32, reflect.Int64, reflect.Float32, reflect.Float64, reflect.String:
		return !implements(e, enumType)
	}
	return false
}

// innermostElem strips every array level of t.
func innermostElem(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Array {
		t = t.Elem()
	}
	return t
}

func implements(t, iface reflect.Type) bool {
	if t.Implements(iface) {
		return true
	}
	return t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface && reflect.PointerTo(t).Implements(iface)
}
