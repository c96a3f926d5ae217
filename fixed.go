package binser

import (
	"encoding/binary"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v4"
)

// sizeCache avoids the reflection cost of binary.Size on every call.
var sizeCache = xsync.NewMap[reflect.Type, int]()

// fixedSize returns the binary.Size of t, or -1 when t has variable-size parts.
func fixedSize(t reflect.Type) int {
	if size, ok := sizeCache.Load(t); ok {
		return size
	}
	size := binary.Size(reflect.New(t).Interface())
	sizeCache.Store(t, size)
	return size
}

// Fixed wraps a struct made only of fixed-size fields so it travels as one
// opaque OTHER payload instead of being walked field by field.
//
// Constraint: Payload MUST NOT contain slices, maps, strings or pointers.
type Fixed[Payload any] struct {
	Payload Payload
}

// Size returns the encoded size of Payload.
func (c *Fixed[Payload]) Size() int {
	return fixedSize(reflect.TypeFor[Payload]())
}

// MarshalBinary encodes Payload in the default byte order.
func (c *Fixed[Payload]) MarshalBinary() ([]byte, error) {
	size := c.Size()
	if size < 0 {
		return nil, errors.Wrapf(ErrUnsupportedType, "%s is not fixed size", reflect.TypeFor[Payload]())
	}
	buf := make([]byte, size)
	if _, err := binary.Encode(buf, Order, &c.Payload); err != nil {
		return nil, errors.Wrap(err, "binser: encode fixed payload")
	}
	return buf, nil
}

// UnmarshalBinary decodes Payload and rejects trailing bytes.
func (c *Fixed[Payload]) UnmarshalBinary(data []byte) error {
	n, err := binary.Decode(data, Order, &c.Payload)
	if err != nil {
		return errors.Wrapf(ErrOutOfBounds, "fixed payload of %d bytes: %v", len(data), err)
	}
	if len(data) > n {
		return errors.Wrapf(ErrTypeMismatch, "%d trailing bytes after fixed payload", len(data)-n)
	}
	return nil
}

// RegisterFixed makes r serialize every T, a fixed-size struct, as an OTHER
// payload encoded with encoding/binary in the stream byte order.
func RegisterFixed[T any](r *Registry) error {
	t := reflect.TypeFor[T]()
	if fixedSize(t) < 0 {
		return errors.Wrapf(ErrUnsupportedType, "%s is not fixed size", t)
	}
	return r.Register(&FieldSerialiser{
		Type:     t,
		DataType: TypeOther,
		Writer: func(w *Wire, v reflect.Value, _ *ClassField) error {
			size := fixedSize(t)
			w.buf.PutArraySizeDescriptor(size)
			p := w.buf.reserve(size)
			if p == nil {
				return w.Err()
			}
			if _, err := binary.Encode(p, w.buf.ByteOrder(), v.Addr().Interface()); err != nil {
				return errors.Wrapf(err, "encode %s", t)
			}
			w.UpdateDataEndMarker(w.LastField())
			return w.Err()
		},
		Reader: func(w *Wire, v reflect.Value, _ *ClassField) error {
			dims, n := w.buf.getArrayHeader(SizeOfByte)
			if err := w.Err(); err != nil {
				return err
			}
			if len(dims) != 1 || n != fixedSize(t) {
				return errors.Wrapf(ErrTypeMismatch, "%d byte payload for %s", n, t)
			}
			p := w.buf.take(n)
			if p == nil {
				return w.Err()
			}
			_, err := binary.Decode(p, w.buf.ByteOrder(), v.Addr().Interface())
			return errors.Wrapf(err, "decode %s", t)
		},
	})
}
