package binser

import (
	"encoding/binary"
	"reflect"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

// Primitive lists the element types that are copied to the wire as a flat
// block of fixed-size values.
type Primitive interface {
	~bool | ~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~int64 | constraints.Float
}

// PutArraySizeDescriptor writes the number of dimensions, the extent of each
// and the total element count. It returns the total.
func (b *Buffer) PutArraySizeDescriptor(dims ...int) int {
	total := 1
	b.PutInt(int32(len(dims)))
	for _, d := range dims {
		total *= d
		b.PutInt(int32(d))
	}
	b.PutInt(int32(total))
	return total
}

// GetArraySizeDescriptor reads the dimension extents written by
// PutArraySizeDescriptor. The total element count that follows is left unread.
func (b *Buffer) GetArraySizeDescriptor() []int {
	n := int(b.GetInt())
	if b.err != nil {
		return nil
	}
	if n < 0 || n*SizeOfInt > b.Remaining() {
		b.setError(errors.Wrapf(ErrOutOfBounds, "invalid array dimension count %d", n))
		return nil
	}
	dims := make([]int, n)
	for i := range dims {
		dims[i] = int(b.GetInt())
	}
	return dims
}

// getArrayHeader reads the full descriptor and validates that total elements
// of elemSize bytes can still be read.
func (b *Buffer) getArrayHeader(elemSize int) ([]int, int) {
	dims := b.GetArraySizeDescriptor()
	total := int(b.GetInt())
	if b.err != nil {
		return nil, 0
	}
	if total < 0 || total*elemSize > b.Remaining() {
		b.setError(errors.Wrapf(ErrOutOfBounds, "invalid array size %d at %d", total, b.position))
		return nil, 0
	}
	return dims, total
}

// elemSize returns the encoded size of one T, cached per type.
func elemSize[T Primitive]() int {
	t := reflect.TypeFor[T]()
	if size, ok := sizeCache.Load(t); ok {
		return size
	}
	size := int(t.Size())
	sizeCache.Store(t, size)
	return size
}

// PutArray writes values as a primitive array. Without dims the array is
// one-dimensional; with dims only the first product(dims) values are written.
// The write callback fires once, after the whole array.
func PutArray[T Primitive](b *Buffer, values []T, dims ...int) {
	defer b.suspend()()
	if len(dims) == 0 {
		dims = []int{len(values)}
	}
	n := b.PutArraySizeDescriptor(dims...)
	if n < 0 || n > len(values) {
		b.setError(errors.Wrapf(ErrOutOfBounds, "array dimensions %v exceed %d values", dims, len(values)))
		return
	}
	p := b.reserve(n * elemSize[T]())
	if p == nil {
		return
	}
	if _, err := binary.Encode(p, b.order, values[:n]); err != nil {
		b.setError(errors.Wrap(err, "binser: encode array"))
	}
}

// GetArray reads a primitive array written by PutArray, flattened.
func GetArray[T Primitive](b *Buffer) []T {
	values, _ := GetArrayDims[T](b)
	return values
}

// GetArrayDims reads a primitive array and returns it with its dimensions.
func GetArrayDims[T Primitive](b *Buffer) ([]T, []int) {
	size := elemSize[T]()
	dims, n := b.getArrayHeader(size)
	if b.err != nil {
		return nil, nil
	}
	p := b.take(n * size)
	if p == nil {
		return nil, nil
	}
	values := make([]T, n)
	if _, err := binary.Decode(p, b.order, values); err != nil {
		b.setError(errors.Wrap(err, "binser: decode array"))
		return nil, nil
	}
	return values, dims
}

// PutStringArray writes a string array, each element encoded like PutString.
func (b *Buffer) PutStringArray(values []string, dims ...int) {
	defer b.suspend()()
	if len(dims) == 0 {
		dims = []int{len(values)}
	}
	n := b.PutArraySizeDescriptor(dims...)
	if n < 0 || n > len(values) {
		b.setError(errors.Wrapf(ErrOutOfBounds, "array dimensions %v exceed %d values", dims, len(values)))
		return
	}
	for _, v := range values[:n] {
		b.PutString(v)
	}
}

// GetStringArray reads a string array written by PutStringArray.
func (b *Buffer) GetStringArray() []string {
	values, _ := b.GetStringArrayDims()
	return values
}

func (b *Buffer) GetStringArrayDims() ([]string, []int) {
	// every string occupies at least its length prefix and terminator
	dims, n := b.getArrayHeader(SizeOfInt + 1)
	if b.err != nil {
		return nil, nil
	}
	values := make([]string, n)
	for i := range values {
		values[i] = b.GetString()
	}
	if b.err != nil {
		return nil, nil
	}
	return values, dims
}

// --- Typed array helpers ---

func (b *Buffer) PutBoolArray(v []bool, dims ...int)      { PutArray(b, v, dims...) }
func (b *Buffer) PutByteArray(v []byte, dims ...int)      { PutArray(b, v, dims...) }
func (b *Buffer) PutShortArray(v []int16, dims ...int)    { PutArray(b, v, dims...) }
func (b *Buffer) PutCharArray(v []uint16, dims ...int)    { PutArray(b, v, dims...) }
func (b *Buffer) PutIntArray(v []int32, dims ...int)      { PutArray(b, v, dims...) }
func (b *Buffer) PutLongArray(v []int64, dims ...int)     { PutArray(b, v, dims...) }
func (b *Buffer) PutFloatArray(v []float32, dims ...int)  { PutArray(b, v, dims...) }
func (b *Buffer) PutDoubleArray(v []float64, dims ...int) { PutArray(b, v, dims...) }

func (b *Buffer) GetBoolArray() []bool      { return GetArray[bool](b) }
func (b *Buffer) GetByteArray() []byte      { return GetArray[byte](b) }
func (b *Buffer) GetShortArray() []int16    { return GetArray[int16](b) }
func (b *Buffer) GetCharArray() []uint16    { return GetArray[uint16](b) }
func (b *Buffer) GetIntArray() []int32      { return GetArray[int32](b) }
func (b *Buffer) GetLongArray() []int64     { return GetArray[int64](b) }
func (b *Buffer) GetFloatArray() []float32  { return GetArray[float32](b) }
func (b *Buffer) GetDoubleArray() []float64 { return GetArray[float64](b) }
