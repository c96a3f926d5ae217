package binser

import (
	"math"

	"github.com/cockroachdb/errors"
)

// --- Primitive Get Operations ---

func (b *Buffer) GetBool() bool {
	if p := b.take(SizeOfBool); p != nil {
		return p[0] != 0
	}
	return false
}

func (b *Buffer) GetByte() int8 {
	if p := b.take(SizeOfByte); p != nil {
		return int8(p[0])
	}
	return 0
}

func (b *Buffer) GetShort() int16 {
	if p := b.take(SizeOfShort); p != nil {
		return int16(b.order.Uint16(p))
	}
	return 0
}

func (b *Buffer) GetChar() uint16 {
	if p := b.take(SizeOfChar); p != nil {
		return b.order.Uint16(p)
	}
	return 0
}

func (b *Buffer) GetInt() int32 {
	if p := b.take(SizeOfInt); p != nil {
		return int32(b.order.Uint32(p))
	}
	return 0
}

func (b *Buffer) GetLong() int64 {
	if p := b.take(SizeOfLong); p != nil {
		return int64(b.order.Uint64(p))
	}
	return 0
}

func (b *Buffer) GetFloat() float32 {
	if p := b.take(SizeOfFloat); p != nil {
		return math.Float32frombits(b.order.Uint32(p))
	}
	return 0
}

func (b *Buffer) GetDouble() float64 {
	if p := b.take(SizeOfDouble); p != nil {
		return math.Float64frombits(b.order.Uint64(p))
	}
	return 0
}

// GetString reads a string written by PutString.
func (b *Buffer) GetString() string {
	if b.simpleStrings {
		return b.GetStringISO8859()
	}
	if p := b.rawString(); p != nil {
		return string(p)
	}
	return ""
}

// GetStringISO8859 reads a string written by PutStringISO8859.
func (b *Buffer) GetStringISO8859() string {
	if p := b.rawString(); p != nil {
		return decodeISO8859(p)
	}
	return ""
}

// rawString consumes a length prefixed string and returns its payload
// without the terminating zero.
func (b *Buffer) rawString() []byte {
	n := int(b.GetInt())
	if b.err != nil {
		return nil
	}
	if n <= 0 {
		b.setError(errors.Wrapf(ErrOutOfBounds, "invalid string length %d at %d", n, b.position-SizeOfInt))
		return nil
	}
	p := b.take(n)
	if p == nil {
		return nil
	}
	return p[:n-1]
}

// --- Absolute Get Operations ---

// GetIntAt reads an int32 at the absolute offset pos without moving the position.
func (b *Buffer) GetIntAt(pos int) int32 {
	if p := b.at(pos, SizeOfInt); p != nil {
		return int32(b.order.Uint32(p))
	}
	return 0
}

// GetByteAt reads a byte at the absolute offset pos without moving the position.
func (b *Buffer) GetByteAt(pos int) int8 {
	if p := b.at(pos, SizeOfByte); p != nil {
		return int8(p[0])
	}
	return 0
}
