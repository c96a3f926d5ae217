package binser

import (
	"math"
)

// --- Primitive Put Operations ---

func (b *Buffer) PutBool(v bool) {
	if p := b.reserve(SizeOfBool); p != nil {
		if v {
			p[0] = 1
		} else {
			p[0] = 0
		}
		b.notify()
	}
}

func (b *Buffer) PutByte(v int8) {
	if p := b.reserve(SizeOfByte); p != nil {
		p[0] = byte(v)
		b.notify()
	}
}

func (b *Buffer) PutShort(v int16) {
	if p := b.reserve(SizeOfShort); p != nil {
		b.order.PutUint16(p, uint16(v))
		b.notify()
	}
}

// PutChar writes a single UTF-16 code unit.
func (b *Buffer) PutChar(v uint16) {
	if p := b.reserve(SizeOfChar); p != nil {
		b.order.PutUint16(p, v)
		b.notify()
	}
}

func (b *Buffer) PutInt(v int32) {
	if p := b.reserve(SizeOfInt); p != nil {
		b.order.PutUint32(p, uint32(v))
		b.notify()
	}
}

func (b *Buffer) PutLong(v int64) {
	if p := b.reserve(SizeOfLong); p != nil {
		b.order.PutUint64(p, uint64(v))
		b.notify()
	}
}

func (b *Buffer) PutFloat(v float32) {
	if p := b.reserve(SizeOfFloat); p != nil {
		b.order.PutUint32(p, math.Float32bits(v))
		b.notify()
	}
}

func (b *Buffer) PutDouble(v float64) {
	if p := b.reserve(SizeOfDouble); p != nil {
		b.order.PutUint64(p, math.Float64bits(v))
		b.notify()
	}
}

// PutString writes a length prefixed, zero terminated string. The payload is
// UTF-8 unless simple string encoding is enforced.
func (b *Buffer) PutString(s string) {
	if b.simpleStrings {
		b.PutStringISO8859(s)
		return
	}
	b.putRawString(len(s), func(dst []byte) { copy(dst, s) })
}

// PutStringISO8859 writes s with one byte per character. Field names and
// protocol strings always use this form.
func (b *Buffer) PutStringISO8859(s string) {
	b.putRawString(isoLen(s), func(dst []byte) { encodeISO8859(dst[:0], s) })
}

func (b *Buffer) putRawString(n int, fill func(dst []byte)) {
	p := b.reserve(SizeOfInt + n + 1)
	if p == nil {
		return
	}
	b.order.PutUint32(p, uint32(n+1))
	fill(p[SizeOfInt : SizeOfInt+n])
	p[SizeOfInt+n] = 0
	b.notify()
}

// --- Absolute Put Operations ---
//
// These overwrite bytes at a fixed offset without moving the position and
// without running the write callback. They are used to backpatch headers.

func (b *Buffer) PutIntAt(pos int, v int32) {
	if p := b.at(pos, SizeOfInt); p != nil {
		b.order.PutUint32(p, uint32(v))
	}
}

func (b *Buffer) PutByteAt(pos int, v int8) {
	if p := b.at(pos, SizeOfByte); p != nil {
		p[0] = byte(v)
	}
}
