package binser

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/errors"
)

const (
	// DefaultInitialCapacity is the capacity of a buffer created without an explicit size.
	DefaultInitialCapacity = 1 << 12
	// DefaultMinIncrement and DefaultMaxIncrement bound the extra room added on growth.
	DefaultMinIncrement = 1 << 10
	DefaultMaxIncrement = 100 << 10
)

// Buffer is a growable byte store addressed by a read/write position and a
// limit marking the end of valid data.
//
// Writes past the limit extend it; reads past it fail. The first error is
// latched: every later read returns the zero value and every later write is
// dropped until ClearErr is called.
//
// A Buffer is not safe for concurrent use.
type Buffer struct {
	buf      []byte
	position int
	limit    int
	err      error
	order    binary.ByteOrder

	simpleStrings bool

	callback  func()
	suspended bool

	minIncrement int
	maxIncrement int
}

// NewBuffer creates an empty buffer with the given initial capacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultInitialCapacity
	}
	return &Buffer{
		buf:          make([]byte, capacity),
		order:        Order,
		minIncrement: DefaultMinIncrement,
		maxIncrement: DefaultMaxIncrement,
	}
}

// WrapBuffer creates a buffer reading from data. The buffer takes ownership of
// the slice; the limit is len(data).
func WrapBuffer(data []byte) *Buffer {
	b := &Buffer{
		buf:          data[:len(data):len(data)],
		limit:        len(data),
		order:        Order,
		minIncrement: DefaultMinIncrement,
		maxIncrement: DefaultMaxIncrement,
	}
	return b
}

// WithByteOrder sets the byte order used for every multi-byte value and
// returns the buffer for chaining.
func (b *Buffer) WithByteOrder(order binary.ByteOrder) *Buffer {
	if order != nil {
		b.order = order
	}
	return b
}

// WithSimpleStrings forces PutString/GetString onto the single byte per
// character encoding.
func (b *Buffer) WithSimpleStrings(enforce bool) *Buffer {
	b.simpleStrings = enforce
	return b
}

// WithIncrements bounds the extra capacity added whenever the buffer grows.
func (b *Buffer) WithIncrements(minIncrement, maxIncrement int) *Buffer {
	if minIncrement > 0 {
		b.minIncrement = minIncrement
	}
	if maxIncrement >= b.minIncrement {
		b.maxIncrement = maxIncrement
	}
	return b
}

func (b *Buffer) ByteOrder() binary.ByteOrder      { return b.order }
func (b *Buffer) SimpleStringEncoding() bool       { return b.simpleStrings }
func (b *Buffer) Position() int                    { return b.position }
func (b *Buffer) Limit() int                       { return b.limit }
func (b *Buffer) Capacity() int                    { return len(b.buf) }
func (b *Buffer) Remaining() int                   { return b.limit - b.position }
func (b *Buffer) HasRemaining() bool               { return b.position < b.limit }
func (b *Buffer) Err() error                       { return b.err }
func (b *Buffer) ClearErr()                        { b.err = nil }
func (b *Buffer) Bytes() []byte                    { return b.buf[:b.limit] }
func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer[position=%d, limit=%d, capacity=%d]", b.position, b.limit, len(b.buf))
}

// SetPosition moves the cursor. Positions outside [0, limit] latch ErrOutOfBounds.
func (b *Buffer) SetPosition(pos int) error {
	if pos < 0 || pos > b.limit {
		b.setError(errors.Wrapf(ErrOutOfBounds, "position %d outside [0, %d]", pos, b.limit))
		return b.err
	}
	b.position = pos
	return nil
}

// SetLimit moves the end of valid data. The position is pulled back if it lies beyond.
func (b *Buffer) SetLimit(limit int) error {
	if limit < 0 || limit > len(b.buf) {
		b.setError(errors.Wrapf(ErrOutOfBounds, "limit %d outside [0, %d]", limit, len(b.buf)))
		return b.err
	}
	b.limit = limit
	if b.position > limit {
		b.position = limit
	}
	return nil
}

// Reset rewinds the position so the written data can be read back.
func (b *Buffer) Reset() {
	b.position = 0
	b.err = nil
}

// Clear rewinds the position and drops all data.
func (b *Buffer) Clear() {
	b.position = 0
	b.limit = 0
	b.err = nil
}

// SetCallback installs the function called after every primitive and array
// write. A nil fn removes it.
func (b *Buffer) SetCallback(fn func()) {
	b.callback = fn
}

// notify runs the write callback unless a bulk operation has suspended it.
func (b *Buffer) notify() {
	if b.callback != nil && !b.suspended && b.err == nil {
		b.callback()
	}
}

// suspend disables the callback for the duration of a bulk write and returns
// the function that re-enables it and fires it once.
func (b *Buffer) suspend() func() {
	if b.suspended {
		return func() {}
	}
	b.suspended = true
	return func() {
		b.suspended = false
		b.notify()
	}
}

// EnsureAdditionalCapacity makes room for n more bytes after the position.
func (b *Buffer) EnsureAdditionalCapacity(n int) {
	b.EnsureCapacity(b.position + n)
}

// EnsureCapacity grows the store to at least needed bytes, adding an increment
// of needed/8 clamped to [minIncrement, maxIncrement].
func (b *Buffer) EnsureCapacity(needed int) {
	if needed <= len(b.buf) {
		return
	}
	b.ForceCapacity(Roundup(needed+min(max(b.minIncrement, needed>>3), b.maxIncrement), 8))
}

// ForceCapacity reallocates the store to exactly capacity bytes, keeping as
// much of the existing data as fits.
func (b *Buffer) ForceCapacity(capacity int) {
	if capacity < 0 {
		capacity = 0
	}
	next := make([]byte, capacity)
	copy(next, b.buf[:min(b.limit, capacity)])
	b.buf = next
	b.limit = min(b.limit, capacity)
	b.position = min(b.position, b.limit)
}

// Trim shrinks the capacity to the limit.
func (b *Buffer) Trim() {
	if len(b.buf) != b.limit {
		b.ForceCapacity(b.limit)
	}
}

// setError records the first non-nil error.
func (b *Buffer) setError(err error) {
	if b.err == nil && err != nil {
		b.err = err
	}
}

// reserve claims n bytes at the position for writing and returns them, growing
// the store and the limit as needed. It returns nil once an error is latched.
func (b *Buffer) reserve(n int) []byte {
	if b.err != nil {
		return nil
	}
	end := b.position + n
	b.EnsureCapacity(end)
	p := b.buf[b.position:end]
	b.position = end
	if end > b.limit {
		b.limit = end
	}
	return p
}

// take consumes n bytes at the position for reading. Reads past the limit
// latch ErrOutOfBounds and return nil.
func (b *Buffer) take(n int) []byte {
	if b.err != nil {
		return nil
	}
	if n < 0 || b.position+n > b.limit {
		b.setError(errors.Wrapf(ErrOutOfBounds, "read of %d bytes at %d exceeds limit %d", n, b.position, b.limit))
		return nil
	}
	p := b.buf[b.position : b.position+n]
	b.position += n
	return p
}

// at returns n bytes at the absolute offset pos without moving the cursor.
func (b *Buffer) at(pos, n int) []byte {
	if b.err != nil {
		return nil
	}
	if pos < 0 || n < 0 || pos+n > b.limit {
		b.setError(errors.Wrapf(ErrOutOfBounds, "access of %d bytes at %d exceeds limit %d", n, pos, b.limit))
		return nil
	}
	return b.buf[pos : pos+n]
}
