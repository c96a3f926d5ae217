package binser

import (
	"io"

	"github.com/cockroachdb/errors"
)

var (
	_ io.ReadWriter   = (*Buffer)(nil)
	_ io.ByteReader   = (*Buffer)(nil)
	_ io.ByteWriter   = (*Buffer)(nil)
	_ io.Seeker       = (*Buffer)(nil)
	_ io.WriterTo     = (*Buffer)(nil)
	_ io.ReaderFrom   = (*Buffer)(nil)
	_ io.StringWriter = (*Buffer)(nil)
)

// Write implements the [io.Writer] interface. Raw bytes carry no length
// prefix; they are meant for custom payloads whose size the field header records.
func (b *Buffer) Write(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	dst := b.reserve(len(p))
	if dst == nil {
		return 0, b.err
	}
	n := copy(dst, p)
	b.notify()
	return n, nil
}

// WriteString implements the [io.StringWriter] interface.
func (b *Buffer) WriteString(s string) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	dst := b.reserve(len(s))
	if dst == nil {
		return 0, b.err
	}
	n := copy(dst, s)
	b.notify()
	return n, nil
}

// WriteByte implements the [io.ByteWriter] interface.
func (b *Buffer) WriteByte(c byte) error {
	b.PutByte(int8(c))
	return b.err
}

// Read implements the [io.Reader] interface, reading up to the limit.
func (b *Buffer) Read(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	if b.position >= b.limit {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.position:b.limit])
	b.position += n
	return n, nil
}

// ReadByte implements the [io.ByteReader] interface.
func (b *Buffer) ReadByte() (byte, error) {
	if b.err != nil {
		return 0, b.err
	}
	if b.position >= b.limit {
		return 0, io.EOF
	}
	c := b.buf[b.position]
	b.position++
	return c, nil
}

// WriteTo implements the [io.WriterTo] interface, draining the buffer from
// the position to the limit.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	if b.err != nil {
		return 0, b.err
	}
	if b.position >= b.limit {
		return 0, nil
	}
	n, err := w.Write(b.buf[b.position:b.limit])
	if n > b.limit-b.position {
		return int64(n), ErrInvalidRead
	}
	b.position += n
	if err != nil {
		return int64(n), err
	}
	return int64(n), nil
}

// ReadFrom implements the [io.ReaderFrom] interface, appending everything r
// yields at the position.
func (b *Buffer) ReadFrom(r io.Reader) (int64, error) {
	if b.err != nil {
		return 0, b.err
	}
	restore := b.suspend()
	defer restore()

	chunk := bufPool.Get().(*[]byte)
	defer bufPool.Put(chunk)

	var total int64
	for {
		n, err := r.Read(*chunk)
		if n > 0 {
			if dst := b.reserve(n); dst != nil {
				copy(dst, (*chunk)[:n])
			}
			total += int64(n)
		}
		if b.err != nil {
			return total, b.err
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Seek implements the [io.Seeker] interface. Offsets are relative to the
// start of the store; io.SeekEnd is relative to the limit.
func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.position) + offset
	case io.SeekEnd:
		abs = int64(b.limit) + offset
	default:
		return int64(b.position), errors.Wrapf(ErrInvalidWhence, "value %d is not supported", whence)
	}
	if err := b.SetPosition(int(abs)); err != nil {
		return int64(b.position), err
	}
	return abs, nil
}
