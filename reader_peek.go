package binser

import (
	"encoding/binary"
	"io"
	"slices"
)

// PeekableReader lets Decode look at the stream preamble before committing
// to read the whole stream. Peeked bytes are replayed by Read and WriteTo.
type PeekableReader struct {
	R io.Reader
	B []byte // peeked, not yet consumed
}

// PeekReader wraps r unless it already is a PeekableReader.
func PeekReader(r io.Reader) *PeekableReader {
	if pr, ok := r.(*PeekableReader); ok {
		return pr
	}
	return &PeekableReader{R: r}
}

// Peek returns the next n bytes without consuming them. A stream ending
// early yields the available bytes with io.EOF (none) or
// io.ErrUnexpectedEOF (some).
func (r *PeekableReader) Peek(n int) ([]byte, error) {
	have := len(r.B)
	if have >= n {
		return r.B[:n], nil
	}
	r.B = slices.Grow(r.B, n-have)[:n]
	m, err := io.ReadAtLeast(r.R, r.B[have:], n-have)
	r.B = r.B[:have+m]
	if err != nil {
		if have > 0 && err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return r.B, err
	}
	return r.B, nil
}

// PeekMagic returns the protocol magic number at the head of the stream
// without consuming it.
func (r *PeekableReader) PeekMagic(order binary.ByteOrder) (int32, error) {
	head, err := r.Peek(SizeOfInt)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, err
	}
	return int32(order.Uint32(head)), nil
}

func (r *PeekableReader) Close() error {
	if c, ok := r.R.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (r *PeekableReader) Read(p []byte) (int, error) {
	if len(r.B) == 0 {
		return r.R.Read(p)
	}
	n := copy(p, r.B)
	r.B = r.B[n:]
	return n, nil
}

// WriteTo replays the peeked bytes, then copies the rest of the stream,
// letting w read it directly when w is an io.ReaderFrom.
func (r *PeekableReader) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for len(r.B) > 0 {
		n, err := w.Write(r.B)
		total += int64(n)
		r.B = r.B[n:]
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	var n int64
	var err error
	if rf, ok := w.(io.ReaderFrom); ok {
		n, err = rf.ReadFrom(r.R)
	} else {
		chunk := bufPool.Get().(*[]byte)
		defer bufPool.Put(chunk)
		n, err = io.CopyBuffer(w, struct{ io.Reader }{r.R}, *chunk)
	}
	return total + n, err
}
