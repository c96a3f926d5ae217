package binser

import (
	"io"

	"github.com/cockroachdb/errors"
)

// LimitedReader reads from R until N bytes are consumed. Unlike
// io.LimitedReader it reports a stream that goes on past N as
// ErrStreamTooLarge instead of silently truncating it.
type LimitedReader struct {
	R io.Reader
	N int64 // bytes left

	limit int64
}

func LimitReader(r io.Reader, n int64) *LimitedReader {
	return &LimitedReader{R: r, N: n, limit: n}
}

func (r *LimitedReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if r.N <= 0 {
		var probe [1]byte
		n, err := r.R.Read(probe[:])
		if n > 0 {
			return 0, errors.Wrapf(ErrStreamTooLarge, "more than %d bytes", r.limit)
		}
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}
	if int64(len(p)) > r.N {
		p = p[:r.N]
	}
	n, err := r.R.Read(p)
	r.N -= int64(n)
	return n, err
}

// Close closes the underlying reader if it implements io.Closer.
func (r *LimitedReader) Close() error {
	if c, ok := r.R.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// WriteTo copies the limited stream to w, preferring w's ReadFrom.
func (r *LimitedReader) WriteTo(w io.Writer) (int64, error) {
	if rf, ok := w.(io.ReaderFrom); ok {
		return rf.ReadFrom(r)
	}
	bufPtr := bufPool.Get().(*[]byte)
	defer bufPool.Put(bufPtr)
	return io.CopyBuffer(w, struct{ io.Reader }{r}, *bufPtr)
}
