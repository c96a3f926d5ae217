package binser

import (
	"io"

	"github.com/cockroachdb/errors"
)

// Encode serializes v and writes the stream to w.
func Encode(w io.Writer, v any, opts ...Option) error {
	if w == nil {
		return ErrNilIO
	}
	if v == nil {
		return ErrNilObject
	}
	buf := getBuffer()
	defer putBuffer(buf)

	if err := NewSerializer(buf, opts...).Serialize(v); err != nil {
		return err
	}
	_ = buf.SetPosition(0)
	n, err := buf.WriteTo(w)
	if err != nil {
		return err
	}
	if int(n) < buf.Limit() {
		return io.ErrShortWrite
	}
	return nil
}

// Decode reads a whole stream from r and deserializes it into v. The magic
// number is checked before the stream is buffered, and WithMaxStreamSize
// bounds how much is read.
func Decode(r io.Reader, v any, opts ...Option) error {
	if r == nil {
		return ErrNilIO
	}
	if v == nil {
		return ErrNilObject
	}
	cfg := newConfig(opts)

	pr := PeekReader(r)
	magic, err := pr.PeekMagic(cfg.order)
	if err != nil {
		return errors.Wrap(err, "binser: read protocol magic")
	}
	if magic != MagicNumber {
		return errors.Wrapf(ErrMagicMismatch, "got %#08x, want %#08x", magic, MagicNumber)
	}

	var src io.WriterTo = pr
	if cfg.maxStreamSize > 0 {
		src = LimitReader(pr, cfg.maxStreamSize)
	}
	buf := getBuffer()
	defer putBuffer(buf)
	if _, err := src.WriteTo(buf); err != nil {
		return err
	}
	return NewSerializer(buf, opts...).Deserialize(v)
}

// DecodeAs is Decode into a new T.
func DecodeAs[T any](r io.Reader, opts ...Option) (*T, error) {
	v := new(T)
	if err := Decode(r, v, opts...); err != nil {
		return nil, err
	}
	return v, nil
}

// UnmarshalAs is Unmarshal into a new T.
func UnmarshalAs[T any](data []byte, opts ...Option) (*T, error) {
	v := new(T)
	if err := Unmarshal(data, v, opts...); err != nil {
		return nil, err
	}
	return v, nil
}
