package binser

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shortWriter struct{ max int }

func (w *shortWriter) Write(p []byte) (int, error) {
	return min(len(p), w.max), nil
}

func TestEncodeDecode(t *testing.T) {
	var stream bytes.Buffer
	in := sample{A: 3, B: "stream", C: []float64{0.5}}
	require.NoError(t, Encode(&stream, in))

	data, err := Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, data, stream.Bytes(), "Encode writes what Marshal returns")

	got, err := DecodeAs[sample](&stream)
	require.NoError(t, err)
	assert.Equal(t, in, *got)
}

func TestEncodeDecodeByteOrder(t *testing.T) {
	var stream bytes.Buffer
	in := sample{A: -1, B: "be"}
	require.NoError(t, Encode(&stream, &in, WithByteOrder(binary.BigEndian)))
	assert.Equal(t, []byte{0, 0, 0, 0x2A}, stream.Bytes()[:4])

	var out sample
	require.NoError(t, Decode(bytes.NewReader(stream.Bytes()), &out, WithByteOrder(binary.BigEndian)))
	assert.Equal(t, in, out)

	err := Decode(bytes.NewReader(stream.Bytes()), &out)
	assert.ErrorIs(t, err, ErrMagicMismatch)
}

func TestDecodeMaxStreamSize(t *testing.T) {
	data, err := Marshal(sample{A: 1, B: "limit"})
	require.NoError(t, err)

	var out sample
	require.NoError(t, Decode(bytes.NewReader(data), &out, WithMaxStreamSize(int64(len(data)))))
	assert.Equal(t, "limit", out.B)

	err = Decode(bytes.NewReader(data), &out, WithMaxStreamSize(int64(len(data)-1)))
	assert.ErrorIs(t, err, ErrStreamTooLarge)
}

func TestEncodeDecodeErrors(t *testing.T) {
	assert.ErrorIs(t, Encode(nil, sample{}), ErrNilIO)
	assert.ErrorIs(t, Encode(io.Discard, nil), ErrNilObject)
	assert.ErrorIs(t, Encode(&shortWriter{max: 8}, sample{}), io.ErrShortWrite)

	assert.ErrorIs(t, Decode(nil, &sample{}), ErrNilIO)
	assert.ErrorIs(t, Decode(bytes.NewReader([]byte{1}), nil), ErrNilObject)
	assert.ErrorIs(t, Decode(bytes.NewReader([]byte{0x2A, 0}), &sample{}), io.ErrUnexpectedEOF)
	assert.ErrorIs(t, Decode(bytes.NewReader([]byte{7, 0, 0, 0, 0}), &sample{}), ErrMagicMismatch)

	_, err := DecodeAs[sample](bytes.NewReader(nil))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	_, err = UnmarshalAs[sample](nil)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}
