package binser

import (
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frameHeader struct {
	ID    uint32
	Flags uint16
	Gain  float64
	Ok    bool
}

func TestFixed(t *testing.T) {
	f := &Fixed[frameHeader]{Payload: frameHeader{ID: 7, Flags: 3, Gain: 0.5, Ok: true}}
	assert.Equal(t, 4+2+8+1, f.Size())

	data, err := f.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, data, f.Size())
	assert.EqualValues(t, 7, binary.LittleEndian.Uint32(data))

	var back Fixed[frameHeader]
	require.NoError(t, back.UnmarshalBinary(data))
	assert.Equal(t, f.Payload, back.Payload)

	assert.ErrorIs(t, back.UnmarshalBinary(append(data, 0)), ErrTypeMismatch)
	assert.ErrorIs(t, back.UnmarshalBinary(data[:3]), ErrOutOfBounds)

	_, err = (&Fixed[struct{ S string }]{}).MarshalBinary()
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestFixedField(t *testing.T) {
	type frame struct {
		Header Fixed[frameHeader]
		Body   []byte
	}
	in := frame{Header: Fixed[frameHeader]{Payload: frameHeader{ID: 1, Gain: 2}}, Body: []byte{9}}
	data, err := Marshal(in)
	require.NoError(t, err)

	root, err := NewWire(WrapBuffer(data)).ParseStream(true)
	require.NoError(t, err)
	assert.Equal(t, TypeOther, root.Fields()[0].Fields()[0].DataType())

	var out frame
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestRegisterFixed(t *testing.T) {
	type record struct {
		Head  frameHeader
		Label string
	}
	r := NewRegistry()
	require.NoError(t, RegisterFixed[frameHeader](r))
	assert.ErrorIs(t, RegisterFixed[frameHeader](r), ErrDuplicateCodec)
	assert.ErrorIs(t, RegisterFixed[record](r), ErrUnsupportedType)
	assert.Equal(t, TypeOther, r.Find(reflect.TypeFor[frameHeader]()).DataType)

	in := record{Head: frameHeader{ID: 42, Flags: 1, Gain: -1, Ok: true}, Label: "x"}
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		data, err := Marshal(in, WithRegistry(r), WithByteOrder(order))
		require.NoError(t, err)

		var out record
		require.NoError(t, Unmarshal(data, &out, WithRegistry(r), WithByteOrder(order)))
		assert.Equal(t, in, out)
	}

	data, err := Marshal(in, WithRegistry(r))
	require.NoError(t, err)
	var walked record
	require.NoError(t, Unmarshal(data, &walked), "the default registry expects a start marker and skips the payload")
	assert.Equal(t, record{Label: "x"}, walked)
}
