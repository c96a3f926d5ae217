package binser

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type BufferTestSuite struct {
	suite.Suite
	buf *Buffer
}

func (s *BufferTestSuite) SetupTest() {
	s.buf = NewBuffer(16)
}

func (s *BufferTestSuite) TestPrimitiveRoundTrip() {
	b := s.buf
	b.PutBool(true)
	b.PutByte(-7)
	b.PutShort(-1234)
	b.PutChar(0xBEEF)
	b.PutInt(math.MinInt32)
	b.PutLong(math.MaxInt64)
	b.PutFloat(1.25)
	b.PutDouble(math.Pi)
	s.Require().NoError(b.Err())
	s.Equal(1+1+2+2+4+8+4+8, b.Limit())

	b.Reset()
	s.True(b.GetBool())
	s.EqualValues(-7, b.GetByte())
	s.EqualValues(-1234, b.GetShort())
	s.EqualValues(0xBEEF, b.GetChar())
	s.EqualValues(math.MinInt32, b.GetInt())
	s.EqualValues(int64(math.MaxInt64), b.GetLong())
	s.EqualValues(1.25, b.GetFloat())
	s.Equal(math.Pi, b.GetDouble())
	s.False(b.HasRemaining())
	s.NoError(b.Err())
}

func (s *BufferTestSuite) TestByteOrder() {
	s.buf.PutInt(0x11223344)
	s.Equal([]byte{0x44, 0x33, 0x22, 0x11}, s.buf.Bytes())

	be := NewBuffer(0).WithByteOrder(BE)
	be.PutInt(0x11223344)
	s.Equal([]byte{0x11, 0x22, 0x33, 0x44}, be.Bytes())
}

func (s *BufferTestSuite) TestStrings() {
	s.T().Run("UTF8", func(t *testing.T) {
		b := NewBuffer(0)
		b.PutString("hé")
		assert.Equal(t, []byte{4, 0, 0, 0, 'h', 0xC3, 0xA9, 0}, b.Bytes())
		b.Reset()
		assert.Equal(t, "hé", b.GetString())
	})

	s.T().Run("ISO8859", func(t *testing.T) {
		b := NewBuffer(0)
		b.PutStringISO8859("hé")
		assert.Equal(t, []byte{3, 0, 0, 0, 'h', 0xE9, 0}, b.Bytes())
		b.Reset()
		assert.Equal(t, "hé", b.GetStringISO8859())
	})

	s.T().Run("SimpleStrings", func(t *testing.T) {
		b := NewBuffer(0).WithSimpleStrings(true)
		b.PutString("abc")
		assert.Equal(t, []byte{4, 0, 0, 0, 'a', 'b', 'c', 0}, b.Bytes())
		b.Reset()
		assert.Equal(t, "abc", b.GetString())
	})

	s.T().Run("Empty", func(t *testing.T) {
		b := NewBuffer(0)
		b.PutString("")
		b.Reset()
		assert.Equal(t, "", b.GetString())
		assert.NoError(t, b.Err())
	})

	s.T().Run("NegativeLength", func(t *testing.T) {
		b := WrapBuffer([]byte{0xFF, 0xFF, 0xFF, 0xFF, 'x', 0})
		assert.Equal(t, "", b.GetString())
		assert.ErrorIs(t, b.Err(), ErrOutOfBounds)
	})
}

func (s *BufferTestSuite) TestErrorIsLatched() {
	b := WrapBuffer([]byte{1, 2})
	s.EqualValues(0, b.GetInt())
	s.Require().ErrorIs(b.Err(), ErrOutOfBounds)
	first := b.Err()

	s.EqualValues(0, b.GetByte(), "reads after an error return zero values")
	s.Equal(first, b.Err())

	b.ClearErr()
	s.EqualValues(1, b.GetByte())
}

func (s *BufferTestSuite) TestPositioning() {
	s.buf.PutLong(1)
	s.Require().NoError(s.buf.SetPosition(4))
	s.Equal(4, s.buf.Position())
	s.Equal(4, s.buf.Remaining())

	s.ErrorIs(s.buf.SetPosition(9), ErrOutOfBounds)
	s.ErrorIs(s.buf.SetPosition(-1), ErrOutOfBounds)
}

func (s *BufferTestSuite) TestGrowthKeepsData() {
	for i := range 1000 {
		s.buf.PutInt(int32(i))
	}
	s.Require().NoError(s.buf.Err())
	s.GreaterOrEqual(s.buf.Capacity(), 4000)

	s.buf.Reset()
	for i := range 1000 {
		if !s.EqualValues(i, s.buf.GetInt()) {
			return
		}
	}
}

func (s *BufferTestSuite) TestCapacityHelpers() {
	s.buf.PutLong(42)
	s.buf.EnsureCapacity(100)
	s.GreaterOrEqual(s.buf.Capacity(), 100)

	s.buf.Trim()
	s.Equal(8, s.buf.Capacity())

	s.buf.ForceCapacity(4)
	s.Equal(4, s.buf.Limit())

	s.buf.Clear()
	s.Equal(0, s.buf.Limit())
	s.Equal(0, s.buf.Position())
}

func (s *BufferTestSuite) TestArrays() {
	s.T().Run("OneDimensional", func(t *testing.T) {
		b := NewBuffer(0)
		b.PutDoubleArray([]float64{1.5, 2.5})
		require.NoError(t, b.Err())
		assert.Equal(t, 3*SizeOfInt+2*SizeOfDouble, b.Limit())

		b.Reset()
		assert.Equal(t, []int{2}, b.GetArraySizeDescriptor())
		assert.EqualValues(t, 2, b.GetInt())

		b.Reset()
		assert.Equal(t, []float64{1.5, 2.5}, b.GetDoubleArray())
	})

	s.T().Run("MultiDimensional", func(t *testing.T) {
		b := NewBuffer(0)
		b.PutIntArray([]int32{1, 2, 3, 4, 5, 6}, 2, 3)
		b.Reset()
		values, dims := GetArrayDims[int32](b)
		require.NoError(t, b.Err())
		assert.Equal(t, []int{2, 3}, dims)
		assert.Equal(t, []int32{1, 2, 3, 4, 5, 6}, values)
	})

	s.T().Run("DimsExceedValues", func(t *testing.T) {
		b := NewBuffer(0)
		b.PutIntArray([]int32{1, 2}, 2, 3)
		assert.ErrorIs(t, b.Err(), ErrOutOfBounds)
	})

	s.T().Run("Strings", func(t *testing.T) {
		b := NewBuffer(0)
		b.PutStringArray([]string{"a", "", "ccc"})
		b.Reset()
		if diff := cmp.Diff([]string{"a", "", "ccc"}, b.GetStringArray()); diff != "" {
			t.Errorf("string array mismatch (-want +got):\n%s", diff)
		}
	})

	s.T().Run("TruncatedArray", func(t *testing.T) {
		b := NewBuffer(0)
		b.PutLongArray([]int64{1, 2, 3})
		data := b.Bytes()[:b.Limit()-4]
		r := WrapBuffer(data)
		assert.Nil(t, r.GetLongArray())
		assert.ErrorIs(t, r.Err(), ErrOutOfBounds)
	})
}

func (s *BufferTestSuite) TestCallback() {
	calls := 0
	s.buf.SetCallback(func() { calls++ })

	s.buf.PutInt(1)
	s.Equal(1, calls)

	s.buf.PutDoubleArray([]float64{1, 2, 3})
	s.Equal(2, calls, "an array write fires the callback once")

	s.buf.PutIntAt(0, 7)
	s.Equal(2, calls, "absolute writes do not fire the callback")

	s.buf.SetCallback(nil)
	s.buf.PutInt(2)
	s.Equal(2, calls)
}

func (s *BufferTestSuite) TestIOInterfaces() {
	s.T().Run("WriteRead", func(t *testing.T) {
		b := NewBuffer(0)
		n, err := b.Write([]byte("hello"))
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		require.NoError(t, b.WriteByte('!'))

		b.Reset()
		got, err := io.ReadAll(b)
		require.NoError(t, err)
		assert.Equal(t, "hello!", string(got))
	})

	s.T().Run("ReadFromWriteTo", func(t *testing.T) {
		src := bytes.Repeat([]byte{0xAB}, 3*CHUNK_SIZE+17)
		b := NewBuffer(0)
		n, err := b.ReadFrom(bytes.NewReader(src))
		require.NoError(t, err)
		assert.EqualValues(t, len(src), n)

		b.Reset()
		var out bytes.Buffer
		m, err := b.WriteTo(&out)
		require.NoError(t, err)
		assert.EqualValues(t, len(src), m)
		assert.Equal(t, src, out.Bytes())
	})

	s.T().Run("Seek", func(t *testing.T) {
		b := WrapBuffer([]byte{0, 1, 2, 3, 4})
		pos, err := b.Seek(-2, io.SeekEnd)
		require.NoError(t, err)
		assert.EqualValues(t, 3, pos)
		c, err := b.ReadByte()
		require.NoError(t, err)
		assert.EqualValues(t, 3, c)

		_, err = b.Seek(0, 42)
		assert.ErrorIs(t, err, ErrInvalidWhence)
	})
}

func TestBufferTestSuite(t *testing.T) {
	suite.Run(t, new(BufferTestSuite))
}

func TestHashName(t *testing.T) {
	// values of the 31-multiplier hash used by every producer of the protocol
	assert.EqualValues(t, 0, HashName(""))
	assert.EqualValues(t, 97, HashName("a"))
	assert.EqualValues(t, 3329, HashName("hi"))
	assert.EqualValues(t, 99162322, HashName("hello"))
}

func TestRoundup(t *testing.T) {
	assert.Equal(t, 8, Roundup(1, 8))
	assert.Equal(t, 8, Roundup(8, 8))
	assert.Equal(t, 16, Roundup(9, 8))
}
