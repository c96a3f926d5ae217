package binser

import (
	"encoding/binary"
	"reflect"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type sample struct {
	A int32     `binser:"a"`
	B string    `binser:"b"`
	C []float64 `binser:"c"`
}

type position struct {
	X, Y float64
}

// chain encodes itself as the big endian values of the whole list.
type chain struct {
	V    int32
	Next *chain
}

func (c chain) MarshalBinary() ([]byte, error) {
	var out []byte
	for p := &c; p != nil; p = p.Next {
		out = binary.BigEndian.AppendUint32(out, uint32(p.V))
	}
	return out, nil
}

func (c *chain) UnmarshalBinary(data []byte) error {
	if len(data) == 0 || len(data)%4 != 0 {
		return errors.Newf("chain: bad payload length %d", len(data))
	}
	*c = chain{V: int32(binary.BigEndian.Uint32(data))}
	if len(data) > 4 {
		c.Next = new(chain)
		return c.Next.UnmarshalBinary(data[4:])
	}
	return nil
}

// Offset is embedded by pointer; only exported embedded pointers can be
// allocated while decoding.
type Offset struct {
	X, Y float64
}

type beam struct {
	Name      string
	Energy    float64 `unit:"GeV" description:"beam energy"`
	Intensity *int64
	Pos       position
	Target    *position
	Tags      []string
	Samples   []int32
	Counts    []uint32
	Grid      [2][3]int32
	Mode      Color
	Modes     []Color
	Limits    map[string]float64
	Labels    map[int32]string
	Active    map[string]struct{}
	Started   time.Time
	History   List[int32]
	Pending   Queue[string]
	Seen      *Set[int64]
	Flag      bool
	Ratio     float32
	Code      uint16
	Raw       []byte
	Index     int

	cache   string
	Scratch string `binser:"-"`
}

func newBeam() *beam {
	return &beam{
		Name:      "LHC",
		Energy:    6.8,
		Intensity: Ptr[int64](12_000_000_000),
		Pos:       position{X: 1.5, Y: -2},
		Target:    &position{X: 3, Y: 4},
		Tags:      []string{"proton", "physics"},
		Samples:   []int32{1, 2, 3},
		Counts:    []uint32{7, 8},
		Grid:      [2][3]int32{{1, 2, 3}, {4, 5, 6}},
		Mode:      Blue,
		Modes:     []Color{Green, Red},
		Limits:    map[string]float64{"max": 7, "min": 0.45},
		Labels:    map[int32]string{2: "two", 1: "one"},
		Active:    map[string]struct{}{"b1": {}, "b2": {}},
		Started:   time.Date(2024, 5, 6, 7, 8, 9, 10, time.UTC),
		History:   List[int32]{Items: []int32{10, 20}},
		Pending:   Queue[string]{Items: []string{"inject", "ramp"}},
		Seen:      NewSet[int64](5, 3, 5),
		Flag:      true,
		Ratio:     0.25,
		Code:      0xBEEF,
		Raw:       []byte{0xCA, 0xFE},
		Index:     -42,
		cache:     "local",
		Scratch:   "tmp",
	}
}

var beamCmp = []cmp.Option{
	cmp.AllowUnexported(beam{}, Set[int64]{}),
	cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) }),
}

type SerializerTestSuite struct {
	suite.Suite
}

func (s *SerializerTestSuite) TestSampleLayout() {
	data, err := Marshal(sample{A: 7, B: "hi", C: []float64{1.5, 2.5}})
	s.Require().NoError(err)

	w := NewWire(WrapBuffer(data))
	root, err := w.ParseStream(true)
	s.Require().NoError(err)
	fields := root.Fields()[0].Fields()
	s.Require().Len(fields, 3)

	want := []struct {
		name string
		typ  WireType
	}{{"a", TypeInt}, {"b", TypeString}, {"c", TypeDoubleArray}}
	for i, f := range fields {
		s.Equal(want[i].name, f.FieldName())
		s.Equal(want[i].typ, f.DataType())
	}

	var got sample
	s.Require().NoError(Unmarshal(data, &got))
	s.Equal(sample{A: 7, B: "hi", C: []float64{1.5, 2.5}}, got)
}

func (s *SerializerTestSuite) TestRoundTrip() {
	in := newBeam()
	data, err := Marshal(in)
	s.Require().NoError(err)

	out := &beam{}
	s.Require().NoError(Unmarshal(data, out))

	want := *in
	want.cache, want.Scratch = "", ""
	if diff := cmp.Diff(&want, out, beamCmp...); diff != "" {
		s.Failf("round trip mismatch", "(-want +got):\n%s", diff)
	}
}

func (s *SerializerTestSuite) TestWireTypes() {
	data, err := Marshal(newBeam())
	s.Require().NoError(err)
	root, err := NewWire(WrapBuffer(data)).ParseStream(true)
	s.Require().NoError(err)

	got := map[string]WireType{}
	for _, f := range root.Fields()[0].Fields() {
		if f.DataType() != TypeEndMarker {
			got[f.FieldName()] = f.DataType()
		}
	}
	s.Equal(map[string]WireType{
		"Name": TypeString, "Energy": TypeDouble, "Intensity": TypeLong,
		"Pos": TypeStartMarker, "Target": TypeStartMarker,
		"Tags": TypeStringArray, "Samples": TypeIntArray, "Counts": TypeCollection,
		"Grid": TypeIntArray, "Mode": TypeEnum, "Modes": TypeCollection,
		"Limits": TypeMap, "Labels": TypeMap, "Active": TypeSet,
		"Started": TypeOther, "History": TypeList, "Pending": TypeQueue, "Seen": TypeSet,
		"Flag": TypeBool, "Ratio": TypeFloat, "Code": TypeChar, "Raw": TypeByteArray,
		"Index": TypeLong,
	}, got)
}

func (s *SerializerTestSuite) TestNilValuesAreSkipped() {
	in := &beam{Name: "empty"}
	data, err := Marshal(in)
	s.Require().NoError(err)

	root, err := NewWire(WrapBuffer(data)).ParseStream(true)
	s.Require().NoError(err)
	for _, f := range root.Fields()[0].Fields() {
		s.NotContains([]string{"Intensity", "Target", "Tags", "Limits", "Seen", "Raw"}, f.FieldName())
	}

	out := &beam{Intensity: Ptr[int64](9), Tags: []string{"kept"}}
	s.Require().NoError(Unmarshal(data, out))
	s.Equal("empty", out.Name)
	s.EqualValues(9, *out.Intensity)
	s.Equal([]string{"kept"}, out.Tags)
}

func (s *SerializerTestSuite) TestForwardTolerance() {
	type v2 struct {
		A int32
		B string
		C float64
		D struct{ E int16 }
	}
	type v1 struct {
		A int32
		B string
		Z string
	}
	data, err := Marshal(v2{A: 1, B: "b", C: 3, D: struct{ E int16 }{E: 5}})
	s.Require().NoError(err)

	out := v1{Z: "keep"}
	s.Require().NoError(Unmarshal(data, &out))
	s.Equal(v1{A: 1, B: "b", Z: "keep"}, out)
}

func (s *SerializerTestSuite) TestTypeMismatchIsSkipped() {
	type written struct{ A int32 }
	type read struct{ A string }
	data, err := Marshal(written{A: 3})
	s.Require().NoError(err)

	logger, logs := observedLogger(zap.WarnLevel)
	out := read{A: "keep"}
	s.Require().NoError(Unmarshal(data, &out, WithLogger(logger)))
	s.Equal("keep", out.A)
	s.Equal(1, logs.FilterMessage("wire type does not match field type, skipped").Len())
}

func (s *SerializerTestSuite) TestCollectionTypesInterchange() {
	type written struct{ V List[int32] }
	type read struct{ V []uint32 }
	data, err := Marshal(written{V: List[int32]{Items: []int32{4, 5}}})
	s.Require().NoError(err)

	var out read
	s.Require().NoError(Unmarshal(data, &out))
	s.Equal([]uint32{4, 5}, out.V)
}

func (s *SerializerTestSuite) TestReadOnlyField() {
	type cfg struct {
		Version int32 `binser:"version,readonly"`
		Name    string
	}
	data, err := Marshal(cfg{Version: 2, Name: "n"})
	s.Require().NoError(err)

	logger, logs := observedLogger(zap.WarnLevel)
	out := cfg{Version: 1}
	s.Require().NoError(Unmarshal(data, &out, WithLogger(logger)))
	s.Equal(cfg{Version: 1, Name: "n"}, out)
	s.Equal(1, logs.FilterMessage("read-only field, wire value skipped").Len())
}

func (s *SerializerTestSuite) TestEmbeddedStructs() {
	type base struct {
		ID   int32
		Name string
	}
	type derived struct {
		base
		*Offset
		Name string
	}
	in := derived{base: base{ID: 3, Name: "inner"}, Offset: &Offset{X: 1, Y: 2}, Name: "outer"}
	data, err := Marshal(in)
	s.Require().NoError(err)

	root, err := NewWire(WrapBuffer(data)).ParseStream(true)
	s.Require().NoError(err)
	s.Equal([]string{"ID", "X", "Y", "Name"}, names(root.Fields()[0].Fields()))

	var out derived
	s.Require().NoError(Unmarshal(data, &out))
	s.EqualValues(3, out.ID)
	s.Equal("outer", out.Name)
	s.Empty(out.base.Name)
	s.Require().NotNil(out.Offset)
	s.Equal(Offset{X: 1, Y: 2}, *out.Offset)
}

func (s *SerializerTestSuite) TestInterfaceFields() {
	type holder struct {
		Value any
		Other any
	}
	data, err := Marshal(holder{Value: 2.5, Other: "x"})
	s.Require().NoError(err)

	logger, logs := observedLogger(zap.WarnLevel)
	out := holder{Value: float64(0)}
	s.Require().NoError(Unmarshal(data, &out, WithLogger(logger)))
	s.Equal(2.5, out.Value)
	s.Nil(out.Other)
	s.Equal(1, logs.FilterMessage("nil interface field, wire value skipped").Len())
}

func (s *SerializerTestSuite) TestRootCodec() {
	s.Run("Time", func() {
		at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		data, err := Marshal(at)
		s.Require().NoError(err)
		got, err := UnmarshalAs[time.Time](data)
		s.Require().NoError(err)
		s.True(at.Equal(*got))
	})

	s.Run("Map", func() {
		data, err := Marshal(map[string]int32{"a": 1, "b": 2})
		s.Require().NoError(err)
		var got map[string]int32
		s.Require().NoError(Unmarshal(data, &got))
		s.Equal(map[string]int32{"a": 1, "b": 2}, got)
	})

	s.Run("Scalar", func() {
		data, err := Marshal(Ptr(int16(-7)))
		s.Require().NoError(err)
		got, err := UnmarshalAs[int16](data)
		s.Require().NoError(err)
		s.EqualValues(-7, *got)
	})
}

func (s *SerializerTestSuite) TestOptions() {
	in := sample{A: 7, B: "hällo", C: []float64{1}}
	for name, opts := range map[string][]Option{
		"BigEndian":     {WithByteOrder(binary.BigEndian)},
		"SimpleStrings": {WithSimpleStringEncoding(true)},
		"NoMetaData":    {WithFieldMetaData(false)},
	} {
		s.Run(name, func() {
			data, err := Marshal(in, opts...)
			s.Require().NoError(err)
			var out sample
			s.Require().NoError(Unmarshal(data, &out, opts...))
			s.Equal(in, out)
		})
	}

	data, err := Marshal(in, WithByteOrder(binary.BigEndian))
	s.Require().NoError(err)
	s.ErrorIs(Unmarshal(data, &sample{}), ErrMagicMismatch)
}

func (s *SerializerTestSuite) TestReuseSerializer() {
	ser := NewSerializer(nil)
	s.Require().NoError(ser.Serialize(&sample{A: 1}))
	first := append([]byte(nil), ser.Buffer().Bytes()...)
	s.Require().NoError(ser.Serialize(&sample{A: 1}))
	s.Equal(first, ser.Buffer().Bytes(), "Serialize replaces the buffer content")

	var out sample
	s.Require().NoError(ser.Deserialize(&out))
	s.EqualValues(1, out.A)
	s.Equal(ser.Buffer().Limit(), ser.Buffer().Position())
}

func (s *SerializerTestSuite) TestErrors() {
	_, err := Marshal(nil)
	s.ErrorIs(err, ErrNilObject)

	s.ErrorIs(Unmarshal([]byte{1}, nil), ErrNilObject)
	s.ErrorIs(Unmarshal([]byte{1}, sample{}), ErrNilObject)
	s.ErrorIs(Unmarshal(nil, &sample{}), ErrOutOfBounds)

	_, err = Marshal(struct{ F []position }{F: []position{{}}})
	s.ErrorIs(err, ErrUnsupportedType)

	data, err := Marshal(sample{A: 1})
	s.Require().NoError(err)
	s.Error(Unmarshal(data[:len(data)-3], &sample{}))
}

func TestSerializerTestSuite(t *testing.T) {
	suite.Run(t, new(SerializerTestSuite))
}

func TestCustomCodecOverridesDefault(t *testing.T) {
	type celsius float64
	type reading struct{ T celsius }

	r := NewRegistry()
	require.NoError(t, r.Register(&FieldSerialiser{
		Type:     reflect.TypeFor[celsius](),
		DataType: TypeString,
		Writer: func(w *Wire, v reflect.Value, _ *ClassField) error {
			w.Buffer().PutString("C")
			return w.Err()
		},
		Return: func(w *Wire, _ reflect.Type, _ *ClassField) (reflect.Value, error) {
			w.Buffer().GetString()
			return reflect.ValueOf(celsius(-273.15)), w.Err()
		},
	}))

	data, err := Marshal(reading{T: 20}, WithRegistry(r))
	require.NoError(t, err)
	root, err := NewWire(WrapBuffer(data)).ParseStream(true)
	require.NoError(t, err)
	assert.Equal(t, TypeString, root.Fields()[0].Fields()[0].DataType())

	var out reading
	require.NoError(t, Unmarshal(data, &out, WithRegistry(r)))
	assert.Equal(t, celsius(-273.15), out.T)

	out = reading{}
	require.NoError(t, Unmarshal(data, &out), "the default registry expects a DOUBLE field")
	assert.Zero(t, out.T)
}

func (s *SerializerTestSuite) TestSelfReferentialCodecType() {
	type holder struct {
		N chain
		A int32
	}
	in := holder{N: chain{V: 1, Next: &chain{V: 2, Next: &chain{V: 3}}}, A: 4}
	data, err := Marshal(in)
	s.Require().NoError(err)

	root, err := NewWire(WrapBuffer(data)).ParseStream(true)
	s.Require().NoError(err)
	fields := root.Fields()[0].Fields()
	s.Equal("N", fields[0].FieldName())
	s.Equal(TypeOther, fields[0].DataType())
	s.Contains(names(fields), "A")

	var out holder
	s.Require().NoError(Unmarshal(data, &out))
	s.Equal(in, out)
}

func (s *SerializerTestSuite) TestUnsupportedValuesFail() {
	type grid struct {
		P [2]position
		A int32
	}
	_, err := Marshal(grid{P: [2]position{{1, 2}, {3, 4}}, A: 1})
	s.ErrorIs(err, ErrUnsupportedType)

	type callbacks struct {
		F    func()
		Done chan struct{}
		A    int32
	}
	data, err := Marshal(callbacks{F: func() {}, Done: make(chan struct{}), A: 5})
	s.Require().NoError(err)
	var out callbacks
	s.Require().NoError(Unmarshal(data, &out))
	s.EqualValues(5, out.A)
}

func (s *SerializerTestSuite) TestEmptyStructFieldsAreSkipped() {
	type hidden struct{ n int32 }
	type outer struct {
		H hidden
		E struct{}
		A int32
	}
	data, err := Marshal(outer{H: hidden{n: 1}, A: 2})
	s.Require().NoError(err)
	root, err := NewWire(WrapBuffer(data)).ParseStream(true)
	s.Require().NoError(err)
	s.Equal([]string{"A"}, names(root.Fields()[0].Fields()))

	var out outer
	s.Require().NoError(Unmarshal(data, &out))
	s.EqualValues(2, out.A)
}

func (s *SerializerTestSuite) TestRootTypeMismatch() {
	data, err := Marshal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	s.Require().NoError(err)
	var n int16
	s.ErrorIs(Unmarshal(data, &n), ErrTypeMismatch)
}

func TestRegisterAfterFirstUse(t *testing.T) {
	type kelvin float64
	type reading struct{ T kelvin }

	r := NewRegistry(WithRegistryLogger(zap.NewNop()))
	fieldType := func(data []byte) WireType {
		root, err := NewWire(WrapBuffer(data)).ParseStream(true)
		require.NoError(t, err)
		return root.Fields()[0].Fields()[0].DataType()
	}

	data, err := Marshal(reading{T: 1}, WithRegistry(r))
	require.NoError(t, err)
	assert.Equal(t, TypeDouble, fieldType(data))

	require.NoError(t, r.Register(&FieldSerialiser{
		Type:     reflect.TypeFor[kelvin](),
		DataType: TypeString,
		Writer: func(w *Wire, v reflect.Value, _ *ClassField) error {
			w.Buffer().PutString("K")
			return w.Err()
		},
		Return: func(w *Wire, _ reflect.Type, _ *ClassField) (reflect.Value, error) {
			w.Buffer().GetString()
			return reflect.ValueOf(kelvin(0)), w.Err()
		},
	}))

	data, err = Marshal(reading{T: 1}, WithRegistry(r))
	require.NoError(t, err)
	assert.Equal(t, TypeString, fieldType(data))
}
