package binser

import (
	"encoding"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// registerDefaults installs the built-in codecs. Capability codecs come
// first so that, say, an enum backed by int32 resolves to the enum codec and
// not to the int32 one.
func registerDefaults(r *Registry) {
	r.MustRegister(enumCodec(), containerCodec(), binaryMarshalerCodec())

	for _, t := range []reflect.Type{
		reflect.TypeFor[bool](),
		reflect.TypeFor[int8](), reflect.TypeFor[uint8](),
		reflect.TypeFor[int16](), reflect.TypeFor[uint16](),
		reflect.TypeFor[int32](), reflect.TypeFor[uint32](),
		reflect.TypeFor[int64](), reflect.TypeFor[uint64](),
		reflect.TypeFor[int](), reflect.TypeFor[uint](),
		reflect.TypeFor[float32](), reflect.TypeFor[float64](),
		reflect.TypeFor[string](),
	} {
		r.MustRegister(scalarCodec(t))
	}

	r.MustRegister(
		sliceCodec[bool](PutArray[bool], GetArrayDims[bool]),
		sliceCodec[uint8](PutArray[uint8], GetArrayDims[uint8]),
		sliceCodec[int8](PutArray[int8], GetArrayDims[int8]),
		sliceCodec[int16](PutArray[int16], GetArrayDims[int16]),
		sliceCodec[uint16](PutArray[uint16], GetArrayDims[uint16]),
		sliceCodec[int32](PutArray[int32], GetArrayDims[int32]),
		sliceCodec[int64](PutArray[int64], GetArrayDims[int64]),
		sliceCodec[float32](PutArray[float32], GetArrayDims[float32]),
		sliceCodec[float64](PutArray[float64], GetArrayDims[float64]),
		sliceCodec[string]((*Buffer).PutStringArray, (*Buffer).GetStringArrayDims),

		arrayCodec[bool](PutArray[bool], GetArrayDims[bool]),
		arrayCodec[uint8](PutArray[uint8], GetArrayDims[uint8]),
		arrayCodec[int8](PutArray[int8], GetArrayDims[int8]),
		arrayCodec[int16](PutArray[int16], GetArrayDims[int16]),
		arrayCodec[uint16](PutArray[uint16], GetArrayDims[uint16]),
		arrayCodec[int32](PutArray[int32], GetArrayDims[int32]),
		arrayCodec[int64](PutArray[int64], GetArrayDims[int64]),
		arrayCodec[float32](PutArray[float32], GetArrayDims[float32]),
		arrayCodec[float64](PutArray[float64], GetArrayDims[float64]),
		arrayCodec[string]((*Buffer).PutStringArray, (*Buffer).GetStringArrayDims),

		collectionCodec(),
		setCodec(),
		mapCodec(),
	)
}

func scalarCodec(t reflect.Type) *FieldSerialiser {
	return &FieldSerialiser{Type: t, Reader: readScalar, Writer: writeScalar}
}

func writeScalar(w *Wire, v reflect.Value, _ *ClassField) error {
	b := w.buf
	switch scalarWireType(v.Kind()) {
	case TypeBool:
		b.PutBool(v.Bool())
	case TypeByte:
		b.PutByte(int8(intOf(v)))
	case TypeShort:
		b.PutShort(int16(intOf(v)))
	case TypeChar:
		b.PutChar(uint16(intOf(v)))
	case TypeInt:
		b.PutInt(int32(intOf(v)))
	case TypeLong:
		b.PutLong(intOf(v))
	case TypeFloat:
		b.PutFloat(float32(v.Float()))
	case TypeDouble:
		b.PutDouble(v.Float())
	case TypeString:
		b.PutString(v.String())
	default:
		return errors.Wrapf(ErrUnsupportedType, "%s is not a scalar", v.Type())
	}
	return w.Err()
}

func readScalar(w *Wire, v reflect.Value, _ *ClassField) error {
	b := w.buf
	switch scalarWireType(v.Kind()) {
	case TypeBool:
		v.SetBool(b.GetBool())
	case TypeByte:
		setInt(v, int64(b.GetByte()))
	case TypeShort:
		setInt(v, int64(b.GetShort()))
	case TypeChar:
		setInt(v, int64(b.GetChar()))
	case TypeInt:
		setInt(v, int64(b.GetInt()))
	case TypeLong:
		setInt(v, b.GetLong())
	case TypeFloat:
		v.SetFloat(float64(b.GetFloat()))
	case TypeDouble:
		v.SetFloat(b.GetDouble())
	case TypeString:
		v.SetString(b.GetString())
	default:
		return errors.Wrapf(ErrUnsupportedType, "%s is not a scalar", v.Type())
	}
	return b.Err()
}

func setInt(v reflect.Value, x int64) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v.SetInt(x)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		v.SetUint(uint64(x))
	case reflect.Float32, reflect.Float64:
		v.SetFloat(float64(x))
	}
}

type (
	putArrayFunc[T any] func(b *Buffer, values []T, dims ...int)
	getArrayFunc[T any] func(b *Buffer) ([]T, []int)
)

// sliceCodec serves slices whose element has the kind of T as a one
// dimensional primitive array.
func sliceCodec[T any](put putArrayFunc[T], get getArrayFunc[T]) *FieldSerialiser {
	et := reflect.TypeFor[T]()
	return &FieldSerialiser{
		Type:     SliceShape,
		Generics: []reflect.Type{et},
		DataType: DataTypeOf(reflect.SliceOf(et)),
		Writer: func(w *Wire, v reflect.Value, _ *ClassField) error {
			put(w.buf, valuesOf[T](v))
			return w.Err()
		},
		Return: func(w *Wire, t reflect.Type, _ *ClassField) (reflect.Value, error) {
			values, _ := get(w.buf)
			if err := w.Err(); err != nil {
				return reflect.Value{}, err
			}
			return convertSlice(reflect.ValueOf(values), t)
		},
	}
}

// arrayCodec serves Go arrays of any rank whose innermost element has the
// kind of T as an N-dimensional primitive array.
func arrayCodec[T any](put putArrayFunc[T], get getArrayFunc[T]) *FieldSerialiser {
	et := reflect.TypeFor[T]()
	return &FieldSerialiser{
		Type:     ArrayShape,
		Generics: []reflect.Type{et},
		Writer: func(w *Wire, v reflect.Value, _ *ClassField) error {
			flat := make([]T, 0, arrayLen(v.Type()))
			walkArray(v, func(x reflect.Value) {
				flat = append(flat, x.Convert(et).Interface().(T))
			})
			put(w.buf, flat, arrayDims(v.Type())...)
			return w.Err()
		},
		Reader: func(w *Wire, v reflect.Value, _ *ClassField) error {
			values, dims := get(w.buf)
			if err := w.Err(); err != nil {
				return err
			}
			if len(values) != arrayLen(v.Type()) {
				return errors.Wrapf(ErrTypeMismatch, "array %v does not fit %s", dims, v.Type())
			}
			i := 0
			walkArray(v, func(x reflect.Value) {
				x.Set(reflect.ValueOf(values[i]).Convert(x.Type()))
				i++
			})
			return nil
		},
	}
}

// valuesOf returns the elements of the slice v as []T.
func valuesOf[T any](v reflect.Value) []T {
	st := reflect.TypeFor[[]T]()
	if v.Type().ConvertibleTo(st) && v.Type().Elem().Kind() == st.Elem().Kind() && v.CanInterface() {
		if out, ok := v.Convert(st).Interface().([]T); ok {
			return out
		}
	}
	et := st.Elem()
	return lo.Times(v.Len(), func(i int) T { return v.Index(i).Convert(et).Interface().(T) })
}

// convertSlice turns a decoded native slice into a value of slice type t.
func convertSlice(native reflect.Value, t reflect.Type) (reflect.Value, error) {
	if native.Type().ConvertibleTo(t) && t.Kind() == reflect.Slice {
		return native.Convert(t), nil
	}
	out, err := convertElems(t.Elem(), native)
	if err != nil {
		return reflect.Value{}, err
	}
	return out.Convert(t), nil
}

func arrayDims(t reflect.Type) []int {
	var dims []int
	for ; t.Kind() == reflect.Array; t = t.Elem() {
		dims = append(dims, t.Len())
	}
	return dims
}

func arrayLen(t reflect.Type) int {
	return lo.Reduce(arrayDims(t), func(n, d, _ int) int { return n * d }, 1)
}

// walkArray calls fn for every innermost element of v in row-major order.
func walkArray(v reflect.Value, fn func(reflect.Value)) {
	if v.Kind() != reflect.Array {
		fn(v)
		return
	}
	for i := range v.Len() {
		walkArray(v.Index(i), fn)
	}
}

func collectionCodec() *FieldSerialiser {
	return &FieldSerialiser{
		Type:     SliceShape,
		DataType: TypeCollection,
		Writer: func(w *Wire, v reflect.Value, _ *ClassField) error {
			return w.PutCollection(v)
		},
		Return: func(w *Wire, t reflect.Type, _ *ClassField) (reflect.Value, error) {
			elems, err := w.GetCollection(t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			return elems.Convert(t), nil
		},
	}
}

// setCodec serves map[K]struct{} as a SET collection of its keys.
func setCodec() *FieldSerialiser {
	return &FieldSerialiser{
		Type:     MapShape,
		Generics: []reflect.Type{anyType, emptyStructType},
		DataType: TypeSet,
		Writer: func(w *Wire, v reflect.Value, _ *ClassField) error {
			keys := sortedKeys(v)
			elems := reflect.MakeSlice(reflect.SliceOf(v.Type().Key()), len(keys), len(keys))
			for i, k := range keys {
				elems.Index(i).Set(k)
			}
			return w.PutCollection(elems)
		},
		Return: func(w *Wire, t reflect.Type, _ *ClassField) (reflect.Value, error) {
			elems, err := w.GetCollection(t.Key())
			if err != nil {
				return reflect.Value{}, err
			}
			m := reflect.MakeMapWithSize(t, elems.Len())
			for i := range elems.Len() {
				m.SetMapIndex(elems.Index(i), reflect.Zero(t.Elem()))
			}
			return m, nil
		},
	}
}

func mapCodec() *FieldSerialiser {
	return &FieldSerialiser{
		Type:     MapShape,
		DataType: TypeMap,
		Writer: func(w *Wire, v reflect.Value, _ *ClassField) error {
			return w.PutMap(v)
		},
		Return: func(w *Wire, t reflect.Type, _ *ClassField) (reflect.Value, error) {
			return w.GetMap(t)
		},
	}
}

func enumCodec() *FieldSerialiser {
	return &FieldSerialiser{
		Type:     enumType,
		DataType: TypeEnum,
		Writer: func(w *Wire, v reflect.Value, _ *ClassField) error {
			return w.PutEnum(v)
		},
		Reader: func(w *Wire, v reflect.Value, _ *ClassField) error {
			return w.GetEnum(v)
		},
	}
}

// containerCodec serves Container implementations; the header type is the
// one the container reports.
func containerCodec() *FieldSerialiser {
	return &FieldSerialiser{
		Type: containerType,
		Writer: func(w *Wire, v reflect.Value, _ *ClassField) error {
			c, ok := asInterface[Container](v)
			if !ok {
				return errors.Wrapf(ErrUnsupportedType, "%s is not a container", v.Type())
			}
			return w.PutCollection(reflect.ValueOf(c.Elements()))
		},
		Reader: func(w *Wire, v reflect.Value, _ *ClassField) error {
			c, ok := asInterface[Container](v)
			if !ok {
				return errors.Wrapf(ErrUnsupportedType, "%s is not a container", v.Type())
			}
			elemsType := reflect.TypeOf(c.Elements())
			if elemsType == nil || elemsType.Kind() != reflect.Slice {
				return errors.Wrapf(ErrUnsupportedType, "%s exposes no element slice", v.Type())
			}
			elems, err := w.GetCollection(elemsType.Elem())
			if err != nil {
				return err
			}
			return c.SetElements(elems.Convert(elemsType).Interface())
		},
	}
}

// binaryMarshalerCodec writes encoding.BinaryMarshaler values as an OTHER
// payload holding one byte array.
func binaryMarshalerCodec() *FieldSerialiser {
	return &FieldSerialiser{
		Type:     marshalerType,
		DataType: TypeOther,
		Writer: func(w *Wire, v reflect.Value, _ *ClassField) error {
			m, ok := asInterface[encoding.BinaryMarshaler](v)
			if !ok {
				return errors.Wrapf(ErrUnsupportedType, "%s is not a binary marshaler", v.Type())
			}
			data, err := m.MarshalBinary()
			if err != nil {
				return errors.Wrapf(err, "marshal %s", v.Type())
			}
			w.buf.PutByteArray(data)
			return w.Err()
		},
		Reader: func(w *Wire, v reflect.Value, _ *ClassField) error {
			u, ok := asInterface[encoding.BinaryUnmarshaler](v)
			if !ok {
				return errors.Wrapf(ErrUnsupportedType, "%s is not a binary unmarshaler", v.Type())
			}
			data := w.buf.GetByteArray()
			if err := w.Err(); err != nil {
				return err
			}
			return errors.Wrapf(u.UnmarshalBinary(data), "unmarshal %s", v.Type())
		},
	}
}
