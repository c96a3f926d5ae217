package binser

import (
	"cmp"
	"reflect"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// initial per-entry size estimate for container payloads
const containerEntrySize = 17

// PutCollection writes elems, a slice or array of scalars or strings, as a
// collection payload:
//
//	<1><n><n> <element type> <element array>
//
// The same layout serves COLLECTION, LIST, QUEUE and SET fields.
func (w *Wire) PutCollection(elems reflect.Value) error {
	wt, err := elemWireType(elems)
	if err != nil {
		return err
	}
	n := elems.Len()
	w.buf.PutArraySizeDescriptor(n)
	w.buf.EnsureAdditionalCapacity(n*containerEntrySize + 9)
	w.buf.PutByte(int8(wt))
	if err := w.putGenericArray(wt, elems); err != nil {
		return err
	}
	w.UpdateDataEndMarker(w.last)
	return w.Err()
}

// GetCollection reads a collection payload into a new []elemType.
func (w *Wire) GetCollection(elemType reflect.Type) (reflect.Value, error) {
	w.buf.GetArraySizeDescriptor()
	n := int(w.buf.GetInt())
	wt := WireType(uint8(w.buf.GetByte()))
	if err := w.buf.Err(); err != nil {
		return reflect.Value{}, err
	}
	native, err := w.getGenericArray(wt)
	if err != nil {
		return reflect.Value{}, err
	}
	if got := lenOf(native); got != n {
		return reflect.Value{}, errors.Wrapf(ErrTypeMismatch, "collection announces %d elements, array holds %d", n, got)
	}
	return convertElems(elemType, native)
}

// PutMap writes a map of scalars or strings as two parallel arrays:
//
//	<1><n><n> <key type> <value type> <key array> <value array>
//
// Keys are written in ascending order.
func (w *Wire) PutMap(m reflect.Value) error {
	keys := sortedKeys(m)
	n := len(keys)
	keySlice := reflect.MakeSlice(reflect.SliceOf(m.Type().Key()), n, n)
	valueSlice := reflect.MakeSlice(reflect.SliceOf(m.Type().Elem()), n, n)
	for i, k := range keys {
		keySlice.Index(i).Set(k)
		valueSlice.Index(i).Set(m.MapIndex(k))
	}
	kt, err := elemWireType(keySlice)
	if err != nil {
		return errors.Wrap(err, "map keys")
	}
	vt, err := elemWireType(valueSlice)
	if err != nil {
		return errors.Wrap(err, "map values")
	}

	w.buf.PutArraySizeDescriptor(n)
	w.buf.EnsureAdditionalCapacity(n*containerEntrySize + 9)
	w.buf.PutByte(int8(kt))
	w.buf.PutByte(int8(vt))
	if err := w.putGenericArray(kt, keySlice); err != nil {
		return err
	}
	if err := w.putGenericArray(vt, valueSlice); err != nil {
		return err
	}
	w.UpdateDataEndMarker(w.last)
	return w.Err()
}

// GetMap reads a map payload into a new map of type t.
func (w *Wire) GetMap(t reflect.Type) (reflect.Value, error) {
	w.buf.GetArraySizeDescriptor()
	w.buf.GetInt()
	kt := WireType(uint8(w.buf.GetByte()))
	vt := WireType(uint8(w.buf.GetByte()))
	if err := w.buf.Err(); err != nil {
		return reflect.Value{}, err
	}
	nativeKeys, err := w.getGenericArray(kt)
	if err != nil {
		return reflect.Value{}, err
	}
	nativeValues, err := w.getGenericArray(vt)
	if err != nil {
		return reflect.Value{}, err
	}
	if lenOf(nativeKeys) != lenOf(nativeValues) {
		return reflect.Value{}, errors.Wrapf(ErrTypeMismatch, "map has %d keys and %d values", lenOf(nativeKeys), lenOf(nativeValues))
	}
	keys, err := convertElems(t.Key(), nativeKeys)
	if err != nil {
		return reflect.Value{}, err
	}
	values, err := convertElems(t.Elem(), nativeValues)
	if err != nil {
		return reflect.Value{}, err
	}
	m := reflect.MakeMapWithSize(t, keys.Len())
	for i := range keys.Len() {
		m.SetMapIndex(keys.Index(i), values.Index(i))
	}
	return m, nil
}

// PutEnum writes v, a value implementing Enum, as
//
//	<simple name> <full name> <"[A, B, ...]"> <constant name> <ordinal>
func (w *Wire) PutEnum(v reflect.Value) error {
	e, ok := asInterface[Enum](v)
	if !ok {
		return errors.Wrapf(ErrUnsupportedType, "%s is not an enum", v.Type())
	}
	t := v.Type()
	w.buf.EnsureAdditionalCapacity(containerEntrySize + 9)
	w.buf.PutStringISO8859(t.Name())
	w.buf.PutStringISO8859(enumFullName(t))
	w.buf.PutStringISO8859("[" + strings.Join(e.EnumNames(), ", ") + "]")
	w.buf.PutStringISO8859(e.String())
	w.buf.PutInt(int32(enumOrdinal(v)))
	w.UpdateDataEndMarker(w.last)
	return w.Err()
}

// GetEnum reads an enum payload into dst, matching the constant by name and
// falling back to the ordinal.
func (w *Wire) GetEnum(dst reflect.Value) error {
	w.buf.GetStringISO8859() // simple name
	fullName := w.buf.GetStringISO8859()
	w.buf.GetStringISO8859() // type list
	state := w.buf.GetStringISO8859()
	ordinal := int(w.buf.GetInt())
	if err := w.buf.Err(); err != nil {
		return err
	}
	e, ok := asInterface[Enum](dst)
	if !ok {
		return errors.Wrapf(ErrUnsupportedType, "%s is not an enum", dst.Type())
	}
	names := e.EnumNames()
	idx := lo.IndexOf(names, state)
	if idx < 0 {
		if ordinal < 0 || ordinal >= len(names) {
			return errors.Wrapf(ErrTypeMismatch, "enum %s has no constant %q", fullName, state)
		}
		w.logger.Warn("unknown enum constant, using ordinal",
			zap.String("enum", fullName), zap.String("constant", state), zap.Int("ordinal", ordinal))
		idx = ordinal
	}
	setOrdinal(dst, idx)
	return nil
}

// GetEnumTypeList reads an enum payload and returns only its "[A, B, ...]" constant list.
func (w *Wire) GetEnumTypeList() (string, error) {
	w.buf.GetStringISO8859()
	w.buf.GetStringISO8859()
	list := w.buf.GetStringISO8859()
	w.buf.GetStringISO8859()
	w.buf.GetInt()
	return list, w.buf.Err()
}

func enumFullName(t reflect.Type) string {
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

func enumOrdinal(v reflect.Value) int64 {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int64(v.Uint())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	}
	return -1
}

func setOrdinal(v reflect.Value, ordinal int) {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		v.SetUint(uint64(ordinal))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v.SetInt(int64(ordinal))
	}
}

// asInterface returns v as T, going through a pointer when only *V implements T.
func asInterface[T any](v reflect.Value) (T, bool) {
	var zero T
	iface := reflect.TypeFor[T]()
	if !v.IsValid() || !v.CanInterface() {
		return zero, false
	}
	if v.Type().Implements(iface) {
		return v.Interface().(T), true
	}
	if v.CanAddr() && v.Addr().Type().Implements(iface) {
		return v.Addr().Interface().(T), true
	}
	if p := reflect.PointerTo(v.Type()); p.Implements(iface) {
		pv := reflect.New(v.Type())
		pv.Elem().Set(v)
		return pv.Interface().(T), true
	}
	return zero, false
}

// elemWireType picks the primitive wire type for the elements of a slice.
// Interface elements are typed by their dynamic values, which must agree.
func elemWireType(elems reflect.Value) (WireType, error) {
	et := elems.Type().Elem()
	if et.Kind() != reflect.Interface {
		wt := scalarDataType(et)
		if wt.IsScalar() || wt == TypeString {
			return wt, nil
		}
		if elems.Len() == 0 {
			return TypeOther, nil
		}
		return TypeOther, errors.Wrapf(ErrUnsupportedType, "container elements of type %s", et)
	}
	if elems.Len() == 0 {
		return TypeOther, nil
	}
	types := lo.Times(elems.Len(), func(i int) WireType {
		v := elems.Index(i).Elem()
		if !v.IsValid() {
			return TypeOther
		}
		return scalarDataType(v.Type())
	})
	wt := types[0]
	if !(wt.IsScalar() || wt == TypeString) || lo.ContainsBy(types, func(t WireType) bool { return t != wt }) {
		return TypeOther, errors.Wrapf(ErrUnsupportedType, "container elements of mixed or compound types %v", lo.Uniq(types))
	}
	return wt, nil
}

// scalarDataType is DataTypeOf with enums reduced to their integer encoding.
func scalarDataType(t reflect.Type) WireType {
	wt := DataTypeOf(t)
	if wt == TypeEnum {
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		return scalarWireType(t.Kind())
	}
	return wt
}

// putGenericArray writes the values of a slice as a primitive array of wt.
func (w *Wire) putGenericArray(wt WireType, vals reflect.Value) error {
	n := vals.Len()
	at := func(i int) reflect.Value {
		v := vals.Index(i)
		for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
			v = v.Elem()
		}
		return v
	}
	switch wt {
	case TypeBool:
		PutArray(w.buf, lo.Times(n, func(i int) bool { return at(i).Bool() }))
	case TypeByte:
		PutArray(w.buf, lo.Times(n, func(i int) int8 { return int8(intOf(at(i))) }))
	case TypeShort:
		PutArray(w.buf, lo.Times(n, func(i int) int16 { return int16(intOf(at(i))) }))
	case TypeChar:
		PutArray(w.buf, lo.Times(n, func(i int) uint16 { return uint16(intOf(at(i))) }))
	case TypeInt:
		PutArray(w.buf, lo.Times(n, func(i int) int32 { return int32(intOf(at(i))) }))
	case TypeLong:
		PutArray(w.buf, lo.Times(n, func(i int) int64 { return intOf(at(i)) }))
	case TypeFloat:
		PutArray(w.buf, lo.Times(n, func(i int) float32 { return float32(at(i).Float()) }))
	case TypeDouble:
		PutArray(w.buf, lo.Times(n, func(i int) float64 { return at(i).Float() }))
	case TypeString:
		w.buf.PutStringArray(lo.Times(n, func(i int) string { return at(i).String() }))
	case TypeOther:
		if n != 0 {
			return errors.Wrapf(ErrUnsupportedType, "array of %s", vals.Type().Elem())
		}
	default:
		return errors.Wrapf(ErrUnsupportedType, "array of %s", wt)
	}
	return w.Err()
}

// getGenericArray reads a primitive array of wt into its native Go slice.
// OTHER carries no array and yields an invalid Value.
func (w *Wire) getGenericArray(wt WireType) (reflect.Value, error) {
	var v any
	switch wt {
	case TypeBool:
		v = GetArray[bool](w.buf)
	case TypeByte:
		v = GetArray[int8](w.buf)
	case TypeShort:
		v = GetArray[int16](w.buf)
	case TypeChar:
		v = GetArray[uint16](w.buf)
	case TypeInt:
		v = GetArray[int32](w.buf)
	case TypeLong:
		v = GetArray[int64](w.buf)
	case TypeFloat:
		v = GetArray[float32](w.buf)
	case TypeDouble:
		v = GetArray[float64](w.buf)
	case TypeString:
		v = w.buf.GetStringArray()
	case TypeOther:
		return reflect.Value{}, nil
	default:
		return reflect.Value{}, w.fail(errors.Wrapf(ErrUnknownWireType, "array element type %s", wt))
	}
	if err := w.buf.Err(); err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(v), nil
}

func lenOf(v reflect.Value) int {
	if !v.IsValid() {
		return 0
	}
	return v.Len()
}

// convertElems copies native wire values into a new []elemType.
func convertElems(elemType reflect.Type, native reflect.Value) (reflect.Value, error) {
	n := lenOf(native)
	out := reflect.MakeSlice(reflect.SliceOf(elemType), n, n)
	for i := range n {
		v, err := convertScalar(native.Index(i), elemType)
		if err != nil {
			return reflect.Value{}, err
		}
		out.Index(i).Set(v)
	}
	return out, nil
}

// convertScalar converts a decoded scalar or string to t. Numbers convert
// between widths and signedness; strings and bools only to their own kind.
func convertScalar(v reflect.Value, t reflect.Type) (reflect.Value, error) {
	switch {
	case v.Type() == t:
		return v, nil
	case t.Kind() == reflect.Interface && v.Type().Implements(t):
		return v, nil
	case compatibleKinds(v.Kind(), t.Kind()) && v.Type().ConvertibleTo(t):
		return v.Convert(t), nil
	}
	return reflect.Value{}, errors.Wrapf(ErrTypeMismatch, "cannot store %s in %s", v.Type(), t)
}

func compatibleKinds(a, b reflect.Kind) bool {
	if isNumericKind(a) && isNumericKind(b) {
		return true
	}
	return a == b && (a == reflect.Bool || a == reflect.String)
}

func isNumericKind(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}

func intOf(v reflect.Value) int64 {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int64(v.Uint())
	case reflect.Float32, reflect.Float64:
		return int64(v.Float())
	}
	return 0
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys(m reflect.Value) []reflect.Value {
	keys := m.MapKeys()
	slices.SortFunc(keys, compareValues)
	return keys
}

func compareValues(a, b reflect.Value) int {
	for a.Kind() == reflect.Interface {
		a = a.Elem()
	}
	for b.Kind() == reflect.Interface {
		b = b.Elem()
	}
	if !a.IsValid() || !b.IsValid() || a.Kind() != b.Kind() {
		return cmp.Compare(kindOf(a), kindOf(b))
	}
	switch a.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(a.Int(), b.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cmp.Compare(a.Uint(), b.Uint())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(a.Float(), b.Float())
	case reflect.String:
		return cmp.Compare(a.String(), b.String())
	case reflect.Bool:
		return cmp.Compare(lo.Ternary(a.Bool(), 1, 0), lo.Ternary(b.Bool(), 1, 0))
	}
	return 0
}

func kindOf(v reflect.Value) reflect.Kind {
	if !v.IsValid() {
		return reflect.Invalid
	}
	return v.Kind()
}
