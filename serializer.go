package binser

import (
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Serializer writes Go object graphs to a Buffer and reads them back.
//
// Serialize writes the protocol header, then either a single field when the
// root type has a codec of its own, or one field per struct field, nested
// structs wrapped in start/end markers. Deserialize parses the whole stream
// first and then walks the wire tree and the ClassField tree of the
// destination in lock step, matching fields by name hash.
//
// A Serializer is not safe for concurrent use. The Registry it draws on is.
type Serializer struct {
	wire     *Wire
	registry *Registry
	logger   *zap.Logger

	// per parent ClassField: wire name hash to matching child
	lookup map[childKey]*ClassField
}

type childKey struct {
	parent *ClassField
	hash   int32
}

// NewSerializer creates a serializer over buf. A nil buf allocates a new buffer.
func NewSerializer(buf *Buffer, opts ...Option) *Serializer {
	cfg := newConfig(opts)
	return &Serializer{
		wire:     newWire(buf, cfg),
		registry: cfg.registry,
		logger:   cfg.logger,
		lookup:   make(map[childKey]*ClassField),
	}
}

func (s *Serializer) Wire() *Wire           { return s.wire }
func (s *Serializer) Buffer() *Buffer       { return s.wire.Buffer() }
func (s *Serializer) Registry() *Registry   { return s.registry }
func (s *Serializer) SetBuffer(buf *Buffer) { s.wire.SetBuffer(buf) }

// Serialize replaces the buffer content with the stream encoding of obj.
func (s *Serializer) Serialize(obj any) error {
	if obj == nil {
		return ErrNilObject
	}
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Pointer {
		p := reflect.New(v.Type())
		p.Elem().Set(v)
		v = p
	}
	root, err := s.registry.Describe(v.Type())
	if err != nil {
		return err
	}
	target := v
	for target.Kind() == reflect.Pointer {
		if target.IsNil() {
			return ErrNilObject
		}
		target = target.Elem()
	}

	s.Buffer().Clear()
	s.wire.PutHeaderInfo(RootStartMarker)
	if codec := root.Codec(); codec != nil {
		err = s.writeField(root, target, codec)
	} else if target.Kind() == reflect.Struct {
		err = s.writeChildren(root, target)
	} else {
		err = errors.Wrapf(ErrUnsupportedType, "no codec for %s", target.Type())
	}
	if err != nil {
		return err
	}
	return s.wire.PutEndMarker(RootEndMarker)
}

func (s *Serializer) writeChildren(parent *ClassField, v reflect.Value) error {
	for _, f := range parent.children {
		if !f.IsSerializable() {
			continue
		}
		fv, ok := f.Value(v, false)
		if !ok {
			continue
		}
		if err := s.writeValue(f, fv); err != nil {
			return err
		}
	}
	return nil
}

func (s *Serializer) writeValue(f *ClassField, fv reflect.Value) error {
	for fv.Kind() == reflect.Pointer || fv.Kind() == reflect.Interface {
		if fv.IsNil() {
			return nil
		}
		fv = fv.Elem()
	}
	if (fv.Kind() == reflect.Slice || fv.Kind() == reflect.Map) && fv.IsNil() {
		return nil
	}
	if !fv.CanAddr() {
		c := reflect.New(fv.Type()).Elem()
		c.Set(fv)
		fv = c
	}

	codec, children, err := s.plan(fv.Type(), f)
	if err != nil {
		return err
	}
	if codec != nil {
		return s.writeField(f, fv, codec)
	}
	if children == nil {
		switch fv.Kind() {
		case reflect.Func, reflect.Chan, reflect.UnsafePointer:
			s.logger.Debug("no codec, field not written",
				zap.String("field", f.FieldNameRelative()), zap.Stringer("type", fv.Type()))
			return nil
		}
		return errors.Wrapf(ErrUnsupportedType, "no codec for %s in field %s", fv.Type(), f.FieldNameRelative())
	}
	if !lo.ContainsBy(children.children, (*ClassField).IsSerializable) {
		return nil
	}
	s.wire.PutStartMarkerField(f)
	if err := s.writeChildren(children, fv); err != nil {
		return err
	}
	return s.wire.PutEndMarker(f.FieldName())
}

// writeField writes one field through its codec. OTHER payloads are closed
// by an end marker.
func (s *Serializer) writeField(f *ClassField, v reflect.Value, codec *FieldSerialiser) error {
	wt := codec.WireTypeFor(v.Type())
	if wt == TypeOther {
		_, err := s.wire.PutCustomData(f, func() error { return codec.Writer(s.wire, v, f) })
		return err
	}
	s.wire.PutFieldHeader(f, wt)
	if err := codec.Writer(s.wire, v, f); err != nil {
		return err
	}
	s.wire.UpdateDataEndMarker(s.wire.LastField())
	return s.wire.Err()
}

// plan resolves how values of type t stored in field f are encoded: through
// a codec, or field by field using children. Both nil means t is not
// serializable.
func (s *Serializer) plan(t reflect.Type, f *ClassField) (*FieldSerialiser, *ClassField, error) {
	if t == f.elemType {
		if codec := f.Codec(); codec != nil {
			return codec, nil, nil
		}
		if t.Kind() == reflect.Struct {
			return nil, f, nil
		}
		return nil, nil, nil
	}
	if codec := s.registry.Find(t, GenericsOf(t)...); codec != nil {
		return codec, nil, nil
	}
	if t.Kind() != reflect.Struct {
		return nil, nil, nil
	}
	children, err := s.registry.Describe(t)
	return nil, children, err
}

// Deserialize reads the stream in the buffer into obj, a non-nil pointer.
// Wire fields without a matching struct field are skipped, struct fields
// without a wire field keep their value.
func (s *Serializer) Deserialize(obj any) error {
	v := reflect.ValueOf(obj)
	if obj == nil || v.Kind() != reflect.Pointer || v.IsNil() {
		return ErrNilObject
	}
	root, err := s.registry.Describe(v.Type())
	if err != nil {
		return err
	}

	s.Buffer().Reset()
	wireRoot, err := s.wire.ParseStream(true)
	if err != nil {
		return err
	}
	end := wireRoot.dataSize
	defer func() { _ = s.Buffer().SetPosition(end) }()

	wireStart := wireRoot.children[0]

	target := v.Elem()
	for target.Kind() == reflect.Pointer {
		if target.IsNil() {
			target.Set(reflect.New(target.Type().Elem()))
		}
		target = target.Elem()
	}

	if codec := root.Codec(); codec != nil {
		for _, wf := range wireStart.children {
			if wf.typ == TypeEndMarker {
				continue
			}
			if !s.accepts(wf, root, target.Type(), codec) {
				return errors.Wrapf(ErrTypeMismatch, "root field %s is %s, cannot decode into %s",
					wf.FieldNameRelative(), wf.typ, target.Type())
			}
			return s.decode(target, wf, root, codec, nil, 0)
		}
		return nil
	}
	if target.Kind() != reflect.Struct {
		return errors.Wrapf(ErrUnsupportedType, "no codec for %s", target.Type())
	}
	// the root start marker never matches the type name: descend into its fields
	return s.readChildren(target, wireStart, root, 0)
}

func (s *Serializer) readChildren(v reflect.Value, wf *WireField, parent *ClassField, depth int) error {
	for _, wc := range wf.children {
		if wc.typ == TypeEndMarker {
			continue
		}
		f := s.lookupChild(parent, wc)
		if f == nil || !f.IsSerializable() {
			s.logger.Debug("wire field without struct field, skipped",
				zap.String("field", wc.FieldNameRelative()), zap.Stringer("type", wc.typ))
			continue
		}
		if err := s.readField(v, wc, f, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (s *Serializer) lookupChild(parent *ClassField, wf *WireField) *ClassField {
	key := childKey{parent: parent, hash: wf.hash}
	if f, ok := s.lookup[key]; ok && (f == nil || wf.name == "" || f.name == wf.name) {
		return f
	}
	f := parent.child(wf.hash, wf.name)
	s.lookup[key] = f
	return f
}

func (s *Serializer) readField(owner reflect.Value, wf *WireField, f *ClassField, depth int) error {
	if f.IsReadOnly() {
		s.logger.Warn("read-only field, wire value skipped", zap.String("field", f.FieldNameRelative()))
		return nil
	}
	fv, ok := f.Value(owner, true)
	if !ok || !fv.CanSet() {
		s.logger.Debug("field not settable, skipped", zap.String("field", f.FieldNameRelative()))
		return nil
	}
	return s.readValue(fv, wf, f, depth)
}

func (s *Serializer) readValue(fv reflect.Value, wf *WireField, f *ClassField, depth int) error {
	if fv.Kind() == reflect.Interface {
		if fv.IsNil() {
			s.logger.Warn("nil interface field, wire value skipped", zap.String("field", f.FieldNameRelative()))
			return nil
		}
		dyn := fv.Elem()
		if dyn.Kind() == reflect.Pointer && !dyn.IsNil() {
			return s.readValue(dyn.Elem(), wf, f, depth)
		}
		c := reflect.New(dyn.Type()).Elem()
		c.Set(dyn)
		if err := s.readValue(c, wf, f, depth); err != nil {
			return err
		}
		fv.Set(c)
		return nil
	}

	t := fv.Type()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	codec, children, err := s.plan(t, f)
	if err != nil {
		return err
	}
	if codec == nil && children == nil {
		s.logger.Debug("no codec, field not read", zap.String("field", f.FieldNameRelative()), zap.Stringer("type", t))
		return nil
	}
	if !s.accepts(wf, f, t, codec) {
		return nil
	}

	target := fv
	for target.Kind() == reflect.Pointer {
		if target.IsNil() {
			target.Set(reflect.New(target.Type().Elem()))
		}
		target = target.Elem()
	}
	return s.decode(target, wf, f, codec, children, depth)
}

// accepts reports whether the wire field can be decoded into type t; a
// mismatch is logged and the field skipped.
func (s *Serializer) accepts(wf *WireField, f *ClassField, t reflect.Type, codec *FieldSerialiser) bool {
	want := TypeStartMarker
	if codec != nil {
		want = codec.WireTypeFor(t)
	}
	if wf.typ == want || (wf.typ.IsCollection() && want.IsCollection()) {
		return true
	}
	s.logger.Warn("wire type does not match field type, skipped",
		zap.String("field", f.FieldNameRelative()),
		zap.Stringer("wire", wf.typ),
		zap.Stringer("want", want),
		zap.Stringer("goType", t))
	return false
}

func (s *Serializer) decode(v reflect.Value, wf *WireField, f *ClassField, codec *FieldSerialiser, children *ClassField, depth int) error {
	if codec == nil {
		return s.readChildren(v, wf, children, depth)
	}
	if err := s.Buffer().SetPosition(wf.DataStart()); err != nil {
		return err
	}
	if err := codec.Read(s.wire, v, f); err != nil {
		return errors.Wrapf(err, "field %s", f.FieldNameRelative())
	}
	return nil
}
