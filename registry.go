package binser

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ReaderFunc decodes the payload at the wire position into v, a settable
// value of the field's (pointer stripped) type.
type ReaderFunc func(w *Wire, v reflect.Value, field *ClassField) error

// WriterFunc encodes v, the field's (pointer stripped) value, as a payload.
type WriterFunc func(w *Wire, v reflect.Value, field *ClassField) error

// ReturnFunc decodes the payload at the wire position into a new value of type t.
type ReturnFunc func(w *Wire, t reflect.Type, field *ClassField) (reflect.Value, error)

// FieldSerialiser is a codec entry: the prototype type it serves, the generic
// arguments it is restricted to, and its reader and writer. A nil Reader is
// derived from Return.
type FieldSerialiser struct {
	Type     reflect.Type
	Generics []reflect.Type
	Reader   ReaderFunc
	Writer   WriterFunc
	Return   ReturnFunc
	// DataType is the wire type of the field header. The zero value derives it
	// from the field type with DataTypeOf.
	DataType WireType
}

// Read decodes into v using Reader or, failing that, Return.
func (s *FieldSerialiser) Read(w *Wire, v reflect.Value, field *ClassField) error {
	if s.Reader != nil {
		return s.Reader(w, v, field)
	}
	if s.Return == nil {
		return errors.Wrapf(ErrUnsupportedType, "codec %s cannot decode", s)
	}
	nv, err := s.Return(w, v.Type(), field)
	if err != nil {
		return err
	}
	return setConverted(v, nv)
}

// WireTypeFor returns the header type used for values of type t.
func (s *FieldSerialiser) WireTypeFor(t reflect.Type) WireType {
	if s.DataType != TypeStartMarker {
		return s.DataType
	}
	return DataTypeOf(t)
}

// Hash combines the prototype type name with the generic argument names.
func (s *FieldSerialiser) Hash() int32 {
	h := 31 + HashName(typeName(s.Type))
	for _, g := range s.Generics {
		h = 31*h + HashName(typeName(g))
	}
	return h
}

// Equal reports whether both entries serve the same type and generic arguments.
func (s *FieldSerialiser) Equal(o *FieldSerialiser) bool {
	return o != nil && s.Type == o.Type && slices.Equal(s.Generics, o.Generics)
}

func (s *FieldSerialiser) String() string {
	if len(s.Generics) == 0 {
		return typeName(s.Type)
	}
	return typeName(s.Type) + "<" + strings.Join(lo.Map(s.Generics, func(g reflect.Type, _ int) string { return typeName(g) }), ", ") + ">"
}

// wildcard is the element type of the kind shapes.
type wildcard struct{}

// Kind shapes are prototype keys that match every type of their kind,
// whatever the element, key or length.
var (
	SliceShape = reflect.TypeFor[[]wildcard]()
	ArrayShape = reflect.TypeFor[[0]wildcard]()
	MapShape   = reflect.TypeFor[map[wildcard]wildcard]()

	anyType = reflect.TypeFor[any]()
)

func typeName(t reflect.Type) string {
	switch t {
	case nil:
		return "<nil>"
	case SliceShape:
		return "[]*"
	case ArrayShape:
		return "[N]*"
	case MapShape:
		return "map[*]*"
	}
	return t.String()
}

type registrySnapshot struct {
	gen     uint64
	keys    []reflect.Type
	entries map[reflect.Type][]*FieldSerialiser
}

type findKey struct {
	t        reflect.Type
	g0, g1   reflect.Type
	generics int
}

// resolvedCodec is a Find result tagged with the snapshot it was resolved
// against. Entries from older snapshots are ignored.
type resolvedCodec struct {
	gen uint64
	s   *FieldSerialiser
}

type classKey struct {
	t        reflect.Type
	fullScan bool
}

// Registry maps Go types onto codecs and caches both the resolution results
// and the reflected field trees. It is safe for concurrent use: registration
// publishes a new snapshot, lookups never block.
type Registry struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[registrySnapshot]

	resolved *xsync.Map[findKey, resolvedCodec]
	classes  *xsync.Map[classKey, *ClassField]

	maxDepth int
	logger   *zap.Logger
	defaults bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// DefaultMaxRecursionDepth bounds how deep Describe follows nested struct types.
const DefaultMaxRecursionDepth = 10

// WithMaxRecursionDepth sets the nesting limit beyond which Describe fails
// with ErrRecursionDepth.
func WithMaxRecursionDepth(depth int) RegistryOption {
	return func(r *Registry) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

func WithRegistryLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithoutDefaultCodecs creates a registry that only knows explicitly registered codecs.
func WithoutDefaultCodecs() RegistryOption {
	return func(r *Registry) { r.defaults = false }
}

// NewRegistry creates a registry holding the default codecs.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		resolved: xsync.NewMap[findKey, resolvedCodec](),
		classes:  xsync.NewMap[classKey, *ClassField](),
		maxDepth: DefaultMaxRecursionDepth,
		logger:   zap.L(),
		defaults: true,
	}
	r.snapshot.Store(&registrySnapshot{entries: map[reflect.Type][]*FieldSerialiser{}})
	for _, opt := range opts {
		opt(r)
	}
	if r.defaults {
		registerDefaults(r)
	}
	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the process wide registry used when no other is configured.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

func (r *Registry) MaxRecursionDepth() int { return r.maxDepth }

// Register appends s to the entries of its prototype type. Entries are
// consulted in registration order.
func (r *Registry) Register(s *FieldSerialiser) error {
	if s == nil || s.Type == nil {
		return errors.Wrap(ErrUnsupportedType, "codec without prototype type")
	}
	if s.Writer == nil || (s.Reader == nil && s.Return == nil) {
		return errors.Wrapf(ErrUnsupportedType, "codec %s needs a writer and a reader or return function", s)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.snapshot.Load()
	if lo.ContainsBy(old.entries[s.Type], s.Equal) {
		return errors.Wrapf(ErrDuplicateCodec, "%s", s)
	}
	next := &registrySnapshot{
		gen:     old.gen + 1,
		keys:    old.keys,
		entries: make(map[reflect.Type][]*FieldSerialiser, len(old.entries)+1),
	}
	for k, v := range old.entries {
		next.entries[k] = v
	}
	if _, ok := old.entries[s.Type]; !ok {
		next.keys = append(append([]reflect.Type(nil), old.keys...), s.Type)
	}
	next.entries[s.Type] = append(append([]*FieldSerialiser(nil), old.entries[s.Type]...), s)
	r.snapshot.Store(next)
	r.resolved.Clear()
	r.classes.Clear()
	return nil
}

// MustRegister registers every codec and panics on the first failure.
func (r *Registry) MustRegister(codecs ...*FieldSerialiser) {
	for _, s := range codecs {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
}

// KnownTypes lists the prototype types in registration order.
func (r *Registry) KnownTypes() []reflect.Type {
	return append([]reflect.Type(nil), r.snapshot.Load().keys...)
}

// Entries returns the codecs registered for exactly t.
func (r *Registry) Entries(t reflect.Type) []*FieldSerialiser {
	return append([]*FieldSerialiser(nil), r.snapshot.Load().entries[t]...)
}

// generation identifies the current registration state. It changes with
// every successful Register.
func (r *Registry) generation() uint64 { return r.snapshot.Load().gen }

// Find resolves the codec for t with the given generic arguments. A nil
// result means t is a compound type to be walked field by field. Results,
// including nil, are cached until the next registration.
func (r *Registry) Find(t reflect.Type, generics ...reflect.Type) *FieldSerialiser {
	snap := r.snapshot.Load()
	key := findKey{t: t, generics: len(generics)}
	if len(generics) > 0 {
		key.g0 = generics[0]
	}
	if len(generics) > 1 {
		key.g1 = generics[1]
	}
	if len(generics) <= 2 {
		if c, ok := r.resolved.Load(key); ok && c.gen == snap.gen {
			return c.s
		}
	}
	s := r.resolve(snap, t, generics)
	if len(generics) <= 2 {
		r.resolved.Store(key, resolvedCodec{gen: snap.gen, s: s})
	}
	if r.logger.Core().Enabled(zap.DebugLevel) {
		r.logger.Debug("codec resolved", zap.Stringer("type", t), zap.Stringer("codec", lo.Ternary[fmt.Stringer](s != nil, s, nilCodec{})))
	}
	return s
}

type nilCodec struct{}

func (nilCodec) String() string { return "<none>" }

func (r *Registry) resolve(snap *registrySnapshot, t reflect.Type, generics []reflect.Type) *FieldSerialiser {
	if direct := snap.entries[t]; len(direct) > 0 {
		if len(direct) == 1 || len(generics) == 0 {
			return direct[0]
		}
		if s, ok := lo.Find(direct, func(s *FieldSerialiser) bool { return genericsCompatible(generics, s.Generics) }); ok {
			return s
		}
	}

	var candidates []*FieldSerialiser
	for _, key := range snap.keys {
		if assignableTo(t, key) {
			candidates = append(candidates, snap.entries[key]...)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 || len(generics) == 0 {
		return candidates[0]
	}
	if s, ok := lo.Find(candidates, func(s *FieldSerialiser) bool { return genericsCompatible(generics, s.Generics) }); ok {
		return s
	}
	if s, ok := lo.Find(candidates, func(s *FieldSerialiser) bool { return len(s.Generics) == 0 }); ok {
		return s
	}
	return nil
}

// genericsCompatible reports whether every requested argument is identical
// or assignable to the entry's argument at the same position.
func genericsCompatible(requested, declared []reflect.Type) bool {
	if len(requested) != len(declared) {
		return false
	}
	for i := range requested {
		if !assignableTo(requested[i], declared[i]) {
			return false
		}
	}
	return true
}

// assignableTo is the capability query used for resolution: t can be served
// by a codec registered for key.
func assignableTo(t, key reflect.Type) bool {
	switch key {
	case SliceShape:
		return t.Kind() == reflect.Slice
	case ArrayShape:
		return t.Kind() == reflect.Array
	case MapShape:
		return t.Kind() == reflect.Map
	}
	if t == key {
		return true
	}
	if key.Kind() == reflect.Interface {
		return implements(t, key)
	}
	if isBasicKind(key.Kind()) && key.PkgPath() == "" && key.Name() == key.Kind().String() {
		return t.Kind() == key.Kind() && !implements(t, enumType)
	}
	return t.AssignableTo(key)
}

func isBasicKind(k reflect.Kind) bool {
	return (k >= reflect.Bool && k <= reflect.Float64) || k == reflect.String
}

// GenericsOf returns the structural type arguments of t: the element of a
// slice, the innermost element of an array, the key and element of a map.
func GenericsOf(t reflect.Type) []reflect.Type {
	switch t.Kind() {
	case reflect.Slice:
		return []reflect.Type{t.Elem()}
	case reflect.Array:
		return []reflect.Type{innermostElem(t)}
	case reflect.Map:
		return []reflect.Type{t.Key(), t.Elem()}
	}
	return nil
}

// setConverted stores x in v, converting between named and unnamed types of
// the same underlying type.
func setConverted(v, x reflect.Value) error {
	switch {
	case x.Type() == v.Type():
		v.Set(x)
	case x.Type().AssignableTo(v.Type()):
		v.Set(x)
	case x.Type().ConvertibleTo(v.Type()) && x.Kind() == v.Kind():
		v.Set(x.Convert(v.Type()))
	default:
		return errors.Wrapf(ErrTypeMismatch, "cannot store %s in %s", x.Type(), v.Type())
	}
	return nil
}
