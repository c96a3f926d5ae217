package binser

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Modifier flags describe how a struct field was declared.
type Modifier uint16

const (
	ModExported Modifier = 1 << iota
	ModEmbedded
	ModTransient
	ModReadOnly
	ModPointer
	ModInterface
	ModEnum
	ModPrimitive
	ModAbstract
)

var modifierNames = []string{"exported", "embedded", "transient", "readonly", "pointer", "interface", "enum", "primitive", "abstract"}

func (m Modifier) String() string {
	names := lo.Filter(modifierNames, func(_ string, i int) bool { return m&(1<<i) != 0 })
	return strings.Join(names, "|")
}

// ClassField is the cached reflective description of a Go type: the root
// node stands for the type itself, its children for the serializable struct
// fields. Fields of embedded structs appear directly below the embedding
// struct one hierarchy level deeper, like inherited members.
//
// A ClassField is immutable once built except for its codec slot, which is
// resolved on first use, re-resolved after a registration, and safe to share
// between goroutines.
type ClassField struct {
	name      string
	hash      int32
	typ       reflect.Type
	elemType  reflect.Type
	generics  []reflect.Type
	modifiers Modifier
	depth     int
	index     []int
	meta      *FieldMeta
	dataType  WireType

	parent   *ClassField
	children []*ClassField

	registry *Registry
	gen      uint64 // registry generation the tree was built against
	codec    atomic.Pointer[codecSlot]
}

// codecSlot distinguishes "resolved to no codec" from "not resolved yet".
type codecSlot struct {
	gen uint64
	s   *FieldSerialiser
}

var _ FieldDescription = (*ClassField)(nil)

func (f *ClassField) FieldName() string    { return f.name }
func (f *ClassField) FieldNameHash() int32 { return f.hash }
func (f *ClassField) DataType() WireType   { return f.dataType }
func (f *ClassField) Meta() *FieldMeta     { return f.meta }

// Type is the declared field type.
func (f *ClassField) Type() reflect.Type { return f.typ }

// ElemType is the declared type with every pointer level removed.
func (f *ClassField) ElemType() reflect.Type { return f.elemType }

func (f *ClassField) Generics() []reflect.Type { return f.generics }
func (f *ClassField) Modifiers() Modifier      { return f.modifiers }
func (f *ClassField) Is(m Modifier) bool       { return f.modifiers&m == m }

// Depth is the hierarchy depth: 0 for the root, one more per nesting or
// embedding level.
func (f *ClassField) Depth() int { return f.depth }

// Index is the reflect field index path from the enclosing struct value.
func (f *ClassField) Index() []int { return f.index }

// IsSerializable reports whether the field takes part in serialization.
func (f *ClassField) IsSerializable() bool {
	return f.Is(ModExported) && !f.Is(ModTransient)
}

func (f *ClassField) IsReadOnly() bool { return f.Is(ModReadOnly) }

func (f *ClassField) Parent() FieldDescription {
	if f.parent == nil {
		return nil
	}
	return f.parent
}

func (f *ClassField) Children() []FieldDescription {
	return lo.Map(f.children, func(c *ClassField, _ int) FieldDescription { return c })
}

// Fields returns the child fields in declaration order, embedded fields first.
func (f *ClassField) Fields() []*ClassField { return f.children }

func (f *ClassField) FieldNameRelative() string {
	if f.parent == nil {
		return f.name
	}
	var parts []string
	for p := f; p.parent != nil; p = p.parent {
		parts = append([]string{p.name}, parts...)
	}
	return strings.Join(parts, ".")
}

func (f *ClassField) FindChild(hash int32, name string) FieldDescription {
	if c := f.child(hash, name); c != nil {
		return c
	}
	return nil
}

func (f *ClassField) child(hash int32, name string) *ClassField {
	c, _ := lo.Find(f.children, func(c *ClassField) bool {
		return c.hash == hash && (name == "" || c.name == name)
	})
	return c
}

// Codec returns the codec resolved for the field type, or nil when the field
// is a compound walked through its children.
func (f *ClassField) Codec() *FieldSerialiser {
	gen := f.registry.generation()
	if slot := f.codec.Load(); slot != nil && slot.gen == gen {
		return slot.s
	}
	s := f.registry.Find(f.elemType, f.generics...)
	f.codec.Store(&codecSlot{gen: gen, s: s})
	return s
}

// Value returns the field inside owner, the struct value of the enclosing
// type. Nil embedded pointers on the way are allocated when alloc is set,
// otherwise ok is false.
func (f *ClassField) Value(owner reflect.Value, alloc bool) (v reflect.Value, ok bool) {
	v = owner
	for i, x := range f.index {
		if i > 0 {
			for v.Kind() == reflect.Pointer {
				if v.IsNil() {
					if !alloc || !v.CanSet() {
						return reflect.Value{}, false
					}
					v.Set(reflect.New(v.Type().Elem()))
				}
				v = v.Elem()
			}
		}
		v = v.Field(x)
	}
	return v, true
}

func (f *ClassField) String() string {
	return fmt.Sprintf("[%s %s %s depth=%d %s]", f.FieldNameRelative(), f.typ, f.dataType, f.depth, f.modifiers)
}

// PrintFieldStructure logs the field tree below f.
func (f *ClassField) PrintFieldStructure(logger *zap.Logger) {
	printFieldTree(logger, f, 0)
}
