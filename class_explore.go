package binser

import (
	"reflect"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Struct tags read while exploring a type:
//
//	binser:"name,readonly"   rename the field and/or mark it read-only
//	binser:"-"               never serialize the field
//	unit:"m/s"               metadata written with the field header
//	description:"..."
//	direction:"in"
//	groups:"a,b"
const (
	TagName        = "binser"
	TagUnit        = "unit"
	TagDescription = "description"
	TagDirection   = "direction"
	TagGroups      = "groups"
)

// Describe returns the field tree of t from the default registry.
func Describe(t reflect.Type) (*ClassField, error) {
	return DefaultRegistry().Describe(t)
}

// Describe returns the cached field tree of t holding its serializable fields.
func (r *Registry) Describe(t reflect.Type) (*ClassField, error) {
	return r.describe(t, false)
}

// DescribeFull is Describe including unexported and transient fields.
func (r *Registry) DescribeFull(t reflect.Type) (*ClassField, error) {
	return r.describe(t, true)
}

func (r *Registry) describe(t reflect.Type, fullScan bool) (*ClassField, error) {
	if t == nil {
		return nil, ErrNilObject
	}
	key := classKey{t: t, fullScan: fullScan}
	gen := r.generation()
	if root, ok := r.classes.Load(key); ok && root.gen == gen {
		return root, nil
	}

	elem := t
	for elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	name := elem.Name()
	if name == "" {
		name = elem.String()
	}
	root := &ClassField{
		name:     name,
		hash:     HashName(name),
		typ:      t,
		elemType: elem,
		generics: GenericsOf(elem),
		dataType: DataTypeOf(elem),
		registry: r,
		gen:      gen,
	}
	root.modifiers = typeModifiers(t, elem)
	// types with a codec of their own are never walked
	if elem.Kind() == reflect.Struct && r.Find(elem, root.generics...) == nil {
		if err := r.explore(root, elem, 0, nil, fullScan); err != nil {
			return nil, err
		}
	}
	root, _ = r.classes.Compute(key, func(old *ClassField, loaded bool) (*ClassField, xsync.ComputeOp) {
		if loaded && old.gen >= root.gen {
			return old, xsync.CancelOp
		}
		return root, xsync.UpdateOp
	})
	r.logger.Debug("type described", zap.Stringer("type", t), zap.Int("fields", len(root.children)), zap.Bool("fullScan", fullScan))
	return root, nil
}

// explore appends the fields of the struct type t to parent. prefix is the
// index path of t inside the struct holding parent's children.
func (r *Registry) explore(parent *ClassField, t reflect.Type, level int, prefix []int, fullScan bool) error {
	if level > r.maxDepth {
		return errors.Wrapf(ErrRecursionDepth, "%s nested deeper than %d levels below %s",
			t, r.maxDepth, parent.FieldNameRelative())
	}
	for i := range t.NumField() {
		sf := t.Field(i)
		index := append(slices.Clone(prefix), i)
		name, opts, _ := strings.Cut(sf.Tag.Get(TagName), ",")
		transient := name == "-" && opts == ""

		elem := sf.Type
		for elem.Kind() == reflect.Pointer {
			elem = elem.Elem()
		}

		if sf.Anonymous && elem.Kind() == reflect.Struct && name == "" && DataTypeOf(elem) == TypeOther && r.Find(elem) == nil {
			if err := r.explore(parent, elem, level+1, index, fullScan); err != nil {
				return err
			}
			continue
		}
		if !fullScan && (transient || !sf.IsExported()) {
			continue
		}
		if name == "" || transient {
			name = sf.Name
		}

		f := &ClassField{
			name:      name,
			hash:      HashName(name),
			typ:       sf.Type,
			elemType:  elem,
			generics:  GenericsOf(elem),
			modifiers: typeModifiers(sf.Type, elem),
			depth:     level + 1,
			index:     index,
			meta:      tagMeta(sf.Tag),
			dataType:  DataTypeOf(elem),
			parent:    parent,
			registry:  r,
		}
		if sf.IsExported() {
			f.modifiers |= ModExported
		}
		if sf.Anonymous {
			f.modifiers |= ModEmbedded
		}
		if transient {
			f.modifiers |= ModTransient
		}
		if lo.Contains(strings.Split(opts, ","), "readonly") {
			f.modifiers |= ModReadOnly
		}
		parent.children = append(parent.children, f)

		if f.dataType == TypeOther && elem.Kind() == reflect.Struct && r.Find(elem, f.generics...) == nil {
			if err := r.explore(f, elem, level+1, nil, fullScan); err != nil {
				return err
			}
		}
	}
	if prefix == nil {
		parent.children = shadowPromoted(parent.children)
	}
	return nil
}

// shadowPromoted drops fields of embedded structs whose name is also declared
// at a shallower level, the way Go selectors resolve promoted fields.
func shadowPromoted(fields []*ClassField) []*ClassField {
	shallowest := map[string]int{}
	for _, f := range fields {
		if d, ok := shallowest[f.name]; !ok || f.depth < d {
			shallowest[f.name] = f.depth
		}
	}
	seen := map[string]bool{}
	return lo.Filter(fields, func(f *ClassField, _ int) bool {
		if f.depth != shallowest[f.name] || seen[f.name] {
			return false
		}
		seen[f.name] = true
		return true
	})
}

func typeModifiers(t, elem reflect.Type) Modifier {
	var m Modifier
	if t.Kind() == reflect.Pointer {
		m |= ModPointer
	}
	switch {
	case elem.Kind() == reflect.Interface:
		m |= ModInterface | ModAbstract
	case implements(elem, enumType):
		m |= ModEnum
	case scalarWireType(elem.Kind()) != TypeOther:
		m |= ModPrimitive
	case elem.Kind() == reflect.Func || elem.Kind() == reflect.Chan || elem.Kind() == reflect.UnsafePointer:
		m |= ModAbstract
	}
	return m
}

func tagMeta(tag reflect.StructTag) *FieldMeta {
	m := &FieldMeta{
		Unit:        tag.Get(TagUnit),
		Description: tag.Get(TagDescription),
		Direction:   tag.Get(TagDirection),
	}
	if groups := tag.Get(TagGroups); groups != "" {
		m.Groups = lo.Map(strings.Split(groups, ","), func(g string, _ int) string { return strings.TrimSpace(g) })
	}
	if m.IsZero() {
		return nil
	}
	return m
}
