package binser

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// FieldMeta is the optional descriptive metadata a field header may carry.
type FieldMeta struct {
	Unit        string
	Description string
	Direction   string
	Groups      []string
}

// IsZero reports whether m carries no information.
func (m *FieldMeta) IsZero() bool {
	return m == nil || (m.Unit == "" && m.Description == "" && m.Direction == "" && len(m.Groups) == 0)
}

// FieldDescription is the view shared by wire fields (what a stream contains)
// and class fields (what a Go type declares). Both form trees matched against
// each other by name hash while decoding.
type FieldDescription interface {
	FieldName() string
	FieldNameHash() int32
	// FieldNameRelative is the dotted path from the tree root.
	FieldNameRelative() string
	DataType() WireType
	Meta() *FieldMeta
	Parent() FieldDescription
	Children() []FieldDescription
	FindChild(hash int32, name string) FieldDescription
}

// WireField is one field header read from or written to a stream.
type WireField struct {
	hash            int32
	name            string
	typ             WireType
	fieldStart      int
	dataStartOffset int
	dataSize        int
	meta            *FieldMeta
	parent          *WireField
	children        []*WireField
}

var _ FieldDescription = (*WireField)(nil)

func newWireField(parent *WireField, hash int32, name string, typ WireType, fieldStart, dataStartOffset, dataSize int) *WireField {
	f := &WireField{
		hash:            hash,
		name:            name,
		typ:             typ,
		fieldStart:      fieldStart,
		dataStartOffset: dataStartOffset,
		dataSize:        dataSize,
		parent:          parent,
	}
	if parent != nil {
		parent.children = append(parent.children, f)
	}
	return f
}

func (f *WireField) FieldName() string    { return f.name }
func (f *WireField) FieldNameHash() int32 { return f.hash }
func (f *WireField) DataType() WireType   { return f.typ }
func (f *WireField) Meta() *FieldMeta     { return f.meta }

// FieldStart is the absolute offset of the header's type byte.
func (f *WireField) FieldStart() int { return f.fieldStart }

// DataStartOffset is the distance from the header start to the payload.
func (f *WireField) DataStartOffset() int { return f.dataStartOffset }

// DataStart is the absolute offset of the payload.
func (f *WireField) DataStart() int { return f.fieldStart + f.dataStartOffset }

// DataSize is the payload length, -1 when the producer never patched it.
func (f *WireField) DataSize() int { return f.dataSize }

// NextFieldStart is where the following sibling header begins.
func (f *WireField) NextFieldStart() int { return f.DataStart() + f.dataSize }

func (f *WireField) Parent() FieldDescription {
	if f.parent == nil {
		return nil
	}
	return f.parent
}

func (f *WireField) Children() []FieldDescription {
	return lo.Map(f.children, func(c *WireField, _ int) FieldDescription { return c })
}

// Fields returns the child headers in stream order.
func (f *WireField) Fields() []*WireField { return f.children }

func (f *WireField) FieldNameRelative() string {
	if f.parent == nil || f.parent.parent == nil {
		return f.name
	}
	var parts []string
	for p := f; p != nil && p.parent != nil; p = p.parent {
		parts = append([]string{p.name}, parts...)
	}
	return strings.Join(parts, ".")
}

// FindChild returns the first child with the given hash. A non-empty name must
// also match when the child carries a name.
func (f *WireField) FindChild(hash int32, name string) FieldDescription {
	for _, c := range f.children {
		if c.hash != hash {
			continue
		}
		if name == "" || c.name == "" || c.name == name {
			return c
		}
	}
	return nil
}

func (f *WireField) String() string {
	return fmt.Sprintf("[%s:%q hash=%d start=%d dataStart=%d size=%d]",
		f.typ, f.name, f.hash, f.fieldStart, f.DataStart(), f.dataSize)
}

// PrintFieldStructure logs the header tree below f.
func (f *WireField) PrintFieldStructure(logger *zap.Logger) {
	printFieldTree(logger, f, 0)
}

func printFieldTree(logger *zap.Logger, f FieldDescription, depth int) {
	fields := []zap.Field{
		zap.String("type", f.DataType().String()),
		zap.Int32("hash", f.FieldNameHash()),
	}
	if m := f.Meta(); !m.IsZero() {
		fields = append(fields,
			zap.String("unit", m.Unit),
			zap.String("description", m.Description),
			zap.String("direction", m.Direction),
			zap.Strings("groups", m.Groups))
	}
	switch x := f.(type) {
	case *WireField:
		fields = append(fields, zap.Int("dataStart", x.DataStart()), zap.Int("dataSize", x.DataSize()))
	case *ClassField:
		fields = append(fields, zap.Stringer("goType", x.Type()), zap.Stringer("modifiers", x.Modifiers()), zap.Int("depth", x.Depth()))
	}
	logger.Info(strings.Repeat("  ", depth)+f.FieldName(), fields...)
	for _, c := range f.Children() {
		printFieldTree(logger, c, depth+1)
	}
}
