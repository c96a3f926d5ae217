package binser

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Wire reads and writes the self-describing field layer on top of a Buffer:
// the protocol preamble, field headers, start/end markers and the container
// payloads.
//
// While writing, Wire keeps a stack of open scopes (start markers and custom
// OTHER payloads) plus the most recent header. The buffer's write callback
// patches the data size of that header after every primitive write, so a
// header is always consistent with the bytes that follow it.
//
// A Wire is not safe for concurrent use.
type Wire struct {
	buf    *Buffer
	cfg    *config
	logger *zap.Logger

	root   *WireField
	scopes []*WireField
	last   *WireField
	err    error
}

// NewWire creates a field codec over buf. A nil buf allocates a new buffer.
func NewWire(buf *Buffer, opts ...Option) *Wire {
	return newWire(buf, newConfig(opts))
}

func newWire(buf *Buffer, cfg *config) *Wire {
	w := &Wire{cfg: cfg, logger: cfg.logger}
	w.SetBuffer(buf)
	return w
}

// SetBuffer swaps the underlying buffer and forgets the current field tree.
func (w *Wire) SetBuffer(buf *Buffer) {
	if buf == nil {
		buf = NewBuffer(0)
	}
	w.buf = buf.WithByteOrder(w.cfg.order).WithSimpleStrings(w.cfg.simpleStrings)
	w.buf.SetCallback(nil)
	w.resetTree()
}

func (w *Wire) Buffer() *Buffer           { return w.buf }
func (w *Wire) Logger() *zap.Logger       { return w.logger }
func (w *Wire) IsPutFieldMetaData() bool  { return w.cfg.putMeta }
func (w *Wire) Root() *WireField          { return w.root }
func (w *Wire) LastField() *WireField     { return w.last }

// Parent returns the innermost open scope.
func (w *Wire) Parent() *WireField { return w.scopes[len(w.scopes)-1] }

// Err returns the first protocol or buffer error.
func (w *Wire) Err() error {
	if w.err != nil {
		return w.err
	}
	return w.buf.Err()
}

func (w *Wire) fail(err error) error {
	if w.err == nil {
		w.err = err
	}
	return err
}

func (w *Wire) resetTree() {
	w.root = &WireField{hash: HashName("ROOT"), name: "ROOT", typ: TypeStartMarker, dataSize: -1}
	w.scopes = append(w.scopes[:0], w.root)
	w.last = w.root
	w.err = nil
}

// onWrite is installed as the buffer callback while a field payload is written.
func (w *Wire) onWrite() {
	w.UpdateDataEndMarker(w.last)
}

// UpdateDataEndMarker sets the data size of f to the distance between its
// data start and the current position and patches the header in place.
func (w *Wire) UpdateDataEndMarker(f *WireField) {
	if f == nil {
		return
	}
	size := w.buf.Position() - f.DataStart()
	if f.dataSize == size {
		return
	}
	f.dataSize = size
	if f == w.root {
		return
	}
	w.buf.PutIntAt(f.fieldStart+dataSizePos, int32(size))
}

// PutFieldHeader writes the header of desc with the given wire type and
// returns the new field. Metadata is written when enabled and desc has some.
func (w *Wire) PutFieldHeader(desc FieldDescription, typ WireType) *WireField {
	return w.putFieldHeader(desc.FieldNameHash(), desc.FieldName(), typ, desc.Meta())
}

// PutFieldHeaderName writes a header without metadata.
func (w *Wire) PutFieldHeaderName(name string, typ WireType) *WireField {
	return w.putFieldHeader(HashName(name), name, typ, nil)
}

func (w *Wire) putFieldHeader(hash int32, name string, typ WireType, meta *FieldMeta) *WireField {
	w.buf.SetCallback(nil)
	extra := headerFixedSize + SizeOfInt + len(name) + 1 + max(typ.PrimitiveSize(), 0)
	if w.cfg.putMeta {
		extra += w.cfg.increments
	}
	w.buf.EnsureAdditionalCapacity(extra)

	start := w.buf.Position()
	w.buf.PutByte(int8(typ))
	w.buf.PutInt(hash)
	w.buf.PutInt(-1) // data start, patched below
	size := -1
	switch {
	case typ.IsScalar():
		size = typ.PrimitiveSize()
	case typ == TypeEndMarker:
		size = 0
	}
	w.buf.PutInt(int32(size))
	w.buf.PutStringISO8859(name)

	withMeta := w.cfg.putMeta && !meta.IsZero() && typ != TypeEndMarker
	if withMeta {
		w.buf.PutString(meta.Unit)
		w.buf.PutString(meta.Description)
		w.buf.PutString(meta.Direction)
		w.buf.PutStringArray(meta.Groups)
	}

	dataStart := w.buf.Position()
	w.buf.PutIntAt(start+dataStartOffsetPos, int32(dataStart-start))

	f := newWireField(w.Parent(), hash, name, typ, start, dataStart-start, size)
	if withMeta {
		f.meta = meta
	}
	w.last = f
	w.buf.EnsureAdditionalCapacity(16)
	w.buf.SetCallback(w.onWrite)
	return f
}

// PutStartMarker opens a named scope.
func (w *Wire) PutStartMarker(name string) *WireField {
	f := w.PutFieldHeaderName(name, TypeStartMarker)
	w.scopes = append(w.scopes, f)
	return f
}

// PutStartMarkerField opens a scope for desc, carrying its metadata.
func (w *Wire) PutStartMarkerField(desc FieldDescription) *WireField {
	f := w.PutFieldHeader(desc, TypeStartMarker)
	w.scopes = append(w.scopes, f)
	return f
}

// PutEndMarker closes the innermost scope: its size is patched to end at the
// END header, which is written as a sibling of the scope.
func (w *Wire) PutEndMarker(name string) error {
	if len(w.scopes) <= 1 {
		return w.fail(errors.Wrapf(ErrUnbalancedMarkers, "end marker %q without open scope", name))
	}
	scope := w.scopes[len(w.scopes)-1]
	if w.last != scope {
		w.UpdateDataEndMarker(w.last)
	}
	w.UpdateDataEndMarker(scope)
	w.scopes = w.scopes[:len(w.scopes)-1]
	w.PutFieldHeaderName(name, TypeEndMarker)
	return w.Err()
}

// PutCustomData writes desc as an OTHER field whose payload is produced by
// write, closed by an END marker.
func (w *Wire) PutCustomData(desc FieldDescription, write func() error) (*WireField, error) {
	f := w.PutFieldHeader(desc, TypeOther)
	w.scopes = append(w.scopes, f)
	if err := write(); err != nil {
		return f, err
	}
	return f, w.PutEndMarker(desc.FieldName())
}

// GetFieldHeader reads the header at the position and leaves the position at
// its data start. Start and OTHER headers open a scope, END headers close one.
func (w *Wire) GetFieldHeader() (*WireField, error) {
	start := w.buf.Position()
	typ := WireType(uint8(w.buf.GetByte()))
	hash := w.buf.GetInt()
	offset := int(w.buf.GetInt())
	size := int(w.buf.GetInt())
	if err := w.buf.Err(); err != nil {
		return nil, err
	}
	if !typ.Valid() {
		return nil, w.fail(errors.Wrapf(ErrUnknownWireType, "type code %d in header at %d", byte(typ), start))
	}
	dataStart := start + offset
	if offset < headerFixedSize || dataStart > w.buf.Limit() {
		return nil, w.fail(errors.Wrapf(ErrHeaderDesync, "header at %d: data start offset %d outside stream", start, offset))
	}

	var name string
	if w.buf.Position() < dataStart {
		name = w.buf.GetStringISO8859()
	}

	if typ == TypeEndMarker {
		if len(w.scopes) <= 1 {
			return nil, w.fail(errors.Wrapf(ErrUnbalancedMarkers, "end marker %q at %d without open scope", name, start))
		}
		w.scopes = w.scopes[:len(w.scopes)-1]
	}
	f := newWireField(w.Parent(), hash, name, typ, start, offset, size)
	if typ.opensScope() {
		w.scopes = append(w.scopes, f)
	}

	if w.cfg.putMeta {
		f.meta = w.getFieldMeta(dataStart)
	} else if w.buf.Position() <= dataStart {
		_ = w.buf.SetPosition(dataStart)
	}
	if err := w.buf.Err(); err != nil {
		return nil, err
	}
	if pos := w.buf.Position(); pos != dataStart {
		return nil, w.fail(errors.Wrapf(ErrHeaderDesync, "field %s:%q data offset %d: position %d vs. computed %d (diff %d)",
			typ, name, offset, pos, dataStart, dataStart-pos))
	}

	if size < 0 {
		switch {
		case typ.IsScalar():
			f.dataSize = typ.PrimitiveSize()
		case typ == TypeString:
			f.dataSize = SizeOfInt + int(w.buf.GetIntAt(dataStart))
		}
	}
	w.last = f
	return f, nil
}

// getFieldMeta reads whatever optional metadata lies before dataStart.
func (w *Wire) getFieldMeta(dataStart int) *FieldMeta {
	if w.buf.Position() >= dataStart {
		return nil
	}
	m := &FieldMeta{Unit: w.buf.GetString()}
	if w.buf.Position() < dataStart {
		m.Description = w.buf.GetString()
	}
	if w.buf.Position() < dataStart {
		m.Direction = w.buf.GetString()
	}
	if w.buf.Position() < dataStart {
		m.Groups = w.buf.GetStringArray()
	}
	return m
}
