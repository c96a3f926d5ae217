package binser

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// ParseStream reads the whole stream into a field tree and returns its
// synthetic root. With readHeader the protocol preamble is validated first.
// The position is left after the root scope's END marker.
func (w *Wire) ParseStream(readHeader bool) (*WireField, error) {
	var head *WireField
	if readHeader {
		info, err := w.CheckHeaderInfo()
		if err != nil {
			return nil, err
		}
		head = info.Root
	} else {
		w.resetTree()
		f, err := w.GetFieldHeader()
		if err != nil {
			return nil, err
		}
		if f.typ != TypeStartMarker {
			return nil, w.fail(errors.Wrapf(ErrUnbalancedMarkers, "stream root is %s, not a start marker", f.typ))
		}
		head = f
	}
	if err := w.buf.SetPosition(head.DataStart()); err != nil {
		return nil, err
	}
	if err := w.parseScope(head); err != nil {
		return nil, err
	}
	w.root.dataSize = w.buf.Position()
	return w.root, nil
}

func (w *Wire) parseScope(scope *WireField) error {
	for {
		if !w.buf.HasRemaining() {
			return w.fail(errors.Wrapf(ErrUnbalancedMarkers, "stream ended inside scope %q", scope.name))
		}
		f, err := w.GetFieldHeader()
		if err != nil {
			return err
		}
		switch f.typ {
		case TypeEndMarker:
			return nil
		case TypeStartMarker:
			if err := w.parseScope(f); err != nil {
				return err
			}
		case TypeOther:
			if err := w.skipCustomData(f); err != nil {
				return err
			}
		default:
			if f.dataSize < 0 {
				w.logger.Warn("field header without data size, swallowing by type",
					zap.String("field", f.FieldNameRelative()),
					zap.Stringer("type", f.typ),
					zap.Int("dataSize", f.dataSize))
				if err := w.swallow(f.typ); err != nil {
					return err
				}
			} else if err := w.buf.SetPosition(f.NextFieldStart()); err != nil {
				return err
			}
		}
	}
}

// skipCustomData jumps over an OTHER payload and consumes its END marker.
// Without a recorded size the payload is parsed as nested fields.
func (w *Wire) skipCustomData(f *WireField) error {
	if f.dataSize < 0 {
		return w.parseScope(f)
	}
	if err := w.buf.SetPosition(f.NextFieldStart()); err != nil {
		return err
	}
	end, err := w.GetFieldHeader()
	if err != nil {
		return err
	}
	if end.typ != TypeEndMarker {
		return w.fail(errors.Wrapf(ErrUnbalancedMarkers, "custom data %q not closed by an end marker", f.name))
	}
	return nil
}

// swallow consumes one payload of the given type without decoding it.
func (w *Wire) swallow(typ WireType) error {
	switch {
	case typ.IsScalar():
		w.buf.take(typ.PrimitiveSize())
	case typ == TypeString:
		w.buf.rawString()
	case typ.IsArray():
		return w.swallowArray(typ.Element())
	case typ.IsCollection():
		w.buf.GetArraySizeDescriptor()
		w.buf.GetInt()
		return w.swallowArray(WireType(uint8(w.buf.GetByte())))
	case typ == TypeMap:
		w.buf.GetArraySizeDescriptor()
		w.buf.GetInt()
		keyType := WireType(uint8(w.buf.GetByte()))
		valueType := WireType(uint8(w.buf.GetByte()))
		if err := w.swallowArray(keyType); err != nil {
			return err
		}
		return w.swallowArray(valueType)
	case typ == TypeEnum:
		for range 4 {
			w.buf.rawString()
		}
		w.buf.GetInt()
	default:
		return w.fail(errors.Wrapf(ErrUnknownWireType, "cannot swallow %s", typ))
	}
	return w.buf.Err()
}

func (w *Wire) swallowArray(elem WireType) error {
	if err := w.buf.Err(); err != nil {
		return err
	}
	switch {
	case elem == TypeString:
		w.buf.GetStringArray()
	case elem.IsScalar():
		size := elem.PrimitiveSize()
		_, n := w.buf.getArrayHeader(size)
		w.buf.take(n * size)
	case elem == TypeOther:
		// no payload is written for elements without a primitive representation
	default:
		return w.fail(errors.Wrapf(ErrUnknownWireType, "cannot swallow array of %s", elem))
	}
	return w.buf.Err()
}
