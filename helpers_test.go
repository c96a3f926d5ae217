package binser

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type Color int32

const (
	Red Color = iota
	Green
	Blue
)

var colorNames = []string{"Red", "Green", "Blue"}

func (c Color) String() string {
	if c >= 0 && int(c) < len(colorNames) {
		return colorNames[c]
	}
	return "Color(?)"
}

func (Color) EnumNames() []string { return colorNames }

// observedLogger returns a logger recording every entry at or above level.
func observedLogger(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

// writeSample writes a stream holding a=7, b="hi" and a nested scope with
// c=[1.5, 2.5]. It returns the headers of a, b, nested and c.
func writeSample(w *Wire) []*WireField {
	w.PutHeaderInfo("")
	a := w.PutFieldHeaderName("a", TypeInt)
	w.Buffer().PutInt(7)
	b := w.PutFieldHeaderName("b", TypeString)
	w.Buffer().PutString("hi")
	nested := w.PutStartMarker("nested")
	c := w.PutFieldHeaderName("c", TypeDoubleArray)
	w.Buffer().PutDoubleArray([]float64{1.5, 2.5})
	_ = w.PutEndMarker("nested")
	_ = w.PutEndMarker(RootEndMarker)
	return []*WireField{a, b, nested, c}
}

func names(fields []*WireField) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.FieldName()
	}
	return out
}
