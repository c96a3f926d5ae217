package binser

import (
	"fmt"
	"slices"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const (
	// MagicNumber opens every stream.
	MagicNumber int32 = 0x0000002A
	// ProducerName identifies streams written by this package.
	ProducerName = "github.com/oy3o/binser.Wire"

	VersionMajor = 1
	VersionMinor = 0
	VersionMicro = 0

	RootStartMarker = "OBJ_ROOT_START"
	RootEndMarker   = "OBJ_ROOT_END"

	// fixed part of a field header: type, hash, data start offset, data size
	headerFixedSize = 1 + 3*SizeOfInt
	// offsets of the backpatched words inside a header
	dataStartOffsetPos = 1 + SizeOfInt
	dataSizePos        = 1 + 2*SizeOfInt
)

// ProtocolInfo is the stream preamble together with the root start marker
// that follows it.
type ProtocolInfo struct {
	Magic    int32
	Producer string
	Major    int8
	Minor    int8
	Micro    int8
	Root     *WireField
}

func (p *ProtocolInfo) String() string {
	return fmt.Sprintf("%s-v%d.%d.%d", p.Producer, p.Major, p.Minor, p.Micro)
}

// IsCompatible reports whether the preamble can be read by this package
// when the given producers are accepted.
func (p *ProtocolInfo) IsCompatible(producers []string) bool {
	return p.Magic == MagicNumber && p.Major == VersionMajor && slices.Contains(producers, p.Producer)
}

// PutHeaderInfo writes the preamble and opens the root scope. An empty
// rootName uses RootStartMarker.
func (w *Wire) PutHeaderInfo(rootName string) *WireField {
	w.resetTree()
	w.buf.SetCallback(nil)
	w.buf.EnsureAdditionalCapacity(w.cfg.increments + len(ProducerName) + 16)
	w.buf.PutInt(MagicNumber)
	w.buf.PutStringISO8859(ProducerName)
	w.buf.PutByte(VersionMajor)
	w.buf.PutByte(VersionMinor)
	w.buf.PutByte(VersionMicro)
	if rootName == "" {
		rootName = RootStartMarker
	}
	return w.PutStartMarker(rootName)
}

// CheckHeaderInfo reads and validates the preamble and the root start marker.
func (w *Wire) CheckHeaderInfo() (*ProtocolInfo, error) {
	w.resetTree()
	info := &ProtocolInfo{Magic: w.buf.GetInt()}
	if err := w.buf.Err(); err != nil {
		return nil, err
	}
	if info.Magic != MagicNumber {
		return nil, errors.Wrapf(ErrMagicMismatch, "got %#08x, want %#08x", info.Magic, MagicNumber)
	}
	info.Producer = w.buf.GetStringISO8859()
	info.Major = w.buf.GetByte()
	info.Minor = w.buf.GetByte()
	info.Micro = w.buf.GetByte()
	if err := w.buf.Err(); err != nil {
		return nil, err
	}
	if info.Major != VersionMajor {
		return nil, errors.Wrapf(ErrIncompatibleVersion, "stream %s", info)
	}
	if !slices.Contains(w.cfg.producers, info.Producer) {
		return nil, errors.Wrapf(ErrIncompatibleProducer, "stream %s", info)
	}
	if info.Minor != VersionMinor || info.Micro != VersionMicro {
		w.logger.Debug("protocol minor version differs", zap.Stringer("stream", info))
	}
	root, err := w.GetFieldHeader()
	if err != nil {
		return nil, err
	}
	if root.typ != TypeStartMarker {
		return nil, errors.Wrapf(ErrUnbalancedMarkers, "stream root is %s, not a start marker", root.typ)
	}
	info.Root = root
	return info, nil
}
