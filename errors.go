package binser

import "github.com/cockroachdb/errors"

var (
	// ErrNilIO indicates that Encode/Decode was called with a nil io.Reader/io.Writer.
	ErrNilIO = errors.New("binser: Encode/Decode called with a nil io.Reader/io.Writer")

	// ErrNilObject indicates a nil or non-pointer destination was handed to a (de)serialise call.
	ErrNilObject = errors.New("binser: object must be a non-nil pointer")

	// ErrOutOfBounds indicates a read past the buffer limit, a position outside
	// [0, limit] or a negative length prefix.
	ErrOutOfBounds = errors.New("binser: buffer access out of bounds")

	// ErrMagicMismatch indicates the stream does not start with the protocol magic number.
	ErrMagicMismatch = errors.New("binser: protocol magic number mismatch")

	// ErrIncompatibleVersion indicates a major protocol version different from ours.
	ErrIncompatibleVersion = errors.New("binser: incompatible protocol version")

	// ErrIncompatibleProducer indicates a stream written by a producer we do not accept.
	ErrIncompatibleProducer = errors.New("binser: incompatible protocol producer")

	// ErrHeaderDesync indicates that a field header's data-start offset does not match
	// the position reached after parsing the header. The stream is unusable from there.
	ErrHeaderDesync = errors.New("binser: field header offset inconsistency")

	// ErrUnbalancedMarkers indicates a START_MARKER without its END_MARKER or vice versa.
	ErrUnbalancedMarkers = errors.New("binser: unbalanced start/end markers")

	// ErrUnknownWireType indicates a type code that is not part of the protocol.
	ErrUnknownWireType = errors.New("binser: unknown wire type")

	// ErrRecursionDepth indicates a type whose field tree nests deeper than the
	// configured maximum, usually a type that (indirectly) contains itself.
	ErrRecursionDepth = errors.New("binser: maximum recursion depth exceeded while describing type")

	// ErrDuplicateCodec indicates a codec for the same type and generic arguments is already registered.
	ErrDuplicateCodec = errors.New("binser: codec already registered")

	// ErrUnsupportedType indicates a value that cannot be represented on the wire,
	// e.g. a map whose keys are compound objects.
	ErrUnsupportedType = errors.New("binser: unsupported type")

	// ErrTypeMismatch indicates the wire carries a different type than the destination expects.
	ErrTypeMismatch = errors.New("binser: wire type mismatch")

	// ErrInvalidWhence indicates an unsupported whence argument to Seek.
	ErrInvalidWhence = errors.New("binser: invalid whence")

	// ErrInvalidRead indicates a writer reporting more bytes written than it was handed.
	ErrInvalidRead = errors.New("binser: invalid write result")

	// ErrStreamTooLarge indicates that Decode hit the configured maximum stream size.
	ErrStreamTooLarge = errors.New("binser: stream exceeds maximum size")
)
