package binser

import (
	"encoding/binary"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/exp/constraints"
)

var (
	BE = binary.BigEndian
	LE = binary.LittleEndian
	// Order is the default byte order, the one native producers write.
	Order binary.ByteOrder = LE
)

// Primitive sizes in bytes.
const (
	SizeOfBool   = 1
	SizeOfByte   = 1
	SizeOfShort  = 2
	SizeOfChar   = 2
	SizeOfInt    = 4
	SizeOfLong   = 8
	SizeOfFloat  = 4
	SizeOfDouble = 8
)

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T { return &v }

// Roundup rounds n up to the nearest multiple of align.
func Roundup[T constraints.Integer](n, align T) T { return (n + (align - 1)) &^ (align - 1) }

// HashName returns the field name hash carried in every field header.
// It is the 31-multiplier hash over UTF-16 code units used by the other
// producers of this protocol, so names hash identically across languages.
func HashName(name string) int32 {
	var h int32
	for _, r := range name {
		if r < 0x10000 {
			h = 31*h + int32(r)
			continue
		}
		r1, r2 := utf16.EncodeRune(r)
		h = 31*h + int32(r1)
		h = 31*h + int32(r2)
	}
	return h
}

// encodeISO8859 maps every rune onto a single byte, dropping the high bits like
// a char-to-byte cast does. It appends to dst.
func encodeISO8859(dst []byte, s string) []byte {
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			dst = append(dst, c)
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		dst = append(dst, byte(r&0xFF))
		i += size
	}
	return dst
}

// decodeISO8859 turns single-byte characters back into a string.
func decodeISO8859(b []byte) string {
	ascii := true
	for _, c := range b {
		if c >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b) * 2)
	for _, c := range b {
		sb.WriteRune(rune(c))
	}
	return sb.String()
}

// isoLen returns the number of bytes s occupies in single-byte encoding.
func isoLen(s string) int {
	return utf8.RuneCountInString(s)
}
