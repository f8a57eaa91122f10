package pngchunk

import (
	"fmt"
)

// bit5 is the case bit of an ASCII letter. Each byte of a chunk type code
// carries one property flag in this position.
const bit5 = 0x20

// invalidChunkTypeText is returned by String for codes that are not fully valid.
const invalidChunkTypeText = "<invalid chunk type>"

// ChunkType is a 4-byte PNG chunk type code.
//
// The four bytes are positionally significant:
//
//	byte 0: ancillary bit  (lowercase = ancillary, uppercase = critical)
//	byte 1: private bit    (lowercase = private, uppercase = public)
//	byte 2: reserved bit   (must be uppercase)
//	byte 3: safe-to-copy   (lowercase = safe to copy)
type ChunkType struct {
	ancillary  byte
	private    byte
	reserved   byte
	safeToCopy byte
}

// ChunkTypeFromBytes builds a chunk type from raw bytes. The code must be
// fully valid: four ASCII letters with an uppercase reserved byte.
func ChunkTypeFromBytes(b [4]byte) (ChunkType, error) {
	ct, err := LenientChunkType(b)
	if err != nil {
		return ChunkType{}, err
	}
	if !ct.IsReservedBitValid() {
		return ChunkType{}, &ValidationError{
			Field:   "chunk_type",
			Value:   string(b[:]),
			Message: "reserved byte must be uppercase",
			Err:     ErrInvalidTypeCode,
		}
	}
	return ct, nil
}

// ParseChunkType parses a 4-character chunk type such as "RuSt".
func ParseChunkType(s string) (ChunkType, error) {
	b, err := chunkTypeTextBytes(s)
	if err != nil {
		return ChunkType{}, err
	}
	return ChunkTypeFromBytes(b)
}

// LenientChunkType builds a chunk type that only needs to consist of ASCII
// letters. The result may report IsValid() == false; it is meant for
// inspecting codes, never for building chunks that go into a PNG.
func LenientChunkType(b [4]byte) (ChunkType, error) {
	for i, c := range b {
		if !isASCIILetter(c) {
			return ChunkType{}, &ValidationError{
				Field:   "chunk_type",
				Value:   string(b[:]),
				Message: fmt.Sprintf("byte %d (0x%02x) is not an ASCII letter", i, c),
				Err:     ErrInvalidTypeCode,
			}
		}
	}
	return ChunkType{
		ancillary:  b[0],
		private:    b[1],
		reserved:   b[2],
		safeToCopy: b[3],
	}, nil
}

// LenientParseChunkType is the text form of LenientChunkType.
func LenientParseChunkType(s string) (ChunkType, error) {
	b, err := chunkTypeTextBytes(s)
	if err != nil {
		return ChunkType{}, err
	}
	return LenientChunkType(b)
}

func chunkTypeTextBytes(s string) ([4]byte, error) {
	var b [4]byte
	if len(s) != len(b) {
		return b, &ValidationError{
			Field:   "chunk_type",
			Value:   s,
			Message: fmt.Sprintf("must be exactly 4 bytes, got %d", len(s)),
			Err:     ErrInvalidTypeCode,
		}
	}
	copy(b[:], s)
	return b, nil
}

func isASCIILetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// Bytes returns the raw type code.
func (c ChunkType) Bytes() [4]byte {
	return [4]byte{c.ancillary, c.private, c.reserved, c.safeToCopy}
}

// IsCritical reports whether the chunk is required to interpret the image.
func (c ChunkType) IsCritical() bool {
	return c.ancillary&bit5 == 0
}

// IsPublic reports whether the type is part of the public PNG namespace.
func (c ChunkType) IsPublic() bool {
	return c.private&bit5 == 0
}

// IsReservedBitValid reports whether the reserved byte is uppercase.
func (c ChunkType) IsReservedBitValid() bool {
	return c.reserved&bit5 == 0
}

// IsSafeToCopy reports whether editors unaware of the chunk may keep it.
func (c ChunkType) IsSafeToCopy() bool {
	return c.safeToCopy&bit5 != 0
}

// IsValid reports whether every byte is an ASCII letter and the reserved bit
// is valid.
func (c ChunkType) IsValid() bool {
	for _, b := range c.Bytes() {
		if !isASCIILetter(b) {
			return false
		}
	}
	return c.IsReservedBitValid()
}

// String returns the type code as text, or a placeholder when the code is
// not valid.
func (c ChunkType) String() string {
	if !c.IsValid() {
		return invalidChunkTypeText
	}
	b := c.Bytes()
	return string(b[:])
}

// MarshalText implements encoding.TextMarshaler.
func (c ChunkType) MarshalText() ([]byte, error) {
	if !c.IsValid() {
		return nil, &ValidationError{
			Field:   "chunk_type",
			Message: "cannot marshal invalid chunk type",
			Err:     ErrInvalidTypeCode,
		}
	}
	b := c.Bytes()
	return b[:], nil
}

// UnmarshalText implements encoding.TextUnmarshaler using the strict parser.
func (c *ChunkType) UnmarshalText(text []byte) error {
	ct, err := ParseChunkType(string(text))
	if err != nil {
		return err
	}
	*c = ct
	return nil
}
