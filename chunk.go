package pngchunk

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"unicode/utf8"
)

// Chunk wire layout:
//
//	┌──────────────┬──────────────┬────────────────────┬──────────────┐
//	│ length (u32) │ type (4 B)   │ data (length B)    │ crc (u32)    │
//	└──────────────┴──────────────┴────────────────────┴──────────────┘
//
// All integers are big-endian. The CRC covers type and data only.
const (
	lengthSize = 4
	typeSize   = 4
	crcSize    = 4

	// ChunkOverhead is the size of an empty chunk on the wire.
	ChunkOverhead = lengthSize + typeSize + crcSize

	// MaxChunkDataSize is the largest data length PNG allows in a chunk.
	MaxChunkDataSize = 1<<31 - 1
)

// Chunk is a single length-prefixed, typed and checksummed PNG record.
// A Chunk is immutable once built.
type Chunk struct {
	length    uint32
	chunkType ChunkType
	data      []byte
	crc       uint32
}

// NewChunk builds a chunk and computes its CRC. The data slice is copied.
// NewChunk panics if data is longer than MaxChunkDataSize; use
// ValidateMessageSize first for untrusted input.
func NewChunk(chunkType ChunkType, data []byte) *Chunk {
	length := chunkLength(int64(len(data)))
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Chunk{
		length:    length,
		chunkType: chunkType,
		data:      buf,
		crc:       checksum(chunkType, buf),
	}
}

func chunkLength(n int64) uint32 {
	if n > MaxChunkDataSize {
		panic(fmt.Sprintf("pngchunk: chunk data of %d bytes exceeds %d", n, MaxChunkDataSize))
	}
	return uint32(n)
}

// ParseChunk decodes exactly one chunk. b must hold the whole chunk and
// nothing else.
func ParseChunk(b []byte) (*Chunk, error) {
	if len(b) < ChunkOverhead {
		return nil, fmt.Errorf("need at least %d bytes, got %d: %w", ChunkOverhead, len(b), ErrTooShort)
	}

	length := binary.BigEndian.Uint32(b[:lengthSize])
	if uint64(len(b)) != uint64(ChunkOverhead)+uint64(length) {
		return nil, fmt.Errorf("declared length %d, but %d data bytes present: %w",
			length, len(b)-ChunkOverhead, ErrLengthMismatch)
	}

	var code [4]byte
	copy(code[:], b[lengthSize:lengthSize+typeSize])
	chunkType, err := ChunkTypeFromBytes(code)
	if err != nil {
		return nil, err
	}

	dataStart := lengthSize + typeSize
	dataEnd := len(b) - crcSize
	data := make([]byte, dataEnd-dataStart)
	copy(data, b[dataStart:dataEnd])

	claimed := binary.BigEndian.Uint32(b[dataEnd:])
	if actual := checksum(chunkType, data); actual != claimed {
		return nil, fmt.Errorf("%s: stored %08x, computed %08x: %w", chunkType, claimed, actual, ErrChecksumMismatch)
	}

	return &Chunk{
		length:    length,
		chunkType: chunkType,
		data:      data,
		crc:       claimed,
	}, nil
}

// checksum computes CRC-32/ISO-HDLC over the type code followed by data.
func checksum(chunkType ChunkType, data []byte) uint32 {
	code := chunkType.Bytes()
	h := crc32.NewIEEE()
	h.Write(code[:])
	h.Write(data)
	return h.Sum32()
}

// Length returns the number of data bytes.
func (c *Chunk) Length() uint32 {
	return c.length
}

// Type returns the chunk type code.
func (c *Chunk) Type() ChunkType {
	return c.chunkType
}

// Data returns the chunk payload. Callers must not modify it.
func (c *Chunk) Data() []byte {
	return c.data
}

// CRC returns the stored checksum.
func (c *Chunk) CRC() uint32 {
	return c.crc
}

// Size returns the number of bytes the chunk occupies on the wire.
func (c *Chunk) Size() int {
	return ChunkOverhead + len(c.data)
}

// DataString returns the payload as text. It fails with ErrNotUTF8Text when
// the payload is binary.
func (c *Chunk) DataString() (string, error) {
	if !utf8.Valid(c.data) {
		return "", fmt.Errorf("%s: %w", c.chunkType, ErrNotUTF8Text)
	}
	return string(c.data), nil
}

// Bytes serializes the chunk. It is the exact inverse of ParseChunk.
func (c *Chunk) Bytes() []byte {
	out := make([]byte, 0, c.Size())
	out = binary.BigEndian.AppendUint32(out, c.length)
	code := c.chunkType.Bytes()
	out = append(out, code[:]...)
	out = append(out, c.data...)
	out = binary.BigEndian.AppendUint32(out, c.crc)
	return out
}

// WriteTo writes the serialized chunk to w.
func (c *Chunk) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(c.Bytes())
	if err != nil {
		return int64(n), fmt.Errorf("failed to write %s chunk: %w", c.chunkType, err)
	}
	return int64(n), nil
}

// String returns a one-line description of the chunk.
func (c *Chunk) String() string {
	return fmt.Sprintf("%s length=%d crc=%08x", c.chunkType, c.length, c.crc)
}
