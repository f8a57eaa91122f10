package pngchunk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"slices"
	"strings"
)

// PNG stream layout:
//
//	┌─────────────────────────────────────┐
//	│ Signature (8 bytes)                 │ <- 89 50 4E 47 0D 0A 1A 0A
//	├─────────────────────────────────────┤
//	│ Chunk 0                             │ <- length, type, data, crc
//	├─────────────────────────────────────┤
//	│ Chunk 1                             │
//	│ └─ ...                              │
//	└─────────────────────────────────────┘

// Signature is the fixed 8-byte PNG file header.
var Signature = [8]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// EndChunkType is the type of the chunk that terminates the image stream.
const EndChunkType = "IEND"

// PNG is a parsed PNG stream: the signature followed by an ordered chunk
// sequence. A PNG is not safe for concurrent use.
type PNG struct {
	chunks []*Chunk
}

// New creates a PNG holding the given chunks in order.
func New(chunks ...*Chunk) *PNG {
	p := &PNG{chunks: make([]*Chunk, 0, len(chunks))}
	p.chunks = append(p.chunks, chunks...)
	return p
}

// Parse decodes a complete PNG stream. Parsing is all-or-nothing: on error
// no PNG is returned.
func Parse(b []byte) (*PNG, error) {
	if len(b) < len(Signature) || !bytes.Equal(b[:len(Signature)], Signature[:]) {
		return nil, &CorruptionError{
			ChunkIdx: -1,
			Offset:   0,
			Message:  "stream does not start with the png signature",
			Err:      ErrBadSignature,
		}
	}

	p := New()
	offset := len(Signature)
	for idx := 0; offset < len(b); idx++ {
		rest := b[offset:]
		if len(rest) < ChunkOverhead {
			return nil, newCorruptionError(idx, offset,
				fmt.Errorf("%d bytes left, a chunk needs at least %d: %w", len(rest), ChunkOverhead, ErrTrailingGarbage))
		}

		length := binary.BigEndian.Uint32(rest[:lengthSize])
		size := uint64(ChunkOverhead) + uint64(length)
		if size > uint64(len(rest)) {
			return nil, newCorruptionError(idx, offset,
				fmt.Errorf("declared length %d overruns the %d remaining bytes: %w", length, len(rest), ErrTrailingGarbage))
		}

		chunk, err := ParseChunk(rest[:size])
		if err != nil {
			return nil, newCorruptionError(idx, offset, err)
		}
		p.chunks = append(p.chunks, chunk)
		offset += int(size)
	}
	return p, nil
}

// ReadFrom reads r to EOF and replaces the chunk sequence with the parsed
// stream. On error p is left unchanged.
func (p *PNG) ReadFrom(r io.Reader) (int64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return int64(len(b)), fmt.Errorf("failed to read png stream: %w", err)
	}
	parsed, err := Parse(b)
	if err != nil {
		return int64(len(b)), err
	}
	p.chunks = parsed.chunks
	return int64(len(b)), nil
}

// Bytes serializes the signature and every chunk in order. It is the exact
// inverse of Parse.
func (p *PNG) Bytes() []byte {
	size := len(Signature)
	for _, c := range p.chunks {
		size += c.Size()
	}
	out := make([]byte, 0, size)
	out = append(out, Signature[:]...)
	for _, c := range p.chunks {
		out = append(out, c.Bytes()...)
	}
	return out
}

// WriteTo writes the serialized stream to w.
func (p *PNG) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.Bytes())
	if err != nil {
		return int64(n), fmt.Errorf("failed to write png stream: %w", err)
	}
	return int64(n), nil
}

// Chunks returns the chunk sequence. The slice is a copy; the chunks are not.
func (p *PNG) Chunks() []*Chunk {
	out := make([]*Chunk, len(p.chunks))
	copy(out, p.chunks)
	return out
}

// AppendChunk adds c at the end of the sequence.
func (p *PNG) AppendChunk(c *Chunk) {
	p.chunks = append(p.chunks, c)
}

// InsertBeforeEnd inserts c directly before the first IEND chunk so that it
// stays inside the image stream. Without an IEND chunk it appends.
func (p *PNG) InsertBeforeEnd(c *Chunk) {
	idx := p.indexOf(EndChunkType)
	if idx < 0 {
		p.AppendChunk(c)
		return
	}
	p.chunks = slices.Insert(p.chunks, idx, c)
}

// ChunkByType returns the first chunk whose type matches chunkType, or nil.
func (p *PNG) ChunkByType(chunkType string) *Chunk {
	idx := p.indexOf(chunkType)
	if idx < 0 {
		return nil
	}
	return p.chunks[idx]
}

// RemoveChunk removes the first chunk whose type matches chunkType and
// returns it. Later chunks of the same type are kept.
func (p *PNG) RemoveChunk(chunkType string) (*Chunk, error) {
	idx := p.indexOf(chunkType)
	if idx < 0 {
		return nil, fmt.Errorf("%q: %w", chunkType, ErrChunkNotFound)
	}
	removed := p.chunks[idx]
	p.chunks = slices.Delete(p.chunks, idx, idx+1)
	return removed, nil
}

func (p *PNG) indexOf(chunkType string) int {
	for i, c := range p.chunks {
		if c.Type().String() == chunkType {
			return i
		}
	}
	return -1
}

// String lists every chunk with its type, length and crc.
func (p *PNG) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "PNG: %d chunk(s)\n", len(p.chunks))
	for i, c := range p.chunks {
		fmt.Fprintf(&sb, "%4d  %s  length=%-10d crc=%08x\n", i, c.Type(), c.Length(), c.CRC())
	}
	return sb.String()
}
