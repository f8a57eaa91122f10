// Package pngchunk reads, edits and writes the chunk structure of PNG
// files, and uses it to hide auxiliary messages inside an image without
// touching the image data.
//
// # Overview
//
// A PNG stream is an 8-byte signature followed by chunks. Every chunk is a
// big-endian length, a 4-byte type code, the data, and a CRC-32 over the
// type and data. pngchunk validates all of this on the way in and writes
// the exact same bytes on the way out, so a file that is parsed and saved
// unchanged is byte-for-byte identical.
//
// Pixel data is never decoded. Cross-chunk rules such as "exactly one IHDR"
// are not enforced.
//
// # Chunk Types
//
// The case of each letter in a type code is a flag:
//
//	RuSt
//	│││└─ lowercase: safe to copy
//	││└── uppercase: reserved bit valid (required)
//	│└─── lowercase: private
//	└──── uppercase: critical
//
// ParseChunkType accepts only fully valid codes. LenientParseChunkType
// accepts any four ASCII letters so that codes like "Rust" can still be
// inspected.
//
// # Basic Usage
//
//	p, err := pngchunk.Load(fs, "/in.png")
//	if err != nil {
//	    return err
//	}
//
//	ct, _ := pngchunk.ParseChunkType("RuSt")
//	p.AppendChunk(pngchunk.NewChunk(ct, []byte("hello")))
//
//	if err := pngchunk.Save(fs, "/out.png", p); err != nil {
//	    return err
//	}
//
//	msg, _ := p.ChunkByType("RuSt").DataString()
//
// # Sealed Messages
//
// SealMessage optionally compresses (zlib, lz4) and encrypts (AES-256-GCM,
// ChaCha20-Poly1305) a message before it is stored as chunk data. The
// envelope records its own key derivation parameters, so OpenMessage needs
// only a KeyProvider holding the passphrase. Messages stored without
// compression or encryption are the raw bytes, as with any other tool.
//
// # Concurrency
//
// Chunks are immutable and may be shared freely. A PNG is mutable and must
// not be used from several goroutines without external locking.
package pngchunk
