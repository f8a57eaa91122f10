package pngchunk

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Sealed message layout (stored as chunk data):
//
//	┌─────────────────────────────────────┐
//	│ Magic (4 bytes)                     │ <- 0x89 'P' 'C' 'M'
//	├─────────────────────────────────────┤
//	│ Header (CBOR map)                   │ <- version, codec, cipher, salt, nonce, kdf
//	├─────────────────────────────────────┤
//	│ Body                                │ <- compressed, then AEAD-sealed
//	└─────────────────────────────────────┘
//
// The leading 0x89 is never valid UTF-8, so a sealed payload cannot be
// mistaken for a plain text message. Magic and header are authenticated as
// additional data when the body is encrypted.

// EnvelopeMagic prefixes every sealed message.
var EnvelopeMagic = [4]byte{0x89, 'P', 'C', 'M'}

// EnvelopeVersion is the current envelope format version.
const EnvelopeVersion = uint8(1)

// DefaultMaxMessageSize bounds plaintext messages when no limit is set. It
// is also the largest message size OpenMessage accepts from a header.
const DefaultMaxMessageSize = 64 * 1024 * 1024

type envelopeHeader struct {
	Version     uint8       `cbor:"1,keyasint"`
	Compression Compression `cbor:"2,keyasint"`
	Cipher      CipherSuite `cbor:"3,keyasint"`
	Size        uint32      `cbor:"4,keyasint"`
	Salt        []byte      `cbor:"5,keyasint,omitempty"`
	Nonce       []byte      `cbor:"6,keyasint,omitempty"`
	KDF         *KDFParams  `cbor:"7,keyasint,omitempty"`
}

var (
	headerEncMode cbor.EncMode
	headerDecMode cbor.DecMode
)

func init() {
	var err error

	// Core Deterministic Encoding: the header bytes double as AEAD
	// additional data, so the same header must always encode identically.
	headerEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("pngchunk: CBOR encoder initialization failed: " + err.Error())
	}

	headerDecMode, err = cbor.DecOptions{
		MaxArrayElements: 16,
		MaxMapPairs:      16,
	}.DecMode()
	if err != nil {
		panic("pngchunk: CBOR decoder initialization failed: " + err.Error())
	}
}

// IsSealed reports whether data starts with the envelope magic.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, EnvelopeMagic[:])
}

// SealMessage wraps msg according to opts. When opts neither compresses nor
// encrypts, msg is returned unchanged so the chunk carries the plain text.
func SealMessage(msg []byte, opts SealOptions) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, newEnvelopeError("seal", err)
	}
	limit := opts.MaxMessageSize
	if limit == 0 {
		limit = DefaultMaxMessageSize
	}
	if err := ValidateMessageSize(msg, limit); err != nil {
		return nil, newEnvelopeError("seal", err)
	}
	if !opts.Sealed() {
		out := make([]byte, len(msg))
		copy(out, msg)
		return out, nil
	}

	body, err := compress(opts.Compression, msg)
	if err != nil {
		return nil, newEnvelopeError("seal", err)
	}

	header := envelopeHeader{
		Version:     EnvelopeVersion,
		Compression: opts.Compression,
		Cipher:      opts.Cipher,
		Size:        uint32(len(msg)),
	}

	var key []byte
	if opts.Cipher != CipherNone {
		params := opts.KeyProvider.Params()
		header.KDF = &params
		if header.Salt, err = opts.KeyProvider.GenerateSalt(); err != nil {
			return nil, newEnvelopeError("seal", err)
		}
		if header.Nonce, err = GenerateNonce(opts.Cipher); err != nil {
			return nil, newEnvelopeError("seal", err)
		}
		if key, err = opts.KeyProvider.DeriveKey(header.Salt, params); err != nil {
			return nil, newEnvelopeError("seal", fmt.Errorf("failed to derive key: %w", err))
		}
	}

	headerBytes, err := headerEncMode.Marshal(header)
	if err != nil {
		return nil, newEnvelopeError("seal", fmt.Errorf("failed to encode header: %w", err))
	}

	prefix := make([]byte, 0, len(EnvelopeMagic)+len(headerBytes))
	prefix = append(prefix, EnvelopeMagic[:]...)
	prefix = append(prefix, headerBytes...)

	if opts.Cipher != CipherNone {
		engine, err := NewCipherEngine(opts.Cipher, key)
		if err != nil {
			return nil, newEnvelopeError("seal", err)
		}
		if body, err = engine.Seal(header.Nonce, body, prefix); err != nil {
			return nil, newEnvelopeError("seal", err)
		}
	}

	return append(prefix, body...), nil
}

// OpenMessage reverses SealMessage. Data without the envelope magic is a
// plain message and is returned as a copy. kp may be nil for unencrypted
// envelopes.
func OpenMessage(data []byte, kp KeyProvider) ([]byte, error) {
	if !IsSealed(data) {
		return bytes.Clone(data), nil
	}

	header, prefix, body, err := splitEnvelope(data)
	if err != nil {
		return nil, newEnvelopeError("open", err)
	}

	if header.Cipher != CipherNone {
		if kp == nil {
			return nil, newEnvelopeError("open", ErrPassphraseRequired)
		}
		if multi, ok := kp.(*MultiKeyProvider); ok {
			body, err = multi.open(header, prefix, body)
		} else {
			body, err = decryptBody(header, prefix, body, kp)
		}
		if err != nil {
			return nil, newEnvelopeError("open", err)
		}
	}

	msg, err := decompress(header.Compression, body, int(header.Size))
	if err != nil {
		return nil, newEnvelopeError("open", err)
	}
	if len(msg) != int(header.Size) {
		return nil, newEnvelopeError("open",
			fmt.Errorf("message is %d bytes, header says %d: %w", len(msg), header.Size, ErrInvalidEnvelope))
	}
	return msg, nil
}

// splitEnvelope decodes the header and returns it with the authenticated
// prefix (magic and header bytes) and the remaining body.
func splitEnvelope(data []byte) (envelopeHeader, []byte, []byte, error) {
	var header envelopeHeader
	rest, err := headerDecMode.UnmarshalFirst(data[len(EnvelopeMagic):], &header)
	if err != nil {
		return header, nil, nil, fmt.Errorf("failed to decode header: %v: %w", err, ErrInvalidEnvelope)
	}
	if header.Version == 0 || header.Version > EnvelopeVersion {
		return header, nil, nil, fmt.Errorf("version %d: %w", header.Version, ErrUnsupportedVersion)
	}
	if header.Compression > CompressionLZ4 {
		return header, nil, nil, fmt.Errorf("compression %d: %w", header.Compression, ErrUnsupportedCodec)
	}
	if header.Size > DefaultMaxMessageSize {
		return header, nil, nil, fmt.Errorf("message size %d exceeds %d: %w", header.Size, DefaultMaxMessageSize, ErrInvalidEnvelope)
	}
	switch header.Cipher {
	case CipherNone:
	case CipherAES256GCM, CipherChaCha20Poly1305:
		if header.KDF == nil || len(header.Salt) == 0 || len(header.Nonce) == 0 {
			return header, nil, nil, fmt.Errorf("encrypted envelope lacks key material: %w", ErrInvalidEnvelope)
		}
		// The cost parameters come from the file and are checked before
		// any provider runs them.
		if err := header.KDF.Validate(); err != nil {
			return header, nil, nil, fmt.Errorf("key derivation parameters: %w: %w", err, ErrInvalidEnvelope)
		}
	default:
		return header, nil, nil, fmt.Errorf("cipher %d: %w", header.Cipher, ErrUnsupportedCipher)
	}

	prefixLen := len(data) - len(rest)
	return header, data[:prefixLen], data[prefixLen:], nil
}

func decryptBody(header envelopeHeader, prefix, body []byte, kp KeyProvider) ([]byte, error) {
	key, err := kp.DeriveKey(header.Salt, *header.KDF)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	engine, err := NewCipherEngine(header.Cipher, key)
	if err != nil {
		return nil, err
	}
	return engine.Open(header.Nonce, body, prefix)
}

// ResealMessage opens data with oldKP and seals the result again with opts.
// It is how a message is moved to a new passphrase or cipher.
func ResealMessage(data []byte, oldKP KeyProvider, opts SealOptions) ([]byte, error) {
	msg, err := OpenMessage(data, oldKP)
	if err != nil {
		return nil, err
	}
	return SealMessage(msg, opts)
}

// MultiKeyProvider tries multiple key providers in order when opening.
// The first provider is used for new envelopes.
type MultiKeyProvider struct {
	providers []KeyProvider
}

// NewMultiKeyProvider creates a new multi-key provider
func NewMultiKeyProvider(providers ...KeyProvider) (*MultiKeyProvider, error) {
	if len(providers) == 0 {
		return nil, errors.New("at least one key provider required")
	}
	return &MultiKeyProvider{providers: providers}, nil
}

// DeriveKey uses the primary provider
func (m *MultiKeyProvider) DeriveKey(salt []byte, params KDFParams) ([]byte, error) {
	return m.providers[0].DeriveKey(salt, params)
}

// Params uses the primary provider
func (m *MultiKeyProvider) Params() KDFParams {
	return m.providers[0].Params()
}

// GenerateSalt uses the primary provider
func (m *MultiKeyProvider) GenerateSalt() ([]byte, error) {
	return m.providers[0].GenerateSalt()
}

func (m *MultiKeyProvider) open(header envelopeHeader, prefix, body []byte) ([]byte, error) {
	var lastErr error
	for _, provider := range m.providers {
		plaintext, err := decryptBody(header, prefix, body, provider)
		if err == nil {
			return plaintext, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("all key providers failed: %w", lastErr)
}
