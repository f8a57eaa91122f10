package pngchunk

import (
	"errors"
	"fmt"
	"strings"
)

// CipherSuite selects how a sealed message body is encrypted.
type CipherSuite uint8

const (
	// CipherNone stores the body unencrypted
	CipherNone CipherSuite = iota
	// CipherAES256GCM uses AES-256 with Galois/Counter Mode
	CipherAES256GCM
	// CipherChaCha20Poly1305 uses ChaCha20 stream cipher with Poly1305 MAC
	CipherChaCha20Poly1305
)

// String returns the string representation of the cipher suite
func (c CipherSuite) String() string {
	switch c {
	case CipherNone:
		return "none"
	case CipherAES256GCM:
		return "aes-256-gcm"
	case CipherChaCha20Poly1305:
		return "chacha20-poly1305"
	default:
		return "unknown"
	}
}

// ParseCipherSuite is the inverse of CipherSuite.String.
func ParseCipherSuite(s string) (CipherSuite, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CipherNone, nil
	case "aes-256-gcm", "aes":
		return CipherAES256GCM, nil
	case "chacha20-poly1305", "chacha":
		return CipherChaCha20Poly1305, nil
	}
	return 0, &ValidationError{Field: "cipher", Value: s, Message: "unknown cipher suite", Err: ErrUnsupportedCipher}
}

// Compression selects how a sealed message body is compressed.
type Compression uint8

const (
	// CompressionNone stores the body as is
	CompressionNone Compression = iota
	// CompressionZlib uses zlib, the same codec PNG uses for zTXt chunks
	CompressionZlib
	// CompressionLZ4 uses the LZ4 frame format
	CompressionLZ4
)

// String returns the string representation of the compression codec
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZlib:
		return "zlib"
	case CompressionLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

// ParseCompression is the inverse of Compression.String.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "zlib":
		return CompressionZlib, nil
	case "lz4":
		return CompressionLZ4, nil
	}
	return 0, &ValidationError{Field: "compression", Value: s, Message: "unknown compression", Err: ErrUnsupportedCodec}
}

// KDF identifies the key derivation function recorded in a sealed envelope.
type KDF uint8

const (
	// KDFArgon2id is the default, memory-hard derivation
	KDFArgon2id KDF = iota
	// KDFPBKDF2SHA256 uses PBKDF2 with HMAC-SHA256
	KDFPBKDF2SHA256
	// KDFPBKDF2SHA512 uses PBKDF2 with HMAC-SHA512
	KDFPBKDF2SHA512
)

func (k KDF) String() string {
	switch k {
	case KDFArgon2id:
		return "argon2id"
	case KDFPBKDF2SHA256:
		return "pbkdf2-sha256"
	case KDFPBKDF2SHA512:
		return "pbkdf2-sha512"
	default:
		return fmt.Sprintf("KDF(%d)", k)
	}
}

// KDFParams holds the cost parameters of a key derivation. They travel with
// the envelope so a message can be opened with only the passphrase.
type KDFParams struct {
	KDF         KDF    `cbor:"1,keyasint"`
	Iterations  uint32 `cbor:"2,keyasint"`
	Memory      uint32 `cbor:"3,keyasint,omitempty"` // KiB, Argon2id only
	Parallelism uint8  `cbor:"4,keyasint,omitempty"` // Argon2id only
	KeySize     uint32 `cbor:"5,keyasint"`
}

// Upper bounds on key derivation cost. Envelopes carry their own
// parameters, so these cap the work a crafted file can request.
const (
	maxArgon2idIterations  = 16
	maxArgon2idMemory      = 1024 * 1024 // KiB
	maxArgon2idParallelism = 64
	maxPBKDF2Iterations    = 10_000_000
)

// Validate checks the parameters against sane bounds.
func (p KDFParams) Validate() error {
	if p.KeySize != 32 {
		return &ValidationError{Field: "key_size", Value: p.KeySize, Message: "key size must be 32 bytes"}
	}
	switch p.KDF {
	case KDFArgon2id:
		if p.Iterations < 1 || p.Iterations > maxArgon2idIterations {
			return &ValidationError{Field: "iterations", Value: p.Iterations,
				Message: fmt.Sprintf("argon2id iterations must be between 1 and %d", maxArgon2idIterations)}
		}
		if p.Memory < 8*1024 || p.Memory > maxArgon2idMemory {
			return &ValidationError{Field: "memory", Value: p.Memory, Message: "argon2id memory must be between 8 MiB and 1 GiB"}
		}
		if p.Parallelism < 1 || p.Parallelism > maxArgon2idParallelism {
			return &ValidationError{Field: "parallelism", Value: p.Parallelism,
				Message: fmt.Sprintf("argon2id parallelism must be between 1 and %d", maxArgon2idParallelism)}
		}
	case KDFPBKDF2SHA256, KDFPBKDF2SHA512:
		if p.Iterations < 10000 || p.Iterations > maxPBKDF2Iterations {
			return &ValidationError{Field: "iterations", Value: p.Iterations,
				Message: fmt.Sprintf("pbkdf2 iterations must be between 10000 and %d", maxPBKDF2Iterations)}
		}
	default:
		return &ValidationError{Field: "kdf", Value: p.KDF, Message: "unknown key derivation function"}
	}
	return nil
}

// KeyProvider supplies message encryption keys.
type KeyProvider interface {
	// DeriveKey derives a key from salt using params.
	DeriveKey(salt []byte, params KDFParams) ([]byte, error)

	// Params returns the parameters used for new envelopes.
	Params() KDFParams

	// GenerateSalt generates a new random salt
	GenerateSalt() ([]byte, error)
}

// SealOptions controls how SealMessage wraps a message.
type SealOptions struct {
	Compression Compression

	Cipher CipherSuite

	// KeyProvider is required when Cipher is not CipherNone.
	KeyProvider KeyProvider

	// MaxMessageSize bounds the plaintext; 0 means DefaultMaxMessageSize,
	// which is also the largest accepted value.
	MaxMessageSize int
}

// Validate checks if the options are valid
func (o *SealOptions) Validate() error {
	if o == nil {
		return errors.New("seal options cannot be nil")
	}
	if o.Compression > CompressionLZ4 {
		return fmt.Errorf("compression %d: %w", o.Compression, ErrUnsupportedCodec)
	}
	if o.Cipher > CipherChaCha20Poly1305 {
		return fmt.Errorf("cipher %d: %w", o.Cipher, ErrUnsupportedCipher)
	}
	if o.Cipher != CipherNone && o.KeyProvider == nil {
		return ErrNilKeyProvider
	}
	if o.MaxMessageSize < 0 || o.MaxMessageSize > DefaultMaxMessageSize {
		return &ValidationError{
			Field:   "max_message_size",
			Value:   o.MaxMessageSize,
			Message: fmt.Sprintf("must be between 0 and %d", DefaultMaxMessageSize),
		}
	}
	return nil
}

// Sealed reports whether these options produce an envelope at all. With no
// compression and no cipher the message is stored verbatim.
func (o *SealOptions) Sealed() bool {
	return o.Compression != CompressionNone || o.Cipher != CipherNone
}
