package pngchunk

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// CipherEngine provides AEAD encryption/decryption of message bodies
type CipherEngine interface {
	// Seal encrypts plaintext, binding it to additional data
	Seal(nonce, plaintext, additionalData []byte) ([]byte, error)

	// Open decrypts ciphertext produced by Seal
	Open(nonce, ciphertext, additionalData []byte) ([]byte, error)

	// NonceSize returns the size of nonces in bytes
	NonceSize() int
}

// aeadEngine adapts a cipher.AEAD to CipherEngine.
type aeadEngine struct {
	suite CipherSuite
	aead  cipher.AEAD
}

// NewCipherEngine creates a new cipher engine for the cipher suite. The key
// must be 32 bytes.
func NewCipherEngine(suite CipherSuite, key []byte) (CipherEngine, error) {
	if err := ValidateKey(key, 32); err != nil {
		return nil, err
	}

	switch suite {
	case CipherAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create AES cipher: %w", err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCM: %w", err)
		}
		return &aeadEngine{suite: suite, aead: aead}, nil
	case CipherChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create ChaCha20-Poly1305 cipher: %w", err)
		}
		return &aeadEngine{suite: suite, aead: aead}, nil
	default:
		return nil, fmt.Errorf("%s: %w", suite, ErrUnsupportedCipher)
	}
}

func (e *aeadEngine) Seal(nonce, plaintext, additionalData []byte) ([]byte, error) {
	if len(nonce) != e.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", e.NonceSize(), len(nonce))
	}
	return e.aead.Seal(nil, nonce, plaintext, additionalData), nil
}

func (e *aeadEngine) Open(nonce, ciphertext, additionalData []byte) ([]byte, error) {
	if len(nonce) != e.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", e.NonceSize(), len(nonce))
	}
	if err := ValidateBuffer(ciphertext, "ciphertext", e.aead.Overhead()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func (e *aeadEngine) NonceSize() int {
	return e.aead.NonceSize()
}

// GenerateNonce generates a random nonce for the given cipher
func GenerateNonce(suite CipherSuite) ([]byte, error) {
	var nonceSize int

	switch suite {
	case CipherAES256GCM:
		nonceSize = 12 // GCM standard nonce size
	case CipherChaCha20Poly1305:
		nonceSize = chacha20poly1305.NonceSize
	default:
		return nil, ErrUnsupportedCipher
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return nonce, nil
}
