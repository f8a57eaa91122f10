package pngchunk

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"os"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// DefaultSaltSize is the salt length used for new envelopes.
const DefaultSaltSize = 16

// DefaultArgon2idParams returns the parameters used when none are given.
func DefaultArgon2idParams() KDFParams {
	return KDFParams{
		KDF:         KDFArgon2id,
		Iterations:  3,
		Memory:      64 * 1024, // 64 MB
		Parallelism: 4,
		KeySize:     32,
	}
}

// DefaultPBKDF2Params returns PBKDF2-SHA256 parameters.
func DefaultPBKDF2Params() KDFParams {
	return KDFParams{
		KDF:        KDFPBKDF2SHA256,
		Iterations: 600000,
		KeySize:    32,
	}
}

// deriveKey runs the derivation described by params.
func deriveKey(passphrase, salt []byte, params KDFParams) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("passphrase cannot be empty")
	}
	if len(salt) == 0 {
		return nil, errors.New("salt cannot be empty")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var hashFunc func() hash.Hash
	switch params.KDF {
	case KDFArgon2id:
		return argon2.IDKey(passphrase, salt, params.Iterations, params.Memory, params.Parallelism, params.KeySize), nil
	case KDFPBKDF2SHA256:
		hashFunc = sha256.New
	case KDFPBKDF2SHA512:
		hashFunc = sha512.New
	}
	return pbkdf2.Key(passphrase, salt, int(params.Iterations), int(params.KeySize), hashFunc), nil
}

func generateSalt(size int) ([]byte, error) {
	salt := make([]byte, size)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// PasswordKeyProvider implements KeyProvider using password-based key derivation
type PasswordKeyProvider struct {
	password []byte
	params   KDFParams
}

// NewPasswordKeyProvider creates a new password-based key provider. Zero
// fields in params fall back to DefaultArgon2idParams.
func NewPasswordKeyProvider(password []byte, params KDFParams) *PasswordKeyProvider {
	defaults := DefaultArgon2idParams()
	if params.KDF != KDFArgon2id {
		defaults = DefaultPBKDF2Params()
		defaults.KDF = params.KDF
	}
	if params.Iterations == 0 {
		params.Iterations = defaults.Iterations
	}
	if params.Memory == 0 {
		params.Memory = defaults.Memory
	}
	if params.Parallelism == 0 {
		params.Parallelism = defaults.Parallelism
	}
	if params.KeySize == 0 {
		params.KeySize = defaults.KeySize
	}

	return &PasswordKeyProvider{
		password: password,
		params:   params,
	}
}

// DeriveKey derives an encryption key from the password and salt. The
// params recorded in an envelope take precedence over the provider's own.
func (p *PasswordKeyProvider) DeriveKey(salt []byte, params KDFParams) ([]byte, error) {
	return deriveKey(p.password, salt, params)
}

// Params returns the parameters used for new envelopes.
func (p *PasswordKeyProvider) Params() KDFParams {
	return p.params
}

// GenerateSalt generates a new random salt
func (p *PasswordKeyProvider) GenerateSalt() ([]byte, error) {
	return generateSalt(DefaultSaltSize)
}

// EnvKeyProvider implements KeyProvider with a passphrase read from an
// environment variable at derivation time.
type EnvKeyProvider struct {
	envVar string
	params KDFParams
}

// NewEnvKeyProvider creates a new environment variable key provider
func NewEnvKeyProvider(envVar string) *EnvKeyProvider {
	return &EnvKeyProvider{
		envVar: envVar,
		params: DefaultArgon2idParams(),
	}
}

// WithParams returns a copy of the provider that uses params for new envelopes.
func (e *EnvKeyProvider) WithParams(params KDFParams) *EnvKeyProvider {
	return &EnvKeyProvider{envVar: e.envVar, params: params}
}

// DeriveKey derives the key from the passphrase held in the environment.
func (e *EnvKeyProvider) DeriveKey(salt []byte, params KDFParams) ([]byte, error) {
	passphrase := os.Getenv(e.envVar)
	if passphrase == "" {
		return nil, fmt.Errorf("environment variable %s not set", e.envVar)
	}
	return deriveKey([]byte(passphrase), salt, params)
}

// Params returns the parameters used for new envelopes.
func (e *EnvKeyProvider) Params() KDFParams {
	return e.params
}

// GenerateSalt generates a new random salt
func (e *EnvKeyProvider) GenerateSalt() ([]byte, error) {
	return generateSalt(DefaultSaltSize)
}
