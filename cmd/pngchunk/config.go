package main

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/absfs/pngchunk"
)

// configEnvVar names the environment variable that points at a config file
// when --config is not given.
const configEnvVar = "PNGCHUNK_CONFIG"

// defaultPassphraseEnv is where encode and decode look for a passphrase.
const defaultPassphraseEnv = "PNGCHUNK_PASSPHRASE"

// Config holds the defaults of the command line tool. Every field can be
// overridden by a flag.
type Config struct {
	// LogLevel is a zap level name: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// OutputDir receives encoded files when no output path is given.
	OutputDir string `yaml:"output_dir"`

	// ChunkType is used when -c is omitted. It is parsed strictly on load.
	ChunkType pngchunk.ChunkType `yaml:"chunk_type"`

	// Compression and Cipher select how encode seals messages.
	Compression string `yaml:"compression"`
	Cipher      string `yaml:"cipher"`

	// PassphraseEnv names the environment variable holding the passphrase.
	PassphraseEnv string `yaml:"passphrase_env"`

	// BeforeEnd places new chunks before IEND instead of after it.
	BeforeEnd bool `yaml:"before_end"`

	KDF KDFConfig `yaml:"kdf"`
}

// KDFConfig configures key derivation for new encrypted messages.
type KDFConfig struct {
	// Algorithm is argon2id, pbkdf2-sha256 or pbkdf2-sha512.
	Algorithm   string `yaml:"algorithm"`
	Iterations  uint32 `yaml:"iterations"`
	MemoryKiB   uint32 `yaml:"memory_kib"`
	Parallelism uint8  `yaml:"parallelism"`
}

// DefaultConfig returns the configuration used without a config file.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:      "warn",
		OutputDir:     ".",
		Compression:   "none",
		Cipher:        "none",
		PassphraseEnv: defaultPassphraseEnv,
		KDF: KDFConfig{
			Algorithm: "argon2id",
		},
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
func LoadConfig(fs pngchunk.FileSystem, path string) (*Config, error) {
	data, err := pngchunk.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

// Validate checks every field that has a closed set of values.
func (c *Config) Validate() error {
	if _, err := pngchunk.ParseCompression(c.Compression); err != nil {
		return err
	}
	if _, err := pngchunk.ParseCipherSuite(c.Cipher); err != nil {
		return err
	}
	if _, err := c.KDF.Params(); err != nil {
		return err
	}
	return nil
}

// chunkTypeOr returns flag, or the configured chunk type when flag is empty.
func (c *Config) chunkTypeOr(flag string) string {
	if flag == "" && c.ChunkType.IsValid() {
		return c.ChunkType.String()
	}
	return flag
}

// Params converts the config into KDF parameters. Zero values take the
// library defaults for the chosen algorithm.
func (k KDFConfig) Params() (pngchunk.KDFParams, error) {
	var params pngchunk.KDFParams
	switch k.Algorithm {
	case "", "argon2id":
		params = pngchunk.DefaultArgon2idParams()
	case "pbkdf2-sha256":
		params = pngchunk.DefaultPBKDF2Params()
	case "pbkdf2-sha512":
		params = pngchunk.DefaultPBKDF2Params()
		params.KDF = pngchunk.KDFPBKDF2SHA512
	default:
		return params, pngchunk.NewValidationError("kdf.algorithm", k.Algorithm, "unknown key derivation algorithm")
	}

	if k.Iterations != 0 {
		params.Iterations = k.Iterations
	}
	if k.MemoryKiB != 0 {
		params.Memory = k.MemoryKiB
	}
	if k.Parallelism != 0 {
		params.Parallelism = k.Parallelism
	}
	return params, params.Validate()
}
