package main

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/absfs/pngchunk"
)

// usageError marks mistakes in the command line itself. They exit with
// status 2 instead of 1.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// app carries everything a subcommand touches outside of the library.
type app struct {
	fs     pngchunk.FileSystem
	stdout io.Writer
	getenv func(string) string

	// logger is built from the config when nil.
	logger *zap.Logger
}

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	configPath string
	logLevel   string
}

func (c *commonFlags) add(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.configPath, "config", "", "path to a YAML config file (default: $"+configEnvVar+")")
	flagSet.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// setup loads the config and the logger once flags are parsed.
func (a *app) setup(common *commonFlags) (*Config, *zap.SugaredLogger, error) {
	config := DefaultConfig()
	path := common.configPath
	if path == "" {
		path = a.getenv(configEnvVar)
	}
	if path != "" {
		var err error
		if config, err = LoadConfig(a.fs, path); err != nil {
			return nil, nil, err
		}
	}
	if common.logLevel != "" {
		config.LogLevel = common.logLevel
	}

	logger := a.logger
	if logger == nil {
		var err error
		if logger, err = newLogger(config.LogLevel); err != nil {
			return nil, nil, usagef("%v", err)
		}
	}
	return config, logger.Sugar(), nil
}

// parseFlags parses args and rejects stray positional arguments.
func parseFlags(flagSet *pflag.FlagSet, args []string) error {
	if err := flagSet.Parse(args); err != nil {
		return &usageError{err: err}
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return usagef("unexpected argument: %s", rest[0])
	}
	return nil
}

// keyProvider reads the passphrase from envVar through a.getenv. It returns
// nil when the variable is empty.
func (a *app) keyProvider(envVar string, params pngchunk.KDFParams) pngchunk.KeyProvider {
	passphrase := a.getenv(envVar)
	if passphrase == "" {
		return nil
	}
	return pngchunk.NewPasswordKeyProvider([]byte(passphrase), params)
}

func (a *app) encode(args []string) error {
	var common commonFlags
	var filePath, chunkType, message, outputPath string
	var compression, cipher, passphraseEnv string
	var beforeEnd bool

	flagSet := pflag.NewFlagSet("encode", pflag.ContinueOnError)
	flagSet.StringVarP(&filePath, "file", "f", "", "input PNG file")
	flagSet.StringVarP(&chunkType, "chunk-type", "c", "", "chunk type to append, e.g. RuSt")
	flagSet.StringVarP(&message, "message", "m", "", "message to hide")
	flagSet.StringVarP(&outputPath, "output", "o", "", "output file (default: <output_dir>/<uuid>.png)")
	flagSet.StringVar(&compression, "compress", "", "compression: none, zlib, lz4")
	flagSet.StringVar(&cipher, "cipher", "", "encryption: none, aes-256-gcm, chacha20-poly1305")
	flagSet.StringVar(&passphraseEnv, "passphrase-env", "", "environment variable holding the passphrase")
	flagSet.BoolVar(&beforeEnd, "before-end", false, "insert the chunk before IEND instead of appending it")
	common.add(flagSet)

	if err := parseFlags(flagSet, args); err != nil {
		return err
	}
	config, log, err := a.setup(&common)
	if err != nil {
		return err
	}
	defer log.Sync()

	if filePath == "" {
		return usagef("encode: --file is required")
	}
	chunkType = config.chunkTypeOr(chunkType)
	if chunkType == "" {
		return usagef("encode: --chunk-type is required")
	}
	ct, err := pngchunk.ParseChunkType(chunkType)
	if err != nil {
		return &usageError{err: err}
	}

	opts, err := a.sealOptions(config, compression, cipher, passphraseEnv)
	if err != nil {
		return err
	}

	p, err := pngchunk.Load(a.fs, filePath)
	if err != nil {
		return err
	}
	log.Debugw("loaded image", "path", filePath, "chunks", len(p.Chunks()))

	data, err := pngchunk.SealMessage([]byte(message), opts)
	if err != nil {
		return err
	}
	chunk := pngchunk.NewChunk(ct, data)
	if beforeEnd || config.BeforeEnd {
		p.InsertBeforeEnd(chunk)
	} else {
		p.AppendChunk(chunk)
	}

	if outputPath == "" {
		outputPath = pngchunk.OutputPath(config.OutputDir)
	}
	if err := pngchunk.Save(a.fs, outputPath, p); err != nil {
		return err
	}
	log.Infow("encoded message",
		"chunk_type", ct.String(),
		"bytes", chunk.Length(),
		"compression", opts.Compression.String(),
		"cipher", opts.Cipher.String(),
		"output", outputPath,
	)
	fmt.Fprintln(a.stdout, outputPath)
	return nil
}

func (a *app) sealOptions(config *Config, compression, cipher, passphraseEnv string) (pngchunk.SealOptions, error) {
	var opts pngchunk.SealOptions
	var err error

	if compression == "" {
		compression = config.Compression
	}
	if opts.Compression, err = pngchunk.ParseCompression(compression); err != nil {
		return opts, &usageError{err: err}
	}
	if cipher == "" {
		cipher = config.Cipher
	}
	if opts.Cipher, err = pngchunk.ParseCipherSuite(cipher); err != nil {
		return opts, &usageError{err: err}
	}
	if opts.Cipher == pngchunk.CipherNone {
		return opts, nil
	}

	if passphraseEnv == "" {
		passphraseEnv = config.PassphraseEnv
	}
	params, err := config.KDF.Params()
	if err != nil {
		return opts, err
	}
	if opts.KeyProvider = a.keyProvider(passphraseEnv, params); opts.KeyProvider == nil {
		return opts, usagef("cipher %s needs a passphrase in $%s", opts.Cipher, passphraseEnv)
	}
	return opts, nil
}

func (a *app) decode(args []string) error {
	var common commonFlags
	var filePath, chunkType, passphraseEnv string

	flagSet := pflag.NewFlagSet("decode", pflag.ContinueOnError)
	flagSet.StringVarP(&filePath, "file", "f", "", "input PNG file")
	flagSet.StringVarP(&chunkType, "chunk-type", "c", "", "chunk type to read")
	flagSet.StringVar(&passphraseEnv, "passphrase-env", "", "environment variable holding the passphrase")
	common.add(flagSet)

	if err := parseFlags(flagSet, args); err != nil {
		return err
	}
	config, log, err := a.setup(&common)
	if err != nil {
		return err
	}
	defer log.Sync()

	if filePath == "" {
		return usagef("decode: --file is required")
	}
	chunkType = config.chunkTypeOr(chunkType)
	if chunkType == "" {
		return usagef("decode: --chunk-type is required")
	}

	p, err := pngchunk.Load(a.fs, filePath)
	if err != nil {
		return err
	}
	chunk := p.ChunkByType(chunkType)
	if chunk == nil {
		return fmt.Errorf("no %s chunk in %s: %w", chunkType, filePath, pngchunk.ErrChunkNotFound)
	}

	if passphraseEnv == "" {
		passphraseEnv = config.PassphraseEnv
	}
	kp := a.keyProvider(passphraseEnv, pngchunk.KDFParams{})

	sealed := pngchunk.IsSealed(chunk.Data())
	msg, err := pngchunk.OpenMessage(chunk.Data(), kp)
	if err != nil {
		return err
	}
	if !utf8.Valid(msg) {
		return fmt.Errorf("%s chunk: %w", chunkType, pngchunk.ErrNotUTF8Text)
	}
	log.Infow("decoded message", "chunk_type", chunkType, "bytes", len(msg), "sealed", sealed)

	fmt.Fprintf(a.stdout, "Decoded message:\n%s\n", msg)
	return nil
}

func (a *app) remove(args []string) error {
	var common commonFlags
	var filePath, chunkType, outputPath string

	flagSet := pflag.NewFlagSet("remove", pflag.ContinueOnError)
	flagSet.StringVarP(&filePath, "file", "f", "", "input PNG file")
	flagSet.StringVarP(&chunkType, "chunk-type", "c", "", "chunk type to remove (first occurrence)")
	flagSet.StringVarP(&outputPath, "output", "o", "", "output file (default: overwrite the input)")
	common.add(flagSet)

	if err := parseFlags(flagSet, args); err != nil {
		return err
	}
	config, log, err := a.setup(&common)
	if err != nil {
		return err
	}
	defer log.Sync()

	if filePath == "" {
		return usagef("remove: --file is required")
	}
	chunkType = config.chunkTypeOr(chunkType)
	if chunkType == "" {
		return usagef("remove: --chunk-type is required")
	}

	p, err := pngchunk.Load(a.fs, filePath)
	if err != nil {
		return err
	}
	removed, err := p.RemoveChunk(chunkType)
	if err != nil {
		return fmt.Errorf("%s: %w", filePath, err)
	}

	if outputPath == "" {
		outputPath = filePath
	}
	if err := pngchunk.Save(a.fs, outputPath, p); err != nil {
		return err
	}
	log.Infow("removed chunk", "chunk", removed.String(), "output", outputPath)
	fmt.Fprintf(a.stdout, "Removed %s\n", removed)
	return nil
}

func (a *app) print(args []string) error {
	var common commonFlags
	var filePath string

	flagSet := pflag.NewFlagSet("print", pflag.ContinueOnError)
	flagSet.StringVarP(&filePath, "file", "f", "", "input PNG file")
	common.add(flagSet)

	if err := parseFlags(flagSet, args); err != nil {
		return err
	}
	_, log, err := a.setup(&common)
	if err != nil {
		return err
	}
	defer log.Sync()

	if filePath == "" {
		return usagef("print: --file is required")
	}

	p, err := pngchunk.Load(a.fs, filePath)
	if err != nil {
		return err
	}
	fmt.Fprint(a.stdout, p.String())
	return nil
}

// run dispatches args[0] to a subcommand.
func (a *app) run(args []string) error {
	if len(args) == 0 {
		return usagef("missing command")
	}

	switch args[0] {
	case "encode":
		return a.encode(args[1:])
	case "decode":
		return a.decode(args[1:])
	case "remove":
		return a.remove(args[1:])
	case "print":
		return a.print(args[1:])
	case "version", "--version":
		fmt.Fprintf(a.stdout, "pngchunk %s\n", Version)
		return nil
	case "help", "-h", "--help":
		printUsage(a.stdout)
		return nil
	}
	return usagef("unknown command %q", args[0])
}

func isUsageError(err error) bool {
	var ue *usageError
	return errors.As(err, &ue)
}
