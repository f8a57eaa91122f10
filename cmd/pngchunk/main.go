// pngchunk hides messages in PNG chunks and reads them back.
//
// Usage:
//
//	pngchunk encode -f in.png -c RuSt -m "hello" [-o out.png]
//	pngchunk decode -f out.png -c RuSt
//	pngchunk remove -f out.png -c RuSt
//	pngchunk print  -f out.png
package main

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// Version is set with -ldflags "-X main.Version=...".
var Version = "0.1.0-dev"

func main() {
	a := &app{
		fs:     osFS{},
		stdout: os.Stdout,
		getenv: os.Getenv,
	}

	if err := a.run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if isUsageError(err) {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// newLogger builds a development-style console logger on stderr.
func newLogger(level string) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	if err := config.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	config.DisableStacktrace = true
	return config.Build()
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `pngchunk hides messages in PNG chunks.

Usage:
  pngchunk encode -f FILE -c TYPE -m MESSAGE [-o OUT] [--compress CODEC] [--cipher CIPHER]
  pngchunk decode -f FILE -c TYPE
  pngchunk remove -f FILE -c TYPE [-o OUT]
  pngchunk print  -f FILE
  pngchunk version

Encrypted messages read the passphrase from $%s (see --passphrase-env).
Defaults may be set in a YAML file passed with --config or $%s.
`, defaultPassphraseEnv, configEnvVar)
}
