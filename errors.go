package pngchunk

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every structured error below unwraps to one of these so
// callers can branch with errors.Is.
var (
	ErrTooShort         = errors.New("chunk too short")
	ErrLengthMismatch   = errors.New("chunk length does not match data size")
	ErrInvalidTypeCode  = errors.New("invalid chunk type code")
	ErrChecksumMismatch = errors.New("chunk crc mismatch")
	ErrBadSignature     = errors.New("bad png signature")
	ErrTrailingGarbage  = errors.New("trailing bytes after last chunk")
	ErrChunkNotFound    = errors.New("chunk not found")
	ErrNotUTF8Text      = errors.New("chunk data is not valid utf-8")

	ErrInvalidEnvelope    = errors.New("invalid message envelope")
	ErrUnsupportedVersion = errors.New("unsupported envelope version")
	ErrUnsupportedCipher  = errors.New("unsupported cipher suite")
	ErrUnsupportedCodec   = errors.New("unsupported compression")
	ErrAuthFailed         = errors.New("authentication failed - message may be corrupted or the passphrase is wrong")
	ErrPassphraseRequired = errors.New("message is encrypted and no key provider was given")
	ErrNilKeyProvider     = errors.New("key provider cannot be nil")
)

// ValidationError represents a rejected input value such as a malformed
// chunk type code or an out-of-range option.
type ValidationError struct {
	Field   string // The field or parameter that failed validation
	Value   any    // The invalid value
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// CorruptionError reports a structurally broken PNG stream. ChunkIdx is the
// ordinal of the offending chunk (-1 when the failure is not tied to one)
// and Offset is its byte position in the stream.
type CorruptionError struct {
	ChunkIdx int
	Offset   int
	Message  string
	Err      error
}

func (e *CorruptionError) Error() string {
	if e.ChunkIdx >= 0 {
		return fmt.Sprintf("corruption error: chunk %d at offset %d: %s", e.ChunkIdx, e.Offset, e.Message)
	}
	return fmt.Sprintf("corruption error: offset %d: %s", e.Offset, e.Message)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

// IOError represents a failure of the file collaborator.
type IOError struct {
	Operation string // "read", "write", "open", "close", etc.
	Path      string // File path
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("io error: %s %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("io error: %s: %s", e.Operation, e.Message)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// EnvelopeError represents a failure sealing or opening a message envelope.
type EnvelopeError struct {
	Operation string // "seal" or "open"
	Message   string
	Err       error
}

func (e *EnvelopeError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Operation, e.Message)
}

func (e *EnvelopeError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, message string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewIOError creates a new I/O error
func NewIOError(operation, path string, err error) error {
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   err.Error(),
		Err:       err,
	}
}

func newCorruptionError(idx, offset int, err error) error {
	return &CorruptionError{
		ChunkIdx: idx,
		Offset:   offset,
		Message:  err.Error(),
		Err:      err,
	}
}

func newEnvelopeError(operation string, err error) error {
	return &EnvelopeError{
		Operation: operation,
		Message:   err.Error(),
		Err:       err,
	}
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsCorruptionError checks if an error is a corruption error
func IsCorruptionError(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}

// IsIOError checks if an error is an I/O error
func IsIOError(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}

// IsEnvelopeError checks if an error is an envelope error
func IsEnvelopeError(err error) bool {
	var ee *EnvelopeError
	return errors.As(err, &ee)
}
