package pngchunk

import (
	"fmt"
)

// Input validation helpers shared by the library and the command line tool.

// ValidateBuffer checks if a buffer is valid (non-nil and has expected size)
func ValidateBuffer(buf []byte, name string, minSize int) error {
	if buf == nil {
		return &ValidationError{
			Field:   name,
			Message: "buffer cannot be nil",
		}
	}
	if minSize > 0 && len(buf) < minSize {
		return &ValidationError{
			Field:   name,
			Value:   len(buf),
			Message: fmt.Sprintf("buffer too small: got %d bytes, need at least %d bytes", len(buf), minSize),
		}
	}
	return nil
}

// ValidateKey checks if a key has the correct size
func ValidateKey(key []byte, expectedSize int) error {
	if key == nil {
		return &ValidationError{
			Field:   "key",
			Message: "key cannot be nil",
		}
	}
	if len(key) != expectedSize {
		return &ValidationError{
			Field:   "key",
			Value:   len(key),
			Message: fmt.Sprintf("invalid key size: got %d bytes, expected %d bytes", len(key), expectedSize),
		}
	}
	return nil
}

// ValidateMessageSize checks that a message fits both the caller's limit and
// the 2^31-1 byte ceiling PNG places on chunk data.
func ValidateMessageSize(msg []byte, limit int) error {
	if limit <= 0 || limit > MaxChunkDataSize {
		limit = MaxChunkDataSize
	}
	if len(msg) > limit {
		return &ValidationError{
			Field:   "message",
			Value:   len(msg),
			Message: fmt.Sprintf("message too large: got %d bytes, maximum is %d", len(msg), limit),
		}
	}
	return nil
}

// ValidateFilePath checks if a file path is valid (not empty)
func ValidateFilePath(path string) error {
	if path == "" {
		return &ValidationError{
			Field:   "path",
			Message: "file path cannot be empty",
		}
	}
	return nil
}
