package pngchunk

import (
	"fmt"
	"io"
	"os"
	"path"

	"github.com/absfs/absfs"
	"github.com/google/uuid"
)

// FileSystem is the slice of absfs.FileSystem the file helpers need. Any
// absfs filesystem (memfs, osfs, ...) satisfies it.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error)
}

var _ FileSystem = absfs.FileSystem(nil)

// ReadFile returns the full contents of name.
func ReadFile(fs FileSystem, name string) ([]byte, error) {
	if err := ValidateFilePath(name); err != nil {
		return nil, err
	}

	f, err := fs.OpenFile(name, os.O_RDONLY, 0)
	if err != nil {
		return nil, NewIOError("open", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, NewIOError("read", name, err)
	}
	return data, nil
}

// WriteFile creates or truncates name and writes data to it.
func WriteFile(fs FileSystem, name string, data []byte) error {
	if err := ValidateFilePath(name); err != nil {
		return err
	}

	f, err := fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return NewIOError("open", name, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return NewIOError("write", name, err)
	}
	if err := f.Close(); err != nil {
		return NewIOError("close", name, err)
	}
	return nil
}

// Load reads and parses the PNG stored at name.
func Load(fs FileSystem, name string) (*PNG, error) {
	data, err := ReadFile(fs, name)
	if err != nil {
		return nil, err
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return p, nil
}

// Save serializes p to name.
func Save(fs FileSystem, name string, p *PNG) error {
	return WriteFile(fs, name, p.Bytes())
}

// OutputPath returns a fresh, collision-free output file name in dir.
func OutputPath(dir string) string {
	if dir == "" {
		dir = "."
	}
	return path.Join(dir, uuid.NewString()+".png")
}
