package main

import (
	"os"

	"github.com/absfs/absfs"
)

// osFS serves files from the host filesystem. Paths are used as given,
// relative to the working directory.
type osFS struct{}

func (osFS) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return f, nil
}
