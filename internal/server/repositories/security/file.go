package security

import (
	"context"
	"errors"
	"os"

	"github.com/dmitrijs2005/secledger/internal/filex"
)

// FileBackend stores the document in a local file. Writes go to a
// temporary file in the same directory that is renamed over the target.
type FileBackend struct {
	path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) Load(context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

func (b *FileBackend) Save(_ context.Context, data []byte) error {
	return filex.WriteFileAtomic(b.path, data, 0o600)
}
