package findings

import (
	"os"
	"path/filepath"

	"github.com/aleister1102/overwatch/internal/common"
	"github.com/spf13/afero"
)

// CompletionMarker is the zero-byte file announcing that the producer has exited.
type CompletionMarker struct {
	fs   afero.Fs
	path string
}

func NewCompletionMarker(fs afero.Fs, path string) *CompletionMarker {
	return &CompletionMarker{fs: fs, path: path}
}

func (m *CompletionMarker) Path() string {
	return m.path
}

// IsDone reports whether the marker exists. Stat errors count as not done.
func (m *CompletionMarker) IsDone() bool {
	ok, err := afero.Exists(m.fs, m.path)
	return err == nil && ok
}

// Mark creates the marker, truncating any previous content.
func (m *CompletionMarker) Mark() error {
	if err := m.fs.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return common.WrapError(err, "failed to create marker directory")
	}
	f, err := m.fs.OpenFile(m.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return common.WrapError(err, "failed to create completion marker")
	}
	return f.Close()
}

// Clear removes the marker. A missing marker is not an error.
func (m *CompletionMarker) Clear() error {
	if err := m.fs.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return common.WrapError(err, "failed to remove completion marker")
	}
	return nil
}
