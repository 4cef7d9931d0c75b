package fs

import (
	"fmt"
	"os"
	"path/filepath"

	"poolview/pkg/common/compress"

	"github.com/spf13/afero"
)

// FileSystem wraps an afero filesystem rooted at a .runtime directory.
// Objects are stored compressed and transparently decompressed on read.
type FileSystem struct {
	fs          afero.Fs
	runtimePath string
	compressor  compress.Compressor
}

// NewWithBasePath creates a filesystem whose runtime directory lives under basePath.
func NewWithBasePath(basePath string) (*FileSystem, error) {
	return NewWithFs(afero.NewOsFs(), basePath, compress.NewDefaultCompressor())
}

// NewWithFs is the general constructor; tests pass afero.NewMemMapFs().
func NewWithFs(fs afero.Fs, basePath string, compressor compress.Compressor) (*FileSystem, error) {
	runtimePath := filepath.Join(basePath, ".runtime")
	if err := fs.MkdirAll(runtimePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}
	return &FileSystem{fs: fs, runtimePath: runtimePath, compressor: compressor}, nil
}

// GetRuntimePath returns the .runtime directory path
func (fsys *FileSystem) GetRuntimePath() string {
	return fsys.runtimePath
}

// GetCompressor returns the current compressor
func (fsys *FileSystem) GetCompressor() compress.Compressor {
	return fsys.compressor
}

func (fsys *FileSystem) objectPath(name string) string {
	return filepath.Join(fsys.runtimePath, name)
}

// WriteObject compresses data and replaces name atomically via a temp file and rename.
func (fsys *FileSystem) WriteObject(name string, data []byte) error {
	out := data
	if compress.IsCompressed(data) == compress.None {
		c, err := fsys.compressor.Compress(data)
		if err != nil {
			return fmt.Errorf("failed to compress data: %w", err)
		}
		out = c
	}
	final := fsys.objectPath(name)
	tmp := final + ".tmp"
	if err := afero.WriteFile(fsys.fs, tmp, out, 0644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := fsys.fs.Rename(tmp, final); err != nil {
		_ = fsys.fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// ReadObject reads name and decompresses it according to its magic bytes.
func (fsys *FileSystem) ReadObject(name string) ([]byte, error) {
	raw, err := afero.ReadFile(fsys.fs, fsys.objectPath(name))
	if err != nil {
		return nil, err
	}
	if ct := compress.IsCompressed(raw); ct != compress.None {
		return compress.DecompressWithType(raw, ct)
	}
	return raw, nil
}

// ObjectExists checks if an object file exists
func (fsys *FileSystem) ObjectExists(name string) (bool, error) {
	return afero.Exists(fsys.fs, fsys.objectPath(name))
}

// DeleteObject removes name; a missing object is not an error.
func (fsys *FileSystem) DeleteObject(name string) error {
	err := fsys.fs.Remove(fsys.objectPath(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// GetObjectSize returns the on-disk (compressed) size of name.
func (fsys *FileSystem) GetObjectSize(name string) (int64, error) {
	info, err := fsys.fs.Stat(fsys.objectPath(name))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
