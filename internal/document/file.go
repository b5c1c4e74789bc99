package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// File is a Document backed by a file on disk. Edits are written through
// atomically; the in-memory view only changes once the write succeeded.
type File struct {
	*Buffer
	mode os.FileMode
}

// OpenFile loads the file at path.
func OpenFile(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("opening document: %w", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	return &File{Buffer: NewBuffer(abs, string(data)), mode: info.Mode().Perm()}, nil
}

// Reload re-reads the file from disk, discarding the in-memory view.
func (f *File) Reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}
	f.Buffer = NewBuffer(f.path, string(data))
	return nil
}

// ApplyBatch implements Document.
func (f *File) ApplyBatch(ctx context.Context, edits []Edit) error {
	text, err := f.render(ctx, edits)
	if err != nil {
		return err
	}
	if err := writeAtomic(f.path, []byte(text), f.mode); err != nil {
		return err
	}
	f.Buffer = NewBuffer(f.path, text)
	return nil
}

// writeAtomic writes data to a temp file in the same directory and renames
// it over path.
func writeAtomic(path string, data []byte, mode os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".ilovelie-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err = os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}
