package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Store reads and persists source files
type Store interface {
	Read(file string) (string, error)
	Write(file, text string) error
}

// FileStore is a Store on the local filesystem. Relative names resolve against Root.
type FileStore struct {
	Root string
}

// NewFileStore creates a FileStore rooted at root
func NewFileStore(root string) *FileStore {
	return &FileStore{Root: root}
}

func (f *FileStore) path(file string) string {
	if filepath.IsAbs(file) || f.Root == "" {
		return filepath.Clean(file)
	}
	return filepath.Join(f.Root, file)
}

// Read returns the file's contents
func (f *FileStore) Read(file string) (string, error) {
	data, err := os.ReadFile(f.path(file))
	if err != nil {
		return "", fmt.Errorf("failed to read source file: %w", err)
	}
	return string(data), nil
}

// Write replaces the file's contents through a temp file and rename
func (f *FileStore) Write(file, text string) error {
	path := f.path(file)
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".patternsync-*")
	if err != nil {
		return fmt.Errorf("failed to write source file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write source file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write source file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return fmt.Errorf("failed to write source file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write source file: %w", err)
	}
	return nil
}

// Buffers overlays open in-memory documents on a backing Store. Reads prefer
// the open buffer; writes update the buffer and persist to the backing store.
type Buffers struct {
	mu      sync.RWMutex
	open    map[string]string
	backing Store
}

// NewBuffers creates an overlay over backing
func NewBuffers(backing Store) *Buffers {
	return &Buffers{open: make(map[string]string), backing: backing}
}

// Update records the current text of an open document
func (b *Buffers) Update(file, text string) {
	b.mu.Lock()
	b.open[file] = text
	b.mu.Unlock()
}

// Close forgets an open document
func (b *Buffers) Close(file string) {
	b.mu.Lock()
	delete(b.open, file)
	b.mu.Unlock()
}

// Text returns the open text of file
func (b *Buffers) Text(file string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	text, ok := b.open[file]
	return text, ok
}

// Files lists open documents in name order
func (b *Buffers) Files() []string {
	b.mu.RLock()
	files := make([]string, 0, len(b.open))
	for f := range b.open {
		files = append(files, f)
	}
	b.mu.RUnlock()
	sort.Strings(files)
	return files
}

// Read implements Store
func (b *Buffers) Read(file string) (string, error) {
	if text, ok := b.Text(file); ok {
		return text, nil
	}
	return b.backing.Read(file)
}

// Write implements Store
func (b *Buffers) Write(file, text string) error {
	if err := b.backing.Write(file, text); err != nil {
		return err
	}
	b.mu.Lock()
	if _, ok := b.open[file]; ok {
		b.open[file] = text
	}
	b.mu.Unlock()
	return nil
}
