// Package mmap provides read-only memory mapping of the flat array files
// that make up a Context-Fabric backing store.
package mmap

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Region is a single memory-mapped, read-only file. Backing stores are
// immutable once compiled, so Region never supports writes or resize —
// unlike a mutable mmap used by a write path, there is nothing to msync.
type Region struct {
	mu   sync.RWMutex
	file *os.File
	data []byte
	size int64
	path string
}

// Open maps path read-only. An empty file is rejected: every array file in
// a valid store declares at least its section header.
func Open(path string) (*Region, error) {
	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap: open %s: %w", path, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("mmap: stat %s: %w", path, err)
	}
	size := stat.Size()
	if size == 0 {
		file.Close()
		return nil, fmt.Errorf("mmap: %s is empty", path)
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("mmap: mmap %s: %w", path, err)
	}

	return &Region{file: file, data: data, size: size, path: path}, nil
}

// Data returns the mapped bytes. The slice is valid until Close.
func (r *Region) Data() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data
}

// Size returns the mapped region size in bytes.
func (r *Region) Size() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Path returns the backing file path.
func (r *Region) Path() string { return r.path }

// Close unmaps the region and closes the underlying file handle.
func (r *Region) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.data != nil {
		if uerr := unix.Munmap(r.data); uerr != nil {
			err = fmt.Errorf("mmap: munmap %s: %w", r.path, uerr)
		}
		r.data = nil
	}
	if r.file != nil {
		if cerr := r.file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("mmap: close %s: %w", r.path, cerr)
		}
		r.file = nil
	}
	return err
}

// Manager owns every Region opened for a single Fabric and closes them
// together, mirroring the teacher's MemoryMapManager.
type Manager struct {
	mu      sync.Mutex
	regions map[string]*Region
}

// NewManager creates an empty region manager.
func NewManager() *Manager {
	return &Manager{regions: make(map[string]*Region)}
}

// Open maps path and registers it under name, failing if name is already
// mapped.
func (m *Manager) Open(name, path string) (*Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.regions[name]; exists {
		return nil, fmt.Errorf("mmap: region %q already open", name)
	}

	region, err := Open(path)
	if err != nil {
		return nil, err
	}
	m.regions[name] = region
	return region, nil
}

// Get returns a previously opened region by name.
func (m *Manager) Get(name string) (*Region, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regions[name]
	return r, ok
}

// TotalSize returns the sum of all mapped region sizes.
func (m *Manager) TotalSize() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	for _, r := range m.regions {
		total += r.Size()
	}
	return total
}

// Close unmaps every region, returning the first error encountered.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, r := range m.regions {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.regions, name)
	}
	return firstErr
}
