package forkdb

import (
	"fmt"
	"os"
	"syscall"
)

// DefaultMmapSize is the conventional size of the memory-mapped region
// reserved when a StorageHint backs the database, per §6: ~32 GiB, large
// enough that no realistic sliding window of fork candidates ever forces a
// remap, small enough not to exhaust address space on a 64-bit process.
const DefaultMmapSize = 32 << 30

// DefaultMmapPath is the conventional location of the backing file.
const DefaultMmapPath = "./fork.db"

// StorageHint reserves address space for a Database's index substrate. It
// is purely an optimization: the database's actual storage is the Go heap
// (maps and slices in multiIndex), and nothing in this package ever reads
// or writes through the mapped region. A StorageHint exists only so a
// deployment that wants to pre-size the process's memory footprint can do
// so predictably, the way the source this is modeled on reserves a fixed
// mmap region up front rather than letting the allocator grow
// incrementally. Passing one to NewWithStorageHint never changes behavior,
// only the initial capacity of the linked index's by-id map.
//
// The file is exclusively owned: Open truncates it to size, Close unmaps
// and removes it. It is never reopened across process restarts — the
// sliding window here, like the core index it hints at, is explicitly
// non-durable (§1, §5).
type StorageHint struct {
	path string
	size int64

	file *os.File
	data []byte
}

// OpenStorageHint truncates (or creates) path to size and maps it into the
// process's address space. size must be positive; callers that want the
// conventional footprint should pass DefaultMmapSize.
func OpenStorageHint(path string, size int64) (*StorageHint, error) {
	if size <= 0 {
		return nil, fmt.Errorf("forkdb: mmap size must be > 0, got %d", size)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("forkdb: open mmap backing file: %w", err)
	}

	if err := f.Truncate(size); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("forkdb: truncate mmap backing file: %w", err)
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("forkdb: mmap backing file: %w", err)
	}

	return &StorageHint{path: path, size: size, file: f, data: data}, nil
}

// Close unmaps the region, closes the file, and removes it from disk. The
// backing file never outlives the process that opened it.
func (h *StorageHint) Close() error {
	var firstErr error
	if h.data != nil {
		if err := syscall.Munmap(h.data); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("forkdb: munmap: %w", err)
		}
		h.data = nil
	}
	if h.file != nil {
		if err := h.file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("forkdb: close mmap backing file: %w", err)
		}
		h.file = nil
	}
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) && firstErr == nil {
		firstErr = fmt.Errorf("forkdb: remove mmap backing file: %w", err)
	}
	return firstErr
}

// LinkedCapacityHint estimates how many linked-index slots the region could
// back, at a fixed per-item byte budget. Used only to size the initial
// linked-index by-id map in NewWithStorageHint; never consulted once the
// database is running.
func (h *StorageHint) LinkedCapacityHint() int {
	const bytesPerItem = 256
	n := h.size / bytesPerItem
	if n > 1<<20 {
		n = 1 << 20
	}
	return int(n)
}
