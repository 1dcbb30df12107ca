// Package alloc provides the memory allocation services backing the rcell
// reference-counting primitives. It implements a minimal but functional set of
// allocators: a tracking system allocator, a bump-pointer arena, a size-classed
// pool allocator, and a page-granular mmap allocator on platforms that support
// it.
//
// Allocators hand out raw memory by size and alignment and reclaim it on an
// explicit Free. They carry their own statistics and, when tracking is
// enabled, can report allocations that were never freed.
package alloc

import (
	"unsafe"
)

// Allocator defines the interface for memory allocators.
type Allocator interface {
	// Alloc returns a pointer to at least size bytes aligned to align, or nil
	// when the allocation cannot be satisfied. A zero size returns nil.
	Alloc(size, align uintptr) unsafe.Pointer
	// Free returns a previously allocated block. The size and align must match
	// the original Alloc call. Freeing nil is a no-op.
	Free(ptr unsafe.Pointer, size, align uintptr)
	// Stats returns allocation statistics.
	Stats() Stats
	// Reset reclaims everything at once. Only arena allocators support it;
	// elsewhere it is a no-op.
	Reset()
}

// Stats provides allocation statistics.
type Stats struct {
	TotalAllocated    uintptr
	TotalFreed        uintptr
	ActiveAllocations int
	PeakAllocations   int
	AllocationCount   uint64
	FreeCount         uint64
	BytesInUse        uintptr
}

// Config holds allocator configuration.
type Config struct {
	PoolSizes       []uintptr
	ArenaSize       uintptr
	MemoryLimit     uintptr
	EnableLeakCheck bool
}

// Option adjusts a Config.
type Option func(*Config)

// DefaultConfig returns the configuration used when no options are given.
func DefaultConfig() *Config {
	return &Config{
		EnableLeakCheck: true,
		ArenaSize:       64 * 1024 * 1024, // 64MB default arena
		PoolSizes:       []uintptr{8, 16, 32, 64, 128, 256, 512, 1024},
		MemoryLimit:     1024 * 1024 * 1024, // 1GB limit
	}
}

// WithLeakCheck enables or disables leak reporting.
func WithLeakCheck(enabled bool) Option {
	return func(c *Config) { c.EnableLeakCheck = enabled }
}

// WithArenaSize sets the arena capacity for arena allocators.
func WithArenaSize(size uintptr) Option {
	return func(c *Config) { c.ArenaSize = size }
}

// WithPoolSizes sets the size classes for pool allocators.
func WithPoolSizes(sizes []uintptr) Option {
	return func(c *Config) { c.PoolSizes = sizes }
}

// WithMemoryLimit caps the bytes an allocator may have outstanding.
func WithMemoryLimit(limit uintptr) Option {
	return func(c *Config) { c.MemoryLimit = limit }
}

func applyOptions(options []Option) *Config {
	config := DefaultConfig()
	for _, opt := range options {
		opt(config)
	}

	return config
}

// alignUp aligns a size up to the nearest multiple of alignment.
func alignUp(size, alignment uintptr) uintptr {
	return (size + alignment - 1) &^ (alignment - 1)
}

// validAlign reports whether align is a non-zero power of two.
func validAlign(align uintptr) bool {
	return align != 0 && align&(align-1) == 0
}
