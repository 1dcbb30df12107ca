package alloc

import (
	"fmt"
	"sync"
	"unsafe"
)

// ArenaAllocator is a bump-pointer allocator. Individual frees are no-ops;
// memory is reclaimed all at once by Reset.
type ArenaAllocator struct {
	config         *Config
	buffer         []byte
	current        uintptr
	size           uintptr
	allocations    uint64
	frees          uint64
	totalAllocated uintptr
	peakUsage      uintptr
	mu             sync.Mutex
}

// NewArenaAllocator creates an arena of the configured size.
func NewArenaAllocator(options ...Option) (*ArenaAllocator, error) {
	config := applyOptions(options)
	if config.ArenaSize == 0 {
		return nil, fmt.Errorf("alloc: arena size must be greater than 0")
	}

	return &ArenaAllocator{
		config: config,
		buffer: make([]byte, config.ArenaSize),
		size:   config.ArenaSize,
	}, nil
}

// Alloc allocates memory from the arena.
func (aa *ArenaAllocator) Alloc(size, align uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	if !validAlign(align) {
		return nil
	}

	aa.mu.Lock()
	defer aa.mu.Unlock()

	base := uintptr(unsafe.Pointer(&aa.buffer[0]))
	start := alignUp(base+aa.current, align) - base

	if start+size > aa.size {
		return nil // Out of arena space
	}

	ptr := unsafe.Pointer(&aa.buffer[start])

	aa.current = start + size
	aa.allocations++
	aa.totalAllocated += size

	if aa.current > aa.peakUsage {
		aa.peakUsage = aa.current
	}

	return ptr
}

// Free is a no-op; arena memory is reclaimed by Reset.
func (aa *ArenaAllocator) Free(ptr unsafe.Pointer, size, align uintptr) {
	if ptr == nil {
		return
	}

	aa.mu.Lock()
	aa.frees++
	aa.mu.Unlock()
}

// Stats returns allocation statistics.
func (aa *ArenaAllocator) Stats() Stats {
	aa.mu.Lock()
	defer aa.mu.Unlock()

	return Stats{
		TotalAllocated:    aa.totalAllocated,
		ActiveAllocations: int(aa.allocations - aa.frees),
		PeakAllocations:   int(aa.allocations),
		AllocationCount:   aa.allocations,
		FreeCount:         aa.frees,
		BytesInUse:        aa.current,
	}
}

// Reset reclaims the whole arena. Pointers handed out earlier become invalid.
func (aa *ArenaAllocator) Reset() {
	aa.mu.Lock()
	defer aa.mu.Unlock()

	aa.current = 0
	aa.allocations = 0
	aa.frees = 0
	aa.totalAllocated = 0

	// Clear the buffer so stale data cannot leak into later allocations.
	for i := range aa.buffer {
		aa.buffer[i] = 0
	}
}

// Remaining returns the bytes still available in the arena.
func (aa *ArenaAllocator) Remaining() uintptr {
	aa.mu.Lock()
	defer aa.mu.Unlock()

	return aa.size - aa.current
}
