package alloc

import (
	"fmt"
	"sort"
	"sync"
	"unsafe"
)

// poolChunkSize is how much backing memory a pool grabs at a time.
const poolChunkSize = 64 * 1024

// PoolAllocator serves fixed size classes from per-class free lists, falling
// back to a system allocator for oversized requests.
type PoolAllocator struct {
	config   *Config
	classes  []uintptr
	pools    map[uintptr]*pool
	fallback *SystemAllocator
	hits     uint64
	misses   uint64
	mu       sync.Mutex
}

// pool is a free list of blocks of a single size class.
type pool struct {
	size      uintptr
	chunks    [][]byte
	freeList  []unsafe.Pointer
	allocated uint64
	freed     uint64
}

// NewPoolAllocator creates a pool allocator with the configured size classes.
func NewPoolAllocator(options ...Option) (*PoolAllocator, error) {
	config := applyOptions(options)
	if len(config.PoolSizes) == 0 {
		return nil, fmt.Errorf("alloc: pool sizes cannot be empty")
	}

	classes := make([]uintptr, len(config.PoolSizes))
	copy(classes, config.PoolSizes)
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	pools := make(map[uintptr]*pool, len(classes))
	for _, size := range classes {
		pools[size] = &pool{size: size}
	}

	return &PoolAllocator{
		config:   config,
		classes:  classes,
		pools:    pools,
		fallback: NewSystemAllocator(WithLeakCheck(config.EnableLeakCheck)),
	}, nil
}

// sizeClass returns the smallest class that fits size and align, or 0 when
// the request must go to the fallback allocator.
func (pa *PoolAllocator) sizeClass(size, align uintptr) uintptr {
	need := alignUp(size, align)
	for _, class := range pa.classes {
		if need <= class && align <= class {
			return class
		}
	}

	return 0
}

// Alloc allocates from the matching size class, or the fallback allocator.
func (pa *PoolAllocator) Alloc(size, align uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	if !validAlign(align) {
		return nil
	}

	class := pa.sizeClass(size, align)
	if class == 0 {
		pa.mu.Lock()
		pa.misses++
		pa.mu.Unlock()

		return pa.fallback.Alloc(size, align)
	}

	pa.mu.Lock()
	defer pa.mu.Unlock()

	p := pa.pools[class]
	if len(p.freeList) == 0 {
		p.grow()
	}

	ptr := p.freeList[len(p.freeList)-1]
	p.freeList = p.freeList[:len(p.freeList)-1]
	p.allocated++
	pa.hits++

	return ptr
}

// grow carves a fresh chunk into free-list blocks. Chunk slices are retained
// so the garbage collector keeps the memory alive.
func (p *pool) grow() {
	count := poolChunkSize / p.size
	if count == 0 {
		count = 1
	}

	chunk := make([]byte, count*p.size)
	p.chunks = append(p.chunks, chunk)

	for i := uintptr(0); i < count; i++ {
		p.freeList = append(p.freeList, unsafe.Pointer(&chunk[i*p.size]))
	}
}

// Free returns a block to its size class, or to the fallback allocator.
func (pa *PoolAllocator) Free(ptr unsafe.Pointer, size, align uintptr) {
	if ptr == nil {
		return
	}

	class := pa.sizeClass(size, align)
	if class == 0 {
		pa.fallback.Free(ptr, size, align)

		return
	}

	pa.mu.Lock()
	defer pa.mu.Unlock()

	p := pa.pools[class]
	p.freeList = append(p.freeList, ptr)
	p.freed++
}

// Stats returns statistics aggregated across all size classes and the
// fallback allocator.
func (pa *PoolAllocator) Stats() Stats {
	pa.mu.Lock()

	var stats Stats
	for _, p := range pa.pools {
		stats.TotalAllocated += uintptr(p.allocated) * p.size
		stats.TotalFreed += uintptr(p.freed) * p.size
		stats.ActiveAllocations += int(p.allocated - p.freed)
		stats.AllocationCount += p.allocated
		stats.FreeCount += p.freed
	}
	pa.mu.Unlock()

	fb := pa.fallback.Stats()
	stats.TotalAllocated += fb.TotalAllocated
	stats.TotalFreed += fb.TotalFreed
	stats.ActiveAllocations += fb.ActiveAllocations
	stats.AllocationCount += fb.AllocationCount
	stats.FreeCount += fb.FreeCount
	stats.BytesInUse = stats.TotalAllocated - stats.TotalFreed

	return stats
}

// Reset drops every free list and chunk. Outstanding pointers become invalid.
func (pa *PoolAllocator) Reset() {
	pa.mu.Lock()
	defer pa.mu.Unlock()

	for _, p := range pa.pools {
		p.chunks = nil
		p.freeList = nil
		p.allocated = 0
		p.freed = 0
	}

	pa.hits = 0
	pa.misses = 0
}

// HitRate reports the fraction of allocations served from a size class.
func (pa *PoolAllocator) HitRate() float64 {
	pa.mu.Lock()
	defer pa.mu.Unlock()

	total := pa.hits + pa.misses
	if total == 0 {
		return 0
	}

	return float64(pa.hits) / float64(total)
}
