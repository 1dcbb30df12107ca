//go:build linux

package alloc

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MmapAllocator allocates page-granular anonymous memory directly from the
// kernel. Every allocation occupies whole pages, so it suits coarse, long
// lived blocks rather than small objects.
type MmapAllocator struct {
	config          *Config
	pageSize        uintptr
	regions         map[unsafe.Pointer][]byte
	totalAllocated  uintptr
	totalFreed      uintptr
	allocationCount uint64
	freeCount       uint64
	peakRegions     int
	mu              sync.Mutex
}

// NewMmapAllocator creates a new mmap-backed allocator.
func NewMmapAllocator(options ...Option) (*MmapAllocator, error) {
	pageSize := uintptr(unix.Getpagesize())
	if pageSize == 0 {
		return nil, fmt.Errorf("alloc: cannot determine page size")
	}

	return &MmapAllocator{
		config:   applyOptions(options),
		pageSize: pageSize,
		regions:  make(map[unsafe.Pointer][]byte),
	}, nil
}

// Alloc maps at least size bytes of anonymous memory. Alignments up to the
// page size are satisfied for free; larger alignments are refused.
func (ma *MmapAllocator) Alloc(size, align uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	if !validAlign(align) || align > ma.pageSize {
		return nil
	}

	length := alignUp(size, ma.pageSize)

	ma.mu.Lock()
	defer ma.mu.Unlock()

	if ma.config.MemoryLimit > 0 &&
		ma.totalAllocated-ma.totalFreed+length > ma.config.MemoryLimit {
		return nil // Out of memory
	}

	region, err := unix.Mmap(-1, 0, int(length),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil
	}

	ptr := unsafe.Pointer(&region[0])
	ma.regions[ptr] = region

	if len(ma.regions) > ma.peakRegions {
		ma.peakRegions = len(ma.regions)
	}

	ma.totalAllocated += length
	ma.allocationCount++

	return ptr
}

// Free unmaps a region returned by Alloc.
func (ma *MmapAllocator) Free(ptr unsafe.Pointer, size, align uintptr) {
	if ptr == nil {
		return
	}

	ma.mu.Lock()
	defer ma.mu.Unlock()

	region, exists := ma.regions[ptr]
	if !exists {
		return
	}

	delete(ma.regions, ptr)
	ma.totalFreed += uintptr(len(region))
	ma.freeCount++

	// Errors from munmap on a region we mapped ourselves indicate kernel
	// state we cannot recover; the region is dropped from tracking either way.
	_ = unix.Munmap(region)
}

// Stats returns allocation statistics.
func (ma *MmapAllocator) Stats() Stats {
	ma.mu.Lock()
	defer ma.mu.Unlock()

	return Stats{
		TotalAllocated:    ma.totalAllocated,
		TotalFreed:        ma.totalFreed,
		ActiveAllocations: len(ma.regions),
		PeakAllocations:   ma.peakRegions,
		AllocationCount:   ma.allocationCount,
		FreeCount:         ma.freeCount,
		BytesInUse:        ma.totalAllocated - ma.totalFreed,
	}
}

// Reset unmaps every outstanding region.
func (ma *MmapAllocator) Reset() {
	ma.mu.Lock()
	defer ma.mu.Unlock()

	for ptr, region := range ma.regions {
		delete(ma.regions, ptr)
		ma.totalFreed += uintptr(len(region))
		ma.freeCount++
		_ = unix.Munmap(region)
	}
}

// PageSize returns the allocation granularity.
func (ma *MmapAllocator) PageSize() uintptr {
	return ma.pageSize
}
