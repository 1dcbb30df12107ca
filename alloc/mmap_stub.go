//go:build !linux

package alloc

import (
	"os"
	"unsafe"
)

// MmapAllocator falls back to the system allocator on platforms without the
// Linux mmap path, keeping the same page-granular contract.
type MmapAllocator struct {
	pageSize uintptr
	system   *SystemAllocator
}

// NewMmapAllocator creates a new allocator with page-granular behavior.
func NewMmapAllocator(options ...Option) (*MmapAllocator, error) {
	return &MmapAllocator{
		pageSize: uintptr(os.Getpagesize()),
		system:   NewSystemAllocator(options...),
	}, nil
}

// Alloc allocates whole pages from the system allocator.
func (ma *MmapAllocator) Alloc(size, align uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	if !validAlign(align) || align > ma.pageSize {
		return nil
	}

	return ma.system.Alloc(alignUp(size, ma.pageSize), ma.pageSize)
}

// Free releases a region returned by Alloc.
func (ma *MmapAllocator) Free(ptr unsafe.Pointer, size, align uintptr) {
	if ptr == nil {
		return
	}

	ma.system.Free(ptr, alignUp(size, ma.pageSize), ma.pageSize)
}

// Stats returns allocation statistics.
func (ma *MmapAllocator) Stats() Stats {
	return ma.system.Stats()
}

// Reset is a no-op.
func (ma *MmapAllocator) Reset() {}

// PageSize returns the allocation granularity.
func (ma *MmapAllocator) PageSize() uintptr {
	return ma.pageSize
}
