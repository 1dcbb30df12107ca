package alloc

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

// SystemAllocator is a wrapper around Go's memory allocator. Each allocation
// is backed by a slice pinned in a tracking map so the garbage collector keeps
// it alive until Free.
type SystemAllocator struct {
	config          *Config
	live            map[unsafe.Pointer]*allocation
	totalAllocated  uintptr
	totalFreed      uintptr
	allocationCount uint64
	freeCount       uint64
	peakAllocations int
	mu              sync.RWMutex
}

// allocation pins the backing slice and records tracking metadata.
type allocation struct {
	backing    []byte
	size       uintptr
	stackTrace []uintptr
}

// NewSystemAllocator creates a new system allocator.
func NewSystemAllocator(options ...Option) *SystemAllocator {
	return &SystemAllocator{
		config: applyOptions(options),
		live:   make(map[unsafe.Pointer]*allocation),
	}
}

// Alloc allocates memory using the Go heap.
func (sa *SystemAllocator) Alloc(size, align uintptr) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	if !validAlign(align) {
		return nil
	}

	alignedSize := alignUp(size, align)
	if alignedSize < size {
		return nil // Overflow
	}

	if sa.config.MemoryLimit > 0 {
		current := atomic.LoadUintptr(&sa.totalAllocated) - atomic.LoadUintptr(&sa.totalFreed)
		if current+alignedSize > sa.config.MemoryLimit {
			return nil // Out of memory
		}
	}

	// Over-allocate so the returned pointer can be aligned inside the slice.
	backing := make([]byte, alignedSize+align-1)
	base := uintptr(unsafe.Pointer(&backing[0]))
	ptr := unsafe.Add(unsafe.Pointer(&backing[0]), alignUp(base, align)-base)

	info := &allocation{backing: backing, size: alignedSize}
	if sa.config.EnableLeakCheck {
		info.stackTrace = captureStackTrace()
	}

	sa.mu.Lock()
	sa.live[ptr] = info
	if len(sa.live) > sa.peakAllocations {
		sa.peakAllocations = len(sa.live)
	}
	sa.mu.Unlock()

	atomic.AddUintptr(&sa.totalAllocated, alignedSize)
	atomic.AddUint64(&sa.allocationCount, 1)

	return ptr
}

// Free frees memory allocated by this allocator.
func (sa *SystemAllocator) Free(ptr unsafe.Pointer, size, align uintptr) {
	if ptr == nil {
		return
	}

	var freed uintptr

	sa.mu.Lock()
	if info, exists := sa.live[ptr]; exists {
		freed = info.size

		delete(sa.live, ptr)
	}
	sa.mu.Unlock()

	atomic.AddUintptr(&sa.totalFreed, freed)
	atomic.AddUint64(&sa.freeCount, 1)
}

// Stats returns allocation statistics.
func (sa *SystemAllocator) Stats() Stats {
	sa.mu.RLock()
	defer sa.mu.RUnlock()

	allocated := atomic.LoadUintptr(&sa.totalAllocated)
	freed := atomic.LoadUintptr(&sa.totalFreed)

	return Stats{
		TotalAllocated:    allocated,
		TotalFreed:        freed,
		ActiveAllocations: len(sa.live),
		PeakAllocations:   sa.peakAllocations,
		AllocationCount:   atomic.LoadUint64(&sa.allocationCount),
		FreeCount:         atomic.LoadUint64(&sa.freeCount),
		BytesInUse:        allocated - freed,
	}
}

// Reset is a no-op for the system allocator.
func (sa *SystemAllocator) Reset() {}

// Leak represents an allocation that was never freed.
type Leak struct {
	Pointer    unsafe.Pointer
	StackTrace []uintptr
	Size       uintptr
}

// CheckLeaks returns every live allocation. With leak checking enabled, each
// entry carries the allocation stack trace.
func (sa *SystemAllocator) CheckLeaks() []Leak {
	sa.mu.RLock()
	defer sa.mu.RUnlock()

	var leaks []Leak
	for ptr, info := range sa.live {
		leaks = append(leaks, Leak{
			Pointer:    ptr,
			Size:       info.size,
			StackTrace: info.stackTrace,
		})
	}

	return leaks
}

// FormatLeaks formats leak information for display.
func FormatLeaks(leaks []Leak) string {
	if len(leaks) == 0 {
		return "No memory leaks detected"
	}

	result := fmt.Sprintf("Detected %d memory leaks:\n", len(leaks))
	for i, leak := range leaks {
		result += fmt.Sprintf("  Leak %d: %d bytes at %p\n", i+1, leak.Size, leak.Pointer)
		if len(leak.StackTrace) > 0 {
			result += "    Stack trace:\n"
			frames := runtime.CallersFrames(leak.StackTrace)

			for {
				frame, more := frames.Next()
				result += fmt.Sprintf("      %s:%d %s\n", frame.File, frame.Line, frame.Function)

				if !more {
					break
				}
			}
		}
	}

	return result
}

// captureStackTrace captures the current stack trace.
func captureStackTrace() []uintptr {
	var pcs [32]uintptr
	n := runtime.Callers(3, pcs[:])

	return pcs[:n]
}
