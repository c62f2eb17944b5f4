package suballoc

// DedicatedAllocator wraps a single device heap allocation that is used
// in its entirety by one logical allocation — for resources too large
// for the pool, or flagged dedicated by the platform adapter (spec
// §4.2). There is no free list and no granularity logic: allocate always
// returns offset 0, free releases the heap.
type DedicatedAllocator struct {
	heap DeviceHeap
	size uint64
}

// NewDedicatedAllocator wraps heap, which the caller has already
// allocated at the given size, as a single dedicated allocation.
func NewDedicatedAllocator(heap DeviceHeap, size uint64) *DedicatedAllocator {
	return &DedicatedAllocator{heap: heap, size: size}
}

// Heap returns the wrapped device heap.
func (d *DedicatedAllocator) Heap() DeviceHeap { return d.heap }

// Size returns the heap's size, identical to the original request.
func (d *DedicatedAllocator) Size() uint64 { return d.size }
