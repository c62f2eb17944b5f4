package suballoc

// blockBody is the two-variant tagged union a block wraps: either a
// FreeListAllocator sub-dividing the block among many allocations, or a
// DedicatedAllocator handing the whole block to one allocation. MemoryType
// dispatches on the variant instead of using open-ended interface
// polymorphism (spec §9 Design Notes).
type blockBody interface {
	isBlockBody()
}

func (*FreeListAllocator) isBlockBody() {}
func (*DedicatedAllocator) isBlockBody() {}

// block is a single underlying device heap, owned by a MemoryType and
// sub-divided (or not) according to its body's variant.
type block struct {
	heap            DeviceHeap
	size            uint64
	memoryTypeIndex uint32
	mapped          uintptr // 0 unless the owning MemoryType is host-visible
	body            blockBody
	liveCount       int
}

// isEmpty reports whether the block currently has no live sub-allocations.
func (b *block) isEmpty() bool {
	switch body := b.body.(type) {
	case *FreeListAllocator:
		return body.IsEmpty()
	case *DedicatedAllocator:
		return b.liveCount == 0
	default:
		return b.liveCount == 0
	}
}
