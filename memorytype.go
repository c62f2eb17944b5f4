package suballoc

// memoryType owns every block drawn from one device memory-type index: a
// set of pooled (free-list) blocks sub-divided among many allocations, and
// a set of dedicated blocks each owned outright by one allocation (spec
// §4.3). The two are tracked separately because their lifecycle differs:
// a dedicated block is always destroyed the instant it empties, while an
// emptied pooled block is destroyed immediately as long as a sibling pooled
// block exists, and otherwise kept as the one empty block a MemoryType is
// allowed to hold to absorb the next similarly sized request.
type memoryType struct {
	index            uint32
	device           Device
	hostVisible      bool
	defaultBlockSize uint64

	pooledBlocks    []*block
	dedicatedBlocks map[DeviceHeap]*block
}

func newMemoryType(index uint32, device Device, hostVisible bool, defaultBlockSize uint64) *memoryType {
	return &memoryType{
		index:            index,
		device:           device,
		hostVisible:      hostVisible,
		defaultBlockSize: defaultBlockSize,
		dedicatedBlocks:  make(map[DeviceHeap]*block),
	}
}

// allocate places desc, trying existing pooled blocks first, then
// dedicating or growing the pool as the request demands (spec §4.3,
// §4.6). granularity is the device's buffer-image granularity, passed
// down from the owning Allocator rather than stored per memory type.
func (mt *memoryType) allocate(desc AllocationDesc, granularity uint64) (*block, uint64, chunkID, error) {
	allocType := desc.allocationType()

	if !desc.Dedicated {
		for _, b := range mt.pooledBlocks {
			fl := b.body.(*FreeListAllocator)
			offset, cid, err := fl.Allocate(desc.Size, desc.Alignment, allocType, granularity, desc.Name)
			if err != nil {
				continue
			}
			b.liveCount++
			return b, offset, cid, nil
		}
	}

	if desc.Dedicated || desc.Size > mt.defaultBlockSize {
		b, err := mt.newDedicatedBlock(desc.Size)
		if err != nil {
			return nil, 0, invalidChunkID, err
		}
		b.liveCount = 1
		mt.dedicatedBlocks[b.heap] = b
		return b, 0, invalidChunkID, nil
	}

	b, err := mt.newPooledBlock(mt.defaultBlockSize)
	if err != nil {
		return nil, 0, invalidChunkID, err
	}

	offset, cid, err := b.body.(*FreeListAllocator).Allocate(desc.Size, desc.Alignment, allocType, granularity, desc.Name)
	if err != nil {
		mt.releaseBlock(b)
		return nil, 0, invalidChunkID, wrapErr(KindInternal, "MemoryType.allocate", "freshly created block could not satisfy the request that sized it", err)
	}

	b.liveCount = 1
	mt.pooledBlocks = append(mt.pooledBlocks, b)
	return b, offset, cid, nil
}

// free releases a.chunk (or, for a dedicated block, the whole block) and
// applies the pooled-block teardown policy.
func (mt *memoryType) free(a Allocation) error {
	b := a.block

	switch body := b.body.(type) {
	case *FreeListAllocator:
		if err := body.Free(a.chunk); err != nil {
			return err
		}
		b.liveCount--
		if b.isEmpty() && len(mt.pooledBlocks) > 1 {
			mt.removePooledBlock(b)
			mt.releaseBlock(b)
		}
	case *DedicatedAllocator:
		b.liveCount--
		delete(mt.dedicatedBlocks, b.heap)
		mt.releaseBlock(b)
	}

	return nil
}

// Cleanup destroys every currently-empty pooled block, including the one
// normally kept around to absorb the next similarly sized request.
func (mt *memoryType) Cleanup() {
	kept := mt.pooledBlocks[:0]
	for _, b := range mt.pooledBlocks {
		if b.isEmpty() {
			mt.releaseBlock(b)
			continue
		}
		kept = append(kept, b)
	}
	mt.pooledBlocks = kept
}

func (mt *memoryType) removePooledBlock(target *block) {
	for i, b := range mt.pooledBlocks {
		if b == target {
			mt.pooledBlocks[i] = mt.pooledBlocks[len(mt.pooledBlocks)-1]
			mt.pooledBlocks = mt.pooledBlocks[:len(mt.pooledBlocks)-1]
			return
		}
	}
}

func (mt *memoryType) newPooledBlock(size uint64) (*block, error) {
	heap, mapped, err := mt.allocateHeap(size)
	if err != nil {
		return nil, err
	}
	fl, err := NewFreeListAllocator(size)
	if err != nil {
		mt.device.FreeHeap(heap)
		return nil, err
	}
	return &block{heap: heap, size: size, memoryTypeIndex: mt.index, mapped: mapped, body: fl}, nil
}

func (mt *memoryType) newDedicatedBlock(size uint64) (*block, error) {
	heap, mapped, err := mt.allocateHeap(size)
	if err != nil {
		return nil, err
	}
	return &block{heap: heap, size: size, memoryTypeIndex: mt.index, mapped: mapped, body: NewDedicatedAllocator(heap, size)}, nil
}

func (mt *memoryType) allocateHeap(size uint64) (DeviceHeap, uintptr, error) {
	heap, err := mt.device.AllocateHeap(size, mt.index)
	if err != nil {
		return 0, 0, wrapErr(KindOutOfMemory, "MemoryType.allocateHeap", "device refused heap allocation", err)
	}
	if !mt.hostVisible {
		return heap, 0, nil
	}
	ptr, err := mt.device.MapHeap(heap)
	if err != nil {
		mt.device.FreeHeap(heap)
		return 0, 0, wrapErr(KindFailedToMap, "MemoryType.allocateHeap", "failed to map host-visible heap", err)
	}
	return heap, ptr, nil
}

// releaseBlock unmaps (if needed) and frees a block's device heap. The
// block must already be unreachable from mt.pooledBlocks/dedicatedBlocks.
func (mt *memoryType) releaseBlock(b *block) {
	if b.mapped != 0 {
		mt.device.UnmapHeap(b.heap)
	}
	mt.device.FreeHeap(b.heap)
}

// blocks returns every block this memory type currently owns, pooled then
// dedicated, for the visualizer feed and leak reporting.
func (mt *memoryType) blocks() []*block {
	out := make([]*block, 0, len(mt.pooledBlocks)+len(mt.dedicatedBlocks))
	out = append(out, mt.pooledBlocks...)
	for _, b := range mt.dedicatedBlocks {
		out = append(out, b)
	}
	return out
}
