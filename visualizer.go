package suballoc

// AllocatorStats summarizes an Allocator's current memory usage, derived
// on demand from its memory types rather than kept incrementally (this
// package takes no internal lock, so there is no safe moment to update a
// running total except "whenever a caller asks").
type AllocatorStats struct {
	TotalAllocated       uint64
	TotalUsed            uint64
	PooledAllocations    int
	DedicatedAllocations int
	BlockCount           int
}

// Stats computes current allocator-wide usage.
func (a *Allocator) Stats() AllocatorStats {
	var s AllocatorStats
	for _, mt := range a.memoryTypes {
		for _, b := range mt.blocks() {
			s.BlockCount++
			s.TotalAllocated += b.size
			switch body := b.body.(type) {
			case *FreeListAllocator:
				s.PooledAllocations += body.OccupancyCount()
				for _, c := range body.Chunks() {
					if c.Tag != AllocationFree {
						s.TotalUsed += c.Size
					}
				}
			case *DedicatedAllocator:
				if b.liveCount > 0 {
					s.DedicatedAllocations++
					s.TotalUsed += body.Size()
				}
			}
		}
	}
	return s
}

// BlockReport is a read-only snapshot of one block, for visualization
// (spec §6): a memory debugger walks MemoryTypeReports → BlockReports →
// ChunkInfo to render the sub-allocation layout.
type BlockReport struct {
	MemoryTypeIndex uint32
	Heap            DeviceHeap
	Size            uint64
	Dedicated       bool
	Chunks          []ChunkInfo
}

// MemoryTypeReport is every block owned by one memory type.
type MemoryTypeReport struct {
	MemoryTypeIndex uint32
	HostVisible     bool
	Blocks          []BlockReport
}

// VisualizeMemoryTypes returns a full, read-only snapshot of every memory
// type's blocks and chunks, for feeding a visual memory debugger.
func (a *Allocator) VisualizeMemoryTypes() []MemoryTypeReport {
	reports := make([]MemoryTypeReport, len(a.memoryTypes))
	for i, mt := range a.memoryTypes {
		reports[i] = MemoryTypeReport{
			MemoryTypeIndex: mt.index,
			HostVisible:     mt.hostVisible,
			Blocks:          blockReports(mt.blocks()),
		}
	}
	return reports
}

func blockReports(blocks []*block) []BlockReport {
	out := make([]BlockReport, len(blocks))
	for i, b := range blocks {
		switch body := b.body.(type) {
		case *FreeListAllocator:
			out[i] = BlockReport{MemoryTypeIndex: b.memoryTypeIndex, Heap: b.heap, Size: b.size, Chunks: body.Chunks()}
		case *DedicatedAllocator:
			tag := AllocationFree
			if b.liveCount > 0 {
				tag = AllocationNonLinear
			}
			out[i] = BlockReport{
				MemoryTypeIndex: b.memoryTypeIndex,
				Heap:            b.heap,
				Size:            b.size,
				Dedicated:       true,
				Chunks:          []ChunkInfo{{Offset: 0, Size: body.Size(), Tag: tag}},
			}
		}
	}
	return out
}
