package suballoc

import (
	"context"
	"log/slog"
)

// AllocatorCreateDesc configures a new Allocator.
type AllocatorCreateDesc struct {
	// Device is the platform adapter driving real device memory. Required.
	Device Device

	// BufferImageGranularity is the device's reported adjacency
	// granularity (VkPhysicalDeviceLimits.bufferImageGranularity). 0 is
	// treated as 1 (no adjacency constraint).
	BufferImageGranularity uint64

	// DefaultBlockSize sizes new pooled blocks uniformly across every
	// memory type when non-zero. 0 leaves each memory type at its
	// visibility-based default: 64 MiB for device-local types, 32 MiB for
	// host-visible types (spec §3).
	DefaultBlockSize uint64

	// Debug controls diagnostic logging and leak tracking.
	Debug DebugSettings
}

const (
	defaultDeviceLocalBlockSizeBytes = 64 << 20
	defaultHostVisibleBlockSizeBytes = 32 << 20
)

// DefaultAllocatorDesc returns a reasonable AllocatorCreateDesc for
// device, with leak-on-shutdown reporting enabled, no per-allocation
// stack capture, and each memory type's pooled blocks sized by its own
// visibility default rather than one size for all (spec §9).
func DefaultAllocatorDesc(device Device) AllocatorCreateDesc {
	return AllocatorCreateDesc{
		Device:                 device,
		BufferImageGranularity: 1,
		Debug:                  DefaultDebugSettings(),
	}
}

// Allocator is the top-level facade: it selects a memory type for each
// request and dispatches to that type's pooled/dedicated blocks. It holds
// no internal lock — callers must serialize access themselves (spec §5);
// this is a deliberate departure from a mutex-guarded design, since the
// caller (a render graph / frame allocator) already knows its own
// threading model and a blanket lock here would only add contention the
// caller cannot see or tune.
type Allocator struct {
	device      Device
	props       DeviceMemoryProperties
	memoryTypes []*memoryType
	granularity uint64
	debug       DebugSettings

	nextAllocationID allocationID
	live             map[allocationID]*leakRecord
}

// NewAllocator builds an Allocator over desc.Device's reported memory
// properties.
func NewAllocator(desc AllocatorCreateDesc) (*Allocator, error) {
	if desc.Device == nil {
		return nil, newErr(KindInvalidAllocatorCreateDesc, "NewAllocator", "Device is required")
	}

	props := desc.Device.Properties()
	if len(props.MemoryTypes) == 0 {
		return nil, newErr(KindInvalidAllocatorCreateDesc, "NewAllocator", "device reports no memory types")
	}

	granularity := desc.BufferImageGranularity
	if granularity == 0 {
		granularity = 1
	}

	memoryTypes := make([]*memoryType, len(props.MemoryTypes))
	for i, mti := range props.MemoryTypes {
		hostVisible := mti.PropertyFlags&MemoryPropertyHostVisibleBit != 0

		blockSize := desc.DefaultBlockSize
		if blockSize == 0 {
			if hostVisible {
				blockSize = defaultHostVisibleBlockSizeBytes
			} else {
				blockSize = defaultDeviceLocalBlockSizeBytes
			}
		}

		memoryTypes[i] = newMemoryType(uint32(i), desc.Device, hostVisible, blockSize)
	}

	if desc.Debug.LogMemoryInformation {
		ctx := context.Background()
		for i, h := range props.MemoryHeaps {
			Logger().LogAttrs(ctx, slog.LevelInfo, "suballoc: memory heap",
				slog.Int("index", i), slog.Uint64("size", h.Size), slog.Uint64("flags", uint64(h.Flags)))
		}
		for i, mti := range props.MemoryTypes {
			Logger().LogAttrs(ctx, slog.LevelInfo, "suballoc: memory type",
				slog.Int("index", i), slog.Uint64("flags", uint64(mti.PropertyFlags)),
				slog.Uint64("heap_index", uint64(mti.HeapIndex)), slog.Uint64("block_size", memoryTypes[i].defaultBlockSize))
		}
	}

	return &Allocator{
		device:      desc.Device,
		props:       props,
		memoryTypes: memoryTypes,
		granularity: granularity,
		debug:       desc.Debug,
		live:        make(map[allocationID]*leakRecord),
	}, nil
}

// Allocate places desc into a compatible memory type, growing or
// dedicating a block as needed (spec §4.4, §4.6).
func (a *Allocator) Allocate(desc AllocationDesc) (Allocation, error) {
	if err := validateAllocationDesc(desc); err != nil {
		return Allocation{}, err
	}

	idx, err := a.selectMemoryType(desc)
	if err != nil {
		return Allocation{}, err
	}

	mt := a.memoryTypes[idx]
	b, offset, cid, err := mt.allocate(desc, a.granularity)
	if err != nil {
		return Allocation{}, err
	}

	_, dedicated := b.body.(*DedicatedAllocator)

	id := a.nextAllocationID
	a.nextAllocationID++

	alloc := Allocation{
		heap:    b.heap,
		offset:  offset,
		size:    desc.Size,
		mapped:  b.mapped,
		id:      id,
		block:   b,
		chunk:   cid,
		dedic:   dedicated,
		typeIdx: uint32(idx),
	}

	a.track(id, desc, alloc)

	return alloc, nil
}

// Free releases alloc. Freeing the zero Allocation is a no-op.
func (a *Allocator) Free(alloc Allocation) error {
	if alloc.IsNull() {
		return nil
	}

	mt := a.memoryTypes[alloc.typeIdx]
	if err := mt.free(alloc); err != nil {
		return err
	}

	a.untrack(alloc.id)
	return nil
}

// Cleanup destroys every currently-retained empty pooled block across all
// memory types, reclaiming memory kept around under the "keep one empty
// block" policy.
func (a *Allocator) Cleanup() {
	for _, mt := range a.memoryTypes {
		mt.Cleanup()
	}
}

// Destroy reports any still-live allocations as leaks (if configured) and
// reclaims every empty pooled block. It does not force-free live
// allocations: a resource the GPU may still be using must not have its
// backing memory reclaimed out from under it.
func (a *Allocator) Destroy() {
	if a.debug.LogLeaksOnShutdown {
		a.ReportMemoryLeaks(logLevelWarn)
	}
	a.Cleanup()
}

// selectMemoryType applies spec §4.4's three-pass rule: try a memory type
// satisfying every preferred flag, then one satisfying only the flags
// required for correctness, then fail.
func (a *Allocator) selectMemoryType(desc AllocationDesc) (int, error) {
	preferred, required := locationFlags(desc.Location)

	if idx, ok := a.firstCompatible(desc.MemoryTypeBits, preferred); ok {
		return idx, nil
	}
	if required != 0 {
		if idx, ok := a.firstCompatible(desc.MemoryTypeBits, required); ok {
			return idx, nil
		}
	} else if idx, ok := a.firstCompatible(desc.MemoryTypeBits, 0); ok {
		return idx, nil
	}

	return 0, newErr(KindNoCompatibleMemoryTypeFound, "Allocator.Allocate", "no memory type satisfies the request's type mask and location")
}

func (a *Allocator) firstCompatible(typeBits uint32, want MemoryPropertyFlags) (int, bool) {
	for i, mti := range a.props.MemoryTypes {
		if typeBits&(1<<uint(i)) == 0 {
			continue
		}
		if mti.PropertyFlags&want == want {
			return i, true
		}
	}
	return 0, false
}

func locationFlags(loc MemoryLocation) (preferred, required MemoryPropertyFlags) {
	switch loc {
	case LocationGpuOnly:
		return MemoryPropertyDeviceLocalBit, 0
	case LocationCpuToGpu:
		return MemoryPropertyHostVisibleBit | MemoryPropertyHostCoherentBit, MemoryPropertyHostVisibleBit
	case LocationGpuToCpu:
		return MemoryPropertyHostVisibleBit | MemoryPropertyHostCachedBit, MemoryPropertyHostVisibleBit
	default:
		return 0, 0
	}
}

func validateAllocationDesc(desc AllocationDesc) error {
	if desc.Size == 0 {
		return newErr(KindInvalidAllocationCreateDesc, "Allocator.Allocate", "size must be > 0")
	}
	if desc.Alignment == 0 || desc.Alignment&(desc.Alignment-1) != 0 {
		return newErr(KindInvalidAllocationCreateDesc, "Allocator.Allocate", "alignment must be a power of two")
	}
	if desc.MemoryTypeBits == 0 {
		return newErr(KindInvalidAllocationCreateDesc, "Allocator.Allocate", "memoryTypeBits must be non-zero")
	}
	return nil
}
