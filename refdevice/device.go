// Package refdevice is a reference implementation of suballoc.Device,
// backed by real anonymous memory mappings rather than a fake pointer, so
// MappedPtr() addresses can actually be read and written. It exists for
// tests and for callers without a real GPU device — a Vulkan or D3D12
// adapter is expected to supply its own suballoc.Device in production.
package refdevice

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/vramkit/suballoc"
)

// Device is an in-process suballoc.Device. Every memory type maps to one
// simulated heap; host-visible types back their allocations with a real
// mmap, so callers can exercise upload/readback paths without a GPU.
type Device struct {
	mu         sync.Mutex
	props      suballoc.DeviceMemoryProperties
	nextHandle suballoc.DeviceHeap
	heaps      map[suballoc.DeviceHeap]*heapRecord

	// FailMapAfter, if > 0, makes the (FailMapAfter)'th call to MapHeap
	// and every later call fail, to exercise the FailedToMap path
	// deterministically in tests.
	FailMapAfter int
	mapCalls     int
}

type heapRecord struct {
	size   uint64
	mapped []byte // nil unless currently mapped
}

// New builds a Device with one device-local and one host-visible
// host-coherent memory type, each drawing from its own heap. This is
// the minimal shape exercising every memory-type selection path in
// Allocator.Allocate.
func New() *Device {
	return NewWithProperties(suballoc.DeviceMemoryProperties{
		MemoryHeaps: []suballoc.MemoryHeap{
			{Size: 4 << 30, Flags: suballoc.MemoryHeapDeviceLocalBit},
			{Size: 4 << 30},
		},
		MemoryTypes: []suballoc.MemoryTypeInfo{
			{PropertyFlags: suballoc.MemoryPropertyDeviceLocalBit, HeapIndex: 0},
			{PropertyFlags: suballoc.MemoryPropertyHostVisibleBit | suballoc.MemoryPropertyHostCoherentBit, HeapIndex: 1},
		},
	})
}

// NewWithProperties builds a Device reporting exactly props, for tests
// that need a specific memory-type layout (e.g. no host-visible type, to
// exercise NoCompatibleMemoryTypeFound).
func NewWithProperties(props suballoc.DeviceMemoryProperties) *Device {
	return &Device{props: props, heaps: make(map[suballoc.DeviceHeap]*heapRecord)}
}

// Properties implements suballoc.Device.
func (d *Device) Properties() suballoc.DeviceMemoryProperties { return d.props }

// AllocateHeap implements suballoc.Device. It does not actually reserve
// size bytes up front for device-local types — those exist only as
// accounting, not host-addressable memory — but always records size for
// bookkeeping.
func (d *Device) AllocateHeap(size uint64, memoryTypeIndex uint32) (suballoc.DeviceHeap, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if int(memoryTypeIndex) >= len(d.props.MemoryTypes) {
		return 0, fmt.Errorf("refdevice: unknown memory type index %d", memoryTypeIndex)
	}

	d.nextHandle++
	handle := d.nextHandle
	d.heaps[handle] = &heapRecord{size: size}
	return handle, nil
}

// FreeHeap implements suballoc.Device.
func (d *Device) FreeHeap(heap suballoc.DeviceHeap) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.heaps[heap]
	if !ok {
		return
	}
	if rec.mapped != nil {
		_ = unix.Munmap(rec.mapped)
	}
	delete(d.heaps, heap)
}

// MapHeap implements suballoc.Device, backing the mapping with a real
// anonymous mmap so the returned address is genuinely readable/writable.
func (d *Device) MapHeap(heap suballoc.DeviceHeap) (uintptr, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.mapCalls++
	if d.FailMapAfter > 0 && d.mapCalls >= d.FailMapAfter {
		return 0, fmt.Errorf("refdevice: simulated mmap failure")
	}

	rec, ok := d.heaps[heap]
	if !ok {
		return 0, fmt.Errorf("refdevice: unknown heap %d", heap)
	}
	if rec.mapped != nil {
		return ptrOf(rec.mapped), nil
	}

	data, err := unix.Mmap(-1, 0, int(rec.size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, fmt.Errorf("refdevice: mmap: %w", err)
	}
	rec.mapped = data
	return ptrOf(data), nil
}

// UnmapHeap implements suballoc.Device.
func (d *Device) UnmapHeap(heap suballoc.DeviceHeap) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.heaps[heap]
	if !ok || rec.mapped == nil {
		return
	}
	_ = unix.Munmap(rec.mapped)
	rec.mapped = nil
}
