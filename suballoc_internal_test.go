package suballoc

import "fmt"

// fakeDevice is a minimal in-package Device double for white-box tests of
// memoryType/Allocator that need to reach into unexported fields. The
// reference Device meant for external callers lives in package refdevice,
// which (being a separate package) cannot see these unexported types.
type fakeDevice struct {
	props      DeviceMemoryProperties
	next       DeviceHeap
	heaps      map[DeviceHeap]uint64
	mapped     map[DeviceHeap]uintptr
	failMap    bool
	failAllocs map[uint32]bool // memory type index -> always fail AllocateHeap
}

func newFakeDevice(props DeviceMemoryProperties) *fakeDevice {
	return &fakeDevice{
		props:      props,
		heaps:      make(map[DeviceHeap]uint64),
		mapped:     make(map[DeviceHeap]uintptr),
		failAllocs: make(map[uint32]bool),
	}
}

func (d *fakeDevice) Properties() DeviceMemoryProperties { return d.props }

func (d *fakeDevice) AllocateHeap(size uint64, memoryTypeIndex uint32) (DeviceHeap, error) {
	if d.failAllocs[memoryTypeIndex] {
		return 0, fmt.Errorf("fakeDevice: simulated allocation failure")
	}
	d.next++
	d.heaps[d.next] = size
	return d.next, nil
}

func (d *fakeDevice) FreeHeap(heap DeviceHeap) {
	delete(d.heaps, heap)
	delete(d.mapped, heap)
}

func (d *fakeDevice) MapHeap(heap DeviceHeap) (uintptr, error) {
	if d.failMap {
		return 0, fmt.Errorf("fakeDevice: simulated map failure")
	}
	ptr := uintptr(0x1000) + uintptr(heap)*0x10000
	d.mapped[heap] = ptr
	return ptr, nil
}

func (d *fakeDevice) UnmapHeap(heap DeviceHeap) {
	delete(d.mapped, heap)
}

func deviceLocalOnlyProps() DeviceMemoryProperties {
	return DeviceMemoryProperties{
		MemoryHeaps: []MemoryHeap{{Size: 1 << 30, Flags: MemoryHeapDeviceLocalBit}},
		MemoryTypes: []MemoryTypeInfo{{PropertyFlags: MemoryPropertyDeviceLocalBit, HeapIndex: 0}},
	}
}

func hostVisibleAndDeviceLocalProps() DeviceMemoryProperties {
	return DeviceMemoryProperties{
		MemoryHeaps: []MemoryHeap{
			{Size: 1 << 30, Flags: MemoryHeapDeviceLocalBit},
			{Size: 1 << 30},
		},
		MemoryTypes: []MemoryTypeInfo{
			{PropertyFlags: MemoryPropertyDeviceLocalBit, HeapIndex: 0},
			{PropertyFlags: MemoryPropertyHostVisibleBit | MemoryPropertyHostCoherentBit, HeapIndex: 1},
		},
	}
}
