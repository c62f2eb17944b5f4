package suballoc

// DeviceHeap is an opaque handle to one device memory allocation
// (VkDeviceMemory / ID3D12Heap). The zero value never names a real heap.
type DeviceHeap uint64

// Device is the narrow contract a platform adapter implements to let
// this package drive real device memory. Vulkan and D3D12 adapters are
// external collaborators (spec §1, §6) and are not implemented in this
// module; see package refdevice for a reference implementation used by
// tests and by callers without a real GPU.
type Device interface {
	// Properties reports the device's memory types and heaps.
	Properties() DeviceMemoryProperties

	// AllocateHeap performs a single device-level allocation of size
	// bytes from the given memory-type index (vkAllocateMemory /
	// ID3D12Device::CreateHeap). Device-level OutOfMemory is surfaced to
	// the caller unchanged (spec §4.6, §7).
	AllocateHeap(size uint64, memoryTypeIndex uint32) (DeviceHeap, error)

	// FreeHeap releases a heap previously returned by AllocateHeap.
	FreeHeap(heap DeviceHeap)

	// MapHeap persistently maps a host-visible heap and returns a
	// pointer to its start. Only called for heaps whose memory type is
	// host-visible.
	MapHeap(heap DeviceHeap) (uintptr, error)

	// UnmapHeap unmaps a heap previously mapped with MapHeap.
	UnmapHeap(heap DeviceHeap)
}
