package suballoc

import "testing"

func TestDedicatedAllocator(t *testing.T) {
	d := NewDedicatedAllocator(DeviceHeap(7), 1<<20)

	if d.Heap() != DeviceHeap(7) {
		t.Errorf("Heap() = %d, want 7", d.Heap())
	}
	if d.Size() != 1<<20 {
		t.Errorf("Size() = %d, want %d", d.Size(), 1<<20)
	}
}
