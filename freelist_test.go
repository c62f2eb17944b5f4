package suballoc

import (
	"errors"
	"testing"
)

func TestNewFreeListAllocator(t *testing.T) {
	tests := []struct {
		name    string
		size    uint64
		wantErr bool
	}{
		{"valid 1MB", 1 << 20, false},
		{"valid tiny", 1, false},
		{"invalid zero size", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFreeListAllocator(tt.size)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFreeListAllocator(%d) error = %v, wantErr %v", tt.size, err, tt.wantErr)
			}
			if err == nil && f.Size() != tt.size {
				t.Errorf("Size() = %d, want %d", f.Size(), tt.size)
			}
		})
	}
}

func TestFreeListAllocateAndFree(t *testing.T) {
	f, err := NewFreeListAllocator(4096)
	if err != nil {
		t.Fatalf("NewFreeListAllocator failed: %v", err)
	}

	offset, id, err := f.Allocate(1024, 256, AllocationLinear, 1, "a")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if offset != 0 {
		t.Errorf("offset = %d, want 0", offset)
	}
	if f.OccupancyCount() != 1 {
		t.Errorf("OccupancyCount() = %d, want 1", f.OccupancyCount())
	}

	if err := f.Free(id); err != nil {
		t.Fatalf("Free failed: %v", err)
	}
	if !f.IsEmpty() {
		t.Error("IsEmpty() = false after freeing the only allocation")
	}
}

func TestFreeListDoubleFree(t *testing.T) {
	f, _ := NewFreeListAllocator(4096)
	_, id, _ := f.Allocate(1024, 1, AllocationLinear, 1, "")

	if err := f.Free(id); err != nil {
		t.Fatalf("first Free failed: %v", err)
	}

	var aerr *AllocatorError
	err := f.Free(id)
	if err == nil || !errors.As(err, &aerr) || aerr.Kind != KindInternal {
		t.Errorf("double Free() = %v, want KindInternal", err)
	}
}

func TestFreeListOutOfMemory(t *testing.T) {
	f, _ := NewFreeListAllocator(1024)
	_, _, err := f.Allocate(1024, 1, AllocationLinear, 1, "")
	if err != nil {
		t.Fatalf("first Allocate failed: %v", err)
	}

	_, _, err = f.Allocate(1, 1, AllocationLinear, 1, "")
	if !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("second Allocate() error = %v, want ErrOutOfMemory", err)
	}
}

func TestFreeListBestFit(t *testing.T) {
	// Two free regions of different sizes after carving up a 1024-byte
	// block; a 64-byte request must land in the smallest region that
	// still fits it, not the larger one.
	f, _ := NewFreeListAllocator(1024)

	_, idA, _ := f.Allocate(128, 1, AllocationLinear, 1, "a") // [0,128)
	_, idB, _ := f.Allocate(128, 1, AllocationLinear, 1, "b") // [128,256)
	_, idC, _ := f.Allocate(128, 1, AllocationLinear, 1, "c") // [256,384)
	// remaining free: [384, 1024) = 640 bytes

	if err := f.Free(idA); err != nil { // free [0,128): 128-byte hole
		t.Fatalf("Free a failed: %v", err)
	}
	if err := f.Free(idC); err != nil { // free [256,384): merges with the free tail into [256,1024)
		t.Fatalf("Free c failed: %v", err)
	}
	_ = idB

	// Now free chunks: [0,128) size 128, [256,1024) size 768.
	// A 64-byte request must land in the 128-byte hole (best-fit),
	// never the 768-byte hole.
	offset, _, err := f.Allocate(64, 1, AllocationLinear, 1, "d")
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if offset != 0 {
		t.Errorf("offset = %d, want 0 (smallest free chunk, lowest offset)", offset)
	}
}

func TestFreeListMergeOnFree(t *testing.T) {
	f, _ := NewFreeListAllocator(2048)

	_, id1, _ := f.Allocate(512, 1, AllocationLinear, 1, "a")
	_, id2, _ := f.Allocate(512, 1, AllocationLinear, 1, "b")

	if err := f.Free(id1); err != nil {
		t.Fatalf("Free id1 failed: %v", err)
	}
	if err := f.Free(id2); err != nil {
		t.Fatalf("Free id2 failed: %v", err)
	}

	// Both neighbors freed: the whole block should be one free chunk again,
	// able to satisfy a single allocation spanning the entire size.
	offset, _, err := f.Allocate(2048, 1, AllocationLinear, 1, "c")
	if err != nil {
		t.Fatalf("Allocate full size after merge failed: %v", err)
	}
	if offset != 0 {
		t.Errorf("offset = %d, want 0", offset)
	}
}

func TestFreeListGranularityConflict(t *testing.T) {
	// A linear allocation immediately followed by a non-linear one on the
	// same device page must be rejected and bumped to the next page.
	const granularity = 256

	f, _ := NewFreeListAllocator(1024)

	offset1, _, err := f.Allocate(64, 1, AllocationLinear, granularity, "linear")
	if err != nil {
		t.Fatalf("Allocate linear failed: %v", err)
	}
	if offset1 != 0 {
		t.Fatalf("offset1 = %d, want 0", offset1)
	}

	offset2, _, err := f.Allocate(64, 1, AllocationNonLinear, granularity, "non-linear")
	if err != nil {
		t.Fatalf("Allocate non-linear failed: %v", err)
	}

	if offset2/granularity == offset1/granularity {
		t.Errorf("non-linear allocation at %d shares a page with linear allocation at %d (granularity %d)", offset2, offset1, granularity)
	}
}

func TestFreeListNoGranularityConflictWhenSameType(t *testing.T) {
	const granularity = 256

	f, _ := NewFreeListAllocator(1024)

	offset1, _, err := f.Allocate(64, 1, AllocationLinear, granularity, "a")
	if err != nil {
		t.Fatalf("Allocate 1 failed: %v", err)
	}

	offset2, _, err := f.Allocate(64, 1, AllocationLinear, granularity, "b")
	if err != nil {
		t.Fatalf("Allocate 2 failed: %v", err)
	}

	// Two linear allocations may share a page; no bump should occur.
	if offset2 != offset1+64 {
		t.Errorf("offset2 = %d, want %d (no granularity bump between same-type neighbors)", offset2, offset1+64)
	}
}

func TestFreeListChunksOrdering(t *testing.T) {
	f, _ := NewFreeListAllocator(256)
	_, _, _ = f.Allocate(64, 1, AllocationLinear, 1, "a")
	_, _, _ = f.Allocate(64, 1, AllocationLinear, 1, "b")

	chunks := f.Chunks()
	var total uint64
	for i, c := range chunks {
		if i > 0 && c.Offset != chunks[i-1].Offset+chunks[i-1].Size {
			t.Errorf("chunk %d offset %d does not immediately follow previous chunk end %d", i, c.Offset, chunks[i-1].Offset+chunks[i-1].Size)
		}
		total += c.Size
	}
	if total != 256 {
		t.Errorf("chunks cover %d bytes, want 256 (the whole block)", total)
	}
}
