package suballoc

import (
	"context"
	"log/slog"
)

// ChunkInfo is a read-only snapshot of one chunk, used by the visualizer
// feed and leak reporting. It carries no live reference into the arena.
type ChunkInfo struct {
	Offset uint64
	Size   uint64
	Tag    AllocationType
	Name   string
}

// FreeListAllocator sub-allocates within a single fixed-size block using
// a free-list with offset/size tracking and adjacency metadata (spec
// §4.1). Placement is best-fit over free chunks, tie-broken by lowest
// offset, with the granularity-aware offset bump/reject rule that keeps
// linear and non-linear resources off the same device page.
//
// Not safe for concurrent use; callers serialize externally (spec §5).
type FreeListAllocator struct {
	size          uint64
	arena         *chunkArena
	headID        chunkID
	freeIDs       []chunkID
	occupiedCount int
}

// NewFreeListAllocator creates an allocator managing a single block of
// size bytes, initially one large free chunk.
func NewFreeListAllocator(size uint64) (*FreeListAllocator, error) {
	if size == 0 {
		return nil, newErr(KindInternal, "NewFreeListAllocator", "size must be > 0")
	}

	arena := newChunkArena()
	id := arena.alloc(chunk{offset: 0, size: size, tag: AllocationFree, prev: invalidChunkID, next: invalidChunkID})

	return &FreeListAllocator{
		size:    size,
		arena:   arena,
		headID:  id,
		freeIDs: []chunkID{id},
	}, nil
}

// Size returns the total size of the managed block.
func (f *FreeListAllocator) Size() uint64 { return f.size }

// IsEmpty reports whether the block currently has no live sub-allocations.
func (f *FreeListAllocator) IsEmpty() bool { return f.occupiedCount == 0 }

// OccupancyCount returns the number of live sub-allocations.
func (f *FreeListAllocator) OccupancyCount() int { return f.occupiedCount }

type allocCandidate struct {
	freeID        chunkID
	alignedOffset uint64
}

// Allocate places a size-byte, alignment-aligned range tagged allocType
// into this block, honoring the granularity rule against already-
// occupied neighbors. Returns ErrOutOfMemory (wrapped as KindOutOfMemory)
// if no free chunk can satisfy the request; this is an in-block,
// recoverable signal — callers (MemoryType) try the next block or a new
// one (spec §4.6).
func (f *FreeListAllocator) Allocate(size, alignment uint64, allocType AllocationType, granularity uint64, name string) (uint64, chunkID, error) {
	var best *allocCandidate

	for _, id := range f.freeIDs {
		c := f.arena.get(id)
		cand, ok := f.evaluateCandidate(id, c, size, alignment, allocType, granularity)
		if !ok {
			continue
		}
		if best == nil || f.betterCandidate(cand, best) {
			best = cand
		}
	}

	if best == nil {
		return 0, invalidChunkID, wrapErr(KindOutOfMemory, "Allocate", "no free chunk satisfies the request", ErrOutOfMemory)
	}

	occID := f.split(best.freeID, best.alignedOffset, size, allocType, name)
	f.occupiedCount++

	return best.alignedOffset, occID, nil
}

// betterCandidate implements best-fit: smallest free-chunk size wins,
// ties broken by lowest offset, matching spec §4.1 exactly.
func (f *FreeListAllocator) betterCandidate(a, b *allocCandidate) bool {
	ac, bc := f.arena.get(a.freeID), f.arena.get(b.freeID)
	if ac.size != bc.size {
		return ac.size < bc.size
	}
	return ac.offset < bc.offset
}

// evaluateCandidate applies the alignment/granularity rule of spec
// §4.1 steps 1-4 to one free chunk, returning a populated candidate iff
// it can satisfy the request.
func (f *FreeListAllocator) evaluateCandidate(id chunkID, c *chunk, size, alignment uint64, allocType AllocationType, granularity uint64) (*allocCandidate, bool) {
	alignedOffset := alignUp(c.offset, alignment)

	if granularity > 1 {
		if prevID := c.prev; prevID != invalidChunkID {
			prev := f.arena.get(prevID)
			if prev.tag != AllocationFree && prev.tag != allocType && samePage(prev.offset+prev.size-1, alignedOffset, granularity) {
				alignedOffset = alignUp(nextPageBoundary(alignedOffset, granularity), alignment)
			}
		}
	}

	if alignedOffset+size > c.offset+c.size {
		return nil, false
	}

	if granularity > 1 {
		if nextID := c.next; nextID != invalidChunkID {
			next := f.arena.get(nextID)
			if next.tag != AllocationFree && next.tag != allocType && samePage(next.offset, alignedOffset+size, granularity) {
				return nil, false
			}
		}
	}

	return &allocCandidate{freeID: id, alignedOffset: alignedOffset}, true
}

// split carves [alignedOffset, alignedOffset+size) out of the free chunk
// freeID, leaving up to two free remainders, and returns the id of the
// new occupied chunk.
func (f *FreeListAllocator) split(freeID chunkID, alignedOffset, size uint64, allocType AllocationType, name string) chunkID {
	fc := *f.arena.get(freeID)
	origPrev, origNext := fc.prev, fc.next

	f.removeFree(freeID)

	var ids []chunkID
	if alignedOffset > fc.offset {
		leftID := f.arena.alloc(chunk{offset: fc.offset, size: alignedOffset - fc.offset, tag: AllocationFree})
		ids = append(ids, leftID)
	}

	occID := f.arena.alloc(chunk{offset: alignedOffset, size: size, tag: allocType, name: name})
	ids = append(ids, occID)

	remOffset := alignedOffset + size
	if remEnd := fc.offset + fc.size; remEnd > remOffset {
		rightID := f.arena.alloc(chunk{offset: remOffset, size: remEnd - remOffset, tag: AllocationFree})
		ids = append(ids, rightID)
	}

	f.arena.free(freeID)

	for i, id := range ids {
		c := f.arena.get(id)
		if i == 0 {
			c.prev = origPrev
		} else {
			c.prev = ids[i-1]
		}
		if i == len(ids)-1 {
			c.next = origNext
		} else {
			c.next = ids[i+1]
		}
	}
	if origPrev != invalidChunkID {
		f.arena.get(origPrev).next = ids[0]
	}
	if origNext != invalidChunkID {
		f.arena.get(origNext).prev = ids[len(ids)-1]
	}
	if f.headID == freeID {
		f.headID = ids[0]
	}

	for _, id := range ids {
		if id != occID {
			f.freeIDs = append(f.freeIDs, id)
		}
	}

	return occID
}

// Free releases a previously allocated chunk, merging it with free
// physical neighbors. Freeing a chunk id that is not currently occupied
// is a contract violation (spec §4.1, §4.6) and returns KindInternal.
func (f *FreeListAllocator) Free(id chunkID) error {
	if int(id) < 0 || int(id) >= len(f.arena.slots) {
		return newErr(KindInternal, "Free", "unknown chunk id")
	}
	c := f.arena.get(id)
	if c.tag == AllocationFree {
		return newErr(KindInternal, "Free", "double free or free of unoccupied chunk")
	}

	c.tag = AllocationFree
	c.name = ""
	f.occupiedCount--

	survivor := id
	f.freeIDs = append(f.freeIDs, survivor)

	if prevID := f.arena.get(survivor).prev; prevID != invalidChunkID && f.arena.get(prevID).tag == AllocationFree {
		survivor = f.mergeInto(prevID, survivor)
	}
	if nextID := f.arena.get(survivor).next; nextID != invalidChunkID && f.arena.get(nextID).tag == AllocationFree {
		survivor = f.mergeInto(survivor, nextID)
	}

	return nil
}

// mergeInto merges the free chunk `right` into the physically-earlier
// free chunk `left`, disposing of right's slot, and returns left's id
// (the surviving, now-larger chunk).
func (f *FreeListAllocator) mergeInto(left, right chunkID) chunkID {
	f.removeFree(left)
	f.removeFree(right)

	lc := f.arena.get(left)
	rc := f.arena.get(right)
	lc.size += rc.size
	lc.next = rc.next
	if rc.next != invalidChunkID {
		f.arena.get(rc.next).prev = left
	}

	f.arena.free(right)
	f.freeIDs = append(f.freeIDs, left)

	return left
}

// removeFree removes id from the free-chunk index, if present.
func (f *FreeListAllocator) removeFree(id chunkID) {
	for i, fid := range f.freeIDs {
		if fid == id {
			f.freeIDs[i] = f.freeIDs[len(f.freeIDs)-1]
			f.freeIDs = f.freeIDs[:len(f.freeIDs)-1]
			return
		}
	}
}

// Chunks returns every chunk in physical (offset-ordered) order, for the
// visualizer feed (spec §6) and leak reporting.
func (f *FreeListAllocator) Chunks() []ChunkInfo {
	out := make([]ChunkInfo, 0, len(f.arena.slots)-len(f.arena.unused))
	for id := f.headID; id != invalidChunkID; {
		c := f.arena.get(id)
		out = append(out, ChunkInfo{Offset: c.offset, Size: c.size, Tag: c.tag, Name: c.name})
		id = c.next
	}
	return out
}

// ReportMemoryLeaks logs one warning line per occupied chunk (spec
// §4.1's diagnostic report_memory_leaks).
func (f *FreeListAllocator) ReportMemoryLeaks() {
	for _, ci := range f.Chunks() {
		if ci.Tag == AllocationFree {
			continue
		}
		Logger().LogAttrs(context.Background(), slog.LevelWarn, "suballoc: leaked sub-allocation",
			slog.String("name", ci.Name),
			slog.Uint64("offset", ci.Offset),
			slog.Uint64("size", ci.Size),
			slog.String("type", ci.Tag.String()),
		)
	}
}

func alignUp(offset, alignment uint64) uint64 {
	if alignment <= 1 {
		return offset
	}
	return (offset + alignment - 1) &^ (alignment - 1)
}

func samePage(a, b, granularity uint64) bool {
	return a/granularity == b/granularity
}

func nextPageBoundary(offset, granularity uint64) uint64 {
	return (offset/granularity + 1) * granularity
}
