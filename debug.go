package suballoc

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/timandy/routine"
)

const logLevelWarn = slog.LevelWarn

// DebugSettings controls diagnostic overhead an Allocator pays per
// allocation. Every field defaults to false (off) except where
// DefaultDebugSettings says otherwise; each one trades a small amount of
// bookkeeping for a specific diagnosability win (spec §9).
type DebugSettings struct {
	// LogLeaksOnShutdown reports every still-live allocation when
	// Allocator.Destroy runs.
	LogLeaksOnShutdown bool

	// StoreStackTraces captures the call stack and goroutine id of every
	// Allocate call, surfaced alongside leak reports. Meaningfully more
	// expensive than the other settings; off by default.
	StoreStackTraces bool

	// LogMemoryInformation logs a summary of device memory types/heaps
	// when the Allocator is constructed.
	LogMemoryInformation bool

	// LogAllocations logs every successful Allocate call.
	LogAllocations bool

	// LogFrees logs every successful Free call.
	LogFrees bool
}

// DefaultDebugSettings enables only leak-on-shutdown reporting, the
// cheapest diagnostic with the highest signal.
func DefaultDebugSettings() DebugSettings {
	return DebugSettings{LogLeaksOnShutdown: true}
}

// leakRecord is the bookkeeping an Allocator keeps for one live
// allocation, independent of the owning block's own chunk metadata, so
// that leak reporting works uniformly across pooled and dedicated
// allocations.
type leakRecord struct {
	name            string
	size            uint64
	offset          uint64
	heap            DeviceHeap
	memoryTypeIndex uint32
	dedicated       bool
	goid            int64
	stack           []uintptr
}

func (a *Allocator) track(id allocationID, desc AllocationDesc, alloc Allocation) {
	rec := &leakRecord{
		name:            desc.Name,
		size:            desc.Size,
		offset:          alloc.offset,
		heap:            alloc.heap,
		memoryTypeIndex: alloc.typeIdx,
		dedicated:       alloc.dedic,
	}

	if a.debug.StoreStackTraces {
		rec.goid = routine.Goid()
		pc := make([]uintptr, 32)
		n := runtime.Callers(3, pc)
		rec.stack = pc[:n]
	}

	a.live[id] = rec

	if a.debug.LogAllocations {
		Logger().LogAttrs(context.Background(), slog.LevelDebug, "suballoc: allocation",
			slog.String("name", rec.name),
			slog.Uint64("size", rec.size),
			slog.Uint64("offset", rec.offset),
			slog.Uint64("heap", uint64(rec.heap)),
			slog.Uint64("memory_type", uint64(rec.memoryTypeIndex)),
			slog.Bool("dedicated", rec.dedicated),
		)
	}
}

func (a *Allocator) untrack(id allocationID) {
	rec, ok := a.live[id]
	if !ok {
		return
	}
	delete(a.live, id)

	if a.debug.LogFrees {
		Logger().LogAttrs(context.Background(), slog.LevelDebug, "suballoc: free",
			slog.String("name", rec.name),
			slog.Uint64("size", rec.size),
			slog.Uint64("offset", rec.offset),
		)
	}
}

// ReportMemoryLeaks logs one line per still-live allocation at level, each
// naming the allocation so a caller can tell two leaks of the same name
// apart by their heap/offset.
func (a *Allocator) ReportMemoryLeaks(level slog.Level) {
	if len(a.live) == 0 {
		return
	}

	ctx := context.Background()
	for _, rec := range a.live {
		Logger().LogAttrs(ctx, level, "suballoc: memory leak",
			slog.String("name", rec.name),
			slog.Uint64("size", rec.size),
			slog.Uint64("offset", rec.offset),
			slog.Uint64("heap", uint64(rec.heap)),
			slog.Uint64("memory_type", uint64(rec.memoryTypeIndex)),
			slog.Bool("dedicated", rec.dedicated),
		)

		if !a.debug.StoreStackTraces {
			continue
		}
		frames := runtime.CallersFrames(rec.stack)
		for {
			frame, more := frames.Next()
			Logger().LogAttrs(ctx, level, "suballoc: leak stack frame",
				slog.Int64("goroutine", rec.goid),
				slog.String("name", rec.name),
				slog.String("function", frame.Function),
				slog.String("file", frame.File),
				slog.Int("line", frame.Line),
			)
			if !more {
				break
			}
		}
	}
}
