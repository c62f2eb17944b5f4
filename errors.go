package suballoc

import (
	"errors"
	"fmt"
)

// Kind categorizes an [AllocatorError].
type Kind int

const (
	// KindOutOfMemory means the device refused a heap allocation, or no
	// compatible memory type has free capacity.
	KindOutOfMemory Kind = iota

	// KindFailedToMap means mapping a host-visible heap failed.
	KindFailedToMap

	// KindNoCompatibleMemoryTypeFound means the request's type mask
	// intersected with the desired location yields the empty set.
	KindNoCompatibleMemoryTypeFound

	// KindInvalidAllocationCreateDesc means size = 0, alignment not a
	// power of two, or mask = 0.
	KindInvalidAllocationCreateDesc

	// KindInvalidAllocatorCreateDesc means misconfiguration at
	// construction time.
	KindInvalidAllocatorCreateDesc

	// KindInternal means an invariant violation; should not occur under
	// correct caller behavior.
	KindInternal
)

// String returns a human-readable name for the error kind.
func (k Kind) String() string {
	switch k {
	case KindOutOfMemory:
		return "OutOfMemory"
	case KindFailedToMap:
		return "FailedToMap"
	case KindNoCompatibleMemoryTypeFound:
		return "NoCompatibleMemoryTypeFound"
	case KindInvalidAllocationCreateDesc:
		return "InvalidAllocationCreateDesc"
	case KindInvalidAllocatorCreateDesc:
		return "InvalidAllocatorCreateDesc"
	case KindInternal:
		return "Internal"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// AllocatorError is the error type returned by every exported operation
// in this package. Context names the operation that failed; Cause, when
// present, is the underlying error (e.g. a Device-reported failure).
type AllocatorError struct {
	Kind    Kind
	Context string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AllocatorError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("suballoc: %s in %s: %s", e.Kind, e.Context, e.Message)
	}
	return fmt.Sprintf("suballoc: %s: %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is/errors.As to see through to the root sentinel
// for this Kind, and to any wrapped Cause.
func (e *AllocatorError) Unwrap() []error {
	if e.Cause != nil {
		return []error{sentinelFor(e.Kind), e.Cause}
	}
	return []error{sentinelFor(e.Kind)}
}

// Sentinel errors, one per Kind, so callers can use errors.Is without a
// type assertion.
var (
	ErrOutOfMemory                 = errors.New("suballoc: out of memory")
	ErrFailedToMap                 = errors.New("suballoc: failed to map host-visible memory")
	ErrNoCompatibleMemoryTypeFound = errors.New("suballoc: no compatible memory type found")
	ErrInvalidAllocationCreateDesc = errors.New("suballoc: invalid allocation create desc")
	ErrInvalidAllocatorCreateDesc  = errors.New("suballoc: invalid allocator create desc")
	ErrInternal                    = errors.New("suballoc: internal error")
)

func sentinelFor(k Kind) error {
	switch k {
	case KindOutOfMemory:
		return ErrOutOfMemory
	case KindFailedToMap:
		return ErrFailedToMap
	case KindNoCompatibleMemoryTypeFound:
		return ErrNoCompatibleMemoryTypeFound
	case KindInvalidAllocationCreateDesc:
		return ErrInvalidAllocationCreateDesc
	case KindInvalidAllocatorCreateDesc:
		return ErrInvalidAllocatorCreateDesc
	default:
		return ErrInternal
	}
}

func newErr(kind Kind, context, message string) *AllocatorError {
	return &AllocatorError{Kind: kind, Context: context, Message: message}
}

func wrapErr(kind Kind, context, message string, cause error) *AllocatorError {
	return &AllocatorError{Kind: kind, Context: context, Message: message, Cause: cause}
}
