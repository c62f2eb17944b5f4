package suballoc

import (
	"errors"
	"testing"
)

func TestAllocatorErrorUnwrapsToSentinel(t *testing.T) {
	err := newErr(KindOutOfMemory, "TestOp", "no room")
	if !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("errors.Is(err, ErrOutOfMemory) = false, want true")
	}
}

func TestWrapErrPreservesCause(t *testing.T) {
	cause := errors.New("device refused")
	err := wrapErr(KindFailedToMap, "TestOp", "mapping failed", cause)
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
}

func TestAllocatorErrorMessage(t *testing.T) {
	err := newErr(KindInternal, "Free", "double free")
	want := "suballoc: Internal in Free: double free"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
