package refdevice

import "unsafe"

// ptrOf returns the address of data's backing array. data must be
// non-empty and must not be reallocated for the returned pointer to
// remain valid — true here since every mapped []byte comes straight from
// mmap and is never appended to.
func ptrOf(data []byte) uintptr {
	return uintptr(unsafe.Pointer(&data[0]))
}
