package refdevice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vramkit/suballoc/refdevice"
)

func TestDeviceAllocateAndMap(t *testing.T) {
	d := refdevice.New()
	props := d.Properties()
	require.Len(t, props.MemoryTypes, 2)

	heap, err := d.AllocateHeap(4096, 1) // host-visible type
	require.NoError(t, err)

	ptr, err := d.MapHeap(heap)
	require.NoError(t, err)
	assert.NotZero(t, ptr)

	d.UnmapHeap(heap)
	d.FreeHeap(heap)
}

func TestDeviceMapFailureInjection(t *testing.T) {
	d := refdevice.New()
	d.FailMapAfter = 1

	heap, err := d.AllocateHeap(4096, 1)
	require.NoError(t, err)

	_, err = d.MapHeap(heap)
	require.Error(t, err)
}

func TestDeviceUnknownMemoryTypeIndex(t *testing.T) {
	d := refdevice.New()
	_, err := d.AllocateHeap(4096, 99)
	require.Error(t, err)
}
