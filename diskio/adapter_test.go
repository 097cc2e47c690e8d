package diskio_test

import (
	"errors"
	"testing"

	"github.com/dargueta/fatbind"
	"github.com/dargueta/fatbind/diskio"
	"github.com/dargueta/fatbind/partition"
	fbtest "github.com/dargueta/fatbind/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDevice(t *testing.T) (*fbtest.RecordingDevice, []byte) {
	image := fbtest.NewSparseImage(512, 64, 7)
	data := fbtest.CreateRandomImage(512, 64, t)
	image.WriteAt(data, 0)
	return fbtest.NewRecordingDevice(image), data
}

func TestAdapter__Detached(t *testing.T) {
	var adapter diskio.Adapter
	assert.False(t, adapter.Attached())
	assert.EqualValues(t, 0, adapter.BytesPerBlock())
	assert.EqualValues(t, 0, adapter.TotalBlocks())

	_, err := adapter.ReadBlocks(0, 1, make([]byte, 512))
	assert.ErrorIs(t, err, fatbind.ErrNoDevice)

	_, err = adapter.ReadAbsolute(0, 1, make([]byte, 512))
	assert.ErrorIs(t, err, fatbind.ErrNoDevice)
}

func TestAdapter__TranslatesPartitionOffset(t *testing.T) {
	device, data := newDevice(t)

	var adapter diskio.Adapter
	adapter.Attach(device, partition.Descriptor{Start: 10, Size: 20, BlockSize: 512})
	require.True(t, adapter.Attached())
	assert.EqualValues(t, 512, adapter.BytesPerBlock())
	assert.EqualValues(t, 20, adapter.TotalBlocks())
	assert.Same(t, device, adapter.Device())
	assert.EqualValues(t, 10, adapter.Partition().Start)

	buffer := make([]byte, 2*512)
	n, err := adapter.ReadBlocks(3, 2, buffer)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, data[13*512:15*512], buffer)
	assert.Equal(t, []fbtest.ReadRecord{{Start: 13, Count: 2}}, device.Reads)
}

func TestAdapter__ZeroCountNeverTouchesDevice(t *testing.T) {
	device, _ := newDevice(t)

	var adapter diskio.Adapter
	adapter.Attach(device, partition.Descriptor{Start: 10, Size: 20})

	n, err := adapter.ReadBlocks(0, 0, nil)
	assert.NoError(t, err)
	assert.EqualValues(t, 0, n)
	assert.Empty(t, device.Reads)
}

func TestAdapter__StaysInsidePartition(t *testing.T) {
	device, _ := newDevice(t)

	var adapter diskio.Adapter
	adapter.Attach(device, partition.Descriptor{Start: 10, Size: 20})
	buffer := make([]byte, 4*512)

	_, err := adapter.ReadBlocks(20, 1, buffer)
	assert.ErrorIs(t, err, fatbind.ErrIOFailed, "block past the end of the partition")

	_, err = adapter.ReadBlocks(18, 4, buffer)
	assert.ErrorIs(t, err, fatbind.ErrIOFailed, "range overlapping the end of the partition")

	assert.Empty(t, device.Reads, "out-of-bounds reads must not reach the device")

	// The last block is fine.
	n, err := adapter.ReadBlocks(19, 1, buffer)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestAdapter__DeviceErrors(t *testing.T) {
	device, _ := newDevice(t)

	var adapter diskio.Adapter
	adapter.Attach(device, partition.Descriptor{Start: 0, Size: 64})
	buffer := make([]byte, 512)

	t.Run("Error", func(t *testing.T) {
		cause := errors.New("media changed")
		device.Err = cause
		defer func() { device.Err = nil }()

		_, err := adapter.ReadBlocks(0, 1, buffer)
		assert.ErrorIs(t, err, fatbind.ErrIOFailed)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("NothingTransferred", func(t *testing.T) {
		device.TransferNothing = true
		defer func() { device.TransferNothing = false }()

		_, err := adapter.ReadBlocks(0, 1, buffer)
		assert.ErrorIs(t, err, fatbind.ErrIOFailed)
	})

	t.Run("BufferTooSmall", func(t *testing.T) {
		_, err := adapter.ReadBlocks(0, 2, buffer)
		assert.ErrorIs(t, err, fatbind.ErrInvalidArgument)
	})
}

func TestAdapter__Detach(t *testing.T) {
	device, _ := newDevice(t)

	var adapter diskio.Adapter
	adapter.Attach(device, partition.Descriptor{Start: 0, Size: 64})
	adapter.Detach()

	assert.False(t, adapter.Attached())
	_, err := adapter.ReadBlocks(0, 1, make([]byte, 512))
	assert.ErrorIs(t, err, fatbind.ErrNoDevice)
	assert.Empty(t, device.Reads)
}

func TestReadAbsolute(t *testing.T) {
	device, data := newDevice(t)

	t.Run("IgnoresPartition", func(t *testing.T) {
		var adapter diskio.Adapter
		adapter.Attach(device, partition.Descriptor{Start: 10, Size: 5})

		buffer := make([]byte, 512)
		n, err := adapter.ReadAbsolute(40, 1, buffer)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
		assert.Equal(t, data[40*512:41*512], buffer)
	})

	t.Run("NilDevice", func(t *testing.T) {
		_, err := diskio.ReadAbsolute(nil, 0, 1, make([]byte, 512))
		assert.ErrorIs(t, err, fatbind.ErrNoDevice)
	})

	t.Run("ShortTransferPassedThrough", func(t *testing.T) {
		buffer := make([]byte, 4*512)
		n, err := diskio.ReadAbsolute(device, 62, 4, buffer)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n, "device's short count should be returned as-is")
	})

	t.Run("PastEndOfDevice", func(t *testing.T) {
		_, err := diskio.ReadAbsolute(device, 64, 1, make([]byte, 512))
		assert.ErrorIs(t, err, fatbind.ErrIOFailed)
	})
}
