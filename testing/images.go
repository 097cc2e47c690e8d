package testing

import (
	"bytes"
	"testing"

	"github.com/dargueta/fatbind/blockdev"
	"github.com/dargueta/fatbind/utilities/compression"
	"github.com/stretchr/testify/require"
)

// LoadDiskImage takes a compressed disk image and returns a block device over the
// uncompressed data. `compressedImageBytes` is not modified.
func LoadDiskImage(
	t *testing.T, compressedImageBytes []byte, sectorSize, totalSectors uint, deviceID int,
) *blockdev.StreamDevice {
	require.Greater(t, len(compressedImageBytes), 0, "compressed image is empty")

	imageBytes, err := compression.DecompressImageToBytes(
		bytes.NewReader(compressedImageBytes))
	require.NoError(t, err)

	require.Equal(
		t,
		totalSectors*sectorSize,
		uint(len(imageBytes)),
		"uncompressed image is wrong size",
	)

	device, err := blockdev.NewMemoryDevice(imageBytes, sectorSize, deviceID)
	require.NoError(t, err)
	return device
}

// CompressDiskImage is the inverse of [LoadDiskImage], for building compressed
// fixtures on the fly.
func CompressDiskImage(t *testing.T, image []byte) []byte {
	compressed, err := compression.CompressImageToBytes(image)
	require.NoError(t, err)
	return compressed
}
