package compression_test

import (
	"bytes"
	"crypto/rand"
	"testing"

	c "github.com/dargueta/fatbind/utilities/compression"
	"github.com/noxer/bytewriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type imageC9nTestRunner struct {
	Name     string
	Function func(t *testing.T, d []byte)
}

type imageC9nTestData struct {
	Name string
	Data []byte
}

func TestRoundTripImageCompression(t *testing.T) {
	testRunners := []imageC9nTestRunner{
		{"to_stream", runRoundTripCompressionTest},
		{"to_bytes", runRoundTripCompressionToBytesTest},
	}

	randomData := make([]byte, 119)
	rand.Read(randomData)

	testData := []imageC9nTestData{
		{"homogenous", bytes.Repeat([]byte{100}, 9174)},
		{"empty", []byte{}},
		{"heterogenous", randomData},
	}

	for _, runner := range testRunners {
		t.Run(
			runner.Name,
			func(tSub *testing.T) {
				for _, data := range testData {
					tSub.Run(
						data.Name,
						func(tSubSub *testing.T) {
							runner.Function(tSubSub, data.Data)
						},
					)
				}
			},
		)
	}
}

func runRoundTripCompressionTest(t *testing.T, sourceData []byte) {
	sourceDataReader := bytes.NewReader(sourceData)

	compressedBuffer := make([]byte, 10240)
	compressedWriter := bytewriter.New(compressedBuffer)

	compressedSize, err := c.CompressImage(sourceDataReader, compressedWriter)
	require.NoError(t, err, "unexpected error while compressing")
	t.Logf("image size after compression: %d -> %d", len(sourceData), compressedSize)

	decompressedBuffer := make([]byte, len(sourceData))
	decompressedWriter := bytewriter.New(decompressedBuffer)
	compressedReader := bytes.NewReader(compressedBuffer[:compressedSize])

	n, err := c.DecompressImage(compressedReader, decompressedWriter)
	require.NoError(t, err, "unexpected error while decompressing")
	assert.EqualValues(t, len(sourceData), n, "decompressed image has wrong size")
	assert.Equal(t, sourceData, decompressedBuffer, "decompressed data is wrong")
}

func runRoundTripCompressionToBytesTest(t *testing.T, originalData []byte) {
	compressed, err := c.CompressImageToBytes(originalData)
	require.NoError(t, err, "error while compressing")
	t.Logf("image compressed %d -> %d", len(originalData), len(compressed))

	decompressed, err := c.DecompressImageToBytes(bytes.NewReader(compressed))
	require.NoError(t, err, "error while decompressing")

	assert.Equal(
		t, len(originalData), len(decompressed), "decompressed data length is wrong")
	assert.Equal(t, originalData, decompressed, "decompressed data is wrong")
}

func TestIsCompressedImage(t *testing.T) {
	compressed, err := c.CompressImageToBytes(make([]byte, 4096))
	require.NoError(t, err)

	assert.True(t, c.IsCompressedImage(compressed), "gzip output not detected")
	assert.False(t, c.IsCompressedImage([]byte{0xeb, 0x3c, 0x90}), "FAT jump detected as gzip")
	assert.False(t, c.IsCompressedImage(make([]byte, 512)), "zeroed MBR detected as gzip")
	assert.False(t, c.IsCompressedImage(nil), "empty header detected as gzip")
}

// A zero-filled FAT32-sized image must shrink to a tiny fraction of its size.
func TestCompressImage__SparseVolume(t *testing.T) {
	image := make([]byte, 512*4096)
	copy(image[510:], []byte{0x55, 0xaa})

	compressed, err := c.CompressImageToBytes(image)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(image)/100)

	decompressed, err := c.DecompressImageToBytes(bytes.NewReader(compressed))
	require.NoError(t, err)
	assert.Equal(t, image, decompressed)
}
