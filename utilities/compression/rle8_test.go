package compression_test

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	c "github.com/dargueta/fatbind/utilities/compression"
	"github.com/noxer/bytewriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type RLE8TestCase struct {
	Input          []byte
	ExpectedOutput []byte
	Name           string
}

func TestCompressRLE8__Basic(t *testing.T) {
	tests := []RLE8TestCase{
		{[]byte{}, []byte{}, "empty"},
		{[]byte{4, 4}, []byte{4, 4, 0}, "run with two only"},
		{[]byte{0, 1, 2, 3, 4}, []byte{0, 1, 2, 3, 4}, "no runs"},
		{[]byte{6, 1, 3, 0, 0}, []byte{6, 1, 3, 0, 0, 0}, "two at end"},
		{[]byte{6, 1, 0, 0, 0}, []byte{6, 1, 0, 0, 1}, "three at end"},
		{[]byte{9, 5, 5, 5, 5, 5, 3, 7}, []byte{9, 5, 5, 3, 3, 7}, "short run"},
		{
			[]byte{9, 5, 5, 5, 5, 5, 5, 3, 3, 3, 3, 7, 2, 6},
			[]byte{9, 5, 5, 4, 3, 3, 2, 7, 2, 6},
			"adjacent runs",
		},
		{
			bytes.Repeat([]byte{5}, 1024),
			[]byte{5, 5, 255, 5, 5, 255, 5, 5, 255, 5, 5, 251},
			"single long run",
		},
		{
			bytes.Repeat([]byte{8}, 257),
			[]byte{8, 8, 255},
			"257",
		},
		{
			bytes.Repeat([]byte{8}, 258),
			[]byte{8, 8, 255, 8},
			"258",
		},
		{
			bytes.Repeat([]byte{8}, 259),
			[]byte{8, 8, 255, 8, 8, 0},
			"259",
		},
	}

	for _, test := range tests {
		t.Run(
			test.Name,
			func(t *testing.T) {
				runCompressionTestCase(t, test)
			},
		)
	}
}

// Round-trip test of completely random bytes
func TestRLE8RoundTrip__CompletelyRandom(t *testing.T) {
	originalData := make([]byte, 1852)
	rand.Read(originalData)
	runRoundTripTestCase(t, originalData)
}

func TestRLE8RoundTrip__EntirelyNulls(t *testing.T) {
	originalData := make([]byte, 571)
	runRoundTripTestCase(t, originalData)
}

func TestRLE8RoundTrip__EntirelyNonNullRun(t *testing.T) {
	runRoundTripTestCase(t, bytes.Repeat([]byte{182}, 934))
}

func TestRLE8RoundTrip__Empty(t *testing.T) {
	runRoundTripTestCase(t, []byte{})
}

func TestRLE8Decompress__MissingRepeatCount(t *testing.T) {
	data := []byte{9, 1, 4, 4}
	decompressed := make([]byte, 16)
	writer := bytewriter.New(decompressed)

	n, err := c.DecompressRLE8(bytes.NewReader(data), writer)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.EqualValues(t, 3, n, "bytes before the truncated group are still written")
}

// A group that ends with a full count is followed by a fresh byte of the same
// value, which must not be taken as the start of another doubled pair.
func TestRLE8Decompress__GroupBoundary(t *testing.T) {
	decompressed := make([]byte, 300)
	n, err := c.DecompressRLE8(
		bytes.NewReader([]byte{3, 3, 255, 3, 1}), bytewriter.New(decompressed))
	require.NoError(t, err)
	assert.EqualValues(t, 259, n)
	assert.Equal(t, bytes.Repeat([]byte{3}, 258), decompressed[:258])
	assert.EqualValues(t, 1, decompressed[258])
}

////////////////////////////////////////////////////////////////////////////////
// Helper functions

func runCompressionTestCase(t *testing.T, test RLE8TestCase) {
	outputBuffer := make([]byte, len(test.ExpectedOutput)*2)
	n, err := c.CompressRLE8(bytes.NewBuffer(test.Input), bytewriter.New(outputBuffer))
	require.NoError(t, err)
	assert.EqualValues(t, len(test.ExpectedOutput), n, "wrong number of bytes written")
	assert.Equal(t, test.ExpectedOutput, outputBuffer[:n])
}

func runRoundTripTestCase(t *testing.T, originalData []byte) {
	// Sufficiently random data "compresses" to something larger than the input.
	compressedBuffer := make([]byte, len(originalData)*2)
	n, err := c.CompressRLE8(bytes.NewBuffer(originalData), bytewriter.New(compressedBuffer))
	require.NoError(t, err, "compressing failed")
	t.Logf("compressed %d to %d", len(originalData), n)

	outputBuffer := make([]byte, len(originalData))
	n, err = c.DecompressRLE8(
		bytes.NewReader(compressedBuffer[:n]), bytewriter.New(outputBuffer))
	require.NoError(t, err, "decompressing failed")
	assert.EqualValues(t, len(originalData), n, "decompressed size is wrong")
	assert.Equal(t, originalData, outputBuffer)
}
