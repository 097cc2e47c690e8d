package testing

import (
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/dargueta/fatbind"
	c "github.com/dargueta/fatbind/file_systems/common"
	"github.com/dargueta/fatbind/file_systems/common/blockcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// CreateRandomImage creates an image with the given number of blocks and bytes per
// block. It is guaranteed to either return a valid slice or fail the test and
// abort.
func CreateRandomImage(bytesPerBlock, totalBlocks uint, t *testing.T) []byte {
	backingData := make([]byte, bytesPerBlock*totalBlocks)

	_, err := rand.Read(backingData)
	require.NoErrorf(
		t,
		err,
		"failed to initialize %d blocks of size %d with random bytes",
		totalBlocks,
		bytesPerBlock,
	)
	return backingData
}

// CreateDefaultCache creates a block cache over `backingData`, or over random data
// if `backingData` is nil. The fetch handler fails the test if the cache ever
// asks for a block outside [0, totalBlocks), and counts every fetch in
// `fetchCount` if it's not nil.
func CreateDefaultCache(
	bytesPerBlock,
	totalBlocks uint,
	backingData []byte,
	fetchCount *int,
	t *testing.T,
) *blockcache.BlockCache {
	if backingData == nil {
		backingData = CreateRandomImage(bytesPerBlock, totalBlocks, t)
	}

	fetchCallback := func(blockIndex c.LogicalBlock, buffer []byte) error {
		if blockIndex >= c.LogicalBlock(totalBlocks) {
			message := fmt.Sprintf(
				"attempted to read outside bounds: block %d not in [0, %d)",
				blockIndex,
				totalBlocks,
			)
			t.Error(message)
			return fatbind.ErrIOFailed.WithMessage(message)
		}
		if fetchCount != nil {
			*fetchCount++
		}

		start := blockIndex * c.LogicalBlock(bytesPerBlock)
		copy(buffer, backingData[start:start+c.LogicalBlock(bytesPerBlock)])
		return nil
	}

	cache := blockcache.New(bytesPerBlock, totalBlocks, fetchCallback)
	assert.EqualValues(t, bytesPerBlock, cache.BytesPerBlock(), "wrong bytes per block")
	assert.EqualValues(t, totalBlocks, cache.TotalBlocks(), "wrong total blocks")
	assert.EqualValues(t, bytesPerBlock*totalBlocks, cache.Size(), "total size is wrong")
	return cache
}
