// Package blockcache provides a read-only block cache that gives a linear view of a
// single object scattered across discontiguous blocks on a volume. Blocks are only
// fetched from backing storage the first time they're accessed.
//
// All block indices begin at 0.
package blockcache

import (
	"fmt"
	"io"

	"github.com/boljen/go-bitmap"
	c "github.com/dargueta/fatbind/file_systems/common"
)

// FetchBlockCallback is a pointer to a function that writes the contents of a
// single block from the backing storage into `buffer`. The following guarantees
// apply:
//
// - `blockIndex` is in the range [0, TotalBlocks).
// - `buffer` is always BytesPerBlock bytes.
type FetchBlockCallback func(blockIndex c.LogicalBlock, buffer []byte) error

type BlockCache struct {
	loadedBlocks  bitmap.Bitmap
	fetch         FetchBlockCallback
	bytesPerBlock uint
	totalBlocks   uint
	data          []byte
}

// New creates a new BlockCache of `totalBlocks` blocks, each `bytesPerBlock` bytes,
// that loads missing blocks with `fetchCb`.
func New(
	bytesPerBlock uint,
	totalBlocks uint,
	fetchCb FetchBlockCallback,
) *BlockCache {
	return &BlockCache{
		loadedBlocks:  bitmap.New(int(totalBlocks)),
		data:          make([]byte, int(bytesPerBlock*totalBlocks)),
		fetch:         fetchCb,
		bytesPerBlock: bytesPerBlock,
		totalBlocks:   totalBlocks,
	}
}

// BytesPerBlock returns the size of a single block, in bytes.
func (cache *BlockCache) BytesPerBlock() uint {
	return cache.bytesPerBlock
}

// TotalBlocks returns the size of the cache, in blocks.
func (cache *BlockCache) TotalBlocks() uint {
	return cache.totalBlocks
}

// Size gives the size of the cache, in bytes (not blocks!).
func (cache *BlockCache) Size() int64 {
	return int64(cache.bytesPerBlock) * int64(cache.totalBlocks)
}

// IsLoaded reports whether a block is already present in the cache.
func (cache *BlockCache) IsLoaded(index c.LogicalBlock) bool {
	if uint(index) >= cache.totalBlocks {
		return false
	}
	return cache.loadedBlocks.Get(int(index))
}

// checkBounds verifies that `count` blocks can be accessed in the cache starting
// from block `start`. If not, it returns an error describing the exact conditions.
func (cache *BlockCache) checkBounds(start c.LogicalBlock, count uint) error {
	if uint(start) > cache.totalBlocks || count > cache.totalBlocks-uint(start) {
		return fmt.Errorf(
			"can't access %d blocks from block %d; range not in [0, %d)",
			count,
			start,
			cache.totalBlocks,
		)
	}
	return nil
}

// GetSlice returns a slice pointing to the cache's storage, beginning at block
// `start` and continuing for `count` blocks. The returned slice must not be
// modified.
func (cache *BlockCache) GetSlice(start c.LogicalBlock, count uint) ([]byte, error) {
	err := cache.loadBlockRange(start, count)
	if err != nil {
		return nil, err
	}

	startOffset := uint(start) * cache.bytesPerBlock
	endOffset := startOffset + (count * cache.bytesPerBlock)
	return cache.data[startOffset:endOffset], nil
}

// loadBlockRange ensures that all blocks in the range [start, start + count) are
// present in the cache, and loads any missing ones from storage.
func (cache *BlockCache) loadBlockRange(start c.LogicalBlock, count uint) error {
	err := cache.checkBounds(start, count)
	if err != nil {
		return err
	}

	for blockIndex := uint(start); blockIndex < uint(start)+count; blockIndex++ {
		if cache.loadedBlocks.Get(int(blockIndex)) {
			continue
		}

		offset := blockIndex * cache.bytesPerBlock
		buffer := cache.data[offset : offset+cache.bytesPerBlock]

		err = cache.fetch(c.LogicalBlock(blockIndex), buffer)
		if err != nil {
			return fmt.Errorf(
				"failed to load block %d from source: %w",
				blockIndex,
				err,
			)
		}
		cache.loadedBlocks.Set(int(blockIndex), true)
	}

	return nil
}

// ReadBlock copies a single block into `buffer`, implementing [c.BlockSource].
func (cache *BlockCache) ReadBlock(index c.LogicalBlock, buffer []byte) error {
	source, err := cache.GetSlice(index, 1)
	if err != nil {
		return err
	}
	copy(buffer, source)
	return nil
}

// ReadAt implements [io.ReaderAt] over the linear contents of the cache. `offset`
// is in bytes. Reads that extend past the end return the bytes available and
// [io.EOF].
func (cache *BlockCache) ReadAt(buffer []byte, offset int64) (int, error) {
	size := cache.Size()
	if offset < 0 {
		return 0, fmt.Errorf("invalid offset: %d", offset)
	} else if offset >= size {
		return 0, io.EOF
	}

	end := offset + int64(len(buffer))
	if end > size {
		end = size
	}

	if end == offset {
		return 0, nil
	}
	firstBlock := uint(offset) / cache.bytesPerBlock
	lastBlock := uint(end-1) / cache.bytesPerBlock

	err := cache.loadBlockRange(c.LogicalBlock(firstBlock), lastBlock-firstBlock+1)
	if err != nil {
		return 0, err
	}

	n := copy(buffer, cache.data[offset:end])
	if n < len(buffer) {
		return n, io.EOF
	}
	return n, nil
}
