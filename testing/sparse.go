package testing

import (
	"fmt"

	"github.com/dargueta/fatbind"
	c "github.com/dargueta/fatbind/file_systems/common"
)

// SparseImage is an in-memory block device that only stores blocks that have been
// written to. Unwritten blocks read as zeroes, so large FAT32 volumes cost little
// more memory than the data on them.
type SparseImage struct {
	bytesPerBlock uint
	totalBlocks   uint
	deviceID      int
	blocks        map[uint][]byte
}

func NewSparseImage(bytesPerBlock, totalBlocks uint, deviceID int) *SparseImage {
	return &SparseImage{
		bytesPerBlock: bytesPerBlock,
		totalBlocks:   totalBlocks,
		deviceID:      deviceID,
		blocks:        make(map[uint][]byte),
	}
}

func (image *SparseImage) BytesPerBlock() uint {
	return image.bytesPerBlock
}

func (image *SparseImage) TotalBlocks() uint {
	return image.totalBlocks
}

func (image *SparseImage) DeviceID() int {
	return image.deviceID
}

// Size returns the size of the image, in bytes.
func (image *SparseImage) Size() int64 {
	return int64(image.bytesPerBlock) * int64(image.totalBlocks)
}

func (image *SparseImage) checkRange(offset int64, length int) {
	if offset < 0 || offset+int64(length) > image.Size() {
		panic(
			fmt.Sprintf(
				"access of %d bytes at %d outside image of %d bytes",
				length,
				offset,
				image.Size(),
			),
		)
	}
}

// WriteAt copies `data` into the image at byte offset `offset`. Writing outside
// the image is a bug in the test and panics.
func (image *SparseImage) WriteAt(data []byte, offset int64) (int, error) {
	image.checkRange(offset, len(data))

	written := 0
	for written < len(data) {
		position := uint(offset) + uint(written)
		blockIndex := position / image.bytesPerBlock
		blockOffset := position % image.bytesPerBlock

		block, ok := image.blocks[blockIndex]
		if !ok {
			block = make([]byte, image.bytesPerBlock)
			image.blocks[blockIndex] = block
		}
		written += copy(block[blockOffset:], data[written:])
	}
	return written, nil
}

// ReadAt copies bytes from the image at byte offset `offset` into `buffer`.
func (image *SparseImage) ReadAt(buffer []byte, offset int64) (int, error) {
	image.checkRange(offset, len(buffer))

	read := 0
	for read < len(buffer) {
		position := uint(offset) + uint(read)
		blockIndex := position / image.bytesPerBlock
		blockOffset := position % image.bytesPerBlock
		chunk := min(int(image.bytesPerBlock-blockOffset), len(buffer)-read)

		block, ok := image.blocks[blockIndex]
		if ok {
			copy(buffer[read:read+chunk], block[blockOffset:])
		} else {
			clear(buffer[read : read+chunk])
		}
		read += chunk
	}
	return read, nil
}

// ReadBlocks implements [fatbind.BlockDevice]. Like a real disk, it refuses reads
// starting outside the device and truncates reads running past its end.
func (image *SparseImage) ReadBlocks(
	start c.PhysicalBlock, count uint, buffer []byte,
) (uint, error) {
	if uint(start) >= image.totalBlocks {
		return 0, fatbind.ErrIOFailed.WithMessage(
			fmt.Sprintf("block %d not in [0, %d)", start, image.totalBlocks))
	}

	count = min(count, image.totalBlocks-uint(start))
	image.ReadAt(
		buffer[:count*image.bytesPerBlock],
		int64(start)*int64(image.bytesPerBlock),
	)
	return count, nil
}

// Flatten returns the entire image as one contiguous byte slice.
func (image *SparseImage) Flatten() []byte {
	data := make([]byte, image.Size())
	for index, block := range image.blocks {
		copy(data[index*image.bytesPerBlock:], block)
	}
	return data
}
