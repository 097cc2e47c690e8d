// Package blockdev provides [fatbind.BlockDevice] implementations backed by
// ordinary streams: image files on disk, compressed fixtures and byte slices.
package blockdev

import (
	"fmt"
	"io"

	"github.com/dargueta/fatbind"
	c "github.com/dargueta/fatbind/file_systems/common"
)

// StreamDevice is an abstraction layer around a stream to make it look like a
// block device, i.e. something that can only be read from in multiples of its
// fundamental unit, a "block".
type StreamDevice struct {
	bytesPerBlock uint
	totalBlocks   uint
	deviceID      int
	stream        io.ReadSeeker
	closer        io.Closer
}

// DetermineBlockCount gives the total number of blocks in a stream, rounded down
// to the nearest block.
func DetermineBlockCount(stream io.Seeker, bytesPerBlock uint) (uint, error) {
	if bytesPerBlock == 0 {
		return 0, fatbind.ErrInvalidArgument.WithMessage("block size can't be 0")
	}

	offset, err := stream.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	return uint(offset / int64(bytesPerBlock)), nil
}

// NewStreamDevice creates a block device over `stream`. The device is sized to the
// number of whole blocks in the stream; a trailing partial block is unreachable.
func NewStreamDevice(
	stream io.ReadSeeker, bytesPerBlock uint, deviceID int,
) (*StreamDevice, error) {
	totalBlocks, err := DetermineBlockCount(stream, bytesPerBlock)
	if err != nil {
		return nil, err
	}

	return &StreamDevice{
		bytesPerBlock: bytesPerBlock,
		totalBlocks:   totalBlocks,
		deviceID:      deviceID,
		stream:        stream,
	}, nil
}

func (device *StreamDevice) BytesPerBlock() uint {
	return device.bytesPerBlock
}

func (device *StreamDevice) TotalBlocks() uint {
	return device.totalBlocks
}

func (device *StreamDevice) DeviceID() int {
	return device.deviceID
}

// blockToOffset converts a block index into a byte offset into the backing stream.
func (device *StreamDevice) blockToOffset(block c.PhysicalBlock) int64 {
	return int64(block) * int64(device.bytesPerBlock)
}

// ReadBlocks implements [fatbind.BlockDevice]. Requests running past the end of
// the stream are cut short at the last block, and the short count is returned
// without an error.
func (device *StreamDevice) ReadBlocks(
	start c.PhysicalBlock, count uint, buffer []byte,
) (uint, error) {
	if uint(len(buffer)) < count*device.bytesPerBlock {
		return 0, fatbind.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"buffer of %d bytes can't hold %d blocks of %d bytes",
				len(buffer),
				count,
				device.bytesPerBlock,
			),
		)
	}
	if count == 0 {
		return 0, nil
	}
	if uint(start) >= device.totalBlocks {
		return 0, fatbind.ErrIOFailed.WithMessage(
			fmt.Sprintf(
				"block %d on device %d not in range [0, %d)",
				start,
				device.deviceID,
				device.totalBlocks,
			),
		)
	}

	available := device.totalBlocks - uint(start)
	if count > available {
		count = available
	}

	_, err := device.stream.Seek(device.blockToOffset(start), io.SeekStart)
	if err != nil {
		return 0, fatbind.ErrIOFailed.Wrap(err)
	}

	bytesRead, err := io.ReadFull(device.stream, buffer[:count*device.bytesPerBlock])
	transferred := uint(bytesRead) / device.bytesPerBlock
	if err != nil {
		return transferred, fatbind.ErrIOFailed.Wrap(err)
	}
	return transferred, nil
}

// Close releases the backing file, if the device owns one.
func (device *StreamDevice) Close() error {
	if device.closer == nil {
		return nil
	}
	err := device.closer.Close()
	device.closer = nil
	return err
}
