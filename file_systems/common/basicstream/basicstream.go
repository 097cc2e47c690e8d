// Package basicstream implements a read-only, file-like abstraction around any
// block-oriented source.
package basicstream

import (
	"fmt"
	"io"

	c "github.com/dargueta/fatbind/file_systems/common"
)

// BasicStream is a file-like wrapper around a [c.BlockSource] that emulates the
// read-only subset of the functionality provided by an [os.File] instance.
//
// The most recently read block is kept in a scratch buffer, so sequential reads
// smaller than one block only fetch each block once.
type BasicStream struct {
	size         int64
	position     int64
	source       c.BlockSource
	scratch      []byte
	scratchBlock c.LogicalBlock
}

// New creates a BasicStream on top of a block source. The `size` argument gives
// the exact size of the stream, in bytes; the source must be able to produce every
// block overlapping [0, size).
func New(size int64, source c.BlockSource) (*BasicStream, error) {
	if size < 0 {
		return nil, fmt.Errorf("invalid stream size: %d", size)
	}
	if source.BytesPerBlock() == 0 {
		return nil, fmt.Errorf("block source has a block size of 0")
	}

	return &BasicStream{
		size:         size,
		source:       source,
		scratch:      make([]byte, source.BytesPerBlock()),
		scratchBlock: c.InvalidLogicalBlock,
	}, nil
}

func (stream *BasicStream) convertLinearAddr(offset int64) (c.LogicalBlock, uint) {
	bytesPerBlock := int64(stream.source.BytesPerBlock())
	return c.LogicalBlock(offset / bytesPerBlock), uint(offset % bytesPerBlock)
}

// loadBlock makes `block` the contents of the scratch buffer.
func (stream *BasicStream) loadBlock(block c.LogicalBlock) error {
	if stream.scratchBlock == block {
		return nil
	}

	// Invalidate first so a failed fetch doesn't leave a half-filled buffer
	// marked as valid.
	stream.scratchBlock = c.InvalidLogicalBlock
	err := stream.source.ReadBlock(block, stream.scratch)
	if err != nil {
		return err
	}
	stream.scratchBlock = block
	return nil
}

func (stream *BasicStream) Read(buffer []byte) (int, error) {
	totalRead, err := stream.ReadAt(buffer, stream.position)
	stream.position += int64(totalRead)
	return totalRead, err
}

// ReadAt reads up to len(buffer) bytes starting at `offset`. If fewer bytes than
// requested are available, it returns the number read along with [io.EOF].
func (stream *BasicStream) ReadAt(buffer []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, fmt.Errorf("invalid read offset: %d", offset)
	}

	bufLen := int64(len(buffer))

	// Clamp the number of bytes to read to whichever is smaller; the length of
	// the buffer or the end of the file.
	var numBytesToRead int64
	if offset >= stream.size {
		if bufLen == 0 {
			return 0, nil
		}
		return 0, io.EOF
	} else if offset+bufLen > stream.size {
		numBytesToRead = stream.size - offset
	} else {
		numBytesToRead = bufLen
	}

	totalRead := int64(0)
	for totalRead < numBytesToRead {
		block, blockOffset := stream.convertLinearAddr(offset + totalRead)
		err := stream.loadBlock(block)
		if err != nil {
			return int(totalRead), err
		}

		n := copy(
			buffer[totalRead:numBytesToRead],
			stream.scratch[blockOffset:],
		)
		totalRead += int64(n)
	}

	if numBytesToRead < bufLen {
		return int(totalRead), io.EOF
	}
	return int(totalRead), nil
}

// Seek resets the stream pointer to `offset` bytes from the origin specified in
// `whence`. It must be one of [io.SeekStart], [io.SeekCurrent], or [io.SeekEnd].
//
// The stream can't grow, so the resulting position must be in [0, Size()].
func (stream *BasicStream) Seek(offset int64, whence int) (int64, error) {
	var absoluteOffset int64

	switch whence {
	case io.SeekStart:
		absoluteOffset = offset
	case io.SeekCurrent:
		absoluteOffset = stream.position + offset
	case io.SeekEnd:
		absoluteOffset = stream.size + offset
	default:
		return stream.position, fmt.Errorf("invalid seek origin: %d", whence)
	}

	if absoluteOffset < 0 || absoluteOffset > stream.size {
		return stream.position,
			fmt.Errorf(
				"result of Seek(offset=%d, whence=%d) is %d, not in [0, %d]",
				offset,
				whence,
				absoluteOffset,
				stream.size,
			)
	}

	stream.position = absoluteOffset
	return absoluteOffset, nil
}

// Size returns the size of the stream, in bytes.
func (stream *BasicStream) Size() int64 {
	return stream.size
}
