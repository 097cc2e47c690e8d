// Package common contains definitions of fundamental types used across the block
// I/O, partition and file system layers.
package common

import "math"

// LogicalBlock is a block index relative to the start of a partition or object.
type LogicalBlock uint

// PhysicalBlock is a block index relative to the start of a device.
type PhysicalBlock uint

const InvalidLogicalBlock = LogicalBlock(math.MaxUint)
const InvalidPhysicalBlock = PhysicalBlock(math.MaxUint)

// BlockSource is anything that can produce a single fixed-size block on demand.
// `buffer` is always exactly BytesPerBlock() bytes long.
type BlockSource interface {
	BytesPerBlock() uint
	ReadBlock(index LogicalBlock, buffer []byte) error
}
