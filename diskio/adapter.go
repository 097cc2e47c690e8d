// Package diskio translates partition-relative block reads into reads on the
// physical device holding the partition.
package diskio

import (
	"fmt"

	"github.com/dargueta/fatbind"
	c "github.com/dargueta/fatbind/file_systems/common"
	"github.com/dargueta/fatbind/partition"
)

// Adapter gives a file system engine a view of a single partition on a device.
// Block 0 of the adapter is the first block of the partition, and no read can
// reach outside it.
//
// The zero value is a detached adapter; every read fails with
// [fatbind.ErrNoDevice] until [Adapter.Attach] is called.
type Adapter struct {
	device    fatbind.BlockDevice
	partition partition.Descriptor
}

// Attach points the adapter at a partition on a device, replacing whatever it was
// attached to before.
func (adapter *Adapter) Attach(device fatbind.BlockDevice, part partition.Descriptor) {
	adapter.device = device
	adapter.partition = part
}

// Detach drops the device reference. The device itself is left untouched.
func (adapter *Adapter) Detach() {
	adapter.device = nil
	adapter.partition = partition.Descriptor{}
}

// Attached returns true if the adapter currently refers to a device.
func (adapter *Adapter) Attached() bool {
	return adapter.device != nil
}

// Device returns the device the adapter is attached to, or nil.
func (adapter *Adapter) Device() fatbind.BlockDevice {
	return adapter.device
}

// Partition returns the descriptor of the partition the adapter is attached to.
func (adapter *Adapter) Partition() partition.Descriptor {
	return adapter.partition
}

// BytesPerBlock returns the block size of the attached device, or 0 if detached.
func (adapter *Adapter) BytesPerBlock() uint {
	if adapter.device == nil {
		return 0
	}
	return adapter.device.BytesPerBlock()
}

// TotalBlocks returns the size of the attached partition, in blocks.
func (adapter *Adapter) TotalBlocks() uint {
	return adapter.partition.Size
}

// ReadBlocks reads `count` blocks starting at `block`, which is relative to the
// start of the partition. The whole range must lie within the partition.
func (adapter *Adapter) ReadBlocks(
	block c.LogicalBlock, count uint, buffer []byte,
) (uint, error) {
	if adapter.device == nil {
		return 0, fatbind.ErrNoDevice
	}
	if count == 0 {
		return 0, nil
	}

	if uint(block) >= adapter.partition.Size || count > adapter.partition.Size-uint(block) {
		return 0, fatbind.ErrIOFailed.WithMessage(
			fmt.Sprintf(
				"blocks [%d, %d) extend past end of partition (%d blocks)",
				block,
				uint(block)+count,
				adapter.partition.Size,
			),
		)
	}

	physical := adapter.partition.Start + c.PhysicalBlock(block)
	return ReadAbsolute(adapter.device, physical, count, buffer)
}

// ReadAbsolute reads blocks from the attached device ignoring the partition
// offset. It's only meant for probing structures that live at fixed places on the
// device, such as partition tables.
func (adapter *Adapter) ReadAbsolute(
	block c.PhysicalBlock, count uint, buffer []byte,
) (uint, error) {
	if adapter.device == nil {
		return 0, fatbind.ErrNoDevice
	}
	return ReadAbsolute(adapter.device, block, count, buffer)
}

// ReadAbsolute reads `count` blocks from `device` starting at the absolute block
// `block`. A request for zero blocks always succeeds without touching the device.
// A device error, or a non-empty request that transfers nothing, fails with
// [fatbind.ErrIOFailed]. Otherwise the number of blocks the device transferred is
// returned as-is.
func ReadAbsolute(
	device fatbind.BlockDevice, block c.PhysicalBlock, count uint, buffer []byte,
) (uint, error) {
	if device == nil {
		return 0, fatbind.ErrNoDevice
	}
	if count == 0 {
		return 0, nil
	}

	bytesNeeded := count * device.BytesPerBlock()
	if uint(len(buffer)) < bytesNeeded {
		return 0, fatbind.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"need a buffer of at least %d bytes for %d blocks, got %d",
				bytesNeeded,
				count,
				len(buffer),
			),
		)
	}

	transferred, err := device.ReadBlocks(block, count, buffer[:bytesNeeded])
	if err != nil {
		return transferred, fatbind.ErrIOFailed.WithMessage(
			fmt.Sprintf(
				"failed to read %d blocks at %d from device %d",
				count,
				block,
				device.DeviceID(),
			),
		).Wrap(err)
	}
	if transferred == 0 {
		return 0, fatbind.ErrIOFailed.WithMessage(
			fmt.Sprintf(
				"device %d transferred 0 of %d blocks at %d",
				device.DeviceID(),
				count,
				block,
			),
		)
	}
	return transferred, nil
}
