// Package partition locates partitions on a block device.
//
// Partitions are numbered from 1. Index 0 is reserved for "the whole device" and
// only ever resolves when the device has no usable partition table.
package partition

import (
	"bytes"
	"fmt"

	"github.com/dargueta/fatbind"
	c "github.com/dargueta/fatbind/file_systems/common"
)

// Descriptor gives the location and type of a partition. All block values are in
// units of the device's block size.
type Descriptor struct {
	// Start is the absolute block the partition begins at.
	Start c.PhysicalBlock
	// Size is the number of blocks in the partition.
	Size      uint
	BlockSize uint
	// SysInd is the MBR system indicator, or 0 for GPT partitions and whole-device
	// descriptors.
	SysInd   uint8
	Type     string
	Bootable bool
	Name     string
	UUID     string
}

// Table is anything that can look up partitions on a device by index.
type Table interface {
	// Partition returns the descriptor for partition `index` on `device`. It fails
	// if the device has no table this implementation understands or the index
	// doesn't refer to a valid entry.
	Partition(device fatbind.BlockDevice, index int) (Descriptor, error)
}

// WholeDevice synthesizes a descriptor covering every block of `device`.
func WholeDevice(device fatbind.BlockDevice) Descriptor {
	return Descriptor{
		Start:     0,
		Size:      device.TotalBlocks(),
		BlockSize: device.BytesPerBlock(),
	}
}

// Discover resolves partition `index` on `device` using `table`. If the table
// lookup fails and `index` is 0, the entire device is treated as one partition.
// Any other failed lookup returns [fatbind.ErrPartitionNotFound]. A nil `table`
// behaves like a device without a partition table.
func Discover(device fatbind.BlockDevice, table Table, index int) (Descriptor, error) {
	var lookupErr error
	if table != nil {
		descriptor, err := table.Partition(device, index)
		if err == nil {
			return descriptor, nil
		}
		lookupErr = err
	}

	if index == 0 {
		return WholeDevice(device), nil
	}

	return Descriptor{}, fatbind.ErrPartitionNotFound.WithMessage(
		fmt.Sprintf("partition %d not valid on device %d", index, device.DeviceID()),
	).Wrap(lookupErr)
}

// readBlock reads a single absolute block from the device.
func readBlock(device fatbind.BlockDevice, block c.PhysicalBlock) ([]byte, error) {
	buffer := make([]byte, device.BytesPerBlock())
	transferred, err := device.ReadBlocks(block, 1, buffer)
	if err != nil {
		return nil, fatbind.ErrIOFailed.Wrap(err)
	}
	if transferred != 1 {
		return nil, fatbind.ErrIOFailed.WithMessage(
			fmt.Sprintf("device %d transferred nothing at block %d", device.DeviceID(), block),
		)
	}
	return buffer, nil
}

// hasBootSignature checks for the 55 AA marker shared by MBRs and boot sectors.
func hasBootSignature(block []byte) bool {
	return len(block) >= 512 && block[510] == 0x55 && block[511] == 0xaa
}

// looksLikeVolumeBootSector catches partitionless media whose block 0 is a FAT or
// exFAT boot sector. Those carry the same 55 AA marker as an MBR, and their BPB or
// boot code would otherwise be misread as a partition table.
func looksLikeVolumeBootSector(block []byte) bool {
	return bytes.Equal(block[0x36:0x39], []byte("FAT")) ||
		bytes.Equal(block[0x52:0x57], []byte("FAT32")) ||
		bytes.Equal(block[0x03:0x08], []byte("EXFAT"))
}

// AutoTable picks the partition scheme by inspecting block 0 of the device: GPT if
// it holds a protective MBR, DOS otherwise. It's the default table used by the
// volume binder.
type AutoTable struct{}

func (AutoTable) Partition(device fatbind.BlockDevice, index int) (Descriptor, error) {
	block0, err := readBlock(device, 0)
	if err != nil {
		return Descriptor{}, err
	}

	if isProtectiveMBR(block0) {
		return GPTTable{}.Partition(device, index)
	}
	return DOSTable{}.Partition(device, index)
}
