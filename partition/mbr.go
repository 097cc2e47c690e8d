package partition

import (
	"encoding/binary"
	"fmt"

	"github.com/dargueta/fatbind"
	c "github.com/dargueta/fatbind/file_systems/common"
)

const (
	mbrDiskSignatureOffset = 440
	mbrEntriesOffset       = 446
	mbrEntrySize           = 16
	mbrEntryCount          = 4

	// firstLogicalPartition is the number given to the first partition found
	// inside an extended partition, regardless of how many primaries are in use.
	firstLogicalPartition = 5

	// maxLogicalPartitions bounds the walk of the EBR chain so a corrupted table
	// whose links form a cycle can't hang discovery.
	maxLogicalPartitions = 128

	sysIndEmpty       = 0x00
	sysIndProtective  = 0xee
	bootIndActive     = 0x80
	sysIndExtended    = 0x05
	sysIndExtendedLBA = 0x0f
	sysIndLinuxExt    = 0x85
)

// mbrEntry is one 16-byte slot of an MBR or EBR partition table.
type mbrEntry struct {
	BootInd uint8
	SysInd  uint8
	// RelativeStart is the first block of the partition, relative to a base that
	// depends on which table the entry came from.
	RelativeStart uint32
	Size          uint32
}

func (e mbrEntry) isExtended() bool {
	return e.SysInd == sysIndExtended ||
		e.SysInd == sysIndExtendedLBA ||
		e.SysInd == sysIndLinuxExt
}

func (e mbrEntry) isEmpty() bool {
	return e.SysInd == sysIndEmpty || e.Size == 0
}

func parseMBREntries(block []byte) [mbrEntryCount]mbrEntry {
	var entries [mbrEntryCount]mbrEntry
	for i := range entries {
		raw := block[mbrEntriesOffset+i*mbrEntrySize : mbrEntriesOffset+(i+1)*mbrEntrySize]
		entries[i] = mbrEntry{
			BootInd:       raw[0],
			SysInd:        raw[4],
			RelativeStart: binary.LittleEndian.Uint32(raw[8:12]),
			Size:          binary.LittleEndian.Uint32(raw[12:16]),
		}
	}
	return entries
}

func isProtectiveMBR(block []byte) bool {
	if !hasBootSignature(block) || looksLikeVolumeBootSector(block) {
		return false
	}
	for _, entry := range parseMBREntries(block) {
		if entry.SysInd == sysIndProtective {
			return true
		}
	}
	return false
}

// DOSTable reads classic MBR partition tables. Primary partitions are numbered 1-4
// by their slot in the MBR; logical partitions inside an extended partition are
// numbered from 5 in the order they appear in the EBR chain.
type DOSTable struct{}

func (DOSTable) Partition(device fatbind.BlockDevice, index int) (Descriptor, error) {
	if index < 1 {
		return Descriptor{}, fatbind.ErrPartitionNotFound.WithMessage(
			fmt.Sprintf("DOS partitions are numbered from 1, got %d", index),
		)
	}

	block0, err := readBlock(device, 0)
	if err != nil {
		return Descriptor{}, err
	}
	if !hasBootSignature(block0) || looksLikeVolumeBootSector(block0) {
		return Descriptor{}, fatbind.ErrPartitionNotFound.WithMessage(
			fmt.Sprintf("no DOS partition table on device %d", device.DeviceID()),
		)
	}

	diskSignature := binary.LittleEndian.Uint32(
		block0[mbrDiskSignatureOffset : mbrDiskSignatureOffset+4],
	)
	entries := parseMBREntries(block0)

	if index <= mbrEntryCount {
		entry := entries[index-1]
		if entry.isEmpty() || entry.isExtended() {
			return Descriptor{}, fatbind.ErrPartitionNotFound.WithMessage(
				fmt.Sprintf("primary slot %d on device %d is not a partition", index, device.DeviceID()),
			)
		}
		return dosDescriptor(device, entry, 0, diskSignature, index), nil
	}

	for _, entry := range entries {
		if entry.isExtended() && !entry.isEmpty() {
			return findLogicalPartition(device, entry, diskSignature, index)
		}
	}
	return Descriptor{}, fatbind.ErrPartitionNotFound.WithMessage(
		fmt.Sprintf("device %d has no extended partition", device.DeviceID()),
	)
}

// findLogicalPartition walks the chain of extended boot records inside the
// extended partition described by `container`.
//
// Each EBR holds at most two entries: the logical partition itself, with a start
// relative to the EBR, and a link to the next EBR, relative to the start of the
// outermost extended partition.
func findLogicalPartition(
	device fatbind.BlockDevice,
	container mbrEntry,
	diskSignature uint32,
	index int,
) (Descriptor, error) {
	extendedBase := c.PhysicalBlock(container.RelativeStart)
	ebrBlock := extendedBase
	partNum := firstLogicalPartition

	for i := 0; i < maxLogicalPartitions; i++ {
		ebr, err := readBlock(device, ebrBlock)
		if err != nil {
			return Descriptor{}, err
		}
		if !hasBootSignature(ebr) {
			break
		}

		entries := parseMBREntries(ebr)
		var next *mbrEntry
		for slot := range entries {
			entry := entries[slot]
			if entry.isEmpty() {
				continue
			}
			if entry.isExtended() {
				if next == nil {
					next = &entries[slot]
				}
				continue
			}

			if partNum == index {
				return dosDescriptor(device, entry, ebrBlock, diskSignature, index), nil
			}
			partNum++
		}

		if next == nil {
			break
		}
		ebrBlock = extendedBase + c.PhysicalBlock(next.RelativeStart)
	}

	return Descriptor{}, fatbind.ErrPartitionNotFound.WithMessage(
		fmt.Sprintf(
			"logical partition %d not found on device %d (last is %d)",
			index,
			device.DeviceID(),
			partNum-1,
		),
	)
}

func dosDescriptor(
	device fatbind.BlockDevice,
	entry mbrEntry,
	base c.PhysicalBlock,
	diskSignature uint32,
	index int,
) Descriptor {
	descriptor := Descriptor{
		Start:     base + c.PhysicalBlock(entry.RelativeStart),
		Size:      uint(entry.Size),
		BlockSize: device.BytesPerBlock(),
		SysInd:    entry.SysInd,
		Type:      MBRTypeName(entry.SysInd),
		Bootable:  entry.BootInd == bootIndActive,
	}
	if diskSignature != 0 {
		descriptor.UUID = fmt.Sprintf("%08x-%02x", diskSignature, index)
	}
	return descriptor
}
