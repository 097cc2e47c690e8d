package partition

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"
	"unicode/utf16"

	"github.com/dargueta/fatbind"
	c "github.com/dargueta/fatbind/file_systems/common"
	"github.com/google/uuid"
)

const (
	gptHeaderBlock     = 1
	gptMinHeaderSize   = 92
	gptMinEntrySize    = 128
	gptMaxEntries      = 1024
	gptAttrLegacyBoot  = 1 << 2
	gptEntryNameOffset = 56
	gptEntryNameLength = 72
)

var gptSignature = []byte("EFI PART")

// gptHeader holds the fields of the GPT header needed to find the partition
// entries.
type gptHeader struct {
	EntriesStart c.PhysicalBlock
	NumEntries   uint32
	EntrySize    uint32
	EntriesCRC   uint32
}

// GPTTable reads GUID partition tables. Entries are numbered from 1 in the order
// they appear in the entry array; unused slots don't resolve.
type GPTTable struct{}

func (GPTTable) Partition(device fatbind.BlockDevice, index int) (Descriptor, error) {
	if index < 1 {
		return Descriptor{}, fatbind.ErrPartitionNotFound.WithMessage(
			fmt.Sprintf("GPT partitions are numbered from 1, got %d", index),
		)
	}

	block0, err := readBlock(device, 0)
	if err != nil {
		return Descriptor{}, err
	}
	if !isProtectiveMBR(block0) {
		return Descriptor{}, fatbind.ErrPartitionNotFound.WithMessage(
			fmt.Sprintf("no protective MBR on device %d", device.DeviceID()),
		)
	}

	header, err := readGPTHeader(device)
	if err != nil {
		return Descriptor{}, err
	}
	if uint32(index) > header.NumEntries {
		return Descriptor{}, fatbind.ErrPartitionNotFound.WithMessage(
			fmt.Sprintf("partition %d not in GPT of %d entries", index, header.NumEntries),
		)
	}

	entries, err := readGPTEntries(device, header)
	if err != nil {
		return Descriptor{}, err
	}

	offset := uint(index-1) * uint(header.EntrySize)
	return parseGPTEntry(device, entries[offset:offset+uint(header.EntrySize)], index)
}

func readGPTHeader(device fatbind.BlockDevice) (gptHeader, error) {
	block, err := readBlock(device, gptHeaderBlock)
	if err != nil {
		return gptHeader{}, err
	}

	if !bytes.Equal(block[0:8], gptSignature) {
		return gptHeader{}, fatbind.ErrPartitionNotFound.WithMessage("GPT header signature missing")
	}

	headerSize := binary.LittleEndian.Uint32(block[12:16])
	if headerSize < gptMinHeaderSize || uint(headerSize) > uint(len(block)) {
		return gptHeader{}, fatbind.ErrPartitionNotFound.WithMessage(
			fmt.Sprintf("invalid GPT header size %d", headerSize),
		)
	}

	// The header checksum is computed with its own field zeroed.
	expectedCRC := binary.LittleEndian.Uint32(block[16:20])
	headerCopy := make([]byte, headerSize)
	copy(headerCopy, block[:headerSize])
	binary.LittleEndian.PutUint32(headerCopy[16:20], 0)
	if crc32.ChecksumIEEE(headerCopy) != expectedCRC {
		return gptHeader{}, fatbind.ErrPartitionNotFound.WithMessage("GPT header checksum mismatch")
	}

	header := gptHeader{
		EntriesStart: c.PhysicalBlock(binary.LittleEndian.Uint64(block[72:80])),
		NumEntries:   binary.LittleEndian.Uint32(block[80:84]),
		EntrySize:    binary.LittleEndian.Uint32(block[84:88]),
		EntriesCRC:   binary.LittleEndian.Uint32(block[88:92]),
	}
	if header.EntrySize < gptMinEntrySize ||
		header.EntrySize%8 != 0 ||
		uint(header.EntrySize) > device.BytesPerBlock() {
		return gptHeader{}, fatbind.ErrPartitionNotFound.WithMessage(
			fmt.Sprintf("invalid GPT entry size %d", header.EntrySize),
		)
	}
	if header.NumEntries > gptMaxEntries {
		return gptHeader{}, fatbind.ErrPartitionNotFound.WithMessage(
			fmt.Sprintf("GPT claims %d entries, limit is %d", header.NumEntries, gptMaxEntries),
		)
	}
	return header, nil
}

func readGPTEntries(device fatbind.BlockDevice, header gptHeader) ([]byte, error) {
	bytesPerBlock := device.BytesPerBlock()
	arraySize := uint(header.NumEntries) * uint(header.EntrySize)
	numBlocks := (arraySize + bytesPerBlock - 1) / bytesPerBlock

	totalBlocks := uint64(device.TotalBlocks())
	if uint64(header.EntriesStart) >= totalBlocks ||
		uint64(numBlocks) > totalBlocks-uint64(header.EntriesStart) {
		return nil, fatbind.ErrPartitionNotFound.WithMessage(
			fmt.Sprintf(
				"GPT entry array of %d blocks at block %d doesn't fit on device %d",
				numBlocks,
				header.EntriesStart,
				device.DeviceID(),
			),
		)
	}

	entries := make([]byte, numBlocks*bytesPerBlock)
	for i := uint(0); i < numBlocks; i++ {
		block, err := readBlock(device, header.EntriesStart+c.PhysicalBlock(i))
		if err != nil {
			return nil, err
		}
		copy(entries[i*bytesPerBlock:], block)
	}

	entries = entries[:arraySize]
	if crc32.ChecksumIEEE(entries) != header.EntriesCRC {
		return nil, fatbind.ErrPartitionNotFound.WithMessage("GPT entry array checksum mismatch")
	}
	return entries, nil
}

// guidFromDisk converts a GUID from its on-disk mixed-endian layout, where the
// first three groups are little-endian.
func guidFromDisk(raw []byte) uuid.UUID {
	var swapped [16]byte
	copy(swapped[:], raw[:16])
	swapped[0], swapped[1], swapped[2], swapped[3] = raw[3], raw[2], raw[1], raw[0]
	swapped[4], swapped[5] = raw[5], raw[4]
	swapped[6], swapped[7] = raw[7], raw[6]

	guid, _ := uuid.FromBytes(swapped[:])
	return guid
}

// GUIDToDisk converts a GUID into the mixed-endian layout used on disk.
func GUIDToDisk(guid uuid.UUID) [16]byte {
	raw := [16]byte(guid)
	raw[0], raw[1], raw[2], raw[3] = guid[3], guid[2], guid[1], guid[0]
	raw[4], raw[5] = guid[5], guid[4]
	raw[6], raw[7] = guid[7], guid[6]
	return raw
}

func parseGPTEntry(device fatbind.BlockDevice, raw []byte, index int) (Descriptor, error) {
	typeGUID := guidFromDisk(raw[0:16])
	if typeGUID == uuid.Nil {
		return Descriptor{}, fatbind.ErrPartitionNotFound.WithMessage(
			fmt.Sprintf("GPT entry %d is unused", index),
		)
	}

	firstBlock := binary.LittleEndian.Uint64(raw[32:40])
	lastBlock := binary.LittleEndian.Uint64(raw[40:48])
	if lastBlock < firstBlock {
		return Descriptor{}, fatbind.ErrPartitionNotFound.WithMessage(
			fmt.Sprintf("GPT entry %d ends at %d before it starts at %d", index, lastBlock, firstBlock),
		)
	}
	attributes := binary.LittleEndian.Uint64(raw[48:56])

	return Descriptor{
		Start:     c.PhysicalBlock(firstBlock),
		Size:      uint(lastBlock - firstBlock + 1),
		BlockSize: device.BytesPerBlock(),
		Type:      GPTTypeName(typeGUID),
		Bootable:  attributes&gptAttrLegacyBoot != 0,
		Name:      decodeGPTName(raw[gptEntryNameOffset : gptEntryNameOffset+gptEntryNameLength]),
		UUID:      guidFromDisk(raw[16:32]).String(),
	}, nil
}

// decodeGPTName decodes a NUL-padded UTF-16LE partition name.
func decodeGPTName(raw []byte) string {
	units := make([]uint16, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		unit := binary.LittleEndian.Uint16(raw[i : i+2])
		if unit == 0 {
			break
		}
		units = append(units, unit)
	}
	return strings.TrimSpace(string(utf16.Decode(units)))
}
