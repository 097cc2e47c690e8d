package testing

import (
	"encoding/binary"
	"hash/crc32"
	"unicode/utf16"

	"github.com/dargueta/fatbind/partition"
	"github.com/google/uuid"
)

// MBREntry is one slot of an MBR or EBR partition table.
type MBREntry struct {
	Bootable bool
	SysInd   uint8
	Start    uint32
	Size     uint32
}

func encodeMBREntry(entry MBREntry) [16]byte {
	var raw [16]byte
	if entry.Bootable {
		raw[0] = 0x80
	}
	raw[4] = entry.SysInd
	binary.LittleEndian.PutUint32(raw[8:12], entry.Start)
	binary.LittleEndian.PutUint32(raw[12:16], entry.Size)
	return raw
}

func writeTableBlock(image *SparseImage, block uint, signature uint32, entries []MBREntry) {
	sector := make([]byte, image.BytesPerBlock())
	binary.LittleEndian.PutUint32(sector[440:444], signature)
	for i, entry := range entries {
		raw := encodeMBREntry(entry)
		copy(sector[446+i*16:], raw[:])
	}
	sector[510] = 0x55
	sector[511] = 0xaa
	image.WriteAt(sector, int64(block)*int64(image.BytesPerBlock()))
}

// WriteMBR writes a DOS partition table with up to four primary entries into
// block 0.
func WriteMBR(image *SparseImage, signature uint32, entries ...MBREntry) {
	if len(entries) > 4 {
		panic("an MBR holds at most four entries")
	}
	writeTableBlock(image, 0, signature, entries)
}

// WriteEBR writes an extended boot record at absolute block `block`. `logical` is
// relative to the EBR itself; `next`, if its size is nonzero, links to the next
// EBR relative to the start of the extended partition.
func WriteEBR(image *SparseImage, block uint, logical MBREntry, next MBREntry) {
	entries := []MBREntry{logical}
	if next.Size != 0 {
		entries = append(entries, next)
	}
	writeTableBlock(image, block, 0, entries)
}

// GPTEntry describes one partition in a GUID partition table.
type GPTEntry struct {
	Type       uuid.UUID
	ID         uuid.UUID
	FirstBlock uint64
	LastBlock  uint64
	Attributes uint64
	Name       string
}

const (
	gptNumEntries = 128
	gptEntrySize  = 128
)

// GPTEntryArrayBlocks is how many blocks the entry array written by [WriteGPT]
// occupies, starting at block 2.
func GPTEntryArrayBlocks(image *SparseImage) uint {
	return (gptNumEntries*gptEntrySize + image.BytesPerBlock() - 1) / image.BytesPerBlock()
}

// WriteGPT writes a protective MBR, a primary GPT header in block 1 and the entry
// array starting at block 2. The backup GPT isn't written.
func WriteGPT(image *SparseImage, diskID uuid.UUID, entries ...GPTEntry) {
	WriteMBR(
		image,
		0,
		MBREntry{SysInd: 0xee, Start: 1, Size: uint32(min(image.TotalBlocks()-1, 0xffffffff))},
	)

	array := make([]byte, gptNumEntries*gptEntrySize)
	for i, entry := range entries {
		raw := array[i*gptEntrySize : (i+1)*gptEntrySize]
		typeGUID := partition.GUIDToDisk(entry.Type)
		uniqueGUID := partition.GUIDToDisk(entry.ID)
		copy(raw[0:16], typeGUID[:])
		copy(raw[16:32], uniqueGUID[:])
		binary.LittleEndian.PutUint64(raw[32:40], entry.FirstBlock)
		binary.LittleEndian.PutUint64(raw[40:48], entry.LastBlock)
		binary.LittleEndian.PutUint64(raw[48:56], entry.Attributes)
		for j, unit := range utf16.Encode([]rune(entry.Name)) {
			if j >= 36 {
				break
			}
			binary.LittleEndian.PutUint16(raw[56+j*2:58+j*2], unit)
		}
	}
	image.WriteAt(array, 2*int64(image.BytesPerBlock()))

	arrayBlocks := uint64(GPTEntryArrayBlocks(image))
	header := make([]byte, image.BytesPerBlock())
	copy(header[0:8], "EFI PART")
	binary.LittleEndian.PutUint32(header[8:12], 0x00010000)
	binary.LittleEndian.PutUint32(header[12:16], 92)
	binary.LittleEndian.PutUint64(header[24:32], 1)
	binary.LittleEndian.PutUint64(header[32:40], uint64(image.TotalBlocks()-1))
	binary.LittleEndian.PutUint64(header[40:48], 2+arrayBlocks)
	binary.LittleEndian.PutUint64(header[48:56], uint64(image.TotalBlocks())-2-arrayBlocks)
	diskGUID := partition.GUIDToDisk(diskID)
	copy(header[56:72], diskGUID[:])
	binary.LittleEndian.PutUint64(header[72:80], 2)
	binary.LittleEndian.PutUint32(header[80:84], gptNumEntries)
	binary.LittleEndian.PutUint32(header[84:88], gptEntrySize)
	binary.LittleEndian.PutUint32(header[88:92], crc32.ChecksumIEEE(array))
	binary.LittleEndian.PutUint32(header[16:20], crc32.ChecksumIEEE(header[:92]))
	image.WriteAt(header, int64(image.BytesPerBlock()))
}
