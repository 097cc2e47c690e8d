package volume

import (
	"bytes"

	"github.com/dargueta/fatbind"
)

// Boot sector layout. The tags are advisory: a match only means the volume is
// worth handing to the engine, which does the real structural validation.
const (
	BootSignatureOffset = 510
	FATTagOffset        = 54
	FAT32TagOffset      = 82
	ExFATTagOffset      = 3
)

var (
	bootSignature = []byte{0x55, 0xaa}
	fatTag        = []byte("FAT")
	fat32Tag      = []byte("FAT32")
	exFATTag      = []byte("EXFAT")
)

// Tag identifies which type tag was found in a boot sector.
type Tag int

const (
	TagNone Tag = iota
	// TagFAT is the FAT12/FAT16 tag. The two can't be told apart from the tag.
	TagFAT
	TagFAT32
	TagExFAT
)

// Kind gives the file system kind implied by the tag alone. [TagFAT] gives
// [fatbind.KindUnknown], since only the engine can tell FAT12 from FAT16.
func (t Tag) Kind() fatbind.FSKind {
	switch t {
	case TagFAT32:
		return fatbind.KindFAT32
	case TagExFAT:
		return fatbind.KindExFAT
	default:
		return fatbind.KindUnknown
	}
}

func (t Tag) String() string {
	switch t {
	case TagFAT:
		return "FAT"
	case TagFAT32:
		return "FAT32"
	case TagExFAT:
		return "EXFAT"
	default:
		return "none"
	}
}

// hasTagAt compares the window of `sector` at `offset` with `tag`. Windows that
// extend past the end of the sector never match.
func hasTagAt(sector []byte, offset int, tag []byte) bool {
	end := offset + len(tag)
	return end <= len(sector) && bytes.Equal(sector[offset:end], tag)
}

// CheckBootSignature verifies the 55 AA marker at the end of the first 512 bytes
// of a boot sector.
func CheckBootSignature(sector []byte) error {
	if !hasTagAt(sector, BootSignatureOffset, bootSignature) {
		return fatbind.ErrNotABootSector
	}
	return nil
}

// DetectTag looks for the FAT, FAT32 and EXFAT type tags, in that order, and
// returns the first one found.
func DetectTag(sector []byte) (Tag, error) {
	switch {
	case hasTagAt(sector, FATTagOffset, fatTag):
		return TagFAT, nil
	case hasTagAt(sector, FAT32TagOffset, fat32Tag):
		return TagFAT32, nil
	case hasTagAt(sector, ExFATTagOffset, exFATTag):
		return TagExFAT, nil
	default:
		return TagNone, fatbind.ErrUnrecognizedFilesystem
	}
}
