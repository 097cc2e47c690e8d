package fat

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/dargueta/fatbind"
	"github.com/dargueta/fatbind/engine"
)

// DirentSize is the size of a single raw directory entry, in bytes.
const DirentSize = 32

const (
	// direntEndOfDirectory in the first byte of a name marks the entry, and every
	// entry after it, as never used.
	direntEndOfDirectory = 0x00
	direntDeleted        = 0xe5
	// direntEscapedE5 stands in for a real leading 0xE5 byte in a name, since
	// that value already means "deleted".
	direntEscapedE5 = 0x05

	// ntResLowerBase and ntResLowerExt are set by Windows NT and later when the
	// base name or extension should be displayed in lowercase.
	ntResLowerBase = 0x08
	ntResLowerExt  = 0x10

	attrLongNameMask = 0x3f
)

// RawDirent is the on-disk representation of a directory entry, broken down into
// its constituent fields.
type RawDirent struct {
	Name              [8]byte
	Extension         [3]byte
	AttributeFlags    uint8
	NTReserved        uint8
	CreatedTimeMillis uint8
	CreatedTime       uint16
	CreatedDate       uint16
	LastAccessedDate  uint16
	FirstClusterHigh  uint16
	LastModifiedTime  uint16
	LastModifiedDate  uint16
	FirstClusterLow   uint16
	FileSize          uint32
}

// NewRawDirentFromBytes deserializes 32 bytes into a RawDirent struct for further
// processing.
func NewRawDirentFromBytes(data []byte) RawDirent {
	dirent := RawDirent{
		AttributeFlags:    data[11],
		NTReserved:        data[12],
		CreatedTimeMillis: data[13],
		CreatedTime:       binary.LittleEndian.Uint16(data[14:16]),
		CreatedDate:       binary.LittleEndian.Uint16(data[16:18]),
		LastAccessedDate:  binary.LittleEndian.Uint16(data[18:20]),
		FirstClusterHigh:  binary.LittleEndian.Uint16(data[20:22]),
		LastModifiedTime:  binary.LittleEndian.Uint16(data[22:24]),
		LastModifiedDate:  binary.LittleEndian.Uint16(data[24:26]),
		FirstClusterLow:   binary.LittleEndian.Uint16(data[26:28]),
		FileSize:          binary.LittleEndian.Uint32(data[28:32]),
	}

	copy(dirent.Name[:], data[:8])
	copy(dirent.Extension[:], data[8:11])
	return dirent
}

// IsEndOfDirectory returns true if this slot and all following ones are unused.
func (raw *RawDirent) IsEndOfDirectory() bool {
	return raw.Name[0] == direntEndOfDirectory
}

func (raw *RawDirent) IsDeleted() bool {
	return raw.Name[0] == direntDeleted
}

// IsLongNameSlot returns true if the entry holds part of a long file name rather
// than describing a file.
func (raw *RawDirent) IsLongNameSlot() bool {
	return raw.AttributeFlags&attrLongNameMask == fatbind.AttrLongName
}

// IsVolumeLabel returns true for the entry holding the volume label.
func (raw *RawDirent) IsVolumeLabel() bool {
	return raw.AttributeFlags&(fatbind.AttrVolumeLabel|fatbind.AttrDirectory) ==
		fatbind.AttrVolumeLabel
}

// IsDotEntry returns true for the `.` and `..` entries every subdirectory starts
// with.
func (raw *RawDirent) IsDotEntry() bool {
	return raw.Name[0] == '.'
}

// Dirent is a FAT directory entry converted into a usable form.
type Dirent struct {
	Name           string
	AttributeFlags uint8
	FirstCluster   ClusterID
	Size           int64
	LastModified   time.Time
	isRoot         bool
}

// IsDir returns true if the entry is a directory.
func (d *Dirent) IsDir() bool {
	return d.isRoot || d.AttributeFlags&fatbind.AttrDirectory != 0
}

// EntryInfo converts the directory entry into what the engine reports.
func (d *Dirent) EntryInfo() engine.EntryInfo {
	size := d.Size
	if d.IsDir() {
		size = 0
	}
	return engine.EntryInfo{
		Name:       d.Name,
		Size:       size,
		Attributes: d.AttributeFlags,
		ModTime:    d.LastModified,
	}
}

// rootDirent creates the pseudo-entry for the root directory, which has no
// directory entry of its own.
func rootDirent(bootSector *FATBootSector) Dirent {
	return Dirent{
		Name:           "/",
		AttributeFlags: fatbind.AttrDirectory,
		FirstCluster:   bootSector.RootCluster,
		isRoot:         true,
	}
}

// decodeShortName assembles the displayed "NAME.EXT" form of an 8.3 name.
func decodeShortName(raw *RawDirent) string {
	name := make([]byte, len(raw.Name))
	copy(name, raw.Name[:])
	if name[0] == direntEscapedE5 {
		name[0] = direntDeleted
	}

	trimmedName := strings.TrimRight(string(name), " ")
	trimmedExt := strings.TrimRight(string(raw.Extension[:]), " ")

	if raw.NTReserved&ntResLowerBase != 0 {
		trimmedName = strings.ToLower(trimmedName)
	}
	if raw.NTReserved&ntResLowerExt != 0 {
		trimmedExt = strings.ToLower(trimmedExt)
	}

	if trimmedExt == "" {
		return trimmedName
	}
	return trimmedName + "." + trimmedExt
}

// NewDirentFromRaw creates a fully processed Dirent from a raw one, such as
// converting packed date fields into time.Time values. On FAT12 and FAT16 the high
// half of the first cluster is reserved and ignored.
func NewDirentFromRaw(bootSector *FATBootSector, raw *RawDirent) Dirent {
	firstCluster := uint32(raw.FirstClusterLow)
	if bootSector.FATVersion == 32 {
		firstCluster |= uint32(raw.FirstClusterHigh) << 16
	}

	return Dirent{
		Name:           decodeShortName(raw),
		AttributeFlags: raw.AttributeFlags,
		FirstCluster:   ClusterID(firstCluster),
		Size:           int64(raw.FileSize),
		LastModified: TimestampFromParts(
			raw.LastModifiedDate, raw.LastModifiedTime, 0),
	}
}

// DateFromInt converts the FAT on-disk representation of a date into a Go
// time.Time object. A zero date means "not set" and gives the zero time.
func DateFromInt(value uint16) time.Time {
	if value == 0 {
		return time.Time{}
	}

	day := int(value & 0x001f)
	month := time.Month((value >> 5) & 0x000f)
	year := int(1980 + (value >> 9))
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// TimestampFromParts converts a FAT timestamp into a time.Time object. datePart is
// required; timePart and hundredths should be 0 if they're not present in the
// source field(s).
func TimestampFromParts(datePart uint16, timePart uint16, hundredths uint8) time.Time {
	date := DateFromInt(datePart)
	if date.IsZero() {
		return date
	}

	seconds := int(timePart&0x001f) * 2
	minutes := int((timePart >> 5) & 0x003f)
	hours := int(timePart >> 11)

	// The hundredths field covers two seconds, since the time field only has
	// two-second resolution.
	seconds += int(hundredths / 100)
	nanoseconds := int(hundredths%100) * 10_000_000

	return time.Date(
		date.Year(), date.Month(), date.Day(), hours, minutes, seconds, nanoseconds, time.UTC)
}
