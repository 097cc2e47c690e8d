package fatbind

import (
	"os"
	"time"

	"github.com/dargueta/fatbind/file_systems/common"
)

// BlockDevice is the interface for the physical devices a volume can be bound to.
// Implementations are owned by the caller; this module only reads from them.
type BlockDevice interface {
	// BytesPerBlock gives the size of one block, in bytes.
	BytesPerBlock() uint
	// TotalBlocks gives the number of addressable blocks on the device.
	TotalBlocks() uint
	// DeviceID is a small integer identifying the device in messages.
	DeviceID() int
	// ReadBlocks reads `count` whole blocks beginning at the absolute block `start`
	// into `buffer`, and returns the number of blocks actually transferred. Drivers
	// may transfer fewer blocks than requested; retry policy, if any, belongs to the
	// driver.
	ReadBlocks(start common.PhysicalBlock, count uint, buffer []byte) (uint, error)
}

// DirectoryEntry represents a file or directory encountered on a bound volume. It
// implements the [os.FileInfo] interface.
//
// Entries are snapshots: they are not updated and must not be assumed valid after
// the volume they came from is rebound.
type DirectoryEntry struct {
	name       string
	size       int64
	attributes uint8
	modTime    time.Time
}

// NewDirectoryEntry creates a [DirectoryEntry] from its parts. `attributes` is a
// combination of the Attr* flags.
func NewDirectoryEntry(
	name string, size int64, attributes uint8, modTime time.Time,
) DirectoryEntry {
	return DirectoryEntry{
		name:       name,
		size:       size,
		attributes: attributes,
		modTime:    modTime,
	}
}

// Name returns the base name of the directory entry on the file system.
func (d DirectoryEntry) Name() string {
	return d.name
}

// Size gives the size of a regular file in bytes. Directories always report 0.
func (d DirectoryEntry) Size() int64 {
	return d.size
}

// Attributes returns the raw FAT attribute flags.
func (d DirectoryEntry) Attributes() uint8 {
	return d.attributes
}

// ModTime returns the timestamp the entry was last modified at.
func (d DirectoryEntry) ModTime() time.Time {
	return d.modTime
}

// Mode returns the file system mode of the directory entry as an os.FileMode. FAT has
// no notion of execute permission or ownership, so only the directory bit and the
// read-only attribute are reflected.
func (d DirectoryEntry) Mode() os.FileMode {
	var mode os.FileMode = 0o555
	if d.attributes&AttrReadOnly == 0 {
		mode |= 0o222
	}
	if d.IsDir() {
		mode |= os.ModeDir
	}
	return mode
}

// IsDir returns true if it's a directory.
func (d DirectoryEntry) IsDir() bool {
	return d.attributes&AttrDirectory != 0
}

// Sys returns the raw attribute flags.
func (d DirectoryEntry) Sys() interface{} {
	return d.attributes
}
