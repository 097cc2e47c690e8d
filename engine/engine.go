// Package engine defines the contract between the volume binder and a filesystem
// engine: the component that actually understands directory entries and allocation
// tables.
//
// Engines report outcomes with [Result] codes rather than Go errors so the binder
// can translate every outcome through one table.
package engine

import (
	"time"

	"github.com/dargueta/fatbind"
	c "github.com/dargueta/fatbind/file_systems/common"
)

// BlockReader is the partition-relative view of a device that an engine mounts.
type BlockReader interface {
	BytesPerBlock() uint
	// TotalBlocks gives the size of the partition, in blocks.
	TotalBlocks() uint
	ReadBlocks(block c.LogicalBlock, count uint, buffer []byte) (uint, error)
}

// EntryInfo is what an engine reports about a single directory entry.
type EntryInfo struct {
	Name       string
	Size       int64
	Attributes uint8
	ModTime    time.Time
}

// IsDir returns true if the entry is a directory.
func (info EntryInfo) IsDir() bool {
	return info.Attributes&fatbind.AttrDirectory != 0
}

// DirectoryEntry converts the engine's view of an entry into the one shown to
// callers.
func (info EntryInfo) DirectoryEntry() fatbind.DirectoryEntry {
	size := info.Size
	if info.IsDir() {
		size = 0
	}
	return fatbind.NewDirectoryEntry(info.Name, size, info.Attributes, info.ModTime)
}

// Engine is the interface a filesystem implementation provides to the binder.
// Paths are absolute, slash-separated and case-insensitive where the file system
// is.
type Engine interface {
	// Mount binds the engine to a volume, discarding any previous mount. On success
	// it reports the exact kind of file system found, or [fatbind.KindUnknown] if it
	// doesn't distinguish.
	Mount(volume BlockReader) (fatbind.FSKind, Result)
	// Unmount drops all state for the current volume. It's safe to call when nothing
	// is mounted.
	Unmount()
	Stat(path string) (EntryInfo, Result)
	OpenRead(path string) (File, Result)
	OpenDir(path string) (Dir, Result)
}

// File is an open, read-only file handle.
type File interface {
	Size() int64
	// Seek moves the read pointer to an absolute byte offset.
	Seek(offset int64) Result
	// Read reads up to len(buffer) bytes. A short count means end of file.
	Read(buffer []byte) (int, Result)
	Close() Result
}

// Dir is an open directory stream.
type Dir interface {
	// ReadEntry returns the next entry. `ok` is false once the end of the
	// directory has been reached.
	ReadEntry() (entry EntryInfo, ok bool, result Result)
	Close() Result
}
