package fat

import (
	"errors"
	"fmt"
	"io"
	posixpath "path"
	"strings"

	"github.com/dargueta/fatbind"
	c "github.com/dargueta/fatbind/file_systems/common"
	"github.com/dargueta/fatbind/file_systems/common/basicstream"
	"github.com/dargueta/fatbind/file_systems/common/blockcache"
	"github.com/dargueta/fatbind/engine"
)

// invalidNameChars can never appear in a short name, so a path containing them
// is rejected before any directory is searched.
const invalidNameChars = "\"*+,:;<=>?[]|"

// Driver is a read-only FAT engine. The zero value isn't usable; create one with
// [New].
type Driver struct {
	sectors    sectorReader
	bootSector *FATBootSector
	fat        *allocationTable
	// rootDir caches the fixed root directory of FAT12 and FAT16 volumes. It's nil
	// for FAT32, where the root directory is an ordinary cluster chain.
	rootDir *blockcache.BlockCache
	// generation increases on every mount and unmount, invalidating handles opened
	// on an earlier volume.
	generation uint
}

// New creates a driver with no volume mounted.
func New() *Driver {
	return &Driver{}
}

// BootSector returns the parsed boot sector of the mounted volume, or nil.
func (drv *Driver) BootSector() *FATBootSector {
	return drv.bootSector
}

// Mount implements [engine.Engine]. The volume's sector size must match the block
// size of `volume`, and the volume must fit inside it.
func (drv *Driver) Mount(volume engine.BlockReader) (fatbind.FSKind, engine.Result) {
	drv.Unmount()

	bytesPerBlock := volume.BytesPerBlock()
	if bytesPerBlock < 512 {
		return fatbind.KindUnknown, engine.ResultNoFilesystem
	}

	sectors := volumeReader{reader: volume}
	firstSector := make([]byte, bytesPerBlock)
	err := sectors.readSectors(0, 1, firstSector)
	if err != nil {
		return fatbind.KindUnknown, engine.ResultOf(err)
	}

	bootSector, err := NewFATBootSectorFromBytes(firstSector)
	if err != nil {
		return fatbind.KindUnknown, engine.ResultOf(err)
	}
	if uint(bootSector.BytesPerSector) != bytesPerBlock {
		return fatbind.KindUnknown, engine.ResultNoFilesystem
	}
	if bootSector.TotalSectors > volume.TotalBlocks() {
		return fatbind.KindUnknown, engine.ResultNoFilesystem
	}

	drv.sectors = sectors
	drv.bootSector = bootSector
	drv.fat = newAllocationTable(bootSector, sectors)

	if bootSector.FATVersion != 32 {
		firstRootSector := bootSector.FirstRootSector
		drv.rootDir = blockcache.New(
			bytesPerBlock,
			bootSector.RootDirSectors,
			func(index c.LogicalBlock, buffer []byte) error {
				return sectors.readSectors(firstRootSector+SectorID(index), 1, buffer)
			},
		)
	}
	return bootSector.Kind(), engine.ResultOK
}

// Unmount implements [engine.Engine].
func (drv *Driver) Unmount() {
	drv.sectors = nil
	drv.bootSector = nil
	drv.fat = nil
	drv.rootDir = nil
	drv.generation++
}

func (drv *Driver) mounted() bool {
	return drv.bootSector != nil
}

// NormalizePath converts `path` into a clean absolute path. Backslashes are
// accepted as separators, and relative paths are taken from the root.
func NormalizePath(path string) string {
	path = posixpath.Clean(strings.ReplaceAll(path, "\\", "/"))
	if path == "." {
		return "/"
	}
	if posixpath.IsAbs(path) {
		return path
	}
	return posixpath.Join("/", path)
}

// splitPath breaks a normalized path into its components. The root has none.
func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// openDirStream returns a stream over the raw directory entries of `dir`.
func (drv *Driver) openDirStream(dir *Dirent) (*basicstream.BasicStream, error) {
	if dir.isRoot && drv.rootDir != nil {
		return basicstream.New(drv.rootDir.Size(), drv.rootDir)
	}

	chain, err := drv.fat.listClusters(dir.FirstCluster)
	if err != nil {
		return nil, err
	}

	source := &clusterSource{
		bootSector: drv.bootSector,
		sectors:    drv.sectors,
		chain:      chain,
	}
	size := int64(len(chain)) * int64(drv.bootSector.BytesPerCluster)
	return basicstream.New(size, source)
}

// nextRawDirent reads raw directory entries from `stream` until it finds one that
// describes a file or directory. `ok` is false at the end of the directory.
func nextRawDirent(stream io.Reader, skipDots bool) (raw RawDirent, ok bool, err error) {
	var buffer [DirentSize]byte

	for {
		_, err = io.ReadFull(stream, buffer[:])
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return RawDirent{}, false, nil
		} else if err != nil {
			return RawDirent{}, false, err
		}

		raw = NewRawDirentFromBytes(buffer[:])
		if raw.IsEndOfDirectory() {
			return RawDirent{}, false, nil
		}
		if raw.IsDeleted() || raw.IsLongNameSlot() || raw.IsVolumeLabel() {
			continue
		}
		if skipDots && raw.IsDotEntry() {
			continue
		}
		return raw, true, nil
	}
}

// findInDirectory searches `dir` for an entry named `name`, ignoring case.
func (drv *Driver) findInDirectory(dir *Dirent, name string) (Dirent, bool, error) {
	stream, err := drv.openDirStream(dir)
	if err != nil {
		return Dirent{}, false, err
	}

	for {
		raw, ok, err := nextRawDirent(stream, true)
		if err != nil || !ok {
			return Dirent{}, false, err
		}

		dirent := NewDirentFromRaw(drv.bootSector, &raw)
		if strings.EqualFold(dirent.Name, name) {
			return dirent, true, nil
		}
	}
}

// resolvePathToDirent converts a path to the directory entry corresponding to that
// path. A missing final component gives [engine.ResultNoFile]; a missing or
// non-directory intermediate component gives [engine.ResultNoPath].
func (drv *Driver) resolvePathToDirent(path string) (Dirent, error) {
	if !drv.mounted() {
		return Dirent{}, engine.NewError(engine.ResultNotEnabled)
	}

	components := splitPath(NormalizePath(path))
	current := rootDirent(drv.bootSector)

	for i, component := range components {
		if strings.ContainsAny(component, invalidNameChars) {
			return Dirent{}, engine.NewErrorWithMessage(
				engine.ResultInvalidName,
				fmt.Sprintf("%q contains characters not allowed in a FAT name", component),
			)
		}

		isLast := i == len(components)-1
		if !current.IsDir() {
			return Dirent{}, engine.NewErrorWithMessage(
				engine.ResultNoPath,
				fmt.Sprintf("%q is not a directory", current.Name),
			)
		}

		next, found, err := drv.findInDirectory(&current, component)
		if err != nil {
			return Dirent{}, err
		}
		if !found {
			code := engine.ResultNoPath
			if isLast {
				code = engine.ResultNoFile
			}
			return Dirent{}, engine.NewErrorWithMessage(
				code, fmt.Sprintf("%q not found in %q", component, path))
		}
		current = next
	}
	return current, nil
}

// Stat implements [engine.Engine].
func (drv *Driver) Stat(path string) (engine.EntryInfo, engine.Result) {
	dirent, err := drv.resolvePathToDirent(path)
	if err != nil {
		return engine.EntryInfo{}, engine.ResultOf(err)
	}
	return dirent.EntryInfo(), engine.ResultOK
}

// OpenRead implements [engine.Engine]. Directories can't be opened as files.
func (drv *Driver) OpenRead(path string) (engine.File, engine.Result) {
	dirent, err := drv.resolvePathToDirent(path)
	if err != nil {
		return nil, engine.ResultOf(err)
	}
	if dirent.IsDir() {
		return nil, engine.ResultDenied
	}

	chain, err := drv.fat.listClusters(dirent.FirstCluster)
	if err != nil {
		return nil, engine.ResultOf(err)
	}

	// The chain must cover the whole file, but may have slack at the end.
	capacity := int64(len(chain)) * int64(drv.bootSector.BytesPerCluster)
	if capacity < dirent.Size {
		return nil, engine.ResultInternalError
	}

	source := &clusterSource{
		bootSector: drv.bootSector,
		sectors:    drv.sectors,
		chain:      chain,
	}
	stream, err := basicstream.New(dirent.Size, source)
	if err != nil {
		return nil, engine.ResultOf(err)
	}

	return &fileHandle{
		driver:     drv,
		generation: drv.generation,
		stream:     stream,
	}, engine.ResultOK
}

// OpenDir implements [engine.Engine]. Listings skip the `.` and `..` entries,
// deleted entries, long file name slots and the volume label.
func (drv *Driver) OpenDir(path string) (engine.Dir, engine.Result) {
	dirent, err := drv.resolvePathToDirent(path)
	if err != nil {
		return nil, engine.ResultOf(err)
	}
	if !dirent.IsDir() {
		return nil, engine.ResultNoPath
	}

	stream, err := drv.openDirStream(&dirent)
	if err != nil {
		return nil, engine.ResultOf(err)
	}

	return &dirHandle{
		driver:     drv,
		generation: drv.generation,
		stream:     stream,
	}, engine.ResultOK
}
