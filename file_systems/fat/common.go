// Package fat implements a read-only driver for FAT12, FAT16 and FAT32 file
// systems. Only 8.3 names are supported; long file name entries are skipped.
package fat

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dargueta/fatbind"
	"github.com/dargueta/fatbind/engine"
)

type SectorID uint32
type ClusterID uint32

// RawFATBootSectorWithBPB is the on-disk representation of the boot sector.
//
// Note: This is only the section of the boot sector common to all FAT versions.
// Fields specific to a particular version can be found in RawFAT12BootSectorExt
// and RawFAT32BootSectorExt.
type RawFATBootSectorWithBPB struct {
	JmpBoot           [3]byte
	OEMName           [8]byte
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntryCount    uint16
	TotalSectors16    uint16
	Media             uint8
	SectorsPerFAT16   uint16
	SectorsPerTrack   uint16
	NumHeads          uint16
	HiddenSectors     uint32
	TotalSectors32    uint32
}

// RawFAT12BootSectorExt is the part of the boot sector following the BPB on FAT12
// and FAT16 volumes.
type RawFAT12BootSectorExt struct {
	DriveNumber     uint8
	NTReserved      uint8
	ExBootSignature uint8
	VolumeID        uint32
	VolumeLabel     [11]byte
	FileSystemType  [8]byte
}

// RawFAT32BootSectorExt is the part of the boot sector following the BPB on FAT32
// volumes.
type RawFAT32BootSectorExt struct {
	SectorsPerFAT32  uint32
	ExtFlags         uint16
	FSVersion        uint16
	RootCluster      uint32
	FSInfoSector     uint16
	BackupBootSector uint16
	Reserved         [12]byte
	RawFAT12BootSectorExt
}

// bpbSize is the size of RawFATBootSectorWithBPB on disk.
const bpbSize = 36

// FATBootSector extends RawFATBootSectorWithBPB with precomputed fields useful in
// other operations.
type FATBootSector struct {
	RawFATBootSectorWithBPB
	SectorsPerFAT     uint
	TotalSectors      uint
	TotalFATSectors   uint
	RootDirSectors    uint
	BytesPerCluster   uint
	TotalClusters     uint
	TotalDataSectors  uint
	FirstRootSector   SectorID
	FirstDataSector   SectorID
	RootCluster       ClusterID
	FATVersion        int
	DirentsPerCluster int
	VolumeID          uint32
	VolumeLabel       string
}

// DetermineFATVersion determines the version of the FAT file system based on the
// number of clusters on the system. (This is the only proper way to do so.)
func DetermineFATVersion(totalClusters uint) int {
	// These cluster counts, while odd-looking, are correct. They're taken directly
	// from Microsoft's FAT documentation, v1.03, page 14.
	if totalClusters < 4085 {
		return 12
	}
	if totalClusters < 65525 {
		return 16
	}
	return 32
}

// Kind converts the FAT version into the kind reported to the binder.
func (bs *FATBootSector) Kind() fatbind.FSKind {
	switch bs.FATVersion {
	case 12:
		return fatbind.KindFAT12
	case 16:
		return fatbind.KindFAT16
	case 32:
		return fatbind.KindFAT32
	default:
		return fatbind.KindUnknown
	}
}

// ClusterToSector gives the first sector of a data cluster. Cluster numbering
// starts at 2.
func (bs *FATBootSector) ClusterToSector(cluster ClusterID) SectorID {
	return bs.FirstDataSector +
		SectorID((uint(cluster)-2)*uint(bs.SectorsPerCluster))
}

// IsValidCluster returns true if `cluster` refers to an actual data cluster.
func (bs *FATBootSector) IsValidCluster(cluster ClusterID) bool {
	return cluster >= 2 && uint(cluster) < bs.TotalClusters+2
}

func corrupted(format string, args ...any) error {
	return engine.NewErrorWithMessage(
		engine.ResultNoFilesystem,
		"corruption detected: "+fmt.Sprintf(format, args...),
	)
}

// NewFATBootSectorFromBytes parses the first sector of a volume and returns a
// structure with detailed information on the file system. Failures to validate
// carry [engine.ResultNoFilesystem].
func NewFATBootSectorFromBytes(sector []byte) (*FATBootSector, error) {
	if len(sector) < 512 {
		return nil, corrupted("boot sector must be at least 512 bytes, got %d", len(sector))
	}

	rawHeader := RawFATBootSectorWithBPB{}
	err := binary.Read(bytes.NewReader(sector), binary.LittleEndian, &rawHeader)
	if err != nil {
		return nil, engine.NewErrorFromError(engine.ResultInternalError, err)
	}

	// BytesPerSector must be 512, 1024, 2048, or 4096.
	switch rawHeader.BytesPerSector {
	case 512, 1024, 2048, 4096:
	default:
		return nil, corrupted(
			"BytesPerSector must be 512, 1024, 2048, or 4096, got %d",
			rawHeader.BytesPerSector)
	}

	// SectorsPerCluster must be 2^x with x in [0, 8)
	switch rawHeader.SectorsPerCluster {
	case 1, 2, 4, 8, 16, 32, 64, 128:
	default:
		return nil, corrupted(
			"SectorsPerCluster must be a power of 2 in 1-128, got %d",
			rawHeader.SectorsPerCluster)
	}

	if rawHeader.ReservedSectors == 0 {
		return nil, corrupted("ReservedSectors can't be 0")
	}
	if rawHeader.NumFATs == 0 {
		return nil, corrupted("NumFATs can't be 0")
	}

	ext32 := RawFAT32BootSectorExt{}
	err = binary.Read(bytes.NewReader(sector[bpbSize:]), binary.LittleEndian, &ext32)
	if err != nil {
		return nil, engine.NewErrorFromError(engine.ResultInternalError, err)
	}

	var sectorsPerFAT uint
	if rawHeader.SectorsPerFAT16 != 0 {
		sectorsPerFAT = uint(rawHeader.SectorsPerFAT16)
	} else {
		sectorsPerFAT = uint(ext32.SectorsPerFAT32)
	}

	var totalSectors uint
	if rawHeader.TotalSectors16 != 0 {
		totalSectors = uint(rawHeader.TotalSectors16)
	} else {
		totalSectors = uint(rawHeader.TotalSectors32)
	}

	if sectorsPerFAT == 0 {
		return nil, corrupted("SectorsPerFAT can't be 0")
	}
	if totalSectors == 0 {
		return nil, corrupted("TotalSectors can't be 0")
	}

	bytesPerSector := uint(rawHeader.BytesPerSector)

	// The number of sectors taken up by the root directory. On FAT32 systems, this
	// will be 0.
	rootDirSectors := ((uint(rawHeader.RootEntryCount) * DirentSize) + (bytesPerSector - 1)) /
		bytesPerSector

	totalFATSectors := uint(rawHeader.NumFATs) * sectorsPerFAT
	overhead := uint(rawHeader.ReservedSectors) + totalFATSectors + rootDirSectors
	if overhead >= totalSectors {
		return nil, corrupted(
			"reserved, FAT and root directory regions (%d sectors) fill the volume (%d sectors)",
			overhead,
			totalSectors)
	}

	dataSectors := totalSectors - overhead
	totalClusters := dataSectors / uint(rawHeader.SectorsPerCluster)
	if totalClusters == 0 {
		return nil, corrupted("volume has no data clusters")
	}

	bytesPerCluster := bytesPerSector * uint(rawHeader.SectorsPerCluster)
	if bytesPerCluster > 32768 {
		return nil, corrupted(
			"BytesPerCluster cannot exceed 32,768 but got %d", bytesPerCluster)
	}

	fatVersion := DetermineFATVersion(totalClusters)

	processedHeader := FATBootSector{
		RawFATBootSectorWithBPB: rawHeader,
		SectorsPerFAT:           sectorsPerFAT,
		TotalSectors:            totalSectors,
		TotalFATSectors:         totalFATSectors,
		RootDirSectors:          rootDirSectors,
		BytesPerCluster:         bytesPerCluster,
		TotalClusters:           totalClusters,
		TotalDataSectors:        dataSectors,
		FirstRootSector:         SectorID(uint(rawHeader.ReservedSectors) + totalFATSectors),
		FirstDataSector:         SectorID(overhead),
		FATVersion:              fatVersion,
		DirentsPerCluster:       int(bytesPerCluster) / DirentSize,
	}

	var ext RawFAT12BootSectorExt
	if fatVersion == 32 {
		if rootDirSectors != 0 || rawHeader.SectorsPerFAT16 != 0 {
			return nil, corrupted(
				"FAT32 volume has a fixed root directory (%d sectors) or a 16-bit FAT size",
				rootDirSectors)
		}
		processedHeader.RootCluster = ClusterID(ext32.RootCluster)
		if !processedHeader.IsValidCluster(processedHeader.RootCluster) {
			return nil, corrupted("root directory cluster %d is invalid", ext32.RootCluster)
		}
		ext = ext32.RawFAT12BootSectorExt
	} else {
		if rootDirSectors == 0 {
			return nil, corrupted("FAT%d volume has no root directory entries", fatVersion)
		}
		err = binary.Read(bytes.NewReader(sector[bpbSize:]), binary.LittleEndian, &ext)
		if err != nil {
			return nil, engine.NewErrorFromError(engine.ResultInternalError, err)
		}
	}

	// Every cluster plus the two reserved entries must fit in one copy of the FAT.
	fatBits := (totalClusters + 2) * uint(fatVersion)
	if sectorsPerFAT*bytesPerSector*8 < fatBits {
		return nil, corrupted(
			"FAT of %d sectors too small for %d clusters", sectorsPerFAT, totalClusters)
	}

	if ext.ExBootSignature == 0x29 {
		processedHeader.VolumeID = ext.VolumeID
		processedHeader.VolumeLabel = string(bytes.TrimRight(ext.VolumeLabel[:], " \x00"))
	}
	return &processedHeader, nil
}
