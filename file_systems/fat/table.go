package fat

import (
	"encoding/binary"
	"fmt"

	c "github.com/dargueta/fatbind/file_systems/common"
	"github.com/dargueta/fatbind/file_systems/common/blockcache"
	"github.com/dargueta/fatbind/engine"
)

// allocationTable gives access to the first copy of the FAT. Sectors are read
// lazily and kept for the lifetime of the mount.
type allocationTable struct {
	bootSector *FATBootSector
	cache      *blockcache.BlockCache
}

func newAllocationTable(bootSector *FATBootSector, sectors sectorReader) *allocationTable {
	firstSector := SectorID(bootSector.ReservedSectors)
	fetch := func(index c.LogicalBlock, buffer []byte) error {
		return sectors.readSectors(firstSector+SectorID(index), 1, buffer)
	}

	return &allocationTable{
		bootSector: bootSector,
		cache: blockcache.New(
			uint(bootSector.BytesPerSector),
			bootSector.SectorsPerFAT,
			fetch,
		),
	}
}

// GetClusterAtIndex returns the raw value of the FAT entry for `cluster`, which
// is the number of the next cluster in its chain or a marker.
func (table *allocationTable) GetClusterAtIndex(cluster ClusterID) (ClusterID, error) {
	var raw [4]byte

	switch table.bootSector.FATVersion {
	case 12:
		// Entries are 12 bits, so two entries share three bytes and an entry can
		// straddle a sector boundary.
		offset := int64(cluster) + int64(cluster)/2
		_, err := table.cache.ReadAt(raw[:2], offset)
		if err != nil {
			return 0, table.wrapError(cluster, err)
		}

		value := binary.LittleEndian.Uint16(raw[:2])
		if cluster%2 == 1 {
			return ClusterID(value >> 4), nil
		}
		return ClusterID(value & 0x0fff), nil
	case 16:
		_, err := table.cache.ReadAt(raw[:2], int64(cluster)*2)
		if err != nil {
			return 0, table.wrapError(cluster, err)
		}
		return ClusterID(binary.LittleEndian.Uint16(raw[:2])), nil
	default:
		_, err := table.cache.ReadAt(raw[:4], int64(cluster)*4)
		if err != nil {
			return 0, table.wrapError(cluster, err)
		}
		// The upper four bits are reserved.
		return ClusterID(binary.LittleEndian.Uint32(raw[:4]) & 0x0fffffff), nil
	}
}

func (table *allocationTable) wrapError(cluster ClusterID, err error) error {
	if engine.ResultOf(err) == engine.ResultDiskError {
		return err
	}
	return engine.NewErrorWithMessage(
		engine.ResultInternalError,
		fmt.Sprintf("can't read FAT entry for cluster %d: %s", cluster, err.Error()),
	)
}

// IsEndOfChain returns true if `value` is an end-of-chain marker.
func (table *allocationTable) IsEndOfChain(value ClusterID) bool {
	switch table.bootSector.FATVersion {
	case 12:
		return value >= 0x0ff8
	case 16:
		return value >= 0xfff8
	default:
		return value >= 0x0ffffff8
	}
}

// listClusters returns every cluster in the chain beginning at chainStart. A
// chain starting at cluster 0 is empty; that's how zero-length files are stored.
//
// Chains are capped at the number of clusters on the volume, so a FAT containing
// a cycle is reported as corrupted instead of looping forever.
func (table *allocationTable) listClusters(chainStart ClusterID) ([]ClusterID, error) {
	if chainStart == 0 {
		return nil, nil
	}

	chain := []ClusterID{}
	currentCluster := chainStart

	for {
		if !table.bootSector.IsValidCluster(currentCluster) {
			// Hit an invalid cluster. This is not the same as EOF, and usually
			// indicates corruption of some sort.
			return nil, engine.NewErrorWithMessage(
				engine.ResultInternalError,
				fmt.Sprintf(
					"invalid cluster 0x%x at index %d in chain from %d",
					currentCluster,
					len(chain),
					chainStart,
				),
			)
		}
		if uint(len(chain)) >= table.bootSector.TotalClusters {
			return nil, engine.NewErrorWithMessage(
				engine.ResultInternalError,
				fmt.Sprintf("cluster chain from %d contains a cycle", chainStart),
			)
		}
		chain = append(chain, currentCluster)

		nextCluster, err := table.GetClusterAtIndex(currentCluster)
		if err != nil {
			return nil, err
		}
		if table.IsEndOfChain(nextCluster) {
			return chain, nil
		}
		currentCluster = nextCluster
	}
}
