package fat

import (
	"fmt"

	c "github.com/dargueta/fatbind/file_systems/common"
	"github.com/dargueta/fatbind/engine"
)

// sectorReader reads whole sectors relative to the start of the volume.
type sectorReader interface {
	readSectors(first SectorID, count uint, buffer []byte) error
}

// volumeReader adapts the engine's block reader, converting failures into
// [engine.ResultDiskError].
type volumeReader struct {
	reader engine.BlockReader
}

func (v volumeReader) readSectors(first SectorID, count uint, buffer []byte) error {
	transferred, err := v.reader.ReadBlocks(c.LogicalBlock(first), count, buffer)
	if err != nil {
		return engine.NewErrorFromError(engine.ResultDiskError, err)
	}
	if transferred != count {
		return engine.NewErrorWithMessage(
			engine.ResultDiskError,
			fmt.Sprintf("read %d of %d sectors at %d", transferred, count, first),
		)
	}
	return nil
}

// clusterSource presents a cluster chain as a sequence of blocks, one per
// cluster, so it can back a [basicstream.BasicStream].
type clusterSource struct {
	bootSector *FATBootSector
	sectors    sectorReader
	chain      []ClusterID
}

func (source *clusterSource) BytesPerBlock() uint {
	return source.bootSector.BytesPerCluster
}

func (source *clusterSource) ReadBlock(index c.LogicalBlock, buffer []byte) error {
	if uint(index) >= uint(len(source.chain)) {
		return engine.NewErrorWithMessage(
			engine.ResultInternalError,
			fmt.Sprintf("cluster index %d out of bounds, chain has %d clusters", index, len(source.chain)),
		)
	}

	sector := source.bootSector.ClusterToSector(source.chain[index])
	return source.sectors.readSectors(
		sector, uint(source.bootSector.SectorsPerCluster), buffer)
}
