package testing

import (
	"encoding/binary"
	"fmt"
	posixpath "path"
	"strings"
	"testing"

	"github.com/dargueta/fatbind"
	c "github.com/dargueta/fatbind/file_systems/common"
	"github.com/dargueta/fatbind/file_systems/fat"
	"github.com/stretchr/testify/require"
)

// FATGeometry gives the layout of a FAT volume built by [NewFATImage].
type FATGeometry struct {
	Version           int
	BytesPerSector    uint
	TotalSectors      uint
	SectorsPerCluster uint
	ReservedSectors   uint
	NumFATs           uint
	RootEntryCount    uint
}

// DefaultGeometry returns a small but valid geometry for the given FAT version:
// a 1.44 MB floppy for FAT12, 4 MiB for FAT16 and about 34 MiB for FAT32, the
// smallest a FAT32 volume with one sector per cluster can be.
func DefaultGeometry(version int) FATGeometry {
	geometry := FATGeometry{
		Version:           version,
		BytesPerSector:    512,
		SectorsPerCluster: 1,
		ReservedSectors:   1,
		NumFATs:           2,
	}

	switch version {
	case 12:
		geometry.TotalSectors = 2880
		geometry.RootEntryCount = 224
	case 16:
		geometry.TotalSectors = 8192
		geometry.RootEntryCount = 512
	case 32:
		geometry.TotalSectors = 70000
		geometry.ReservedSectors = 32
	default:
		panic(fmt.Sprintf("invalid FAT version %d", version))
	}
	return geometry
}

// dirInfo tracks where a directory's entries live in the image being built.
type dirInfo struct {
	// chain is nil for the fixed root directory of FAT12 and FAT16.
	chain     []fat.ClusterID
	usedSlots uint
}

// FATImage builds a FAT volume inside a [SparseImage].
type FATImage struct {
	Image    *SparseImage
	Geometry FATGeometry
	// Stride is the number of clusters skipped between consecutive allocations,
	// to produce fragmented files. 0 allocates contiguously.
	Stride uint

	t               *testing.T
	baseSector      uint
	sectorsPerFAT   uint
	rootDirSectors  uint
	firstDataSector uint
	totalClusters   uint
	nextFree        uint
	dirs            map[string]*dirInfo
}

// NewFATImage creates a device holding nothing but a freshly formatted FAT volume.
func NewFATImage(t *testing.T, geometry FATGeometry, deviceID int) *FATImage {
	image := NewSparseImage(geometry.BytesPerSector, geometry.TotalSectors, deviceID)
	return FormatFAT(t, image, 0, geometry)
}

// FormatFAT writes an empty FAT volume into `image`, starting at `baseSector`.
func FormatFAT(t *testing.T, image *SparseImage, baseSector uint, geometry FATGeometry) *FATImage {
	require.LessOrEqual(
		t, baseSector+geometry.TotalSectors, image.TotalBlocks(), "volume doesn't fit in image")

	volume := &FATImage{
		Image:      image,
		Geometry:   geometry,
		t:          t,
		baseSector: baseSector,
		nextFree:   2,
		dirs:       make(map[string]*dirInfo),
	}
	volume.computeLayout()
	volume.writeBootSector()

	// The first two FAT entries are reserved. Entry 0 holds the media descriptor.
	volume.setFATEntry(0, 0x0fffff00|0xf8)
	volume.setFATEntry(1, 0x0fffffff)

	if geometry.Version == 32 {
		rootChain := volume.allocate(1)
		require.EqualValues(t, 2, rootChain[0], "FAT32 root directory must be cluster 2")
		volume.dirs["/"] = &dirInfo{chain: rootChain}
	} else {
		volume.dirs["/"] = &dirInfo{}
	}
	return volume
}

func (volume *FATImage) computeLayout() {
	g := volume.Geometry
	volume.rootDirSectors = (g.RootEntryCount*fat.DirentSize + g.BytesPerSector - 1) /
		g.BytesPerSector

	// Find the smallest FAT that can map every cluster it leaves room for.
	for fatSize := uint(1); ; fatSize++ {
		overhead := g.ReservedSectors + g.NumFATs*fatSize + volume.rootDirSectors
		require.Less(volume.t, overhead, g.TotalSectors, "geometry leaves no data sectors")

		clusters := (g.TotalSectors - overhead) / g.SectorsPerCluster
		if fatSize*g.BytesPerSector*8 >= (clusters+2)*uint(g.Version) {
			volume.sectorsPerFAT = fatSize
			volume.firstDataSector = overhead
			volume.totalClusters = clusters
			break
		}
	}

	require.Equal(
		volume.t,
		g.Version,
		fat.DetermineFATVersion(volume.totalClusters),
		"geometry gives %d clusters, the wrong FAT version",
		volume.totalClusters,
	)
}

// SectorsPerFAT returns the size of one copy of the FAT.
func (volume *FATImage) SectorsPerFAT() uint {
	return volume.sectorsPerFAT
}

// TotalClusters returns the number of data clusters on the volume.
func (volume *FATImage) TotalClusters() uint {
	return volume.totalClusters
}

func (volume *FATImage) bytesPerCluster() uint {
	return volume.Geometry.BytesPerSector * volume.Geometry.SectorsPerCluster
}

// sectorOffset converts a volume-relative sector into a byte offset in the image.
func (volume *FATImage) sectorOffset(sector uint) int64 {
	return int64(volume.baseSector+sector) * int64(volume.Geometry.BytesPerSector)
}

// ClusterOffset returns the byte offset in the image where a data cluster begins.
func (volume *FATImage) ClusterOffset(cluster fat.ClusterID) int64 {
	sector := volume.firstDataSector + (uint(cluster)-2)*volume.Geometry.SectorsPerCluster
	return volume.sectorOffset(sector)
}

func (volume *FATImage) write(offset int64, data []byte) {
	volume.Image.WriteAt(data, offset)
}

func (volume *FATImage) writeBootSector() {
	g := volume.Geometry
	sector := make([]byte, g.BytesPerSector)

	copy(sector[0:3], []byte{0xeb, 0x3c, 0x90})
	copy(sector[3:11], "FATBIND ")
	binary.LittleEndian.PutUint16(sector[11:13], uint16(g.BytesPerSector))
	sector[13] = uint8(g.SectorsPerCluster)
	binary.LittleEndian.PutUint16(sector[14:16], uint16(g.ReservedSectors))
	sector[16] = uint8(g.NumFATs)
	binary.LittleEndian.PutUint16(sector[17:19], uint16(g.RootEntryCount))
	if g.TotalSectors < 0x10000 {
		binary.LittleEndian.PutUint16(sector[19:21], uint16(g.TotalSectors))
	} else {
		binary.LittleEndian.PutUint32(sector[32:36], uint32(g.TotalSectors))
	}
	sector[21] = 0xf8
	binary.LittleEndian.PutUint16(sector[24:26], 63)
	binary.LittleEndian.PutUint16(sector[26:28], 16)
	binary.LittleEndian.PutUint32(sector[28:32], uint32(volume.baseSector))

	// The extended BPB moves 28 bytes down on FAT32 to make room for the 32-bit
	// fields.
	extOffset := 36
	if g.Version == 32 {
		binary.LittleEndian.PutUint32(sector[36:40], uint32(volume.sectorsPerFAT))
		binary.LittleEndian.PutUint32(sector[44:48], 2)
		binary.LittleEndian.PutUint16(sector[48:50], 1)
		binary.LittleEndian.PutUint16(sector[50:52], 6)
		extOffset = 64
	} else {
		binary.LittleEndian.PutUint16(sector[22:24], uint16(volume.sectorsPerFAT))
	}

	sector[extOffset] = 0x80
	sector[extOffset+2] = 0x29
	binary.LittleEndian.PutUint32(sector[extOffset+3:extOffset+7], 0x12345678)
	copy(sector[extOffset+7:extOffset+18], "NO NAME    ")
	copy(sector[extOffset+18:extOffset+26], fmt.Sprintf("FAT%-5d", g.Version))

	sector[510] = 0x55
	sector[511] = 0xaa
	volume.write(volume.sectorOffset(0), sector)
}

// BootSector returns a copy of the first sector of the volume.
func (volume *FATImage) BootSector() []byte {
	sector := make([]byte, volume.Geometry.BytesPerSector)
	volume.Image.ReadAt(sector, volume.sectorOffset(0))
	return sector
}

// PatchBootSector overwrites part of the boot sector.
func (volume *FATImage) PatchBootSector(offset int, data []byte) {
	volume.write(volume.sectorOffset(0)+int64(offset), data)
}

// SetFATEntry writes `value` into the entry for `cluster` in every copy of the
// FAT. It's exposed so tests can corrupt chains.
func (volume *FATImage) SetFATEntry(cluster fat.ClusterID, value uint32) {
	volume.setFATEntry(uint(cluster), value)
}

func (volume *FATImage) setFATEntry(cluster uint, value uint32) {
	g := volume.Geometry
	for copyIndex := uint(0); copyIndex < g.NumFATs; copyIndex++ {
		fatStart := volume.sectorOffset(g.ReservedSectors + copyIndex*volume.sectorsPerFAT)

		switch g.Version {
		case 12:
			offset := fatStart + int64(cluster+cluster/2)
			var raw [2]byte
			volume.Image.ReadAt(raw[:], offset)
			current := binary.LittleEndian.Uint16(raw[:])
			if cluster%2 == 1 {
				current = (current & 0x000f) | uint16(value&0x0fff)<<4
			} else {
				current = (current & 0xf000) | uint16(value&0x0fff)
			}
			binary.LittleEndian.PutUint16(raw[:], current)
			volume.write(offset, raw[:])
		case 16:
			var raw [2]byte
			binary.LittleEndian.PutUint16(raw[:], uint16(value))
			volume.write(fatStart+int64(cluster)*2, raw[:])
		default:
			var raw [4]byte
			binary.LittleEndian.PutUint32(raw[:], value&0x0fffffff)
			volume.write(fatStart+int64(cluster)*4, raw[:])
		}
	}
}

func (volume *FATImage) endOfChain() uint32 {
	switch volume.Geometry.Version {
	case 12:
		return 0x0fff
	case 16:
		return 0xffff
	default:
		return 0x0fffffff
	}
}

// allocate reserves `count` clusters, links them into a chain and zeroes them.
func (volume *FATImage) allocate(count uint) []fat.ClusterID {
	chain := make([]fat.ClusterID, 0, count)
	for i := uint(0); i < count; i++ {
		require.Less(volume.t, volume.nextFree, volume.totalClusters+2, "volume is full")
		chain = append(chain, fat.ClusterID(volume.nextFree))
		volume.nextFree += 1 + volume.Stride
	}

	zeroes := make([]byte, volume.bytesPerCluster())
	for i, cluster := range chain {
		volume.write(volume.ClusterOffset(cluster), zeroes)
		if i == len(chain)-1 {
			volume.setFATEntry(uint(cluster), volume.endOfChain())
		} else {
			volume.setFATEntry(uint(cluster), uint32(chain[i+1]))
		}
	}
	return chain
}

// extend appends one cluster to an existing chain.
func (volume *FATImage) extend(chain []fat.ClusterID) []fat.ClusterID {
	added := volume.allocate(1)
	volume.setFATEntry(uint(chain[len(chain)-1]), uint32(added[0]))
	return append(chain, added[0])
}

// EncodeShortName converts "name.ext" into the space-padded, uppercase 11-byte
// form stored in a directory entry.
func EncodeShortName(name string) [11]byte {
	var encoded [11]byte
	for i := range encoded {
		encoded[i] = ' '
	}

	if name == "." || name == ".." {
		copy(encoded[:], name)
		return encoded
	}

	base, ext, _ := strings.Cut(strings.ToUpper(name), ".")
	copy(encoded[0:8], base)
	copy(encoded[8:11], ext)
	return encoded
}

// Timestamp packing for 2024-03-15 10:30:20, stamped on every entry.
const (
	testDate = (2024-1980)<<9 | 3<<5 | 15
	testTime = 10<<11 | 30<<5 | 10
)

// MakeDirent builds a raw 32-byte directory entry.
func MakeDirent(name string, attributes uint8, firstCluster fat.ClusterID, size uint32) [fat.DirentSize]byte {
	var raw [fat.DirentSize]byte
	encoded := EncodeShortName(name)
	copy(raw[0:11], encoded[:])
	raw[11] = attributes
	binary.LittleEndian.PutUint16(raw[14:16], testTime)
	binary.LittleEndian.PutUint16(raw[16:18], testDate)
	binary.LittleEndian.PutUint16(raw[18:20], testDate)
	binary.LittleEndian.PutUint16(raw[20:22], uint16(uint32(firstCluster)>>16))
	binary.LittleEndian.PutUint16(raw[22:24], testTime)
	binary.LittleEndian.PutUint16(raw[24:26], testDate)
	binary.LittleEndian.PutUint16(raw[26:28], uint16(firstCluster))
	binary.LittleEndian.PutUint32(raw[28:32], size)
	return raw
}

func (volume *FATImage) directory(dirPath string) *dirInfo {
	dir, ok := volume.dirs[posixpath.Clean(dirPath)]
	require.Truef(volume.t, ok, "directory %q hasn't been created", dirPath)
	return dir
}

// AddRawEntry writes a raw directory entry into the next free slot of the
// directory at `dirPath`, growing the directory if needed.
func (volume *FATImage) AddRawEntry(dirPath string, raw [fat.DirentSize]byte) {
	dir := volume.directory(dirPath)
	slot := dir.usedSlots
	dir.usedSlots++

	var offset int64
	if dir.chain == nil {
		require.Less(
			volume.t, slot, volume.Geometry.RootEntryCount, "root directory is full")
		rootStart := volume.Geometry.ReservedSectors + volume.Geometry.NumFATs*volume.sectorsPerFAT
		offset = volume.sectorOffset(rootStart) + int64(slot)*fat.DirentSize
	} else {
		slotsPerCluster := volume.bytesPerCluster() / fat.DirentSize
		clusterIndex := slot / slotsPerCluster
		if clusterIndex >= uint(len(dir.chain)) {
			dir.chain = volume.extend(dir.chain)
		}
		offset = volume.ClusterOffset(dir.chain[clusterIndex]) +
			int64(slot%slotsPerCluster)*fat.DirentSize
	}
	volume.write(offset, raw[:])
}

// AddFile creates a file named `name` in the directory at `dirPath` and returns
// the clusters holding its data.
func (volume *FATImage) AddFile(dirPath, name string, data []byte) []fat.ClusterID {
	clusterSize := volume.bytesPerCluster()
	numClusters := (uint(len(data)) + clusterSize - 1) / clusterSize

	var chain []fat.ClusterID
	var firstCluster fat.ClusterID
	if numClusters > 0 {
		chain = volume.allocate(numClusters)
		firstCluster = chain[0]
		for i, cluster := range chain {
			start := uint(i) * clusterSize
			end := min(start+clusterSize, uint(len(data)))
			volume.write(volume.ClusterOffset(cluster), data[start:end])
		}
	}

	volume.AddRawEntry(
		dirPath, MakeDirent(name, fatbind.AttrArchived, firstCluster, uint32(len(data))))
	return chain
}

// AddDir creates an empty subdirectory `name` inside `dirPath`, complete with `.`
// and `..` entries.
func (volume *FATImage) AddDir(dirPath, name string) fat.ClusterID {
	parent := volume.directory(dirPath)
	chain := volume.allocate(1)

	var parentCluster fat.ClusterID
	if parent.chain != nil && posixpath.Clean(dirPath) != "/" {
		parentCluster = parent.chain[0]
	}

	childPath := posixpath.Join(posixpath.Clean(dirPath), name)
	volume.dirs[childPath] = &dirInfo{chain: chain}
	volume.AddRawEntry(childPath, MakeDirent(".", fatbind.AttrDirectory, chain[0], 0))
	volume.AddRawEntry(childPath, MakeDirent("..", fatbind.AttrDirectory, parentCluster, 0))

	volume.AddRawEntry(dirPath, MakeDirent(name, fatbind.AttrDirectory, chain[0], 0))
	return chain[0]
}

// Partition returns the location of the volume on its device, in blocks.
func (volume *FATImage) Partition() (c.PhysicalBlock, uint) {
	return c.PhysicalBlock(volume.baseSector), volume.Geometry.TotalSectors
}
