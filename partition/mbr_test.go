package partition_test

import (
	"testing"

	"github.com/dargueta/fatbind"
	"github.com/dargueta/fatbind/partition"
	fbtest "github.com/dargueta/fatbind/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDOSTable__Primary(t *testing.T) {
	device := fbtest.NewSparseImage(512, 10000, 3)
	fbtest.WriteMBR(
		device,
		0xdeadbeef,
		fbtest.MBREntry{Bootable: true, SysInd: 0x0c, Start: 2048, Size: 4096},
		fbtest.MBREntry{SysInd: 0x83, Start: 6144, Size: 1000},
	)

	descriptor, err := partition.DOSTable{}.Partition(device, 1)
	require.NoError(t, err)
	assert.Equal(
		t,
		partition.Descriptor{
			Start:     2048,
			Size:      4096,
			BlockSize: 512,
			SysInd:    0x0c,
			Type:      "W95 FAT32 (LBA)",
			Bootable:  true,
			UUID:      "deadbeef-01",
		},
		descriptor)

	descriptor, err = partition.DOSTable{}.Partition(device, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 6144, descriptor.Start)
	assert.Equal(t, "Linux", descriptor.Type)
	assert.False(t, descriptor.Bootable)
	assert.Equal(t, "deadbeef-02", descriptor.UUID)
}

func TestDOSTable__NoSignatureNoUUID(t *testing.T) {
	device := fbtest.NewSparseImage(512, 100, 0)
	fbtest.WriteMBR(device, 0, fbtest.MBREntry{SysInd: 0x06, Start: 1, Size: 50})

	descriptor, err := partition.DOSTable{}.Partition(device, 1)
	require.NoError(t, err)
	assert.Empty(t, descriptor.UUID)
}

func TestDOSTable__InvalidIndexes(t *testing.T) {
	device := fbtest.NewSparseImage(512, 10000, 3)
	fbtest.WriteMBR(
		device,
		0,
		fbtest.MBREntry{SysInd: 0x06, Start: 63, Size: 1000},
		fbtest.MBREntry{},
		fbtest.MBREntry{SysInd: 0x05, Start: 2000, Size: 1000},
	)
	// The extended partition has no valid EBR.

	for _, index := range []int{-1, 0, 2, 3, 4, 5, 9} {
		_, err := partition.DOSTable{}.Partition(device, index)
		assert.ErrorIsf(t, err, fatbind.ErrPartitionNotFound, "index %d should fail", index)
	}
}

func TestDOSTable__NoTable(t *testing.T) {
	device := fbtest.NewSparseImage(512, 100, 0)
	_, err := partition.DOSTable{}.Partition(device, 1)
	assert.ErrorIs(t, err, fatbind.ErrPartitionNotFound)
}

// A partitionless FAT volume carries 55 AA in block 0 too, but its BPB must not be
// read as a partition table.
func TestDOSTable__FATBootSectorIsNotAnMBR(t *testing.T) {
	for _, version := range []int{12, 16, 32} {
		volume := fbtest.NewFATImage(t, fbtest.DefaultGeometry(version), 0)
		_, err := partition.DOSTable{}.Partition(volume.Image, 1)
		assert.ErrorIsf(t, err, fatbind.ErrPartitionNotFound, "FAT%d boot sector", version)

		descriptor, err := partition.Discover(volume.Image, partition.AutoTable{}, 0)
		require.NoError(t, err)
		assert.EqualValues(t, volume.Geometry.TotalSectors, descriptor.Size)
	}
}

// exFAT boot code at 446-509 would otherwise decode as four bogus primaries.
func TestDOSTable__ExFATBootSectorIsNotAnMBR(t *testing.T) {
	sector := make([]byte, 512)
	copy(sector[3:], "EXFAT   ")
	for i := 120; i < 510; i++ {
		sector[i] = 0xf4
	}
	sector[510], sector[511] = 0x55, 0xaa

	device := fbtest.NewSparseImage(512, 64, 3)
	device.WriteAt(sector, 0)

	for _, index := range []int{1, 2, 3, 4, 5} {
		_, err := partition.DOSTable{}.Partition(device, index)
		assert.ErrorIsf(t, err, fatbind.ErrPartitionNotFound, "DOS index %d", index)

		_, err = partition.Discover(device, partition.AutoTable{}, index)
		assert.ErrorIsf(t, err, fatbind.ErrPartitionNotFound, "auto index %d", index)
	}

	descriptor, err := partition.Discover(device, partition.AutoTable{}, 0)
	require.NoError(t, err)
	assert.Equal(t, partition.WholeDevice(device), descriptor)
}

func TestDOSTable__LogicalPartitions(t *testing.T) {
	device := fbtest.NewSparseImage(512, 10000, 5)
	fbtest.WriteMBR(
		device,
		0xcafef00d,
		fbtest.MBREntry{SysInd: 0x0e, Start: 63, Size: 1000},
		fbtest.MBREntry{SysInd: 0x0f, Start: 2000, Size: 6000},
	)

	// First EBR at the start of the extended partition; the logical partition
	// starts 63 blocks after it. The link is relative to the extended partition.
	fbtest.WriteEBR(
		device,
		2000,
		fbtest.MBREntry{SysInd: 0x06, Start: 63, Size: 937},
		fbtest.MBREntry{SysInd: 0x05, Start: 1000, Size: 2000},
	)
	fbtest.WriteEBR(
		device,
		3000,
		fbtest.MBREntry{SysInd: 0x0b, Start: 100, Size: 1900},
		fbtest.MBREntry{},
	)

	first, err := partition.DOSTable{}.Partition(device, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 2063, first.Start)
	assert.EqualValues(t, 937, first.Size)
	assert.Equal(t, "FAT16", first.Type)
	assert.Equal(t, "cafef00d-05", first.UUID)

	second, err := partition.DOSTable{}.Partition(device, 6)
	require.NoError(t, err)
	assert.EqualValues(t, 3100, second.Start)
	assert.EqualValues(t, 1900, second.Size)
	assert.Equal(t, "W95 FAT32", second.Type)

	_, err = partition.DOSTable{}.Partition(device, 7)
	assert.ErrorIs(t, err, fatbind.ErrPartitionNotFound)

	// The extended container itself isn't a partition.
	_, err = partition.DOSTable{}.Partition(device, 2)
	assert.ErrorIs(t, err, fatbind.ErrPartitionNotFound)
}

// EBR links that loop back on themselves must not hang discovery.
func TestDOSTable__LogicalChainCycle(t *testing.T) {
	device := fbtest.NewSparseImage(512, 10000, 5)
	fbtest.WriteMBR(device, 0, fbtest.MBREntry{SysInd: 0x05, Start: 2000, Size: 6000})
	fbtest.WriteEBR(
		device,
		2000,
		fbtest.MBREntry{SysInd: 0x06, Start: 63, Size: 100},
		fbtest.MBREntry{SysInd: 0x05, Start: 0, Size: 6000},
	)

	descriptor, err := partition.DOSTable{}.Partition(device, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 2063, descriptor.Start)

	_, err = partition.DOSTable{}.Partition(device, 1000)
	assert.ErrorIs(t, err, fatbind.ErrPartitionNotFound)
}
