package partition_test

import (
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/dargueta/fatbind"
	"github.com/dargueta/fatbind/partition"
	fbtest "github.com/dargueta/fatbind/testing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	efiSystemGUID = uuid.MustParse("C12A7328-F81F-11D2-BA4B-00A0C93EC93B")
	basicDataGUID = uuid.MustParse("EBD0A0A2-B9E5-4433-87C0-68B6B72699C7")
	testDiskGUID  = uuid.MustParse("11111111-2222-3333-4444-555555555555")
	testPartGUID  = uuid.MustParse("01234567-89ab-cdef-0123-456789abcdef")
)

func newGPTDevice() *fbtest.SparseImage {
	device := fbtest.NewSparseImage(512, 20000, 2)
	fbtest.WriteGPT(
		device,
		testDiskGUID,
		fbtest.GPTEntry{
			Type:       efiSystemGUID,
			ID:         testPartGUID,
			FirstBlock: 2048,
			LastBlock:  6143,
			Attributes: 1 << 2,
			Name:       "EFI system partition",
		},
		fbtest.GPTEntry{},
		fbtest.GPTEntry{
			Type:       basicDataGUID,
			ID:         uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"),
			FirstBlock: 6144,
			LastBlock:  19000,
			Name:       "Données",
		},
	)
	return device
}

func TestGUIDToDisk(t *testing.T) {
	raw := partition.GUIDToDisk(efiSystemGUID)
	assert.Equal(
		t,
		[16]byte{
			0x28, 0x73, 0x2a, 0xc1, 0x1f, 0xf8, 0xd2, 0x11,
			0xba, 0x4b, 0x00, 0xa0, 0xc9, 0x3e, 0xc9, 0x3b,
		},
		raw)
}

func TestGPTTable__Entries(t *testing.T) {
	device := newGPTDevice()

	descriptor, err := partition.GPTTable{}.Partition(device, 1)
	require.NoError(t, err)
	assert.Equal(
		t,
		partition.Descriptor{
			Start:     2048,
			Size:      4096,
			BlockSize: 512,
			Type:      "EFI System",
			Bootable:  true,
			Name:      "EFI system partition",
			UUID:      "01234567-89ab-cdef-0123-456789abcdef",
		},
		descriptor)

	descriptor, err = partition.GPTTable{}.Partition(device, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 6144, descriptor.Start)
	assert.EqualValues(t, 12857, descriptor.Size)
	assert.Equal(t, "Microsoft basic data", descriptor.Type)
	assert.Equal(t, "Données", descriptor.Name)
	assert.False(t, descriptor.Bootable)
}

func TestGPTTable__InvalidIndexes(t *testing.T) {
	device := newGPTDevice()

	for _, index := range []int{0, 2, 4, 128, 129} {
		_, err := partition.GPTTable{}.Partition(device, index)
		assert.ErrorIsf(t, err, fatbind.ErrPartitionNotFound, "index %d should fail", index)
	}
}

func TestGPTTable__RequiresProtectiveMBR(t *testing.T) {
	device := fbtest.NewSparseImage(512, 1000, 0)
	fbtest.WriteMBR(device, 0, fbtest.MBREntry{SysInd: 0x0c, Start: 1, Size: 900})

	_, err := partition.GPTTable{}.Partition(device, 1)
	assert.ErrorIs(t, err, fatbind.ErrPartitionNotFound)
}

func TestGPTTable__HeaderChecksum(t *testing.T) {
	device := newGPTDevice()

	// Change the first usable block without updating the header CRC.
	device.WriteAt([]byte{0x99}, 512+40)
	_, err := partition.GPTTable{}.Partition(device, 1)
	assert.ErrorIs(t, err, fatbind.ErrPartitionNotFound)
	assert.Contains(t, err.Error(), "header checksum")
}

func TestGPTTable__EntryArrayChecksum(t *testing.T) {
	device := newGPTDevice()

	// Corrupt a byte of the first entry's name.
	device.WriteAt([]byte{'X'}, 2*512+56)
	_, err := partition.GPTTable{}.Partition(device, 1)
	assert.ErrorIs(t, err, fatbind.ErrPartitionNotFound)
	assert.Contains(t, err.Error(), "entry array checksum")
}

func TestGPTTable__Discover(t *testing.T) {
	device := newGPTDevice()

	descriptor, err := partition.Discover(device, partition.AutoTable{}, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 6144, descriptor.Start)

	_, err = partition.Discover(device, partition.AutoTable{}, 2)
	assert.ErrorIs(t, err, fatbind.ErrPartitionNotFound)
	assert.Contains(t, err.Error(), "partition 2 not valid on device 2")

	// Index 0 still means the whole device when no entry 0 exists.
	descriptor, err = partition.Discover(device, partition.AutoTable{}, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 20000, descriptor.Size)
}

// patchGPTHeader overwrites a field of the GPT header and recomputes the header
// checksum, so that only the field itself is wrong.
func patchGPTHeader(device *fbtest.SparseImage, offset int, value []byte) {
	header := make([]byte, 512)
	device.ReadAt(header, 512)
	copy(header[offset:], value)
	binary.LittleEndian.PutUint32(header[16:20], 0)
	binary.LittleEndian.PutUint32(header[16:20], crc32.ChecksumIEEE(header[:92]))
	device.WriteAt(header, 512)
}

func TestGPTTable__OversizedEntrySize(t *testing.T) {
	for _, entrySize := range []uint32{0xfffffff8, 1024, 520} {
		image := newGPTDevice()
		patchGPTHeader(image, 84, binary.LittleEndian.AppendUint32(nil, entrySize))
		device := fbtest.NewRecordingDevice(image)

		_, err := partition.GPTTable{}.Partition(device, 1)
		assert.ErrorIsf(t, err, fatbind.ErrPartitionNotFound, "entry size %d", entrySize)
		assert.Contains(t, err.Error(), "invalid GPT entry size")
		assert.Len(t, device.Reads, 2, "only the MBR and the header should be read")
	}
}

func TestGPTTable__EntryArrayPastEndOfDevice(t *testing.T) {
	for _, start := range []uint64{19990, 20000, 1 << 40} {
		image := newGPTDevice()
		patchGPTHeader(image, 72, binary.LittleEndian.AppendUint64(nil, start))
		device := fbtest.NewRecordingDevice(image)

		_, err := partition.GPTTable{}.Partition(device, 1)
		assert.ErrorIsf(t, err, fatbind.ErrPartitionNotFound, "array at block %d", start)
		assert.Contains(t, err.Error(), "doesn't fit")
		assert.Len(t, device.Reads, 2)
	}
}

// An entry size of one whole block is still allowed.
func TestGPTTable__BlockSizedEntries(t *testing.T) {
	image := newGPTDevice()
	patchGPTHeader(image, 84, binary.LittleEndian.AppendUint32(nil, 512))

	// The array no longer matches its checksum, but it gets as far as reading it.
	_, err := partition.GPTTable{}.Partition(image, 1)
	assert.ErrorIs(t, err, fatbind.ErrPartitionNotFound)
	assert.Contains(t, err.Error(), "entry array checksum")
}
