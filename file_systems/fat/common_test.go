package fat_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/dargueta/fatbind/engine"
	"github.com/dargueta/fatbind/file_systems/fat"
	fbtest "github.com/dargueta/fatbind/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetermineFATVersion(t *testing.T) {
	assert.Equal(t, 12, fat.DetermineFATVersion(1))
	assert.Equal(t, 12, fat.DetermineFATVersion(4084))
	assert.Equal(t, 16, fat.DetermineFATVersion(4085))
	assert.Equal(t, 16, fat.DetermineFATVersion(65524))
	assert.Equal(t, 32, fat.DetermineFATVersion(65525))
}

func TestNewFATBootSectorFromBytes__Layout(t *testing.T) {
	volume := fbtest.NewFATImage(t, fbtest.DefaultGeometry(16), 0)
	bootSector, err := fat.NewFATBootSectorFromBytes(volume.BootSector())
	require.NoError(t, err)

	assert.EqualValues(t, 512, bootSector.BytesPerSector)
	assert.EqualValues(t, 32, bootSector.RootDirSectors)
	assert.EqualValues(t, 1+2*volume.SectorsPerFAT(), bootSector.FirstRootSector)
	assert.EqualValues(t, 1+2*volume.SectorsPerFAT()+32, bootSector.FirstDataSector)
	assert.EqualValues(t, 512, bootSector.BytesPerCluster)
	assert.Equal(t, 16, bootSector.DirentsPerCluster)

	assert.Equal(t, bootSector.FirstDataSector, bootSector.ClusterToSector(2))
	assert.Equal(t, bootSector.FirstDataSector+5, bootSector.ClusterToSector(7))

	assert.False(t, bootSector.IsValidCluster(0))
	assert.False(t, bootSector.IsValidCluster(1))
	assert.True(t, bootSector.IsValidCluster(2))
	assert.True(t, bootSector.IsValidCluster(fat.ClusterID(bootSector.TotalClusters+1)))
	assert.False(t, bootSector.IsValidCluster(fat.ClusterID(bootSector.TotalClusters+2)))
}

func TestNewFATBootSectorFromBytes__FAT32Root(t *testing.T) {
	volume := fbtest.NewFATImage(t, fbtest.DefaultGeometry(32), 0)
	bootSector, err := fat.NewFATBootSectorFromBytes(volume.BootSector())
	require.NoError(t, err)

	assert.EqualValues(t, 0, bootSector.RootDirSectors)
	assert.EqualValues(t, 2, bootSector.RootCluster)
	assert.EqualValues(t, volume.SectorsPerFAT(), bootSector.SectorsPerFAT)
}

func TestNewFATBootSectorFromBytes__Invalid(t *testing.T) {
	tests := []struct {
		name   string
		offset int
		patch  []byte
	}{
		{"BytesPerSector", 11, []byte{0x00, 0x03}},
		{"SectorsPerCluster", 13, []byte{3}},
		{"ReservedSectors", 14, []byte{0, 0}},
		{"NumFATs", 16, []byte{0}},
		{"SectorsPerFAT", 22, []byte{0, 0}},
		{"TotalSectors", 19, []byte{0, 0}},
		// 2 sectors can't hold the reserved sector, two FATs and a root directory.
		{"VolumeTooSmall", 19, []byte{2, 0}},
		{"NoRootDirectory", 17, []byte{0, 0}},
		// 64 KiB clusters
		{"ClusterTooLarge", 13, []byte{128}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			volume := fbtest.NewFATImage(t, fbtest.DefaultGeometry(12), 0)
			volume.PatchBootSector(test.offset, test.patch)

			_, err := fat.NewFATBootSectorFromBytes(volume.BootSector())
			require.Error(t, err)
			assert.Equal(t, engine.ResultNoFilesystem, engine.ResultOf(err))
		})
	}

	t.Run("FATTooSmall", func(t *testing.T) {
		volume := fbtest.NewFATImage(t, fbtest.DefaultGeometry(16), 0)
		var raw [2]byte
		binary.LittleEndian.PutUint16(raw[:], uint16(volume.SectorsPerFAT()/2))
		volume.PatchBootSector(22, raw[:])

		_, err := fat.NewFATBootSectorFromBytes(volume.BootSector())
		assert.Equal(t, engine.ResultNoFilesystem, engine.ResultOf(err))
	})

	t.Run("ShortSector", func(t *testing.T) {
		_, err := fat.NewFATBootSectorFromBytes(make([]byte, 100))
		assert.Equal(t, engine.ResultNoFilesystem, engine.ResultOf(err))
	})
}

func TestDateFromInt(t *testing.T) {
	assert.True(t, fat.DateFromInt(0).IsZero())
	assert.Equal(
		t,
		time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC),
		fat.DateFromInt(1<<5|1))
	assert.Equal(
		t,
		time.Date(2107, time.December, 31, 0, 0, 0, 0, time.UTC),
		fat.DateFromInt(127<<9|12<<5|31))
}

func TestTimestampFromParts(t *testing.T) {
	date := uint16((2024-1980)<<9 | 3<<5 | 15)
	timePart := uint16(23<<11 | 59<<5 | 29)

	assert.Equal(
		t,
		time.Date(2024, time.March, 15, 23, 59, 58, 0, time.UTC),
		fat.TimestampFromParts(date, timePart, 0))
	assert.Equal(
		t,
		time.Date(2024, time.March, 15, 23, 59, 59, 500_000_000, time.UTC),
		fat.TimestampFromParts(date, timePart, 150))
	assert.True(t, fat.TimestampFromParts(0, timePart, 0).IsZero(), "no date means no timestamp")
}

func TestNewDirentFromRaw__HighClusterWord(t *testing.T) {
	raw := fbtest.MakeDirent("BIG.BIN", 0, 5, 1000)
	binary.LittleEndian.PutUint16(raw[20:22], 1)
	rawDirent := fat.NewRawDirentFromBytes(raw[:])

	fat16 := fbtest.NewFATImage(t, fbtest.DefaultGeometry(16), 0)
	bootSector16, err := fat.NewFATBootSectorFromBytes(fat16.BootSector())
	require.NoError(t, err)
	dirent := fat.NewDirentFromRaw(bootSector16, &rawDirent)
	assert.EqualValues(t, 5, dirent.FirstCluster, "high word is reserved on FAT16")

	fat32 := fbtest.NewFATImage(t, fbtest.DefaultGeometry(32), 0)
	bootSector32, err := fat.NewFATBootSectorFromBytes(fat32.BootSector())
	require.NoError(t, err)
	dirent = fat.NewDirentFromRaw(bootSector32, &rawDirent)
	assert.EqualValues(t, 0x10005, dirent.FirstCluster)
	assert.Equal(t, "BIG.BIN", dirent.Name)
	assert.EqualValues(t, 1000, dirent.Size)
}

func TestRawDirent__Predicates(t *testing.T) {
	raw := fbtest.MakeDirent(".", 0x10, 0, 0)
	dot := fat.NewRawDirentFromBytes(raw[:])
	assert.True(t, dot.IsDotEntry())
	assert.False(t, dot.IsVolumeLabel())

	var empty [fat.DirentSize]byte
	end := fat.NewRawDirentFromBytes(empty[:])
	assert.True(t, end.IsEndOfDirectory())

	// An LFN slot has the volume label bit set too, but isn't a label.
	raw = fbtest.MakeDirent("X", 0x0f, 0, 0)
	lfn := fat.NewRawDirentFromBytes(raw[:])
	assert.True(t, lfn.IsLongNameSlot())
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"":                "/",
		".":               "/",
		"/":               "/",
		"A.TXT":           "/A.TXT",
		"/BOOT//GRUB/":    "/BOOT/GRUB",
		`\BOOT\GRUB.CFG`:  "/BOOT/GRUB.CFG",
		"/BOOT/../A.TXT":  "/A.TXT",
		"../../ESCAPE":    "/ESCAPE",
		"/./BOOT/./x.bin": "/BOOT/x.bin",
	}
	for input, expected := range tests {
		assert.Equalf(t, expected, fat.NormalizePath(input), "NormalizePath(%q)", input)
	}
}
