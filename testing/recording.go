package testing

import (
	"github.com/dargueta/fatbind"
	c "github.com/dargueta/fatbind/file_systems/common"
)

// ReadRecord is one call to [RecordingDevice.ReadBlocks].
type ReadRecord struct {
	Start c.PhysicalBlock
	Count uint
}

// RecordingDevice wraps a block device, logging every read and optionally
// injecting failures.
type RecordingDevice struct {
	fatbind.BlockDevice
	Reads []ReadRecord
	// Err, if set, is returned by every read instead of touching the device.
	Err error
	// TransferNothing makes every read report 0 blocks transferred without an
	// error.
	TransferNothing bool
}

func NewRecordingDevice(device fatbind.BlockDevice) *RecordingDevice {
	return &RecordingDevice{BlockDevice: device}
}

func (device *RecordingDevice) ReadBlocks(
	start c.PhysicalBlock, count uint, buffer []byte,
) (uint, error) {
	device.Reads = append(device.Reads, ReadRecord{Start: start, Count: count})
	if device.Err != nil {
		return 0, device.Err
	}
	if device.TransferNothing {
		return 0, nil
	}
	return device.BlockDevice.ReadBlocks(start, count, buffer)
}

// Reset clears the read log.
func (device *RecordingDevice) Reset() {
	device.Reads = nil
}
