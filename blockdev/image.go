package blockdev

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dargueta/fatbind"
	"github.com/dargueta/fatbind/utilities/compression"
	"github.com/xaionaro-go/bytesextra"
)

// NewMemoryDevice creates a block device over a byte slice. The slice is used
// directly, not copied.
func NewMemoryDevice(data []byte, bytesPerBlock uint, deviceID int) (*StreamDevice, error) {
	return NewStreamDevice(bytesextra.NewReadWriteSeeker(data), bytesPerBlock, deviceID)
}

// OpenImage opens a disk image file as a block device. Images compressed with
// [compression.CompressImage] are detected by their signature and inflated into
// memory; raw images are read from the file as needed and must be released with
// [StreamDevice.Close].
func OpenImage(path string, bytesPerBlock uint, deviceID int) (*StreamDevice, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fatbind.ErrNoDevice.Wrap(err)
	}

	header := make([]byte, 2)
	n, err := io.ReadFull(file, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		file.Close()
		return nil, fatbind.ErrIOFailed.Wrap(err)
	}

	_, err = file.Seek(0, io.SeekStart)
	if err != nil {
		file.Close()
		return nil, fatbind.ErrIOFailed.Wrap(err)
	}

	if compression.IsCompressedImage(header[:n]) {
		defer file.Close()

		data, err := compression.DecompressImageToBytes(file)
		if err != nil {
			return nil, fatbind.ErrIOFailed.WithMessage(
				fmt.Sprintf("failed to decompress image %q", path),
			).Wrap(err)
		}
		return NewMemoryDevice(data, bytesPerBlock, deviceID)
	}

	device, err := NewStreamDevice(file, bytesPerBlock, deviceID)
	if err != nil {
		file.Close()
		return nil, err
	}
	device.closer = file
	return device, nil
}
