package fatbind

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// DriverError is the error type returned by every exported operation in this module.
// Callers match on the sentinel values below with [errors.Is]; messages added with
// WithMessage or causes added with Wrap never break that match.
type DriverError interface {
	error
	WithMessage(message string) DriverError
	Wrap(err error) DriverError
}

type baseError string

const rootError = baseError("")

// ErrNoDevice is returned by block I/O when no device is attached.
var ErrNoDevice = rootError.WithMessage("No such device")

// ErrIOFailed is returned when the device reports an error or transfers nothing for a
// non-empty request.
var ErrIOFailed = rootError.WithMessage("Input/output error")

// ErrPartitionNotFound is returned when a partition index can't be resolved.
var ErrPartitionNotFound = rootError.WithMessage("Partition not found")

// ErrNoValidVolume is returned when the first block of a volume can't be read.
var ErrNoValidVolume = rootError.WithMessage("No valid volume")

// ErrNotABootSector is returned when the boot signature at byte 510 isn't 55 AA.
var ErrNotABootSector = rootError.WithMessage("Not a boot sector")

// ErrUnrecognizedFilesystem is returned when none of the FAT or exFAT type tags match.
var ErrUnrecognizedFilesystem = rootError.WithMessage("Unrecognized file system")

// ErrMountRejected is returned when the filesystem engine refuses to mount a volume
// whose boot sector looked valid.
var ErrMountRejected = rootError.WithMessage("Mount rejected by file system")

// ErrNotMounted is returned by every file operation while no volume is bound.
var ErrNotMounted = rootError.WithMessage("No volume mounted")

var ErrNotFound = rootError.WithMessage("No such file or directory")
var ErrOpenFailed = rootError.WithMessage("Failed to open file")
var ErrSeekFailed = rootError.WithMessage("Illegal seek")
var ErrInvalidArgument = rootError.WithMessage("Invalid argument")

func (e baseError) Error() string {
	return string(e)
}

func (e baseError) WithMessage(message string) DriverError {
	return customDriverError{
		message:       message,
		originalError: e,
	}
}

func (e baseError) Wrap(err error) DriverError {
	if err == nil {
		return e
	}
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

// -----------------------------------------------------------------------------

type customDriverError struct {
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a string
// describing the error.
func (e customDriverError) Error() string {
	return e.message
}

func (e customDriverError) WithMessage(message string) DriverError {
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
	}
}

// Wrap returns a copy of the error with `err` attached as a second cause. Both the
// receiver and `err` match with [errors.Is]. Wrapping nil returns the receiver.
func (e customDriverError) Wrap(err error) DriverError {
	if err == nil {
		return e
	}
	return customDriverError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

func (e customDriverError) Unwrap() error {
	return e.originalError
}
