package fatbind_test

import (
	"errors"
	"testing"

	"github.com/dargueta/fatbind"
	"github.com/stretchr/testify/assert"
)

func TestDriverErrorWithMessage(t *testing.T) {
	newErr := fatbind.ErrPartitionNotFound.WithMessage("partition 3 not valid on device 1")
	assert.Equal(
		t,
		"Partition not found: partition 3 not valid on device 1",
		newErr.Error(),
		"error message is wrong")
	assert.ErrorIs(t, newErr, fatbind.ErrPartitionNotFound)
	assert.NotErrorIs(t, newErr, fatbind.ErrNotFound)
}

func TestDriverErrorWrap(t *testing.T) {
	originalErr := errors.New("short read")
	newErr := fatbind.ErrNoValidVolume.Wrap(originalErr)
	expectedMessage := "No valid volume: short read"

	assert.EqualValues(t, expectedMessage, newErr.Error(), "error message is wrong")
	assert.ErrorIs(t, newErr, originalErr, "original error not set as parent")
	assert.ErrorIs(t, newErr, fatbind.ErrNoValidVolume, "sentinel not set as parent")
}

func TestDriverErrorWrapChained(t *testing.T) {
	cause := fatbind.ErrIOFailed.WithMessage("device 2 returned 0 of 1 blocks")
	newErr := fatbind.ErrNoValidVolume.WithMessage("partition 1").Wrap(cause)

	assert.ErrorIs(t, newErr, fatbind.ErrNoValidVolume)
	assert.ErrorIs(t, newErr, fatbind.ErrIOFailed)
	assert.NotErrorIs(t, newErr, fatbind.ErrNoDevice)
}

func TestDriverErrorWrapNil(t *testing.T) {
	assert.Equal(t, fatbind.ErrSeekFailed, fatbind.ErrSeekFailed.Wrap(nil))
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		fatbind.ErrNoDevice,
		fatbind.ErrIOFailed,
		fatbind.ErrPartitionNotFound,
		fatbind.ErrNoValidVolume,
		fatbind.ErrNotABootSector,
		fatbind.ErrUnrecognizedFilesystem,
		fatbind.ErrMountRejected,
		fatbind.ErrNotMounted,
		fatbind.ErrNotFound,
		fatbind.ErrOpenFailed,
		fatbind.ErrSeekFailed,
		fatbind.ErrInvalidArgument,
	}

	for i, left := range sentinels {
		for j, right := range sentinels {
			if i == j {
				continue
			}
			assert.Falsef(
				t, errors.Is(left, right), "%q unexpectedly matches %q", left, right)
		}
	}
}
