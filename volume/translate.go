package volume

import (
	"fmt"

	"github.com/dargueta/fatbind"
	"github.com/dargueta/fatbind/engine"
)

// Engine results are translated per operation, since the same code can mean
// different things depending on what was attempted. Codes not listed fall back
// to the operation's default error.

var openErrors = map[engine.Result]fatbind.DriverError{
	engine.ResultNoFile:       fatbind.ErrNotFound,
	engine.ResultNoPath:       fatbind.ErrNotFound,
	engine.ResultInvalidName:  fatbind.ErrNotFound,
	engine.ResultDiskError:    fatbind.ErrIOFailed,
	engine.ResultNotEnabled:   fatbind.ErrNotMounted,
	engine.ResultNoFilesystem: fatbind.ErrNotMounted,
}

func translate(
	table map[engine.Result]fatbind.DriverError,
	fallback fatbind.DriverError,
	result engine.Result,
	path string,
) error {
	if result.OK() {
		return nil
	}

	base, ok := table[result]
	if !ok {
		base = fallback
	}
	return base.WithMessage(fmt.Sprintf("%s: %s", path, result.String()))
}

func translateOpen(result engine.Result, path string) error {
	return translate(openErrors, fatbind.ErrOpenFailed, result, path)
}

func translateStat(result engine.Result, path string) error {
	return translate(nil, fatbind.ErrNotFound, result, path)
}

func translateSeek(result engine.Result, path string) error {
	return translate(nil, fatbind.ErrSeekFailed, result, path)
}

func translateRead(result engine.Result, path string) error {
	return translate(nil, fatbind.ErrIOFailed, result, path)
}

func translateMount(result engine.Result) error {
	return translate(nil, fatbind.ErrMountRejected, result, "mount")
}
