package fat

import (
	"errors"
	"io"

	"github.com/dargueta/fatbind/engine"
	"github.com/dargueta/fatbind/file_systems/common/basicstream"
)

// fileHandle is an open file. It becomes invalid when it's closed or the volume
// it came from is unmounted.
type fileHandle struct {
	driver     *Driver
	generation uint
	stream     *basicstream.BasicStream
	closed     bool
}

func (f *fileHandle) valid() bool {
	return !f.closed && f.generation == f.driver.generation
}

func (f *fileHandle) Size() int64 {
	return f.stream.Size()
}

// Seek implements [engine.File]. Seeking past the end of the file fails.
func (f *fileHandle) Seek(offset int64) engine.Result {
	if !f.valid() {
		return engine.ResultInvalidObject
	}

	_, err := f.stream.Seek(offset, io.SeekStart)
	if err != nil {
		return engine.ResultInvalidParameter
	}
	return engine.ResultOK
}

// Read implements [engine.File]. Hitting the end of the file isn't an error.
func (f *fileHandle) Read(buffer []byte) (int, engine.Result) {
	if !f.valid() {
		return 0, engine.ResultInvalidObject
	}

	n, err := f.stream.Read(buffer)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, engine.ResultOf(err)
	}
	return n, engine.ResultOK
}

func (f *fileHandle) Close() engine.Result {
	if f.closed {
		return engine.ResultInvalidObject
	}
	f.closed = true
	return engine.ResultOK
}

// dirHandle is an open directory stream.
type dirHandle struct {
	driver     *Driver
	generation uint
	stream     *basicstream.BasicStream
	finished   bool
	closed     bool
}

// ReadEntry implements [engine.Dir].
func (d *dirHandle) ReadEntry() (engine.EntryInfo, bool, engine.Result) {
	if d.closed || d.generation != d.driver.generation {
		return engine.EntryInfo{}, false, engine.ResultInvalidObject
	}
	if d.finished {
		return engine.EntryInfo{}, false, engine.ResultOK
	}

	raw, ok, err := nextRawDirent(d.stream, true)
	if err != nil {
		return engine.EntryInfo{}, false, engine.ResultOf(err)
	}
	if !ok {
		d.finished = true
		return engine.EntryInfo{}, false, engine.ResultOK
	}

	dirent := NewDirentFromRaw(d.driver.bootSector, &raw)
	return dirent.EntryInfo(), true, engine.ResultOK
}

func (d *dirHandle) Close() engine.Result {
	if d.closed {
		return engine.ResultInvalidObject
	}
	d.closed = true
	return engine.ResultOK
}
