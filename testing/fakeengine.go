package testing

import (
	"sort"
	"strings"

	"github.com/dargueta/fatbind"
	"github.com/dargueta/fatbind/engine"
)

// FakeEngine is a scripted [engine.Engine]. Files and directories are served from
// maps keyed by absolute path; the Result fields override the outcome of the
// matching primitive when set to anything other than [engine.ResultOK].
type FakeEngine struct {
	MountKind   fatbind.FSKind
	MountResult engine.Result

	Files map[string][]byte
	// Dirs maps a directory path to the names of its entries. Entry details come
	// from Files, or describe a subdirectory if the name is also in Dirs.
	Dirs map[string][]string

	StatResult      engine.Result
	OpenResult      engine.Result
	OpenDirResult   engine.Result
	SeekResult      engine.Result
	ReadResult      engine.Result
	ReadEntryResult engine.Result
	// ReadChunk, if nonzero, limits how many bytes one Read call returns.
	ReadChunk int

	Volume   engine.BlockReader
	Mounts   int
	Unmounts int
	Opens    int
	Closes   int
}

func NewFakeEngine() *FakeEngine {
	return &FakeEngine{
		MountKind: fatbind.KindUnknown,
		Files:     make(map[string][]byte),
		Dirs:      map[string][]string{"/": {}},
	}
}

// AddFile puts a file in the root directory.
func (fake *FakeEngine) AddFile(name string, data []byte) {
	fake.Files["/"+name] = data
	fake.Dirs["/"] = append(fake.Dirs["/"], name)
}

// OpenHandles returns the number of file and directory handles not yet closed.
func (fake *FakeEngine) OpenHandles() int {
	return fake.Opens - fake.Closes
}

func (fake *FakeEngine) Mount(volume engine.BlockReader) (fatbind.FSKind, engine.Result) {
	fake.Mounts++
	if !fake.MountResult.OK() {
		return fatbind.KindUnknown, fake.MountResult
	}
	fake.Volume = volume
	return fake.MountKind, engine.ResultOK
}

func (fake *FakeEngine) Unmount() {
	fake.Unmounts++
	fake.Volume = nil
}

func (fake *FakeEngine) lookup(path string) (engine.EntryInfo, engine.Result) {
	if fake.Volume == nil {
		return engine.EntryInfo{}, engine.ResultNotEnabled
	}

	name := path[strings.LastIndex(path, "/")+1:]
	if _, ok := fake.Dirs[path]; ok {
		return engine.EntryInfo{Name: name, Attributes: fatbind.AttrDirectory}, engine.ResultOK
	}
	if data, ok := fake.Files[path]; ok {
		return engine.EntryInfo{Name: name, Size: int64(len(data))}, engine.ResultOK
	}
	return engine.EntryInfo{}, engine.ResultNoFile
}

func (fake *FakeEngine) Stat(path string) (engine.EntryInfo, engine.Result) {
	if !fake.StatResult.OK() {
		return engine.EntryInfo{}, fake.StatResult
	}
	return fake.lookup(path)
}

func (fake *FakeEngine) OpenRead(path string) (engine.File, engine.Result) {
	if !fake.OpenResult.OK() {
		return nil, fake.OpenResult
	}
	info, result := fake.lookup(path)
	if !result.OK() {
		return nil, result
	}
	if info.IsDir() {
		return nil, engine.ResultDenied
	}

	fake.Opens++
	return &fakeFile{engine: fake, data: fake.Files[path]}, engine.ResultOK
}

func (fake *FakeEngine) OpenDir(path string) (engine.Dir, engine.Result) {
	if !fake.OpenDirResult.OK() {
		return nil, fake.OpenDirResult
	}
	info, result := fake.lookup(path)
	if !result.OK() {
		return nil, result
	}
	if !info.IsDir() {
		return nil, engine.ResultNoPath
	}

	names := append([]string(nil), fake.Dirs[path]...)
	sort.Strings(names)

	fake.Opens++
	return &fakeDir{engine: fake, parent: strings.TrimSuffix(path, "/"), names: names}, engine.ResultOK
}

type fakeFile struct {
	engine   *FakeEngine
	data     []byte
	position int64
	closed   bool
}

func (f *fakeFile) Size() int64 {
	return int64(len(f.data))
}

func (f *fakeFile) Seek(offset int64) engine.Result {
	if !f.engine.SeekResult.OK() {
		return f.engine.SeekResult
	}
	if offset < 0 || offset > int64(len(f.data)) {
		return engine.ResultInvalidParameter
	}
	f.position = offset
	return engine.ResultOK
}

func (f *fakeFile) Read(buffer []byte) (int, engine.Result) {
	if !f.engine.ReadResult.OK() {
		return 0, f.engine.ReadResult
	}
	if f.engine.ReadChunk > 0 && len(buffer) > f.engine.ReadChunk {
		buffer = buffer[:f.engine.ReadChunk]
	}
	n := copy(buffer, f.data[f.position:])
	f.position += int64(n)
	return n, engine.ResultOK
}

func (f *fakeFile) Close() engine.Result {
	if f.closed {
		return engine.ResultInvalidObject
	}
	f.closed = true
	f.engine.Closes++
	return engine.ResultOK
}

type fakeDir struct {
	engine *FakeEngine
	parent string
	names  []string
	index  int
	closed bool
}

func (d *fakeDir) ReadEntry() (engine.EntryInfo, bool, engine.Result) {
	if !d.engine.ReadEntryResult.OK() {
		return engine.EntryInfo{}, false, d.engine.ReadEntryResult
	}
	if d.index >= len(d.names) {
		return engine.EntryInfo{}, false, engine.ResultOK
	}

	name := d.names[d.index]
	d.index++
	info, _ := d.engine.lookup(d.parent + "/" + name)
	info.Name = name
	return info, true, engine.ResultOK
}

func (d *fakeDir) Close() engine.Result {
	if d.closed {
		return engine.ResultInvalidObject
	}
	d.closed = true
	d.engine.Closes++
	return engine.ResultOK
}
