package volume

import (
	"iter"

	"github.com/dargueta/fatbind"
	"github.com/sirupsen/logrus"
)

func (m *Manager) requireBound() error {
	if !m.bound {
		return fatbind.ErrNotMounted
	}
	return nil
}

// Exists returns true if `path` names a file or directory on the bound volume. A
// missing path, or no bound volume at all, is simply false.
func (m *Manager) Exists(path string) bool {
	if m.requireBound() != nil {
		return false
	}
	_, result := m.engine.Stat(path)
	return result.OK()
}

// Size returns the size of the file at `path`, in bytes. Directories are 0.
func (m *Manager) Size(path string) (int64, error) {
	err := m.requireBound()
	if err != nil {
		return 0, err
	}

	info, result := m.engine.Stat(path)
	if !result.OK() {
		return 0, translateStat(result, path)
	}
	if info.IsDir() {
		return 0, nil
	}
	return info.Size, nil
}

// ReadRange reads from the file at `path` starting at byte `offset`. At most
// `maxLength` bytes are read, or the whole file if `maxLength` is 0, and never more
// than fit in `buffer`. Reading fewer bytes than requested because the end of the
// file was reached is not an error.
//
// An offset equal to the file size reads nothing and succeeds; a greater one fails
// with [fatbind.ErrSeekFailed]. If reading fails partway through, the number of
// bytes read so far is returned along with [fatbind.ErrIOFailed].
func (m *Manager) ReadRange(
	path string, offset int64, buffer []byte, maxLength int64,
) (bytesRead int64, err error) {
	err = m.requireBound()
	if err != nil {
		return 0, err
	}
	if maxLength < 0 {
		return 0, fatbind.ErrInvalidArgument.WithMessage("maxLength can't be negative")
	}

	log := m.log.WithFields(logrus.Fields{
		"path":   path,
		"offset": offset,
	})
	defer func() {
		if err != nil {
			log.WithError(err).Warn("Unable to read file")
		}
	}()

	file, result := m.engine.OpenRead(path)
	if !result.OK() {
		return 0, translateOpen(result, path)
	}
	defer func() {
		closeResult := file.Close()
		if !closeResult.OK() {
			log.WithField("result", closeResult.String()).Debug("failed to close file")
		}
	}()

	result = file.Seek(offset)
	if !result.OK() {
		return 0, translateSeek(result, path)
	}

	length := maxLength
	if length == 0 {
		length = file.Size()
	}
	if length > int64(len(buffer)) {
		length = int64(len(buffer))
	}

	for bytesRead < length {
		n, result := file.Read(buffer[bytesRead:length])
		bytesRead += int64(n)
		if !result.OK() {
			return bytesRead, translateRead(result, path)
		}
		if n == 0 {
			break
		}
	}

	log.WithField("bytes", bytesRead).Debug("read file")
	return bytesRead, nil
}

// ReadFile reads from the beginning of the file at `path`. It's the same as
// calling ReadRange with an offset of 0.
func (m *Manager) ReadFile(path string, buffer []byte, maxLength int64) (int64, error) {
	return m.ReadRange(path, 0, buffer, maxLength)
}

// List returns a sequence of the entries in the directory at `path`. The
// directory is opened when iteration starts and closed when the sequence ends,
// fails, or the caller stops early. An error is yielded at most once, as the last
// item.
//
// The returned sequence can only be iterated once; call List again to start over.
func (m *Manager) List(path string) iter.Seq2[fatbind.DirectoryEntry, error] {
	used := false

	return func(yield func(fatbind.DirectoryEntry, error) bool) {
		if used {
			return
		}
		used = true

		err := m.requireBound()
		if err != nil {
			yield(fatbind.DirectoryEntry{}, err)
			return
		}

		dir, result := m.engine.OpenDir(path)
		if !result.OK() {
			yield(fatbind.DirectoryEntry{}, translateOpen(result, path))
			return
		}
		defer dir.Close()

		for {
			info, ok, result := dir.ReadEntry()
			if !result.OK() {
				yield(fatbind.DirectoryEntry{}, translateRead(result, path))
				return
			}
			if !ok {
				return
			}
			if !yield(info.DirectoryEntry(), nil) {
				return
			}
		}
	}
}

// ReadDir collects every entry of the directory at `path`.
func (m *Manager) ReadDir(path string) ([]fatbind.DirectoryEntry, error) {
	entries := []fatbind.DirectoryEntry{}
	for entry, err := range m.List(path) {
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
