package stdio

import (
	"os"
	"path"
)

// DirEntry is one directory entry produced by ReadDir
type DirEntry struct {
	Name  string
	IsDir bool
}

// dirStream holds the enumeration state of one open directory handle.
// The entry list is a snapshot taken at open or rewind; cursor positions
// from TellDir index into that snapshot and are only meaningful for the
// lifetime of the handle that produced them.
type dirStream struct {
	path    string
	entries []DirEntry
	cursor  int
}

// dir resolves a directory handle
func (fs *FS) dir(h DirHandle) (*dirStream, bool) {
	fs.mu.RLock()
	d, ok := fs.dirs[h]
	fs.mu.RUnlock()
	return d, ok
}

// snapshot lists the directory into the entry slice
func (fs *FS) snapshot(d *dirStream) error {
	infos, err := fs.store.ReadDir(d.path)
	if err != nil {
		return err
	}

	entries := make([]DirEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, DirEntry{
			Name:  info.Name(),
			IsDir: info.IsDir(),
		})
	}

	d.entries = entries
	return nil
}

// OpenDir opens the named directory for enumeration
func (fs *FS) OpenDir(name string) (DirHandle, error) {
	d := &dirStream{path: name}
	if err := fs.snapshot(d); err != nil {
		return 0, err
	}

	fs.mu.Lock()
	fs.lastDir++
	h := fs.lastDir
	fs.dirs[h] = d
	fs.mu.Unlock()

	return h, nil
}

// CloseDir releases the directory handle
func (fs *FS) CloseDir(h DirHandle) error {
	fs.mu.Lock()
	_, ok := fs.dirs[h]
	if ok {
		delete(fs.dirs, h)
	}
	fs.mu.Unlock()

	if !ok {
		return ErrBadHandle
	}
	return nil
}

// ReadDir returns the next directory entry, or nil at end-of-stream
func (fs *FS) ReadDir(h DirHandle) *DirEntry {
	d, ok := fs.dir(h)
	if !ok {
		return nil
	}
	if d.cursor >= len(d.entries) {
		return nil
	}

	entry := d.entries[d.cursor]
	d.cursor++
	return &entry
}

// ReadDirR is the reentrant variant of ReadDir: it fills the caller's
// entry value and reports whether one was produced. ok is false with a
// nil error at end-of-stream.
func (fs *FS) ReadDirR(h DirHandle, entry *DirEntry) (ok bool, err error) {
	d, found := fs.dir(h)
	if !found {
		return false, ErrBadHandle
	}
	if entry == nil {
		return false, NewValidationError("entry", nil, "entry buffer cannot be nil")
	}
	if d.cursor >= len(d.entries) {
		return false, nil
	}

	*entry = d.entries[d.cursor]
	d.cursor++
	return true, nil
}

// RewindDir resets enumeration to the first entry, refreshing the
// snapshot. Invalid handles are ignored.
func (fs *FS) RewindDir(h DirHandle) {
	d, ok := fs.dir(h)
	if !ok {
		return
	}
	// A refresh failure leaves the previous snapshot in place
	fs.snapshot(d)
	d.cursor = 0
}

// SeekDir restores an enumeration position previously returned by TellDir
// on the same handle. Out-of-range positions are ignored.
func (fs *FS) SeekDir(h DirHandle, loc int64) {
	d, ok := fs.dir(h)
	if !ok {
		return
	}
	if loc < 0 || loc > int64(len(d.entries)) {
		return
	}
	d.cursor = int(loc)
}

// TellDir returns the current enumeration position, or -1 for an invalid
// handle. The value is valid only for the lifetime of this handle.
func (fs *FS) TellDir(h DirHandle) int64 {
	d, ok := fs.dir(h)
	if !ok {
		return -1
	}
	return int64(d.cursor)
}

// Stat returns metadata for the named file or directory. Only search
// permission on the ancestor directories is required.
func (fs *FS) Stat(name string) (os.FileInfo, error) {
	return fs.store.Stat(name)
}

// StatDir returns metadata for a name relative to the open directory
func (fs *FS) StatDir(h DirHandle, name string) (os.FileInfo, error) {
	d, ok := fs.dir(h)
	if !ok {
		return nil, ErrBadHandle
	}
	return fs.store.Stat(path.Join(d.path, name))
}
