package stdio

import (
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"time"

	"github.com/absfs/absfs"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

// errBillyNotSupported marks operations go-billy filesystems cannot express
var errBillyNotSupported = errors.New("not supported by billy filesystem")

// BillyFS adapts a go-billy filesystem to absfs.FileSystem so billy
// backends (osfs, memfs, chroot) can serve as the backing store.
type BillyFS struct {
	fs  billy.Filesystem
	cwd string
}

// NewBillyFS wraps a billy filesystem as a backing store
func NewBillyFS(bfs billy.Filesystem) *BillyFS {
	return &BillyFS{fs: bfs, cwd: "/"}
}

// NewMemoryBillyFS returns a backing store over billy's in-memory
// filesystem
func NewMemoryBillyFS() *BillyFS {
	return NewBillyFS(memfs.New())
}

// OpenFile opens a file with the specified flags and permissions.
// Directories open as enumeration-only handles, since billy filesystems
// cannot open a directory as a file.
func (b *BillyFS) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	if info, err := b.fs.Stat(name); err == nil && info.IsDir() {
		return &billyFile{fs: b, name: name}, nil
	}

	f, err := b.fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &billyFile{file: f, fs: b, name: name}, nil
}

// Open opens a file for reading
func (b *BillyFS) Open(name string) (absfs.File, error) {
	return b.OpenFile(name, os.O_RDONLY, 0)
}

// Create creates or truncates a file
func (b *BillyFS) Create(name string) (absfs.File, error) {
	return b.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
}

// Mkdir creates a directory. go-billy has no non-recursive mkdir, so the
// parent must already exist for parity with other backends.
func (b *BillyFS) Mkdir(name string, perm os.FileMode) error {
	if parent := dirOf(name); parent != "" {
		if _, err := b.fs.Stat(parent); err != nil {
			return fmt.Errorf("billy: mkdir %q: %w", name, err)
		}
	}
	return b.fs.MkdirAll(name, perm)
}

// MkdirAll creates a directory and all necessary parents
func (b *BillyFS) MkdirAll(name string, perm os.FileMode) error {
	return b.fs.MkdirAll(name, perm)
}

// Remove removes a file or empty directory
func (b *BillyFS) Remove(name string) error {
	return b.fs.Remove(name)
}

// RemoveAll removes a path and any children it contains
func (b *BillyFS) RemoveAll(path string) error {
	return util.RemoveAll(b.fs, path)
}

// Rename renames (moves) a file
func (b *BillyFS) Rename(oldpath, newpath string) error {
	return b.fs.Rename(oldpath, newpath)
}

// Stat returns file information
func (b *BillyFS) Stat(name string) (os.FileInfo, error) {
	return b.fs.Stat(name)
}

// Truncate truncates the named file to size bytes
func (b *BillyFS) Truncate(name string, size int64) error {
	f, err := b.fs.OpenFile(name, os.O_RDWR, 0666)
	if err != nil {
		return err
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Chmod is not supported by billy filesystems
func (b *BillyFS) Chmod(name string, mode os.FileMode) error {
	return fmt.Errorf("billy: chmod %q: %w", name, errBillyNotSupported)
}

// Chtimes is not supported by billy filesystems
func (b *BillyFS) Chtimes(name string, atime, mtime time.Time) error {
	return fmt.Errorf("billy: chtimes %q: %w", name, errBillyNotSupported)
}

// Chown is not supported by billy filesystems
func (b *BillyFS) Chown(name string, uid, gid int) error {
	return fmt.Errorf("billy: chown %q: %w", name, errBillyNotSupported)
}

// Separator returns the path separator
func (b *BillyFS) Separator() uint8 {
	return '/'
}

// ListSeparator returns the list separator
func (b *BillyFS) ListSeparator() uint8 {
	return ':'
}

// Chdir changes the current working directory
func (b *BillyFS) Chdir(dir string) error {
	if _, err := b.fs.Stat(dir); err != nil {
		return err
	}
	b.cwd = dir
	return nil
}

// Getwd returns the current working directory
func (b *BillyFS) Getwd() (string, error) {
	return b.cwd, nil
}

// TempDir returns the temporary directory path
func (b *BillyFS) TempDir() string {
	return "/tmp"
}

// ReadDir reads the named directory and returns its entries
func (b *BillyFS) ReadDir(name string) ([]iofs.DirEntry, error) {
	f, err := b.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.ReadDir(-1)
}

// ReadFile reads the named file and returns its contents
func (b *BillyFS) ReadFile(name string) ([]byte, error) {
	f, err := b.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Sub returns an fs.FS corresponding to the subtree rooted at dir
func (b *BillyFS) Sub(dir string) (iofs.FS, error) {
	return absfs.FilerToFS(b, dir)
}

// dirOf returns the parent of a slash path, or "" at the root
func dirOf(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			if i == 0 {
				return ""
			}
			return name[:i]
		}
	}
	return ""
}

// billyFile adapts a billy.File to absfs.File. A nil file with a set name
// is an enumeration-only directory handle.
type billyFile struct {
	file    billy.File
	fs      *BillyFS
	name    string
	entries []os.FileInfo
	diroff  int
}

// Name returns the name the file was opened with
func (f *billyFile) Name() string {
	return f.name
}

func (f *billyFile) Read(p []byte) (int, error) {
	if f.file == nil {
		return 0, os.ErrInvalid
	}
	return f.file.Read(p)
}

func (f *billyFile) ReadAt(p []byte, off int64) (int, error) {
	if f.file == nil {
		return 0, os.ErrInvalid
	}
	return f.file.ReadAt(p, off)
}

func (f *billyFile) Write(p []byte) (int, error) {
	if f.file == nil {
		return 0, os.ErrInvalid
	}
	return f.file.Write(p)
}

// WriteAt writes at the given offset. billy files have no WriteAt, so the
// position is saved and restored around a seek-and-write.
func (f *billyFile) WriteAt(p []byte, off int64) (int, error) {
	if f.file == nil {
		return 0, os.ErrInvalid
	}
	cur, err := f.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	if _, err := f.file.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, werr := f.file.Write(p)
	if _, err := f.file.Seek(cur, io.SeekStart); err != nil && werr == nil {
		return n, err
	}
	return n, werr
}

func (f *billyFile) WriteString(s string) (int, error) {
	return f.file.Write([]byte(s))
}

func (f *billyFile) Seek(offset int64, whence int) (int64, error) {
	if f.file == nil {
		return 0, os.ErrInvalid
	}
	return f.file.Seek(offset, whence)
}

func (f *billyFile) Truncate(size int64) error {
	if f.file == nil {
		return os.ErrInvalid
	}
	return f.file.Truncate(size)
}

// Stat returns file information via the owning filesystem
func (f *billyFile) Stat() (os.FileInfo, error) {
	return f.fs.fs.Stat(f.name)
}

// Sync is a no-op; billy files have no durability barrier
func (f *billyFile) Sync() error {
	return nil
}

// Readdir reads directory entries, n at a time for positive n
func (f *billyFile) Readdir(n int) ([]os.FileInfo, error) {
	if f.entries == nil {
		entries, err := f.fs.fs.ReadDir(f.name)
		if err != nil {
			return nil, err
		}
		f.entries = entries
	}

	if n <= 0 {
		out := f.entries[f.diroff:]
		f.diroff = len(f.entries)
		return out, nil
	}

	if f.diroff >= len(f.entries) {
		return nil, io.EOF
	}
	end := f.diroff + n
	if end > len(f.entries) {
		end = len(f.entries)
	}
	out := f.entries[f.diroff:end]
	f.diroff = end
	return out, nil
}

// ReadDir reads directory entries as fs.DirEntry values, delegating to
// Readdir
func (f *billyFile) ReadDir(n int) ([]iofs.DirEntry, error) {
	infos, err := f.Readdir(n)
	if err != nil {
		return nil, err
	}
	entries := make([]iofs.DirEntry, len(infos))
	for i, info := range infos {
		entries[i] = iofs.FileInfoToDirEntry(info)
	}
	return entries, nil
}

// Readdirnames reads directory entry names
func (f *billyFile) Readdirnames(n int) ([]string, error) {
	infos, err := f.Readdir(n)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}
	return names, nil
}

func (f *billyFile) Close() error {
	if f.file == nil {
		return nil
	}
	return f.file.Close()
}
