package stdio

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/absfs/absfs"
	"github.com/google/uuid"
)

// FileHandle is an opaque reference to an open stream. The zero value is
// never a valid handle.
type FileHandle uint64

// DirHandle is an opaque reference to an open directory stream. The zero
// value is never a valid handle.
type DirHandle uint64

// FS is the encrypted stdio facade. It owns the handle tables mapping
// opaque handles to stream state, and routes all content through the
// encrypted Store.
//
// The handle tables are safe for concurrent use; individual handles are
// not. Two goroutines sharing one handle must synchronize externally.
type FS struct {
	store *Store

	mu       sync.RWMutex
	files    map[FileHandle]*stream
	dirs     map[DirHandle]*dirStream
	lastFile FileHandle
	lastDir  DirHandle
}

// New creates a facade over an encrypted store wrapping the base filesystem
func New(base absfs.FileSystem, config *Config) (*FS, error) {
	store, err := NewStore(base, config)
	if err != nil {
		return nil, err
	}
	return NewWithStore(store), nil
}

// NewWithStore creates a facade over an existing encrypted store
func NewWithStore(store *Store) *FS {
	return &FS{
		store: store,
		files: make(map[FileHandle]*stream),
		dirs:  make(map[DirHandle]*dirStream),
	}
}

// Store returns the underlying encrypted store
func (fs *FS) Store() *Store {
	return fs.store
}

// file resolves a handle; the ok result is false for closed or unknown
// handles
func (fs *FS) file(h FileHandle) (*stream, bool) {
	fs.mu.RLock()
	s, ok := fs.files[h]
	fs.mu.RUnlock()
	return s, ok
}

// Open opens the named file in one of the six modes r, w, a, r+, w+, a+
// and returns a live handle for it
func (fs *FS) Open(name, mode string) (FileHandle, error) {
	m, err := parseMode(mode)
	if err != nil {
		return 0, err
	}

	cf, err := fs.store.OpenFile(name, m.flag, 0666)
	if err != nil {
		return 0, err
	}

	// A read-only open of an empty file must not rewrite it on close
	if !m.write {
		cf.dirty = false
	}

	s := &stream{
		file:    cf,
		name:    name,
		mode:    m,
		bufMode: fs.store.config.DefaultBuffering,
		bufSize: fs.store.config.DefaultBufferSize,
	}

	fs.mu.Lock()
	fs.lastFile++
	h := fs.lastFile
	fs.files[h] = s
	fs.mu.Unlock()

	return h, nil
}

// Close flushes any pending writes and releases the handle. The handle is
// invalid afterwards regardless of the returned error.
func (fs *FS) Close(h FileHandle) error {
	fs.mu.Lock()
	s, ok := fs.files[h]
	if ok {
		delete(fs.files, h)
	}
	fs.mu.Unlock()

	if !ok {
		return ErrBadHandle
	}

	return s.file.Close()
}

// Read transfers up to size*count bytes into p and returns the number of
// complete elements read. Zero size or count is a no-op returning zero.
// A short count means end-of-file or error; check Feof and Ferror.
func (fs *FS) Read(h FileHandle, p []byte, size, count int) int {
	if size <= 0 || count <= 0 {
		return 0
	}
	s, ok := fs.file(h)
	if !ok {
		return 0
	}

	total := size * count
	if total > len(p) {
		total = (len(p) / size) * size
	}

	n := s.readBytes(p[:total])
	return n / size
}

// Write transfers up to size*count bytes from p and returns the number of
// complete elements written. Zero size or count is a no-op returning zero.
func (fs *FS) Write(h FileHandle, p []byte, size, count int) int {
	if size <= 0 || count <= 0 {
		return 0
	}
	s, ok := fs.file(h)
	if !ok {
		return 0
	}

	total := size * count
	if total > len(p) {
		total = (len(p) / size) * size
	}

	n := s.writeBytes(p[:total])
	return n / size
}

// Seek repositions the stream. Whence is one of io.SeekStart,
// io.SeekCurrent, io.SeekEnd. A successful seek discards pushed-back bytes
// and clears both indicators.
func (fs *FS) Seek(h FileHandle, offset int64, whence int) error {
	s, ok := fs.file(h)
	if !ok {
		return ErrBadHandle
	}
	return s.seekTo(offset, whence)
}

// Tell returns the current byte position, or -1 for an invalid handle
func (fs *FS) Tell(h FileHandle) int64 {
	s, ok := fs.file(h)
	if !ok {
		return -1
	}
	return s.pos()
}

// Pos is an opaque stream position captured by Getpos. Unlike a raw byte
// offset it restores the exact stream state, including pushed-back bytes.
type Pos struct {
	offset   int64
	pushback []byte
}

// Getpos captures the current stream position
func (fs *FS) Getpos(h FileHandle) (Pos, error) {
	s, ok := fs.file(h)
	if !ok {
		return Pos{}, ErrBadHandle
	}

	pb := make([]byte, len(s.pushback))
	copy(pb, s.pushback)
	return Pos{offset: s.file.offset, pushback: pb}, nil
}

// Setpos restores a position previously captured with Getpos on the same
// handle and clears both indicators
func (fs *FS) Setpos(h FileHandle, pos Pos) error {
	s, ok := fs.file(h)
	if !ok {
		return ErrBadHandle
	}

	if _, err := s.file.Seek(pos.offset, io.SeekStart); err != nil {
		s.serr = true
		return err
	}

	s.pushback = make([]byte, len(pos.pushback))
	copy(s.pushback, pos.pushback)
	s.touched = true
	s.eof = false
	s.serr = false
	return nil
}

// Rewind repositions the stream to its start, discards pushed-back bytes,
// and clears both indicators. Invalid handles are ignored.
func (fs *FS) Rewind(h FileHandle) {
	s, ok := fs.file(h)
	if !ok {
		return
	}
	s.seekTo(0, io.SeekStart)
}

// Flush forces buffered writes through to the backing store
func (fs *FS) Flush(h FileHandle) error {
	s, ok := fs.file(h)
	if !ok {
		return ErrBadHandle
	}
	return s.flushStore()
}

// Sync flushes buffered writes and additionally syncs the backing file,
// making the data visible to concurrent readers of the same path. Strictly
// stronger and slower than Flush.
func (fs *FS) Sync(h FileHandle) error {
	s, ok := fs.file(h)
	if !ok {
		return ErrBadHandle
	}
	if err := s.flushStore(); err != nil {
		return err
	}
	if err := s.file.Sync(); err != nil {
		s.serr = true
		return err
	}
	return nil
}

// Truncate shrinks or zero-pads the named file to exactly size plaintext
// bytes. No open handle is required.
func (fs *FS) Truncate(name string, size int64) error {
	return fs.store.Truncate(name, size)
}

// TruncateFile shrinks or zero-pads the open stream to exactly size bytes.
// The stream position is left unchanged.
func (fs *FS) TruncateFile(h FileHandle, size int64) error {
	s, ok := fs.file(h)
	if !ok {
		return ErrBadHandle
	}
	if !s.mode.write {
		s.serr = true
		return ErrNotWritable
	}
	s.touched = true
	if err := s.file.Truncate(size); err != nil {
		s.serr = true
		return err
	}
	return nil
}

// Remove deletes the named file or empty directory
func (fs *FS) Remove(name string) error {
	return fs.store.Remove(name)
}

// Rename moves oldname to newname
func (fs *FS) Rename(oldname, newname string) error {
	return fs.store.Rename(oldname, newname)
}

// Reopen reassociates the handle with the named file in the given mode.
// An empty name changes only the access mode of the existing stream.
// Indicators and pushed-back bytes are cleared either way. If a new file
// cannot be opened the handle is closed and becomes invalid.
func (fs *FS) Reopen(h FileHandle, name, mode string) error {
	m, err := parseMode(mode)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	s, ok := fs.files[h]
	fs.mu.Unlock()
	if !ok {
		return ErrBadHandle
	}

	if name == "" {
		s.mode = m
		s.pushback = nil
		s.eof = false
		s.serr = false
		return nil
	}

	// Close out the current file first; a close failure still proceeds to
	// the reopen, matching the contract that the old association ends here
	closeErr := s.file.Close()

	cf, err := fs.store.OpenFile(name, m.flag, 0666)
	if err != nil {
		fs.mu.Lock()
		delete(fs.files, h)
		fs.mu.Unlock()
		return err
	}
	if !m.write {
		cf.dirty = false
	}

	s.file = cf
	s.name = name
	s.mode = m
	s.pushback = nil
	s.eof = false
	s.serr = false
	s.pending = 0
	s.touched = false

	return closeErr
}

// Getc reads the next byte, returning it or EOF with the corresponding
// indicator set
func (fs *FS) Getc(h FileHandle) int {
	s, ok := fs.file(h)
	if !ok {
		return EOF
	}
	return s.getc()
}

// Putc writes a single byte, returning it or EOF on failure
func (fs *FS) Putc(h FileHandle, c byte) int {
	s, ok := fs.file(h)
	if !ok {
		return EOF
	}
	return s.putc(c)
}

// Ungetc pushes a byte back onto the stream so the next read returns it.
// Pushed-back bytes are returned in reverse order of pushing and are
// discarded by any positioning call. Returns the byte, or EOF on failure.
func (fs *FS) Ungetc(h FileHandle, c byte) int {
	s, ok := fs.file(h)
	if !ok {
		return EOF
	}
	return s.ungetc(c)
}

// Gets reads up to max-1 bytes or through the first newline, inclusive.
// Returns nil if no byte could be read before end-of-file or error.
func (fs *FS) Gets(h FileHandle, max int) []byte {
	s, ok := fs.file(h)
	if !ok {
		return nil
	}
	return s.gets(max)
}

// Puts writes a string to the stream, returning the byte count or EOF
func (fs *FS) Puts(h FileHandle, str string) int {
	s, ok := fs.file(h)
	if !ok {
		return EOF
	}
	n := s.writeBytes([]byte(str))
	if n < len(str) {
		return EOF
	}
	return n
}

// Setvbuf configures the stream's buffering. It must be called before the
// first I/O operation on the handle. A nil buf with size zero leaves the
// flush threshold unset; the buf argument otherwise only sizes the
// threshold, since the stream owns its storage.
func (fs *FS) Setvbuf(h FileHandle, buf []byte, mode BufferMode, size int) error {
	s, ok := fs.file(h)
	if !ok {
		return ErrBadHandle
	}
	if s.touched {
		return ErrBufferedIO
	}
	if mode > BufferNone {
		return NewValidationError("mode", mode, "mode must be BufferFull, BufferLine or BufferNone")
	}
	if size < 0 {
		return NewValidationError("size", size, "buffer size cannot be negative")
	}
	if size == 0 && buf != nil {
		size = len(buf)
	}

	s.bufMode = mode
	s.bufSize = size
	return nil
}

// SetBuf sets full buffering with the given buffer, or no buffering when
// buf is nil
func (fs *FS) SetBuf(h FileHandle, buf []byte) {
	if buf == nil {
		fs.Setvbuf(h, nil, BufferNone, 0)
		return
	}
	fs.Setvbuf(h, buf, BufferFull, len(buf))
}

// SetBuffer sets full buffering with an explicit size, or no buffering
// when buf is nil
func (fs *FS) SetBuffer(h FileHandle, buf []byte, size int) {
	if buf == nil {
		fs.Setvbuf(h, nil, BufferNone, 0)
		return
	}
	fs.Setvbuf(h, buf, BufferFull, size)
}

// Clearerr clears both stream indicators. Invalid handles are ignored.
func (fs *FS) Clearerr(h FileHandle) {
	s, ok := fs.file(h)
	if !ok {
		return
	}
	s.eof = false
	s.serr = false
}

// Feof reports whether the end-of-file indicator is set
func (fs *FS) Feof(h FileHandle) bool {
	s, ok := fs.file(h)
	if !ok {
		return false
	}
	return s.eof
}

// Ferror reports whether the error indicator is set
func (fs *FS) Ferror(h FileHandle) bool {
	s, ok := fs.file(h)
	if !ok {
		return false
	}
	return s.serr
}

// TempName returns a file name that does not currently exist in the store
func (fs *FS) TempName() string {
	for {
		name := fmt.Sprintf("/tmp-%s", uuid.New().String())
		if _, err := fs.store.Stat(name); err != nil {
			return name
		}
	}
}

// Mkdir creates a directory
func (fs *FS) Mkdir(name string, perm os.FileMode) error {
	return fs.store.Mkdir(name, perm)
}

// MkdirAll creates a directory and all necessary parents
func (fs *FS) MkdirAll(name string, perm os.FileMode) error {
	return fs.store.MkdirAll(name, perm)
}
