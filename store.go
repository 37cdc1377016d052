package stdio

import (
	"fmt"
	"os"
	"sort"

	"github.com/absfs/absfs"
)

// Store is the encrypted backing store. It wraps any absfs.FileSystem and
// encrypts file contents transparently; paths and directory structure pass
// through unchanged.
type Store struct {
	base        absfs.FileSystem
	config      *Config
	keyProvider KeyProvider
	cipher      CipherSuite
}

// NewStore creates an encrypted store wrapping the base filesystem
func NewStore(base absfs.FileSystem, config *Config) (*Store, error) {
	if base == nil {
		return nil, fmt.Errorf("base filesystem cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	suite := config.Cipher
	if suite == CipherAuto {
		// Auto-select AES-256-GCM (in future, detect AES-NI support)
		suite = CipherAES256GCM
	}

	return &Store{
		base:        base,
		config:      config,
		keyProvider: config.KeyProvider,
		cipher:      suite,
	}, nil
}

// Open opens a file for reading with transparent decryption
func (s *Store) Open(name string) (*cryptFile, error) {
	return s.OpenFile(name, os.O_RDONLY, 0)
}

// Create creates or truncates a file for writing with transparent encryption
func (s *Store) Create(name string) (*cryptFile, error) {
	return s.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
}

// OpenFile opens a file with the specified flags and permissions
func (s *Store) OpenFile(name string, flag int, perm os.FileMode) (*cryptFile, error) {
	baseFile, err := s.base.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}

	cf, err := newCryptFile(baseFile, s)
	if err != nil {
		baseFile.Close()
		return nil, err
	}

	return cf, nil
}

// Mkdir creates a directory
func (s *Store) Mkdir(name string, perm os.FileMode) error {
	return s.base.Mkdir(name, perm)
}

// MkdirAll creates a directory and all necessary parent directories
func (s *Store) MkdirAll(name string, perm os.FileMode) error {
	return s.base.MkdirAll(name, perm)
}

// Remove removes a file or empty directory
func (s *Store) Remove(name string) error {
	return s.base.Remove(name)
}

// RemoveAll removes a path and any children it contains
func (s *Store) RemoveAll(path string) error {
	return s.base.RemoveAll(path)
}

// Rename renames (moves) a file
func (s *Store) Rename(oldpath, newpath string) error {
	return s.base.Rename(oldpath, newpath)
}

// Stat returns file information
func (s *Store) Stat(name string) (os.FileInfo, error) {
	info, err := s.base.Stat(name)
	if err != nil {
		return nil, err
	}

	// Encrypted files report the container size; directories pass through
	if !info.IsDir() {
		return newStoredFileInfo(info, s.cipher), nil
	}

	return info, nil
}

// Truncate shrinks or zero-pads the plaintext of the named file to exactly
// size bytes. Unlike a raw byte truncation of the container, this operates
// on the decrypted payload and reseals it.
func (s *Store) Truncate(name string, size int64) error {
	cf, err := s.OpenFile(name, os.O_RDWR, 0666)
	if err != nil {
		return err
	}

	if err := cf.Truncate(size); err != nil {
		cf.Close()
		return err
	}

	return cf.Close()
}

// ReadDir lists a directory's entries sorted by name
func (s *Store) ReadDir(name string) ([]os.FileInfo, error) {
	info, err := s.base.Stat(name)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, NewIOError("readdir", name, ErrNotDir)
	}

	dir, err := s.base.OpenFile(name, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer dir.Close()

	entries, err := dir.Readdir(-1)
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	return entries, nil
}

// storedFileInfo wraps os.FileInfo for encrypted container files
type storedFileInfo struct {
	os.FileInfo
	cipher CipherSuite
}

// newStoredFileInfo creates a new storedFileInfo
func newStoredFileInfo(info os.FileInfo, suite CipherSuite) *storedFileInfo {
	return &storedFileInfo{
		FileInfo: info,
		cipher:   suite,
	}
}

// Size returns the size of the container on the backing store. The header
// length varies per file, so the exact plaintext length is only observable
// through an open stream.
func (i *storedFileInfo) Size() int64 {
	return i.FileInfo.Size()
}
