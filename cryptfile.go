package stdio

import (
	"fmt"
	"io"
	"os"

	"github.com/absfs/absfs"
)

// cryptFile wraps a base file and provides transparent encryption and
// decryption of its payload. The whole plaintext is held in memory between
// open and flush; the on-disk form is always header + one sealed payload.
type cryptFile struct {
	base      absfs.File
	store     *Store
	header    *FileHeader
	engine    CipherEngine
	plaintext []byte // Decrypted content
	dirty     bool   // True if plaintext has been modified
	offset    int64  // Current read/write offset in plaintext
}

// newCryptFile opens a payload wrapper over an already-opened base file.
// An existing non-empty file is decrypted; an empty one gets a fresh header.
func newCryptFile(base absfs.File, store *Store) (*cryptFile, error) {
	cf := &cryptFile{
		base:  base,
		store: store,
	}

	info, err := base.Stat()
	if err != nil {
		return nil, err
	}

	if info.Size() > 0 {
		if err := cf.load(); err != nil {
			return nil, fmt.Errorf("failed to load encrypted file: %w", err)
		}
	} else {
		if err := cf.init(); err != nil {
			return nil, fmt.Errorf("failed to initialize new file: %w", err)
		}
	}

	return cf, nil
}

// init sets up a fresh container for an empty file
func (f *cryptFile) init() error {
	salt, err := f.store.keyProvider.GenerateSalt()
	if err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	nonce, err := GenerateNonce(f.store.cipher)
	if err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	f.header = NewFileHeader(f.store.cipher, salt, nonce)

	key, err := f.store.keyProvider.DeriveKey(salt)
	if err != nil {
		return fmt.Errorf("failed to derive key: %w", err)
	}

	f.engine, err = NewCipherEngine(f.store.cipher, key)
	if err != nil {
		return fmt.Errorf("failed to create cipher engine: %w", err)
	}

	f.plaintext = []byte{}
	f.dirty = true

	return nil
}

// load reads the container header and decrypts the payload
func (f *cryptFile) load() error {
	if _, err := f.base.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}

	f.header = &FileHeader{}
	if _, err := f.header.ReadFrom(f.base); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	if err := f.header.Validate(); err != nil {
		return err
	}

	// Read the payload before key derivation to avoid multiple passes
	ciphertext, err := io.ReadAll(f.base)
	if err != nil {
		return fmt.Errorf("failed to read ciphertext: %w", err)
	}

	// A MultiKeyProvider gets each of its providers tried in order,
	// supporting key rotation
	if multi, ok := f.store.keyProvider.(*MultiKeyProvider); ok {
		return f.loadWithFallback(multi, ciphertext)
	}

	key, err := f.store.keyProvider.DeriveKey(f.header.Salt)
	if err != nil {
		return fmt.Errorf("failed to derive key: %w", err)
	}

	f.engine, err = NewCipherEngine(f.header.Cipher, key)
	if err != nil {
		return fmt.Errorf("failed to create cipher engine: %w", err)
	}

	if len(ciphertext) > 0 {
		f.plaintext, err = f.engine.Decrypt(f.header.Nonce, ciphertext)
		if err != nil {
			return fmt.Errorf("failed to decrypt: %w", err)
		}
	} else {
		f.plaintext = []byte{}
	}

	f.dirty = false
	f.offset = 0

	return nil
}

// loadWithFallback tries each provider in order until one decrypts
func (f *cryptFile) loadWithFallback(multi *MultiKeyProvider, ciphertext []byte) error {
	var lastErr error
	for _, provider := range multi.Providers() {
		key, err := provider.DeriveKey(f.header.Salt)
		if err != nil {
			lastErr = err
			continue
		}

		engine, err := NewCipherEngine(f.header.Cipher, key)
		if err != nil {
			lastErr = err
			continue
		}

		plaintext := []byte{}
		if len(ciphertext) > 0 {
			plaintext, err = engine.Decrypt(f.header.Nonce, ciphertext)
			if err != nil {
				lastErr = err
				continue
			}
		}

		f.engine = engine
		f.plaintext = plaintext
		f.dirty = false
		f.offset = 0
		return nil
	}

	if lastErr != nil {
		return fmt.Errorf("all key providers failed to decrypt: %w", lastErr)
	}
	return fmt.Errorf("no key providers could decrypt the file")
}

// flush seals the plaintext and rewrites the container
func (f *cryptFile) flush() error {
	if !f.dirty {
		return nil
	}

	ciphertext, err := f.engine.Encrypt(f.header.Nonce, f.plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt: %w", err)
	}

	if _, err := f.base.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	if _, err := f.header.WriteTo(f.base); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	if _, err := f.base.Write(ciphertext); err != nil {
		return fmt.Errorf("failed to write ciphertext: %w", err)
	}

	// Drop any stale bytes past the new payload
	currentPos, err := f.base.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("failed to get position: %w", err)
	}

	if err := f.base.Truncate(currentPos); err != nil {
		return fmt.Errorf("failed to truncate: %w", err)
	}

	f.dirty = false

	return nil
}

// Name returns the name of the underlying file
func (f *cryptFile) Name() string {
	return f.base.Name()
}

// size returns the plaintext length
func (f *cryptFile) size() int64 {
	return int64(len(f.plaintext))
}

// Read reads from the decrypted content at the current offset
func (f *cryptFile) Read(p []byte) (n int, err error) {
	if f.offset >= int64(len(f.plaintext)) {
		return 0, io.EOF
	}

	n = copy(p, f.plaintext[f.offset:])
	f.offset += int64(n)

	if n < len(p) {
		err = io.EOF
	}

	return n, err
}

// Write writes to the plaintext buffer at the current offset
func (f *cryptFile) Write(p []byte) (n int, err error) {
	newSize := f.offset + int64(len(p))
	if newSize > int64(len(f.plaintext)) {
		newPlaintext := make([]byte, newSize)
		copy(newPlaintext, f.plaintext)
		f.plaintext = newPlaintext
	}

	n = copy(f.plaintext[f.offset:], p)
	f.offset += int64(n)
	f.dirty = true

	return n, nil
}

// Seek sets the offset for the next Read or Write
func (f *cryptFile) Seek(offset int64, whence int) (int64, error) {
	var newOffset int64

	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekCurrent:
		newOffset = f.offset + offset
	case io.SeekEnd:
		newOffset = int64(len(f.plaintext)) + offset
	default:
		return 0, ErrBadWhence
	}

	if newOffset < 0 {
		return 0, fmt.Errorf("negative position")
	}

	f.offset = newOffset
	return f.offset, nil
}

// Truncate shrinks or zero-pads the plaintext to exactly size bytes.
// The current offset is left unchanged.
func (f *cryptFile) Truncate(size int64) error {
	if size < 0 {
		return fmt.Errorf("negative size")
	}

	if size > int64(len(f.plaintext)) {
		newPlaintext := make([]byte, size)
		copy(newPlaintext, f.plaintext)
		f.plaintext = newPlaintext
	} else {
		f.plaintext = f.plaintext[:size]
	}

	f.dirty = true

	return nil
}

// Close flushes any pending writes and closes the base file
func (f *cryptFile) Close() error {
	if err := f.flush(); err != nil {
		f.base.Close()
		return err
	}

	return f.base.Close()
}

// Sync flushes pending writes through to stable storage
func (f *cryptFile) Sync() error {
	if err := f.flush(); err != nil {
		return err
	}

	return f.base.Sync()
}

// Stat returns information about the underlying file
func (f *cryptFile) Stat() (os.FileInfo, error) {
	info, err := f.base.Stat()
	if err != nil {
		return nil, err
	}

	return newStoredFileInfo(info, f.store.cipher), nil
}
