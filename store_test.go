package stdio

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/absfs/absfs"
	"github.com/absfs/memfs"
)

func staticProvider(t *testing.T, fill byte) KeyProvider {
	t.Helper()

	key := make([]byte, 32)
	for i := range key {
		key[i] = fill
	}
	provider, err := NewStaticKeyProvider(key)
	if err != nil {
		t.Fatalf("NewStaticKeyProvider failed: %v", err)
	}
	return provider
}

func newTestStore(t *testing.T, provider KeyProvider) (*Store, absfs.FileSystem) {
	t.Helper()

	base, err := memfs.NewFS()
	if err != nil {
		t.Fatalf("failed to create base filesystem: %v", err)
	}

	store, err := NewStore(base, &Config{
		Cipher:      CipherAES256GCM,
		KeyProvider: provider,
	})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store, base
}

func TestStore_NewValidation(t *testing.T) {
	base, _ := memfs.NewFS()

	if _, err := NewStore(nil, &Config{KeyProvider: testKey(), Cipher: CipherAES256GCM}); err == nil {
		t.Fatal("expected error for nil base")
	}
	if _, err := NewStore(base, nil); !errors.Is(err, ErrNilConfig) {
		t.Fatalf("nil config: got %v, want ErrNilConfig", err)
	}
	if _, err := NewStore(base, &Config{Cipher: CipherAES256GCM}); !errors.Is(err, ErrNilKeyProvider) {
		t.Fatalf("nil key provider: got %v, want ErrNilKeyProvider", err)
	}
}

func TestStore_AutoSelectsAES(t *testing.T) {
	base, _ := memfs.NewFS()

	store, err := NewStore(base, &Config{Cipher: CipherAuto, KeyProvider: testKey()})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if store.cipher != CipherAES256GCM {
		t.Fatalf("auto cipher: got %v, want %v", store.cipher, CipherAES256GCM)
	}
}

func TestStore_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t, testKey())
	content := []byte("the quick brown fox")

	cf, err := store.Create("/file.txt")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := cf.Write(content); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := cf.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	cf, err = store.Open("/file.txt")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer cf.Close()

	got, err := io.ReadAll(cf)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("round trip: got %q, want %q", got, content)
	}
}

func TestStore_PlaintextNotAtRest(t *testing.T) {
	store, base := newTestStore(t, testKey())
	secret := []byte("top secret payload that must never appear on disk")

	cf, _ := store.Create("/secret.txt")
	cf.Write(secret)
	if err := cf.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	raw, err := base.OpenFile("/secret.txt", os.O_RDONLY, 0)
	if err != nil {
		t.Fatalf("raw open failed: %v", err)
	}
	stored, err := io.ReadAll(raw)
	raw.Close()
	if err != nil {
		t.Fatalf("raw read failed: %v", err)
	}

	if bytes.Contains(stored, secret) {
		t.Fatal("plaintext found in the stored container")
	}
	if len(stored) < MinHeaderSize {
		t.Fatalf("container too small: %d bytes", len(stored))
	}
	// Little-endian encoding of the magic word
	if !bytes.Equal(stored[:4], []byte{0x4F, 0x49, 0x53, 0x45}) {
		t.Fatalf("container does not start with magic bytes: % x", stored[:4])
	}
}

func TestStore_WrongKeyFails(t *testing.T) {
	store, base := newTestStore(t, staticProvider(t, 0xAA))

	cf, _ := store.Create("/file.txt")
	cf.Write([]byte("data"))
	if err := cf.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	wrong, err := NewStore(base, &Config{
		Cipher:      CipherAES256GCM,
		KeyProvider: staticProvider(t, 0xBB),
	})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if _, err := wrong.Open("/file.txt"); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("open with wrong key: got %v, want ErrAuthFailed", err)
	}
}

func TestStore_KeyRotation(t *testing.T) {
	oldProvider := staticProvider(t, 0x01)
	newProvider := staticProvider(t, 0x02)

	store, base := newTestStore(t, oldProvider)
	cf, _ := store.Create("/old.txt")
	cf.Write([]byte("written before rotation"))
	if err := cf.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	multi, err := NewMultiKeyProvider(newProvider, oldProvider)
	if err != nil {
		t.Fatalf("NewMultiKeyProvider failed: %v", err)
	}
	rotated, err := NewStore(base, &Config{
		Cipher:      CipherAES256GCM,
		KeyProvider: multi,
	})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	// Old files decrypt through the fallback provider
	cf, err = rotated.Open("/old.txt")
	if err != nil {
		t.Fatalf("Open of pre-rotation file failed: %v", err)
	}
	got, _ := io.ReadAll(cf)
	cf.Close()
	if string(got) != "written before rotation" {
		t.Fatalf("pre-rotation content: got %q", got)
	}

	// New files encrypt under the primary; a store with only the new key
	// can read them, one with only the old key cannot
	cf, _ = rotated.Create("/new.txt")
	cf.Write([]byte("fresh"))
	if err := cf.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	newOnly, _ := NewStore(base, &Config{Cipher: CipherAES256GCM, KeyProvider: newProvider})
	cf, err = newOnly.Open("/new.txt")
	if err != nil {
		t.Fatalf("Open with new key failed: %v", err)
	}
	cf.Close()

	oldOnly, _ := NewStore(base, &Config{Cipher: CipherAES256GCM, KeyProvider: oldProvider})
	if _, err := oldOnly.Open("/new.txt"); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("open post-rotation file with old key: got %v, want ErrAuthFailed", err)
	}
}

func TestStore_TruncateByName(t *testing.T) {
	store, _ := newTestStore(t, testKey())

	cf, _ := store.Create("/t.txt")
	cf.Write([]byte("0123456789"))
	cf.Close()

	if err := store.Truncate("/t.txt", 4); err != nil {
		t.Fatalf("Truncate failed: %v", err)
	}

	cf, _ = store.Open("/t.txt")
	got, _ := io.ReadAll(cf)
	cf.Close()
	if string(got) != "0123" {
		t.Fatalf("after truncate: got %q, want %q", got, "0123")
	}
}

func TestStore_CorruptHeaderRejected(t *testing.T) {
	store, base := newTestStore(t, testKey())

	cf, _ := store.Create("/c.txt")
	cf.Write([]byte("data"))
	cf.Close()

	// Flip a magic byte in place
	raw, err := base.OpenFile("/c.txt", os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("raw open failed: %v", err)
	}
	if _, err := raw.WriteAt([]byte{0x00}, 0); err != nil {
		t.Fatalf("raw write failed: %v", err)
	}
	raw.Close()

	if _, err := store.Open("/c.txt"); !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("open with corrupt magic: got %v, want ErrInvalidHeader", err)
	}
}

func TestStore_ReadDirSorted(t *testing.T) {
	store, _ := newTestStore(t, testKey())

	for _, name := range []string{"/c.txt", "/a.txt", "/b.txt"} {
		cf, err := store.Create(name)
		if err != nil {
			t.Fatalf("Create(%q) failed: %v", name, err)
		}
		cf.Close()
	}

	entries, err := store.ReadDir("/")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("ReadDir: got %d entries, want 3", len(entries))
	}
	for i, want := range []string{"a.txt", "b.txt", "c.txt"} {
		if entries[i].Name() != want {
			t.Fatalf("entry %d: got %q, want %q", i, entries[i].Name(), want)
		}
	}
}
