// Package stdio provides a C-stdio-style stream and directory facade with
// transparent encryption, backed by any AbsFs-compatible filesystem.
//
// # Overview
//
// stdio exposes the familiar fopen/fread/fseek/opendir operation set as
// methods on an FS value. Callers hold opaque FileHandle and DirHandle
// values; all stream state (position, end-of-file and error indicators,
// pushed-back bytes, buffering) lives behind the handle table. File
// contents are encrypted at rest by the backing Store; paths and directory
// structure pass through unchanged.
//
// # Failure reporting
//
// Operations never panic. Open-style calls return errors; byte-level and
// formatted operations return the EOF sentinel or a short count, and the
// caller disambiguates end-of-file from failure with Feof and Ferror.
// Indicators persist until Clearerr or a positioning call (Rewind, Seek,
// Setpos, Reopen). Zero-length transfers are benign no-ops.
//
// # Basic Usage
//
//	base, _ := memfs.NewFS()
//
//	fs, err := stdio.New(base, &stdio.Config{
//	    Cipher: stdio.CipherAES256GCM,
//	    KeyProvider: stdio.NewPasswordKeyProvider(
//	        []byte("my-secure-password"),
//	        stdio.Argon2idParams{},
//	    ),
//	})
//	if err != nil {
//	    panic(err)
//	}
//
//	h, _ := fs.Open("/notes.txt", "w")
//	fs.Puts(h, "encrypted on disk\n")
//	fs.Close(h)
//
// # Concurrency
//
// The handle tables are safe for concurrent use. A single handle is meant
// for one goroutine at a time; the facade does not serialize access to it.
// Write ordering across independent handles on the same path is defined by
// the backing store.
//
// # Backing stores
//
// Any absfs.FileSystem can serve as the backing store. BillyFS adapts
// go-billy filesystems (osfs, memfs, chroot) to the same interface.
//
// # Encryption
//
// Each file is a small container: magic bytes, format version, cipher
// suite, salt, nonce, then a single AEAD-sealed payload (AES-256-GCM or
// ChaCha20-Poly1305). Keys come from a pluggable KeyProvider; password
// providers derive them with Argon2id (recommended) or PBKDF2, and
// MultiKeyProvider supports key rotation by trying providers in order on
// decryption. The cipher boundary is deliberately pluggable: nothing in
// the facade depends on a particular scheme.
package stdio
