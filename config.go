package stdio

import "errors"

// CipherSuite represents the encryption algorithm used by the backing store
type CipherSuite uint8

const (
	// CipherAuto automatically selects the best cipher based on hardware capabilities
	CipherAuto CipherSuite = iota
	// CipherAES256GCM uses AES-256 with Galois/Counter Mode
	CipherAES256GCM
	// CipherChaCha20Poly1305 uses ChaCha20 stream cipher with Poly1305 MAC
	CipherChaCha20Poly1305
)

// String returns the string representation of the cipher suite
func (c CipherSuite) String() string {
	switch c {
	case CipherAuto:
		return "auto"
	case CipherAES256GCM:
		return "aes-256-gcm"
	case CipherChaCha20Poly1305:
		return "chacha20-poly1305"
	default:
		return "unknown"
	}
}

// BufferMode selects the buffering behavior of a stream
type BufferMode uint8

const (
	// BufferFull flushes to the backing store only when the buffer fills,
	// the stream is flushed explicitly, or the stream is closed
	BufferFull BufferMode = iota
	// BufferLine additionally flushes whenever a newline is written
	BufferLine
	// BufferNone flushes after every write
	BufferNone
)

// String returns the string representation of the buffer mode
func (m BufferMode) String() string {
	switch m {
	case BufferFull:
		return "full"
	case BufferLine:
		return "line"
	case BufferNone:
		return "none"
	default:
		return "unknown"
	}
}

// EOF is the sentinel returned by byte-level and formatted operations when
// no result could be produced. Callers distinguish end-of-file from failure
// by inspecting the stream indicators (Feof, Ferror).
const EOF = -1

// HashFunc represents hash function types for PBKDF2
type HashFunc uint8

const (
	// SHA256 hash function
	SHA256 HashFunc = iota
	// SHA512 hash function
	SHA512
)

// PBKDF2Params contains parameters for PBKDF2 key derivation
type PBKDF2Params struct {
	Iterations int      // Number of iterations (minimum 100,000 recommended)
	HashFunc   HashFunc // Hash function to use
	SaltSize   int      // Salt size in bytes (default 32)
	KeySize    int      // Derived key size in bytes (default 32 for AES-256)
}

// Argon2idParams contains parameters for Argon2id key derivation
type Argon2idParams struct {
	Memory      uint32 // Memory in KiB (e.g., 64*1024 for 64MB)
	Iterations  uint32 // Number of iterations (time parameter)
	Parallelism uint8  // Degree of parallelism
	SaltSize    int    // Salt size in bytes (default 32)
	KeySize     int    // Derived key size in bytes (default 32 for AES-256)
}

// Config contains configuration for the encrypted backing store
type Config struct {
	// Cipher suite to use for encryption
	Cipher CipherSuite

	// KeyProvider supplies encryption keys
	KeyProvider KeyProvider

	// DefaultBuffering is the buffering mode applied to newly opened
	// streams. Individual streams can override it with Setvbuf before
	// their first I/O operation.
	DefaultBuffering BufferMode

	// DefaultBufferSize is the flush threshold for fully buffered streams.
	// Zero means no size-based flushing; data is held until an explicit
	// flush or close.
	DefaultBufferSize int
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.KeyProvider == nil {
		return ErrNilKeyProvider
	}
	if c.Cipher != CipherAES256GCM && c.Cipher != CipherChaCha20Poly1305 && c.Cipher != CipherAuto {
		return errors.New("unsupported cipher suite")
	}
	if c.DefaultBuffering > BufferNone {
		return errors.New("unsupported buffering mode")
	}
	if c.DefaultBufferSize < 0 {
		return errors.New("buffer size cannot be negative")
	}
	return nil
}

// KeyProvider is an interface for providing encryption keys
type KeyProvider interface {
	// DeriveKey derives an encryption key from the given salt
	DeriveKey(salt []byte) ([]byte, error)

	// GenerateSalt generates a new random salt
	GenerateSalt() ([]byte, error)
}
