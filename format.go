package stdio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// MagicBytes identifies encrypted stream files (ASCII: "ESIO")
	MagicBytes = uint32(0x4553494F)

	// CurrentVersion is the current container format version
	CurrentVersion = uint8(1)

	// MinHeaderSize is the fixed size of the container header without
	// salt and nonce:
	// 4 bytes (magic) + 1 byte (version) + 1 byte (cipher) + 2 bytes (salt size)
	MinHeaderSize = 8
)

// FileHeader is the header of an encrypted container file. Every file the
// Store writes starts with one, followed by a single AEAD-sealed payload.
type FileHeader struct {
	Magic     uint32      // Magic bytes to identify encrypted files
	Version   uint8       // Container format version
	Cipher    CipherSuite // Cipher suite used for encryption
	SaltSize  uint16      // Size of the salt in bytes
	Salt      []byte      // Salt for key derivation
	NonceSize uint16      // Size of the nonce in bytes
	Nonce     []byte      // Nonce/IV for encryption
}

// NewFileHeader creates a new container header with the given parameters
func NewFileHeader(suite CipherSuite, salt, nonce []byte) *FileHeader {
	return &FileHeader{
		Magic:     MagicBytes,
		Version:   CurrentVersion,
		Cipher:    suite,
		SaltSize:  uint16(len(salt)),
		Salt:      salt,
		NonceSize: uint16(len(nonce)),
		Nonce:     nonce,
	}
}

// Size returns the total size of the header in bytes
func (h *FileHeader) Size() int {
	return MinHeaderSize + len(h.Salt) + 2 + len(h.Nonce)
}

// WriteTo writes the header to the given writer
func (h *FileHeader) WriteTo(w io.Writer) (int64, error) {
	buf := new(bytes.Buffer)

	if err := binary.Write(buf, binary.LittleEndian, h.Magic); err != nil {
		return 0, fmt.Errorf("failed to write magic bytes: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, h.Version); err != nil {
		return 0, fmt.Errorf("failed to write version: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, h.Cipher); err != nil {
		return 0, fmt.Errorf("failed to write cipher: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, h.SaltSize); err != nil {
		return 0, fmt.Errorf("failed to write salt size: %w", err)
	}
	if _, err := buf.Write(h.Salt); err != nil {
		return 0, fmt.Errorf("failed to write salt: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, h.NonceSize); err != nil {
		return 0, fmt.Errorf("failed to write nonce size: %w", err)
	}
	if _, err := buf.Write(h.Nonce); err != nil {
		return 0, fmt.Errorf("failed to write nonce: %w", err)
	}

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// ReadFrom reads the header from the given reader
func (h *FileHeader) ReadFrom(r io.Reader) (int64, error) {
	var totalRead int64

	if err := binary.Read(r, binary.LittleEndian, &h.Magic); err != nil {
		return totalRead, fmt.Errorf("failed to read magic bytes: %w", err)
	}
	totalRead += 4

	if h.Magic != MagicBytes {
		return totalRead, ErrInvalidHeader
	}

	if err := binary.Read(r, binary.LittleEndian, &h.Version); err != nil {
		return totalRead, fmt.Errorf("failed to read version: %w", err)
	}
	totalRead += 1

	if h.Version > CurrentVersion {
		return totalRead, ErrUnsupportedVersion
	}

	if err := binary.Read(r, binary.LittleEndian, &h.Cipher); err != nil {
		return totalRead, fmt.Errorf("failed to read cipher: %w", err)
	}
	totalRead += 1

	if err := binary.Read(r, binary.LittleEndian, &h.SaltSize); err != nil {
		return totalRead, fmt.Errorf("failed to read salt size: %w", err)
	}
	totalRead += 2

	h.Salt = make([]byte, h.SaltSize)
	n, err := io.ReadFull(r, h.Salt)
	totalRead += int64(n)
	if err != nil {
		return totalRead, fmt.Errorf("failed to read salt: %w", err)
	}

	if err := binary.Read(r, binary.LittleEndian, &h.NonceSize); err != nil {
		return totalRead, fmt.Errorf("failed to read nonce size: %w", err)
	}
	totalRead += 2

	h.Nonce = make([]byte, h.NonceSize)
	n, err = io.ReadFull(r, h.Nonce)
	totalRead += int64(n)
	if err != nil {
		return totalRead, fmt.Errorf("failed to read nonce: %w", err)
	}

	return totalRead, nil
}

// Validate checks if the header is valid
func (h *FileHeader) Validate() error {
	if h.Magic != MagicBytes {
		return ErrInvalidHeader
	}
	if h.Version > CurrentVersion {
		return ErrUnsupportedVersion
	}
	if h.Cipher != CipherAES256GCM && h.Cipher != CipherChaCha20Poly1305 {
		return ErrUnsupportedCipher
	}
	if len(h.Salt) == 0 {
		return fmt.Errorf("salt cannot be empty")
	}
	if len(h.Nonce) == 0 {
		return fmt.Errorf("nonce cannot be empty")
	}
	return nil
}
