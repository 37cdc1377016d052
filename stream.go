package stdio

import (
	"bytes"
	"io"
	"os"
)

// openMode is the decoded form of a POSIX fopen mode string
type openMode struct {
	read     bool
	write    bool
	appendTo bool
	flag     int // flags used to open the base file
}

// parseMode decodes one of the six supported mode strings. Binary and text
// qualifiers ("rb", "wt", ...) are not supported.
//
// The base file is opened read-write for every writable mode because the
// container is decrypted on open and resealed as a whole on flush; append
// and write-only distinctions are enforced at the stream layer.
func parseMode(mode string) (openMode, error) {
	switch mode {
	case "r":
		return openMode{read: true, flag: os.O_RDONLY}, nil
	case "r+":
		return openMode{read: true, write: true, flag: os.O_RDWR}, nil
	case "w":
		return openMode{write: true, flag: os.O_RDWR | os.O_CREATE | os.O_TRUNC}, nil
	case "w+":
		return openMode{read: true, write: true, flag: os.O_RDWR | os.O_CREATE | os.O_TRUNC}, nil
	case "a":
		return openMode{write: true, appendTo: true, flag: os.O_RDWR | os.O_CREATE}, nil
	case "a+":
		return openMode{read: true, write: true, appendTo: true, flag: os.O_RDWR | os.O_CREATE}, nil
	default:
		return openMode{}, &ValidationError{
			Field:   "mode",
			Value:   mode,
			Message: "mode must be one of r, w, a, r+, w+, a+",
			Err:     ErrBadMode,
		}
	}
}

// stream holds the stdio-level state of one open file handle: indicators,
// push-back stack, and buffering configuration. A stream is not safe for
// concurrent use; callers sharing a handle must synchronize externally.
type stream struct {
	file *cryptFile
	name string
	mode openMode

	eof  bool // end-of-file indicator
	serr bool // error indicator

	// pushback is the stack of un-read bytes; the most recently pushed
	// byte is returned first. Discarded by positioning operations.
	pushback []byte

	bufMode BufferMode
	bufSize int
	pending int  // bytes written to the store buffer since the last flush
	touched bool // true once any I/O has occurred (gates Setvbuf)
}

// pos is the logical stream position: the payload offset minus any
// pushed-back bytes
func (s *stream) pos() int64 {
	return s.file.offset - int64(len(s.pushback))
}

// readBytes fills p from the push-back stack and then the payload.
// Returns the byte count; short counts set the eof or error indicator.
func (s *stream) readBytes(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	if !s.mode.read {
		s.serr = true
		return 0
	}
	s.touched = true

	n := 0
	for n < len(p) && len(s.pushback) > 0 {
		last := len(s.pushback) - 1
		p[n] = s.pushback[last]
		s.pushback = s.pushback[:last]
		n++
	}
	if n == len(p) {
		return n
	}

	m, err := s.file.Read(p[n:])
	n += m
	if err == io.EOF {
		s.eof = true
	} else if err != nil {
		s.serr = true
	}

	return n
}

// writeBytes appends or overwrites payload bytes at the current position
// and applies the stream's buffering policy
func (s *stream) writeBytes(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	if !s.mode.write {
		s.serr = true
		return 0
	}
	s.touched = true

	// Append-mode streams write at end-of-file regardless of position
	if s.mode.appendTo {
		if _, err := s.file.Seek(0, io.SeekEnd); err != nil {
			s.serr = true
			return 0
		}
	}

	n, err := s.file.Write(p)
	if err != nil {
		s.serr = true
		return n
	}

	switch s.bufMode {
	case BufferNone:
		s.flushStore()
	case BufferLine:
		if bytes.IndexByte(p[:n], '\n') >= 0 {
			s.flushStore()
		}
	case BufferFull:
		s.pending += n
		if s.bufSize > 0 && s.pending >= s.bufSize {
			s.flushStore()
		}
	}

	return n
}

// flushStore reseals the payload into the backing store
func (s *stream) flushStore() error {
	if !s.mode.write {
		return nil
	}
	if err := s.file.flush(); err != nil {
		s.serr = true
		return err
	}
	s.pending = 0
	return nil
}

// seekTo repositions the stream, discards push-back, and clears both
// indicators per the positioning contract
func (s *stream) seekTo(offset int64, whence int) error {
	switch whence {
	case io.SeekStart, io.SeekCurrent, io.SeekEnd:
	default:
		return ErrBadWhence
	}

	// SeekCurrent is relative to the logical position, which trails the
	// payload offset by the push-back depth
	if whence == io.SeekCurrent {
		offset -= int64(len(s.pushback))
	}

	if _, err := s.file.Seek(offset, whence); err != nil {
		s.serr = true
		return err
	}

	s.touched = true
	s.pushback = nil
	s.eof = false
	s.serr = false
	return nil
}

// getc reads a single byte, returning it or EOF
func (s *stream) getc() int {
	var b [1]byte
	if s.readBytes(b[:]) != 1 {
		return EOF
	}
	return int(b[0])
}

// putc writes a single byte, returning it or EOF
func (s *stream) putc(c byte) int {
	var b = [1]byte{c}
	if s.writeBytes(b[:]) != 1 {
		return EOF
	}
	return int(c)
}

// ungetc pushes one byte back onto the stream and clears the end-of-file
// indicator. The byte is returned by subsequent reads ahead of the payload.
func (s *stream) ungetc(c byte) int {
	if !s.mode.read {
		return EOF
	}
	s.pushback = append(s.pushback, c)
	s.eof = false
	return int(c)
}

// gets reads up to max-1 bytes or through the first newline (inclusive).
// Returns nil if no byte could be read before end-of-file or error.
func (s *stream) gets(max int) []byte {
	if max <= 0 {
		return nil
	}

	out := make([]byte, 0, max-1)
	for len(out) < max-1 {
		c := s.getc()
		if c == EOF {
			if len(out) == 0 {
				return nil
			}
			break
		}
		out = append(out, byte(c))
		if c == '\n' {
			break
		}
	}

	return out
}
