package stdio

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// Formatted I/O binds fmt's verbs onto streams. The adapters below expose a
// stream as io.Writer and io.RuneScanner so fmt's scanner pushes any
// over-read bytes back onto the stream instead of losing them.

// errReadFailed marks a read that failed for a reason other than
// end-of-file, so Scanf can set the right indicator
var errReadFailed = errors.New("stream read failed")

// streamWriter adapts a stream to io.Writer
type streamWriter struct {
	s *stream
}

func (w *streamWriter) Write(p []byte) (int, error) {
	n := w.s.writeBytes(p)
	if n < len(p) {
		return n, ErrNotWritable
	}
	return n, nil
}

// streamReader adapts a stream to io.Reader and io.RuneScanner
type streamReader struct {
	s        *stream
	lastSize int
	last     [utf8.UTFMax]byte
}

func (r *streamReader) Read(p []byte) (int, error) {
	n := r.s.readBytes(p)
	if n == 0 && len(p) > 0 {
		if r.s.serr {
			return 0, errReadFailed
		}
		return 0, io.EOF
	}
	return n, nil
}

// ReadRune decodes one UTF-8 rune from the stream. Surplus bytes of an
// invalid sequence are pushed back.
func (r *streamReader) ReadRune() (rune, int, error) {
	c := r.s.getc()
	if c == EOF {
		if r.s.serr {
			return 0, 0, errReadFailed
		}
		return 0, 0, io.EOF
	}

	b := byte(c)
	if b < utf8.RuneSelf {
		r.last[0] = b
		r.lastSize = 1
		return rune(b), 1, nil
	}

	buf := make([]byte, 1, utf8.UTFMax)
	buf[0] = b
	for !utf8.FullRune(buf) && len(buf) < utf8.UTFMax {
		c := r.s.getc()
		if c == EOF {
			break
		}
		buf = append(buf, byte(c))
	}

	ru, size := utf8.DecodeRune(buf)
	for i := len(buf) - 1; i >= size; i-- {
		r.s.ungetc(buf[i])
	}

	copy(r.last[:], buf[:size])
	r.lastSize = size
	return ru, size, nil
}

// UnreadRune pushes the bytes of the last-read rune back onto the stream
func (r *streamReader) UnreadRune() error {
	if r.lastSize == 0 {
		return fmt.Errorf("no rune to unread")
	}
	for i := r.lastSize - 1; i >= 0; i-- {
		r.s.ungetc(r.last[i])
	}
	r.lastSize = 0
	return nil
}

// Printf writes formatted output to the stream. Returns the number of
// bytes written, or EOF with the error indicator set on failure.
func (fs *FS) Printf(h FileHandle, format string, args ...any) int {
	s, ok := fs.file(h)
	if !ok {
		return EOF
	}

	n, err := fmt.Fprintf(&streamWriter{s: s}, format, args...)
	if err != nil {
		s.serr = true
		return EOF
	}
	return n
}

// Scanf parses formatted input from the stream and returns the number of
// items successfully converted. Input failure before the first conversion
// returns EOF with the end-of-file or error indicator set; a matching
// failure returns the count converted so far.
func (fs *FS) Scanf(h FileHandle, format string, args ...any) int {
	s, ok := fs.file(h)
	if !ok {
		return EOF
	}

	n, err := fmt.Fscanf(&streamReader{s: s}, format, args...)
	if n == 0 && err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			s.eof = true
			return EOF
		}
		if errors.Is(err, errReadFailed) {
			return EOF
		}
	}
	return n
}
