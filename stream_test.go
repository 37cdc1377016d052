package stdio

import (
	"bytes"
	"testing"
)

func TestStream_GetcPutc(t *testing.T) {
	fs := newTestFS(t)

	h, _ := fs.Open("/c.txt", "w")
	for _, c := range []byte("hi") {
		if r := fs.Putc(h, c); r != int(c) {
			t.Fatalf("Putc(%c): got %d, want %d", c, r, c)
		}
	}
	fs.Close(h)

	h, _ = fs.Open("/c.txt", "r")
	defer fs.Close(h)

	if c := fs.Getc(h); c != 'h' {
		t.Fatalf("Getc: got %d, want 'h'", c)
	}
	if c := fs.Getc(h); c != 'i' {
		t.Fatalf("Getc: got %d, want 'i'", c)
	}
	if c := fs.Getc(h); c != EOF {
		t.Fatalf("Getc at end: got %d, want EOF", c)
	}
	if !fs.Feof(h) {
		t.Fatal("eof indicator not set by Getc at end")
	}
}

func TestStream_UngetcOrdering(t *testing.T) {
	fs := newTestFS(t)

	h, _ := fs.Open("/u.txt", "w")
	fs.Puts(h, "cd")
	fs.Close(h)

	h, _ = fs.Open("/u.txt", "r")
	defer fs.Close(h)

	// Pushed-back bytes come out in reverse order of pushing
	fs.Ungetc(h, 'b')
	fs.Ungetc(h, 'a')

	buf := make([]byte, 4)
	if n := fs.Read(h, buf, 1, 4); n != 4 {
		t.Fatalf("Read: got %d, want 4", n)
	}
	if !bytes.Equal(buf, []byte("abcd")) {
		t.Fatalf("Read with pushback: got %q, want %q", buf, "abcd")
	}
}

func TestStream_UngetcClearsEOF(t *testing.T) {
	fs := newTestFS(t)

	h, _ := fs.Open("/ue.txt", "w")
	fs.Puts(h, "x")
	fs.Close(h)

	h, _ = fs.Open("/ue.txt", "r")
	defer fs.Close(h)

	fs.Getc(h)
	fs.Getc(h) // past end
	if !fs.Feof(h) {
		t.Fatal("expected eof indicator")
	}

	fs.Ungetc(h, 'y')
	if fs.Feof(h) {
		t.Fatal("Ungetc did not clear the eof indicator")
	}
	if c := fs.Getc(h); c != 'y' {
		t.Fatalf("Getc: got %d, want 'y'", c)
	}
}

func TestStream_SeekDiscardsPushback(t *testing.T) {
	fs := newTestFS(t)

	h, _ := fs.Open("/sd.txt", "w")
	fs.Puts(h, "abc")
	fs.Close(h)

	h, _ = fs.Open("/sd.txt", "r")
	defer fs.Close(h)

	fs.Getc(h)
	fs.Ungetc(h, 'q')
	if pos := fs.Tell(h); pos != 0 {
		t.Fatalf("Tell with pushback: got %d, want 0", pos)
	}

	fs.Seek(h, 1, 0)
	if c := fs.Getc(h); c != 'b' {
		t.Fatalf("Getc after seek: got %c, want b (pushback not discarded)", c)
	}
}

func TestStream_Gets(t *testing.T) {
	fs := newTestFS(t)

	h, _ := fs.Open("/lines.txt", "w")
	fs.Puts(h, "first line\nsecond\nnonl")
	fs.Close(h)

	h, _ = fs.Open("/lines.txt", "r")
	defer fs.Close(h)

	if line := fs.Gets(h, 64); string(line) != "first line\n" {
		t.Fatalf("Gets: got %q, want %q", line, "first line\n")
	}

	// A short maximum stops before the newline
	if line := fs.Gets(h, 4); string(line) != "sec" {
		t.Fatalf("Gets with max=4: got %q, want %q", line, "sec")
	}
	if line := fs.Gets(h, 64); string(line) != "ond\n" {
		t.Fatalf("Gets continuation: got %q, want %q", line, "ond\n")
	}

	// Last line has no trailing newline
	if line := fs.Gets(h, 64); string(line) != "nonl" {
		t.Fatalf("Gets final: got %q, want %q", line, "nonl")
	}

	// Nothing left: nil result
	if line := fs.Gets(h, 64); line != nil {
		t.Fatalf("Gets at end: got %q, want nil", line)
	}
	if !fs.Feof(h) {
		t.Fatal("eof indicator not set by Gets at end")
	}
}

func TestStream_PutsReturnsCount(t *testing.T) {
	fs := newTestFS(t)

	h, _ := fs.Open("/p.txt", "w")
	defer fs.Close(h)

	if n := fs.Puts(h, "hello"); n != 5 {
		t.Fatalf("Puts: got %d, want 5", n)
	}
}

func TestStream_PutsOnReadOnlyFails(t *testing.T) {
	fs := newTestFS(t)

	h, _ := fs.Open("/pr.txt", "w")
	fs.Puts(h, "x")
	fs.Close(h)

	h, _ = fs.Open("/pr.txt", "r")
	defer fs.Close(h)

	if n := fs.Puts(h, "y"); n != EOF {
		t.Fatalf("Puts on read-only stream: got %d, want EOF", n)
	}
	if !fs.Ferror(h) {
		t.Fatal("error indicator not set")
	}
}

func TestStream_SetvbufAfterIO(t *testing.T) {
	fs := newTestFS(t)

	h, _ := fs.Open("/vb.txt", "w")
	defer fs.Close(h)

	fs.Puts(h, "x")

	if err := fs.Setvbuf(h, nil, BufferNone, 0); err != ErrBufferedIO {
		t.Fatalf("Setvbuf after I/O: got %v, want ErrBufferedIO", err)
	}
}

func TestStream_LineBufferingFlushesOnNewline(t *testing.T) {
	fs := newTestFS(t)

	h, _ := fs.Open("/lb.txt", "w")
	if err := fs.Setvbuf(h, nil, BufferLine, 0); err != nil {
		t.Fatalf("Setvbuf failed: %v", err)
	}

	fs.Puts(h, "partial")

	// No newline yet: a fresh reader sees an empty file
	rh, err := fs.Open("/lb.txt", "r")
	if err != nil {
		t.Fatalf("Open(r) failed: %v", err)
	}
	if c := fs.Getc(rh); c != EOF {
		t.Fatalf("reader before newline: got %d, want EOF", c)
	}
	fs.Close(rh)

	fs.Puts(h, " line\n")

	rh, _ = fs.Open("/lb.txt", "r")
	line := fs.Gets(rh, 64)
	fs.Close(rh)
	if string(line) != "partial line\n" {
		t.Fatalf("reader after newline: got %q, want %q", line, "partial line\n")
	}

	fs.Close(h)
}

func TestStream_UnbufferedFlushesEveryWrite(t *testing.T) {
	fs := newTestFS(t)

	h, _ := fs.Open("/ub.txt", "w")
	if err := fs.Setvbuf(h, nil, BufferNone, 0); err != nil {
		t.Fatalf("Setvbuf failed: %v", err)
	}

	fs.Putc(h, 'q')

	rh, _ := fs.Open("/ub.txt", "r")
	if c := fs.Getc(rh); c != 'q' {
		t.Fatalf("unbuffered write not visible: got %d, want 'q'", c)
	}
	fs.Close(rh)
	fs.Close(h)
}

func TestStream_FullBufferingThreshold(t *testing.T) {
	fs := newTestFS(t)

	h, _ := fs.Open("/fb.txt", "w")
	if err := fs.Setvbuf(h, nil, BufferFull, 4); err != nil {
		t.Fatalf("Setvbuf failed: %v", err)
	}

	fs.Puts(h, "ab")

	rh, _ := fs.Open("/fb.txt", "r")
	if c := fs.Getc(rh); c != EOF {
		t.Fatalf("below threshold: expected EOF, got %d", c)
	}
	fs.Close(rh)

	fs.Puts(h, "cd") // crosses the 4-byte threshold

	rh, _ = fs.Open("/fb.txt", "r")
	buf := make([]byte, 4)
	if n := fs.Read(rh, buf, 1, 4); n != 4 || !bytes.Equal(buf, []byte("abcd")) {
		t.Fatalf("after threshold: got %q (%d bytes)", buf[:n], n)
	}
	fs.Close(rh)
	fs.Close(h)
}

func TestStream_FlushMakesDataVisible(t *testing.T) {
	fs := newTestFS(t)

	h, _ := fs.Open("/fl.txt", "w")
	fs.Puts(h, "pending")

	if err := fs.Flush(h); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	rh, _ := fs.Open("/fl.txt", "r")
	line := fs.Gets(rh, 64)
	fs.Close(rh)
	if string(line) != "pending" {
		t.Fatalf("after flush: got %q, want %q", line, "pending")
	}
	fs.Close(h)
}
