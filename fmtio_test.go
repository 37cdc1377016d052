package stdio

import (
	"testing"
)

func TestPrintf_RoundTrip(t *testing.T) {
	fs := newTestFS(t)

	h, _ := fs.Open("/report.txt", "w")
	if n := fs.Printf(h, "count=%d name=%s\n", 42, "alpha"); n != len("count=42 name=alpha\n") {
		t.Fatalf("Printf: got %d, want %d", n, len("count=42 name=alpha\n"))
	}
	fs.Close(h)

	h, _ = fs.Open("/report.txt", "r")
	defer fs.Close(h)

	line := fs.Gets(h, 64)
	if string(line) != "count=42 name=alpha\n" {
		t.Fatalf("Gets: got %q", line)
	}
}

func TestPrintf_ReadOnlyFails(t *testing.T) {
	fs := newTestFS(t)

	h, _ := fs.Open("/ro.txt", "w")
	fs.Puts(h, "x")
	fs.Close(h)

	h, _ = fs.Open("/ro.txt", "r")
	defer fs.Close(h)

	if n := fs.Printf(h, "nope %d", 1); n != EOF {
		t.Fatalf("Printf on read-only stream: got %d, want EOF", n)
	}
	if !fs.Ferror(h) {
		t.Fatal("error indicator not set")
	}
}

func TestScanf_RoundTrip(t *testing.T) {
	fs := newTestFS(t)

	h, _ := fs.Open("/vals.txt", "w")
	fs.Puts(h, "10 twenty 3.5")
	fs.Close(h)

	h, _ = fs.Open("/vals.txt", "r")
	defer fs.Close(h)

	var (
		i int
		s string
		f float64
	)
	if n := fs.Scanf(h, "%d %s %g", &i, &s, &f); n != 3 {
		t.Fatalf("Scanf: converted %d items, want 3", n)
	}
	if i != 10 || s != "twenty" || f != 3.5 {
		t.Fatalf("Scanf values: got %d %q %v", i, s, f)
	}
}

func TestScanf_LookaheadReturnsToStream(t *testing.T) {
	fs := newTestFS(t)

	h, _ := fs.Open("/la.txt", "w")
	fs.Puts(h, "42abc")
	fs.Close(h)

	h, _ = fs.Open("/la.txt", "r")
	defer fs.Close(h)

	var i int
	if n := fs.Scanf(h, "%d", &i); n != 1 || i != 42 {
		t.Fatalf("Scanf: got n=%d i=%d", n, i)
	}

	// The byte that terminated the number is still on the stream
	if c := fs.Getc(h); c != 'a' {
		t.Fatalf("Getc after Scanf: got %d, want 'a'", c)
	}
}

func TestScanf_AtEndOfFile(t *testing.T) {
	fs := newTestFS(t)

	h, _ := fs.Open("/empty.txt", "w")
	fs.Close(h)

	h, _ = fs.Open("/empty.txt", "r")
	defer fs.Close(h)

	var i int
	if n := fs.Scanf(h, "%d", &i); n != EOF {
		t.Fatalf("Scanf on empty stream: got %d, want EOF", n)
	}
	if !fs.Feof(h) {
		t.Fatal("eof indicator not set")
	}
}

func TestScanf_PartialMatch(t *testing.T) {
	fs := newTestFS(t)

	h, _ := fs.Open("/pm.txt", "w")
	fs.Puts(h, "7 seven")
	fs.Close(h)

	h, _ = fs.Open("/pm.txt", "r")
	defer fs.Close(h)

	var a, b int
	n := fs.Scanf(h, "%d %d", &a, &b)
	if n != 1 {
		t.Fatalf("Scanf with mismatched second item: got %d, want 1", n)
	}
	if a != 7 {
		t.Fatalf("first item: got %d, want 7", a)
	}
}

func TestScanf_BadHandle(t *testing.T) {
	fs := newTestFS(t)

	var i int
	if n := fs.Scanf(FileHandle(99), "%d", &i); n != EOF {
		t.Fatalf("Scanf on bad handle: got %d, want EOF", n)
	}
	if n := fs.Printf(FileHandle(99), "%d", 1); n != EOF {
		t.Fatalf("Printf on bad handle: got %d, want EOF", n)
	}
}
