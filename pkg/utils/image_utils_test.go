package utils

import (
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		in, expected string
	}{
		{"cat.jpg", "cat.jpg"},
		{"My cool movie.mov", "My_cool_movie.mov"},
		{"../../../etc/passwd", "passwd"},
		{`C:\Users\me\photo.PNG`, "photo.PNG"},
		{"i contain cool \u00fcml\u00e4uts.txt", "i_contain_cool_umlauts.txt"},
		{"caf\u00e9.jpg", "cafe.jpg"},
		{"\u0141\u00f3d\u017a photo.png", "odz_photo.png"},
		{"\uff46\uff4f\uff4f.png", "foo.png"},
		{"..", ""},
		{".hidden.png", "hidden.png"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if actual := SecureFilename(tt.in); actual != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, actual)
			}
		})
	}
}

func TestUniqueName(t *testing.T) {
	a := UniqueName("cat.jpg")
	b := UniqueName("cat.jpg")

	if a == b {
		t.Errorf("Expected distinct names, both were %q", a)
	}
	for _, n := range []string{a, b} {
		if !strings.HasSuffix(n, "_cat.jpg") {
			t.Errorf("Expected %q to keep the original name", n)
		}
		if expected, actual := 36+len("_cat.jpg"), len(n); expected != actual {
			t.Errorf("Expected length %d, got %d (%q)", expected, actual, n)
		}
	}
}

func TestIsAllowedExtension(t *testing.T) {
	allowed := []string{"png", "jpg", "jpeg", "gif"}
	tests := []struct {
		name     string
		expected bool
	}{
		{"photo.PNG", true},
		{"photo.png", true},
		{"holiday.JpEg", true},
		{"anim.gif", true},
		{"document.pdf", false},
		{"png", false},
		{"archive.png.zip", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if actual := IsAllowedExtension(tt.name, allowed); actual != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, actual)
			}
		})
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		filename, declared, expected string
	}{
		{"a.png", "image/png", "image/png"},
		{"a.jpg", "", "image/jpeg"},
		{"a.JPEG", "application/octet-stream", "image/jpeg"},
		{"a.gif", "", "image/gif"},
		{"a.unknownext", "", "application/octet-stream"},
	}

	for _, tt := range tests {
		if actual := ContentType(tt.filename, tt.declared); actual != tt.expected {
			t.Errorf("ContentType(%q, %q): expected %q, got %q", tt.filename, tt.declared, tt.expected, actual)
		}
	}
}

func TestProgressReader(t *testing.T) {
	var seen []int64
	r := NewProgressReader(strings.NewReader(strings.Repeat("x", 10)), func(written int64) {
		seen = append(seen, written)
	})

	buf := make([]byte, 4)
	var total int
	for {
		n, err := r.Read(buf)
		total += n
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
	}

	if expected := 10; total != expected {
		t.Errorf("Expected %d bytes, got %d", expected, total)
	}
	if expected, actual := []int64{4, 8, 10}, seen; !reflect.DeepEqual(expected, actual) {
		t.Errorf("Expected progress %v, got %v", expected, actual)
	}
}

func TestProgressReaderSeek(t *testing.T) {
	var seen []int64
	r := NewProgressReader(strings.NewReader("0123456789"), func(written int64) {
		seen = append(seen, written)
	})

	rs, ok := r.(io.ReadSeeker)
	if !ok {
		t.Fatal("Expected a seekable reader for a seekable source")
	}
	if _, err := io.Copy(io.Discard, rs); err != nil {
		t.Fatal(err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(rs)
	if err != nil {
		t.Fatal(err)
	}

	if expected, actual := "0123456789", string(data); expected != actual {
		t.Errorf("Expected %q after rewinding, got %q", expected, actual)
	}
	if expected, actual := []int64{10, 0, 10}, seen; !reflect.DeepEqual(expected, actual) {
		t.Errorf("Expected progress %v, got %v", expected, actual)
	}
}

func TestProgressReaderNotSeekable(t *testing.T) {
	r := NewProgressReader(io.MultiReader(strings.NewReader("abc")), func(int64) {})
	if _, ok := r.(io.Seeker); ok {
		t.Error("Expected a plain reader for a source that cannot seek")
	}
}

func TestProgressReaderNilObserver(t *testing.T) {
	src := strings.NewReader("abc")
	if r := NewProgressReader(src, nil); r != io.Reader(src) {
		t.Error("Expected the reader to be returned unchanged")
	}
}

func TestConsoleProgress(t *testing.T) {
	observer, finish := ConsoleProgress(10, "cat.jpg")
	r := NewProgressReader(strings.NewReader("0123456789"), observer)
	if _, err := io.Copy(io.Discard, r); err != nil {
		t.Fatal(err)
	}
	finish()
}
