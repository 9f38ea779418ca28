package utils

import (
	"io"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename reduces name to a flat ASCII filename safe to use as an
// object key. Accents are folded to their base letters, directory parts are
// dropped and whitespace becomes "_". Anything else outside [A-Za-z0-9_.-]
// is removed.
func SecureFilename(name string) string {
	if folded, _, err := transform.String(foldAccents(), name); err == nil {
		name = folded
	}
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base("/" + name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// foldAccents decomposes to NFKD and drops the combining marks. Transformers
// carry state, so each call gets a fresh chain.
func foldAccents() transform.Transformer {
	return transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
}

// UniqueName prefixes the sanitized filename with a random UUID so uploads
// with the same name never overwrite each other.
func UniqueName(filename string) string {
	safe := SecureFilename(filename)
	if safe == "" {
		return uuid.NewString()
	}
	return uuid.NewString() + "_" + safe
}

func Extension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// IsAllowedExtension reports whether filename has one of the allowed
// extensions. Allowed entries are expected lower-case, without a dot.
func IsAllowedExtension(filename string, allowed []string) bool {
	ext := Extension(filename)
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if a == ext {
			return true
		}
	}
	return false
}

// ContentType picks the content type for an upload: the declared type if it
// is an image type, otherwise the type registered for the extension.
func ContentType(filename, declared string) string {
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	switch Extension(filename) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	}
	if t := mime.TypeByExtension(filepath.Ext(filename)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// ProgressFunc observes an upload; written is the running byte count.
type ProgressFunc func(written int64)

type progressReader struct {
	r        io.Reader
	written  int64
	progress ProgressFunc
}

// NewProgressReader wraps r so every read is reported to progress. A nil
// progress returns r unchanged. If r is an io.ReadSeeker so is the result,
// and seeking moves the reported position with it.
func NewProgressReader(r io.Reader, progress ProgressFunc) io.Reader {
	if progress == nil {
		return r
	}
	pr := &progressReader{r: r, progress: progress}
	if s, ok := r.(io.ReadSeeker); ok {
		return &progressReadSeeker{progressReader: pr, s: s}
	}
	return pr
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.written += int64(n)
		p.progress(p.written)
	}
	return n, err
}

type progressReadSeeker struct {
	*progressReader
	s io.Seeker
}

func (p *progressReadSeeker) Seek(offset int64, whence int) (int64, error) {
	pos, err := p.s.Seek(offset, whence)
	if err != nil {
		return pos, err
	}
	p.written = pos
	p.progress(pos)
	return pos, nil
}

// ConsoleProgress returns an observer that draws a byte progress bar on
// stderr, plus a func to finish it once the upload is done.
func ConsoleProgress(total int64, description string) (ProgressFunc, func()) {
	bar := progressbar.DefaultBytes(total, description)
	observer := func(written int64) {
		_ = bar.Set64(written)
	}
	return observer, func() { _ = bar.Finish() }
}
