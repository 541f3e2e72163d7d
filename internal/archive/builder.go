package archive

import (
	"bytes"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	derrors "git.home.luguber.info/inful/botpack/internal/foundation/errors"
)

// FixedModTime stamps entries the builder creates itself so identical
// inputs always produce identical bytes.
var FixedModTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

const defaultFileMode fs.FileMode = 0o644

// Builder accumulates entries into a new zip archive held in memory. A
// Builder belongs to one assembly and is not safe for concurrent use.
type Builder struct {
	buf   *bytes.Buffer
	zw    *zip.Writer
	names map[string]struct{}
	done  bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	buf := new(bytes.Buffer)
	return &Builder{
		buf:   buf,
		zw:    zip.NewWriter(buf),
		names: make(map[string]struct{}),
	}
}

// Len returns the number of entries written so far.
func (b *Builder) Len() int { return len(b.names) }

// Has reports whether an entry with name was already written.
func (b *Builder) Has(name string) bool {
	_, ok := b.names[name]
	return ok
}

// Put appends a regular file entry with deflate compression, mode 0644, and
// the fixed modification time. It returns the number of bytes copied from r.
func (b *Builder) Put(name string, r io.Reader) (int64, error) {
	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: FixedModTime,
	}
	hdr.SetMode(defaultFileMode)
	return b.PutHeader(hdr, r)
}

// PutHeader appends an entry described by hdr. Directory entries (names
// ending in "/") carry no content and r may be nil. Errors already
// classified by r (size limits, cancellation) are returned unchanged; any
// other copy failure is an io failure.
func (b *Builder) PutHeader(hdr *zip.FileHeader, r io.Reader) (int64, error) {
	if b.done {
		return 0, derrors.InternalError("archive builder already finalized").Build()
	}
	if _, dup := b.names[hdr.Name]; dup {
		return 0, derrors.InternalError("duplicate archive entry").WithContext("entry", hdr.Name).Build()
	}

	w, err := b.zw.CreateHeader(hdr)
	if err != nil {
		return 0, derrors.IOFailure("create archive entry", err).WithContext("entry", hdr.Name).Build()
	}
	b.names[hdr.Name] = struct{}{}

	if strings.HasSuffix(hdr.Name, "/") || r == nil {
		return 0, nil
	}

	n, err := io.Copy(w, r)
	if err != nil {
		if derrors.IsClassified(err) {
			return n, err
		}
		return n, derrors.IOFailure("write archive entry", err).WithContext("entry", hdr.Name).Build()
	}
	return n, nil
}

// Copy appends a template entry verbatim: header, compression method, and
// compressed bytes are transferred without re-encoding.
func (b *Builder) Copy(e *Entry) error {
	if b.done {
		return derrors.InternalError("archive builder already finalized").Build()
	}
	name := e.Name()
	if _, dup := b.names[name]; dup {
		return derrors.InternalError("duplicate archive entry").WithContext("entry", name).Build()
	}
	if err := b.zw.Copy(e.file); err != nil {
		return derrors.IOFailure("copy template entry", err).WithContext("entry", name).Build()
	}
	b.names[name] = struct{}{}
	return nil
}

// Finalize writes the central directory and returns the archive bytes.
// The Builder cannot be used afterwards.
func (b *Builder) Finalize() ([]byte, error) {
	if b.done {
		return nil, derrors.InternalError("archive builder already finalized").Build()
	}
	b.done = true
	if err := b.zw.Close(); err != nil {
		b.buf = nil
		return nil, derrors.IOFailure("finalize archive", err).Build()
	}
	data := b.buf.Bytes()
	b.buf = nil
	return data, nil
}

// Discard abandons the archive and releases its buffer. It is safe to call
// after Finalize or more than once.
func (b *Builder) Discard() {
	if b.done {
		return
	}
	b.done = true
	_ = b.zw.Close()
	b.buf = nil
}
