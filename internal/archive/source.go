package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"iter"

	"github.com/klauspost/compress/zip"

	derrors "git.home.luguber.info/inful/botpack/internal/foundation/errors"
)

// Source is a read-only handle to the immutable base template. It holds no
// open descriptors; each Open yields an independent Reader, so one Source is
// safe for unlimited concurrent use.
type Source struct {
	fsys fs.FS
	name string
}

// NewSource returns a Source for the archive stored at name within fsys.
func NewSource(fsys fs.FS, name string) *Source {
	return &Source{fsys: fsys, name: name}
}

// Name returns the template's location within its filesystem.
func (s *Source) Name() string { return s.name }

// Reader is one open cursor over the template. Close releases the
// underlying file; entries must not be read after Close.
type Reader struct {
	file fs.File
	zr   *zip.Reader
}

// Open opens the template and parses its central directory. A missing,
// unreadable, or malformed template fails with source_unavailable.
func (s *Source) Open(ctx context.Context) (*Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, derrors.FromContext(err)
	}

	f, err := s.fsys.Open(s.name)
	if err != nil {
		return nil, derrors.SourceUnavailable(err).WithContext("template", s.name).Build()
	}

	zr, err := newZipReader(f)
	if err != nil {
		_ = f.Close()
		return nil, derrors.SourceUnavailable(err).WithContext("template", s.name).Build()
	}
	return &Reader{file: f, zr: zr}, nil
}

// Check opens and closes the template, reporting whether it is usable.
func (s *Source) Check(ctx context.Context) error {
	r, err := s.Open(ctx)
	if err != nil {
		return err
	}
	return r.Close()
}

// newZipReader uses random access when the file supports it and otherwise
// buffers the file in memory.
func newZipReader(f fs.File) (*zip.Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat template: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("template is a directory")
	}
	if ra, ok := f.(io.ReaderAt); ok {
		return zip.NewReader(ra, info.Size())
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return zip.NewReader(bytes.NewReader(data), int64(len(data)))
}

// Len returns the number of entries in the template.
func (r *Reader) Len() int { return len(r.zr.File) }

// Entries yields every entry in its original archive order. The sequence
// is restartable: ranging over it again starts from the first entry.
func (r *Reader) Entries() iter.Seq2[int, *Entry] {
	return func(yield func(int, *Entry) bool) {
		for i, f := range r.zr.File {
			if !yield(i, &Entry{file: f}) {
				return
			}
		}
	}
}

// Close releases the template file.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// Entry is one member of the template archive.
type Entry struct {
	file *zip.File
}

// Name returns the entry's slash separated path.
func (e *Entry) Name() string { return e.file.Name }

// IsDir reports whether the entry is a directory marker.
func (e *Entry) IsDir() bool { return e.file.FileInfo().IsDir() }

// Size returns the uncompressed size recorded in the central directory.
func (e *Entry) Size() int64 { return int64(e.file.UncompressedSize64) }

// Open returns a stream of the entry's uncompressed content. Checksum
// mismatches surface from Read as io failures.
func (e *Entry) Open() (io.ReadCloser, error) {
	rc, err := e.file.Open()
	if err != nil {
		return nil, derrors.IOFailure("open template entry", err).WithContext("entry", e.file.Name).Build()
	}
	return rc, nil
}
