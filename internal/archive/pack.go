package archive

import (
	"context"
	"io/fs"
	"strings"

	derrors "git.home.luguber.info/inful/botpack/internal/foundation/errors"
)

// PackOption configures Pack.
type PackOption func(*packOptions)

type packOptions struct {
	reserved string
	onSkip   func(path string)
}

// ReserveDir keeps dir in the template as an empty directory entry and
// leaves out everything below it. Modules are injected there later, so the
// template must not ship content of its own at that path.
func ReserveDir(dir string) PackOption {
	return func(o *packOptions) { o.reserved = strings.Trim(dir, "/") }
}

// OnSkip is called with every path left out because of ReserveDir.
func OnSkip(fn func(path string)) PackOption {
	return func(o *packOptions) { o.onSkip = fn }
}

// Pack builds a template archive from a directory tree. Entries are written
// in lexical walk order with the fixed modification time, so packing the
// same tree twice yields identical bytes.
func Pack(ctx context.Context, fsys fs.FS, opts ...PackOption) ([]byte, error) {
	var o packOptions
	for _, opt := range opts {
		opt(&o)
	}

	b := NewBuilder()
	defer b.Discard()

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return derrors.IOFailure("walk template directory", walkErr).WithContext("path", p).Build()
		}
		if err := ctx.Err(); err != nil {
			return derrors.FromContext(err)
		}
		if p == "." {
			return nil
		}
		if o.reserved != "" {
			if skip, err := o.reserve(b, p, d); skip || err != nil {
				return err
			}
		}
		if d.IsDir() {
			_, err := b.Put(p+"/", nil)
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return packFile(b, fsys, p)
	})
	if err != nil {
		return nil, err
	}

	// A reserved directory missing from the tree is still created.
	if o.reserved != "" && !b.Has(o.reserved+"/") {
		if err := putParents(b, o.reserved); err != nil {
			return nil, err
		}
	}
	return b.Finalize()
}

// reserve handles paths at or below the reserved directory. It reports
// whether the walk should move past p.
func (o *packOptions) reserve(b *Builder, p string, d fs.DirEntry) (bool, error) {
	switch {
	case p == o.reserved && d.IsDir():
		_, err := b.Put(p+"/", nil)
		return true, err
	case p == o.reserved || strings.HasPrefix(p, o.reserved+"/"):
		if o.onSkip != nil {
			o.onSkip(p)
		}
		if d.IsDir() {
			return true, fs.SkipDir
		}
		return true, nil
	}
	return false, nil
}

// putParents writes directory entries for dir and any missing ancestors.
func putParents(b *Builder, dir string) error {
	parts := strings.Split(dir, "/")
	for i := range parts {
		name := strings.Join(parts[:i+1], "/") + "/"
		if b.Has(name) {
			continue
		}
		if _, err := b.Put(name, nil); err != nil {
			return err
		}
	}
	return nil
}

func packFile(b *Builder, fsys fs.FS, p string) error {
	f, err := fsys.Open(p)
	if err != nil {
		return derrors.IOFailure("open template file", err).WithContext("path", p).Build()
	}
	defer f.Close()
	_, err = b.Put(p, f)
	return err
}
