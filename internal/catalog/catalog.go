// Package catalog enumerates the selectable modules under a module root.
//
// The listing is recomputed from storage on every call so that files added
// or removed (for example by a module sync) are visible immediately.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/text/unicode/norm"

	derrors "git.home.luguber.info/inful/botpack/internal/foundation/errors"
	"git.home.luguber.info/inful/botpack/internal/logfields"
)

// descriptionSuffix names the optional markdown sidecar describing a module.
const descriptionSuffix = ".md"

// Module is one selectable unit of content.
type Module struct {
	// ID is the file name with the module extension stripped.
	ID string `json:"id"`
	// Path is the slash separated location relative to the module root.
	Path string `json:"path"`
	// Size is the byte size reported by the listing, 0 if unknown.
	Size int64 `json:"size"`
	// Description is rendered HTML.
	Description string `json:"description"`
}

// Catalog lists modules stored in a filesystem. It holds no mutable state and
// is safe for concurrent use.
type Catalog struct {
	fsys      fs.FS
	extension string
	md        goldmark.Markdown
	logger    *slog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger used for non-fatal sidecar problems.
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a Catalog of files in fsys ending in extension.
func New(fsys fs.FS, extension string, opts ...Option) *Catalog {
	c := &Catalog{
		fsys:      fsys,
		extension: extension,
		md:        goldmark.New(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Extension returns the file suffix modules are filtered by.
func (c *Catalog) Extension() string { return c.extension }

// List returns every module in identifier order. A missing or unreadable
// root fails with catalog_read; it is never reported as an empty catalog.
func (c *Catalog) List(ctx context.Context) ([]Module, error) {
	modules, err := c.scan(ctx)
	if err != nil {
		return nil, err
	}
	for i := range modules {
		modules[i].Description = c.describe(modules[i].ID)
	}
	return modules, nil
}

// scan lists modules without rendering descriptions. Symlinks count when
// their target is a regular file, matching what Open accepts.
func (c *Catalog) scan(ctx context.Context) ([]Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, derrors.FromContext(err)
	}

	entries, err := fs.ReadDir(c.fsys, ".")
	if err != nil {
		return nil, derrors.CatalogReadFailure(err).Build()
	}

	modules := make([]Module, 0, len(entries))
	for _, d := range entries {
		name := d.Name()
		id, ok := strings.CutSuffix(name, c.extension)
		if !ok || id == "" || id == "." || id == ".." {
			continue
		}

		size, ok := c.regularFile(d)
		if !ok {
			continue
		}
		modules = append(modules, Module{ID: id, Path: name, Size: size})
	}

	slices.SortFunc(modules, func(a, b Module) int { return strings.Compare(a.ID, b.ID) })
	return modules, nil
}

// regularFile reports whether d is, or links to, a regular file and returns
// its size (0 when unknown).
func (c *Catalog) regularFile(d fs.DirEntry) (int64, bool) {
	switch {
	case d.Type().IsRegular():
		if info, err := d.Info(); err == nil {
			return info.Size(), true
		}
		return 0, true
	case d.Type()&fs.ModeSymlink != 0:
		info, err := fs.Stat(c.fsys, d.Name())
		if err != nil {
			c.logger.Debug("Skipping unresolvable module link", logfields.Path(d.Name()), logfields.Error(err))
			return 0, false
		}
		if !info.Mode().IsRegular() {
			return 0, false
		}
		return info.Size(), true
	default:
		return 0, false
	}
}

// IDs returns the identifiers of modules in order.
func IDs(modules []Module) []string {
	ids := make([]string, len(modules))
	for i, m := range modules {
		ids[i] = m.ID
	}
	return ids
}

// Lookup resolves ids against a fresh listing. Identifiers are compared in
// Unicode NFC form. found follows the order of ids; missing lists every id
// that did not resolve, in input order. Found modules carry no Description.
func (c *Catalog) Lookup(ctx context.Context, ids []string) ([]Module, []string, error) {
	modules, err := c.scan(ctx)
	if err != nil {
		return nil, nil, err
	}

	index := make(map[string]Module, len(modules))
	for _, m := range modules {
		index[norm.NFC.String(m.ID)] = m
	}

	var (
		found   = make([]Module, 0, len(ids))
		missing []string
	)
	for _, id := range ids {
		if m, ok := index[norm.NFC.String(id)]; ok {
			found = append(found, m)
			continue
		}
		missing = append(missing, id)
	}
	return found, missing, nil
}

// Open returns the content of m. A module that vanished since it was listed
// fails with unknown_identifier.
func (c *Catalog) Open(ctx context.Context, m Module) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, derrors.FromContext(err)
	}

	f, err := c.fsys.Open(m.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, derrors.UnknownIdentifier([]string{m.ID}).WithCause(err).Build()
		}
		return nil, derrors.IOFailure("open module", err).WithContext("module", m.ID).Build()
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, derrors.IOFailure("stat module", err).WithContext("module", m.ID).Build()
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, derrors.UnknownIdentifier([]string{m.ID}).Build()
	}
	return f, nil
}

// describe renders the module's markdown sidecar, falling back to a
// generated sentence when none exists.
func (c *Catalog) describe(id string) string {
	fallback := fmt.Sprintf("Python module for %s functionality", id)

	src, err := fs.ReadFile(c.fsys, id+descriptionSuffix)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("Failed to read module description", logfields.Module(id), logfields.Error(err))
		}
		return fallback
	}

	var buf bytes.Buffer
	if err := c.md.Convert(src, &buf); err != nil {
		c.logger.Warn("Failed to render module description", logfields.Module(id), logfields.Error(err))
		return fallback
	}
	return strings.TrimSpace(buf.String())
}
