package catalog

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/botpack/internal/foundation/errors"
)

func moduleRoot() fstest.MapFS {
	return fstest.MapFS{
		"gamma.py":      {Data: []byte("print('gamma')")},
		"alpha.py":      {Data: []byte("print('alpha')")},
		"beta.py":       {Data: []byte("print('beta!')")},
		"alpha.md":      {Data: []byte("Greets **users** on join.")},
		"notes.txt":     {Data: []byte("not a module")},
		".py":           {Data: []byte("no identifier")},
		"sub/delta.py":  {Data: []byte("nested modules are not listed")},
		"folder.py/x":   {Data: []byte("directory with the extension")},
		"__init__.py":   {Data: []byte("")},
		"README":        {Data: []byte("readme")},
		"voice.PY":      {Data: []byte("extension match is case sensitive")},
		"music.py.bak":  {Data: []byte("backup")},
		"moderation.py": {Data: []byte("print('mod')")},
	}
}

func TestListFiltersByExtensionAndSorts(t *testing.T) {
	c := New(moduleRoot(), ".py")

	modules, err := c.List(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"__init__", "alpha", "beta", "gamma", "moderation"}, IDs(modules))
	assert.Equal(t, "alpha.py", modules[1].Path)
	assert.Equal(t, int64(14), modules[1].Size)
}

func TestListRendersDescriptions(t *testing.T) {
	c := New(moduleRoot(), ".py")

	modules, err := c.List(context.Background())
	require.NoError(t, err)

	byID := make(map[string]Module)
	for _, m := range modules {
		byID[m.ID] = m
	}
	assert.Equal(t, "<p>Greets <strong>users</strong> on join.</p>", byID["alpha"].Description)
	assert.Equal(t, "Python module for beta functionality", byID["beta"].Description)
}

func TestListMissingRoot(t *testing.T) {
	c := New(os.DirFS(filepath.Join(t.TempDir(), "missing")), ".py")

	modules, err := c.List(context.Background())
	require.Error(t, err)
	assert.Nil(t, modules)
	assert.True(t, errors.Is(err, derrors.ErrCatalogRead))
}

func TestListEmptyRoot(t *testing.T) {
	c := New(os.DirFS(t.TempDir()), ".py")

	modules, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, modules)
}

func TestListReflectsChanges(t *testing.T) {
	dir := t.TempDir()
	c := New(os.DirFS(dir), ".py")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "alpha.py"), []byte("a"), 0o600))
	modules, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, IDs(modules))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "beta.py"), []byte("b"), 0o600))
	modules, err = c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, IDs(modules))
}

func TestLookup(t *testing.T) {
	c := New(moduleRoot(), ".py")

	found, missing, err := c.Lookup(context.Background(), []string{"gamma", "delta", "alpha", "notes"})
	require.NoError(t, err)
	assert.Equal(t, []string{"gamma", "alpha"}, IDs(found))
	assert.Equal(t, []string{"delta", "notes"}, missing)
}

func TestLookupComparesNormalizedForms(t *testing.T) {
	// File name stored decomposed, as some filesystems do.
	c := New(fstest.MapFS{"cafe\u0301.py": {Data: []byte("x")}}, ".py")

	found, missing, err := c.Lookup(context.Background(), []string{"caf\u00e9"})
	require.NoError(t, err)
	assert.Empty(t, missing)
	require.Len(t, found, 1)
	assert.Equal(t, "cafe\u0301.py", found[0].Path)
}

func TestOpen(t *testing.T) {
	c := New(moduleRoot(), ".py")
	ctx := context.Background()

	t.Run("content", func(t *testing.T) {
		rc, err := c.Open(ctx, Module{ID: "alpha", Path: "alpha.py"})
		require.NoError(t, err)
		defer rc.Close()

		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "print('alpha')", string(body))
	})

	t.Run("vanished module", func(t *testing.T) {
		_, err := c.Open(ctx, Module{ID: "zeta", Path: "zeta.py"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, derrors.ErrUnknownIdentifier))

		ce, ok := derrors.AsClassified(err)
		require.True(t, ok)
		assert.Equal(t, []string{"zeta"}, ce.Identifiers())
	})

	t.Run("directory", func(t *testing.T) {
		_, err := c.Open(ctx, Module{ID: "folder", Path: "folder.py"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, derrors.ErrUnknownIdentifier))
	})
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New(moduleRoot(), ".py")

	_, err := c.List(ctx)
	assert.True(t, errors.Is(err, derrors.ErrCanceled))

	_, err = c.Open(ctx, Module{ID: "alpha", Path: "alpha.py"})
	assert.True(t, errors.Is(err, derrors.ErrCanceled))
}

func TestListFollowsSymlinkedModules(t *testing.T) {
	store := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(store, "vote.py"), []byte("print('vote')"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(store, "pkg.py"), 0o755))

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "gamble.py"), []byte("print('gamble')"), 0o600))
	if err := os.Symlink(filepath.Join(store, "vote.py"), filepath.Join(root, "vote.py")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(store, "pkg.py"), filepath.Join(root, "dir.py")))
	require.NoError(t, os.Symlink(filepath.Join(store, "missing.py"), filepath.Join(root, "dangling.py")))

	c := New(os.DirFS(root), ".py")
	modules, err := c.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"gamble", "vote"}, IDs(modules))
	assert.Equal(t, int64(len("print('vote')")), modules[1].Size)

	rc, err := c.Open(context.Background(), modules[1])
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "print('vote')", string(data))
}

// sidecarGuard fails any attempt to read a description sidecar.
type sidecarGuard struct {
	fs.FS
	t *testing.T
}

func (g sidecarGuard) Open(name string) (fs.File, error) {
	if filepath.Ext(name) == ".md" {
		g.t.Errorf("unexpected sidecar read: %s", name)
	}
	return g.FS.Open(name)
}

func TestLookupSkipsDescriptions(t *testing.T) {
	c := New(sidecarGuard{FS: moduleRoot(), t: t}, ".py")

	found, missing, err := c.Lookup(context.Background(), []string{"alpha"})
	require.NoError(t, err)
	assert.Empty(t, missing)
	require.Len(t, found, 1)
	assert.Empty(t, found[0].Description)
}
