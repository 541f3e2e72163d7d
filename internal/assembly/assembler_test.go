package assembly

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/botpack/internal/archive"
	"git.home.luguber.info/inful/botpack/internal/catalog"
	derrors "git.home.luguber.info/inful/botpack/internal/foundation/errors"
	"git.home.luguber.info/inful/botpack/internal/metrics"
)

func TestAssembleInjectsSelectionAfterTemplate(t *testing.T) {
	f := newFixture(t)
	a := f.assembler(t, Settings{MaxInjectedBytes: testLimit})

	out, err := a.Assemble(context.Background(), f.selection(t, "alpha", "beta"))
	require.NoError(t, err)

	assert.Equal(t, "BotLauncher.zip", out.Name)
	assert.Equal(t, int64(len(out.Data)), out.Size)

	names, contents := readArchive(t, out.Data)
	assert.Equal(t, []string{
		"launcher.bin",
		"README.txt",
		"_internal/cogs/alpha",
		"_internal/cogs/beta",
	}, names)
	assert.Equal(t, []byte("\x7fELF launcher"), contents["launcher.bin"])
	assert.Equal(t, f.modules["alpha.py"].Data, contents["_internal/cogs/alpha"])
	assert.Equal(t, f.modules["beta.py"].Data, contents["_internal/cogs/beta"])

	assert.Equal(t, []metrics.OutcomeLabel{metrics.OutcomeSuccess}, f.recorder.outcomes)
	assert.Equal(t, []int64{7 * 1024}, f.recorder.injected)
	assert.Equal(t, []string{"alpha", "beta"}, f.recorder.selected)
	assert.Zero(t, f.openHandles())
}

func TestAssembleFollowsSelectionOrder(t *testing.T) {
	f := newFixture(t)
	a := f.assembler(t, Settings{MaxInjectedBytes: testLimit})

	out, err := a.Assemble(context.Background(), f.selection(t, "beta", "alpha"))
	require.NoError(t, err)

	names, _ := readArchive(t, out.Data)
	assert.Equal(t, []string{"_internal/cogs/beta", "_internal/cogs/alpha"}, names[2:])
}

func TestAssembleKeepExtension(t *testing.T) {
	f := newFixture(t)
	a := f.assembler(t, Settings{MaxInjectedBytes: testLimit, KeepExtension: true, OutputName: "custom.zip"})

	out, err := a.Assemble(context.Background(), f.selection(t, "alpha"))
	require.NoError(t, err)
	assert.Equal(t, "custom.zip", out.Name)

	names, _ := readArchive(t, out.Data)
	assert.Equal(t, "_internal/cogs/alpha.py", names[len(names)-1])
}

func TestAssembleIsByteIdentical(t *testing.T) {
	f := newFixture(t)
	a := f.assembler(t, Settings{MaxInjectedBytes: testLimit})
	sel := f.selection(t, "alpha", "beta")

	first, err := a.Assemble(context.Background(), sel)
	require.NoError(t, err)
	second, err := a.Assemble(context.Background(), sel)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first.Data, second.Data))
}

func TestUnknownIdentifierInjectsNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.validator.Validate(context.Background(), []string{"alpha", "delta"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, derrors.ErrUnknownIdentifier))

	ce, ok := derrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, []string{"delta"}, ce.Identifiers())
	assert.Zero(t, f.templateFS.open.Load())
}

func TestSizeExceeded(t *testing.T) {
	t.Run("listed size over the cap", func(t *testing.T) {
		f := newFixture(t)
		a := f.assembler(t, Settings{MaxInjectedBytes: testLimit})

		out, err := a.Assemble(context.Background(), f.selection(t, "gamma"))
		require.Error(t, err)
		assert.Nil(t, out)
		assert.True(t, errors.Is(err, derrors.ErrSizeExceeded))
		assert.Zero(t, f.openHandles())
		assert.Equal(t, []metrics.OutcomeLabel{metrics.OutcomeLabel(derrors.CategorySizeExceeded)}, f.recorder.outcomes)
	})

	t.Run("cumulative total over the cap", func(t *testing.T) {
		f := newFixture(t)
		a := f.assembler(t, Settings{MaxInjectedBytes: 5 * 1024})

		_, err := a.Assemble(context.Background(), f.selection(t, "alpha", "beta"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, derrors.ErrSizeExceeded))
		assert.Zero(t, f.openHandles())
	})

	t.Run("exactly at the cap", func(t *testing.T) {
		f := newFixture(t)
		a := f.assembler(t, Settings{MaxInjectedBytes: 7 * 1024})

		_, err := a.Assemble(context.Background(), f.selection(t, "alpha", "beta"))
		require.NoError(t, err)
	})

	t.Run("content larger than listed", func(t *testing.T) {
		f := newFixture(t)
		var closed bool
		opener := stubOpener{open: func(context.Context, catalog.Module) (io.ReadCloser, error) {
			return closeFunc{Reader: strings.NewReader(strings.Repeat("x", 10*1024)), close: func() { closed = true }}, nil
		}}
		a, err := New(archive.NewSource(f.templateFS, "BotLauncher.zip"), opener,
			Settings{Namespace: testNamespace, MaxInjectedBytes: 4 * 1024})
		require.NoError(t, err)

		_, err = a.Assemble(context.Background(), f.selection(t, "alpha"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, derrors.ErrSizeExceeded))
		assert.True(t, closed)
		assert.Zero(t, f.openHandles())
	})

	t.Run("zero means unlimited", func(t *testing.T) {
		f := newFixture(t)
		a := f.assembler(t, Settings{})

		out, err := a.Assemble(context.Background(), f.selection(t, "gamma"))
		require.NoError(t, err)
		_, contents := readArchive(t, out.Data)
		assert.Len(t, contents["_internal/cogs/gamma"], 2*1024*1024)
	})
}

func TestTemplateFailures(t *testing.T) {
	t.Run("missing template", func(t *testing.T) {
		f := newFixture(t)
		a, err := New(archive.NewSource(fstest.MapFS{}, "BotLauncher.zip"), f.catalog, Settings{Namespace: testNamespace})
		require.NoError(t, err)

		_, err = a.Assemble(context.Background(), f.selection(t, "alpha"))
		assert.True(t, errors.Is(err, derrors.ErrSourceUnavailable))
	})

	t.Run("corrupt template", func(t *testing.T) {
		f := newFixture(t)
		src := archive.NewSource(fstest.MapFS{"t.zip": {Data: []byte("PK not really")}}, "t.zip")
		a, err := New(src, f.catalog, Settings{Namespace: testNamespace})
		require.NoError(t, err)

		_, err = a.Assemble(context.Background(), f.selection(t, "alpha"))
		assert.True(t, errors.Is(err, derrors.ErrSourceUnavailable))
		assert.Zero(t, f.openHandles())
	})

	t.Run("template entry inside namespace", func(t *testing.T) {
		f := newFixture(t, zipEntry{"launcher.bin", "x"}, zipEntry{"_internal/cogs/stale.py", "old"})
		a := f.assembler(t, Settings{})

		_, err := a.Assemble(context.Background(), f.selection(t, "alpha"))
		assert.True(t, errors.Is(err, derrors.ErrSourceUnavailable))
		assert.Zero(t, f.openHandles())
	})

	t.Run("namespace directories are allowed", func(t *testing.T) {
		f := newFixture(t,
			zipEntry{"launcher.bin", "x"},
			zipEntry{"_internal/", ""},
			zipEntry{"_internal/cogs/", ""},
			zipEntry{"_internal/cogs_extra.txt", "sibling"},
		)
		a := f.assembler(t, Settings{})

		out, err := a.Assemble(context.Background(), f.selection(t, "alpha"))
		require.NoError(t, err)
		names, _ := readArchive(t, out.Data)
		assert.Equal(t, []string{
			"launcher.bin",
			"_internal/",
			"_internal/cogs/",
			"_internal/cogs_extra.txt",
			"_internal/cogs/alpha",
		}, names)
	})
}

func TestModuleFailures(t *testing.T) {
	t.Run("module vanished after validation", func(t *testing.T) {
		f := newFixture(t)
		a := f.assembler(t, Settings{})
		sel := f.selection(t, "alpha", "beta")
		delete(f.modules, "beta.py")

		_, err := a.Assemble(context.Background(), sel)
		assert.True(t, errors.Is(err, derrors.ErrUnknownIdentifier))
		assert.Zero(t, f.openHandles())
	})

	t.Run("read error is an io failure", func(t *testing.T) {
		f := newFixture(t)
		cause := errors.New("device unplugged")
		opener := stubOpener{open: func(context.Context, catalog.Module) (io.ReadCloser, error) {
			return io.NopCloser(io.MultiReader(strings.NewReader("partial"), errReader{cause})), nil
		}}
		a, err := New(archive.NewSource(f.templateFS, "BotLauncher.zip"), opener, Settings{Namespace: testNamespace})
		require.NoError(t, err)

		out, err := a.Assemble(context.Background(), f.selection(t, "alpha"))
		require.Error(t, err)
		assert.Nil(t, out)
		assert.True(t, errors.Is(err, derrors.ErrIO))
		assert.ErrorIs(t, err, cause)
		assert.Zero(t, f.openHandles())
	})
}

func TestCancellation(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		f := newFixture(t)
		a := f.assembler(t, Settings{})
		sel := f.selection(t, "alpha")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		out, err := a.Assemble(ctx, sel)
		require.Error(t, err)
		assert.Nil(t, out)
		assert.True(t, errors.Is(err, derrors.ErrCanceled))
		assert.Zero(t, f.openHandles())
	})

	t.Run("while streaming a module", func(t *testing.T) {
		f := newFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		opener := stubOpener{open: func(context.Context, catalog.Module) (io.ReadCloser, error) {
			return io.NopCloser(&cancelingReader{cancel: cancel, data: strings.Repeat("z", 64*1024)}), nil
		}}
		a, err := New(archive.NewSource(f.templateFS, "BotLauncher.zip"), opener, Settings{Namespace: testNamespace})
		require.NoError(t, err)

		_, err = a.Assemble(ctx, f.selection(t, "alpha"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, derrors.ErrCanceled))
		assert.Zero(t, f.openHandles())
	})
}

func TestConcurrentAssembliesAreIsolated(t *testing.T) {
	f := newFixture(t)
	a := f.assembler(t, Settings{MaxInjectedBytes: testLimit})

	selections := [][]string{
		{"alpha"},
		{"beta"},
		{"alpha", "beta"},
		{"beta", "alpha"},
	}

	const rounds = 8
	var wg sync.WaitGroup
	errs := make(chan error, rounds*len(selections))
	for i := range rounds * len(selections) {
		ids := selections[i%len(selections)]
		sel := f.selection(t, ids...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := a.Assemble(context.Background(), sel)
			if err != nil {
				errs <- err
				return
			}
			names, err := entryNames(out.Data)
			if err != nil {
				errs <- err
				return
			}
			want := []string{"launcher.bin", "README.txt"}
			for _, id := range ids {
				want = append(want, testNamespace+"/"+id)
			}
			if fmt.Sprint(names) != fmt.Sprint(want) {
				errs <- fmt.Errorf("selection %v produced %v", ids, names)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Zero(t, f.openHandles())
}

func TestNewValidatesSettings(t *testing.T) {
	f := newFixture(t)
	src := archive.NewSource(f.templateFS, "BotLauncher.zip")

	_, err := New(src, f.catalog, Settings{Namespace: "/abs"})
	require.Error(t, err)
	_, err = New(src, f.catalog, Settings{Namespace: "../escape"})
	require.Error(t, err)
	_, err = New(src, f.catalog, Settings{Namespace: testNamespace, MaxInjectedBytes: -1})
	require.Error(t, err)
	_, err = New(nil, f.catalog, Settings{Namespace: testNamespace})
	require.Error(t, err)

	a, err := New(src, f.catalog, Settings{Namespace: testNamespace})
	require.NoError(t, err)
	assert.Equal(t, "BotLauncher.zip", a.Settings().OutputName)
}

type closeFunc struct {
	io.Reader
	close func()
}

func (c closeFunc) Close() error {
	c.close()
	return nil
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

// cancelingReader cancels its context after the first read.
type cancelingReader struct {
	cancel context.CancelFunc
	data   string
	off    int
}

func (c *cancelingReader) Read(p []byte) (int, error) {
	if c.off >= len(c.data) {
		return 0, io.EOF
	}
	n := copy(p, c.data[c.off:min(len(c.data), c.off+1024)])
	c.off += n
	c.cancel()
	return n, nil
}
