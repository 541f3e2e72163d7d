package assembly

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/botpack/internal/archive"
	"git.home.luguber.info/inful/botpack/internal/catalog"
	"git.home.luguber.info/inful/botpack/internal/metrics"
	"git.home.luguber.info/inful/botpack/internal/selection"
)

const (
	testNamespace = "_internal/cogs"
	testLimit     = 1_000_000
)

// trackingFS counts files that are open at any moment.
type trackingFS struct {
	fsys fs.FS
	open atomic.Int64
}

func (t *trackingFS) Open(name string) (fs.File, error) {
	f, err := t.fsys.Open(name)
	if err != nil {
		return nil, err
	}
	t.open.Add(1)
	return &trackedFile{File: f, owner: t}, nil
}

func (t *trackingFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return fs.ReadDir(t.fsys, name)
}

type trackedFile struct {
	fs.File
	owner  *trackingFS
	closed atomic.Bool
}

func (f *trackedFile) Close() error {
	if f.closed.CompareAndSwap(false, true) {
		f.owner.open.Add(-1)
	}
	return f.File.Close()
}

type zipEntry struct {
	name string
	body string
}

func buildTemplate(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	b := archive.NewBuilder()
	for _, e := range entries {
		var r io.Reader
		if !strings.HasSuffix(e.name, "/") {
			r = strings.NewReader(e.body)
		}
		_, err := b.Put(e.name, r)
		require.NoError(t, err)
	}
	data, err := b.Finalize()
	require.NoError(t, err)
	return data
}

type fixture struct {
	templateFS *trackingFS
	moduleFS   *trackingFS
	modules    fstest.MapFS
	catalog    *catalog.Catalog
	validator  *selection.Validator
	recorder   *fakeRecorder
}

func newFixture(t *testing.T, templateEntries ...zipEntry) *fixture {
	t.Helper()
	if len(templateEntries) == 0 {
		templateEntries = []zipEntry{
			{"launcher.bin", "\x7fELF launcher"},
			{"README.txt", "Run launcher.bin to start your bot."},
		}
	}

	modules := fstest.MapFS{
		"alpha.py": {Data: bytes.Repeat([]byte("a"), 3*1024)},
		"beta.py":  {Data: bytes.Repeat([]byte("b"), 4*1024)},
		"gamma.py": {Data: bytes.Repeat([]byte("g"), 2*1024*1024)},
	}
	f := &fixture{
		templateFS: &trackingFS{fsys: fstest.MapFS{
			"BotLauncher.zip": {Data: buildTemplate(t, templateEntries...)},
		}},
		moduleFS: &trackingFS{fsys: modules},
		modules:  modules,
		recorder: &fakeRecorder{},
	}
	f.catalog = catalog.New(f.moduleFS, ".py")
	f.validator = selection.NewValidator(f.catalog)
	return f
}

func (f *fixture) assembler(t *testing.T, settings Settings) *Assembler {
	t.Helper()
	if settings.Namespace == "" {
		settings.Namespace = testNamespace
	}
	a, err := New(archive.NewSource(f.templateFS, "BotLauncher.zip"), f.catalog, settings, WithRecorder(f.recorder))
	require.NoError(t, err)
	return a
}

func (f *fixture) selection(t *testing.T, ids ...string) selection.Selection {
	t.Helper()
	sel, err := f.validator.Validate(context.Background(), ids)
	require.NoError(t, err)
	return sel
}

func (f *fixture) openHandles() int64 {
	return f.templateFS.open.Load() + f.moduleFS.open.Load()
}

func readArchive(t *testing.T, data []byte) ([]string, map[string][]byte) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := make([]string, 0, len(zr.File))
	contents := make(map[string][]byte, len(zr.File))
	for _, zf := range zr.File {
		names = append(names, zf.Name)
		rc, err := zf.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		contents[zf.Name] = body
	}
	return names, contents
}

func entryNames(data []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(zr.File))
	for _, zf := range zr.File {
		names = append(names, zf.Name)
	}
	return names, nil
}

type fakeRecorder struct {
	metrics.NoopRecorder

	mu       sync.Mutex
	outcomes []metrics.OutcomeLabel
	injected []int64
	selected []string
}

func (r *fakeRecorder) IncAssemblyOutcome(o metrics.OutcomeLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *fakeRecorder) ObserveInjectedBytes(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.injected = append(r.injected, n)
}

func (r *fakeRecorder) IncModuleSelected(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = append(r.selected, id)
}

// stubOpener serves module content independent of the catalog listing.
type stubOpener struct {
	open func(ctx context.Context, m catalog.Module) (io.ReadCloser, error)
}

func (s stubOpener) Open(ctx context.Context, m catalog.Module) (io.ReadCloser, error) {
	return s.open(ctx, m)
}
