package assembly

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/botpack/internal/archive"
	"git.home.luguber.info/inful/botpack/internal/catalog"
	"git.home.luguber.info/inful/botpack/internal/config"
	derrors "git.home.luguber.info/inful/botpack/internal/foundation/errors"
	"git.home.luguber.info/inful/botpack/internal/logfields"
	"git.home.luguber.info/inful/botpack/internal/metrics"
	"git.home.luguber.info/inful/botpack/internal/selection"
)

// ModuleOpener yields the content of a catalog module, or an
// unknown_identifier error when it no longer exists.
type ModuleOpener interface {
	Open(ctx context.Context, m catalog.Module) (io.ReadCloser, error)
}

// Settings are the injection parameters of an Assembler.
type Settings struct {
	// Namespace is the archive directory modules are injected under.
	Namespace string
	// MaxInjectedBytes caps uncompressed injected content; 0 is unlimited.
	MaxInjectedBytes int64
	// OutputName is the deliverable's file name.
	OutputName string
	// KeepExtension names entries after the module file instead of its id.
	KeepExtension bool
}

// SettingsFromConfig extracts assembly settings from a loaded configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Namespace:        cfg.Modules.Namespace,
		MaxInjectedBytes: cfg.Modules.MaxInjectedBytes,
		OutputName:       cfg.Output.Name,
		KeepExtension:    cfg.Modules.KeepExtension,
	}
}

// Assembler builds deliverables. It is immutable after construction and safe
// for concurrent use.
type Assembler struct {
	source   *archive.Source
	modules  ModuleOpener
	settings Settings
	recorder metrics.Recorder
	logger   *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(a *Assembler) {
		if r != nil {
			a.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

// New returns an Assembler injecting modules from modules into copies of
// source.
func New(source *archive.Source, modules ModuleOpener, settings Settings, opts ...Option) (*Assembler, error) {
	if source == nil || modules == nil {
		return nil, derrors.InternalError("assembler requires a template source and a module opener").Build()
	}
	if err := config.ValidateNamespace(settings.Namespace); err != nil {
		return nil, err
	}
	if settings.MaxInjectedBytes < 0 {
		return nil, derrors.ConfigError("max injected bytes must not be negative").Build()
	}
	if settings.OutputName == "" {
		settings.OutputName = config.DefaultOutputName
	}

	a := &Assembler{
		source:   source,
		modules:  modules,
		settings: settings,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Settings returns the injection parameters in effect.
func (a *Assembler) Settings() Settings { return a.settings }

// Assemble copies every template entry verbatim and in order, then appends
// each selected module under the namespace in selection order. It fails
// with size_exceeded as soon as injected content would pass the cap, and
// with canceled when ctx ends first. On any failure no archive is returned.
func (a *Assembler) Assemble(ctx context.Context, sel selection.Selection) (*archive.Archive, error) {
	start := time.Now()
	log := a.logger.With(logfields.AssemblyID(uuid.NewString()))

	out, injected, err := a.assemble(ctx, sel)
	a.recorder.ObserveAssemblyDuration(time.Since(start))
	if err != nil {
		err = derrors.FromContext(err)
		category := derrors.GetCategory(err)
		a.recorder.IncAssemblyOutcome(metrics.OutcomeLabel(category))
		log.Warn("Assembly failed",
			logfields.Selection(sel.IDs()),
			logfields.Category(string(category)),
			logfields.Error(err))
		return nil, err
	}

	a.recorder.IncAssemblyOutcome(metrics.OutcomeSuccess)
	a.recorder.ObserveInjectedBytes(injected)
	a.recorder.ObserveArchiveBytes(out.Size)
	for _, id := range sel.IDs() {
		a.recorder.IncModuleSelected(id)
	}
	log.Info("Assembled archive",
		logfields.Selection(sel.IDs()),
		logfields.Name(out.Name),
		logfields.Bytes(out.Size),
		slog.Int64("injected_bytes", injected),
		logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	return out, nil
}

func (a *Assembler) assemble(ctx context.Context, sel selection.Selection) (*archive.Archive, int64, error) {
	if sel.Len() == 0 {
		return nil, 0, derrors.EmptySelection().Build()
	}

	src, err := a.source.Open(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = src.Close() }()

	b := archive.NewBuilder()
	defer b.Discard()

	if err := a.copyTemplate(ctx, src, b); err != nil {
		return nil, 0, err
	}

	budget := newBudget(a.settings.MaxInjectedBytes)
	for _, m := range sel.Modules() {
		if err := ctx.Err(); err != nil {
			return nil, budget.used, derrors.FromContext(err)
		}
		if err := a.inject(ctx, b, m, budget); err != nil {
			return nil, budget.used, err
		}
	}

	data, err := b.Finalize()
	if err != nil {
		return nil, budget.used, err
	}
	return archive.New(a.settings.OutputName, data), budget.used, nil
}

// copyTemplate transfers every template entry unchanged. A template entry
// inside the injection namespace makes the template unusable because
// injected paths must never collide with template paths.
func (a *Assembler) copyTemplate(ctx context.Context, src *archive.Reader, b *archive.Builder) error {
	ns := a.settings.Namespace
	for _, e := range src.Entries() {
		if err := ctx.Err(); err != nil {
			return derrors.FromContext(err)
		}
		name := e.Name()
		if name == ns || (strings.HasPrefix(name, ns+"/") && name != ns+"/") {
			return derrors.SourceUnavailable(
				fmt.Errorf("template entry %q lies inside module namespace %q", name, ns),
			).Build()
		}
		if b.Has(name) {
			return derrors.SourceUnavailable(fmt.Errorf("template contains duplicate entry %q", name)).Build()
		}
		if err := b.Copy(e); err != nil {
			return err
		}
	}
	return nil
}

func (a *Assembler) inject(ctx context.Context, b *archive.Builder, m catalog.Module, budget *budget) error {
	// Reject on the listed size before paying for the open.
	if err := budget.admit(m.Size); err != nil {
		return err
	}

	rc, err := a.modules.Open(ctx, m)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	_, err = b.Put(a.entryName(m), &guardedReader{ctx: ctx, r: rc, budget: budget})
	return err
}

// entryName places m directly below the namespace.
func (a *Assembler) entryName(m catalog.Module) string {
	name := m.ID
	if a.settings.KeepExtension {
		name = m.Path
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = name[i+1:]
		}
	}
	return a.settings.Namespace + "/" + name
}
