// Package packaging wires the catalog, selection validator, and assembler
// into the single service the HTTP server and CLI call.
package packaging

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/botpack/internal/archive"
	"git.home.luguber.info/inful/botpack/internal/assembly"
	"git.home.luguber.info/inful/botpack/internal/catalog"
	"git.home.luguber.info/inful/botpack/internal/config"
	"git.home.luguber.info/inful/botpack/internal/events"
	derrors "git.home.luguber.info/inful/botpack/internal/foundation/errors"
	"git.home.luguber.info/inful/botpack/internal/logfields"
	"git.home.luguber.info/inful/botpack/internal/metrics"
	"git.home.luguber.info/inful/botpack/internal/selection"
)

// publishTimeout bounds the best-effort event publish after a request.
const publishTimeout = 2 * time.Second

// Service lists modules and builds deliverables. It is immutable and safe
// for concurrent use; configuration changes produce a new Service.
type Service struct {
	catalog   *catalog.Catalog
	validator *selection.Validator
	assembler *assembly.Assembler
	source    *archive.Source
	publisher events.Publisher
	recorder  metrics.Recorder
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*options)

type options struct {
	publisher events.Publisher
	recorder  metrics.Recorder
	logger    *slog.Logger
}

// WithPublisher sets the assembly event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(o *options) {
		if p != nil {
			o.publisher = p
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// New builds a Service reading the template and module root from disk.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	templateFS := os.DirFS(filepath.Dir(cfg.Template.Path))
	moduleFS := os.DirFS(cfg.Modules.Root)
	return NewWithFS(cfg, templateFS, filepath.Base(cfg.Template.Path), moduleFS, opts...)
}

// NewWithFS builds a Service over arbitrary filesystems. templateName is the
// template's path within templateFS.
func NewWithFS(cfg *config.Config, templateFS fs.FS, templateName string, moduleFS fs.FS, opts ...Option) (*Service, error) {
	o := &options{
		publisher: events.NoopPublisher{},
		recorder:  metrics.NoopRecorder{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	cat := catalog.New(moduleFS, cfg.Modules.Extension, catalog.WithLogger(o.logger))
	source := archive.NewSource(templateFS, templateName)
	asm, err := assembly.New(source, cat, assembly.SettingsFromConfig(cfg),
		assembly.WithRecorder(o.recorder),
		assembly.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	return &Service{
		catalog:   cat,
		validator: selection.NewValidator(cat),
		assembler: asm,
		source:    source,
		publisher: o.publisher,
		recorder:  o.recorder,
		logger:    o.logger,
	}, nil
}

// OutputName returns the deliverable file name.
func (s *Service) OutputName() string { return s.assembler.Settings().OutputName }

// Modules returns the current catalog listing.
func (s *Service) Modules(ctx context.Context) ([]catalog.Module, error) {
	modules, err := s.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	s.recorder.SetCatalogSize(len(modules))
	return modules, nil
}

// Package validates raw and assembles the deliverable. An event describing
// the outcome is published without affecting the result.
func (s *Service) Package(ctx context.Context, raw []string) (*archive.Archive, error) {
	start := time.Now()

	out, err := s.pack(ctx, raw)
	s.publish(ctx, raw, out, err, time.Since(start))
	return out, err
}

func (s *Service) pack(ctx context.Context, raw []string) (*archive.Archive, error) {
	sel, err := s.validator.Validate(ctx, raw)
	if err != nil {
		err = derrors.FromContext(err)
		s.logger.Info("Rejected selection",
			logfields.Selection(raw),
			logfields.Category(string(derrors.GetCategory(err))),
			logfields.Error(err))
		return nil, err
	}
	return s.assembler.Assemble(ctx, sel)
}

// Ready reports whether the base template can be opened.
func (s *Service) Ready(ctx context.Context) error {
	return s.source.Check(ctx)
}

func (s *Service) publish(ctx context.Context, raw []string, out *archive.Archive, err error, d time.Duration) {
	ev := events.AssemblyEvent{
		ID:         uuid.NewString(),
		Kind:       events.KindSucceeded,
		Selection:  selection.Normalize(raw),
		DurationMS: d.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
	if err != nil {
		ev.Kind = events.KindFailed
		ev.Category = string(derrors.GetCategory(err))
		ev.Error = err.Error()
	} else {
		ev.Name = out.Name
		ev.Bytes = out.Size
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if perr := s.publisher.Publish(pctx, ev); perr != nil {
		s.logger.Warn("Failed to publish assembly event", logfields.AssemblyID(ev.ID), logfields.Error(perr))
	}
}
