// Package modsync keeps the module root in step with a git repository so new
// modules become selectable without redeploying the service.
package modsync

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"git.home.luguber.info/inful/botpack/internal/config"
	derrors "git.home.luguber.info/inful/botpack/internal/foundation/errors"
	"git.home.luguber.info/inful/botpack/internal/logfields"
	"git.home.luguber.info/inful/botpack/internal/metrics"
	"git.home.luguber.info/inful/botpack/internal/retry"
)

// Result describes what one sync did.
type Result struct {
	Commit  string
	Cloned  bool
	Updated bool
}

// Syncer clones or pulls the module repository into the module root.
type Syncer struct {
	root     string
	cfg      config.SyncConfig
	policy   retry.Policy
	recorder metrics.Recorder
	logger   *slog.Logger
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Syncer) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPolicy overrides the retry policy derived from configuration.
func WithPolicy(p retry.Policy) Option {
	return func(s *Syncer) { s.policy = p }
}

// NewSyncer returns a Syncer for the module root. cfg must name a repository.
func NewSyncer(root string, cfg *config.SyncConfig, opts ...Option) (*Syncer, error) {
	if !cfg.Enabled() {
		return nil, derrors.ConfigError("module sync is not configured").
			WithContext("field", "modules.sync.url").
			Build()
	}
	s := &Syncer{
		root:     root,
		cfg:      *cfg,
		policy:   retry.FromConfig(cfg.Retry),
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sync clones the repository when the module root holds no checkout and
// pulls otherwise. Transient failures are retried according to the policy.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	var res Result
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.syncOnce(ctx)
		return err
	})
	s.recorder.IncSyncResult(err == nil)
	if err != nil {
		s.logger.Error("Module sync failed", logfields.URL(s.cfg.URL), logfields.Path(s.root), logfields.Error(err))
		return Result{}, err
	}
	return res, nil
}

func (s *Syncer) syncOnce(ctx context.Context) (Result, error) {
	if _, err := os.Stat(filepath.Join(s.root, ".git")); err == nil {
		return s.pull(ctx)
	}

	entries, err := os.ReadDir(s.root)
	switch {
	case err == nil && len(entries) > 0:
		return Result{}, derrors.SyncError("module root exists and is not a git checkout").
			WithRetry(derrors.RetryUserAction).
			WithContext("path", s.root).
			Build()
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return Result{}, derrors.SyncError("failed to inspect module root").WithCause(err).Build()
	}
	return s.clone(ctx, errors.Is(err, os.ErrNotExist))
}

func (s *Syncer) clone(ctx context.Context, created bool) (Result, error) {
	s.logger.Debug("Cloning module repository", logfields.URL(s.cfg.URL), logfields.Path(s.root))

	opts := &git.CloneOptions{URL: s.cfg.URL, Auth: s.auth()}
	if s.cfg.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(s.cfg.Branch)
		opts.SingleBranch = true
	}

	repo, err := git.PlainCloneContext(ctx, s.root, false, opts)
	if err != nil {
		if created {
			_ = os.RemoveAll(s.root)
		} else {
			s.clearDir()
		}
		return Result{}, classify("clone", s.cfg.URL, err)
	}

	res := Result{Cloned: true, Updated: true, Commit: headCommit(repo)}
	s.logger.Info("Module repository cloned",
		logfields.URL(s.cfg.URL),
		logfields.Path(s.root),
		slog.String("commit", res.Commit))
	return res, nil
}

// clearDir empties a pre-existing root after a failed clone so the next
// attempt starts from an empty directory again.
func (s *Syncer) clearDir() {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return
	}
	for _, e := range entries {
		_ = os.RemoveAll(filepath.Join(s.root, e.Name()))
	}
}

func (s *Syncer) pull(ctx context.Context) (Result, error) {
	repo, err := git.PlainOpen(s.root)
	if err != nil {
		return Result{}, derrors.SyncError("failed to open module checkout").
			WithRetry(derrors.RetryUserAction).
			WithCause(err).
			Build()
	}
	wt, err := repo.Worktree()
	if err != nil {
		return Result{}, derrors.SyncError("failed to open module worktree").WithCause(err).Build()
	}

	opts := &git.PullOptions{RemoteName: "origin", Auth: s.auth()}
	if s.cfg.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(s.cfg.Branch)
		opts.SingleBranch = true
	}

	err = wt.PullContext(ctx, opts)
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		res := Result{Commit: headCommit(repo)}
		s.logger.Debug("Module repository already up to date", logfields.Path(s.root), slog.String("commit", res.Commit))
		return res, nil
	}
	if err != nil {
		return Result{}, classify("pull", s.cfg.URL, err)
	}

	res := Result{Updated: true, Commit: headCommit(repo)}
	s.logger.Info("Module repository updated", logfields.Path(s.root), slog.String("commit", res.Commit))
	return res, nil
}

// auth uses the GitHub/GitLab convention of a token as basic auth password.
func (s *Syncer) auth() transport.AuthMethod {
	if s.cfg.Token == "" {
		return nil
	}
	return &http.BasicAuth{Username: "token", Password: s.cfg.Token}
}

func headCommit(repo *git.Repository) string {
	ref, err := repo.Head()
	if err != nil {
		return ""
	}
	return ref.Hash().String()
}

// classify separates failures worth retrying from ones that need an operator.
func classify(op, url string, err error) error {
	if ctxErr := derrors.FromContext(err); derrors.HasCategory(ctxErr, derrors.CategoryCanceled) {
		return ctxErr
	}

	b := derrors.SyncError(op+" failed").WithCause(err).WithContext("url", url)
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrRepositoryNotFound),
		errors.Is(err, transport.ErrEmptyRemoteRepository),
		errors.Is(err, git.ErrNonFastForwardUpdate),
		errors.Is(err, plumbing.ErrReferenceNotFound):
		b = b.WithRetry(derrors.RetryUserAction)
	}
	return b.Build()
}
