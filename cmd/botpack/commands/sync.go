package commands

import (
	"context"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/botpack/internal/config"
	"git.home.luguber.info/inful/botpack/internal/modsync"
)

// SyncCmd implements the 'sync' command.
type SyncCmd struct{}

func (s *SyncCmd) Run(g *Global, root *CLI) error {
	cfg, logger, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	return RunSync(context.Background(), g, cfg, logger)
}

// RunSync clones or pulls the module repository once.
func RunSync(ctx context.Context, g *Global, cfg *config.Config, logger *slog.Logger) error {
	syncer, err := modsync.NewSyncer(cfg.Modules.Root, cfg.Modules.Sync, modsync.WithLogger(logger))
	if err != nil {
		return err
	}
	res, err := syncer.Sync(ctx)
	if err != nil {
		return err
	}

	switch {
	case res.Cloned:
		_, _ = fmt.Fprintf(stdout(g), "cloned %s at %s\n", cfg.Modules.Sync.URL, res.Commit)
	case res.Updated:
		_, _ = fmt.Fprintf(stdout(g), "updated to %s\n", res.Commit)
	default:
		_, _ = fmt.Fprintf(stdout(g), "already up to date at %s\n", res.Commit)
	}
	return nil
}
