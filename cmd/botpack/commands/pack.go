package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/botpack/internal/archive"
	"git.home.luguber.info/inful/botpack/internal/config"
	derrors "git.home.luguber.info/inful/botpack/internal/foundation/errors"
	"git.home.luguber.info/inful/botpack/internal/logfields"
)

// PackCmd implements the 'pack' command.
type PackCmd struct {
	Dir       string `short:"d" required:"" type:"existingdir" help:"Launcher directory to pack"`
	Output    string `short:"o" help:"Template archive to write" default:"./static/BotLauncher.zip"`
	Namespace string `help:"Module namespace to leave empty (defaults to modules.namespace from the configuration)"`
}

func (p *PackCmd) Run(g *Global, root *CLI) error {
	ns, err := p.namespace(root.Config)
	if err != nil {
		return err
	}
	return RunPack(context.Background(), g, p.Dir, p.Output, ns)
}

// namespace prefers the flag, then the configuration file when one exists.
func (p *PackCmd) namespace(configPath string) (string, error) {
	if p.Namespace != "" {
		return p.Namespace, nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config.DefaultNamespace, nil
		}
		return "", err
	}
	return cfg.Modules.Namespace, nil
}

// RunPack packs dir into a base template archive at outPath. Content below
// namespace is left out, keeping only the empty directory entry, because
// modules are injected there at assembly time.
func RunPack(ctx context.Context, g *Global, dir, outPath, namespace string) error {
	if outPath == "" {
		outPath = config.DefaultTemplatePath
	}
	if namespace == "" {
		namespace = config.DefaultNamespace
	}
	if err := config.ValidateNamespace(namespace); err != nil {
		return err
	}

	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	skipped := 0
	data, err := archive.Pack(ctx, os.DirFS(dir),
		archive.ReserveDir(namespace),
		archive.OnSkip(func(p string) {
			skipped++
			logger.Warn("Leaving module namespace content out of template", logfields.Path(p))
		}))
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return derrors.IOFailure("write template", err).WithContext("path", outPath).Build()
	}

	_, _ = fmt.Fprintf(stdout(g), "%s (%d bytes)\n", outPath, len(data))
	if skipped > 0 {
		_, _ = fmt.Fprintf(stdout(g), "left out %d entries below %s/\n", skipped, namespace)
	}
	return nil
}
