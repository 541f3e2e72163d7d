package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"git.home.luguber.info/inful/botpack/internal/config"
	derrors "git.home.luguber.info/inful/botpack/internal/foundation/errors"
	"git.home.luguber.info/inful/botpack/internal/logfields"
	"git.home.luguber.info/inful/botpack/internal/packaging"
)

// AssembleCmd implements the 'assemble' command.
type AssembleCmd struct {
	Output  string        `short:"o" help:"Output file (defaults to output.name from the configuration)"`
	Timeout time.Duration `help:"Abort the assembly after this long (0 disables)" default:"0"`
	Modules []string      `arg:"" name:"module" help:"Module identifiers to include"`
}

func (a *AssembleCmd) Run(g *Global, root *CLI) error {
	cfg, logger, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}
	return RunAssemble(ctx, g, cfg, logger, a.Modules, a.Output)
}

// RunAssemble assembles one package and writes it to outPath.
func RunAssemble(ctx context.Context, g *Global, cfg *config.Config, logger *slog.Logger, ids []string, outPath string) error {
	svc, err := packaging.New(cfg, packaging.WithLogger(logger))
	if err != nil {
		return err
	}

	out, err := svc.Package(ctx, ids)
	if err != nil {
		return err
	}

	if outPath == "" {
		outPath = out.Name
	}
	if err := os.WriteFile(outPath, out.Data, 0o644); err != nil {
		return derrors.IOFailure("write package", err).WithContext("path", outPath).Build()
	}

	logger.Info("Package written", logfields.Path(outPath), logfields.Bytes(out.Size))
	_, _ = fmt.Fprintf(stdout(g), "%s (%d bytes)\n", outPath, out.Size)
	return nil
}
