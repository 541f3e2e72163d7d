// Package commands implements the botpack subcommands.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/botpack/internal/config"
)

// Global carries state shared by all subcommands.
type Global struct {
	Logger *slog.Logger
	Stdout io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"botpack.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Serve    ServeCmd    `cmd:"" help:"Serve the module selector and package downloads over HTTP"`
	List     ListCmd     `cmd:"" help:"List selectable module identifiers"`
	Assemble AssembleCmd `cmd:"" help:"Assemble one package and write it to a file"`
	Pack     PackCmd     `cmd:"" help:"Build a base template archive from a directory"`
	Sync     SyncCmd     `cmd:"" help:"Synchronize the module root from its git repository once"`
	Init     InitCmd     `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// loadConfig loads the configuration named by the global flag and replaces
// the default logger with one following its logging section.
func loadConfig(g *Global, root *CLI) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.Logging.NewLogger(os.Stderr, root.Verbose)
	slog.SetDefault(logger)
	g.Logger = logger
	return cfg, logger, nil
}

func stdout(g *Global) io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}
