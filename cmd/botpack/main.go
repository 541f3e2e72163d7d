package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/botpack/cmd/botpack/commands"
	derrors "git.home.luguber.info/inful/botpack/internal/foundation/errors"
	"git.home.luguber.info/inful/botpack/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("botpack"),
		kong.Description("Assemble personalized bot launcher packages from a base template and selected modules."),
		kong.Vars{"version": version.String()},
		kong.UsageOnError(),
	)

	global := &commands.Global{Logger: slog.Default(), Stdout: os.Stdout}
	err := parser.Run(global, cli)
	derrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
