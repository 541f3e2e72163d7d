package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"git.home.luguber.info/inful/botpack/internal/catalog"
	"git.home.luguber.info/inful/botpack/internal/config"
)

// ListCmd implements the 'list' command.
type ListCmd struct {
	JSON bool `name:"json" help:"Print the catalog as JSON"`
}

func (l *ListCmd) Run(g *Global, root *CLI) error {
	cfg, _, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	return RunList(context.Background(), g, cfg, l.JSON)
}

// RunList prints the module catalog, one identifier per line.
func RunList(ctx context.Context, g *Global, cfg *config.Config, asJSON bool) error {
	cat := catalog.New(os.DirFS(cfg.Modules.Root), cfg.Modules.Extension, catalog.WithLogger(g.Logger))
	modules, err := cat.List(ctx)
	if err != nil {
		return err
	}

	out := stdout(g)
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(modules)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, m := range modules {
		_, _ = fmt.Fprintf(tw, "%s\t%d\n", m.ID, m.Size)
	}
	return tw.Flush()
}
