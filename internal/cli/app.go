// Package cli defines the codexmate command line.
//
// It uses urfave/cli/v2. Running without a command starts the TUI.
package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"codexmate/internal/appconf"
	"codexmate/internal/core"
	"codexmate/internal/logger"
	"codexmate/internal/node"
	"codexmate/internal/ui"
	"codexmate/internal/version"
)

const (
	metaManager = "manager"
	metaConfig  = "config"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    version.Name,
		Usage:   "manage codex providers, credentials, MCP servers and trusted projects",
		Version: version.Version,
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			NodesCommand(),
			MCPCommand(),
			ProjectsCommand(),
			ConfigCommand(),
			CredsCommand(),
			VersionCommand(),
			{
				Name:   "tui",
				Usage:  "Start the terminal UI",
				Action: runTUI,
			},
		},
		Before: setup,
		Action: runTUI,
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "home",
			Usage: "codex base directory (default $CODEX_HOME or ~/.codex)",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "codexmate config file (YAML)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "text or json",
		},
	}
}

func setup(c *cli.Context) error {
	cfg, err := appconf.Load(appconf.Options{
		File: c.String("config"),
		Overrides: map[string]string{
			"home":       c.String("home"),
			"log.level":  c.String("log-level"),
			"log.format": c.String("log-format"),
		},
	})
	if err != nil {
		return err
	}
	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: c.App.ErrWriter,
	})
	logger.SetDefault(log)
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[metaConfig] = cfg
	c.App.Metadata[metaManager] = node.Open(cfg.Layout(), log)
	c.Context = logger.WithLogger(c.Context, log)
	return nil
}

func manager(c *cli.Context) *node.Manager {
	return c.App.Metadata[metaManager].(*node.Manager)
}

func config(c *cli.Context) *appconf.Config {
	return c.App.Metadata[metaConfig].(*appconf.Config)
}

func ctx(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}

func runTUI(c *cli.Context) error {
	if c.Args().Present() {
		return fmt.Errorf("unknown command: %s", c.Args().First())
	}
	return ui.Run(ctx(c), manager(c))
}

func requireArgs(c *cli.Context, n int, usage string) error {
	if c.NArg() != n {
		return core.Validationf(c.Command.Name, "usage: %s %s", c.Command.FullName(), usage)
	}
	return nil
}

// ExitCode maps an error onto the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch core.KindOf(err) {
	case core.KindValidation:
		return 2
	case core.KindNotFound:
		return 3
	case core.KindParse:
		return 4
	default:
		return 1
	}
}
