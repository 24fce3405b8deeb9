package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"codexmate/internal/core"
	"codexmate/internal/util"
	"codexmate/internal/version"
)

// ConfigCommand returns the config.toml subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect or replace config.toml",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the settings tree as JSON",
				Action: configShow,
			},
			{
				Name:   "raw",
				Usage:  "Print config.toml as text",
				Action: configRaw,
			},
			{
				Name:      "edit",
				Usage:     "Replace config.toml with the given TOML (FILE, or - for stdin)",
				ArgsUsage: "[FILE|-]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "backup", Usage: "Copy the current file aside first"},
				},
				Action: configEdit,
			},
			{
				Name:   "paths",
				Usage:  "Print the files codexmate manages",
				Action: configPaths,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	doc, err := manager(c).FullSettings(ctx(c))
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, doc)
}

func configRaw(c *cli.Context) error {
	text, err := manager(c).ReadRaw(ctx(c))
	if err != nil {
		return err
	}
	_, err = io.WriteString(c.App.Writer, text)
	return err
}

func configEdit(c *cli.Context) error {
	if c.NArg() > 1 {
		return core.Validationf("config edit", "usage: %s [FILE|-]", c.Command.FullName())
	}
	var (
		b   []byte
		err error
	)
	switch src := c.Args().First(); src {
	case "", "-":
		r := c.App.Reader
		if r == nil {
			r = os.Stdin
		}
		b, err = io.ReadAll(r)
	default:
		b, err = os.ReadFile(src)
	}
	if err != nil {
		return core.IOError("config edit", err)
	}
	backup := config(c).Backup
	if c.IsSet("backup") {
		backup = c.Bool("backup")
	}
	if err := manager(c).WriteRaw(ctx(c), string(b), backup); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "config.toml updated")
	return nil
}

func configPaths(c *cli.Context) error {
	l := config(c).Layout()
	t := &table{}
	t.add("base", l.Base)
	t.add("settings", l.Settings)
	t.add("credentials", l.Credentials)
	t.add("auth", l.Auth)
	t.add("tool config", l.ToolConfig)
	return t.render(c.App.Writer)
}

// CredsCommand returns the credential listing command.
func CredsCommand() *cli.Command {
	return &cli.Command{
		Name:  "creds",
		Usage: "Inspect stored credentials",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List stored credentials with masked keys",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "reveal", Usage: "Print keys in full"},
				},
				Action: credsList,
			},
		},
	}
}

func credsList(c *cli.Context) error {
	creds := manager(c).AllCredentials(ctx(c))
	w := c.App.Writer
	if len(creds) == 0 {
		fmt.Fprintln(w, "no credentials stored")
		return nil
	}
	t := &table{headers: []string{"NAME", core.SecretKeyField}}
	for _, name := range core.SortedKeys(creds) {
		key := creds[name].SecretKey
		if !c.Bool("reveal") {
			key = util.Mask(key)
		}
		t.add(name, orDash(key))
	}
	return t.render(w)
}

// VersionCommand prints codexmate's version and the installed codex.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show codexmate and codex versions",
		Action: func(c *cli.Context) error {
			w := c.App.Writer
			fmt.Fprintf(w, "%s %s\n", version.Name, version.Version)
			v := version.ProbeCodex(ctx(c))
			switch {
			case v.Installed && v.Version != nil:
				fmt.Fprintf(w, "codex %s\n", *v.Version)
			case v.Error != nil:
				fmt.Fprintf(w, "codex: %s\n", *v.Error)
			default:
				fmt.Fprintln(w, "codex: not installed")
			}
			return nil
		},
	}
}
