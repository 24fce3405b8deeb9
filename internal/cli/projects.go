package cli

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"codexmate/internal/core"
)

// ProjectsCommand returns the trusted project subcommand group.
func ProjectsCommand() *cli.Command {
	return &cli.Command{
		Name:  "projects",
		Usage: "Manage trusted project directories",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List trusted projects",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "JSON output"}},
				Action: projectsList,
			},
			{
				Name:      "trust",
				Usage:     "Trust a project directory",
				ArgsUsage: "[options] PATH",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "level", Value: core.DefaultTrustLevel, Usage: "Trust level"},
				},
				Action: projectsTrust,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Forget a project directory",
				ArgsUsage: "[options] PATH",
				Action:    projectsDelete,
			},
		},
	}
}

func projectsList(c *cli.Context) error {
	projects, err := manager(c).Projects(ctx(c))
	if err != nil {
		return err
	}
	w := c.App.Writer
	if c.Bool("json") {
		out := make(map[string]any, len(projects))
		for _, p := range projects {
			out[p.Path] = map[string]any{core.FieldTrustLevel: p.TrustLevel}
		}
		return printJSON(w, out)
	}
	if len(projects) == 0 {
		fmt.Fprintln(w, "no trusted projects")
		return nil
	}
	t := &table{headers: []string{"PATH", "TRUST LEVEL"}}
	for _, p := range projects {
		t.add(p.Path, orDash(p.TrustLevel))
	}
	return t.render(w)
}

// projectPath resolves a relative argument against the working directory.
func projectPath(arg string) (string, error) {
	if arg == "" || filepath.IsAbs(arg) {
		return arg, nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", core.IOError("resolve project path", err)
	}
	return abs, nil
}

func projectsTrust(c *cli.Context) error {
	if err := requireArgs(c, 1, "PATH"); err != nil {
		return err
	}
	path, err := projectPath(c.Args().First())
	if err != nil {
		return err
	}
	if err := manager(c).TrustProject(ctx(c), path, c.String("level")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "trusted %s\n", path)
	return nil
}

func projectsDelete(c *cli.Context) error {
	if err := requireArgs(c, 1, "PATH"); err != nil {
		return err
	}
	path, err := projectPath(c.Args().First())
	if err != nil {
		return err
	}
	if err := manager(c).DeleteProject(ctx(c), path); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "removed %s\n", path)
	return nil
}
