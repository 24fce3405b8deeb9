package cli

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"codexmate/internal/node"
)

// MCPCommand returns the MCP server subcommand group.
func MCPCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Manage MCP servers",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List MCP servers",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "JSON output"}},
				Action: mcpList,
			},
			{
				Name:      "set",
				Usage:     "Create or replace an MCP server",
				ArgsUsage: "[options] NAME",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "command", Aliases: []string{"c"}, Usage: "Executable", Required: true},
					&cli.StringSliceFlag{Name: "arg", Aliases: []string{"a"}, Usage: "Argument (repeatable)"},
				},
				Action: mcpSet,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete an MCP server",
				ArgsUsage: "[options] NAME",
				Action:    mcpDelete,
			},
			{
				Name:   "context7",
				Usage:  "Add the context7 documentation server",
				Action: mcpContext7,
			},
		},
	}
}

func mcpList(c *cli.Context) error {
	servers, err := manager(c).Servers(ctx(c))
	if err != nil {
		return err
	}
	w := c.App.Writer
	if c.Bool("json") {
		out := make(map[string]any, len(servers))
		for _, s := range servers {
			out[s.Name] = map[string]any{"command": s.Command, "args": s.Args}
		}
		return printJSON(w, out)
	}
	if len(servers) == 0 {
		fmt.Fprintln(w, "no mcp servers configured")
		return nil
	}
	t := &table{headers: []string{"NAME", "COMMAND", "ARGS"}}
	for _, s := range servers {
		t.add(s.Name, s.Command, strings.Join(s.Args, " "))
	}
	return t.render(w)
}

func mcpSet(c *cli.Context) error {
	if err := requireArgs(c, 1, "NAME"); err != nil {
		return err
	}
	name := c.Args().First()
	if err := manager(c).UpsertServer(ctx(c), name, c.String("command"), c.StringSlice("arg")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "saved mcp server %s\n", name)
	return nil
}

func mcpDelete(c *cli.Context) error {
	if err := requireArgs(c, 1, "NAME"); err != nil {
		return err
	}
	name := c.Args().First()
	if err := manager(c).DeleteServer(ctx(c), name); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "deleted mcp server %s\n", name)
	return nil
}

func mcpContext7(c *cli.Context) error {
	if err := manager(c).AddContext7(ctx(c)); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "saved mcp server %s\n", node.Context7Name)
	return nil
}
