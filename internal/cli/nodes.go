package cli

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"codexmate/internal/codec"
	"codexmate/internal/core"
	"codexmate/internal/store"
)

// NodesCommand returns the provider subcommand group.
func NodesCommand() *cli.Command {
	return &cli.Command{
		Name:    "nodes",
		Aliases: []string{"providers", "p"},
		Usage:   "Manage model providers and their credentials",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List providers",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "JSON output"},
				},
				Action: nodesList,
			},
			{
				Name:      "switch",
				Aliases:   []string{"use"},
				Usage:     "Make a provider active and write its key to auth.json",
				ArgsUsage: "[options] NAME",
				Action:    nodesSwitch,
			},
			{
				Name:      "set",
				Usage:     "Create or update a provider",
				ArgsUsage: "[options] NAME",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "base-url", Usage: "Provider endpoint"},
					&cli.StringFlag{Name: "wire-api", Usage: "Wire protocol (default responses)"},
					&cli.BoolFlag{Name: "requires-auth", Usage: "Set requires_openai_auth"},
					&cli.StringFlag{Name: "fields", Usage: "Extra fields as a JSON object"},
					&cli.StringFlag{Name: "key", Usage: "Secret key to store"},
					&cli.BoolFlag{Name: "dry-run", Usage: "Show the change without writing"},
				},
				Action: nodesSet,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a provider and its credential",
				ArgsUsage: "[options] NAME",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Allow deleting the active provider",
					},
				},
				Action: nodesDelete,
			},
			{
				Name:      "key",
				Usage:     "Store the secret key of a provider",
				ArgsUsage: "NAME KEY",
				Action:    nodesKey,
			},
		},
	}
}

func nodesList(c *cli.Context) error {
	nodes, err := manager(c).List(ctx(c))
	if err != nil {
		return err
	}
	w := c.App.Writer
	if c.Bool("json") {
		out := make([]map[string]any, 0, len(nodes))
		for _, n := range nodes {
			m := map[string]any{core.FieldName: n.Name}
			if n.Provider != nil {
				m = store.ProviderToMap(*n.Provider)
			}
			m["is_active"] = n.IsActive
			m["has_credential"] = n.HasCredential
			out = append(out, m)
		}
		return printJSON(w, out)
	}
	if len(nodes) == 0 {
		fmt.Fprintln(w, "no providers configured")
		return nil
	}
	t := &table{headers: []string{"", "NAME", "BASE URL", "WIRE API", "KEY"}}
	for _, n := range nodes {
		mark := ""
		if n.IsActive {
			mark = "*"
		}
		var p core.Provider
		if n.Provider != nil {
			p = *n.Provider
		}
		t.add(mark, n.Name, orDash(p.BaseURL), orDash(p.WireAPI), yesNo(n.HasCredential))
	}
	return t.render(w)
}

func nodesSwitch(c *cli.Context) error {
	if err := requireArgs(c, 1, "NAME"); err != nil {
		return err
	}
	name := c.Args().First()
	if err := manager(c).Switch(ctx(c), name); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "switched to %s\n", name)
	return nil
}

// setFields collects the provider fields given on the command line. Named
// flags win over the same keys in --fields.
func setFields(c *cli.Context) (map[string]any, error) {
	fields := map[string]any{}
	if raw := strings.TrimSpace(c.String("fields")); raw != "" {
		obj, err := codec.ParseObject("set provider", []byte(raw))
		if err != nil {
			return nil, err
		}
		fields = obj
	}
	if c.IsSet("base-url") {
		fields[core.FieldBaseURL] = c.String("base-url")
	}
	if c.IsSet("wire-api") {
		fields[core.FieldWireAPI] = c.String("wire-api")
	}
	if c.IsSet("requires-auth") {
		fields[core.FieldRequiresAuth] = c.Bool("requires-auth")
	}
	return fields, nil
}

func nodesSet(c *cli.Context) error {
	if err := requireArgs(c, 1, "NAME"); err != nil {
		return err
	}
	name := c.Args().First()
	fields, err := setFields(c)
	if err != nil {
		return err
	}
	m := manager(c)
	w := c.App.Writer

	if c.Bool("dry-run") {
		before, after, err := m.Plan(ctx(c), name, fields)
		if err != nil {
			return err
		}
		if before == nil {
			fmt.Fprintf(w, "would create %s\n", name)
		} else {
			fmt.Fprintf(w, "would update %s\n", name)
		}
		fmt.Fprint(w, core.Diff(before, after))
		if c.IsSet("key") {
			fmt.Fprintln(w, "+ credential")
		}
		return nil
	}

	p, err := m.Upsert(ctx(c), name, fields, c.String("key"))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "saved %s (%s, %s)\n", p.Name, p.BaseURL, p.WireAPI)
	return nil
}

func nodesDelete(c *cli.Context) error {
	if err := requireArgs(c, 1, "NAME"); err != nil {
		return err
	}
	name := c.Args().First()
	if err := manager(c).Delete(ctx(c), name, c.Bool("force")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "deleted %s\n", name)
	return nil
}

func nodesKey(c *cli.Context) error {
	if err := requireArgs(c, 2, "NAME KEY"); err != nil {
		return err
	}
	name, key := c.Args().Get(0), c.Args().Get(1)
	if err := manager(c).SetCredential(ctx(c), name, key); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "stored key for %s\n", name)
	return nil
}
