package command

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devansh-12/messaging-app/internal/cli/config"
	"github.com/devansh-12/messaging-app/internal/cli/output"
)

// ProfileCommand manages saved control plane endpoints.
func ProfileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage saved server profiles",
		Subcommands: []*cli.Command{
			{
				Name:      "save",
				Usage:     "Save --server, --token and --output under NAME and use it",
				ArgsUsage: "NAME",
				Action:    profileSave,
			},
			{
				Name:      "use",
				Usage:     "Switch to a saved profile",
				ArgsUsage: "NAME",
				Action:    profileUse,
			},
			{
				Name:   "list",
				Usage:  "List saved profiles",
				Action: profileList,
			},
		},
	}
}

func profileSave(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return errors.New("profile name required")
	}
	path := c.String("profile-file")
	f, err := config.Load(path)
	if err != nil {
		return err
	}
	server := c.String("server")
	if server == "" {
		server = config.DefaultServer
	}
	f.Use(name, config.Profile{
		Server: server,
		Token:  c.String("token"),
		Output: c.String("output"),
	})
	if err := config.Save(f, path); err != nil {
		return err
	}
	printf(c, "Saved profile %s (%s).\n", name, server)
	return nil
}

func profileUse(c *cli.Context) error {
	name := c.Args().First()
	path := c.String("profile-file")
	f, err := config.Load(path)
	if err != nil {
		return err
	}
	p, ok := f.Profiles[name]
	if !ok {
		return fmt.Errorf("no profile named %q", name)
	}
	f.Use(name, p)
	if err := config.Save(f, path); err != nil {
		return err
	}
	printf(c, "Using profile %s (%s).\n", name, p.Server)
	return nil
}

func profileList(c *cli.Context) error {
	f, err := config.Load(c.String("profile-file"))
	if err != nil {
		return err
	}
	t := &output.Table{Headers: []string{"CURRENT", "NAME", "SERVER", "TOKEN"}}
	for _, name := range f.Names() {
		p := f.Profiles[name]
		current, tok := "", "-"
		if name == f.Current {
			current = "*"
		}
		if p.Token != "" {
			tok = "set"
		}
		t.AddRow(current, name, p.Server, tok)
	}
	return t.Render(c.App.Writer)
}
