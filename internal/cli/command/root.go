package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devansh-12/messaging-app/internal/cli/config"
	"github.com/devansh-12/messaging-app/internal/cli/connection"
	"github.com/devansh-12/messaging-app/internal/cli/output"
	"github.com/devansh-12/messaging-app/internal/infra/buildinfo"
)

// App creates the ringchat-admin application.
func App() *cli.App {
	return &cli.App{
		Name:                 "ringchat-admin",
		Usage:                "Operate a ringchat node through its control plane",
		Version:              buildinfo.String(),
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			UsersCommand(),
			AnnounceCommand(),
			KickCommand(),
			EventsCommand(),
			LeaderCommand(),
			ElectCommand(),
			HealthCommand(),
			GenTokenCommand(),
			ProfileCommand(),
			ConfigCommand(),
			ShellCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "control plane address, e.g. localhost:8000",
			EnvVars: []string{"RINGCHAT_ADMIN_SERVER"},
		},
		&cli.StringFlag{
			Name:    "token",
			Aliases: []string{"t"},
			Usage:   "admin bearer token",
			EnvVars: []string{"RINGCHAT_ADMIN_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "show extra columns",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "per-request timeout",
			Value: connection.DefaultTimeout,
		},
		&cli.StringFlag{
			Name:    "profile-file",
			Usage:   "saved profiles file",
			EnvVars: []string{"RINGCHAT_ADMIN_PROFILES"},
			Value:   config.DefaultPath(),
		},
	}
}

// GlobalFlags holds the resolved global options.
type GlobalFlags struct {
	Server  string
	Token   string
	Output  output.Format
	Wide    bool
	Timeout time.Duration
}

// ParseGlobalFlags merges flags with the active profile.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	profiles, err := config.Load(c.String("profile-file"))
	if err != nil {
		return nil, err
	}
	active := profiles.Active()

	g := &GlobalFlags{
		Server:  active.Server,
		Token:   active.Token,
		Wide:    c.Bool("wide"),
		Timeout: c.Duration("timeout"),
	}
	if s := c.String("server"); s != "" {
		g.Server = s
	}
	if tok := c.String("token"); tok != "" {
		g.Token = tok
	}

	format := active.Output
	if o := c.String("output"); o != "" {
		format = o
	}
	if g.Output, err = output.ParseFormat(format); err != nil {
		return nil, err
	}
	return g, nil
}

// clientFor builds an admin client from the resolved flags.
func clientFor(c *cli.Context) (*connection.Client, *GlobalFlags, error) {
	g, err := ParseGlobalFlags(c)
	if err != nil {
		return nil, nil, err
	}
	return connection.NewClient(g.Server, g.Token, g.Timeout), g, nil
}

// render writes data in the selected format.
func render(c *cli.Context, g *GlobalFlags, data any) error {
	return output.NewFormatter(g.Output, g.Wide).Format(c.App.Writer, data)
}

func requestContext(c *cli.Context, g *GlobalFlags) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, g.Timeout)
}

func printf(c *cli.Context, format string, args ...any) {
	fmt.Fprintf(c.App.Writer, format, args...)
}
