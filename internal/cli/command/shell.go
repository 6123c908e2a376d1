package command

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/devansh-12/messaging-app/internal/cli/repl"
)

// ShellCommand starts an interactive session. Global flags given to the
// shell apply to every command typed in it.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:    "shell",
		Aliases: []string{"repl"},
		Usage:   "Run commands interactively",
		Action:  shellAction,
	}
}

func shellAction(c *cli.Context) error {
	inherited := inheritedFlags(c)
	exec := func(ctx context.Context, args []string) error {
		app := App()
		app.Reader = c.App.Reader
		app.Writer = c.App.Writer
		app.ErrWriter = c.App.ErrWriter
		argv := append([]string{app.Name}, inherited...)
		return app.RunContext(ctx, append(argv, args...))
	}

	history := repl.NewHistory(repl.DefaultHistoryFile())
	if err := history.Load(); err != nil {
		printf(c, "warning: history not loaded: %v\n", err)
	}
	defer history.Save()

	r := repl.New(exec,
		repl.WithIO(c.App.Reader, c.App.Writer),
		repl.WithHistory(history),
	)
	return r.Run(c.Context)
}

func inheritedFlags(c *cli.Context) []string {
	var args []string
	for _, name := range []string{"server", "token", "output", "profile-file"} {
		if c.IsSet(name) {
			args = append(args, "--"+name, c.String(name))
		}
	}
	if c.IsSet("wide") {
		args = append(args, "--wide")
	}
	if c.IsSet("timeout") {
		args = append(args, "--timeout", c.Duration("timeout").String())
	}
	return args
}
