package command

import (
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/devansh-12/messaging-app/internal/cli/output"
)

// DefaultEventLimit is the events command's default page size.
const DefaultEventLimit = 20

// EventsCommand prints the node's event log.
func EventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Show the most recent event log entries",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "number of entries",
				Value:   DefaultEventLimit,
			},
		},
		Action: eventsAction,
	}
}

func eventsAction(c *cli.Context) error {
	limit := c.Int("limit")
	if limit < 1 {
		return errors.New("--limit must be at least 1")
	}
	client, g, err := clientFor(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, g)
	defer cancel()

	events, err := client.Events(ctx, limit)
	if err != nil {
		return err
	}
	if g.Output == output.FormatTable && len(events) == 0 {
		printf(c, "No events.\n")
		return nil
	}
	return render(c, g, events)
}
