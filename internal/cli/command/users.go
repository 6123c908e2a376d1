package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/devansh-12/messaging-app/internal/cli/output"
)

// UsersCommand lists the users online on the node.
func UsersCommand() *cli.Command {
	return &cli.Command{
		Name:   "users",
		Usage:  "List users connected to the node",
		Action: usersAction,
	}
}

func usersAction(c *cli.Context) error {
	client, g, err := clientFor(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, g)
	defer cancel()

	users, err := client.Users(ctx)
	if err != nil {
		return err
	}
	if g.Output == output.FormatTable && len(users) == 0 {
		printf(c, "No users online.\n")
		return nil
	}
	return render(c, g, users)
}

// AnnounceCommand broadcasts a system message.
func AnnounceCommand() *cli.Command {
	return &cli.Command{
		Name:      "announce",
		Usage:     "Send a system message to every user on the node",
		ArgsUsage: "MESSAGE...",
		Action:    announceAction,
	}
}

func announceAction(c *cli.Context) error {
	message := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if message == "" {
		return errors.New("message required")
	}
	client, g, err := clientFor(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, g)
	defer cancel()

	ok, err := client.Announce(ctx, message)
	if err != nil {
		return err
	}
	if g.Output != output.FormatTable {
		return render(c, g, map[string]bool{"success": ok})
	}
	if !ok {
		return errors.New("announcement rejected")
	}
	printf(c, "Announcement sent.\n")
	return nil
}

// KickCommand disconnects a user.
func KickCommand() *cli.Command {
	return &cli.Command{
		Name:      "kick",
		Usage:     "Disconnect a user from the node",
		ArgsUsage: "USERNAME",
		Action:    kickAction,
	}
}

func kickAction(c *cli.Context) error {
	username := c.Args().First()
	if username == "" {
		return errors.New("username required")
	}
	client, g, err := clientFor(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, g)
	defer cancel()

	ok, err := client.Kick(ctx, username)
	if err != nil {
		return err
	}
	if g.Output != output.FormatTable {
		return render(c, g, map[string]bool{"success": ok})
	}
	if !ok {
		return fmt.Errorf("user %s is not online", username)
	}
	printf(c, "Kicked %s.\n", username)
	return nil
}
