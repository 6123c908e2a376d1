package command

import (
	"bufio"
	"errors"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/devansh-12/messaging-app/internal/cli/output"
	"github.com/devansh-12/messaging-app/pkg/token"
)

// GenTokenCommand creates an admin token and the hash the server stores.
func GenTokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "gen-token",
		Usage: "Generate an admin token and its server.admin.token_hash value",
		Subcommands: []*cli.Command{
			{
				Name:      "password",
				Usage:     "Hash a chat user password for auth.users (read from stdin)",
				ArgsUsage: " ",
				Action:    hashPasswordAction,
			},
		},
		Action: genTokenAction,
	}
}

func genTokenAction(c *cli.Context) error {
	g, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	tok, err := token.Generate()
	if err != nil {
		return err
	}
	hash := token.Hash(tok)

	if g.Output != output.FormatTable {
		return render(c, g, map[string]string{"token": tok, "tokenHash": hash})
	}
	printf(c, "token:      %s\n", tok)
	printf(c, "token_hash: %s\n", hash)
	printf(c, "\nPut token_hash under server.admin in the node config and keep the token secret.\n")
	return nil
}

func hashPasswordAction(c *cli.Context) error {
	line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
	if err != nil && line == "" {
		return errors.New("password required on stdin")
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("password required on stdin")
	}
	hash, err := token.HashPassword(password)
	if err != nil {
		return err
	}
	printf(c, "%s\n", hash)
	return nil
}
