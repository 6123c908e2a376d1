package command

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/devansh-12/messaging-app/internal/cli/output"
	"github.com/devansh-12/messaging-app/internal/infra/confloader"
	serverconfig "github.com/devansh-12/messaging-app/internal/server/config"
)

// ConfigCommand works with node configuration files locally.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Check node configuration files",
		Subcommands: []*cli.Command{
			{
				Name:      "check",
				Usage:     "Validate a node config file with the environment applied",
				ArgsUsage: "FILE",
				Action:    configCheck,
			},
			{
				Name:      "show",
				Usage:     "Print the effective node config with secrets masked",
				ArgsUsage: "[FILE]",
				Action:    configShow,
			},
		},
	}
}

func loadServerConfig(path string) (*serverconfig.ServerConfig, error) {
	cfg := serverconfig.Default()
	if err := confloader.NewLoader(confloader.WithConfigFile(path)).Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configCheck(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("config file required")
	}
	cfg, err := loadServerConfig(path)
	if err != nil {
		return err
	}
	if err := serverconfig.Verify(cfg); err != nil {
		return fmt.Errorf("%s is invalid:\n%w", path, err)
	}
	printf(c, "%s is valid.\n", path)
	return nil
}

func configShow(c *cli.Context) error {
	g, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	cfg, err := loadServerConfig(c.Args().First())
	if err != nil {
		return err
	}
	sanitized := serverconfig.Sanitize(cfg)
	if g.Output == output.FormatJSON {
		return render(c, g, sanitized)
	}
	// yaml.v3 writes durations as "15s", so the output can be pasted back
	// into a config file.
	enc := yaml.NewEncoder(c.App.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(sanitized); err != nil {
		return err
	}
	return enc.Close()
}
