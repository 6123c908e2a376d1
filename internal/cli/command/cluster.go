package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	rpcv1 "github.com/devansh-12/messaging-app/api/rpc/v1"
	"github.com/devansh-12/messaging-app/internal/cli/connection"
	"github.com/devansh-12/messaging-app/internal/cli/output"
)

const electPollInterval = 250 * time.Millisecond

// LeaderCommand shows the node's ring and leader.
func LeaderCommand() *cli.Command {
	return &cli.Command{
		Name:   "leader",
		Usage:  "Show the current leader and ring membership",
		Action: leaderAction,
	}
}

func leaderAction(c *cli.Context) error {
	client, g, err := clientFor(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, g)
	defer cancel()

	info, err := client.Leader(ctx)
	if err != nil {
		return err
	}
	if g.Output != output.FormatTable {
		return render(c, g, info)
	}
	return render(c, g, ringTable(info))
}

func ringTable(info *rpcv1.GetLeaderInfoResponse) *output.Table {
	t := &output.Table{Headers: []string{"NODE", "ROLE"}}
	for _, id := range info.RingNodes {
		var roles []string
		if info.CurrentLeader != nil && *info.CurrentLeader == id {
			roles = append(roles, "leader")
		}
		if id == info.MyID {
			roles = append(roles, "self")
		}
		role := strings.Join(roles, ",")
		if role == "" {
			role = "-"
		}
		t.AddRow(strconv.FormatInt(id, 10), role)
	}
	return t
}

// ElectCommand starts an election, optionally waiting for a leader.
func ElectCommand() *cli.Command {
	return &cli.Command{
		Name:  "elect",
		Usage: "Start a leader election from the node",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "wait",
				Usage: "wait up to this long for a leader to be announced",
			},
		},
		Action: electAction,
	}
}

func electAction(c *cli.Context) error {
	client, g, err := clientFor(c)
	if err != nil {
		return err
	}

	var before *int64
	wait := c.Duration("wait")
	if wait > 0 {
		ctx, cancel := requestContext(c, g)
		info, err := client.Leader(ctx)
		cancel()
		if err != nil {
			return err
		}
		before = info.CurrentLeader
	}

	ctx, cancel := requestContext(c, g)
	started, err := client.Elect(ctx)
	cancel()
	if err != nil {
		return err
	}
	if !started {
		return errors.New("election not started")
	}
	if wait <= 0 {
		if g.Output != output.FormatTable {
			return render(c, g, map[string]bool{"electionStarted": true})
		}
		printf(c, "Election started.\n")
		return nil
	}

	spin := output.NewSpinner(c.App.ErrWriter, "waiting for a coordinator message")
	spin.Start()
	info, err := awaitLeader(c.Context, client, before, wait)
	if err != nil {
		spin.Fail(err.Error())
		return err
	}
	spin.Success(fmt.Sprintf("leader is node %d", *info.CurrentLeader))
	if g.Output != output.FormatTable {
		return render(c, g, info)
	}
	return nil
}

// awaitLeader polls until the node reports a leader. A leader that was
// already known before the election only counts once it has been cleared
// and set again, or changed.
func awaitLeader(ctx context.Context, client *connection.Client, before *int64, wait time.Duration) (*rpcv1.GetLeaderInfoResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(electPollInterval)
	defer ticker.Stop()

	cleared := before == nil
	for {
		info, err := client.Leader(ctx)
		if err == nil {
			switch {
			case info.CurrentLeader == nil:
				cleared = true
			case cleared || *info.CurrentLeader != *before:
				return info, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("no leader within %s", wait)
		case <-ticker.C:
		}
	}
}

// HealthCommand probes the node's liveness endpoint.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Check that the node's control plane is up",
		Action: healthAction,
	}
}

func healthAction(c *cli.Context) error {
	client, g, err := clientFor(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, g)
	defer cancel()

	status, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("%s is unhealthy: %w", client.BaseURL(), err)
	}
	if g.Output != output.FormatTable {
		return render(c, g, map[string]string{"status": status, "target": client.BaseURL()})
	}
	printf(c, "%s is %s\n", client.BaseURL(), status)
	return nil
}
