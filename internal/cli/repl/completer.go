package repl

import (
	"sort"
	"strings"
)

// Completer knows the top-level admin commands.
type Completer struct {
	commands []string
}

// NewCompleter returns a completer for the ringchat-admin commands.
func NewCompleter() *Completer {
	cmds := []string{
		"users", "announce", "kick", "events", "leader", "elect",
		"health", "gen-token", "profile", "config", "help",
	}
	sort.Strings(cmds)
	return &Completer{commands: cmds}
}

// Known reports whether name is a command.
func (c *Completer) Known(name string) bool {
	i := sort.SearchStrings(c.commands, name)
	return i < len(c.commands) && c.commands[i] == name
}

// Complete returns the commands starting with prefix.
func (c *Completer) Complete(prefix string) []string {
	var out []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			out = append(out, cmd)
		}
	}
	return out
}
