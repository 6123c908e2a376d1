// Package command defines the ringchat-admin command tree.
//
// Every command that talks to a node resolves its target from, in order,
// the --server/--token flags (or RINGCHAT_ADMIN_* variables), the current
// saved profile, and finally localhost:8000.
package command
