// Package repl runs ringchat-admin commands interactively.
//
// Each line is split shell-style and handed to an Executor, normally the
// same urfave/cli app used for one-shot commands, so the shell and the
// command line accept identical syntax.
package repl
