// Package main provides the entry point for ringchat-admin.
//
// ringchat-admin is the command-line control tool for a ringchat node,
// supporting both single-command mode and an interactive shell.
package main
