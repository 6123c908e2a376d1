// Package main provides the entry point for ringchat-server.
//
// ringchat-server is one node of a ring-election chat cluster. Each process
// opens three listeners:
//
//   - a websocket endpoint for chat clients
//   - an admin endpoint with the AdminService, health probes and metrics
//   - a peer endpoint carrying election, coordinator and heartbeat RPCs
//   - optionally, a Unix socket for local management (server.local.socket)
//
// Usage:
//
//	ringchat-server [flags]
//	ringchat-server --config /etc/ringchat/server.yaml --node-id 3
//
// Configuration comes from the optional YAML file, then RINGCHAT_*
// environment variables, then flags. Changing log.level in the file takes
// effect without a restart.
package main
