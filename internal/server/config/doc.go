// Package config defines the ringchat server configuration.
//
// ServerConfig groups the listeners (server.chat, server.admin, server.peer,
// server.local), node identity, cluster membership (static peers and
// optional gossip), election timing, authentication and logging. Default
// returns a config that runs a single node on the standard ports; Verify
// rejects values the node cannot start with; Sanitize masks secrets before
// the config is logged.
//
// Values reach ServerConfig through internal/infra/confloader, which layers
// a YAML file, RINGCHAT_ environment variables and command line overrides on
// top of Default.
package config
