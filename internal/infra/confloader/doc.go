// Package confloader loads layered configuration with koanf.
//
// Sources, lowest priority first:
//
//  1. Values already present in the target struct (defaults)
//  2. A YAML file
//  3. Environment variables with the RINGCHAT_ prefix
//  4. Explicit overrides, usually from command-line flags
//
// Environment keys separate sections with a double underscore so that
// single underscores can stay inside key names:
//
//	RINGCHAT_SERVER__CHAT__LOGIN_TIMEOUT=20s  ->  server.chat.login_timeout
//
// A Watcher reports writes to the config file so that reloadable settings
// can be applied without a restart.
package confloader
