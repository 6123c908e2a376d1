package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/devansh-12/messaging-app/internal/telemetry/logger"
)

// Verify validates the configuration and reports every problem found.
func Verify(cfg *ServerConfig) error {
	var errs []error
	errs = append(errs, verifyServer(&cfg.Server)...)
	errs = append(errs, verifyCluster(cfg)...)
	errs = append(errs, verifyElection(&cfg.Election)...)
	errs = append(errs, verifyAuth(&cfg.Auth)...)
	errs = append(errs, verifyLog(&cfg.Log)...)
	return errors.Join(errs...)
}

// maxSocketPath is the smallest sun_path limit among supported platforms.
const maxSocketPath = 104

func verifyServer(cfg *ServerSection) []error {
	var errs []error

	addrs := map[string]string{
		"server.chat.addr":  cfg.Chat.Addr,
		"server.admin.addr": cfg.Admin.Addr,
		"server.peer.addr":  cfg.Peer.Addr,
	}
	used := make(map[string]string, len(addrs))
	for key, addr := range addrs {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		if other, dup := used[addr]; dup && addr != "" {
			errs = append(errs, fmt.Errorf("%s and %s both use %s", key, other, addr))
		}
		used[addr] = key
	}

	if cfg.Chat.LoginTimeout <= 0 {
		errs = append(errs, errors.New("server.chat.login_timeout must be positive"))
	}
	if cfg.Chat.SendBuffer < 1 {
		errs = append(errs, errors.New("server.chat.send_buffer must be at least 1"))
	}
	if cfg.Peer.Timeout <= 0 {
		errs = append(errs, errors.New("server.peer.timeout must be positive"))
	}
	if h := cfg.Admin.TokenHash; h != "" {
		if b, err := hex.DecodeString(h); err != nil || len(b) != 32 {
			errs = append(errs, errors.New("server.admin.token_hash must be 64 hex characters"))
		}
	}
	if cfg.Admin.MetricsAuth && cfg.Admin.TokenHash == "" {
		errs = append(errs, errors.New("server.admin.metrics_auth requires server.admin.token_hash"))
	}
	for _, entry := range cfg.Admin.AllowList {
		if _, _, err := net.ParseCIDR(entry); err == nil {
			continue
		}
		if net.ParseIP(entry) == nil {
			errs = append(errs, fmt.Errorf("server.admin.allow_list: invalid entry %q", entry))
		}
	}
	if len(cfg.Local.Socket) > maxSocketPath {
		errs = append(errs, fmt.Errorf("server.local.socket: path longer than %d bytes", maxSocketPath))
	}
	return errs
}

func verifyCluster(cfg *ServerConfig) []error {
	var errs []error
	if cfg.Node.ID < 0 {
		errs = append(errs, errors.New("node.id must not be negative"))
	}
	if _, err := StaticPeers(cfg, cfg.Node.ID); err != nil {
		errs = append(errs, err)
	}
	if g := cfg.Cluster.Gossip; g.Enabled && (g.BindPort < 0 || g.BindPort > 65535) {
		errs = append(errs, fmt.Errorf("cluster.gossip.bind_port %d out of range", g.BindPort))
	}
	return errs
}

func verifyElection(cfg *ElectionSection) []error {
	var errs []error
	if cfg.StartDelay < 0 {
		errs = append(errs, errors.New("election.start_delay must not be negative"))
	}
	if cfg.ForwardTimeout <= 0 {
		errs = append(errs, errors.New("election.forward_timeout must be positive"))
	}
	if cfg.Timeout < 0 {
		errs = append(errs, errors.New("election.timeout must not be negative"))
	}
	if cfg.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("election.heartbeat_interval must be positive"))
	}
	if cfg.HeartbeatTimeout <= cfg.HeartbeatInterval {
		errs = append(errs, errors.New("election.heartbeat_timeout must exceed election.heartbeat_interval"))
	}
	return errs
}

func verifyAuth(cfg *AuthSection) []error {
	var errs []error
	if cfg.BridgeURL != "" {
		u, err := url.Parse(cfg.BridgeURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("auth.bridge_url %q must be an http(s) URL", cfg.BridgeURL))
		}
	}
	if cfg.BridgeRetries < 0 {
		errs = append(errs, errors.New("auth.bridge_retries must not be negative"))
	}
	for name := range cfg.Users {
		if name == "" {
			errs = append(errs, errors.New("auth.users: empty username"))
		}
	}
	if cfg.RateLimit < 0 || cfg.RateBurst < 0 {
		errs = append(errs, errors.New("auth.rate_limit and auth.rate_burst must not be negative"))
	}
	return errs
}

func verifyLog(cfg *LogSection) []error {
	var errs []error
	if !logger.ValidLevel(cfg.Level) {
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level))
	}
	if cfg.Format != "json" && cfg.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format %q is not json or text", cfg.Format))
	}
	return errs
}
