package config

import "time"

// ServerConfig is the root configuration for ringchat-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server" json:"server" yaml:"server"`
	Node     NodeSection     `koanf:"node" json:"node" yaml:"node"`
	Cluster  ClusterSection  `koanf:"cluster" json:"cluster" yaml:"cluster"`
	Election ElectionSection `koanf:"election" json:"election" yaml:"election"`
	Auth     AuthSection     `koanf:"auth" json:"auth" yaml:"auth"`
	Log      LogSection      `koanf:"log" json:"log" yaml:"log"`
}

// ServerSection configures the listeners.
type ServerSection struct {
	Chat  ChatConfig  `koanf:"chat" json:"chat" yaml:"chat"`
	Admin AdminConfig `koanf:"admin" json:"admin" yaml:"admin"`
	Peer  PeerConfig  `koanf:"peer" json:"peer" yaml:"peer"`
	Local LocalConfig `koanf:"local" json:"local" yaml:"local"`
}

// LocalConfig configures the local management socket.
type LocalConfig struct {
	// Socket is the Unix socket path. Empty disables the socket.
	Socket string `koanf:"socket" json:"socket" yaml:"socket"`
}

// ChatConfig configures the client websocket listener.
type ChatConfig struct {
	Addr         string        `koanf:"addr" json:"addr" yaml:"addr"`
	LoginTimeout time.Duration `koanf:"login_timeout" json:"login_timeout" yaml:"login_timeout"`
	SendBuffer   int           `koanf:"send_buffer" json:"send_buffer" yaml:"send_buffer"`
	ReadLimit    int64         `koanf:"read_limit" json:"read_limit" yaml:"read_limit"`
}

// AdminConfig configures the control plane listener.
type AdminConfig struct {
	Addr string `koanf:"addr" json:"addr" yaml:"addr"`

	// TokenHash is the SHA-256 hex of the admin bearer token, as printed by
	// "ringchat-admin gen-token". Empty leaves the control plane open.
	TokenHash string `koanf:"token_hash" json:"token_hash" yaml:"token_hash"`

	// MetricsAuth also requires the admin token on /metrics.
	MetricsAuth bool `koanf:"metrics_auth" json:"metrics_auth" yaml:"metrics_auth"`

	// AllowList restricts admin calls to these IPs or CIDRs.
	AllowList []string `koanf:"allow_list" json:"allow_list" yaml:"allow_list"`

	// RateLimit is requests per second per client IP. Zero disables it.
	RateLimit int `koanf:"rate_limit" json:"rate_limit" yaml:"rate_limit"`
}

// PeerConfig configures node-to-node RPC.
type PeerConfig struct {
	Addr string `koanf:"addr" json:"addr" yaml:"addr"`

	// Advertise is the host other nodes use to reach this one. The port is
	// taken from Addr.
	Advertise string `koanf:"advertise" json:"advertise" yaml:"advertise"`

	// Timeout bounds one peer RPC.
	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout"`
}

// NodeSection configures node identity.
type NodeSection struct {
	// ID is this node's ring id. Zero derives one from the wall clock.
	ID int64 `koanf:"id" json:"id" yaml:"id"`
}

// ClusterSection configures peer discovery.
type ClusterSection struct {
	// Peers lists static ring members as "id@host:port" peer endpoints.
	Peers []string `koanf:"peers" json:"peers" yaml:"peers"`

	Gossip GossipConfig `koanf:"gossip" json:"gossip" yaml:"gossip"`
}

// GossipConfig configures memberlist discovery.
type GossipConfig struct {
	Enabled  bool     `koanf:"enabled" json:"enabled" yaml:"enabled"`
	BindAddr string   `koanf:"bind_addr" json:"bind_addr" yaml:"bind_addr"`
	BindPort int      `koanf:"bind_port" json:"bind_port" yaml:"bind_port"`
	Seeds    []string `koanf:"seeds" json:"seeds" yaml:"seeds"`
}

// ElectionSection configures the ring election and leader heartbeats.
type ElectionSection struct {
	// StartDelay postpones the first election so peers can come up.
	StartDelay time.Duration `koanf:"start_delay" json:"start_delay" yaml:"start_delay"`

	// ForwardTimeout bounds one send to a successor.
	ForwardTimeout time.Duration `koanf:"forward_timeout" json:"forward_timeout" yaml:"forward_timeout"`

	// Timeout restarts an election that has not completed. Zero disables it.
	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout"`

	HeartbeatInterval time.Duration `koanf:"heartbeat_interval" json:"heartbeat_interval" yaml:"heartbeat_interval"`

	// HeartbeatTimeout is how long followers wait before dropping a silent
	// leader.
	HeartbeatTimeout time.Duration `koanf:"heartbeat_timeout" json:"heartbeat_timeout" yaml:"heartbeat_timeout"`
}

// AuthSection configures client authentication.
type AuthSection struct {
	// BridgeURL selects the HTTP authentication bridge. Empty uses the
	// static user table.
	BridgeURL     string        `koanf:"bridge_url" json:"bridge_url" yaml:"bridge_url"`
	BridgeTimeout time.Duration `koanf:"bridge_timeout" json:"bridge_timeout" yaml:"bridge_timeout"`
	BridgeRetries int           `koanf:"bridge_retries" json:"bridge_retries" yaml:"bridge_retries"`

	// Users maps username to password or argon2id hash. Empty uses the demo
	// users.
	Users map[string]string `koanf:"users" json:"users" yaml:"users"`

	// RateLimit is login attempts per second per username. Zero disables it.
	RateLimit float64 `koanf:"rate_limit" json:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `koanf:"rate_burst" json:"rate_burst" yaml:"rate_burst"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" json:"level" yaml:"level"`
	Format string `koanf:"format" json:"format" yaml:"format"`
}
