package config

import "time"

// Default configuration values.
const (
	DefaultChatAddr  = ":8765"
	DefaultAdminAddr = ":8000"
	DefaultPeerAddr  = ":8700"
	DefaultAdvertise = "127.0.0.1"

	DefaultLoginTimeout = 15 * time.Second
	DefaultSendBuffer   = 64
	DefaultReadLimit    = 64 << 10
	DefaultPeerTimeout  = 2 * time.Second

	DefaultGossipPort = 7946

	DefaultStartDelay        = 2 * time.Second
	DefaultForwardTimeout    = 2 * time.Second
	DefaultElectionTimeout   = 10 * time.Second
	DefaultHeartbeatInterval = 5 * time.Second
	DefaultHeartbeatTimeout  = 15 * time.Second

	DefaultBridgeTimeout = 3 * time.Second
	DefaultBridgeRetries = 3
	DefaultLoginRate     = 1.0
	DefaultLoginBurst    = 5

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Chat: ChatConfig{
				Addr:         DefaultChatAddr,
				LoginTimeout: DefaultLoginTimeout,
				SendBuffer:   DefaultSendBuffer,
				ReadLimit:    DefaultReadLimit,
			},
			Admin: AdminConfig{
				Addr: DefaultAdminAddr,
			},
			Peer: PeerConfig{
				Addr:      DefaultPeerAddr,
				Advertise: DefaultAdvertise,
				Timeout:   DefaultPeerTimeout,
			},
		},
		Cluster: ClusterSection{
			Gossip: GossipConfig{
				BindAddr: "0.0.0.0",
				BindPort: DefaultGossipPort,
			},
		},
		Election: ElectionSection{
			StartDelay:        DefaultStartDelay,
			ForwardTimeout:    DefaultForwardTimeout,
			Timeout:           DefaultElectionTimeout,
			HeartbeatInterval: DefaultHeartbeatInterval,
			HeartbeatTimeout:  DefaultHeartbeatTimeout,
		},
		Auth: AuthSection{
			BridgeTimeout: DefaultBridgeTimeout,
			BridgeRetries: DefaultBridgeRetries,
			RateLimit:     DefaultLoginRate,
			RateBurst:     DefaultLoginBurst,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
