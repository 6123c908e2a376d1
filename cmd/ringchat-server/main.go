package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/devansh-12/messaging-app/internal/core/domain"
	"github.com/devansh-12/messaging-app/internal/core/node"
	"github.com/devansh-12/messaging-app/internal/core/service"
	"github.com/devansh-12/messaging-app/internal/infra/buildinfo"
	"github.com/devansh-12/messaging-app/internal/infra/confloader"
	"github.com/devansh-12/messaging-app/internal/infra/shutdown"
	"github.com/devansh-12/messaging-app/internal/server/chatserver"
	"github.com/devansh-12/messaging-app/internal/server/clusterserver"
	"github.com/devansh-12/messaging-app/internal/server/config"
	"github.com/devansh-12/messaging-app/internal/server/httpserver"
	"github.com/devansh-12/messaging-app/internal/server/localserver"
	"github.com/devansh-12/messaging-app/internal/telemetry/logger"
	"github.com/devansh-12/messaging-app/internal/telemetry/metric"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "ringchat-server",
		Usage:   "run one node of a ringchat cluster",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to configuration file",
				EnvVars: []string{"RINGCHAT_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file loaded before the environment is read",
				Value: ".env",
			},
			&cli.Int64Flag{
				Name:  "node-id",
				Usage: "ring id of this node (overrides node.id)",
			},
		},
		Action: func(c *cli.Context) error {
			return run(c.Context, c.String("config"), c.String("env-file"), c.Int64("node-id"))
		},
	}
}

func run(ctx context.Context, configFile, envFile string, nodeID int64) error {
	if err := loadEnvFile(envFile); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}

	var overrides map[string]any
	if nodeID != 0 {
		overrides = map[string]any{"node.id": nodeID}
	}

	cfg, err := loadConfig(configFile, overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slogLogger := log.Slog()

	id := config.ResolveNodeID(cfg, time.Now())
	self, err := config.SelfNode(cfg, id)
	if err != nil {
		return err
	}
	peers, err := config.StaticPeers(cfg, id)
	if err != nil {
		return err
	}

	log.Info("starting ringchat-server",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"node_id", id,
		"config", configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	metrics := metric.NewRegistry()

	transport := clusterserver.NewTransport(clusterserver.TransportConfig{
		Self:    self,
		Timeout: cfg.Server.Peer.Timeout,
		Logger:  slogLogger,
	})

	n := node.New(node.Config{
		Self:              self,
		Transport:         transport,
		ForwardTimeout:    cfg.Election.ForwardTimeout,
		ElectionTimeout:   cfg.Election.Timeout,
		HeartbeatInterval: cfg.Election.HeartbeatInterval,
		HeartbeatTimeout:  cfg.Election.HeartbeatTimeout,
		Metrics:           metrics,
		Logger:            slogLogger,
	})
	for _, p := range peers {
		n.AddPeer(p)
	}

	auth, err := initAuth(cfg, slogLogger)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	chat := service.NewChatService(service.ChatConfig{
		Node:         n,
		Auth:         auth,
		Metrics:      metrics,
		LoginTimeout: cfg.Server.Chat.LoginTimeout,
		Logger:       slogLogger,
	})
	if err := metrics.Register(metric.NewCollector(chat)); err != nil {
		return fmt.Errorf("register collector: %w", err)
	}
	admin := service.NewAdminService(n, chat, slogLogger)

	chatServer := chatserver.New(chatserver.Config{
		Addr:       cfg.Server.Chat.Addr,
		Chat:       chat,
		ReadLimit:  cfg.Server.Chat.ReadLimit,
		SendBuffer: cfg.Server.Chat.SendBuffer,
		Logger:     slogLogger,
	})

	peerServer := clusterserver.New(clusterserver.Config{
		Addr:     cfg.Server.Peer.Addr,
		Receiver: n,
		Metrics:  metrics,
		Logger:   slogLogger,
	})

	adminServer := httpserver.New(cfg.Server.Admin.Addr, httpserver.NewRouter(httpserver.RouterConfig{
		Admin:               admin,
		Metrics:             metrics,
		Ready:               func(ctx context.Context) error { return n.Do(ctx, func() {}) },
		AdminTokenHash:      cfg.Server.Admin.TokenHash,
		MetricsAuthRequired: cfg.Server.Admin.MetricsAuth,
		AllowList:           cfg.Server.Admin.AllowList,
		RateLimit:           cfg.Server.Admin.RateLimit,
		Logger:              slogLogger,
	}), slogLogger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownHandler := shutdown.NewHandler(shutdown.DefaultTimeout, slogLogger)

	// Hooks run in reverse: listeners close before the node loop stops.
	nodeDone := make(chan error, 1)
	go func() { nodeDone <- n.Run(ctx) }()
	shutdownHandler.OnShutdown("node", func(ctx context.Context) error {
		cancel()
		select {
		case err := <-nodeDone:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	if err := peerServer.Start(); err != nil {
		return fmt.Errorf("start peer server: %w", err)
	}
	shutdownHandler.OnShutdown("peer server", peerServer.Shutdown)

	if cfg.Cluster.Gossip.Enabled {
		discovery, err := startDiscovery(cfg, self, n, transport, slogLogger)
		if err != nil {
			shutdownHandler.Trigger()
			_ = shutdownHandler.Wait(ctx)
			return fmt.Errorf("start discovery: %w", err)
		}
		shutdownHandler.OnShutdown("discovery", func(context.Context) error {
			if err := discovery.Leave(); err != nil {
				log.Warn("gossip leave failed", "error", err)
			}
			return discovery.Shutdown()
		})
	}

	if err := chatServer.Start(); err != nil {
		shutdownHandler.Trigger()
		_ = shutdownHandler.Wait(ctx)
		return fmt.Errorf("start chat server: %w", err)
	}
	shutdownHandler.OnShutdown("chat server", chatServer.Shutdown)

	if err := adminServer.Start(); err != nil {
		shutdownHandler.Trigger()
		_ = shutdownHandler.Wait(ctx)
		return fmt.Errorf("start admin server: %w", err)
	}
	shutdownHandler.OnShutdown("admin server", adminServer.Shutdown)

	if configFile != "" {
		watcher, err := watchConfig(configFile, overrides, log)
		if err != nil {
			log.Warn("config reload disabled", "error", err)
		} else {
			go watcher.Run(ctx)
			shutdownHandler.OnShutdown("config watcher", func(context.Context) error {
				return watcher.Close()
			})
		}
	}

	if path := cfg.Server.Local.Socket; path != "" {
		local := localserver.New(path, localserver.NewHandler(localserver.HandlerConfig{
			Control:  admin,
			Reload:   func() error { return reloadConfig(configFile, overrides, log) },
			Shutdown: shutdownHandler.Trigger,
		}), slogLogger)
		if err := local.Start(); err != nil {
			log.Warn("local socket disabled", "path", path, "error", err)
		} else {
			shutdownHandler.OnShutdown("local socket", local.Shutdown)
		}
	}

	n.ScheduleStartupElection(cfg.Election.StartDelay)

	log.Info("server started, press Ctrl+C to stop",
		"chat_addr", chatServer.Addr(),
		"admin_addr", cfg.Server.Admin.Addr,
		"peer_addr", peerServer.Addr(),
		"peers", len(peers))

	if err := shutdownHandler.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadEnvFile loads a dotenv file into the process environment. A missing
// file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// loadConfig loads configuration from file, environment and overrides.
func loadConfig(configFile string, overrides map[string]any) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	if len(overrides) > 0 {
		opts = append(opts, confloader.WithOverrides(overrides))
	}

	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger initializes the structured logger and makes it the default.
func initLogger(cfg *config.ServerConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

// initAuth picks the HTTP bridge or the static user table and applies the
// per-username login rate limit.
func initAuth(cfg *config.ServerConfig, log *slog.Logger) (service.Authenticator, error) {
	var auth service.Authenticator
	if cfg.Auth.BridgeURL != "" {
		auth = service.NewHTTPAuthenticator(cfg.Auth.BridgeURL,
			service.WithHTTPClient(&http.Client{Timeout: cfg.Auth.BridgeTimeout}),
			service.WithRetries(uint64(cfg.Auth.BridgeRetries)),
			service.WithAuthLogger(log),
		)
		log.Info("using authentication bridge", "url", cfg.Auth.BridgeURL)
	} else {
		static, err := service.NewStaticAuthenticator(cfg.Auth.Users)
		if err != nil {
			return nil, err
		}
		if len(cfg.Auth.Users) == 0 {
			log.Warn("no auth.users configured, demo users enabled")
		}
		auth = static
	}
	return service.NewRateLimitedAuthenticator(auth, cfg.Auth.RateLimit, cfg.Auth.RateBurst), nil
}

// startDiscovery joins gossip and keeps the ring in step with membership.
func startDiscovery(
	cfg *config.ServerConfig,
	self domain.Node,
	n *node.Node,
	transport *clusterserver.Transport,
	log *slog.Logger,
) (*clusterserver.Discovery, error) {
	gossip := cfg.Cluster.Gossip
	discovery, err := clusterserver.NewDiscovery(clusterserver.DiscoveryConfig{
		NodeID:    self.ID,
		BindAddr:  gossip.BindAddr,
		BindPort:  gossip.BindPort,
		PeerAddr:  self.Endpoint(),
		SeedNodes: gossip.Seeds,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}

	discovery.OnJoin(n.AddPeer)
	discovery.OnLeave(func(peer domain.Node) {
		n.RemovePeer(peer.ID, "gossip leave")
		transport.Forget(peer)
	})
	for _, p := range discovery.Peers() {
		n.AddPeer(p)
	}
	return discovery, nil
}

// reloadConfig re-reads the configuration and applies the settings that can
// change at runtime. Only log.level is applied; other changes need a restart.
func reloadConfig(path string, overrides map[string]any, log logger.Logger) error {
	cfg, err := loadConfig(path, overrides)
	if err != nil {
		return err
	}
	before := logger.GetLevel()
	logger.SetLevel(cfg.Log.Level)
	if after := logger.GetLevel(); after != before {
		log.Info("log level changed", "from", before, "to", after)
	}
	return nil
}

// watchConfig reloads the configuration whenever path changes on disk.
func watchConfig(path string, overrides map[string]any, log logger.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(path, confloader.WithWatcherLogger(log.Slog()))
	if err != nil {
		return nil, err
	}
	watcher.OnChange(func(string) {
		if err := reloadConfig(path, overrides, log); err != nil {
			log.Warn("config reload rejected", "error", err)
		}
	})
	return watcher, nil
}
