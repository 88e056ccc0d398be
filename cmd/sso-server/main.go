package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/platinummonkey/workos-sso/pkg/audit"
	"github.com/platinummonkey/workos-sso/pkg/broker"
	"github.com/platinummonkey/workos-sso/pkg/config"
	"github.com/platinummonkey/workos-sso/pkg/middleware"
	"github.com/platinummonkey/workos-sso/pkg/observability"
	"github.com/platinummonkey/workos-sso/pkg/server"
	"github.com/platinummonkey/workos-sso/pkg/sso"
	"github.com/platinummonkey/workos-sso/pkg/statestore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	configFile := flag.String("config", "", "Path to a YAML config file (overrides SSO_CONFIG_FILE)")
	flag.Parse()

	cli := logrus.New()
	cli.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if *configFile != "" {
		if err := os.Setenv("SSO_CONFIG_FILE", *configFile); err != nil {
			cli.Fatalf("Failed to set config file: %v", err)
		}
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		cli.Fatalf("Failed to load configuration: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.Observability.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	cli.SetLevel(level)

	cli.Infof("Starting SSO server %s (broker: %s, state store: %s)", version, cfg.Broker.Type, cfg.State.Store)

	if err := run(cfg, cli); err != nil {
		cli.Fatalf("SSO server failed: %v", err)
	}
	cli.Info("SSO server stopped")
}

func run(cfg *config.Config, cli *logrus.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout).WithField("service", cfg.Observability.OTelServiceName)
	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
		Broker:         cfg.Broker.Type,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	var registry *prometheus.Registry
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = observability.NewMetrics(registry)
	}

	brokerClient, err := newBrokerClient(ctx, cfg)
	if err != nil {
		return err
	}
	cli.Debugf("Broker client ready (%s)", cfg.Broker.Type)

	states, err := newStateStore(ctx, cfg, metrics)
	if err != nil {
		return err
	}

	strategy, err := sso.NewStrategy(sso.Config{
		ClientID:     cfg.SSO.ClientID,
		ClientSecret: cfg.SSO.ClientSecret,
		CallbackURL:  cfg.SSO.CallbackURL,
	}, server.NewDomainVerifier(cfg.SSO.AllowedDomains...),
		sso.WithBrokerClient(brokerClient),
		sso.WithLogger(logger),
		sso.WithMetrics(metrics),
		sso.WithAllowedRedirectURIs(cfg.SSO.AllowedRedirectURIs...),
	)
	if err != nil {
		states.Close()
		return fmt.Errorf("failed to create SSO strategy: %w", err)
	}

	auditLogger, err := newAuditLogger(cfg, logger)
	if err != nil {
		states.Close()
		return err
	}

	serverOpts := []server.Option{
		server.WithLogger(logger),
		server.WithAuditLogger(auditLogger),
		server.WithMetrics(metrics),
		server.WithStateTTL(cfg.State.TTL),
		server.WithSecureCookies(strings.HasPrefix(cfg.SSO.CallbackURL, "https://")),
		server.WithVersion(version),
		server.WithDependency(observability.Dependency{
			Name:  "broker",
			Check: observability.HTTPCheck(broker.NewHTTPClient(cfg.Broker.Timeout), brokerHealthURL(cfg)),
		}),
	}
	if cfg.RateLimit.Enabled {
		serverOpts = append(serverOpts,
			server.WithRateLimiter(newRateLimiter(ctx, cfg, states, logger)),
			server.WithTrustedProxyHeaders(cfg.RateLimit.TrustProxyHeaders),
		)
	}

	srv, err := server.NewServer(strategy, states, serverOpts...)
	if err != nil {
		states.Close()
		return fmt.Errorf("failed to create server: %w", err)
	}

	appServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	shutdown.RegisterServer("app", appServer)

	var metricsServer *http.Server
	if registry != nil {
		mux := http.NewServeMux()
		observability.RegisterMetricsEndpoint(mux, registry)
		metricsServer = &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		shutdown.RegisterServer("metrics", metricsServer)
	}

	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return states.Close()
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return auditLogger.Close()
	})
	shutdown.RegisterShutdownFunc(providers.Shutdown)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cli.Infof("SSO server listening on %s", appServer.Addr)
		return serve(appServer)
	})
	if metricsServer != nil {
		g.Go(func() error {
			cli.Infof("Metrics server listening on %s", metricsServer.Addr)
			return serve(metricsServer)
		})
	}
	g.Go(func() error {
		shutdown.WaitForSignal(gctx)
		return shutdown.Shutdown(context.Background())
	})

	return g.Wait()
}

// serve runs srv until it is shut down
func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server on %s failed: %w", srv.Addr, err)
	}
	return nil
}

func newBrokerClient(ctx context.Context, cfg *config.Config) (broker.Client, error) {
	httpClient := broker.NewHTTPClient(cfg.Broker.Timeout)

	switch cfg.Broker.Type {
	case config.BrokerOIDC:
		client, err := broker.NewOIDCClient(ctx, broker.OIDCConfig{
			IssuerURL:    cfg.Broker.OIDCIssuerURL,
			ClientSecret: cfg.SSO.ClientSecret,
			RedirectURL:  cfg.SSO.CallbackURL,
			Scopes:       cfg.Broker.OIDCScopes,
			HTTPClient:   httpClient,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OIDC broker client: %w", err)
		}
		return client, nil
	default:
		client, err := broker.NewWorkOSClient(broker.WorkOSConfig{
			ClientSecret: cfg.SSO.ClientSecret,
			BaseURL:      cfg.Broker.BaseURL,
			HTTPClient:   httpClient,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create WorkOS broker client: %w", err)
		}
		return client, nil
	}
}

// brokerHealthURL is probed by /readyz as a non-critical dependency
func brokerHealthURL(cfg *config.Config) string {
	if cfg.Broker.Type == config.BrokerOIDC {
		return strings.TrimSuffix(cfg.Broker.OIDCIssuerURL, "/") + "/.well-known/openid-configuration"
	}
	if cfg.Broker.BaseURL != "" {
		return cfg.Broker.BaseURL
	}
	return broker.DefaultWorkOSBaseURL
}

func newStateStore(ctx context.Context, cfg *config.Config, metrics *observability.Metrics) (statestore.Store, error) {
	switch cfg.State.Store {
	case config.StateStoreRedis:
		store, err := statestore.NewRedisStore(ctx, statestore.RedisConfig{
			URL: cfg.State.RedisURL,
			TTL: cfg.State.TTL,
		}, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis state store: %w", err)
		}
		return store, nil
	default:
		return statestore.NewMemoryStore(cfg.State.MaxEntries, cfg.State.TTL, metrics), nil
	}
}

func newAuditLogger(cfg *config.Config, logger *observability.Logger) (audit.Logger, error) {
	structured := audit.NewStructuredLogger(logger)
	if cfg.Audit.LogDir == "" {
		return structured, nil
	}

	fileLogger, err := audit.NewFileLogger(audit.FileLoggerConfig{
		BasePath: cfg.Audit.LogDir,
		Rotate:   true,
		MaxSize:  int64(cfg.Audit.MaxSizeMB) * 1024 * 1024,
		MaxFiles: cfg.Audit.MaxFiles,
		Sync:     cfg.Audit.Sync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create audit file logger: %w", err)
	}
	return audit.NewMultiLogger(structured, fileLogger), nil
}

// newRateLimiter shares limits across replicas when state already lives in redis
func newRateLimiter(ctx context.Context, cfg *config.Config, states statestore.Store, logger *observability.Logger) middleware.Limiter {
	limits := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		WindowDuration:    cfg.RateLimit.Window,
		BurstSize:         cfg.RateLimit.Burst,
	}

	if redisStore, ok := states.(*statestore.RedisStore); ok {
		return middleware.NewDistributedRateLimiter(redisStore.Client(), limits, "")
	}

	limiter := middleware.NewRateLimiter(limits)
	limiter.StartCleanup(ctx, logger)
	return limiter
}
