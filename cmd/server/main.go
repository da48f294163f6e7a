// Command server runs the OneDay.run platform: the conversational
// orchestration engine behind the rapid-delivery service, exposed over
// HTTP and WebSocket.
//
// Configuration is layered: built-in defaults, a YAML config file
// (-config flag, ONEDAY_CONFIG, ./config.yaml, /etc/oneday/config.yaml),
// ONEDAY_* environment overrides, and _file secret references. See
// pkg/config for the full reference.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/onedayrun/platform/pkg/auth"
	"github.com/onedayrun/platform/pkg/auth/apikey"
	"github.com/onedayrun/platform/pkg/auth/jwt"
	"github.com/onedayrun/platform/pkg/auth/noop"
	"github.com/onedayrun/platform/pkg/catalog"
	"github.com/onedayrun/platform/pkg/config"
	"github.com/onedayrun/platform/pkg/debug"
	"github.com/onedayrun/platform/pkg/deploy"
	"github.com/onedayrun/platform/pkg/observability"
	"github.com/onedayrun/platform/pkg/provider/litellm"
	"github.com/onedayrun/platform/pkg/repository"
	"github.com/onedayrun/platform/pkg/session"
	"github.com/onedayrun/platform/pkg/storage"
	"github.com/onedayrun/platform/pkg/storage/memory"
	"github.com/onedayrun/platform/pkg/storage/postgres"
	"github.com/onedayrun/platform/pkg/transport"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := debug.Init("", "")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	prov, err := litellm.New(litellm.Config{
		BaseURL:       cfg.Engine.BackendURL,
		APIKey:        cfg.Engine.APIKey,
		SupportsTools: cfg.Engine.SupportsTools,
		ModelMapping:  cfg.Engine.ModelMapping,
	})
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}
	defer prov.Close()

	archive, err := newArchive(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer archive.Close()

	library := catalog.NewLibrary()
	logger.Info("component catalog loaded", "components", library.Len())

	var github *repository.Service
	if cfg.GitHub.Token != "" {
		github, err = repository.New(cfg.GitHub.Token, cfg.GitHub.Org, logger)
		if err != nil {
			return fmt.Errorf("creating github service: %w", err)
		}
		logger.Info("github integration enabled", "org", cfg.GitHub.Org)
	} else {
		logger.Warn("github integration disabled, no token configured")
	}

	deployments := deploy.NewManager(
		cfg.Deploy.RailwayToken, cfg.Deploy.VercelToken, cfg.Deploy.RenderToken, logger)
	logger.Info("deployment platforms registered", "available", deployments.Available())

	registry := session.NewRegistry(cfg.Session.MaxSessions)

	extra := []transport.Middleware{
		observability.MetricsMiddleware,
		authMiddleware(cfg, logger),
	}

	srv := transport.NewServer(transport.Config{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		HeartbeatInterval: cfg.Session.HeartbeatInterval,
		DefaultPlatform:   cfg.Deploy.DefaultPlatform,
		MetricsDisabled:   !cfg.Observability.Metrics.Enabled,
		MetricsPath:       cfg.Observability.Metrics.Path,
	}, transport.Deps{
		Provider: prov,
		EngineConfig: session.Config{
			Model:       cfg.Engine.DefaultModel,
			MaxTurns:    cfg.Engine.MaxTurns,
			Temperature: cfg.Engine.Temperature,
			MaxTokens:   cfg.Engine.MaxTokens,
		},
		Registry:    registry,
		Archive:     archive,
		Library:     library,
		GitHub:      github,
		Deployments: deployments,
		Logger:      logger,
	}, extra...)

	logger.Info("starting OneDay.run platform",
		"port", cfg.Server.Port,
		"backend", cfg.Engine.BackendURL,
		"model", cfg.Engine.DefaultModel,
		"max_sessions", cfg.Session.MaxSessions)

	return srv.ListenAndServe()
}

// newArchive builds the project archive configured in storage.type.
func newArchive(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Archive, error) {
	switch cfg.Storage.Type {
	case "postgres":
		archive, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		logger.Info("project archive enabled", "type", "postgres")
		return archive, nil
	default:
		logger.Info("project archive enabled", "type", "memory", "max_size", cfg.Storage.MaxSize)
		return memory.New(cfg.Storage.MaxSize), nil
	}
}

// authMiddleware builds the configured auth chain. type=none keeps the
// noop voter so every request still carries an anonymous identity, and
// skips rate limiting since every caller would share one anonymous
// budget.
func authMiddleware(cfg *config.Config, logger *slog.Logger) transport.Middleware {
	switch cfg.Auth.Type {
	case "apikey":
		keys := make([]apikey.Key, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			keys = append(keys, apikey.Key{
				Value: k.Key,
				Identity: auth.Identity{
					Subject:     k.Subject,
					ServiceTier: k.ServiceTier,
				},
			})
		}
		logger.Info("authentication enabled", "type", "apikey", "keys", len(keys))
		chain := &auth.Chain{
			Authenticators: []auth.Authenticator{apikey.New(keys)},
			Fallback:       auth.No,
		}
		return auth.Middleware(chain, rateLimiter(cfg, logger), auth.DefaultBypassEndpoints)

	case "jwt":
		logger.Info("authentication enabled", "type", "jwt", "jwks_url", cfg.Auth.JWT.JWKSURL)
		chain := &auth.Chain{
			Authenticators: []auth.Authenticator{jwt.New(jwt.Config{
				JWKSURL:  cfg.Auth.JWT.JWKSURL,
				Issuer:   cfg.Auth.JWT.Issuer,
				Audience: cfg.Auth.JWT.Audience,
			})},
			Fallback: auth.No,
		}
		return auth.Middleware(chain, rateLimiter(cfg, logger), auth.DefaultBypassEndpoints)

	default:
		chain := &auth.Chain{
			Authenticators: []auth.Authenticator{&noop.Authenticator{}},
			Fallback:       auth.Yes,
		}
		return auth.Middleware(chain, nil, auth.DefaultBypassEndpoints)
	}
}

// rateLimiter builds the per-tier limiter from auth.rate_limit. The
// service tier on each identity is the delivery package the client
// bought, so the budgets follow the pricing table.
func rateLimiter(cfg *config.Config, logger *slog.Logger) auth.RateLimiter {
	rl := cfg.Auth.RateLimit
	if !rl.Enabled {
		return nil
	}
	tiers := make(map[string]auth.TierConfig, len(rl.TierRPM))
	for tier, rpm := range rl.TierRPM {
		tiers[tier] = auth.TierConfig{RequestsPerMinute: rpm}
	}
	logger.Info("rate limiting enabled", "default_rpm", rl.DefaultRPM, "tiers", len(tiers))
	return auth.NewInProcessLimiter(tiers, rl.DefaultRPM)
}
