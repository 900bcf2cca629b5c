// Package bootstrap holds the startup steps every storefront binary shares:
// environment loading, logging, dependency clients and shutdown.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// EnvInstanceID overrides the hostname as the instance identifier.
const EnvInstanceID = "STOREFRONT_INSTANCE_ID"

type closer struct {
	name string
	fn   func() error
}

// Process is one running binary. Clients opened through it are closed in
// reverse order by Close.
type Process struct {
	Kind   string
	Config *config.Config
	Logger *logger.Logger

	exit    func(code int)
	closers []closer
}

// Start loads .env and the config, then builds the configured logger. It
// exits the process when the config is invalid.
func Start(kind string) *Process {
	p := &Process{
		Kind:   kind,
		Logger: logger.New(logger.Options{ServiceName: kind}),
		exit:   os.Exit,
	}
	if err := godotenv.Load(); err != nil {
		p.Logger.Debug(context.Background(), ".env not loaded, using process environment")
	}

	cfg, err := config.Load()
	p.Must("config", err)
	cfg.Service.Kind = kind
	p.Config = cfg
	p.Logger = NewLogger(kind, cfg.App)
	return p
}

// NewLogger builds the service logger from the App config section.
func NewLogger(kind string, app config.AppConfig) *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: kind,
		Level:       logger.ParseLevel(app.LogLevel),
		WarnStack:   app.LogWarnStack,
		Console:     strings.EqualFold(app.LogFormat, "console"),
	})
}

// Must stops the process when a startup step failed.
func (p *Process) Must(resource string, err error) {
	if err == nil {
		return
	}
	p.Logger.Error(context.Background(), fmt.Sprintf("startup failed: %s", resource), err)
	p.Close()
	p.exit(1)
}

// Defer registers fn to run on Close.
func (p *Process) Defer(name string, fn func() error) {
	p.closers = append(p.closers, closer{name: name, fn: fn})
}

func (p *Process) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.fn(); err != nil {
			p.Logger.Error(context.Background(), "error closing "+c.name, err)
		}
	}
	p.closers = nil
}

// Database connects to Postgres and applies pending migrations in dev.
func (p *Process) Database(ctx context.Context) *db.Client {
	client, err := db.New(ctx, p.Config.DB, p.Config.FeatureFlags, p.Logger)
	p.Must("database", err)
	p.Defer("database", client.Close)
	p.Must("dev migrations", migrate.MaybeRunDev(ctx, p.Config, p.Logger, client))
	return client
}

func (p *Process) Redis(ctx context.Context) *redis.Client {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	p.Must("redis", err)
	p.Defer("redis", client.Close)
	return client
}

func (p *Process) PubSub(ctx context.Context) *pubsub.Client {
	client, err := pubsub.NewClient(ctx, p.Config.GCP, p.Config.PubSub, p.Logger)
	p.Must("pubsub", err)
	p.Defer("pubsub", client.Close)
	return client
}

// Context is canceled on SIGINT or SIGTERM and carries the process log
// fields plus extra.
func (p *Process) Context(extra map[string]any) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	fields := map[string]any{
		"env":         p.Config.App.Env,
		"serviceKind": p.Kind,
		"instance":    InstanceID(p.Kind + "-0"),
	}
	for k, v := range extra {
		fields[k] = v
	}
	return p.Logger.WithFields(ctx, fields), stop
}

// Run blocks in run until it returns, then closes the process. Cancellation
// counts as a clean stop; any other error exits non-zero.
func (p *Process) Run(ctx context.Context, run func(context.Context) error) {
	p.Logger.Info(ctx, "starting "+p.Kind)
	err := run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		p.Logger.Error(ctx, p.Kind+" stopped unexpectedly", err)
		p.Close()
		p.exit(1)
		return
	}
	p.Logger.Info(ctx, p.Kind+" shutting down")
	p.Close()
}

// InstanceID is the override, then the hostname, then fallback.
func InstanceID(fallback string) string {
	if id := strings.TrimSpace(os.Getenv(EnvInstanceID)); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallback
}
