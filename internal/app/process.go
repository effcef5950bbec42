package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/telcobill-backend/pkg/config"
	"github.com/angelmondragon/telcobill-backend/pkg/db"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
	"github.com/angelmondragon/telcobill-backend/pkg/migrate"
	"github.com/angelmondragon/telcobill-backend/pkg/redis"
)

// Process is the shared startup of every binary: env, config and logger,
// plus the connections it opened, closed in reverse order by Shutdown.
type Process struct {
	Kind   string
	Config *config.Config
	Logger *logger.Logger

	closers []closer
	exit    func(int)
}

type closer struct {
	name string
	fn   func() error
}

// Start loads .env when present and the environment config. A config error is fatal.
func Start(kind string) *Process {
	p := &Process{Kind: kind, Logger: logger.New(logger.Options{ServiceName: kind}), exit: os.Exit}
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		p.Logger.Warn(ctx, ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	p.Must(ctx, "config", err)
	cfg.Service.Kind = kind

	p.Config = cfg
	p.Logger = logger.New(logger.Options{
		ServiceName: kind,
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})
	return p
}

// Must logs err against resource, releases what was opened so far and exits.
func (p *Process) Must(ctx context.Context, resource string, err error) {
	if err == nil {
		return
	}
	p.Logger.Error(ctx, fmt.Sprintf("failed to start: %s", resource), err)
	p.Shutdown()
	p.exit(1)
}

// OnShutdown registers fn to run during Shutdown.
func (p *Process) OnShutdown(name string, fn func() error) {
	p.closers = append(p.closers, closer{name: name, fn: fn})
}

// Shutdown runs registered closers newest first.
func (p *Process) Shutdown() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.fn(); err != nil {
			p.Logger.Error(context.Background(), "error closing "+c.name, err)
		}
	}
	p.closers = nil
}

// Database connects to Postgres. In dev with TELCOBILL_AUTO_MIGRATE set it
// also applies pending migrations.
func (p *Process) Database(ctx context.Context) *db.Client {
	client, err := db.New(ctx, p.Config.DB, p.Logger)
	p.Must(ctx, "database", err)
	p.OnShutdown("database", client.Close)
	if p.Config.App.IsDev() && p.Config.FeatureFlags.AutoMigrate {
		p.Must(ctx, "dev migrations", p.migrateUp(ctx, client))
	}
	return client
}

func (p *Process) migrateUp(ctx context.Context, client *db.Client) error {
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	m, err := migrate.New(sqlDB, p.Config.DB.Driver, migrate.DefaultDir)
	if err != nil {
		return err
	}
	applied, err := m.Up(ctx)
	if err != nil {
		return err
	}
	p.Logger.Info(p.Logger.WithFields(ctx, map[string]any{
		"dir":     migrate.DefaultDir,
		"applied": len(applied),
	}), "dev migrations applied")
	return nil
}

func (p *Process) Redis(ctx context.Context) *redis.Client {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	p.Must(ctx, "redis", err)
	p.OnShutdown("redis", client.Close)
	return client
}

// SignalContext is canceled on SIGINT or SIGTERM and carries env and kind log fields.
func (p *Process) SignalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = p.Logger.WithFields(ctx, map[string]any{
		"env":         p.Config.App.Env,
		"serviceKind": p.Kind,
	})
	return ctx, stop
}
