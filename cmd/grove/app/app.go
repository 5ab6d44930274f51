// Package app assembles a running grove from its effective configuration:
// the store, the event publisher, the AI service, the session and the turn
// orchestrator.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/grove/cmd/grove/sqlitepath"
	"github.com/papercomputeco/grove/pkg/ai"
	"github.com/papercomputeco/grove/pkg/ai/gemini"
	"github.com/papercomputeco/grove/pkg/config"
	"github.com/papercomputeco/grove/pkg/eventstream"
	"github.com/papercomputeco/grove/pkg/eventstream/kafka"
	"github.com/papercomputeco/grove/pkg/eventstream/nop"
	"github.com/papercomputeco/grove/pkg/logger"
	"github.com/papercomputeco/grove/pkg/metrics"
	"github.com/papercomputeco/grove/pkg/session"
	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/storage/storageutils"
	"github.com/papercomputeco/grove/pkg/turn"
)

// SharedFlags are the registry keys every command that opens a session binds.
var SharedFlags = []string{
	config.FlagStorage,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagRedis,
	config.FlagFirestore,
	config.FlagUser,
	config.FlagAPIKey,
	config.FlagFastModel,
	config.FlagReasonModel,
	config.FlagDebounce,
	config.FlagEvents,
	config.FlagBrokers,
}

// Flags holds the flag targets for SharedFlags.
type Flags struct {
	Storage     string
	SQLite      string
	Postgres    string
	Redis       string
	Firestore   string
	User        string
	APIKey      string
	FastModel   string
	ReasonModel string
	DebounceMS  uint
	Events      string
	Brokers     string
}

// Register adds SharedFlags to cmd.
func (f *Flags) Register(cmd *cobra.Command) {
	config.AddStringFlag(cmd, config.Flags, config.FlagStorage, &f.Storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &f.SQLite)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &f.Postgres)
	config.AddStringFlag(cmd, config.Flags, config.FlagRedis, &f.Redis)
	config.AddStringFlag(cmd, config.Flags, config.FlagFirestore, &f.Firestore)
	config.AddStringFlag(cmd, config.Flags, config.FlagUser, &f.User)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIKey, &f.APIKey)
	config.AddStringFlag(cmd, config.Flags, config.FlagFastModel, &f.FastModel)
	config.AddStringFlag(cmd, config.Flags, config.FlagReasonModel, &f.ReasonModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagDebounce, &f.DebounceMS)
	config.AddStringFlag(cmd, config.Flags, config.FlagEvents, &f.Events)
	config.AddStringFlag(cmd, config.Flags, config.FlagBrokers, &f.Brokers)
}

// LoadConfig resolves the effective configuration for cmd: flags over
// GROVE_ environment variables over config.toml over defaults. The
// registryKeys flags must already be registered on cmd.
func LoadConfig(cmd *cobra.Command, registryKeys []string) (*config.Config, *viper.Viper, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, registryKeys)

	cfg := config.FromViper(v)
	if cfg.Storage.Provider == config.StorageSQLite {
		cfg.Storage.SQLitePath, err = sqlitepath.ResolveSQLitePath(cfg.Storage.SQLitePath, configDir)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving sqlite path: %w", err)
		}
	}

	return cfg, v, nil
}

// App is a wired grove instance.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Driver    storage.Driver
	Publisher eventstream.Publisher
	Metrics   *metrics.Metrics
	AI        ai.Service
	Session   *session.Session
	Turns     *turn.Orchestrator
}

// Option overrides a component New would otherwise build from config.
type Option func(*App)

// WithDriver uses d instead of the configured store.
func WithDriver(d storage.Driver) Option {
	return func(a *App) {
		a.Driver = d
	}
}

// WithAI uses svc instead of the configured AI backend.
func WithAI(svc ai.Service) Option {
	return func(a *App) {
		a.AI = svc
	}
}

// WithPublisher uses p instead of the configured event stream.
func WithPublisher(p eventstream.Publisher) Option {
	return func(a *App) {
		a.Publisher = p
	}
}

// New builds every component and signs in as identity.user when it is set.
// A missing AI key does not fail startup: turns fail with the ConfigError
// while the tree stays usable.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, opts ...Option) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger.OrNop(log),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.Metrics = metrics.New(nil)

	var err error
	if a.Driver == nil {
		a.Driver, err = storageutils.NewDriver(ctx, cfg.Storage, a.Logger)
		if err != nil {
			return nil, err
		}
	}

	if a.Publisher == nil {
		a.Publisher, err = newPublisher(cfg.EventStream, cfg.BrokerList())
		if err != nil {
			_ = a.Driver.Close()
			return nil, err
		}
	}

	if a.AI == nil {
		a.AI = a.newAI(ctx)
	}

	a.Session = session.New(session.Config{
		Driver:    a.Driver,
		Publisher: a.Publisher,
		Metrics:   a.Metrics,
		Window:    cfg.DebounceWindow(),
		Logger:    a.Logger,
	})

	a.Turns = turn.New(turn.Config{
		AI:      a.AI,
		Tree:    a.Session,
		Metrics: a.Metrics,
		Logger:  a.Logger,
	})

	if user := cfg.Identity.User; user != "" {
		if err := a.Session.SignIn(ctx, user); err != nil {
			a.Logger.Warn("sign in failed, continuing signed out", "user", user, "error", err)
		}
	}

	return a, nil
}

func newPublisher(cfg config.EventStreamConfig, brokers []string) (eventstream.Publisher, error) {
	switch cfg.Provider {
	case "", "nop":
		return nop.NewPublisher(), nil
	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: brokers,
			Topic:   cfg.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown event stream provider: %q", cfg.Provider)
	}
}

func (a *App) newAI(ctx context.Context) ai.Service {
	if p := a.Config.AI.Provider; p != "" && p != "gemini" {
		return ai.Unavailable{Err: &ai.ConfigError{Setting: "ai.provider"}}
	}

	svc, err := gemini.New(ctx, gemini.Config{
		APIKey:      a.Config.AI.APIKey,
		FastModel:   a.Config.AI.FastModel,
		ReasonModel: a.Config.AI.ReasonModel,
		Logger:      a.Logger,
	})
	if err != nil {
		a.Logger.Warn("AI service unavailable", "error", err)
		return ai.Unavailable{Err: err}
	}
	return svc
}

// Close saves pending changes and releases the publisher and the store.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(
		a.Session.Close(ctx),
		a.Publisher.Close(),
		a.Driver.Close(),
	)
}
