// Package bootstrap prepares logging and chat state storage for a bot.
package bootstrap

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/chatbots/core/config"
	coredatabase "github.com/m3rciful/chatbots/core/database"
	"github.com/m3rciful/chatbots/core/logger"
	"github.com/m3rciful/chatbots/core/telegram/state"
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	// Name is the bot name; it is the snapshot identity unless
	// storage.identity overrides it.
	Name     string
	Config   *coreconfig.Config
	Database coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	// DB is nil with the file backend.
	DB       *sqlx.DB
	Store    *state.Store
	Identity string
}

// Close releases the database connection, if any.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger and the snapshot backend selected by
// storage.backend. The postgres backend connects and applies migrations.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{Identity: opts.Config.Storage.Identity}
	if res.Identity == "" {
		res.Identity = opts.Name
	}
	if res.Identity == "" {
		return nil, fmt.Errorf("bootstrap: snapshot identity is empty")
	}

	switch opts.Config.Storage.Backend {
	case coreconfig.StoragePostgres:
		connect := opts.Connect
		if connect == nil {
			connect = coredatabase.Connect
		}
		db, err := connect(opts.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}
		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(opts.Database); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
		res.DB = db
		res.Store = state.NewStore(coredatabase.NewSnapshotBackend(db))
	default:
		res.Store = state.NewStore(state.NewFileBackend(opts.Config.Storage.Dir))
	}
	return res, nil
}
