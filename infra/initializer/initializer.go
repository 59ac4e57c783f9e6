// Package initializer builds the application dependency graph: logger,
// database, repositories, and the notification pipeline.
package initializer

import (
	"fmt"

	"github.com/ambaglabs/ambag/infra/notify"
	infraprovider "github.com/ambaglabs/ambag/infra/provider"
	infrarepository "github.com/ambaglabs/ambag/infra/repository"
	"github.com/ambaglabs/ambag/infra/repository/memory"
	"github.com/ambaglabs/ambag/pkg/app"
	"github.com/ambaglabs/ambag/pkg/config"
)

// InitializeDependencies initializes all the application dependencies.
// The returned dispatcher is handed back separately so the caller owns
// its start/stop lifecycle.
func InitializeDependencies(cfg *config.App) (*app.Deps, *notify.Dispatcher, error) {
	deps := &app.Deps{}
	logger := setupLogger(cfg.Log)
	deps.Logger = logger

	// Persistence: postgres when configured, sqlite file otherwise, and
	// a pure in-memory store for throwaway runs.
	if cfg.DB.Url == "" && cfg.DB.File == "" {
		logger.Warn("no database configured, using in-memory store")
		deps.Store = memory.NewStore()
	} else {
		db, err := infrarepository.NewDBConnection(cfg.DB, cfg.Env)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		if err := infrarepository.Migrate(db); err != nil {
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		deps.Store = infrarepository.NewStore(db)
	}

	deps.Generator = infraprovider.NewTemplateGenerator()

	sink := infraprovider.NewSlogSink(logger)
	dispatcher := notify.NewDispatcher(sink, cfg.Notify, logger)
	deps.Notifier = dispatcher

	return deps, dispatcher, nil
}
