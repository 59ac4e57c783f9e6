// Package app assembles the services from their dependencies.
package app

import (
	"log/slog"

	"github.com/ambaglabs/ambag/pkg/config"
	"github.com/ambaglabs/ambag/pkg/domain/action"
	"github.com/ambaglabs/ambag/pkg/provider"
	"github.com/ambaglabs/ambag/pkg/repository"
	"github.com/ambaglabs/ambag/pkg/service/dispatch"
	"github.com/ambaglabs/ambag/pkg/service/goal"
	"github.com/ambaglabs/ambag/pkg/service/monitor"
	"github.com/ambaglabs/ambag/pkg/service/pool"
	"github.com/ambaglabs/ambag/pkg/service/settlement"
)

// Notifier queues notifications for asynchronous delivery. The notify
// dispatcher in infra satisfies it.
type Notifier interface {
	Enqueue(n action.Notification) error
}

// Deps contains everything the services are built from.
type Deps struct {
	Store     *repository.Store
	Notifier  Notifier
	Generator provider.MessageGenerator
	Logger    *slog.Logger
}

// App holds the wired services.
type App struct {
	Deps   *Deps
	Config *config.App

	GoalService       *goal.Service
	PoolService       *pool.Service
	SettlementService *settlement.Service
	DispatchService   *dispatch.Service
	Scheduler         *monitor.Scheduler
}

// New wires the services together. The settlement engine feeds the pool
// service's target handoff, and the dispatcher feeds the scheduler.
func New(deps *Deps, cfg *config.App) *App {
	a := &App{Deps: deps, Config: cfg}

	a.SettlementService = settlement.NewService(deps.Store, deps.Notifier, deps.Generator, deps.Logger)
	a.PoolService = pool.NewService(deps.Store, a.SettlementService, deps.Notifier, deps.Logger)
	a.GoalService = goal.NewService(deps.Store, deps.Notifier, deps.Logger)
	a.DispatchService = dispatch.NewService(
		deps.Store.Pools, deps.Store.Actions, deps.Notifier, deps.Generator, deps.Logger)
	a.Scheduler = monitor.NewScheduler(
		deps.Store, a.DispatchService, deps.Notifier, cfg.Monitor, deps.Logger)
	return a
}
