package app

import (
	"log/slog"
	"record-sync/database"
	"record-sync/realtime"
	"record-sync/sync"
	"record-sync/validator"
)

// App holds all application dependencies
// This struct is the central point for dependency injection
type App struct {
	Store     database.Store
	Hub       *realtime.Hub
	Sync      *sync.Engine
	Validator *validator.Validator
	Logger    *slog.Logger
}

// New creates a new App instance with all dependencies
func New(store database.Store, hub *realtime.Hub, logger *slog.Logger) *App {
	v := validator.New()
	return &App{
		Store:     store,
		Hub:       hub,
		Sync:      sync.New(store, v, logger),
		Validator: v,
		Logger:    logger,
	}
}
