package api

import (
	"github.com/jated111-leb/body-scribe-15-sub000/internal"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/engine"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/storage"
)

// App is the seam between handlers and the rest of the application.
type App interface {
	Logger() internal.Logger
	Store() *storage.Repositories
	Engine() *engine.Engine
}
