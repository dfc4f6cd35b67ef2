package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/api"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/auth"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/config"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/engine"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/notify"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/scheduler"
	"github.com/jated111-leb/body-scribe-15-sub000/internal/storage"
)

type application struct {
	logger internal.Logger
	store  *storage.Repositories
	engine *engine.Engine
}

func (a *application) Logger() internal.Logger      { return a.logger }
func (a *application) Store() *storage.Repositories { return a.store }
func (a *application) Engine() *engine.Engine       { return a.engine }

func main() {
	cfg := config.Load()

	logger, err := internal.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	store, err := openStorage(cfg, logger)
	if err != nil {
		logger.Errorf("failed to init storage: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	eng := engine.New(store, notify.NewLogSink(logger), logger)
	app := &application{logger: logger, store: store, engine: eng}

	var sweeper *scheduler.Scheduler
	if !cfg.SweepDisabled {
		sweeper = scheduler.New(eng, store.Events, logger, cfg.SweepInterval)
		go sweeper.Run()
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(api.RequestIDMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	var provider auth.Provider
	if cfg.Env == "development" {
		provider = auth.NewLocalAuthProvider(store.Users, logger)
	} else {
		provider = auth.NewRemoteAuthProvider(cfg.AuthServiceURL, logger)
	}

	authed := r.Group("/")
	authed.Use(auth.AuthMiddleware(provider, cfg))
	{
		authed.POST("/events", api.PostEvent(app))
		authed.GET("/events", api.GetEvents(app))

		authed.GET("/achievements", api.GetAchievements(app))
		authed.GET("/achievements/progress", api.GetAchievementProgress(app))
		authed.POST("/achievements/recalculate", api.PostRecalculate(app))
		authed.GET("/lifestyle/achievements", api.GetLifestyleAchievements(app))

		authed.POST("/focuses", api.PostFocus(app))
		authed.GET("/focuses", api.GetFocuses(app))
		authed.DELETE("/focuses/:id", api.DeleteFocus(app))

		authed.GET("/patterns", api.GetPatterns(app))
		authed.POST("/patterns/:type/respond", api.PostPatternResponse(app))

		authed.GET("/settings/complexity", api.GetComplexity(app))
		authed.PUT("/settings/complexity", api.PutComplexity(app))
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}

	go func() {
		logger.Infof("server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("server stopped: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("shutting down")

	if sweeper != nil {
		sweeper.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

func openStorage(cfg *config.Config, logger internal.Logger) (*storage.Repositories, error) {
	if cfg.DBType == "postgres" {
		return storage.NewPostgresRepositories(cfg.DBDSN, logger)
	}
	for _, f := range []string{cfg.FileEvents, cfg.FileDerived, cfg.FileUsers} {
		if dir := filepath.Dir(f); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
	}
	// Seed a demo user so local development works out of the box.
	if _, err := os.Stat(cfg.FileUsers); os.IsNotExist(err) {
		seed := []byte(`[{"id":"u1","token":"MOCK-TOKEN","name":"Demo User"}]`)
		if err := os.WriteFile(cfg.FileUsers, seed, 0644); err != nil {
			return nil, err
		}
	}
	return storage.NewFileRepositories(cfg.FileEvents, cfg.FileDerived, cfg.FileUsers, logger)
}
