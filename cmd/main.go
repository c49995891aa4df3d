package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/vibarr/vibarr/config"
	"github.com/vibarr/vibarr/db"
	"github.com/vibarr/vibarr/events"
	"github.com/vibarr/vibarr/library"
	"github.com/vibarr/vibarr/models"
	"github.com/vibarr/vibarr/pipeline"
	"github.com/vibarr/vibarr/recommend"
	"github.com/vibarr/vibarr/registry"
	"github.com/vibarr/vibarr/rules"
	"github.com/vibarr/vibarr/scheduler"
	"github.com/vibarr/vibarr/session"
	"github.com/vibarr/vibarr/settings"
)

// version is overridden by the release build via -ldflags.
var version = "dev"

type application struct {
	logger   *log.Logger
	database *db.DB
	store    *settings.Store
	clients  *registry.Registry
	sessions *session.Manager
	hub      *events.Hub
	sched    *scheduler.Scheduler
	pipe     *pipeline.Pipeline
	rec      *recommend.Engine
	rules    *rules.Engine
	syncer   *library.Syncer
	redis    *redis.Client // nil without redis.addr
}

func main() {
	config.Load()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           config.LogLevel(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(viper.GetString("db.path"))
	if err != nil {
		logger.Fatal("open database", "err", err)
	}
	defer database.Close()
	if err := database.WaitReady(ctx); err != nil {
		logger.Fatal("database never became ready", "err", err)
	}
	if err := database.Migrate(); err != nil {
		logger.Fatal("migrate database", "err", err)
	}

	store, err := settings.New(database, logger)
	if err != nil {
		logger.Fatal("load settings", "err", err)
	}
	clients := registry.New(store, logger)

	var rdb *redis.Client
	if addr := viper.GetString("redis.addr"); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		})
	}

	hub := events.NewHub(rdb, logger)
	go hub.Run(ctx)

	sessions := session.New(
		viper.GetString("auth.jwt_secret"),
		time.Duration(viper.GetInt("auth.token_ttl_hours"))*time.Hour,
		logger,
	)

	ruleEngine := rules.New(database, clients, hub, logger)
	pipe := pipeline.New(database, clients, store, hub, logger)
	ruleEngine.UseDownloader(pipe)
	recEngine := recommend.New(database, clients, store, logger)
	syncer := library.New(database, clients, ruleEngine, logger)

	sched := scheduler.New(
		viper.GetInt("scheduler.workers"),
		time.Duration(viper.GetInt("scheduler.grace_seconds"))*time.Second,
		logger,
	)
	pipe.UseSubmitter(sched.Submit)
	store.OnChange(func([]string) { sched.Wake() })

	app := &application{
		logger:   logger,
		database: database,
		store:    store,
		clients:  clients,
		sessions: sessions,
		hub:      hub,
		sched:    sched,
		pipe:     pipe,
		rec:      recEngine,
		rules:    ruleEngine,
		syncer:   syncer,
		redis:    rdb,
	}

	if err := app.registerJobs(); err != nil {
		logger.Fatal("register jobs", "err", err)
	}
	sched.Start()

	addr := fmt.Sprintf("%s:%s", viper.GetString("server.host"), viper.GetString("server.port"))
	server := &http.Server{
		Addr:         addr,
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", addr, "version", version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", "err", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
	sched.Shutdown()
}

// registerJobs installs the built-in job table. Schedules are fixed;
// out-of-band runs go through the action endpoints, which Enqueue.
func (app *application) registerJobs() error {
	jobs := []struct {
		name     string
		schedule string
		task     scheduler.Task
	}{
		{"sync-plex-library", "0 */6 * * *", app.syncer.SyncLibrary},
		{"sync-listening-history", "15 */2 * * *", app.syncer.SyncListeningHistory},
		{"check-new-releases", "30 */6 * * *", app.checkNewReleases},
		{"generate-daily-recommendations", "0 3 * * *", app.generateRecommendations},
		{"update-taste-profile", "0 4 * * 0", app.rec.UpdateProfiles},
		{"process-wishlist", "0 * * * *", app.pipe.ProcessWishlist},
		{"check-download-status", "*/5 * * * *", app.pipe.PollDownloads},
		{"check-playlist-urls", "*/5 * * * *", app.checkPlaylistURLs},
	}
	for _, j := range jobs {
		if err := app.sched.Register(j.name, j.schedule, "", j.task); err != nil {
			return err
		}
	}
	return nil
}

// checkNewReleases chains catalog discovery with the release-radar refresh
// so a fresh album surfaces as a recommendation in the same pass.
func (app *application) checkNewReleases(ctx context.Context) error {
	if err := app.syncer.CheckNewReleases(ctx); err != nil {
		return err
	}
	return app.rec.ReleaseRadarAll(ctx)
}

func (app *application) generateRecommendations(ctx context.Context) error {
	if n, err := app.database.DeleteExpiredRecommendations(); err != nil {
		app.logger.Warn("expired recommendation sweep failed", "err", err)
	} else if n > 0 {
		app.logger.Debug("expired recommendations dropped", "count", n)
	}
	return app.rec.GenerateAll(ctx)
}

// checkPlaylistURLs re-evaluates every playlist_url_check rule; the playlist
// URL itself lives in the rule's action params.
func (app *application) checkPlaylistURLs(ctx context.Context) error {
	return app.rules.Dispatch(ctx, models.TriggerPlaylistURLCheck, rules.PlaylistURLContext(""))
}
