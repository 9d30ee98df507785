package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/joho/godotenv"
	"github.com/jobhack/web/internal/backend"
	"github.com/jobhack/web/internal/config"
	"github.com/jobhack/web/internal/database"
	"github.com/jobhack/web/internal/fetcher"
	"github.com/jobhack/web/internal/handler"
	"github.com/jobhack/web/internal/savedjobs"
	"github.com/jobhack/web/internal/scheduler"
	"github.com/jobhack/web/internal/server"
	"github.com/jobhack/web/internal/session"
	"github.com/jobhack/web/internal/template"
	"github.com/jobhack/web/internal/view"
	"github.com/rs/zerolog"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("unable to load config")
	}
	if cfg.Env == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	}

	api, err := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout, cfg.BackendRPS, logger.With().Str("component", "backend").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("unable to create backend client")
	}
	jobFetcher, err := fetcher.New(api, cfg.JobsCacheTTL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("unable to create job fetcher")
	}
	registry := view.NewRegistry(jobFetcher, logger)

	sessionStore := sessions.NewCookieStore(cfg.SessionKey)
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.Secure = cfg.Env != "dev"
	sessionStore.Options.SameSite = http.SameSiteLaxMode
	sessionManager := session.NewManager(sessionStore)
	themes := session.NewThemes(sessionManager, session.ParseTheme(cfg.DefaultTheme))
	themes.Subscribe(func(t session.Theme) {
		logger.Debug().Str("theme", string(t)).Msg("theme toggled")
	})

	svr := server.NewServer(
		cfg,
		mux.NewRouter(),
		template.NewTemplate(),
		sessionManager,
		themes,
		logger,
	)

	var saved handler.SavedJobs
	switch cfg.SavedStore {
	case config.SavedStoreMemory:
		saved = handler.StoreSavedJobs(svr, savedjobs.NewMemoryStore())
	case config.SavedStoreRedis:
		rdb, err := database.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("unable to connect to redis")
		}
		defer rdb.Close()
		saved = handler.StoreSavedJobs(svr, savedjobs.NewRedisStore(rdb))
	case config.SavedStorePostgres:
		conn, err := database.GetDbConn(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("unable to connect to postgres")
		}
		defer database.CloseDbConn(conn)
		if err := database.Migrate(context.Background(), conn); err != nil {
			logger.Fatal().Err(err).Msg("unable to migrate database")
		}
		saved = handler.StoreSavedJobs(svr, savedjobs.NewRepository(conn))
	default:
		saved = handler.CookieSavedJobs(svr)
	}

	handler.RegisterRoutes(svr, api, jobFetcher, registry, saved, themes)

	janitor := scheduler.New(registry, cfg.ViewSessionIdle, logger)
	if err := janitor.Start(); err != nil {
		logger.Fatal().Err(err).Msg("unable to start view session janitor")
	}
	defer janitor.Stop()

	logger.Info().Str("saved_store", cfg.SavedStore).Str("backend", cfg.BackendURL).Msg("starting server")
	if err := svr.Run(); err != nil {
		svr.Log(err, "unable to start server")
	}
}
