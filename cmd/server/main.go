package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"studio-session/internal/activitysync"
	"studio-session/internal/auth"
	"studio-session/internal/config"
	"studio-session/internal/draft"
	"studio-session/internal/hub"
	"studio-session/internal/idleclock"
	"studio-session/internal/kv"
	"studio-session/internal/log"
	"studio-session/internal/opencard"
	"studio-session/internal/remoteconfig"
	"studio-session/internal/server"
	"studio-session/internal/session"
	"studio-session/internal/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Error().Err(err).Msg("config")
		os.Exit(1)
	}
	log.SetLevel(log.ParseLevel(cfg.LogLevel))
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := kv.Open(ctx, cfg.StoreDriver, cfg.StorePath)
	if err != nil {
		log.Error().Err(err).Str("driver", cfg.StoreDriver).Msg("open store")
		os.Exit(1)
	}
	defer backend.Close()

	st := store.New(backend)
	wsHub := hub.New()
	driver := idleclock.NewDriver(time.Second)
	sessions := session.NewManager(session.Options{
		Store:    st,
		Driver:   driver,
		Config:   remoteconfig.New(cfg.ConfigURL, cfg.SessionDefaults),
		Syncer:   activitysync.New(cfg.ActivitySyncURL),
		Notifier: wsHub,
	})
	defer sessions.Shutdown()

	tokenCfg := auth.TokenConfig{
		Secret: cfg.MasterSecret,
		Expiry: cfg.TokenExpiry,
		Issuer: "studio-session",
	}

	router := server.NewRouter(server.Deps{
		Store:       st,
		Sessions:    sessions,
		Drafts:      draft.New(backend, cfg.DraftTTL),
		Cards:       opencard.New(backend, cfg.DraftTTL),
		Hub:         wsHub,
		TokenConfig: tokenCfg,
	})

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		driver.Run(ctx)
		return nil
	})
	eg.Go(func() error {
		return server.Run(ctx, cfg, router)
	})
	if err := eg.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
