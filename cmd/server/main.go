package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pathwars/duel-backend/internal/config"
	"github.com/pathwars/duel-backend/internal/gameserver"
	"github.com/pathwars/duel-backend/internal/httpapi"
	"github.com/pathwars/duel-backend/internal/hub"
	"github.com/pathwars/duel-backend/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	var log *zap.Logger
	if cfg.Debug {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, session.Options{PhaseTimeout: cfg.PhaseTimeout}, log)

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.SetupRoutes(h, log),
	}

	gameLn, err := net.Listen("tcp", cfg.GameAddr)
	if err != nil {
		log.Fatal("game listener", zap.Error(err))
	}
	gameSrv := gameserver.New(h, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("game listening", zap.String("addr", cfg.GameAddr))
		return gameSrv.Serve(ctx, gameLn)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.Inbox() <- hub.ShutdownHub{}
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
	log.Info("shutdown complete")
}
