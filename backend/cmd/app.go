package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/adwski/lysn/backend/config"
	httpServer "github.com/adwski/lysn/backend/server/http"
	websocketServer "github.com/adwski/lysn/backend/server/websocket"
	"github.com/adwski/lysn/backend/service"
	store "github.com/adwski/lysn/backend/storage/memory"
	sw "github.com/adwski/lysn/backend/switch"
	"github.com/adwski/lysn/backend/timing"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	var (
		rooms   = store.NewMemStore(store.Config{})
		anchors = timing.NewCoordinator(cfg.Sync.Stale)
	)
	svc := service.NewService(service.Config{
		RoomStore: rooms,
		Switch: sw.NewSwitch(sw.Config{
			Logger:  &logger,
			Members: rooms,
			Anchors: anchors,
		}),
		Anchors:           anchors,
		Logger:            &logger,
		ReconcileInterval: cfg.Sync.Tick,
		CleanupInterval:   cfg.Cleanup.Interval,
		RoomMaxAge:        cfg.Cleanup.RoomMaxAge,
		StatusInterval:    cfg.StatusInterval,
	})
	httpSrv := httpServer.NewServer(httpServer.Config{
		Logger: &logger,
		Status: svc,
		WebSocketHandler: websocketServer.NewHandler(websocketServer.Config{
			Logger:           &logger,
			SignalingService: svc,
			SendBufferSize:   cfg.SendBuffer,
		}),
		ListenAddr: cfg.ListenAddr,
		StaticDir:  cfg.StaticDir,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 1)
	)
	wg.Add(2)
	go httpSrv.Run(ctx, wg, errc)
	go svc.Run(ctx, wg)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
}
