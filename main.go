package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	oshttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"kurator/internal/api"
	"kurator/internal/broker"
	"kurator/internal/chat"
	"kurator/internal/commands"
	"kurator/internal/config"
	"kurator/internal/dispatch"
	"kurator/internal/http"
	"kurator/internal/identity"
	"kurator/internal/presence"
	"kurator/internal/storage"
	"kurator/internal/ws"
)

func run(ctx context.Context) error {
	addTopic := flag.String("add-topic", "", "Topic title to create (pairs with -permission)")
	permission := flag.String("permission", "", "Permission label for -add-topic")
	flag.Parse()

	cfg, err := config.Load(*addTopic != "")
	if err != nil {
		return err
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *addTopic != "" {
		return commands.AddTopic(*addTopic, *permission, cfg)
	}

	bbStorage, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = bbStorage.Close() }()

	identityService, err := identity.NewService(ctx, identity.Config{
		Secret:   cfg.JWTSecret,
		CacheTTL: cfg.TokenCacheTTL,
	}, bbStorage)
	if err != nil {
		return err
	}

	registry := presence.NewRegistry(cfg.PresenceTTL)
	local := broker.NewLocal(cfg.SendBuffer)
	dispatcher := dispatch.New(local, registry, log)

	chatService := chat.NewService(bbStorage, dispatcher, log)
	hub := ws.NewHub(registry, local, dispatcher, log)
	wsServer := ws.NewServer(identityService, hub, log)

	handlers := api.New(identityService, chatService, bbStorage, hub, log)
	apiServer := http.NewAPIServer(handlers, wsServer, cfg.Addr, log)
	adminServer := http.NewAdminServer(handlers, cfg.AdminAddr, log)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return registry.Run(gCtx, cfg.PresenceSweep)
	})

	g.Go(func() error {
		err := apiServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := adminServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Error("API server shutdown", "error", err)
		}
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			log.Error("admin server shutdown", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}
