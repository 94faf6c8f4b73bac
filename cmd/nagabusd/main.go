package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joseph-ayodele/nagabus/internal/async"
	"github.com/joseph-ayodele/nagabus/internal/common"
	"github.com/joseph-ayodele/nagabus/internal/export"
	"github.com/joseph-ayodele/nagabus/internal/naga"
	"github.com/joseph-ayodele/nagabus/internal/orders"
	"github.com/joseph-ayodele/nagabus/internal/paipu"
	repo "github.com/joseph-ayodele/nagabus/internal/repository"
	svc "github.com/joseph-ayodele/nagabus/internal/server"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	addr := cfg.Server.GRPCAddr
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := svc.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer svc.CloseDB(db, logger)

	var client naga.Client
	if cfg.Naga.UseFake {
		logger.Warn("using the in-memory NAGA, no real orders will be placed", "delay", cfg.Naga.FakeDelay.String())
		client = naga.NewFakeClient(cfg.Naga.FakeDelay, logger.With("component", "fake_naga"))
	} else {
		client = naga.NewHTTPClient(naga.HTTPConfig{
			BaseURL: cfg.Naga.BaseURL,
			Timeout: cfg.Naga.HTTPTimeout,
			Cookies: cfg.Naga.Cookies,
		}, logger.With("component", "naga_http"))
	}
	defer func() { _ = client.Close() }()

	ordersRepo := repo.NewOrderRepository(db, logger)
	settingsRepo := repo.NewSettingsRepository(db, logger)
	paipuRepo := repo.NewPaipuRepository(db, logger)

	downloader := paipu.NewHTTPDownloader(cfg.Paipu.MirrorURL, cfg.Paipu.HTTPTimeout, logger.With("component", "paipu_http"))
	docs := paipu.NewService(paipuRepo, downloader, logger)

	dispatcher := async.NewPool(logger,
		async.WithName("observers"),
		async.WithWorkers(8),
		async.WithQueueSize(256),
		async.WithTaskTimeout(30*time.Second),
	)

	coordinator := orders.NewService(client, ordersRepo, settingsRepo, docs, orders.FromAppConfig(cfg.Naga), logger,
		orders.WithDispatcher(dispatcher))

	cookies, err := coordinator.LoadCredentials(ctx, cfg.Naga.Cookies)
	if err != nil {
		logger.Error("failed to load naga credentials", "error", err)
		os.Exit(1)
	}
	if len(cookies) == 0 && !cfg.Naga.UseFake {
		logger.Warn("no naga credentials configured, orders fail until SetCredentials is called")
	}

	exporter := export.NewService(coordinator, logger)
	grpcServer, healthServer := svc.NewGRPCServer(svc.NewAnalysisServer(coordinator, exporter, logger), logger)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", addr, "error", err)
		os.Exit(1)
	}

	logger.Info("nagabus listening", "addr", addr, "dialect", db.Dialect())
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	coordinator.Close(shutdownCtx)
	dispatcher.Shutdown(shutdownCtx)
}
