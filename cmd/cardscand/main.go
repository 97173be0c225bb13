package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/card-scanner/internal/auth"
	"github.com/joseph-ayodele/card-scanner/internal/cards"
	"github.com/joseph-ayodele/card-scanner/internal/common"
	"github.com/joseph-ayodele/card-scanner/internal/export"
	"github.com/joseph-ayodele/card-scanner/internal/extract"
	"github.com/joseph-ayodele/card-scanner/internal/ingest"
	"github.com/joseph-ayodele/card-scanner/internal/ocr"
	repo "github.com/joseph-ayodele/card-scanner/internal/repository"
	"github.com/joseph-ayodele/card-scanner/internal/server"
)

const sessionSweepInterval = 15 * time.Minute

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	flag.Parse()

	cfg, err := common.LoadConfigFile(*configPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	logger := common.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, repo.ConfigFrom(cfg.Database), logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	usersRepo := repo.NewUserRepository(db, logger)
	sessionsRepo := repo.NewSessionRepository(db, logger)
	cardsRepo := repo.NewCardRepository(db, logger)

	store, err := ingest.NewStore(cfg.Storage.UploadDir, logger)
	if err != nil {
		logger.Error("failed to prepare upload dir", "error", err)
		os.Exit(1)
	}
	extractor, err := ocr.NewExtractor(ocr.ConfigFrom(cfg.OCR), logger)
	if err != nil {
		logger.Error("failed to build ocr extractor", "error", err)
		os.Exit(1)
	}

	authService := auth.NewService(usersRepo, sessionsRepo, logger, auth.WithSessionTTL(cfg.Server.SessionTTL))
	cardService := cards.NewService(store, extract.NewOCRAdapter(extractor, logger), extract.NewContactExtractor(), cardsRepo, logger)
	exportService := export.NewService(cardsRepo, logger)

	web, err := server.New(authService, cardService, exportService, db, server.Options{
		SecureCookies:  cfg.Server.SecureCookies,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, logger)
	if err != nil {
		logger.Error("failed to build http server", "error", err)
		os.Exit(1)
	}
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           web.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       2 * time.Minute,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	// gRPC health endpoint
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	go func() {
		logger.Info("grpc health listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()
	go func() {
		logger.Info("card-scanner listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()
	go sweepSessions(ctx, authService, logger)

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	grpcServer.GracefulStop()
}

func sweepSessions(ctx context.Context, svc *auth.Service, logger *slog.Logger) {
	t := time.NewTicker(sessionSweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := svc.PurgeExpired(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("session sweep failed", "error", err)
			}
		}
	}
}
