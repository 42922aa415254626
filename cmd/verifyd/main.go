package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joseph-ayodele/receipt-verifier/internal/audit"
	"github.com/joseph-ayodele/receipt-verifier/internal/bootstrap"
	"github.com/joseph-ayodele/receipt-verifier/internal/common"
	svc "github.com/joseph-ayodele/receipt-verifier/internal/server"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.LogLevel, true)
	slog.SetDefault(logger)

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

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	// Ping DB to ensure connectivity
	if err := svc.PingDB(ctx, app.Store, logger, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	var tokens svc.TokenVerifier
	if cfg.Auth.OIDCIssuerURL != "" {
		v, err := svc.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuerURL, cfg.Auth.OIDCClientID)
		if err != nil {
			logger.Error("failed to discover OIDC issuer", "issuer", cfg.Auth.OIDCIssuerURL, "error", err)
			os.Exit(1)
		}
		tokens = v
		logger.Info("bearer token verification enabled", "issuer", cfg.Auth.OIDCIssuerURL)
	} else {
		logger.Warn("OIDC_ISSUER_URL not set; trusting x-actor-id metadata from the gateway")
	}

	if cfg.Audit.Cron != "" {
		sched, err := audit.NewScheduler(cfg.Audit.Cron, app.Auditor, cfg.Audit.Orgs, app.Records, logger)
		if err != nil {
			logger.Error("invalid AUDIT_CRON", "error", err)
			os.Exit(2)
		}
		go sched.Run(ctx)
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", addr, "error", err)
		os.Exit(1)
	}
	service := svc.NewVerificationService(app.Verifier, app.Workflow, logger)
	grpcServer, health := svc.NewGRPCServer(service, tokens, logger, svc.ServerOptions(cfg.Server)...)

	logger.Info("verifyd listening", "addr", addr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	health.Shutdown()
	grpcServer.GracefulStop()
}
