package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxcard/ajo-engine/internal/auth"
	"github.com/voxcard/ajo-engine/internal/config"
	"github.com/voxcard/ajo-engine/internal/contract"
	httphandler "github.com/voxcard/ajo-engine/internal/http"
	"github.com/voxcard/ajo-engine/internal/http/middleware"
	"github.com/voxcard/ajo-engine/internal/logger"
	"github.com/voxcard/ajo-engine/internal/service"
	"github.com/voxcard/ajo-engine/internal/storage"
	"github.com/voxcard/ajo-engine/internal/storage/memory"
	"github.com/voxcard/ajo-engine/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	var store storage.Store
	if cfg.DB.DSN == "" {
		log.Warn().Msg("no DB_DSN configured, using in-memory store")
		store = memory.New()
	} else {
		pg, err := postgres.New(cfg.DB, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect database")
		}
		store = pg
	}
	defer store.Close()

	chainClient := contract.NewRESTClient(cfg.Chain.RESTEndpoint, cfg.Chain.ContractAddress, cfg.Chain.Denom)
	trust := service.StaticTrustScore(cfg.Engine.DefaultTrustScore)

	planService := service.NewPlanService(store, log)
	membershipService := service.NewMembershipService(store, trust, log)
	ledgerService := service.NewLedgerService(store, trust, log)
	reconciler := service.NewReconciler(store, log)
	treasury := service.NewTreasuryService(cfg.Treasury, chainClient, log)
	submitter := service.NewChainSubmitter(reconciler, chainClient, treasury, cfg.Chain.ContractAddress, log)

	if cfg.Engine.PendingExpiry > 0 {
		go expirePendingLoop(reconciler, cfg.Engine.PendingExpiry, log)
	}

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(planService, membershipService, ledgerService, reconciler, submitter, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting ajo service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

// expirePendingLoop sweeps stale pending transaction records on a fixed
// interval so a crashed submission cannot pin a record forever.
func expirePendingLoop(reconciler *service.Reconciler, maxAge time.Duration, log zerolog.Logger) {
	interval := maxAge / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := reconciler.ExpirePending(ctx, maxAge); err != nil {
			log.Error().Err(err).Msg("pending expiry sweep failed")
		}
		cancel()
	}
}
