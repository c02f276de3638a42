package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"solstice/config"
	"solstice/observability/logging"
	"solstice/services/settlement/distributor"
	"solstice/services/settlement/models"
	"solstice/services/settlement/oracle"
	"solstice/services/settlement/referral"
	"solstice/services/settlement/server"
	"solstice/services/settlement/snapshot"
	"solstice/services/settlement/store"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.Setup("solsticed", cfg.Env, logging.Options{File: cfg.LogFile})
	logger.Info("configuration loaded",
		logging.MaskSecret("database_url", cfg.DatabaseURL),
		logging.MaskSecret("eth_rpc", cfg.EthRPCURL),
		"snapshot_base", cfg.SnapshotBaseURL,
		"points_base", cfg.PointsBaseURL,
	)

	params, err := config.LoadParams(cfg.ParamsPath)
	if err != nil {
		log.Fatalf("params error: %v", err)
	}
	clock := params.Clock()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("database connection error: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("auto migrate error: %v", err)
	}

	st := store.New(db, clock)

	snapshots := snapshot.NewClient(snapshot.Config{
		BaseURL: cfg.SnapshotBaseURL,
		Timeout: cfg.RequestTimeout,
	})

	var poolB distributor.PoolBSource = oracle.Disabled{}
	if cfg.EthRPCURL != "" {
		src, err := oracle.New(oracle.Config{
			RPCURL:         cfg.EthRPCURL,
			Token:          common.HexToAddress(params.PoolBToken),
			Vault:          common.HexToAddress(params.PoolBVault),
			ActivationWeek: params.PoolBActivationWeek,
		})
		if err != nil {
			log.Fatalf("oracle init error: %v", err)
		}
		poolB = src
	} else {
		logger.Warn("no eth rpc configured, pool B settles as zero")
	}

	dist, err := distributor.New(distributor.Config{
		Store:     st,
		Snapshots: snapshots,
		PoolB:     poolB,
		PoolA:     params.PoolA(),
		Clock:     clock,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("distributor init error: %v", err)
	}

	points := referral.NewPointsClient(referral.PointsConfig{
		BaseURL: cfg.PointsBaseURL,
		Timeout: cfg.RequestTimeout,
	})
	calc, err := referral.New(referral.Config{
		Store:       st,
		Points:      points,
		Clock:       clock,
		Parallelism: cfg.ReferralParallelism,
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("referral init error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go distributor.NewScheduler(distributor.SchedulerConfig{
		Runner: dist,
		Clock:  clock,
		Offset: cfg.DistributorOffset,
		Logger: logger,
	}).Start(ctx)

	// The referral job settles the week that just closed. Its base points
	// only finalize at the week boundary, so settling the current week would
	// freeze a partial projection into the ledger.
	go distributor.NewScheduler(distributor.SchedulerConfig{
		Runner: calc,
		Clock:  clock,
		Offset: cfg.ReferralOffset,
		Lag:    1,
		Logger: logger,
	}).Start(ctx)

	ops := server.New(server.Config{DB: db})
	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: ops.Handler(),
	}
	go func() {
		logger.Info("starting ops server", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown", "err", err)
	}
}
