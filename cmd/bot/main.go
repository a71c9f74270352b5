package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"earnify-bot/internal/bot"
	"earnify-bot/internal/config"
	"earnify-bot/internal/database"
	"earnify-bot/internal/ledger"
	"earnify-bot/internal/models"
	"earnify-bot/internal/ops"
	"earnify-bot/internal/worker"
)

func main() {
	// Load Configuration
	cfg := config.LoadConfig()

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Could not build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to Database
	db, err := database.Connect(cfg, logger)
	if err != nil {
		logger.Fatal("Could not connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("Could not access database pool", zap.Error(err))
	}
	defer sqlDB.Close()

	svc := ledger.NewService(database.NewStore(db), logger, ledger.Options{
		MinWithdrawal:    cfg.MinWithdrawal,
		MinTxIDLength:    cfg.MinTxIDLength,
		SweepWorkers:     cfg.SweepWorkers,
		SweepUserTimeout: cfg.SweepUserTimeout,
	})

	plans := make([]models.InvestmentPlan, 0, len(cfg.SeedPlans))
	for _, p := range cfg.SeedPlans {
		plans = append(plans, models.InvestmentPlan{Amount: p.Amount, DailyEarningRate: p.DailyEarningRate})
	}
	if err := svc.SeedPlans(ctx, plans); err != nil {
		logger.Fatal("Could not seed investment plans", zap.Error(err))
	}
	if n, err := svc.PromoteAdmins(ctx, cfg.AdminIDs); err != nil {
		logger.Error("Could not promote admins", zap.Error(err))
	} else if n > 0 {
		logger.Info("Admins promoted", zap.Int64("count", n))
	}

	checks := map[string]ops.Pinger{"database": ops.PingerFunc(sqlDB.PingContext)}

	// Redis is optional: without it sweeps run unlocked and reports are not kept.
	sweeper := worker.NewSweeper(svc, nil, nil, logger, cfg.SweepSchedule, cfg.SweepLockTTL)
	rdb, err := database.ConnectRedis(ctx, cfg, logger)
	if err != nil {
		logger.Warn("Redis unavailable, sweep lock disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		sweeper.Locker = worker.NewRedisLock(rdb)
		sweeper.Reports = worker.NewRedisReports(rdb)
		checks["redis"] = ops.PingerFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	if err := sweeper.Start(ctx); err != nil {
		logger.Fatal("Could not start sweep worker", zap.Error(err))
	}

	allow, err := ops.ParseAllowList(cfg.OpsAllowedCIDRs)
	if err != nil {
		logger.Fatal("Invalid OPS_ALLOWED_CIDRS", zap.Error(err))
	}
	server := ops.NewServer(cfg.OpsAddr, ops.NewRouter(checks, allow, logger))
	go func() {
		logger.Info("Ops listener started", zap.String("addr", cfg.OpsAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Ops listener failed", zap.Error(err))
		}
	}()

	if cfg.BotToken == "" {
		logger.Warn("TELEGRAM_BOT_TOKEN is empty, running sweeps only")
	} else {
		tgBot, err := bot.NewBot(cfg.BotToken, svc, sweeper, logger)
		if err != nil {
			logger.Fatal("Could not create bot", zap.Error(err))
		}
		svc.SetNotifier(bot.NewNotifier(tgBot.Instance, cfg.AdminChatIDs, logger))
		go func() {
			if err := tgBot.Start(ctx); err != nil {
				logger.Error("Bot stopped", zap.Error(err))
				stop()
			}
		}()
	}

	logger.Info("Service started successfully")
	<-ctx.Done()

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Ops listener shutdown failed", zap.Error(err))
	}
}

func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
