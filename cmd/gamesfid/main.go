package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gamesfi/internal/access"
	"gamesfi/internal/client/pyth"
	"gamesfi/internal/config"
	cronrunner "gamesfi/internal/cron"
	"gamesfi/internal/db"
	"gamesfi/internal/handler"
	"gamesfi/internal/logger"
	"gamesfi/internal/oracle"
	gormrepository "gamesfi/internal/repository/gorm"
	"gamesfi/internal/service"
	"gamesfi/internal/token"
)

func main() {
	cfgPath := os.Getenv("GF_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("GF_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	settingsSvc := &service.SystemSettingsService{Repo: store}
	if err := settingsSvc.EnsureDefaultSwitches(context.Background()); err != nil {
		logger.Warn("init default system switches failed", zap.Error(err))
	}

	gate := &access.Gate{Repo: store, Logger: logger}
	if err := gate.Bootstrap(context.Background(), cfg.App.OwnerAddress); err != nil {
		logger.Fatal("owner bootstrap failed", zap.Error(err))
	}

	ledger := &token.Ledger{Repo: store}
	adapter := &oracle.Adapter{
		Repo:            store,
		Token:           ledger,
		Config:          cfg.Oracle,
		Logger:          logger,
		TreasuryAddress: cfg.Token.TreasuryAddress,
	}
	priceClient := pyth.NewClient(&http.Client{Timeout: cfg.PriceService.Timeout}, cfg.PriceService.BaseURL)

	lotterySvc := &service.LotteryService{
		Repo:     store,
		Gate:     gate,
		Token:    ledger,
		Oracle:   adapter,
		Settings: settingsSvc,
		Config:   cfg.Lottery,
		Treasury: cfg.Token.TreasuryAddress,
		Logger:   logger,
	}
	predictionSvc := &service.PredictionService{
		Repo:     store,
		Gate:     gate,
		Token:    ledger,
		Oracle:   adapter,
		Settings: settingsSvc,
		Config:   cfg.Prediction,
		Treasury: cfg.Token.TreasuryAddress,
		Logger:   logger,
	}
	refresher := &service.OracleRefreshService{
		Client:   priceClient,
		Oracle:   adapter,
		Settings: settingsSvc,
		FeedID:   cfg.Oracle.FeedID,
		Logger:   logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(handler.CallerAddress())

	healthHandler := &handler.HealthHandler{DB: dbConn}
	healthHandler.Register(engine)
	lotteryHandler := &handler.LotteryHandler{Service: lotterySvc, Logger: logger}
	lotteryHandler.Register(engine)
	predictionHandler := &handler.PredictionHandler{Service: predictionSvc, Logger: logger}
	predictionHandler.Register(engine)
	oracleHandler := &handler.OracleHandler{Adapter: adapter, Prediction: predictionSvc, Logger: logger}
	oracleHandler.Register(engine)
	tokenHandler := &handler.TokenHandler{Ledger: ledger, Gate: gate, Logger: logger}
	tokenHandler.Register(engine)
	adminHandler := &handler.AdminHandler{Gate: gate, Settings: settingsSvc, Logger: logger}
	adminHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err = cronRunner.Add("oracle-refresh", cfg.Cron.OracleRefresh, func(ctx context.Context) {
			_ = refresher.RunOnce(ctx)
		})
		if err != nil {
			logger.Warn("cron register oracle refresh failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	if cfg.PriceService.StreamURL != "" {
		stream := &pyth.Stream{
			URL:     cfg.PriceService.StreamURL,
			FeedIDs: []string{cfg.Oracle.FeedID},
			Logger:  logger,
		}
		go func() {
			if err := stream.Run(ctx, func(feed pyth.PriceFeed) {
				refresher.HandleStreamUpdate(ctx, feed)
			}); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("price stream stopped", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Caller-Address")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
