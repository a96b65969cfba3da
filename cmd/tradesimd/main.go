package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"tradesim/internal/aggregator"
	"tradesim/internal/client"
	"tradesim/internal/config"
	"tradesim/internal/pkg/metrics"
	"tradesim/internal/provider"
	"tradesim/internal/repository"
	"tradesim/internal/restapi"
	"tradesim/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize zap logger: %v", err)
	}
	defer zapLogger.Sync()

	slogHandler := zapslog.NewHandler(zapLogger.Core())
	slog.SetDefault(slog.New(slogHandler))

	cfgPath := getEnv("CONFIG_PATH", "config/config.yaml")
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Warnf("Invalid log level in config: %s. Defaulting to Info.", cfg.Logging.Level)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	zapLogger.Info("Configuration loaded", zap.String("path", cfgPath))

	metrics.MustRegisterMetrics()

	store, err := repository.Open(cfg.Database.Path, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to open database", zap.String("path", cfg.Database.Path), zap.Error(err))
	}
	defer store.Close()
	zapLogger.Info("Database ready", zap.String("path", cfg.Database.Path))

	// Provider order matters: chain-specialized feeds first, the broad
	// DexScreener feed as the fallback for everything.
	var providers []provider.PriceProvider

	if cfg.Pricing.Jupiter.Enabled() {
		jupiterClient := client.NewJupiterClient(
			cfg.Pricing.Jupiter.BaseURL,
			cfg.Pricing.Jupiter.APIKey,
			time.Duration(cfg.Pricing.Jupiter.RequestTimeoutMillis)*time.Millisecond,
			zapLogger,
		)
		providers = append(providers, provider.NewJupiterProvider(
			jupiterClient,
			time.Duration(cfg.Pricing.CacheTTLSeconds)*time.Second,
			zapLogger,
		))
		zapLogger.Info("Jupiter price provider enabled")
	}

	if cfg.Pricing.MultiChain.Enabled() {
		multiChainClient := client.NewMultiChainClient(
			cfg.Pricing.MultiChain.BaseURL,
			cfg.Pricing.MultiChain.APIKey,
			time.Duration(cfg.Pricing.MultiChain.RequestTimeoutMillis)*time.Millisecond,
			zapLogger,
		)
		providers = append(providers, provider.NewMultiChainProvider(
			multiChainClient,
			cfg.EVMChainOrder(),
			time.Duration(cfg.Pricing.CacheTTLSeconds)*time.Second,
			zapLogger,
		))
		zapLogger.Info("Multi-chain EVM price provider enabled")
	} else {
		zapLogger.Info("Multi-chain EVM price provider disabled, no API key configured")
	}

	if cfg.Pricing.DexScreener.Enabled() {
		dexScreenerClient := client.NewDEXScreenerClient(
			cfg.Pricing.DexScreener.BaseURL,
			time.Duration(cfg.Pricing.DexScreener.RequestTimeoutMillis)*time.Millisecond,
			zapLogger,
		)
		providers = append(providers, provider.NewDexScreenerProvider(
			dexScreenerClient,
			time.Duration(cfg.Pricing.CacheTTLSeconds)*time.Second,
			zapLogger,
		))
		zapLogger.Info("DexScreener price provider enabled")
	}

	if len(providers) == 0 {
		zapLogger.Fatal("No price providers enabled, check the pricing configuration")
	}

	prices := aggregator.New(providers, store, aggregator.Options{
		EVMChains:    cfg.EVMChainOrder(),
		CacheTTL:     time.Duration(cfg.Pricing.CacheTTLSeconds) * time.Second,
		ChainMemoTTL: time.Duration(cfg.Pricing.ChainMemoTTLMins) * time.Minute,
		Freshness:    time.Duration(cfg.Pricing.FreshnessMillis) * time.Millisecond,
	}, zapLogger)
	for _, tokens := range cfg.SpecificChainTokens {
		for _, address := range tokens {
			if sc, ok := cfg.KnownTokenChain(address); ok {
				prices.PrimeChainMemo(address, sc)
			}
		}
	}
	zapLogger.Info("Price aggregator initialized", zap.Int("providers", len(providers)))

	portfolioSvc := service.NewPortfolioService(store, prices, zapLogger)
	teamSvc := service.NewTeamService(store, cfg, zapLogger)
	competitionSvc := service.NewCompetitionService(store, zapLogger)
	tradeSvc := service.NewTradeService(store, prices, portfolioSvc, service.TradePolicy{
		AllowCrossChainTrading: cfg.Trading.AllowCrossChainTrading,
		MaxPortfolioFraction:   cfg.Trading.MaxPortfolioFraction,
		MinTradeFromAmount:     cfg.Trading.MinTradeFromAmount,
	}, zapLogger)

	scheduler := service.NewSnapshotScheduler(
		store,
		portfolioSvc,
		time.Duration(cfg.Snapshots.IntervalMillis)*time.Millisecond,
		cfg.Snapshots.StopOnError,
		zapLogger,
	)
	scheduler.Start()
	zapLogger.Info("Snapshot scheduler started", zap.Int64("intervalMillis", cfg.Snapshots.IntervalMillis))

	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.Use(restapi.ZapLogger(zapLogger))
	router.Use(gin.Recovery())

	handlers := restapi.Handlers{
		Trade:   restapi.NewTradeHandler(tradeSvc, store, zapLogger),
		Account: restapi.NewAccountHandler(store, portfolioSvc, tradeSvc, zapLogger),
		Price:   restapi.NewPriceHandler(prices, zapLogger),
		Admin:   restapi.NewAdminHandler(teamSvc, competitionSvc, zapLogger),
	}
	restapi.SetupRouter(router, handlers, store, cfg.Admin.RootAPIKey, store, zapLogger)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	zapLogger.Info("Prometheus metrics endpoint enabled", zap.String("path", "/metrics"))

	pprofRouter := router.Group("/debug/pprof")
	{
		pprofRouter.GET("/", gin.WrapF(pprof.Index))
		pprofRouter.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pprofRouter.GET("/profile", gin.WrapF(pprof.Profile))
		pprofRouter.POST("/symbol", gin.WrapF(pprof.Symbol))
		pprofRouter.GET("/symbol", gin.WrapF(pprof.Symbol))
		pprofRouter.GET("/trace", gin.WrapF(pprof.Trace))
		pprofRouter.GET("/allocs", gin.WrapH(pprof.Handler("allocs")))
		pprofRouter.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
		pprofRouter.GET("/heap", gin.WrapH(pprof.Handler("heap")))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		zapLogger.Info(fmt.Sprintf("Server starting on %s", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	scheduler.Stop()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		zapLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exiting")
}
