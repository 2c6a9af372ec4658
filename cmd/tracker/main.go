package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"streetmaint/internal/catalog"
	"streetmaint/internal/config"
	cronrunner "streetmaint/internal/cron"
	"streetmaint/internal/db"
	"streetmaint/internal/handler"
	"streetmaint/internal/importer"
	"streetmaint/internal/logger"
	gormrepository "streetmaint/internal/repository/gorm"
	"streetmaint/internal/service"
	"streetmaint/internal/stream"
	"streetmaint/internal/tracker"
)

func main() {
	cfgPath := os.Getenv("SM_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("SM_ENV_ONLY"); envOnlyRaw != "" {
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := gormrepository.New(dbConn.Gorm)

	if err := catalog.Reconcile(ctx, store); err != nil {
		logger.Fatal("event catalog reconcile failed", zap.Error(err))
	}
	eventIndex, err := catalog.IdentifierIndex(ctx, store)
	if err != nil {
		logger.Fatal("loading event catalog failed", zap.Error(err))
	}

	trk := &tracker.Tracker{
		Repo:   store,
		Logger: logger,
		Delay:  cfg.Tracking.Delay,
	}
	var hub *stream.Hub
	if cfg.Stream.Enabled {
		hub = stream.NewHub(logger)
		trk.Notifier = hub
	}

	registry := importer.BuildRegistry(ctx, importer.Deps{
		Repo:          store,
		Tracker:       trk,
		Logger:        logger,
		Events:        eventIndex,
		DropEventless: cfg.Tracking.IgnoreLocationsWithoutEvents,
	}, cfg.Importers, logger)
	if len(registry.All()) == 0 {
		logger.Warn("no importers registered, serving queries only")
	}

	queryService := &service.VehicleQueryService{
		Repo:         store,
		DefaultLimit: cfg.Tracking.DefaultLimit,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(requestIDMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	vehicleHandler := &handler.VehicleHandler{Service: queryService, Logger: logger}
	vehicleHandler.Register(engine)
	importerHandler := &handler.ImporterHandler{Registry: registry, Repo: store, Logger: logger}
	importerHandler.Register(engine)
	if hub != nil {
		streamHandler := &handler.StreamHandler{Hub: hub, Logger: logger}
		streamHandler.Register(engine)
	}

	cronRunner := cronrunner.New(logger, ctx, cfg.Tracking.DispatchExpiry)
	for _, imp := range registry.All() {
		imp := imp
		_, err := cronRunner.AddEvery(imp.RunInterval(), "import_"+imp.Name(), func(ctx context.Context) {
			stats, runErr := imp.Run(ctx)
			if err := importer.RecordRun(ctx, store, imp.Name(), stats, runErr, time.Now()); err != nil {
				logger.Warn("recording import state failed",
					zap.String("importer", imp.Name()), zap.Error(err))
			}
			if runErr != nil {
				logger.Warn("importer run failed",
					zap.String("importer", imp.Name()), zap.Error(runErr))
			}
		})
		if err != nil {
			logger.Warn("cron register importer failed",
				zap.String("importer", imp.Name()), zap.Error(err))
		}
	}
	if cfg.Tracking.SweepEnabled {
		_, err := cronRunner.AddEvery(cfg.Tracking.SweepInterval, "visibility_sweep", func(ctx context.Context) {
			n, err := trk.SweepStaleVehicles(ctx)
			if err != nil {
				logger.Warn("visibility sweep failed", zap.Error(err))
				return
			}
			if n > 0 {
				logger.Info("visibility sweep updated pointers", zap.Int("vehicles", n))
			}
		})
		if err != nil {
			logger.Warn("cron register sweep failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}
