package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seating-plan/internal/config"
	"github.com/iliyamo/seating-plan/internal/database"
	"github.com/iliyamo/seating-plan/internal/engine"
	"github.com/iliyamo/seating-plan/internal/handler"
	"github.com/iliyamo/seating-plan/internal/metrics"
	"github.com/iliyamo/seating-plan/internal/middleware"
	"github.com/iliyamo/seating-plan/internal/queue"
	"github.com/iliyamo/seating-plan/internal/repository"
	"github.com/iliyamo/seating-plan/internal/router"
	queue_publisher "github.com/iliyamo/seating-plan/internal/service"
	"github.com/iliyamo/seating-plan/internal/utils"
)

// Usage:
//
//	server                 run the HTTP API
//	server audit-worker    persist audit entries from the plan.audit queue
//	server token <user_id> print a development access token
func main() {
	_ = godotenv.Load()

	mode := "serve"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch mode {
	case "serve":
		err = serve(ctx)
	case "audit-worker":
		err = auditWorker(ctx)
	case "token":
		err = printToken(os.Args[2:])
	default:
		err = fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		utils.Log.WithError(err).Fatal("exiting")
	}
}

func serve(ctx context.Context) error {
	cfg := config.Load()
	log := utils.InitLogger(cfg.LogLevel, cfg.LogFormat)
	qcfg := config.LoadQueueConfig()

	store, db, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	eng := engine.New(store, engineConfig(config.LoadEngineConfig()))
	eng.Log = log
	eng.Metrics = metrics.New(reg)
	if qcfg.URL != "" {
		pub := queue_publisher.New(qcfg.URL, log)
		eng.Audit = pub
		if qcfg.PublishCommits {
			eng.Notifier = pub
		}
	} else if w, ok := store.(engine.AuditWriter); ok {
		eng.Audit = engine.DirectAuditSink{Writer: w}
	}
	defer eng.Wait()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable; rate limiting and snapshot cache disabled")
	} else {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout
	e.Use(middleware.RequestLogger(log))

	var pinger handler.Pinger
	if db != nil {
		pinger = db
	}
	router.RegisterRoutes(e, handler.Health(pinger),
		echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	router.RegisterPlan(e, router.Deps{
		Plans:     handler.NewPlanHandler(eng),
		JWTSecret: cfg.JWTSecret,
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	})

	addr := ":" + cfg.Port
	log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "store": cfg.Store}).Info("listening")
	errc := make(chan error, 1)
	go func() { errc <- e.Start(addr) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdown)
}

func auditWorker(ctx context.Context) error {
	cfg := config.Load()
	log := utils.InitLogger(cfg.LogLevel, cfg.LogFormat)
	if cfg.Store != config.StoreMySQL {
		return errors.New("audit-worker requires PLAN_STORE=mysql")
	}
	qcfg := config.LoadQueueConfig()
	if qcfg.URL == "" {
		return errors.New("audit-worker requires RABBITMQ_URL")
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	log.WithField("queue", queue.AuditQueueName).Info("audit-worker started")
	c := &queue.AuditConsumer{
		URL:          qcfg.URL,
		Writer:       repository.NewPlanRepo(db, cfg.DBTimeout),
		Log:          log,
		RequeueDelay: qcfg.RequeueDelay,
	}
	return c.Run(ctx)
}

func printToken(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: server token <user_id>")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	tok, err := utils.NewAccessToken(secret, args[0], 12*time.Hour)
	if err != nil {
		return err
	}
	fmt.Println(tok.Token)
	return nil
}

// openStore returns the configured plan store and, for MySQL, the handle
// so the caller can close it and use it for health checks.
func openStore(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (engine.Store, *sql.DB, error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory plan store; data is lost on restart")
		return repository.NewMemoryPlanRepo(), nil, nil
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	return repository.NewPlanRepo(db, cfg.DBTimeout), db, nil
}

func engineConfig(c config.EngineConfig) engine.Config {
	return engine.Config{
		MaxOps:            c.MaxOps,
		LockTTL:           c.LockTTL,
		AuditRetries:      c.AuditRetries,
		AuditRetryBackoff: c.AuditRetryBackoff,
	}
}
