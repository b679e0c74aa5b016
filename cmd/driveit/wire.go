// README: Wiring; loads config, builds infra clients and the route service.
package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/mihir-logicrays/drive-it/internal/config"
	"github.com/mihir-logicrays/drive-it/internal/infra"
	"github.com/mihir-logicrays/drive-it/internal/logger"
	"github.com/mihir-logicrays/drive-it/internal/metrics"
	"github.com/mihir-logicrays/drive-it/internal/modules/notify"
	"github.com/mihir-logicrays/drive-it/internal/modules/route"
)

type app struct {
	cfg      config.Config
	db       *pgxpool.Pool
	redis    *redis.Client
	registry *prometheus.Registry
	paths    *route.Service
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Setup(cfg.Log)
	log := logger.For("main")

	messagingClient, err := infra.NewMessaging(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("firebase init: %w", err)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	engineMetrics, err := metrics.NewEngine(registry)
	if err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	var claimer route.Claimer = route.NoopClaimer{}
	if redisClient != nil {
		claimer = route.NewRedisClaimer(redisClient, cfg.Paths.ClaimTTL)
	} else {
		log.Warn("DRIVEIT_REDIS_ADDR not set, routes are processed without a claim")
	}

	mailer, err := notify.NewMailer(cfg.Mail)
	if err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("mail: %w", err)
	}
	if mailer == nil {
		log.Warn("DRIVEIT_SMTP_HOST not set, unmatched alerts are logged only")
	}
	dispatcher := notify.NewDispatcher(notify.NewPush(messagingClient), mailer)

	routeStore := route.NewStore(dbPool)
	paths := route.NewService(routeStore, routeStore, dispatcher, claimer, engineMetrics, cfg.Paths)

	return &app{
		cfg:      cfg,
		db:       dbPool,
		redis:    redisClient,
		registry: registry,
		paths:    paths,
	}, nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.For("main").WithError(err).Warn("redis close")
		}
	}
	a.db.Close()
}
