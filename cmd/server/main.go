package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"service_orders/internal/config"
	"service_orders/internal/database"
	"service_orders/internal/handlers"
	"service_orders/internal/migrations"
	"service_orders/internal/redis"
	"service_orders/internal/repository"
	"service_orders/internal/services"
	"service_orders/pkg/whatsapp"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "service-orders",
		Usage: "service order, task and payment reconciliation API",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the HTTP API",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "create or update the database schema",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "seed", Usage: "insert a demo client, worker and project"},
				},
				Action: migrate,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("service-orders stopped")
	}
}

func setupLogging(cfg *config.Config) {
	log.SetFormatter(&log.JSONFormatter{})
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func migrate(c *cli.Context) error {
	cfg := config.Load()
	setupLogging(cfg)

	db, err := database.Initialize(cfg.DatabaseURL, cfg.LogLevel)
	if err != nil {
		return err
	}
	return migrations.RunMigrations(c.Context, db, c.Bool("seed"))
}

func serve(c *cli.Context) error {
	cfg := config.Load()
	setupLogging(cfg)

	db, err := database.Initialize(cfg.DatabaseURL, cfg.LogLevel)
	if err != nil {
		return err
	}
	store := repository.NewStore(db)

	// Statistics are served uncached when Redis is unavailable.
	var cache services.StatsCache
	redisClient, err := redis.Initialize(cfg.RedisURL, cfg.StatsCacheTTL)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, payment statistics will not be cached")
	} else {
		defer redisClient.Close()
		cache = redisClient
	}

	var sender services.MessageSender
	if cfg.NotificationsEnabled {
		sender = whatsapp.NewClient(cfg.WhatsAppAPIURL, cfg.WhatsAppUsername, cfg.WhatsAppPassword, cfg.WhatsAppPath)
	}

	taskService := services.NewTaskService(store)
	orderService := services.NewOrderService(store)
	paymentLedger := services.NewPaymentLedger(store)
	statsService := services.NewStatsService(store, cache)
	notificationService := services.NewNotificationService(store.Clients(), sender)
	coordinator := services.NewCoordinator(store, taskService, orderService, paymentLedger, statsService, notificationService)

	apiHandler := handlers.NewAPIHandler(taskService, orderService, paymentLedger, statsService, coordinator)

	router := gin.New()
	router.Use(gin.Recovery(), handlers.RequestLogger(), handlers.Timeout(cfg.RequestTimeout), handlers.OperatorAuth(cfg.OperatorTokenHash))
	apiHandler.RegisterRoutes(router)

	srv := &http.Server{Addr: ":" + cfg.ServerPort, Handler: router}
	go func() {
		log.WithField("port", cfg.ServerPort).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
