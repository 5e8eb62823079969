package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/drivoro/vehicle-rental/internal/config"
	"github.com/drivoro/vehicle-rental/internal/database"
	"github.com/drivoro/vehicle-rental/internal/engine"
	"github.com/drivoro/vehicle-rental/internal/handler"
	"github.com/drivoro/vehicle-rental/internal/middleware"
	"github.com/drivoro/vehicle-rental/internal/queue"
	"github.com/drivoro/vehicle-rental/internal/repository"
	"github.com/drivoro/vehicle-rental/internal/router"
	queuepublisher "github.com/drivoro/vehicle-rental/internal/service"
)

func main() {
	// .env is optional; real deployments inject the environment.
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	log := logger.WithField("service", "reservation-engine")

	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable; rate limiting and sweep leader lock disabled")
	}

	reservations := repository.NewReservationRepo(db, cfg.StoreTimeout)
	vehicles := repository.NewVehicleRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	publisher := queuepublisher.New("", log)

	eng := engine.New(reservations, vehicles, publisher, log, engine.Options{
		StoreTimeout:       cfg.StoreTimeout,
		CancellationCutoff: cfg.CancelCutoff,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := queue.StartIntentConsumer(log); err != nil {
			log.WithError(err).Error("intent consumer stopped")
		}
	}()

	sweeper := &engine.Sweeper{
		Engine:   eng,
		Interval: cfg.SweepInterval,
		Locker:   rdb,
		LockTTL:  cfg.SweepLockTTL,
		Log:      log,
	}
	go func() {
		if err := sweeper.Run(ctx); err != nil && err != context.Canceled {
			log.WithError(err).Error("schedule sweep stopped")
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())

	var limit echo.MiddlewareFunc
	if rdb != nil {
		limit = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	}

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens))
	router.RegisterBookings(e,
		handler.NewBookingHandler(eng, vehicles),
		handler.NewPartnerBookingHandler(eng),
		handler.NewVehicleHandler(vehicles),
		cfg.JWTSecret, limit)
	router.RegisterPayments(e, handler.NewPaymentHandler(eng, cfg.PaymentSecret))

	go func() {
		<-ctx.Done()
		if err := e.Shutdown(context.Background()); err != nil {
			log.WithError(err).Error("server shutdown failed")
		}
	}()

	if err := e.Start(":" + cfg.Port); err != nil {
		log.WithError(err).Info("server stopped")
	}
}
