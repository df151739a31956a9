package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"terminbuddy/internal/email"
	"terminbuddy/internal/events"
	"terminbuddy/internal/handlers"
	"terminbuddy/internal/identity"
	"terminbuddy/internal/reminder"
	"terminbuddy/internal/storage"
	"terminbuddy/libs/config"
	"terminbuddy/libs/db"
	"terminbuddy/libs/httpx"
	"terminbuddy/libs/kafkax"
	otelx "terminbuddy/libs/otel"
	"terminbuddy/libs/runtime"
)

const serviceName = "terminbuddy"

func main() {
	_ = godotenv.Load()

	logger := runtime.NewLogger(serviceName)
	if err := run(logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := runtime.SignalContext()
	defer stop()

	port, err := config.Port("PORT", "8080")
	if err != nil {
		return err
	}
	databaseURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return err
	}
	identityURL, err := config.RequiredString("IDENTITY_URL")
	if err != nil {
		return err
	}

	shutdownTracing, err := otelx.Setup(ctx, otelx.ConfigFromEnv(serviceName))
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "err", err)
		}
	}()

	pool, err := db.Open(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("database connected")

	readyChecks := []runtime.ReadyCheck{
		{Name: "postgres", Check: db.ReadyCheck(pool)},
	}

	// Redis is optional; without it the rate limiter is in-memory and every
	// request verifies its token against the identity provider.
	var rdb *redis.Client
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
		})
		defer rdb.Close()
		readyChecks = append(readyChecks, runtime.ReadyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		logger.Info("redis configured", "addr", addr)
	}

	idp := identity.NewClient(identityURL, config.String("IDENTITY_API_KEY", ""))
	var verifier identity.Verifier = idp
	if rdb != nil {
		verifier = identity.NewCachedVerifier(idp, rdb, config.Minutes("IDENTITY_CACHE_MIN", time.Minute), logger)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		kp := events.NewKafkaPublisher(brokers, config.String("KAFKA_TOPIC", "terminbuddy.appointments"), logger)
		defer kp.Close()
		publisher = kp
		readyChecks = append(readyChecks, runtime.ReadyCheck{
			Name:    "kafka",
			Timeout: 3 * time.Second,
			Check:   kafkax.ReadyCheck(brokers),
		})
		logger.Info("kafka configured", "brokers", brokers)
	}

	sender := email.NewSMTPSender(
		config.String("SMTP_HOST", "localhost"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_USER", ""),
		config.String("SMTP_PASS", ""),
		config.String("SMTP_FROM", ""),
	)

	businesses := storage.NewBusinessRepository(pool)
	clients := storage.NewClientRepository(pool)
	appointments := storage.NewAppointmentRepository(pool)
	reminders := storage.NewReminderStore(pool)

	dispatcher := reminder.NewDispatcher(reminders, sender, logger, reminder.Config{
		Enable24Hour: config.Bool("REMINDER_24H", true),
		Enable2Hour:  config.Bool("REMINDER_2H", true),
		Window:       config.Minutes("REMINDER_WINDOW_MIN", 5*time.Minute),
		BatchLimit:   config.Int("REMINDER_BATCH_LIMIT", 250),
	})

	auth := handlers.NewSessionAuth(verifier, businesses, logger)
	authHandler := handlers.NewAuthHandler(idp, logger)
	businessHandler := handlers.NewBusinessHandler(businesses, logger)
	clientHandler := handlers.NewClientHandler(clients, logger)
	appointmentHandler := handlers.NewAppointmentHandler(appointments, clients, publisher, sender, logger)
	dashboardHandler := handlers.NewDashboardHandler(appointments, logger)
	cronHandler := handlers.NewCronHandler(config.String("CRON_SECRET", ""), dispatcher, logger)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)

	mux.HandleFunc("POST /api/v1/auth/signup", authHandler.SignUp)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.SignIn)
	mux.HandleFunc("POST /api/v1/auth/logout", authHandler.SignOut)
	mux.Handle("GET /api/v1/me", auth.RequireUser(http.HandlerFunc(authHandler.Me)))

	mux.Handle("POST /api/v1/business", auth.RequireUser(http.HandlerFunc(businessHandler.Create)))
	mux.Handle("GET /api/v1/business", auth.RequireBusiness(http.HandlerFunc(businessHandler.Get)))

	mux.Handle("POST /api/v1/clients", auth.RequireBusiness(http.HandlerFunc(clientHandler.Create)))
	mux.Handle("GET /api/v1/clients", auth.RequireBusiness(http.HandlerFunc(clientHandler.List)))
	mux.Handle("GET /api/v1/clients/{id}", auth.RequireBusiness(http.HandlerFunc(clientHandler.Get)))
	mux.Handle("PUT /api/v1/clients/{id}", auth.RequireBusiness(http.HandlerFunc(clientHandler.Update)))
	mux.Handle("DELETE /api/v1/clients/{id}", auth.RequireBusiness(http.HandlerFunc(clientHandler.Delete)))

	mux.Handle("POST /api/v1/appointments", auth.RequireBusiness(http.HandlerFunc(appointmentHandler.Create)))
	mux.Handle("GET /api/v1/appointments", auth.RequireBusiness(http.HandlerFunc(appointmentHandler.List)))
	mux.Handle("GET /api/v1/appointments/{id}", auth.RequireBusiness(http.HandlerFunc(appointmentHandler.Get)))
	mux.Handle("PUT /api/v1/appointments/{id}", auth.RequireBusiness(http.HandlerFunc(appointmentHandler.Update)))
	mux.Handle("POST /api/v1/appointments/{id}/cancel", auth.RequireBusiness(http.HandlerFunc(appointmentHandler.Cancel)))
	mux.Handle("POST /api/v1/appointments/{id}/complete", auth.RequireBusiness(http.HandlerFunc(appointmentHandler.Complete)))
	mux.Handle("GET /api/v1/appointments/{id}/calendar.ics", auth.RequireBusiness(http.HandlerFunc(appointmentHandler.ExportICS)))

	mux.Handle("GET /api/v1/dashboard", auth.RequireBusiness(http.HandlerFunc(dashboardHandler.Summary)))

	// Hosted schedulers differ on the verb they can emit, so both are accepted.
	mux.HandleFunc("GET /api/v1/cron/reminders", cronHandler.Dispatch)
	mux.HandleFunc("POST /api/v1/cron/reminders", cronHandler.Dispatch)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(1 << 20),
	}
	if rdb != nil {
		rl := httpx.NewRedisRateLimiter(rdb, config.Int("RATE_LIMIT_PER_MIN", 120), time.Minute, serviceName)
		middlewares = append(middlewares, rl.Middleware(logger, true))
	} else {
		rl := httpx.NewRateLimiter(config.Int("RATE_LIMIT_PER_MIN", 120), time.Minute)
		middlewares = append(middlewares, rl.Middleware())
	}

	handler := otelhttp.NewHandler(httpx.Chain(mux, middlewares...), serviceName)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
