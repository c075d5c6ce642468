// Package app wires configuration, storage, domain services, and the HTTP
// server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/appetit/checkout/internal/domain/hours"
	"github.com/appetit/checkout/internal/domain/order"
	"github.com/appetit/checkout/internal/domain/pricing"
	"github.com/appetit/checkout/internal/domain/promo"
	"github.com/appetit/checkout/internal/handler"
	"github.com/appetit/checkout/internal/notify"
	"github.com/appetit/checkout/internal/postgres"
	"github.com/appetit/checkout/pkg/health"
	"github.com/appetit/checkout/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles
// graceful shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	catalogRepo := postgres.NewCatalogRepository(pool)
	promoRepo := postgres.NewPromoRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	addressRepo := postgres.NewAddressRepository(pool)
	deviceRepo := postgres.NewDeviceRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Business hours live in the configured business timezone.
	loc := time.FixedZone("business", cfg.Hours.TZOffsetHours*3600)
	schedule := hours.New(loc, hours.Default())

	// Domain services.
	promoSvc := promo.NewService(promoRepo)
	engine := pricing.NewEngine(catalogRepo, promoSvc)

	// Side-effect senders. Missing credentials disable a target without
	// affecting checkout.
	pushSender, err := notify.NewFCMSender(ctx, cfg.Notify.FCMCredentialsFile)
	if err != nil {
		return errors.Wrap(err, "init fcm")
	}
	streams := map[string]string{}
	if cfg.Notify.GA4WebStreamID != "" {
		streams["web"] = cfg.Notify.GA4WebStreamID
	}
	if cfg.Notify.GA4AppStreamID != "" {
		streams["app"] = cfg.Notify.GA4AppStreamID
	}
	platforms := make([]string, 0, len(streams))
	for platform := range streams {
		platforms = append(platforms, platform)
	}
	dispatcher := notify.NewDispatcher(
		notify.NewResendSender(cfg.Notify.ResendAPIKey, cfg.Notify.FromEmail, cfg.Notify.FromName),
		pushSender,
		notify.NewGA4Sender(cfg.Notify.GA4APISecret, streams),
		deviceRepo,
		platforms,
	)

	orderSvc := order.NewService(
		schedule, engine, catalogRepo, orderRepo, addressRepo, dispatcher,
		cfg.NumberPrefix, lg.Named("order"),
	)

	// HTTP handlers.
	securityHandler := handler.NewSecurityHandler(apikeyRepo, []byte(cfg.APIKeyPepper))
	h := handler.NewHandler(orderSvc, engine, schedule, securityHandler, lg.Named("http"))

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	instrumented := otelhttp.NewHandler(mux, "checkout-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(instrumented,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-API-Key", "X-User-ID"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
