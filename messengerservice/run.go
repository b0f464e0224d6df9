package messengerservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/api"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/auth"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/config"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/delivery"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/factory"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/health"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/logger"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/mailer"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/media"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/metrics"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/presence"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/realtime"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/services"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Run starts the messenger HTTP server and blocks until shutdown or error.
func Run() error {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load(".env")

	log := logger.New("messenger")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Msg("Messenger service starting")

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	deps, err := initDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close(log)
	go deps.mail.Run(ctx)

	// Start health checkers; block startup until the store answers
	svcHealth := startHealthCheckers(ctx, cfg, log, deps.store)
	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	hub := newHub(cfg, deps, log)
	router := buildRouter(cfg, deps, hub, svcHealth, log)
	server := newHTTPServer(cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		return shutdown(server, hub, log)
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		_ = shutdown(server, hub, log)
		return err
	}
}

// dependencies are the long-lived components shared by the HTTP and
// websocket surfaces.
type dependencies struct {
	store    store.Store
	closer   io.Closer
	metrics  *metrics.Metrics
	registry *presence.Registry
	mail     *mailer.Queue
	authn    *auth.Authenticator
	sessions *services.SessionService
	messages *services.MessageService
}

func (d *dependencies) close(log zerolog.Logger) {
	d.mail.Close()
	if d.closer == nil {
		return
	}
	if err := d.closer.Close(); err != nil {
		log.Error().Err(err).Msg("closing store")
	}
}

// initDependencies constructs required components and enforces fail-fast on missing deps.
func initDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*dependencies, error) {
	st, closer, err := factory.NewStore(ctx, cfg, logger.Component(log, "store"))
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return nil, err
	}

	m := metrics.New()
	registry := presence.NewRegistry()
	dispatcher := delivery.NewDispatcher(registry, m, logger.Component(log, "delivery"))
	tokens := auth.NewTokens(cfg.JWTSecret)
	mail := mailer.NewQueue(newMailer(cfg, log), mailer.QueueConfig{}, logger.Component(log, "mailer"))

	return &dependencies{
		store:    st,
		closer:   closer,
		metrics:  m,
		registry: registry,
		mail:     mail,
		authn:    auth.NewAuthenticator(tokens, st.Users(), logger.Component(log, "auth")),
		sessions: services.NewSessionService(st, tokens, mail, cfg.ClientURL, logger.Component(log, "sessions")),
		messages: services.NewMessageService(st, media.New(cfg.UploadURL, cfg.UploadPreset), dispatcher, m, logger.Component(log, "messages")),
	}, nil
}

// newMailer picks the Resend client when an API key is configured and a
// log-only sender otherwise.
func newMailer(cfg *config.Config, log zerolog.Logger) mailer.Sender {
	mlog := logger.Component(log, "mailer")
	if cfg.ResendAPIKey == "" {
		mlog.Warn().Msg("RESEND_API_KEY not set; welcome emails are only logged")
		return mailer.LogSender{Log: mlog}
	}
	return mailer.NewResendSender(cfg.ResendURL, cfg.ResendAPIKey, cfg.EmailFrom, cfg.EmailFromName)
}

func newHub(cfg *config.Config, deps *dependencies, log zerolog.Logger) *realtime.Hub {
	allow := api.OriginPolicy(cfg.ClientURL)
	return realtime.NewHub(deps.registry, deps.authn, logger.Component(log, "realtime"),
		realtime.WithCheckOrigin(func(r *http.Request) bool { return allow(r.Header.Get("Origin")) }),
		realtime.WithHandshakeLimit(cfg.HandshakeRPS, cfg.HandshakeBurst),
		realtime.WithMetrics(deps.metrics),
	)
}

// buildRouter wires HTTP routes to handlers.
func buildRouter(cfg *config.Config, deps *dependencies, hub *realtime.Hub, svcHealth *health.ServiceHealthChecker, log zerolog.Logger) http.Handler {
	return api.NewRouter(api.RouterDeps{
		ClientURL:     cfg.ClientURL,
		CrossSite:     cfg.CrossSite(),
		Authenticator: deps.authn,
		Sessions:      deps.sessions,
		Messages:      deps.messages,
		Online:        deps.registry,
		Realtime:      hub,
		Metrics:       deps.metrics,
		Healthy:       svcHealth.IsHealthy,
		Log:           logger.Component(log, "http"),
	})
}

// startHealthCheckers starts the store checker and the service-level aggregator.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store) *health.ServiceHealthChecker {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	storeChecker := store.NewStoreHealthChecker(st, logger.Component(log, "health"), probeTimeout)
	go storeChecker.Start(ctx, interval)

	svcHealth := health.NewServiceHealthChecker(log, storeChecker)
	go svcHealth.Start(ctx, interval)
	return svcHealth
}

// newHTTPServer leaves BaseContext unset so a shutdown signal does not
// cancel requests that are still persisting messages.
func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

// shutdown closes websocket connections first (http.Server does not track
// hijacked connections) and then drains in-flight requests.
func shutdown(server *http.Server, hub *realtime.Hub, log zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := hub.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("websocket connections did not close in time")
	}
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("Server forced to shutdown")
		return err
	}
	log.Info().Msg("Server exited")
	return nil
}

// calculateStartupHealthTimeout returns the startup health timeout in seconds,
// calculated as interval*2 with a minimum of 30 seconds.
func calculateStartupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 30 {
		return 30
	}
	return timeout
}

// waitUntilHealthy blocks until service health is healthy or the startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeoutSeconds := calculateStartupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.Evaluate() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: store not healthy within %d seconds", timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
