package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	authHandler "spamgate/internal/auth/handler"
	authService "spamgate/internal/auth/service"
	"spamgate/internal/auth/session"
	userStore "spamgate/internal/auth/store/user"
	"spamgate/internal/captcha/gate"
	"spamgate/internal/captcha/hooks"
	captchaHandler "spamgate/internal/captcha/handler"
	captchaMetrics "spamgate/internal/captcha/metrics"
	"spamgate/internal/captcha/settings"
	settingsStore "spamgate/internal/captcha/settings/store"
	"spamgate/internal/captcha/verifier"
	contactHandler "spamgate/internal/contact/handler"
	contactService "spamgate/internal/contact/service"
	contactStore "spamgate/internal/contact/store"
	"spamgate/internal/platform/config"
	"spamgate/internal/platform/httpserver"
	"spamgate/internal/platform/logger"
	"spamgate/internal/platform/metrics"
	"spamgate/internal/platform/postgres"
	redisclient "spamgate/internal/platform/redis"
	"spamgate/internal/platform/tracing"
	httptransport "spamgate/internal/transport/http"
	"spamgate/internal/transport/http/pages"
	auditpublisher "spamgate/pkg/platform/audit/publisher"
	kafkasink "spamgate/pkg/platform/audit/publishers/kafka"
	auditmemory "spamgate/pkg/platform/audit/store/memory"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// infra holds the optional backing services so they can be closed in order.
type infra struct {
	db     *sql.DB
	pool   *pgxpool.Pool
	redis  *redisclient.Client
	sink   *kafkasink.Sink
	health map[string]httptransport.HealthCheck
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: "spamgate",
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return err
	}

	inf := &infra{health: map[string]httptransport.HealthCheck{}}
	defer inf.close(log)

	options, err := buildOptionStore(ctx, cfg, inf, log)
	if err != nil {
		return err
	}

	fixed := settings.Sources{settings.NewEnvSource()}
	if cfg.Captcha.FixedFile != "" {
		fileSource, err := settings.LoadFile(cfg.Captcha.FixedFile)
		if err != nil {
			return err
		}
		fixed = append(fixed, fileSource)
		log.Info("loaded fixed captcha options", "path", cfg.Captcha.FixedFile)
	}
	// One hooks value serves the resolver, verifier and gate.
	captchaHooks := buildHooks(cfg)
	resolver, err := settings.New(options,
		settings.WithFixedSource(fixed),
		settings.WithHooks(captchaHooks),
		settings.WithLogger(log),
	)
	if err != nil {
		return err
	}

	audits, err := buildAuditPublisher(ctx, cfg, inf, log)
	if err != nil {
		return err
	}
	defer audits.Close()

	gateMetrics := captchaMetrics.New()
	verifierOpts := []verifier.Option{
		verifier.WithHTTPClient(&http.Client{
			Timeout:   cfg.Captcha.VerifyTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
		verifier.WithHooks(captchaHooks),
		verifier.WithLogger(log),
		verifier.WithMetrics(gateMetrics),
	}
	if cfg.Captcha.VerifyEndpoint != "" {
		verifierOpts = append(verifierOpts, verifier.WithEndpoint(cfg.Captcha.VerifyEndpoint))
	}
	captchaGate, err := gate.New(resolver, verifier.New(verifierOpts...),
		gate.WithAuditor(audits),
		gate.WithHooks(captchaHooks),
		gate.WithLogger(log),
		gate.WithMetrics(gateMetrics),
	)
	if err != nil {
		return err
	}

	sessions := session.NewIssuer(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.TTL)
	accounts, err := authService.New(userStore.New(), captchaGate, sessions,
		authService.WithAuditor(audits),
		authService.WithLogger(log),
	)
	if err != nil {
		return err
	}
	messages, err := buildContactStore(ctx, cfg, inf, log)
	if err != nil {
		return err
	}
	contact, err := contactService.New(messages, captchaGate,
		contactService.WithAuditor(audits),
		contactService.WithLogger(log),
	)
	if err != nil {
		return err
	}

	renderer, err := pages.New(log)
	if err != nil {
		return err
	}
	authRoutes := authHandler.New(accounts, captchaGate, renderer, log)
	contactRoutes := contactHandler.New(contact, captchaGate, renderer, log)
	settingsRoutes := captchaHandler.New(resolver, audits, log)

	router := httptransport.NewRouter(httptransport.Config{
		Logger:        log,
		AdminToken:    cfg.Server.AdminToken,
		Sessions:      sessions,
		SessionCookie: session.CookieName,
		Public:        []httptransport.Routes{authRoutes, contactRoutes},
		Admin: []httptransport.Routes{
			httptransport.RoutesFunc(settingsRoutes.RegisterAdmin),
			httptransport.RoutesFunc(contactRoutes.RegisterAdmin),
		},
		Health:  inf.health,
		Metrics: metrics.New(),
	})
	srv := httpserver.New(cfg.Server.Addr, router, cfg.Server.ReadHeaderTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting spamgate", "addr", cfg.Server.Addr, "captcha_available", resolver.Available(gctx))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return shutdownTracing(shutdownCtx)
	})
	return g.Wait()
}

func buildHooks(cfg config.Config) *hooks.Hooks {
	h := &hooks.Hooks{}
	if !cfg.Captcha.SendRemoteIP {
		h.RemoteIP = func(context.Context, string) string { return "" }
	}
	return h
}

// buildOptionStore picks the most durable configured store: Postgres, then
// Redis, then process memory.
func buildOptionStore(ctx context.Context, cfg config.Config, inf *infra, log *slog.Logger) (settings.Store, error) {
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	if db != nil {
		inf.db = db
		inf.health["postgres"] = db.PingContext
		pg := settingsStore.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		log.Info("captcha options stored in postgres")
		return pg, nil
	}

	client, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client != nil {
		inf.redis = client
		inf.health["redis"] = client.Health
		log.Info("captcha options stored in redis", "hash", client.OptionHash())
		return settingsStore.NewRedis(client.Client, settingsStore.WithHash(client.OptionHash())), nil
	}

	log.Warn("no option store configured, captcha options live in memory")
	return settingsStore.NewInMemoryStore(), nil
}

// buildContactStore keeps contact messages in Postgres when it is configured.
func buildContactStore(ctx context.Context, cfg config.Config, inf *infra, log *slog.Logger) (contactService.Store, error) {
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return contactStore.New(), nil
	}
	inf.pool = pool
	pg := contactStore.NewPostgres(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	log.Info("contact messages stored in postgres")
	return pg, nil
}

func buildAuditPublisher(ctx context.Context, cfg config.Config, inf *infra, log *slog.Logger) (*auditpublisher.Publisher, error) {
	opts := []auditpublisher.Option{
		auditpublisher.WithAsyncBuffer(cfg.AuditBuffer),
		auditpublisher.WithLogger(log),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := kafkasink.New(cfg.Kafka.Brokers,
			kafkasink.WithTopic(cfg.Kafka.Topic),
			kafkasink.WithLogger(log),
		)
		if err != nil {
			return nil, err
		}
		inf.sink = sink
		if err := sink.EnsureTopic(ctx, 1, 1); err != nil {
			log.Warn("could not ensure audit topic", "topic", sink.Topic(), "error", err)
		}
		opts = append(opts, auditpublisher.WithSink(sink))
		log.Info("audit events streamed to kafka", "topic", sink.Topic())
	}
	return auditpublisher.NewPublisher(auditmemory.NewInMemoryStore(), opts...), nil
}

func (inf *infra) close(log *slog.Logger) {
	if inf.sink != nil {
		inf.sink.Close(context.Background())
	}
	if inf.redis != nil {
		if err := inf.redis.Close(); err != nil {
			log.Warn("failed to close redis", "error", err)
		}
	}
	if inf.pool != nil {
		inf.pool.Close()
	}
	if inf.db != nil {
		if err := inf.db.Close(); err != nil {
			log.Warn("failed to close postgres", "error", err)
		}
	}
}
