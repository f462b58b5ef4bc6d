package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"permit-watch/internal/config"
	"permit-watch/internal/domain/entity"
	"permit-watch/internal/infra/notifier"
	"permit-watch/internal/infra/scraper"
	workerPkg "permit-watch/internal/infra/worker"
	"permit-watch/internal/observability/logging"
	"permit-watch/internal/observability/slo"
	"permit-watch/internal/observability/tracing"
	loader "permit-watch/internal/pkg/config"
	"permit-watch/internal/usecase/notify"
	"permit-watch/internal/usecase/pipeline"
	envconfig "permit-watch/pkg/config"
)

const serviceName = "permit-watch"

func main() {
	once := flag.Bool("once", false, "run every source once and exit")
	flag.Parse()

	if err := envconfig.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", slog.Any("error", err))
		os.Exit(1)
	}
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	if err := run(logger, *once); err != nil {
		logger.Error("worker stopped", slog.String("error", logging.SanitizeError(err)))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, once bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(logger, loader.NewConfigMetrics("app"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logging.SetLevel(cfg.LogLevel)
	for _, s := range cfg.Secrets() {
		logging.RegisterSecret(s)
	}

	workerMetrics := workerPkg.NewWorkerMetrics()
	workerConfig, _ := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("run_timeout", workerConfig.RunTimeout),
		slog.Int("parallelism", workerConfig.Parallelism),
		slog.Int("health_port", workerConfig.HealthPort))

	var exporter sdktrace.SpanExporter
	if cfg.TraceLog {
		exporter = tracing.NewLogExporter(logger)
	}
	shutdownTracing := tracing.Init(serviceName, cfg.TraceSampleRatio, exporter)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("failed to shut down tracing", slog.Any("error", err))
		}
	}()

	st, err := openStores(ctx, logger, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Error("failed to close store", slog.String("error", logging.SanitizeError(err)))
		}
	}()

	notifyService := newNotifyService(logger, cfg)
	runner := pipeline.NewRunner(workerConfig.RunTimeout,
		buildSources(logger, cfg, workerConfig, st, notifyService)...)
	logger.Info("sources registered", slog.Any("sources", runner.Sources()))

	healthServer := workerPkg.NewHealthServer(fmt.Sprintf(":%d", workerConfig.HealthPort), logger,
		workerPkg.WithStaleAfter(time.Duration(slo.FreshnessSLO)*time.Second))
	job := workerPkg.NewJob(runner, workerMetrics, healthServer, slo.NewTracker(0), logger)

	// Jobs get a context that survives the shutdown signal; RunTimeout bounds them.
	jobCtx := logging.WithLogger(context.WithoutCancel(ctx), logger)

	if once {
		stats, err := job.Run(jobCtx)
		if err != nil {
			return err
		}
		if !stats.OK() {
			return fmt.Errorf("sources failed: %v", stats.FailedSources)
		}
		return nil
	}

	startMetricsServer(ctx, logger, cfg.MetricsPort, collectBreakers(notifyService, st.breaker))
	go func() {
		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	c, err := startCron(logger, workerConfig, func() {
		if _, err := job.Run(jobCtx); err != nil && !errors.Is(err, pipeline.ErrRunInProgress) {
			logger.Error("run failed", slog.String("error", logging.SanitizeError(err)))
		}
	})
	if err != nil {
		return err
	}

	healthServer.SetReady(true)
	logger.Info("worker started",
		slog.String("schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Bool("dry_run", cfg.Telegram.DryRun()))

	<-ctx.Done()
	logger.Info("shutdown signal received")
	healthServer.SetReady(false)

	// Wait for a running job, bounded by its own timeout.
	select {
	case <-c.Stop().Done():
		logger.Info("cron stopped")
	case <-time.After(workerConfig.RunTimeout + 5*time.Second):
		logger.Warn("timed out waiting for the running job")
	}
	return nil
}

// startCron schedules fn. Panics inside fn are recovered and logged by the
// cron chain; the runner has its own per-source recovery.
func startCron(logger *slog.Logger, cfg *workerPkg.WorkerConfig, fn func()) (*cron.Cron, error) {
	cronLogger := logging.NewCronLogger(logger)
	c := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger)),
	)
	if _, err := c.AddFunc(cfg.CronSchedule, fn); err != nil {
		return nil, fmt.Errorf("add cron job: %w", err)
	}
	c.Start()
	return c, nil
}

func newNotifyService(logger *slog.Logger, cfg *config.AppConfig) notify.Service {
	var ch notify.Channel
	if cfg.Telegram.DryRun() {
		logger.Warn("TELEGRAM_TOKEN not set, notifications are logged only")
		ch = notifier.NewLogNotifier(logger)
	} else {
		ch = notifier.NewTelegramNotifier(notifier.TelegramConfig{
			Token:   cfg.Telegram.Token,
			APIBase: cfg.Telegram.APIBase,
			Timeout: cfg.HTTPTimeout,
		})
	}
	logger.Info("notification channel initialized", slog.String("channel", ch.Name()))
	return notify.NewService(cfg.Telegram.ChatID, []notify.Channel{ch})
}

// buildSources creates one pipeline per configured source, in run order:
// feed, listing, portal. The portal is registered only when both of its
// URLs are configured.
func buildSources(logger *slog.Logger, cfg *config.AppConfig, wc *workerPkg.WorkerConfig, st *stores, n pipeline.Notifier) []pipeline.Source {
	client := scraper.NewHTTPClient(cfg.HTTPTimeout)
	opts := pipeline.Options{Parallelism: wc.Parallelism}
	src := cfg.Sources

	sources := []pipeline.Source{
		pipeline.New[*entity.FeedRecord](
			scraper.NewFeedExtractor(client, scraper.FeedOptions{
				URL:     src.Feed.URL,
				Charset: src.Feed.Charset,
			}),
			st.feed, n, opts),
		pipeline.New[*entity.ListingRecord](
			scraper.NewListingExtractor(client, scraper.ListingOptions{
				URL:     src.Listing.URL,
				Region:  src.Listing.Region,
				Search:  src.Listing.Search,
				Year:    src.Listing.Year,
				Month:   src.Listing.Month,
				Charset: src.Listing.Charset,
			}),
			st.listing, n, opts),
	}

	if !src.Portal.Enabled() {
		logger.Info("portal source disabled: PORTAL_LOGIN_URL and PORTAL_SEARCH_URL not both set")
		return sources
	}
	if src.Portal.Login == "" || src.Portal.Password == "" {
		logger.Warn("portal credentials missing, portal runs will fail with an auth error")
	}
	return append(sources, pipeline.New[*entity.PortalRecord](
		scraper.NewPortalExtractor(client, scraper.PortalOptions{
			LoginURL:  src.Portal.LoginURL,
			SearchURL: src.Portal.SearchURL,
			Login:     src.Portal.Login,
			Password:  src.Portal.Password,
			Charset:   src.Portal.Charset,
			Form: scraper.PortalForm{
				LoginField:    src.Portal.Form.LoginField,
				PasswordField: src.Portal.Form.PasswordField,
				DigestField:   src.Portal.Form.DigestField,
			},
		}),
		st.portal, n, opts))
}
