// Package app wires configuration into the long-lived components shared by
// the HTTP server and the report command.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/edigar/sales-control/internal/cache"
	"github.com/edigar/sales-control/internal/commission"
	"github.com/edigar/sales-control/internal/config"
	"github.com/edigar/sales-control/internal/jobs"
	"github.com/edigar/sales-control/internal/mail"
	"github.com/edigar/sales-control/internal/metrics"
	"github.com/edigar/sales-control/internal/queue"
	"github.com/edigar/sales-control/internal/service"
	"github.com/edigar/sales-control/internal/store"
	"github.com/edigar/sales-control/internal/store/memory"
	pgstore "github.com/edigar/sales-control/internal/store/postgres"
)

// Options tune wiring that differs between the server and one-shot commands.
type Options struct {
	// InProcessQueue backs async dispatch with an in-memory queue when Redis
	// is not configured. Only useful when a worker runs in the same process.
	InProcessQueue bool
}

type App struct {
	Config     config.Config
	Log        *logrus.Logger
	Repo       store.Repository
	Sales      service.SaleService
	Sellers    *service.Sellers
	Users      *service.Users
	Reports    *service.Reports
	Mailer     mail.Sender
	Queue      queue.Queue
	Locker     queue.Locker
	Dispatcher *jobs.Dispatcher
	Registry   *prometheus.Registry

	closers []func() error
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func NewLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.LogFormat == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}

func New(ctx context.Context, cfg config.Config, log *logrus.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Log: log, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}
	redisClient := a.openRedis(ctx)

	var salesCache cache.Store = cache.NoopStore{}
	if redisClient != nil {
		salesCache = cache.NewRedisStore(redisClient)
		a.Queue = queue.NewRedisQueue(redisClient, cfg.QueueName)
		a.Locker = queue.NewRedisLocker(redisClient)
	} else {
		a.Locker = queue.NewMemoryLocker()
		if opts.InProcessQueue {
			mq := queue.NewMemoryQueue(64)
			a.Queue = mq
			a.closers = append(a.closers, func() error { mq.Close(); return nil })
		}
	}

	calc := commission.NewCalculator(cfg.CommissionRate)
	if _, err := calc.Calculate(decimal.NewFromInt(100)); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("commission rate: %w", err)
	}
	a.Sales = service.NewCachedSales(service.NewSales(a.Repo, calc, cfg.DefaultPageSize), salesCache, cfg.SalesCacheTTL(), log.WithField("component", "sales-cache"))
	a.Sellers = service.NewSellers(a.Repo, cfg.DefaultPageSize)
	a.Users = service.NewUsers(a.Repo)
	a.Reports = service.NewReports(a.Repo, cfg.Location())

	sender, err := NewMailer(cfg, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Mailer = mail.NewThrottled(sender, cfg.MailRatePerSecond)

	rec := metrics.New(a.Registry)
	jobLog := log.WithField("component", "jobs")
	a.Dispatcher = jobs.NewDispatcher(a.Queue, a.Locker, jobLog, rec,
		jobs.NewAdminReportJob(a.Reports, a.Users, a.Mailer, jobLog, rec),
		jobs.NewSellerReportJob(a.Reports, a.Mailer, jobLog, rec),
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	if a.Config.DatabaseURL == "" {
		a.Repo = memory.NewSeeded()
		a.Log.Info("repository: in-memory")
		return nil
	}

	pg, err := pgstore.New(ctx, a.Config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return fmt.Errorf("migrate: %w", err)
	}
	a.Repo = pg
	a.closers = append(a.closers, pg.Close)
	a.Log.Info("repository: postgres")
	return nil
}

// openRedis returns nil when Redis is not configured or not reachable.
func (a *App) openRedis(ctx context.Context) *redis.Client {
	if a.Config.RedisAddr == "" {
		a.Log.Info("cache: noop, queue: in-process")
		return nil
	}
	client := cache.NewRedisClient(a.Config.RedisAddr, a.Config.RedisPassword, a.Config.RedisDB)
	if err := client.Ping(ctx).Err(); err != nil {
		a.Log.WithError(err).Warn("redis unavailable, using noop cache and in-process queue")
		_ = client.Close()
		return nil
	}
	a.closers = append(a.closers, client.Close)
	a.Log.WithField("addr", a.Config.RedisAddr).Info("cache and queue: redis")
	return client
}

// NewMailer selects the transport named by MAIL_DRIVER.
func NewMailer(cfg config.Config, log logrus.FieldLogger) (mail.Sender, error) {
	from := mail.Address{Email: cfg.MailFromAddress, Name: cfg.MailFromName}
	switch strings.ToLower(cfg.MailDriver) {
	case "", "log":
		return mail.NewLogSender(log.WithField("component", "mail")), nil
	case "smtp":
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("MAIL_DRIVER=smtp requires SMTP_HOST")
		}
		return mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, from), nil
	case "sendgrid":
		return mail.NewSendGridSender(cfg.SendGridAPIKey, from)
	default:
		return nil, fmt.Errorf("unknown MAIL_DRIVER %q", cfg.MailDriver)
	}
}

// MetricsHandler exposes the registry, or nil when metrics are disabled.
func (a *App) MetricsHandler() http.Handler {
	if !a.Config.MetricsEnabled {
		return nil
	}
	return promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.WithError(err).Warn("close failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	a.closers = nil
	return firstErr
}
