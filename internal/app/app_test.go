package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edigar/sales-control/internal/config"
	"github.com/edigar/sales-control/internal/jobs"
	"github.com/edigar/sales-control/internal/mail"
	"github.com/edigar/sales-control/internal/queue"
)

func testConfig() config.Config {
	return config.Config{
		CommissionRate:       decimal.RequireFromString("8.5"),
		SalesCacheTTLSeconds: 600,
		DefaultPageSize:      10,
		MailDriver:           "log",
		MailFromAddress:      "reports@example.com",
		MailFromName:         "Reports",
		MailRatePerSecond:    50,
		ReportTimezone:       "UTC",
		QueueName:            "default",
		LogLevel:             "debug",
	}
}

func TestNewLoggerHonoursLevelAndFormat(t *testing.T) {
	cfg := testConfig()
	cfg.LogLevel = "warn"
	cfg.LogFormat = "text"

	log := NewLogger(cfg)
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)

	cfg.LogLevel = "chatty"
	cfg.LogFormat = "json"
	log = NewLogger(cfg)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
}

func TestNewMailerSelectsDriver(t *testing.T) {
	log, _ := logtest.NewNullLogger()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		want    any
		wantErr string
	}{
		{name: "log", mutate: func(c *config.Config) { c.MailDriver = "log" }, want: &mail.LogSender{}},
		{name: "smtp", mutate: func(c *config.Config) { c.MailDriver = "SMTP"; c.SMTPHost = "mailtrap.local"; c.SMTPPort = 2525 }, want: &mail.SMTPSender{}},
		{name: "smtp without host", mutate: func(c *config.Config) { c.MailDriver = "smtp" }, wantErr: "SMTP_HOST"},
		{name: "sendgrid", mutate: func(c *config.Config) { c.MailDriver = "sendgrid"; c.SendGridAPIKey = "SG.key" }, want: &mail.SendGridSender{}},
		{name: "sendgrid without key", mutate: func(c *config.Config) { c.MailDriver = "sendgrid" }, wantErr: "api key"},
		{name: "unknown", mutate: func(c *config.Config) { c.MailDriver = "pigeon" }, wantErr: "unknown MAIL_DRIVER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			sender, err := NewMailer(cfg, log)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, strings.ToLower(err.Error()), strings.ToLower(tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, sender)
		})
	}
}

func TestNewInMemoryRunsReportsSynchronously(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	a, err := New(context.Background(), testConfig(), log, Options{InProcessQueue: true})
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &queue.MemoryQueue{}, a.Queue)

	_, err = a.Dispatcher.Dispatch(context.Background(), jobs.AdminReportJobName, "2025-10-26", true)
	require.NoError(t, err)

	var captured, finished bool
	for _, entry := range hook.AllEntries() {
		switch entry.Message {
		case "mail captured by log driver":
			captured = true
			assert.Equal(t, "Daily Sales Report - 26/10/2025", entry.Data["subject"])
		case "Daily sales reports sent successfully":
			finished = true
		}
	}
	assert.True(t, captured, "expected the log mailer to capture the admin report")
	assert.True(t, finished)
}

func TestNewWithoutInProcessQueueRefusesAsync(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	a, err := New(context.Background(), testConfig(), log, Options{})
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Queue)
	_, err = a.Dispatcher.Dispatch(context.Background(), jobs.SellerReportJobName, "", false)
	assert.ErrorIs(t, err, jobs.ErrQueueUnavailable)
}

func TestNewUsesRedisWhenReachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()
	log, _ := logtest.NewNullLogger()

	a, err := New(context.Background(), cfg, log, Options{InProcessQueue: true})
	require.NoError(t, err)
	defer a.Close()

	rq, ok := a.Queue.(*queue.RedisQueue)
	require.True(t, ok, "expected redis queue, got %T", a.Queue)

	_, err = a.Dispatcher.Dispatch(context.Background(), jobs.AdminReportJobName, "2025-10-26", false)
	require.NoError(t, err)
	n, err := mr.List(rq.Key())
	require.NoError(t, err)
	assert.Len(t, n, 1)
}

func TestNewRejectsOutOfRangeCommissionRate(t *testing.T) {
	cfg := testConfig()
	cfg.CommissionRate = decimal.RequireFromString("150")
	log, _ := logtest.NewNullLogger()

	_, err := New(context.Background(), cfg, log, Options{})
	assert.Error(t, err)
}

func TestMetricsHandlerOnlyWhenEnabled(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	a, err := New(context.Background(), testConfig(), log, Options{})
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.MetricsHandler())

	a.Config.MetricsEnabled = true
	handler := a.MetricsHandler()
	require.NotNil(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
