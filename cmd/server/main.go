package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/edigar/sales-control/internal/app"
	"github.com/edigar/sales-control/internal/config"
	"github.com/edigar/sales-control/internal/httpapi"
	"github.com/edigar/sales-control/internal/jobs"
	"github.com/edigar/sales-control/internal/scheduler"
)

func main() {
	cfg := config.Load()
	log := app.NewLogger(cfg)
	if err := validateConfig(cfg); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if _, err := time.LoadLocation(cfg.ReportTimezone); err != nil {
		log.WithField("timezone", cfg.ReportTimezone).Warn("unknown REPORT_TIMEZONE, reports use UTC")
	}

	bootCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	a, err := app.New(bootCtx, cfg, log, app.Options{InProcessQueue: true})
	cancel()
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}

	api := httpapi.New(httpapi.Deps{
		Sales:         a.Sales,
		Sellers:       a.Sellers,
		Users:         a.Users,
		Reports:       a.Dispatcher,
		Auth:          httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), a.Repo),
		AllowedOrigin: cfg.AllowedOrigin,
		Log:           log.WithField("component", "http"),
		Metrics:       a.MetricsHandler(),
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	workCtx, stopWork := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	if a.Queue != nil {
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := a.Dispatcher.Work(workCtx); err != nil {
				log.WithError(err).Error("worker stopped")
			}
		}()
	}

	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		hostname, _ := os.Hostname()
		sched = scheduler.New(a.Dispatcher, a.Locker, cfg.Location(), log.WithField("component", "scheduler"), hostname)
		for _, entry := range scheduleEntries(cfg) {
			if err := sched.Add(entry); err != nil {
				log.WithError(err).Fatal("invalid schedule")
			}
		}
		sched.Start()
	}

	go func() {
		log.WithField("addr", cfg.Address()).Info("sales-control listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if sched != nil {
		sched.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown error")
	}
	// A run already taken from the queue finishes; no new one is picked up.
	stopWork()
	workers.Wait()

	_ = a.Close()
	log.Info("server stopped")
}

func scheduleEntries(cfg config.Config) []scheduler.Entry {
	return []scheduler.Entry{
		{Job: jobs.AdminReportJobName, At: cfg.AdminReportAt},
		{Job: jobs.SellerReportJobName, At: cfg.SellerReportAt},
	}
}

func validateConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.SchedulerEnabled {
		for _, entry := range scheduleEntries(cfg) {
			if _, err := scheduler.DailySpec(entry.At); err != nil {
				return fmt.Errorf("schedule for %s: %w", entry.Job, err)
			}
		}
	}
	return nil
}
