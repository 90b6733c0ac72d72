// Command reports sends the daily sales reports on demand:
//
//	reports [date] [--sync]
//
// Without --sync both jobs are queued for a running server to pick up.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/edigar/sales-control/internal/app"
	"github.com/edigar/sales-control/internal/config"
	"github.com/edigar/sales-control/internal/domain"
	"github.com/edigar/sales-control/internal/jobs"
)

type dispatcher interface {
	Dispatch(ctx context.Context, name, date string, sync bool) (string, error)
}

func main() {
	cfg := config.Load()
	log := app.NewLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	a, err := app.New(ctx, cfg, log, app.Options{})
	cancel()
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}
	defer a.Close()

	today := time.Now().In(cfg.Location()).Format(domain.DateLayout)
	if err := run(context.Background(), os.Args[1:], os.Stdout, a.Dispatcher, today); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		_ = a.Close()
		os.Exit(1)
	}
}

type options struct {
	date string
	sync bool
}

// parseArgs accepts the optional date before or after --sync.
func parseArgs(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("reports", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&opts.sync, "sync", false, "execute synchronously without queue")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	rest := fs.Args()
	if len(rest) > 0 {
		opts.date = rest[0]
		if err := fs.Parse(rest[1:]); err != nil {
			return opts, err
		}
		if fs.NArg() > 0 {
			return opts, fmt.Errorf("unexpected argument %q", fs.Arg(0))
		}
	}
	return opts, nil
}

func run(ctx context.Context, args []string, out io.Writer, d dispatcher, today string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return fmt.Errorf("usage: reports [date] [--sync]: %w", err)
	}

	fmt.Fprintln(out, "Sending daily sales reports...")
	fmt.Fprintln(out)

	steps := []struct{ job, label string }{
		{jobs.AdminReportJobName, "Sending reports to administrators..."},
		{jobs.SellerReportJobName, "Sending reports to sellers..."},
	}
	for _, step := range steps {
		fmt.Fprintln(out, step.label)
		if _, err := d.Dispatch(ctx, step.job, opts.date, opts.sync); err != nil {
			if errors.Is(err, jobs.ErrQueueUnavailable) {
				return fmt.Errorf("%w: configure REDIS_ADDR or run with --sync", err)
			}
			return err
		}
	}
	fmt.Fprintln(out)

	if opts.sync {
		fmt.Fprintln(out, "Reports sent successfully!")
	} else {
		fmt.Fprintln(out, "Jobs added to queue successfully!")
		fmt.Fprintln(out, "Make sure the server worker is running to process them.")
	}

	if opts.date != "" {
		fmt.Fprintf(out, "Report date: %s\n", opts.date)
	} else {
		fmt.Fprintf(out, "Report date: today (%s)\n", today)
	}
	return nil
}
