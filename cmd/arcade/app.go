package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"golang.org/x/term"

	"github.com/vovakirdan/arcade-interstitial/internal/clock"
	"github.com/vovakirdan/arcade-interstitial/internal/config"
	"github.com/vovakirdan/arcade-interstitial/internal/interstitial"
	"github.com/vovakirdan/arcade-interstitial/internal/metrics"
	"github.com/vovakirdan/arcade-interstitial/internal/platform/tui"
	"github.com/vovakirdan/arcade-interstitial/internal/storage"
	"github.com/vovakirdan/arcade-interstitial/internal/storekit"
)

// app wires the collaborators shared by every command.
type app struct {
	services    *tui.Services
	logger      *log.Logger
	fileSource  *config.FileSource  // nil when config comes from redis
	redisSource *config.RedisSource // nil when config comes from YAML
	closers     []func() error
}

// newLogger builds the command logger. Interactive commands own the terminal,
// so unless --log-file is set they log nowhere; serve logs to stderr.
func newLogger(interactive bool) (*log.Logger, func() error, error) {
	level, err := log.ParseLevel(flagLogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid --log-level: %w", err)
	}

	var w io.Writer = os.Stderr
	closeFn := func() error { return nil }
	switch {
	case flagLogFile != "":
		f, err := os.OpenFile(flagLogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot open log file: %w", err)
		}
		w, closeFn = f, f.Close
	case interactive:
		w = io.Discard
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "arcade",
		Level:           level,
	})
	return logger, closeFn, nil
}

// newApp opens storage, loads config and catalog and picks the payment gateway.
// m may be nil.
func newApp(ctx context.Context, interactive bool, m *metrics.Interstitial) (*app, error) {
	logger, closeLog, err := newLogger(interactive)
	if err != nil {
		return nil, err
	}
	a := &app{logger: logger, closers: []func() error{closeLog}}

	store, err := storage.Open(flagDBPath)
	if err != nil {
		// Continue without storage
		logger.Warn("could not open database", "error", err)
		store = nil
	} else {
		a.closers = append(a.closers, store.Close)
	}

	catalog, err := storekit.LoadCatalog(flagCatalog)
	if err != nil {
		a.Close()
		return nil, err
	}

	remote, err := a.configSource(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	newGateway, err := gatewayFactory(catalog, store, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.services = &tui.Services{
		Store:      store,
		Config:     remote,
		Catalog:    catalog,
		Clock:      clock.System{},
		NewGateway: newGateway,
		Metrics:    m,
		Logger:     logger,
	}
	return a, nil
}

func (a *app) configSource(ctx context.Context) (interstitial.RemoteConfig, error) {
	if flagRedisAddr == "" {
		src, err := config.NewFileSource(config.ResolvePath(flagConfig), a.logger.WithPrefix("config"))
		if err != nil {
			return nil, err
		}
		a.fileSource = src
		return src, nil
	}

	base, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(&redis.Options{Addr: flagRedisAddr})
	a.closers = append(a.closers, client.Close)

	src := config.NewRedisSource(client, flagRedisKey, base)
	refreshCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := src.Refresh(refreshCtx); err != nil {
		a.logger.Warn("using local server config", "error", err)
	}
	a.redisSource = src
	return src, nil
}

func gatewayFactory(catalog *storekit.Catalog, store *storage.Store, logger *log.Logger) (func() (interstitial.PaymentGateway, error), error) {
	var ledger storekit.Ledger
	if store != nil {
		ledger = store
	}

	switch flagGateway {
	case "sandbox":
		result, err := storekit.ParseSandboxResult(flagSandboxResult)
		if err != nil {
			return nil, err
		}
		latency, err := time.ParseDuration(flagSandboxLatency)
		if err != nil {
			return nil, fmt.Errorf("invalid --sandbox-latency: %w", err)
		}
		cfg := storekit.SandboxConfig{
			Result:  result,
			Latency: latency,
			Logger:  logger.WithPrefix("sandbox"),
		}
		return func() (interstitial.PaymentGateway, error) {
			return storekit.NewSandboxGateway(catalog, ledger, cfg), nil
		}, nil

	case "stripe":
		key := flagStripeKey
		if key == "" {
			key = os.Getenv("STRIPE_SECRET_KEY")
		}
		cfg := storekit.StripeConfig{
			APIKey:        key,
			PaymentMethod: flagStripeMethod,
			Logger:        logger.WithPrefix("stripe"),
		}
		// Fail fast on missing credentials.
		if _, err := storekit.NewStripeGateway(catalog, ledger, cfg); err != nil {
			return nil, err
		}
		return func() (interstitial.PaymentGateway, error) {
			return storekit.NewStripeGateway(catalog, ledger, cfg)
		}, nil
	}
	return nil, fmt.Errorf("unknown --gateway %q (want sandbox or stripe)", flagGateway)
}

// Close releases everything newApp opened, last opened first.
func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cleanup failed: %v\n", err)
	}
}

// terminalSize returns the size of stdout, or 80x24 when it is not a terminal.
func terminalSize() (int, int) {
	width, height := 80, 24
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		width = w
		height = h
	}
	return width, height
}
