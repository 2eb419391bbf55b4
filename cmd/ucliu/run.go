package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ucliu/internal/config"
	"ucliu/internal/instance"
	"ucliu/internal/logging"
)

// RunCmd starts the input method.
type RunCmd struct {
	Dictionary DictionaryFlags `embed:"" prefix:"dictionary."`
	Input      InputFlags      `embed:"" prefix:"input."`
	Delivery   DeliveryFlags   `embed:"" prefix:"delivery."`
	Overlay    OverlayFlags    `embed:"" prefix:"overlay."`
	Metrics    MetricsFlags    `embed:"" prefix:"metrics."`

	PassThrough bool `help:"Start in pass-through mode regardless of input.start_intercepting."`
}

// DictionaryFlags override the [dictionary] section.
type DictionaryFlags struct {
	Path       string `help:"Main code table (liu.json)." type:"path" placeholder:"FILE"`
	CustomPath string `help:"Custom dictionary (custom.json)." type:"path" placeholder:"FILE"`
}

// InputFlags override the [input] section.
type InputFlags struct {
	Source string `help:"Keyboard source: auto, hook, ibus or simulated." placeholder:"SOURCE"`
}

// DeliveryFlags override the [delivery] section.
type DeliveryFlags struct {
	Method string `help:"Delivery: auto, paste, clipboard or ibus." placeholder:"METHOD"`
}

// OverlayFlags override the [overlay] section.
type OverlayFlags struct {
	Mode string `help:"Candidate display: window, console or none." placeholder:"MODE"`
}

// MetricsFlags override the [metrics] section.
type MetricsFlags struct {
	Listen string `help:"Serve metrics on this address, e.g. 127.0.0.1:9464." placeholder:"ADDR"`
}

func (r *RunCmd) apply(cfg *config.Config) {
	if r.Dictionary.Path != "" {
		cfg.Dictionary.Path = r.Dictionary.Path
	}
	if r.Dictionary.CustomPath != "" {
		cfg.Dictionary.CustomPath = r.Dictionary.CustomPath
	}
	if r.Input.Source != "" {
		cfg.Input.Source = r.Input.Source
	}
	if r.Delivery.Method != "" {
		cfg.Delivery.Method = r.Delivery.Method
	}
	if r.Overlay.Mode != "" {
		cfg.Overlay.Mode = r.Overlay.Mode
	}
	if r.Metrics.Listen != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = r.Metrics.Listen
	}
	if r.PassThrough {
		cfg.Input.StartIntercepting = false
	}
}

// Run validates the configuration, takes the instance lock and runs the
// engine until it is told to quit.
func (r *RunCmd) Run(cfg *config.Config, logger *logging.Logger, src *configSource) error {
	r.apply(cfg)
	cfg.ExpandPaths()

	issues := config.Check(cfg)
	for _, w := range issues.Warnings() {
		logger.Warn("configuration warning", "field", w.Field, "message", w.Message)
	}
	if errs := issues.Errors(); len(errs) > 0 {
		return errs
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	lock, err := instance.Acquire(cfg.Instance.LockPath)
	if err != nil {
		if errors.Is(err, instance.ErrAlreadyRunning) {
			if pid, perr := instance.Owner(cfg.Instance.LockPath); perr == nil && pid > 0 {
				return fmt.Errorf("%w (pid %d)", err, pid)
			}
		}
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	e, err := newEngine(ctx, engineConfig{
		Config:     cfg,
		ConfigPath: src.path,
		Logger:     logger,
	})
	if err != nil {
		stop()
		lock.Release()
		return err
	}

	session := func() error {
		defer stop()
		defer lock.Release()
		start := time.Now()
		err := e.run()
		logger.Info("stopped", "uptime", time.Since(start).Round(time.Second).String())
		return err
	}
	if e.window != nil {
		return runOnMain(session, logger)
	}
	return session()
}
