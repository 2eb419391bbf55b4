package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"gioui.org/unit"

	"ucliu/internal/config"
	"ucliu/internal/delivery"
	"ucliu/internal/dictionary"
	"ucliu/internal/dispatch"
	"ucliu/internal/health"
	"ucliu/internal/ime"
	"ucliu/internal/keystroke"
	"ucliu/internal/logging"
	"ucliu/internal/metrics"
	"ucliu/internal/overlay"
	"ucliu/internal/tray"
)

const crashRetention = 30 * 24 * time.Hour

type engineConfig struct {
	Config     *config.Config
	ConfigPath string
	Logger     *logging.Logger
	Metrics    *metrics.IMEMetrics
}

// engine owns the running input method: keyboard source, dispatcher,
// overlay, tray and the watchers that hot-reload configuration and
// dictionaries.
type engine struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cfgPath string

	log     *logging.Logger
	crash   *logging.CrashHandler
	metrics *metrics.IMEMetrics
	health  *health.Checker
	dirty   *overlay.Dirty

	source  keystroke.Source
	disp    *dispatch.Dispatcher
	overlay overlay.Overlay
	window  *overlay.Window
	pad     *overlay.Pad

	mu      sync.Mutex
	cfg     *config.Config
	closers []func() error
}

func newEngine(parent context.Context, ec engineConfig) (*engine, error) {
	cfg := ec.Config
	logger := ec.Logger
	m := ec.Metrics
	if m == nil {
		m = metrics.NewIMEMetrics(nil)
	}

	ctx, cancel := context.WithCancel(parent)
	e := &engine{
		ctx:     ctx,
		cancel:  cancel,
		cfgPath: ec.ConfigPath,
		cfg:     cfg,
		log:     logger,
		metrics: m,
		dirty:   &overlay.Dirty{},
	}
	e.crash = logging.NewCrashHandler(logging.CrashHandlerConfig{
		Dir:     logging.DefaultCrashDir(),
		Version: Version,
		Logger:  logger.Component("crash"),
		OnCrash: func(logging.CrashReport) { cancel() },
	})

	dict, err := loadDictionary(cfg.Dictionary)
	if err != nil {
		cancel()
		return nil, err
	}
	m.RecordDictionary(dict.Len(), false)
	logger.Info("dictionary loaded", "path", cfg.Dictionary.Path, "codes", dict.Len())

	hotkeys, err := cfg.Hotkeys.Parse()
	if err != nil {
		cancel()
		return nil, err
	}

	e.source, err = newSource(cfg.Input.Source, logger.Component("keystroke"))
	if err != nil {
		cancel()
		return nil, err
	}
	if ok, reason := e.source.Available(); !ok {
		cancel()
		return nil, fmt.Errorf("%w: %s", keystroke.ErrNotAvailable, reason)
	}

	deliverer, method, err := newDeliverer(cfg, e.source)
	if err != nil {
		cancel()
		return nil, err
	}
	logger.Info("delivery selected", "method", method)

	e.disp = dispatch.New(dispatch.Options{
		Dictionary:   dict,
		Deliverer:    deliverer,
		Dirty:        e.dirty,
		Hotkeys:      hotkeys,
		Intercepting: cfg.Input.StartIntercepting,
		Context:      ctx,
		OnQuit:       cancel,
		Metrics:      m,
		Logger:       logger.Component("dispatch"),
	})

	e.overlay = e.newOverlay(cfg.Overlay, dict)
	e.disp.SetOverlay(e.overlay)
	e.health = e.newHealth()
	return e, nil
}

func (e *engine) newHealth() *health.Checker {
	h := health.NewChecker()
	h.RegisterFunc("keyboard", true, health.SourceCheck(e.source.Done))
	h.RegisterFunc("dictionary", true, health.DictionaryCheck(e.metrics.DictionaryCodes.Value))
	h.RegisterFunc("delivery", false, health.DeliveryCheck(e.metrics.Commits.Value, e.metrics.DeliveryFailures.Value))
	return h
}

func loadDictionary(dc config.DictionaryConfig) (*dictionary.Dictionary, error) {
	return dictionary.Load(dc.Path, dictionary.Options{
		CustomPath: dc.CustomPath,
		Validate:   dc.Validate,
	})
}

// newSource picks the keyboard source. "auto" is the platform default:
// the low-level hook on Windows, the IBus engine on Linux.
func newSource(name string, logger *slog.Logger) (keystroke.Source, error) {
	switch name {
	case "", "auto":
		return keystroke.New(), nil
	case "simulated":
		return keystroke.NewSimulated(), nil
	case "hook":
		if runtime.GOOS != "windows" {
			return nil, fmt.Errorf("%w: the keyboard hook needs Windows", keystroke.ErrNotAvailable)
		}
		return keystroke.New(), nil
	case "ibus":
		if runtime.GOOS != "linux" {
			return nil, fmt.Errorf("%w: IBus needs Linux", keystroke.ErrNotAvailable)
		}
		return keystroke.New(), nil
	}
	logger.Error("unknown input source", "source", name)
	return nil, fmt.Errorf("unknown input source %q", name)
}

// newDeliverer picks how resolved text reaches the focused window. Sources
// that can commit text themselves (IBus) are preferred by "auto".
func newDeliverer(cfg *config.Config, src keystroke.Source) (delivery.Deliverer, string, error) {
	opts := delivery.Options{
		SettleDelay:      cfg.SettleDelay(),
		RestoreClipboard: cfg.Delivery.RestoreClipboard,
		RestoreDelay:     cfg.RestoreDelay(),
	}
	committer, canCommit := src.(delivery.Deliverer)

	switch cfg.Delivery.Method {
	case "", "auto":
		if canCommit {
			return committer, "ibus", nil
		}
		return delivery.New(opts), "paste", nil
	case "paste":
		return delivery.New(opts), "paste", nil
	case "clipboard":
		clip := delivery.SystemClipboard()
		return delivery.DelivererFunc(func(ctx context.Context, text string) error {
			if text == "" {
				return delivery.ErrEmptyText
			}
			return clip.WriteAll(text)
		}), "clipboard", nil
	case "ibus":
		if !canCommit {
			return nil, "", fmt.Errorf("delivery method ibus needs the ibus input source")
		}
		return committer, "ibus", nil
	}
	return nil, "", fmt.Errorf("unknown delivery method %q", cfg.Delivery.Method)
}

func (e *engine) snapshot() ime.Snapshot { return e.disp.Snapshot() }

func (e *engine) newOverlay(oc config.OverlayConfig, dict ime.Dictionary) overlay.Overlay {
	switch oc.Mode {
	case "window":
		e.pad = overlay.NewPad(dict, delivery.SystemClipboard(), e.dirty, e.log.Component("pad"))
		e.window = overlay.NewWindow(overlay.WindowConfig{
			Title:    "ucliu",
			Width:    unit.Dp(oc.Width),
			Height:   unit.Dp(oc.Height),
			Snapshot: e.snapshot,
			Pad:      e.pad,
			Dirty:    e.dirty,
			Logger:   e.log.Component("overlay"),
		})
		if oc.StartVisible {
			e.window.Toggle()
		}
		return e.window
	case "console":
		c := overlay.NewConsole(os.Stderr, e.snapshot, e.dirty)
		if !oc.StartVisible {
			c.Toggle()
		}
		return c
	}
	return overlay.Hidden{}
}

// run starts everything and blocks until the quit hotkey, a signal, the
// tray's Quit, a crash, or the keyboard source going away.
func (e *engine) run() error {
	defer e.cancel()
	defer e.close()

	if err := e.crash.Prune(crashRetention); err != nil {
		e.log.Debug("prune crash reports", "error", err)
	}

	cfg := e.config()
	if cfg.Metrics.Enabled {
		if err := e.serveMetrics(cfg.Metrics.Listen); err != nil {
			return err
		}
	}

	if err := e.source.Start(e.ctx, e.disp); err != nil {
		return fmt.Errorf("start keyboard source: %w", err)
	}
	e.addCloser(e.source.Stop)
	e.health.SetReady(true)
	e.log.Info("input method started",
		"intercepting", e.disp.Intercepting(),
		"quit", e.disp.Hotkeys().Quit.String(),
		"overlay", e.disp.Hotkeys().Overlay.String(),
	)

	e.crash.Go("overlay", func() {
		err := e.overlay.Run(e.ctx)
		if e.ctx.Err() == nil {
			// The user closed the window.
			if err != nil {
				e.log.Warn("overlay stopped", "error", err)
			}
			e.cancel()
		}
	})
	e.crash.Go("tray", e.runTray)
	e.crash.Go("uptime", e.tickUptime)
	e.watchConfig()
	e.watchDictionaries(cfg.Dictionary)

	select {
	case <-e.ctx.Done():
	case <-e.source.Done():
		if e.ctx.Err() == nil {
			e.log.Error("keyboard source stopped unexpectedly")
			return errors.New("keyboard source stopped")
		}
	}
	if e.disp.ShuttingDown() {
		e.log.Info("quit hotkey pressed")
	}
	e.log.Info("shutting down", "stats", e.metrics.Snapshot())
	return nil
}

func (e *engine) config() *config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

func (e *engine) addCloser(fn func() error) {
	e.mu.Lock()
	e.closers = append(e.closers, fn)
	e.mu.Unlock()
}

// close runs the closers in reverse order.
func (e *engine) close() {
	e.mu.Lock()
	closers := e.closers
	e.closers = nil
	e.mu.Unlock()
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			e.log.Debug("close", "error", err)
		}
	}
}

func (e *engine) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.metrics.Registry().HTTPHandler())
	mux.Handle("/healthz", e.health.Handler())
	mux.Handle("/livez", e.health.LivenessHandler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	e.crash.Go("metrics", func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Warn("metrics server", "error", err)
		}
	})
	e.addCloser(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	e.log.Info("metrics listening", "addr", ln.Addr().String())
	return nil
}

func (e *engine) tickUptime() {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-t.C:
			e.metrics.UpdateUptime()
		}
	}
}

func (e *engine) trayState() tray.State {
	st := tray.State{
		Intercepting:     e.disp.Intercepting(),
		OverlayAvailable: e.window != nil,
	}
	if e.window != nil {
		st.OverlayVisible = e.window.Visible()
	}
	return st
}

func (e *engine) onTrayAction(a tray.Action) {
	switch a {
	case tray.ActionToggleMode:
		e.disp.ToggleMode()
	case tray.ActionToggleOverlay:
		e.overlay.Toggle()
		e.metrics.RecordOverlayToggle()
	case tray.ActionQuit:
		e.log.Info("quit from tray")
		e.cancel()
	}
}

func (e *engine) runTray() {
	err := tray.Run(e.ctx, tray.Config{
		Name:     "ucliu",
		State:    e.trayState,
		OnAction: e.onTrayAction,
		Logger:   e.log.Component("tray"),
	})
	switch {
	case errors.Is(err, tray.ErrNotSupported):
		e.log.Debug("no tray on this platform")
	case err != nil:
		e.log.Warn("tray stopped", "error", err)
	}
}

// watchConfig reloads hotkeys, log level, delivery timing and dictionary
// paths when the configuration file changes. Invalid edits are logged and
// ignored.
func (e *engine) watchConfig() {
	if e.cfgPath == "" {
		return
	}
	loader := config.NewLoader(e.cfgPath)
	if _, err := loader.Load(); err != nil {
		e.log.Warn("config watch disabled", "path", e.cfgPath, "error", err)
		return
	}
	loader.OnChange(func(_, updated *config.Config) {
		e.applyConfig(updated.Clone())
	})
	if err := loader.Watch(); err != nil {
		e.log.Debug("config watch disabled", "path", e.cfgPath, "error", err)
		return
	}
	e.addCloser(loader.Close)
	e.crash.Go("config-errors", func() {
		for {
			select {
			case <-e.ctx.Done():
				return
			case err, ok := <-loader.Errors():
				if !ok {
					return
				}
				e.log.Warn("config reload rejected", "error", err)
			}
		}
	})
	e.log.Debug("watching config", "path", e.cfgPath)
}

func (e *engine) applyConfig(updated *config.Config) {
	updated.ExpandPaths()

	e.mu.Lock()
	old := e.cfg
	// These sections are only read at startup.
	updated.Input = old.Input
	updated.Overlay = old.Overlay
	updated.Metrics = old.Metrics
	updated.Instance = old.Instance
	e.cfg = updated
	e.mu.Unlock()

	if hk, err := updated.Hotkeys.Parse(); err == nil && hk != e.disp.Hotkeys() {
		e.disp.Apply(hk)
	}
	if level, err := logging.ParseLevel(updated.Logging.Level); err == nil && level != e.log.Level() {
		e.log.SetLevel(level)
		e.log.Info("log level changed", "level", logging.LevelString(level))
	}
	if updated.Delivery != old.Delivery {
		if d, method, err := newDeliverer(updated, e.source); err == nil {
			e.disp.SetDeliverer(d)
			e.log.Info("delivery reconfigured", "method", method)
		} else {
			e.log.Warn("delivery change ignored", "error", err)
		}
	}
	if updated.Dictionary != old.Dictionary {
		e.reloadDictionary("config changed")
	}
}

// watchDictionaries reloads the tables when either file changes on disk.
func (e *engine) watchDictionaries(dc config.DictionaryConfig) {
	if !dc.WatchCustom {
		return
	}
	paths := []string{dc.Path}
	if dc.CustomPath != "" {
		paths = append(paths, dc.CustomPath)
	}
	fw, err := config.WatchFiles(config.DefaultDebounce, func(path string) {
		e.reloadDictionary("file changed")
	}, paths...)
	if err != nil {
		e.log.Warn("dictionary watch disabled", "error", err)
		return
	}
	e.addCloser(fw.Close)
	e.crash.Go("dictionary-errors", func() {
		for {
			select {
			case <-e.ctx.Done():
				return
			case err, ok := <-fw.Errors():
				if !ok {
					return
				}
				e.log.Warn("dictionary watch", "error", err)
			}
		}
	})
}

// reloadDictionary rebuilds the table from the current paths. On failure
// the loaded table stays in use.
func (e *engine) reloadDictionary(reason string) {
	dc := e.config().Dictionary
	dict, err := loadDictionary(dc)
	if err != nil {
		e.log.Warn("dictionary reload failed, keeping current table", "reason", reason, "error", err)
		return
	}
	e.disp.SetDictionary(dict)
	if e.pad != nil {
		e.pad.SetDictionary(dict)
	}
	e.metrics.RecordDictionary(dict.Len(), true)
	e.log.Info("dictionary reloaded", "reason", reason, "codes", dict.Len())
}
