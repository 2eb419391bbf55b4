package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last write before a watched
// file is reloaded. Editors often write a file in several steps.
const DefaultDebounce = 100 * time.Millisecond

// FileWatcher reports changes to a set of files. It watches their parent
// directories so that files replaced by rename are still seen.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool
	debounce time.Duration
	onChange func(path string)

	ctx     context.Context
	cancel  context.CancelFunc
	errChan chan error

	mu     sync.Mutex
	timers map[string]*time.Timer
	wg     sync.WaitGroup
}

// WatchFiles starts watching paths. onChange runs on its own goroutine once
// a file has been quiet for debounce.
func WatchFiles(debounce time.Duration, onChange func(path string), paths ...string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())
	fw := &FileWatcher{
		watcher:  watcher,
		files:    make(map[string]bool),
		debounce: debounce,
		onChange: onChange,
		ctx:      ctx,
		cancel:   cancel,
		errChan:  make(chan error, 1),
		timers:   make(map[string]*time.Timer),
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = filepath.Clean(p)
		}
		fw.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			cancel()
			watcher.Close()
			return nil, fmt.Errorf("watch directory: %w", err)
		}
	}

	fw.wg.Add(1)
	go fw.loop()
	return fw, nil
}

func (fw *FileWatcher) loop() {
	defer fw.wg.Done()
	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || !fw.files[name] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			fw.schedule(name)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.report(err)
		}
	}
}

func (fw *FileWatcher) schedule(name string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if t, ok := fw.timers[name]; ok {
		t.Stop()
	}
	fw.timers[name] = time.AfterFunc(fw.debounce, func() {
		if fw.ctx.Err() != nil {
			return
		}
		fw.onChange(name)
	})
}

func (fw *FileWatcher) report(err error) {
	select {
	case fw.errChan <- err:
	default:
	}
}

// Errors returns a channel for receiving errors that occur during watching.
func (fw *FileWatcher) Errors() <-chan error {
	return fw.errChan
}

// Close stops the watcher and any pending reloads.
func (fw *FileWatcher) Close() error {
	fw.cancel()
	fw.mu.Lock()
	for _, t := range fw.timers {
		t.Stop()
	}
	fw.mu.Unlock()
	err := fw.watcher.Close()
	fw.wg.Wait()
	return err
}

// Loader handles configuration loading, watching, and hot-reloading.
type Loader struct {
	path     string
	config   *Config
	mu       sync.RWMutex
	watcher  *FileWatcher
	onChange []func(old, new *Config)
	errChan  chan error
}

// NewLoader creates a new configuration loader.
func NewLoader(path string) *Loader {
	if path == "" {
		path = ConfigPath()
	}
	return &Loader{
		path:    path,
		errChan: make(chan error, 1),
	}
}

// Path returns the configuration file path.
func (l *Loader) Path() string { return l.path }

// Load reads, overrides and validates the configuration file.
func (l *Loader) Load() (*Config, error) {
	cfg, err := Load(l.path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	l.mu.Lock()
	l.config = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Config returns the current configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// Watch starts watching the configuration file for changes. Valid changes
// replace the current configuration and invoke the OnChange callbacks;
// invalid ones are reported on Errors and ignored.
func (l *Loader) Watch() error {
	fw, err := WatchFiles(DefaultDebounce, func(string) { l.reload() }, l.path)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.watcher = fw
	l.mu.Unlock()

	go func() {
		for {
			select {
			case err := <-fw.Errors():
				l.report(err)
			case <-fw.ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (l *Loader) reload() {
	newCfg, err := Load(l.path)
	if err != nil {
		l.report(fmt.Errorf("reload config: %w", err))
		return
	}
	if err := newCfg.Validate(); err != nil {
		l.report(fmt.Errorf("validate new config: %w", err))
		return
	}

	l.mu.Lock()
	oldCfg := l.config
	l.config = newCfg
	callbacks := append([]func(old, new *Config){}, l.onChange...)
	l.mu.Unlock()

	for _, cb := range callbacks {
		cb(oldCfg, newCfg)
	}
}

func (l *Loader) report(err error) {
	select {
	case l.errChan <- err:
	default:
	}
}

// OnChange registers a callback to be invoked when the configuration changes.
func (l *Loader) OnChange(cb func(old, new *Config)) {
	l.mu.Lock()
	l.onChange = append(l.onChange, cb)
	l.mu.Unlock()
}

// Errors returns a channel for receiving errors that occur during watching.
func (l *Loader) Errors() <-chan error {
	return l.errChan
}

// Close stops the watcher and releases resources.
func (l *Loader) Close() error {
	l.mu.Lock()
	fw := l.watcher
	l.watcher = nil
	l.mu.Unlock()
	if fw != nil {
		return fw.Close()
	}
	return nil
}

// LoadOrCreate loads the configuration at path, writing the defaults there
// first if the file does not exist. The bool reports whether it was created.
func LoadOrCreate(path string) (*Config, bool, error) {
	if path == "" {
		path = ConfigPath()
	}
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	}
	cfg := DefaultConfig()
	if err := SaveConfig(cfg, path); err != nil {
		return nil, false, fmt.Errorf("create config: %w", err)
	}
	cfg.ApplyEnvOverrides()
	return cfg, true, nil
}
