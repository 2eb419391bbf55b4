package logging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"sync"
	"time"
)

// CrashReport describes a recovered panic.
type CrashReport struct {
	Timestamp    time.Time `json:"timestamp"`
	Version      string    `json:"version"`
	GOOS         string    `json:"goos"`
	GOARCH       string    `json:"goarch"`
	NumGoroutine int       `json:"num_goroutine"`
	Goroutine    string    `json:"goroutine"`
	PanicValue   string    `json:"panic_value"`
	StackTrace   string    `json:"stack_trace"`
}

// CrashHandler recovers panics in long-running goroutines, writes a report
// next to the logs and tells the caller so it can shut down cleanly.
type CrashHandler struct {
	mu      sync.Mutex
	dir     string
	version string
	log     *slog.Logger
	onCrash func(CrashReport)
}

// CrashHandlerConfig configures the crash handler.
type CrashHandlerConfig struct {
	// Dir receives crash-*.json files. Empty disables writing.
	Dir     string
	Version string
	Logger  *slog.Logger

	// OnCrash runs after the report is written.
	OnCrash func(CrashReport)
}

// DefaultCrashDir returns the crash directory beside the default log file.
func DefaultCrashDir() string {
	return filepath.Join(filepath.Dir(defaultLogPath()), "crashes")
}

// NewCrashHandler creates a CrashHandler.
func NewCrashHandler(cfg CrashHandlerConfig) *CrashHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CrashHandler{
		dir:     cfg.Dir,
		version: cfg.Version,
		log:     logger,
		onCrash: cfg.OnCrash,
	}
}

// Go runs fn on a new goroutine, recovering any panic as a crash named name.
func (h *CrashHandler) Go(name string, fn func()) {
	go h.Run(name, fn)
}

// Run calls fn, recovering any panic as a crash named name. It reports
// whether fn returned normally.
func (h *CrashHandler) Run(name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			h.HandlePanic(name, r)
			ok = false
		}
	}()
	fn()
	return true
}

// HandlePanic records a panic value.
func (h *CrashHandler) HandlePanic(goroutine string, panicValue any) CrashReport {
	report := CrashReport{
		Timestamp:    time.Now().UTC(),
		Version:      h.version,
		GOOS:         runtime.GOOS,
		GOARCH:       runtime.GOARCH,
		NumGoroutine: runtime.NumGoroutine(),
		Goroutine:    goroutine,
		PanicValue:   fmt.Sprintf("%v", panicValue),
		StackTrace:   string(debug.Stack()),
	}

	h.mu.Lock()
	path, err := h.write(report)
	h.mu.Unlock()

	h.log.Error("panic recovered",
		"goroutine", goroutine,
		"panic", report.PanicValue,
		"report", path,
	)
	if err != nil {
		h.log.Warn("write crash report", "error", err)
	}

	if h.onCrash != nil {
		h.onCrash(report)
	}
	return report
}

func (h *CrashHandler) write(report CrashReport) (string, error) {
	if h.dir == "" {
		return "", nil
	}
	if err := os.MkdirAll(h.dir, 0o750); err != nil {
		return "", err
	}
	name := fmt.Sprintf("crash-%s-%s.json",
		report.Timestamp.Format("20060102-150405.000"), report.Goroutine)
	path := filepath.Join(h.dir, name)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("write crash report: %w", err)
	}
	return path, nil
}

// Reports reads the saved crash reports, oldest first.
func (h *CrashHandler) Reports() ([]CrashReport, error) {
	if h.dir == "" {
		return nil, nil
	}
	files, err := filepath.Glob(filepath.Join(h.dir, "crash-*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	reports := make([]CrashReport, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		var report CrashReport
		if err := json.Unmarshal(data, &report); err != nil {
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Prune removes reports older than maxAge.
func (h *CrashHandler) Prune(maxAge time.Duration) error {
	if h.dir == "" {
		return nil
	}
	files, err := filepath.Glob(filepath.Join(h.dir, "crash-*.json"))
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-maxAge)
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(file)
		}
	}
	return nil
}
