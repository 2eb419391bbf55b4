package metrics

import (
	"time"
)

// IMEMetrics holds the metrics recorded on the keystroke path.
type IMEMetrics struct {
	registry *Registry

	KeysTotal         *Counter
	KeysConsumed      *Counter
	InjectedSkipped   *Counter
	ModeToggles       *Counter
	OverlayToggles    *Counter
	Commits           *Counter
	DeliveryFailures  *Counter
	DictionaryReloads *Counter

	Intercepting    *Gauge
	DictionaryCodes *Gauge
	UptimeSeconds   *Gauge

	HookLatency      *Histogram
	DeliveryDuration *Histogram
}

var startTime = time.Now()

// NewIMEMetrics registers the IME metrics on registry, or on Default when nil.
func NewIMEMetrics(registry *Registry) *IMEMetrics {
	if registry == nil {
		registry = Default()
	}
	return &IMEMetrics{
		registry: registry,

		KeysTotal:         registry.RegisterCounter("keys_total", "Key events seen by the dispatcher", nil),
		KeysConsumed:      registry.RegisterCounter("keys_consumed_total", "Key events swallowed by the dispatcher", nil),
		InjectedSkipped:   registry.RegisterCounter("keys_injected_total", "Injected key events passed through untouched", nil),
		ModeToggles:       registry.RegisterCounter("mode_toggles_total", "Solitary shift taps that flipped the intercept mode", nil),
		OverlayToggles:    registry.RegisterCounter("overlay_toggles_total", "Overlay hotkey presses", nil),
		Commits:           registry.RegisterCounter("commits_total", "Candidates delivered to the focused application", nil),
		DeliveryFailures:  registry.RegisterCounter("delivery_failures_total", "Candidates that could not be delivered", nil),
		DictionaryReloads: registry.RegisterCounter("dictionary_reloads_total", "Dictionary hot reloads", nil),

		Intercepting:    registry.RegisterGauge("intercepting", "1 while keys are intercepted, 0 in pass-through mode", nil),
		DictionaryCodes: registry.RegisterGauge("dictionary_codes", "Distinct codes in the loaded dictionary", nil),
		UptimeSeconds:   registry.RegisterGauge("uptime_seconds", "Seconds since start", nil),

		HookLatency: registry.RegisterHistogram(
			"hook_latency_seconds",
			"Time spent classifying one key event, excluding delivery",
			nil,
			LatencyBuckets,
		),
		DeliveryDuration: registry.RegisterHistogram(
			"delivery_duration_seconds",
			"Time spent delivering one candidate",
			nil,
			LatencyBuckets,
		),
	}
}

// RecordKey records one classified key event.
func (m *IMEMetrics) RecordKey(consumed bool, took time.Duration) {
	m.KeysTotal.Inc()
	if consumed {
		m.KeysConsumed.Inc()
	}
	m.HookLatency.ObserveDuration(took)
}

// RecordInjected records an injected event that was passed on.
func (m *IMEMetrics) RecordInjected() {
	m.KeysTotal.Inc()
	m.InjectedSkipped.Inc()
}

// RecordMode records the intercept mode, counting a toggle when toggled is set.
func (m *IMEMetrics) RecordMode(intercepting, toggled bool) {
	if toggled {
		m.ModeToggles.Inc()
	}
	m.Intercepting.SetBool(intercepting)
}

// RecordOverlayToggle records an overlay hotkey press.
func (m *IMEMetrics) RecordOverlayToggle() {
	m.OverlayToggles.Inc()
}

// RecordDelivery records one delivery attempt.
func (m *IMEMetrics) RecordDelivery(took time.Duration, err error) {
	m.DeliveryDuration.ObserveDuration(took)
	if err != nil {
		m.DeliveryFailures.Inc()
		return
	}
	m.Commits.Inc()
}

// RecordDictionary records a (re)loaded dictionary of n codes.
func (m *IMEMetrics) RecordDictionary(n int, reload bool) {
	m.DictionaryCodes.Set(int64(n))
	if reload {
		m.DictionaryReloads.Inc()
	}
}

// UpdateUptime updates the uptime gauge.
func (m *IMEMetrics) UpdateUptime() {
	m.UptimeSeconds.Set(int64(time.Since(startTime).Seconds()))
}

// Snapshot returns the headline numbers.
func (m *IMEMetrics) Snapshot() map[string]interface{} {
	m.UpdateUptime()
	return map[string]interface{}{
		"keys_total":              m.KeysTotal.Value(),
		"keys_consumed_total":     m.KeysConsumed.Value(),
		"keys_injected_total":     m.InjectedSkipped.Value(),
		"mode_toggles_total":      m.ModeToggles.Value(),
		"commits_total":           m.Commits.Value(),
		"delivery_failures_total": m.DeliveryFailures.Value(),
		"intercepting":            m.Intercepting.Value(),
		"dictionary_codes":        m.DictionaryCodes.Value(),
		"uptime_seconds":          m.UptimeSeconds.Value(),
		"hook_latency_avg":        m.HookLatency.Mean(),
		"delivery_avg":            m.DeliveryDuration.Mean(),
	}
}

// Registry returns the registry the metrics live in.
func (m *IMEMetrics) Registry() *Registry {
	return m.registry
}
