package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ucliu/internal/config"
	"ucliu/internal/dictionary"
	"ucliu/internal/health"
	"ucliu/internal/keystroke"
	"ucliu/internal/logging"
	"ucliu/internal/metrics"
	"ucliu/internal/tray"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testDictionaries(t *testing.T) config.DictionaryConfig {
	t.Helper()
	dir := t.TempDir()
	dc := config.DictionaryConfig{
		Path:       filepath.Join(dir, "liu.json"),
		CustomPath: filepath.Join(dir, "custom.json"),
	}
	writeFile(t, dc.Path, `{"chardefs": {"a": ["對", "嗎"], "ab": ["嗯"]}}`)
	return dc
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Dictionary = testDictionaries(t)
	cfg.Input.Source = "simulated"
	cfg.Overlay.Mode = "none"
	cfg.Delivery.Method = "clipboard"
	cfg.Instance.LockPath = filepath.Join(t.TempDir(), "UCLLIU.lock")
	return cfg
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	lg, err := logging.New(&logging.Config{Writer: io.Discard})
	require.NoError(t, err)
	return lg
}

// =============================================================================
// dict
// =============================================================================

func TestDictAddLookupRemove(t *testing.T) {
	dc := testDictionaries(t)

	add := &DictAddCmd{Code: "XYZ", Words: []string{"測試", "試"}}
	require.NoError(t, add.run(dc.CustomPath))

	custom, err := dictionary.OpenCustom(dc.CustomPath)
	require.NoError(t, err)
	require.Equal(t, 1, custom.Len())
	assert.Equal(t, []string{"測試", "試"}, custom.Entries()[0].Candidates)

	dict, err := loadDictionary(dc)
	require.NoError(t, err)

	var out bytes.Buffer
	lookup := &DictLookupCmd{Codes: []string{"xyz", "a"}}
	require.NoError(t, lookup.run(dict, &out))
	assert.Contains(t, out.String(), "1.測試 2.試")
	assert.Contains(t, out.String(), "1.對 2.嗎")

	rm := &DictRemoveCmd{Code: "xyz", Word: "試"}
	require.NoError(t, rm.run(dc.CustomPath))
	rm = &DictRemoveCmd{Code: "xyz", Word: "試"}
	assert.Error(t, rm.run(dc.CustomPath))

	rm = &DictRemoveCmd{Code: "xyz"}
	require.NoError(t, rm.run(dc.CustomPath))
	custom, err = dictionary.OpenCustom(dc.CustomPath)
	require.NoError(t, err)
	assert.Equal(t, 0, custom.Len())
}

func TestDictAddRejectsBadCode(t *testing.T) {
	dc := testDictionaries(t)
	add := &DictAddCmd{Code: "toolong", Words: []string{"字"}}
	err := add.run(dc.CustomPath)
	assert.ErrorIs(t, err, dictionary.ErrInvalidCode)

	add = &DictAddCmd{Code: "a", Words: []string{"字"}}
	assert.Error(t, add.run(""))
}

func TestDictLookupMissing(t *testing.T) {
	dict, err := loadDictionary(testDictionaries(t))
	require.NoError(t, err)

	var out bytes.Buffer
	lookup := &DictLookupCmd{Codes: []string{"zzz"}}
	assert.Error(t, lookup.run(dict, &out))
	assert.Contains(t, out.String(), "(none)")

	out.Reset()
	lookup = &DictLookupCmd{Codes: []string{"a"}, Prefix: true, Limit: 10}
	require.NoError(t, lookup.run(dict, &out))
	assert.Contains(t, out.String(), "ab")
}

func TestDictCheck(t *testing.T) {
	dc := testDictionaries(t)
	writeFile(t, dc.CustomPath, `{"xyz": ["測試"], "a": ["甲"]}`)

	var out bytes.Buffer
	require.NoError(t, (&DictCheckCmd{}).run(dc, &out))
	assert.Contains(t, out.String(), "merged: 3 codes, 1 added")

	writeFile(t, dc.Path, `{"chardefs": {"a": "not a list"}}`)
	assert.Error(t, (&DictCheckCmd{}).run(dc, &out))
}

// =============================================================================
// config
// =============================================================================

func TestConfigInit(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "config.yaml")
	c := &ConfigInitCmd{Format: "yaml", Output: dest}

	got, err := c.run()
	require.NoError(t, err)
	assert.Equal(t, dest, got)

	cfg, err := config.Load(dest)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Hotkeys, cfg.Hotkeys)

	_, err = c.run()
	assert.Error(t, err, "existing file needs --force")

	c.Force = true
	_, err = c.run()
	assert.NoError(t, err)
}

func TestConfigShowJSON(t *testing.T) {
	var out bytes.Buffer
	c := &ConfigShowCmd{Format: "json"}
	require.NoError(t, c.run(config.DefaultConfig(), filepath.Join(t.TempDir(), "none.toml"), &out))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Contains(t, decoded, "hotkeys")
}

func TestConfigCheck(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer
	require.NoError(t, (&ConfigCheckCmd{}).run(cfg, "", &out))
	assert.Contains(t, out.String(), "ok")

	cfg.Hotkeys.Quit = "bogus"
	out.Reset()
	err := (&ConfigCheckCmd{}).run(cfg, "", &out)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Contains(t, out.String(), "hotkeys.quit")
}

func TestConfigCandidatePaths(t *testing.T) {
	j, y, tm := configCandidatePaths("/etc/ucliu.yml")
	assert.Empty(t, j)
	assert.Equal(t, []string{"/etc/ucliu.yml"}, y)
	assert.Empty(t, tm)

	j, y, tm = configCandidatePaths("")
	assert.Len(t, j, 2)
	assert.Len(t, y, 4)
	assert.Len(t, tm, 2)
}

func TestFindUserConfig(t *testing.T) {
	t.Setenv("UCLIU_CONFIG", "")
	assert.Equal(t, "a.toml", findUserConfig([]string{"run", "--config", "a.toml"}))
	assert.Equal(t, "b.json", findUserConfig([]string{"--config=b.json"}))
	assert.Equal(t, "", findUserConfig([]string{"run"}))

	t.Setenv("UCLIU_CONFIG", "env.yaml")
	assert.Equal(t, "env.yaml", findUserConfig(nil))
}

// =============================================================================
// engine
// =============================================================================

func TestNewDeliverer(t *testing.T) {
	cfg := testConfig(t)
	src := keystroke.NewSimulated()

	_, method, err := newDeliverer(cfg, src)
	require.NoError(t, err)
	assert.Equal(t, "clipboard", method)

	cfg.Delivery.Method = "auto"
	_, method, err = newDeliverer(cfg, src)
	require.NoError(t, err)
	assert.Equal(t, "paste", method)

	cfg.Delivery.Method = "ibus"
	_, _, err = newDeliverer(cfg, src)
	assert.Error(t, err)

	cfg.Delivery.Method = "carrier-pigeon"
	_, _, err = newDeliverer(cfg, src)
	assert.Error(t, err)
}

func TestNewSourceUnknown(t *testing.T) {
	_, err := newSource("telepathy", logging.Discard())
	assert.Error(t, err)

	src, err := newSource("simulated", logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &keystroke.Simulated{}, src)
}

func newTestEngine(t *testing.T, cfg *config.Config) (*engine, *keystroke.Simulated) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	e, err := newEngine(ctx, engineConfig{
		Config:  cfg,
		Logger:  testLogger(t),
		Metrics: metrics.NewIMEMetrics(metrics.NewRegistry("test", "")),
	})
	require.NoError(t, err)

	sim, ok := e.source.(*keystroke.Simulated)
	require.True(t, ok)
	require.NoError(t, sim.Start(ctx, e.disp))
	t.Cleanup(func() { sim.Stop() })
	return e, sim
}

func TestEngineMissingDictionary(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dictionary.Path = filepath.Join(t.TempDir(), "missing.json")
	_, err := newEngine(context.Background(), engineConfig{Config: cfg, Logger: testLogger(t)})
	assert.ErrorIs(t, err, dictionary.ErrNotFound)
}

func TestEngineReloadDictionary(t *testing.T) {
	cfg := testConfig(t)
	e, sim := newTestEngine(t, cfg)

	_, err := sim.Type("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"對", "嗎"}, e.disp.Snapshot().Candidates)

	writeFile(t, cfg.Dictionary.CustomPath, `{"a": ["甲"]}`)
	e.reloadDictionary("test")

	assert.Empty(t, e.disp.Snapshot().Code, "reload clears the composition")
	_, err = sim.Type("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"對", "嗎", "甲"}, e.disp.Snapshot().Candidates)
	assert.Equal(t, uint64(1), e.metrics.DictionaryReloads.Value())

	// A broken file keeps the loaded table.
	writeFile(t, cfg.Dictionary.CustomPath, `{"a": `)
	e.reloadDictionary("test")
	assert.Equal(t, uint64(1), e.metrics.DictionaryReloads.Value())
}

func TestEngineApplyConfig(t *testing.T) {
	cfg := testConfig(t)
	e, _ := newTestEngine(t, cfg)

	updated := cfg.Clone()
	updated.Hotkeys.Quit = "f5"
	updated.Logging.Level = "debug"
	updated.Overlay.Mode = "window"
	e.applyConfig(updated)

	assert.Equal(t, keystroke.VKF1+4, e.disp.Hotkeys().Quit.VK)
	assert.Equal(t, logging.LevelDebug, e.log.Level())
	assert.Equal(t, "none", e.config().Overlay.Mode, "overlay mode needs a restart")
}

func TestEngineTrayActions(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(t))
	require.True(t, e.disp.Intercepting())

	e.onTrayAction(tray.ActionToggleMode)
	assert.False(t, e.trayState().Intercepting)

	e.onTrayAction(tray.ActionQuit)
	assert.Error(t, e.ctx.Err())
}

func TestEngineHealth(t *testing.T) {
	e, sim := newTestEngine(t, testConfig(t))
	assert.Equal(t, []string{"delivery", "dictionary", "keyboard"}, e.health.Names())

	e.health.Check(context.Background())
	assert.Equal(t, health.StatusHealthy, e.health.OverallStatus())

	require.NoError(t, sim.Stop())
	e.health.Check(context.Background())
	assert.Equal(t, health.StatusUnhealthy, e.health.OverallStatus())
}
