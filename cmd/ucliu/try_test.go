package main

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ucliu/internal/dictionary"
	"ucliu/internal/logging"
)

func newTestTryModel(t *testing.T) *tryModel {
	t.Helper()
	dict := dictionary.New([]dictionary.Entry{
		{Code: "a", Candidates: []string{"對", "嗎"}},
		{Code: "ab", Candidates: []string{"嗯"}},
	})
	m, err := newTryModel(dict, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(m.close)
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTryTypeConfirmsDefault(t *testing.T) {
	m := newTestTryModel(t)
	require.NoError(t, m.typeText("a ab "))
	assert.Equal(t, "對嗯", m.Text())
}

func TestTryDigitSelects(t *testing.T) {
	m := newTestTryModel(t)
	require.NoError(t, m.typeText("a2"))
	assert.Equal(t, "嗎", m.Text())
}

func TestTryIdleKeysReachApplication(t *testing.T) {
	m := newTestTryModel(t)
	require.NoError(t, m.typeText(" "))
	assert.Equal(t, " ", m.Text())

	m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, "", m.Text())
}

func TestTryTabTogglesPassThrough(t *testing.T) {
	m := newTestTryModel(t)
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.False(t, m.disp.Intercepting())

	m.Update(runes("a"))
	m.Update(runes("b"))
	assert.Equal(t, "ab", m.Text())

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.True(t, m.disp.Intercepting())
}

func TestTryCompositionShownInView(t *testing.T) {
	m := newTestTryModel(t)
	m.Update(runes("a"))
	view := m.View()
	assert.Contains(t, view, "對")
	assert.Contains(t, view, "嗎")
	assert.Empty(t, m.Text())

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, "", m.disp.Snapshot().Code)
}

func TestTryQuitHotkey(t *testing.T) {
	m := newTestTryModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyF4})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestKeyFromTea(t *testing.T) {
	vk, r, ok := keyFromTea(runes("x"))
	require.True(t, ok)
	assert.Equal(t, 'x', r)
	assert.Equal(t, uint16(0x58), vk)

	_, _, ok = keyFromTea(runes("xy"))
	assert.False(t, ok)

	_, r, ok = keyFromTea(tea.KeyMsg{Type: tea.KeySpace})
	require.True(t, ok)
	assert.Equal(t, ' ', r)
}
