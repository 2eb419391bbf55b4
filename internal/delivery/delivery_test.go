package delivery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ucliu/internal/metrics"
)

type fakeClipboard struct {
	mu       sync.Mutex
	text     string
	writes   []string
	writeErr error
}

func (c *fakeClipboard) ReadAll() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, nil
}

func (c *fakeClipboard) WriteAll(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.text = text
	c.writes = append(c.writes, text)
	return nil
}

type fakeInjector struct {
	clip   *fakeClipboard
	pasted []string
	err    error
}

func (f *fakeInjector) PasteChord() error {
	if f.err != nil {
		return f.err
	}
	text, _ := f.clip.ReadAll()
	f.pasted = append(f.pasted, text)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPasteWritesClipboardThenChord(t *testing.T) {
	clip := &fakeClipboard{text: "old"}
	inj := &fakeInjector{clip: clip}
	p := NewPaste(clip, inj, Options{SettleDelay: time.Millisecond})

	require.NoError(t, p.Deliver(context.Background(), "你好"))
	assert.Equal(t, []string{"你好"}, inj.pasted)
	assert.Equal(t, "你好", clip.text)
}

func TestPasteRestoresClipboard(t *testing.T) {
	clip := &fakeClipboard{text: "old"}
	inj := &fakeInjector{clip: clip}
	p := NewPaste(clip, inj, Options{
		SettleDelay:      time.Millisecond,
		RestoreClipboard: true,
		RestoreDelay:     time.Millisecond,
	})

	require.NoError(t, p.Deliver(context.Background(), "字"))
	assert.Equal(t, []string{"字"}, inj.pasted)
	assert.Equal(t, []string{"字", "old"}, clip.writes)
	assert.Equal(t, "old", clip.text)
}

func TestPasteErrors(t *testing.T) {
	clip := &fakeClipboard{}
	p := NewPaste(clip, &fakeInjector{clip: clip}, Options{})
	assert.ErrorIs(t, p.Deliver(context.Background(), ""), ErrEmptyText)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Deliver(ctx, "字"), context.Canceled)

	busy := errors.New("clipboard busy")
	clip.writeErr = busy
	assert.ErrorIs(t, p.Deliver(context.Background(), "字"), busy)

	clip.writeErr = nil
	chordErr := errors.New("blocked by UIPI")
	p = NewPaste(clip, &fakeInjector{clip: clip, err: chordErr}, Options{SettleDelay: time.Millisecond})
	assert.ErrorIs(t, p.Deliver(context.Background(), "字"), chordErr)
}

func TestPasteWithoutInjectorLeavesClipboard(t *testing.T) {
	clip := &fakeClipboard{}
	p := NewPaste(clip, nil, Options{})
	assert.ErrorIs(t, p.Deliver(context.Background(), "字"), ErrNoInjector)
	assert.Equal(t, "字", clip.text)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	_, ok := r.Last()
	assert.False(t, ok)

	require.NoError(t, r.Deliver(context.Background(), "a"))
	require.NoError(t, r.Deliver(context.Background(), "b"))
	last, ok := r.Last()
	assert.True(t, ok)
	assert.Equal(t, "b", last)

	boom := errors.New("boom")
	r.FailWith(boom)
	assert.ErrorIs(t, r.Deliver(context.Background(), "c"), boom)
	assert.Equal(t, []string{"a", "b"}, r.Texts())

	r.FailWith(nil)
	r.Reset()
	assert.Empty(t, r.Texts())
}

func TestInstrumentedCountsOutcomes(t *testing.T) {
	m := metrics.NewIMEMetrics(metrics.NewRegistry("test", "delivery"))
	r := NewRecorder()
	d := Instrument(r, m, quietLogger())

	require.NoError(t, d.Deliver(context.Background(), "字"))
	r.FailWith(errors.New("boom"))
	assert.Error(t, d.Deliver(context.Background(), "字"))

	assert.EqualValues(t, 1, m.Commits.Value())
	assert.EqualValues(t, 1, m.DeliveryFailures.Value())
	assert.EqualValues(t, 2, m.DeliveryDuration.Count())
}

func TestDelivererFunc(t *testing.T) {
	var got string
	var d Deliverer = DelivererFunc(func(_ context.Context, text string) error {
		got = text
		return nil
	})
	require.NoError(t, d.Deliver(context.Background(), "x"))
	assert.Equal(t, "x", got)
}
