package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRevisionSource struct {
	revision int64
}

func (f *fakeRevisionSource) Revision() int64 { return f.revision }

type fakeReloader struct {
	lastRevision int64
	reloads      int
}

func (f *fakeReloader) Reload()             { f.reloads++ }
func (f *fakeReloader) LastRevision() int64 { return f.lastRevision }

func TestReconcileReloadsOnExternalWrite(t *testing.T) {
	src := &fakeRevisionSource{revision: 7}
	rl := &fakeReloader{lastRevision: 5}
	w := New("analytics.db", src, rl, NewHub(zerolog.Nop()), zerolog.Nop())

	w.reconcile()

	assert.Equal(t, 1, rl.reloads)
}

func TestReconcileSkipsOwnWrites(t *testing.T) {
	src := &fakeRevisionSource{revision: 5}
	rl := &fakeReloader{lastRevision: 5}
	w := New("analytics.db", src, rl, NewHub(zerolog.Nop()), zerolog.Nop())

	w.reconcile()

	assert.Zero(t, rl.reloads)
}

// Shutdown must win even with a freshly armed debounce timer pending.
func TestWatcherStopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "analytics.db")
	require.NoError(t, os.WriteFile(path, []byte("seed"), 0o644))

	w := New(path, &fakeRevisionSource{}, &fakeReloader{}, NewHub(zerolog.Nop()), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Arm the debounce, then cancel before it fires.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("touch"), 0o644))
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestReconcileSkipsMissingDocument(t *testing.T) {
	src := &fakeRevisionSource{revision: 0}
	rl := &fakeReloader{lastRevision: 3}
	w := New("analytics.db", src, rl, NewHub(zerolog.Nop()), zerolog.Nop())

	w.reconcile()

	assert.Zero(t, rl.reloads)
}
