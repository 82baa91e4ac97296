package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impactstats/internal/store"
)

func testWatcher(
	t *testing.T, im *Importer, dir string,
) *Watcher {
	t.Helper()
	w, err := NewWatcher(im, dir, 500*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { w.watcher.Close() })
	return w
}

func TestWatcherDebounce(t *testing.T) {
	im, st := testImporter(t)
	dir := t.TempDir()
	w := testWatcher(t, im, dir)

	clock := time.Now()
	w.now = func() time.Time { return clock }

	path := filepath.Join(dir, "dump.json")
	require.NoError(t, os.WriteFile(path, []byte(englishDump), 0o644))
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Create})

	// The file has not settled yet: nothing imports.
	w.flush()
	rows, err := st.SessionsWithWorkshops(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, rows)

	clock = clock.Add(time.Second)
	w.flush()
	rows, err = st.SessionsWithWorkshops(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestWatcherIgnoresIrrelevantEvents(t *testing.T) {
	im, _ := testImporter(t)
	dir := t.TempDir()
	w := testWatcher(t, im, dir)

	jsonPath := filepath.Join(dir, "dump.json")
	txtPath := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(jsonPath, []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(txtPath, []byte("hi"), 0o644))

	w.handleEvent(fsnotify.Event{Name: txtPath, Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: jsonPath, Op: fsnotify.Chmod})
	w.handleEvent(fsnotify.Event{
		Name: filepath.Join(dir, "gone.json"), Op: fsnotify.Write})

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Empty(t, w.pending)
}

func TestWatcherRewriteResetsDebounce(t *testing.T) {
	im, st := testImporter(t)
	dir := t.TempDir()
	w := testWatcher(t, im, dir)

	clock := time.Now()
	w.now = func() time.Time { return clock }

	path := filepath.Join(dir, "dump.json")
	require.NoError(t, os.WriteFile(path, []byte(englishDump), 0o644))
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Create})

	// A rewrite 300ms later restarts the settle window.
	clock = clock.Add(300 * time.Millisecond)
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Write})
	clock = clock.Add(300 * time.Millisecond)
	w.flush()
	rows, err := st.SessionsWithWorkshops(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, rows)

	clock = clock.Add(300 * time.Millisecond)
	w.flush()
	rows, err = st.SessionsWithWorkshops(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
