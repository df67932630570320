package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
)

func TestNewPromptStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv(HomeEnv, home)

	store, err := NewPromptStore("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "prompts"), store.Dir())

	// no I/O before the first Load
	_, err = os.Stat(store.Dir())
	assert.True(t, os.IsNotExist(err))
}

func TestPromptStore_Load_CreatesDefaultFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prompts")
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Load(driven.PromptAnswer)
	require.NoError(t, err)

	for _, name := range store.Names() {
		assert.FileExists(t, filepath.Join(dir, name+".txt"))
	}
	assert.FileExists(t, filepath.Join(dir, "README.md"))
	assert.Equal(t, []string{driven.PromptAnswer, driven.PromptAnswerSystem, driven.PromptRelatedQuestions}, store.Names())
}

func TestPromptStore_Load_ReturnsDefaultContent(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	defaults := driven.DefaultPrompts()
	for name, want := range defaults {
		got, err := store.Load(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestPromptStore_Load_ReturnsCustomContent(t *testing.T) {
	dir := t.TempDir()
	custom := "Answer tersely about %s using %s. Q: %s"
	require.NoError(t, os.WriteFile(filepath.Join(dir, driven.PromptAnswer+".txt"), []byte("\n"+custom+"\n\n"), 0600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	got, err := store.Load(driven.PromptAnswer)
	require.NoError(t, err)
	assert.Equal(t, custom, got)

	// existing files are not overwritten
	data, err := os.ReadFile(filepath.Join(dir, driven.PromptAnswer+".txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), custom)
}

func TestPromptStore_Load_FallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, driven.PromptAnswerSystem+".txt"), []byte("   \n"), 0600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	got, err := store.Load(driven.PromptAnswerSystem)
	require.NoError(t, err)
	assert.Equal(t, driven.DefaultPrompts()[driven.PromptAnswerSystem], got)

	require.NoError(t, os.Remove(filepath.Join(dir, driven.PromptRelatedQuestions+".txt")))
	got, err = store.Load(driven.PromptRelatedQuestions)
	require.NoError(t, err)
	assert.Equal(t, driven.DefaultPrompts()[driven.PromptRelatedQuestions], got)
}

func TestPromptStore_Load_UnknownPrompt(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("nope")
	assert.Error(t, err)
}

func TestPromptStore_Load_UnwritableDirUsesDefaults(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	store, err := NewPromptStore(filepath.Join(blocker, "prompts"))
	require.NoError(t, err)

	got, err := store.Load(driven.PromptAnswer)
	require.NoError(t, err)
	assert.Equal(t, driven.DefaultPrompts()[driven.PromptAnswer], got)

	_, err = store.Load("nope")
	assert.ErrorContains(t, err, "create prompt directory")
}

func TestPromptStore_Reload_ClearsCache(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Load(driven.PromptAnswer)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, driven.PromptAnswer+".txt"), []byte("v2 %s %s %s"), 0600))

	cached, err := store.Load(driven.PromptAnswer)
	require.NoError(t, err)
	assert.NotEqual(t, "v2 %s %s %s", cached)

	store.Reload()
	fresh, err := store.Load(driven.PromptAnswer)
	require.NoError(t, err)
	assert.Equal(t, "v2 %s %s %s", fresh)
}

func TestPromptStore_Load_ConcurrentAccess(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 30 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%10 == 0 {
				store.Reload()
			}
			_, err := store.Load(driven.PromptAnswerSystem)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestPromptStore_Watch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Load(driven.PromptAnswerSystem)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	reloaded := make(chan string, 8)
	done := make(chan error, 1)
	go func() {
		done <- store.Watch(ctx, func(name string) {
			select {
			case reloaded <- name:
			default:
			}
		})
	}()

	// give the watcher a moment to register
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, driven.PromptAnswerSystem+".txt"), []byte("Be brief."), 0600))

	select {
	case name := <-reloaded:
		assert.Equal(t, driven.PromptAnswerSystem, name)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the change")
	}

	assert.Eventually(t, func() bool {
		got, err := store.Load(driven.PromptAnswerSystem)
		return err == nil && got == "Be brief."
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestPromptStore_Watch_UnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	store, err := NewPromptStore(filepath.Join(blocker, "prompts"))
	require.NoError(t, err)

	assert.Error(t, store.Watch(context.Background(), nil))
}
