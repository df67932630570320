package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-filings/internal/logger"
)

var _ driven.PromptStore = (*PromptStore)(nil)

const promptExt = ".txt"

// PromptStore serves prompt templates from <dir>/<name>.txt. Missing or
// blank files fall back to driven.DefaultPrompts. The directory is seeded
// with the defaults and a README on first use.
type PromptStore struct {
	dir      string
	defaults map[string]string

	seed    sync.Once
	seedErr error

	mu    sync.RWMutex
	cache map[string]string
}

// NewPromptStore creates a store rooted at dir. An empty dir means
// <DefaultDir>/prompts.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, "prompts")
	}
	return &PromptStore{
		dir:      dir,
		defaults: driven.DefaultPrompts(),
		cache:    make(map[string]string),
	}, nil
}

// Load returns the template called name.
func (s *PromptStore) Load(name string) (string, error) {
	s.seed.Do(s.seedDir)

	s.mu.RLock()
	cached, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	text, err := s.read(name)
	if err == nil && text == "" {
		err = errors.New("file is empty")
	}
	if err != nil {
		if def, ok := s.defaults[name]; ok {
			return def, nil
		}
		if s.seedErr != nil {
			err = s.seedErr
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[name]; ok {
		return cached, nil
	}
	s.cache[name] = text
	return text, nil
}

// Reload drops every cached template.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	clear(s.cache)
	s.mu.Unlock()
}

func (s *PromptStore) Dir() string {
	return s.dir
}

// Names lists the built-in prompt names.
func (s *PromptStore) Names() []string {
	return slices.Sorted(maps.Keys(s.defaults))
}

// Watch clears the cache whenever a template file changes and calls
// onReload with its name. It returns when ctx is done.
func (s *PromptStore) Watch(ctx context.Context, onReload func(name string)) error {
	s.seed.Do(s.seedDir)
	if s.seedErr != nil {
		return s.seedErr
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create prompt watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	log := logger.Named("prompts").Sugar()
	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&relevant == 0 || filepath.Ext(ev.Name) != promptExt {
				continue
			}
			name := strings.TrimSuffix(filepath.Base(ev.Name), promptExt)
			s.Reload()
			log.Debugf("prompt %q changed (%s), cache cleared", name, ev.Op)
			if onReload != nil {
				onReload(name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warnf("prompt watcher: %v", err)
		}
	}
}

func (s *PromptStore) read(name string) (string, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, name+promptExt))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// seedDir writes any default template or README that is not on disk yet.
// Existing files are never touched.
func (s *PromptStore) seedDir() {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		s.seedErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}
	files := map[string]string{"README.md": promptReadme}
	for name, body := range s.defaults {
		files[name+promptExt] = body
	}

	for name, body := range files {
		path := filepath.Join(s.dir, name)
		if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := os.WriteFile(path, []byte(body), 0600); err != nil {
			s.seedErr = fmt.Errorf("create %s: %w", name, err)
			return
		}
	}
}

const promptReadme = "# Filing Prompts\n\n" +
	"These templates control how questions about SEC filings are answered.\n\n" +
	"- `answer_system.txt`: system instruction for grounded answers\n" +
	"- `answer.txt`: question template (%s ticker, %s context, %s question)\n" +
	"- `related_questions.txt`: follow-up suggestions (%d count, %s context, %s question)\n\n" +
	"Keep the placeholders in the same order. A running server picks up edits\n" +
	"without a restart. Delete a file to restore its default.\n"
