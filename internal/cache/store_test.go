package cache

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tagcache/tagcache/internal/cachekey"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Root == "" {
		opts.Root = t.TempDir()
	}
	if opts.Logger == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		opts.Logger = logger
	}
	store, err := New(opts)
	if err != nil {
		t.Fatalf("new store failed: %v", err)
	}
	return store
}

func resetDefault(t *testing.T) {
	t.Helper()
	defaultMu.Lock()
	prev := defaultStore
	defaultStore = nil
	defaultMu.Unlock()
	t.Cleanup(func() {
		defaultMu.Lock()
		defaultStore = prev
		defaultMu.Unlock()
	})
}

func TestNewRequiresRoot(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("expected error for missing root")
	}
}

func TestNewCreatesNamespacedTree(t *testing.T) {
	root := t.TempDir()
	store := newTestStore(t, Options{Root: root, Namespace: "Go Modules"})

	if store.Namespace() != "go_modules" {
		t.Fatalf("namespace not sanitized: %q", store.Namespace())
	}

	for _, dir := range []string{
		filepath.Join(root, "cache", "go_modules"),
		filepath.Join(root, "tags", "go_modules"),
	} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
		if info.Mode()&dirPerm != dirPerm {
			t.Fatalf("directory %s missing mode bits: %v", dir, info.Mode())
		}
	}
}

func TestNewNormalizesExistingDirs(t *testing.T) {
	root := t.TempDir()
	if err := os.Chmod(root, 0o700); err != nil {
		t.Fatalf("chmod failed: %v", err)
	}

	newTestStore(t, Options{Root: root})

	info, err := os.Stat(root)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Mode()&dirPerm != dirPerm {
		t.Fatalf("existing root not normalized: %v", info.Mode())
	}
}

func TestNewDefaultsNamespace(t *testing.T) {
	store := newTestStore(t, Options{})
	if store.Namespace() != "default" {
		t.Fatalf("unexpected namespace: %q", store.Namespace())
	}
}

func TestEntryPathUsesHashedKey(t *testing.T) {
	store := newTestStore(t, Options{Namespace: "site"})
	key := cachekey.New("greeting").Tag("user", 5)

	path, err := store.EntryPath(key)
	if err != nil {
		t.Fatalf("entry path failed: %v", err)
	}
	want := filepath.Join(store.Root(), "cache", "site", key.HashedKey()+entrySuffix)
	if path != want {
		t.Fatalf("unexpected path %s, want %s", path, want)
	}
}

func TestEntryPathSurfacesKeyError(t *testing.T) {
	store := newTestStore(t, Options{})
	key := cachekey.New("")

	if _, err := store.EntryPath(key); !errors.Is(err, cachekey.ErrEmptyName) {
		t.Fatalf("expected key error, got %v", err)
	}
}

func TestConfigureDefaultOnce(t *testing.T) {
	resetDefault(t)

	if _, err := Default(); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	store := newTestStore(t, Options{})
	if err := Configure(store); err != nil {
		t.Fatalf("configure failed: %v", err)
	}
	if err := Configure(store); !errors.Is(err, ErrAlreadyConfigured) {
		t.Fatalf("expected ErrAlreadyConfigured, got %v", err)
	}

	got, err := Default()
	if err != nil {
		t.Fatalf("default failed: %v", err)
	}
	if got != store {
		t.Fatalf("default returned wrong store")
	}
}

func TestConfigureRejectsNil(t *testing.T) {
	resetDefault(t)
	if err := Configure(nil); err == nil {
		t.Fatalf("expected error for nil store")
	}
}

func TestDefaultLifetimeAccessor(t *testing.T) {
	store := newTestStore(t, Options{DefaultLifetime: 45 * time.Minute})
	if store.DefaultLifetime() != 45*time.Minute {
		t.Fatalf("unexpected default lifetime: %v", store.DefaultLifetime())
	}
}

func TestScenarioGreetingLifecycle(t *testing.T) {
	store := newTestStore(t, Options{})
	ctx := context.Background()

	key := cachekey.New("greeting").Tag("User", 5)
	if key.Canonical() != "user_5-greeting" {
		t.Fatalf("unexpected canonical key: %q", key.Canonical())
	}

	if err := store.StoreText(ctx, key, "Hello, world!"); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if value, ok := store.GetText(ctx, key, time.Hour); !ok || value != "Hello, world!" {
		t.Fatalf("expected hit with greeting, got %q ok=%v", value, ok)
	}

	if n := store.InvalidateTag(ctx, "user", 5); n != 1 {
		t.Fatalf("expected 1 invalidated link, got %d", n)
	}
	if _, ok := store.GetText(ctx, key, time.Hour); ok {
		t.Fatalf("expected miss after invalidation")
	}
}
