package fslock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "entry.cache")
	if err := os.WriteFile(path, []byte("payload"), 0o664); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return path
}

func TestSharedLocksCoexist(t *testing.T) {
	path := testFile(t)
	ctx := context.Background()

	first, err := Acquire(ctx, path, os.O_RDONLY, LockShared, time.Second)
	if err != nil {
		t.Fatalf("first shared acquire: %v", err)
	}
	defer first.Release()

	second, err := Acquire(ctx, path, os.O_RDONLY, LockShared, time.Second)
	if err != nil {
		t.Fatalf("second shared acquire should succeed: %v", err)
	}
	defer second.Release()
}

func TestExclusiveBlocksSharedUntilTimeout(t *testing.T) {
	path := testFile(t)
	ctx := context.Background()

	writer, err := Acquire(ctx, path, os.O_WRONLY, LockExclusive, time.Second)
	if err != nil {
		t.Fatalf("exclusive acquire: %v", err)
	}
	defer writer.Release()

	start := time.Now()
	_, err = Acquire(ctx, path, os.O_RDONLY, LockShared, 80*time.Millisecond)
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("timed out too early: %v", elapsed)
	}
}

func TestReleaseAllowsNextWriter(t *testing.T) {
	path := testFile(t)
	ctx := context.Background()

	first, err := Acquire(ctx, path, os.O_WRONLY, LockExclusive, time.Second)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}

	second, err := Acquire(ctx, path, os.O_WRONLY, LockExclusive, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	defer second.Release()
}

func TestReleaseIsIdempotent(t *testing.T) {
	path := testFile(t)
	handle, err := Acquire(context.Background(), path, os.O_RDONLY, LockShared, time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := handle.Release(); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := handle.Release(); err != nil {
		t.Fatalf("second release should be a no-op: %v", err)
	}

	var nilHandle *Handle
	if err := nilHandle.Release(); err != nil {
		t.Fatalf("nil handle release should be a no-op: %v", err)
	}
}

func TestOpenFailureIsDistinguishable(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent", "entry.cache")
	_, err := Acquire(context.Background(), missing, os.O_RDONLY, LockShared, time.Second)

	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected *OpenError, got %v", err)
	}
	if errors.Is(err, ErrLockTimeout) {
		t.Fatalf("open failure must not look like a lock timeout")
	}
}

func TestAcquireHonorsContextCancel(t *testing.T) {
	path := testFile(t)

	holder, err := Acquire(context.Background(), path, os.O_WRONLY, LockExclusive, time.Second)
	if err != nil {
		t.Fatalf("holder acquire: %v", err)
	}
	defer holder.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = Acquire(ctx, path, os.O_RDONLY, LockShared, 5*time.Second)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline, got %v", err)
	}
}
