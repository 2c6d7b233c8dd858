package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/gqnviz/pkg/observability"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit || data != nil {
		t.Errorf("Get = %v, %v, want miss", data, hit)
	}
	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "key"); hit {
		t.Error("NullCache should not store data")
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(filepath.Join(t.TempDir(), "views"))
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}

	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Fatalf("Get on empty cache = %v, %v", hit, err)
	}
	if err := c.Set(ctx, "k", []byte{1, 2, 3}, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, "k")
	if err != nil || !hit {
		t.Fatalf("Get = %v, %v", hit, err)
	}
	if string(data) != "\x01\x02\x03" {
		t.Errorf("Get = %v, want [1 2 3]", data)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete: %v", err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete of missing key: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("Get after Delete should miss")
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())
	if err := c.Set(ctx, "k", []byte("x"), time.Nanosecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(time.Millisecond)
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry should miss")
	}
	if _, err := os.Stat(c.path("k")); !os.IsNotExist(err) {
		t.Error("expired entry should be removed")
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())
	_ = c.Set(ctx, "k", []byte("x"), 0)
	if err := os.WriteFile(c.path("k"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Errorf("corrupt entry Get = %v, %v, want miss", hit, err)
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())
	for _, k := range []string{"a", "b", "c"} {
		_ = c.Set(ctx, k, []byte(k), 0)
	}
	n, err := c.Clear()
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 3 {
		t.Errorf("Clear = %d, want 3", n)
	}
	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Error("Get after Clear should miss")
	}
}

func TestFileCacheConcurrentSet(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Set(ctx, "shared", []byte{byte(i)}, 0)
		}()
	}
	wg.Wait()
	data, hit, err := c.Get(ctx, "shared")
	if err != nil || !hit || len(data) != 1 {
		t.Errorf("Get = %v, %v, %v, want one complete entry", data, hit, err)
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("len(Hash) = %d, want 64", len(h1))
	}

	j1, err := HashJSON(map[string]int{"a": 1})
	if err != nil {
		t.Fatal(err)
	}
	j2, _ := HashJSON(map[string]int{"a": 2})
	if j1 == j2 {
		t.Error("HashJSON should depend on the value")
	}
	if _, err := HashJSON(func() {}); err == nil {
		t.Error("HashJSON of a func should fail")
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()
	eye := [3]float64{0, 0, 3}
	opts := ViewKeyOpts{Projection: "orthographic", RaysPerPixel: 512, MaxBounce: 2}

	base := k.ViewKey("scene", eye, 64, opts)
	if base != k.ViewKey("scene", eye, 64, opts) {
		t.Error("ViewKey should be deterministic")
	}
	if len(base) != len("view:")+64 || base[:5] != "view:" {
		t.Errorf("ViewKey = %q", base)
	}

	other := opts
	other.RaysPerPixel = 64
	variants := []string{
		k.ViewKey("other", eye, 64, opts),
		k.ViewKey("scene", [3]float64{0, 3, 0}, 64, opts),
		k.ViewKey("scene", eye, 32, opts),
		k.ViewKey("scene", eye, 64, other),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d should produce a different key", i)
		}
	}

	f1 := k.FrameKey("state", 3, FrameKeyOpts{Format: "png", DPI: 72})
	f2 := k.FrameKey("state", 4, FrameKeyOpts{Format: "png", DPI: 72})
	if f1 == f2 {
		t.Error("different frames should produce different keys")
	}
	if f1[len(f1)-2:] != ":3" {
		t.Errorf("FrameKey = %q, want frame suffix", f1)
	}
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(NewDefaultKeyer(), "run:1:")
	inner := NewDefaultKeyer()

	got := scoped.ViewKey("s", [3]float64{}, 8, ViewKeyOpts{})
	if want := "run:1:" + inner.ViewKey("s", [3]float64{}, 8, ViewKeyOpts{}); got != want {
		t.Errorf("ViewKey = %q, want %q", got, want)
	}
	got = NewScopedKeyer(nil, "p:").FrameKey("s", 1, FrameKeyOpts{})
	if want := "p:" + inner.FrameKey("s", 1, FrameKeyOpts{}); got != want {
		t.Errorf("FrameKey with nil inner = %q, want %q", got, want)
	}
}

func TestRetryableError(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}
	err := Retryable(ErrNetwork)
	if !IsRetryable(err) {
		t.Error("IsRetryable should return true for wrapped error")
	}
	if err.Error() != ErrNetwork.Error() {
		t.Errorf("Error() = %q, want %q", err.Error(), ErrNetwork.Error())
	}
	if !errors.Is(err, ErrNetwork) {
		t.Error("Retryable should unwrap to the cause")
	}
	if IsRetryable(ErrNetwork) {
		t.Error("IsRetryable should return false for unwrapped error")
	}
}

func shortRetry(t *testing.T) {
	t.Helper()
	old := retryDelay
	retryDelay = time.Millisecond
	t.Cleanup(func() { retryDelay = old })
}

func TestRetryWithBackoff(t *testing.T) {
	shortRetry(t)
	ctx := context.Background()

	calls := 0
	if err := RetryWithBackoff(ctx, func() error { calls++; return nil }); err != nil || calls != 1 {
		t.Errorf("success: err = %v, calls = %d", err, calls)
	}

	calls = 0
	errPermanent := errors.New("permanent")
	err := RetryWithBackoff(ctx, func() error { calls++; return errPermanent })
	if err != errPermanent || calls != 1 {
		t.Errorf("non-retryable: err = %v, calls = %d", err, calls)
	}

	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		if calls < 2 {
			return Retryable(ErrNetwork)
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("retry once: err = %v, calls = %d", err, calls)
	}

	calls = 0
	err = RetryWithBackoff(ctx, func() error { calls++; return Retryable(ErrNetwork) })
	if !IsRetryable(err) || calls != 3 {
		t.Errorf("exhausted: err = %v, calls = %d", err, calls)
	}
}

func TestBackoffAttempts(t *testing.T) {
	ctx := context.Background()
	for _, attempts := range []int{0, 1, 4} {
		calls := 0
		err := Backoff{Attempts: attempts, Delay: time.Millisecond}.Do(ctx, func() error {
			calls++
			return Retryable(ErrNetwork)
		})
		want := max(attempts, 1)
		if calls != want || !errors.Is(err, ErrNetwork) {
			t.Errorf("Attempts %d: calls = %d, err = %v; want %d calls", attempts, calls, err, want)
		}
	}
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RetryWithBackoff(ctx, func() error { return Retryable(ErrNetwork) })
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRedisCacheUnreachable(t *testing.T) {
	shortRetry(t)
	ctx := context.Background()
	_, err := NewRedisCache(ctx, RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
	if err == nil {
		t.Fatal("NewRedisCache should fail against a closed port")
	}
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("err = %v, want ErrNetwork", err)
	}
}

func TestRedisCacheRequiresAddr(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), RedisConfig{}); err == nil {
		t.Error("NewRedisCache without address should fail")
	}
}

type countingHooks struct {
	observability.NoopCacheHooks
	mu                sync.Mutex
	hits, misses, set int
	bytes             int
}

func (h *countingHooks) OnCacheHit(context.Context, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hits++
}

func (h *countingHooks) OnCacheMiss(context.Context, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.misses++
}

func (h *countingHooks) OnCacheSet(_ context.Context, _ string, size int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.set++
	h.bytes += size
}

func TestInstrument(t *testing.T) {
	hooks := &countingHooks{}
	observability.SetCacheHooks(hooks)
	t.Cleanup(observability.Reset)

	ctx := context.Background()
	fc, _ := NewFileCache(t.TempDir())
	c := Instrument(fc, "view")

	_, _, _ = c.Get(ctx, "k")
	_ = c.Set(ctx, "k", []byte("abcd"), 0)
	_, _, _ = c.Get(ctx, "k")
	_ = c.Delete(ctx, "k")

	if hooks.hits != 1 || hooks.misses != 1 || hooks.set != 1 || hooks.bytes != 4 {
		t.Errorf("hooks = %d hits, %d misses, %d sets, %d bytes; want 1, 1, 1, 4",
			hooks.hits, hooks.misses, hooks.set, hooks.bytes)
	}
}
