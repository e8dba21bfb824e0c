package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFileCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache() error = %v", err)
	}
	defer c.Close()

	key := "sankey:abc123"
	payload := []byte(`{"nodes":3}`)

	if _, hit, _ := c.Get(ctx, key); hit {
		t.Error("empty cache should miss")
	}

	if err := c.Set(ctx, key, payload, time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, hit, err := c.Get(ctx, key)
	if err != nil || !hit {
		t.Fatalf("Get() = hit %v, err %v", hit, err)
	}
	if string(got) != string(payload) {
		t.Errorf("Get() = %s, want %s", got, payload)
	}

	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, hit, _ := c.Get(ctx, key); hit {
		t.Error("deleted key should miss")
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Errorf("deleting a missing key should succeed, got %v", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.Set(ctx, "layout:k", []byte("x"), time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, hit, _ := c.Get(ctx, "layout:k"); hit {
		t.Error("expired entry should miss")
	}

	// Zero TTL never expires.
	if err := c.Set(ctx, "layout:p", []byte("y"), 0); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "layout:p"); !hit {
		t.Error("zero-TTL entry should survive")
	}
}

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	if err := c.Set(ctx, "k", []byte("v"), time.Hour); err != nil {
		t.Errorf("Set() error = %v", err)
	}
	data, hit, err := c.Get(ctx, "k")
	if err != nil || hit || data != nil {
		t.Errorf("Get() = %v, %v, %v; want nil miss", data, hit, err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestHash(t *testing.T) {
	a, b := Hash([]byte("tree-a")), Hash([]byte("tree-a"))
	if a != b {
		t.Error("equal inputs must hash equal")
	}
	if Hash([]byte("tree-b")) == a {
		t.Error("distinct inputs should not collide")
	}
	if len(a) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(a))
	}
}

func TestDefaultKeyerSensitivity(t *testing.T) {
	k := NewDefaultKeyer()

	if got := k.HTTPKey("dataset:", "items"); got != "http:dataset::items" {
		t.Errorf("HTTPKey() = %s", got)
	}

	// Every key is a pure function of its inputs: same inputs replay the
	// key, any changed input produces a fresh one.
	base := k.SankeyKey("tree1", SankeyKeyOpts{FilterHash: "f1", ItemCount: 10})
	if k.SankeyKey("tree1", SankeyKeyOpts{FilterHash: "f1", ItemCount: 10}) != base {
		t.Error("SankeyKey should be deterministic")
	}
	if k.SankeyKey("tree1", SankeyKeyOpts{FilterHash: "f2", ItemCount: 10}) == base {
		t.Error("filter hash must change the sankey key")
	}

	if k.LayoutKey("tree1", LayoutKeyOpts{Width: 800}) == k.LayoutKey("tree1", LayoutKeyOpts{Width: 1200}) {
		t.Error("drawing area must change the layout key")
	}

	// Comparison keys distinguish direction and population.
	pop := ComparisonKeyOpts{LeftMembersHash: "m1", RightMembersHash: "m2"}
	ck := k.ComparisonKey("left", "right", pop)
	if k.ComparisonKey("right", "left", pop) == ck {
		t.Error("ComparisonKey should be order-sensitive")
	}
	if k.ComparisonKey("left", "right", ComparisonKeyOpts{LeftMembersHash: "m1", RightMembersHash: "m9"}) == ck {
		t.Error("a different classified population must change the comparison key")
	}
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(NewDefaultKeyer(), "session:abc:")

	keys := []string{
		scoped.HTTPKey("dataset:", "items"),
		scoped.SankeyKey("tree1", SankeyKeyOpts{}),
		scoped.LayoutKey("tree1", LayoutKeyOpts{}),
		scoped.ComparisonKey("l", "r", ComparisonKeyOpts{}),
	}
	for _, key := range keys {
		if !strings.HasPrefix(key, "session:abc:") {
			t.Errorf("key %s lacks the scope prefix", key)
		}
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	scoped := NewScopedKeyer(nil, "scope:")
	if got := scoped.HTTPKey("d:", "k"); got != "scope:http:d::k" {
		t.Errorf("HTTPKey() = %s", got)
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should stay nil")
	}

	wrapped := Retryable(ErrNetwork)
	if !IsRetryable(wrapped) {
		t.Error("wrapped error should be retryable")
	}
	if !errors.Is(wrapped, ErrNetwork) {
		t.Error("wrapping must preserve the error chain")
	}
	if wrapped.Error() != ErrNetwork.Error() {
		t.Errorf("message = %s", wrapped.Error())
	}

	if IsRetryable(errors.New("plain")) {
		t.Error("unwrapped errors are not retryable")
	}
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	calls := 0
	if err := RetryWithBackoff(ctx, func() error { calls++; return nil }); err != nil {
		t.Errorf("success should not error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	// A non-retryable failure stops after one attempt.
	sentinel := errors.New("bad payload")
	calls = 0
	if err := RetryWithBackoff(ctx, func() error { calls++; return sentinel }); err != sentinel {
		t.Errorf("err = %v, want %v", err, sentinel)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	// A transient failure is retried until it clears.
	calls = 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		if calls < 2 {
			return Retryable(ErrNetwork)
		}
		return nil
	})
	if err != nil {
		t.Errorf("should recover after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
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
