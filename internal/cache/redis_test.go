package cache

import (
	"context"
	"testing"
	"time"
)

func TestIndexCacheDisabledIsNoop(t *testing.T) {
	c, err := New("", time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if _, ok, err := c.Get(ctx, "index.yaml"); err != nil || ok {
		t.Fatalf("disabled cache should always miss, got ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, "index.yaml", []byte("apiVersion: v1\n")); err != nil {
		t.Fatalf("disabled Set should be a no-op, got %v", err)
	}
	if err := c.Invalidate(ctx, "index.yaml"); err != nil {
		t.Fatalf("disabled Invalidate should be a no-op, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("disabled Close should be a no-op, got %v", err)
	}
}

func TestIndexCacheRejectsInvalidURL(t *testing.T) {
	if _, err := New("not-a-redis-url://::", time.Minute); err == nil {
		t.Fatalf("expected an error for a malformed redis URL")
	}
}
