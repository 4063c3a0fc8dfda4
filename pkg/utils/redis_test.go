package utils

import (
	"context"
	"testing"
	"time"
)

func TestRedisHelpers_RejectBadInput(t *testing.T) {
	ctx := context.Background()

	if _, err := MarkOnce(ctx, nil, "k", time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := MarkOnce(ctx, nil, "", time.Second); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if err := ClearMark(ctx, nil, "k"); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, _, err := CacheGet(ctx, nil, "k"); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if err := CacheSet(ctx, nil, "k", "v", time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestRedisConfig_Defaults(t *testing.T) {
	cfg := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if cfg.PoolSize <= 0 || cfg.DialTimeout <= 0 || cfg.PingTimeout <= 0 {
		t.Fatalf("expected defaults to be applied, got %+v", cfg)
	}
}
