package utils

import (
	"testing"
	"time"
)

func TestPoolConfigDefaults(t *testing.T) {
	got := PostgresPoolConfig{}.withDefaults()
	if got.MaxOpenConns != 20 {
		t.Fatalf("MaxOpenConns = %d, want 20", got.MaxOpenConns)
	}
	if got.MaxIdleConns != got.MaxOpenConns {
		t.Fatalf("MaxIdleConns = %d, want %d", got.MaxIdleConns, got.MaxOpenConns)
	}
	if got.ConnMaxLifetime != 30*time.Minute {
		t.Fatalf("ConnMaxLifetime = %v", got.ConnMaxLifetime)
	}
	if got.PingTimeout != 5*time.Second {
		t.Fatalf("PingTimeout = %v", got.PingTimeout)
	}
}

func TestPoolConfigIdleClampedToOpen(t *testing.T) {
	got := PostgresPoolConfig{MaxOpenConns: 4, MaxIdleConns: 50}.withDefaults()
	if got.MaxIdleConns != 4 {
		t.Fatalf("MaxIdleConns = %d, want clamp to 4", got.MaxIdleConns)
	}
}

func TestPoolConfigKeepsExplicitValues(t *testing.T) {
	in := PostgresPoolConfig{
		MaxOpenConns:    8,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute,
		PingTimeout:     time.Second,
	}
	if got := in.withDefaults(); got != in {
		t.Fatalf("withDefaults() = %+v, want unchanged %+v", got, in)
	}
}
