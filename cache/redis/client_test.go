package redis

import (
	"context"
	"testing"
	"time"
)

func TestClientCacheOps(t *testing.T) {
	client, server := miniCache(t)
	ctx := context.Background()

	if err := client.Set(ctx, "k1", "v1", 2*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, err := client.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "v1" {
		t.Fatalf("unexpected value: %s", val)
	}

	server.FastForward(3 * time.Second)
	if _, err := client.Get(ctx, "k1"); !IsNil(err) {
		t.Fatalf("expected expired key, got %v", err)
	}
}

func TestClientHashWithTTL(t *testing.T) {
	client, server := miniCache(t)
	ctx := context.Background()

	if err := client.HSetWithTTL(ctx, "h1", time.Second, map[string]any{"f1": "v1", "f2": "v2"}); err != nil {
		t.Fatalf("hset: %v", err)
	}
	all, err := client.HGetAll(ctx, "h1")
	if err != nil {
		t.Fatalf("hgetall: %v", err)
	}
	if all["f1"] != "v1" || all["f2"] != "v2" {
		t.Fatalf("unexpected hgetall value: %v", all)
	}
	if ttl := server.TTL("h1"); ttl != time.Second {
		t.Fatalf("unexpected ttl: %v", ttl)
	}

	if err := client.Del(ctx, "h1"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if err := client.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Host: "cache.internal"}.WithDefaults()
	if cfg.Addr() != "cache.internal:6379" {
		t.Fatalf("unexpected addr: %s", cfg.Addr())
	}
	if cfg.TenantTTL != time.Minute || cfg.KeyPrefix != "tenancy" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	opts := Config{Host: "::1", Port: 6380, DB: 2}.options()
	if opts.Addr != "[::1]:6380" || opts.DB != 2 || opts.DialTimeout != 5*time.Second {
		t.Fatalf("unexpected options: %+v", opts)
	}
}
