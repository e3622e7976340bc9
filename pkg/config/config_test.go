package config

import (
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Scanner.BatchSize != 25 {
		t.Fatalf("batch size: want 25 got %d", c.Scanner.BatchSize)
	}
	if c.Scanner.RevalidateAfter != 4*time.Hour {
		t.Fatalf("revalidate after: want 4h got %s", c.Scanner.RevalidateAfter)
	}
	if c.Scanner.SymbolTTL != 24*time.Hour {
		t.Fatalf("symbol ttl: want 24h got %s", c.Scanner.SymbolTTL)
	}
	if c.Providers.MarketData.Concurrency != 8 || c.Providers.Enrichment.Concurrency != 5 {
		t.Fatalf("provider concurrency: got %d/%d", c.Providers.MarketData.Concurrency, c.Providers.Enrichment.Concurrency)
	}
	if c.Scanner.Benchmark != "SPY" {
		t.Fatalf("benchmark: got %q", c.Scanner.Benchmark)
	}
}

func TestParseKeepsExplicitFalse(t *testing.T) {
	c, err := Parse([]byte("environment: test\nredis:\n  enabled: false\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Redis.Enabled {
		t.Fatalf("redis.enabled=false overwritten by default")
	}
}

func TestValidateRejectsInvertedClocks(t *testing.T) {
	_, err := Parse([]byte("environment: test\nscanner:\n  revalidate_after: 48h\n  symbol_ttl: 24h\n"))
	if err == nil {
		t.Fatalf("expected error when staleness threshold exceeds ttl")
	}
}

func TestValidateBatchBounds(t *testing.T) {
	if _, err := Parse([]byte("environment: test\nscanner:\n  batch_size: 500\n")); err == nil {
		t.Fatalf("expected batch_size > 100 to be rejected")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QSCAN_REDIS_HOST", "redis.internal")
	t.Setenv("QSCAN_SYMBOLS", "aapl,MSFT")

	c := Default()
	c.Environment = "test"
	if err := c.applyEnv(); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if c.Redis.Host != "redis.internal" {
		t.Fatalf("redis host: got %q", c.Redis.Host)
	}
	if len(c.Providers.Universe.Symbols) != 2 || c.Providers.Universe.Symbols[1] != "MSFT" {
		t.Fatalf("symbols: got %v", c.Providers.Universe.Symbols)
	}
}
