package config

import "testing"

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse failed: %s", err)
	}
	if cfg.NumWorkers != DefaultNumWorkers {
		t.Fatalf("expected default num workers %d, got %d", DefaultNumWorkers, cfg.NumWorkers)
	}
	if cfg.BufferCapacity != DefaultBufferCapacity {
		t.Fatalf("expected default buffer capacity %d, got %d", DefaultBufferCapacity, cfg.BufferCapacity)
	}
}

func TestParseOverridesFromArgs(t *testing.T) {
	cfg, err := Parse([]string{"--num-workers=8", "--scheduler-kind=priority_graph", "--status-sender-enabled"})
	if err != nil {
		t.Fatalf("Parse failed: %s", err)
	}
	if cfg.NumWorkers != 8 {
		t.Fatalf("expected 8 workers, got %d", cfg.NumWorkers)
	}
	if cfg.Kind() != "priority_graph" {
		t.Fatalf("expected priority_graph scheduler kind, got %s", cfg.Kind())
	}
	if !cfg.StatusSenderEnabled {
		t.Fatalf("expected status sender enabled")
	}
}

func TestLimitsProjection(t *testing.T) {
	cfg := Default()
	limits := cfg.Limits()
	if limits.MaxBlockCU != cfg.MaxBlockCU {
		t.Fatalf("expected Limits() to project MaxBlockCU, got %d vs %d", limits.MaxBlockCU, cfg.MaxBlockCU)
	}
}
