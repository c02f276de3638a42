package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SOLSTICE_DB_URL", "postgres://localhost/solstice")
	t.Setenv("SOLSTICE_SNAPSHOT_BASE", "http://snapshots.local")
	t.Setenv("SOLSTICE_POINTS_BASE", "http://points.local")
}

func TestFromEnvDefaults(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Port != "8081" {
		t.Fatalf("port = %s", cfg.Port)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Fatalf("timeout = %s", cfg.RequestTimeout)
	}
	if cfg.ReferralParallelism != 8 {
		t.Fatalf("parallelism = %d", cfg.ReferralParallelism)
	}
}

func TestFromEnvRequiresDatabase(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SOLSTICE_DB_URL", "")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected missing database error")
	}
}

func TestFromEnvRejectsBadDuration(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SOLSTICE_REQUEST_TIMEOUT", "soon")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected duration parse error")
	}
}

func TestLoadParamsDefaultsWhenMissing(t *testing.T) {
	params, err := LoadParams("")
	if err != nil {
		t.Fatalf("LoadParams: %v", err)
	}
	if params.PoolA().Sign() <= 0 {
		t.Fatalf("default pool A must be positive")
	}
	if params.Clock().Genesis != params.GenesisTimestamp {
		t.Fatalf("clock genesis mismatch")
	}
}

func TestLoadParamsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.toml")
	body := "GenesisTimestamp = 1600000000\n" +
		"WeeklyPoolA = \"5000000\"\n" +
		"PoolBActivationWeek = 4\n" +
		"PoolBToken = \"0x00112233445566778899aabbccddeeff00112233\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	params, err := LoadParams(path)
	if err != nil {
		t.Fatalf("LoadParams: %v", err)
	}
	if params.GenesisTimestamp != 1600000000 {
		t.Fatalf("genesis = %d", params.GenesisTimestamp)
	}
	if params.PoolA().Int64() != 5_000_000 {
		t.Fatalf("pool A = %s", params.PoolA())
	}
}

func TestLoadParamsRejectsBadPool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.toml")
	if err := os.WriteFile(path, []byte("GenesisTimestamp = 1600000000\nWeeklyPoolA = \"abc\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadParams(path); err == nil {
		t.Fatalf("expected validation error")
	}
}
