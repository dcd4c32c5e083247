package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8480 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8480)
	}
	if !cfg.API.Metrics {
		t.Error("API.Metrics should be true by default")
	}
	if cfg.Denom.LedgerDecimals != 6 || cfg.Denom.ReserveDecimals != 6 {
		t.Errorf("Denom = %+v, want 6/6", cfg.Denom)
	}
	if cfg.Credit.PeriodDays != 90 {
		t.Errorf("Credit.PeriodDays = %d, want 90", cfg.Credit.PeriodDays)
	}
	if cfg.Credit.GraceDays != 30 {
		t.Errorf("Credit.GraceDays = %d, want 30", cfg.Credit.GraceDays)
	}
	if cfg.Reserve.TargetRTD != 0.20 {
		t.Errorf("Reserve.TargetRTD = %f, want 0.20", cfg.Reserve.TargetRTD)
	}
	if cfg.Fees.TargetRatePPM != 0 {
		t.Errorf("Fees.TargetRatePPM = %d, want 0 (opt-in)", cfg.Fees.TargetRatePPM)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.API.Port != 8480 {
		t.Errorf("API.Port = %d, want default 8480", cfg.API.Port)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[api]
port = 9000

[fees]
target_rate_ppm = 50000
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.Fees.TargetRatePPM != 50_000 {
		t.Errorf("Fees.TargetRatePPM = %d, want 50000", cfg.Fees.TargetRatePPM)
	}
	// Untouched sections keep defaults.
	if cfg.Credit.PeriodDays != 90 {
		t.Errorf("Credit.PeriodDays = %d, want 90", cfg.Credit.PeriodDays)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad port", "[api]\nport = -1\n"},
		{"bad period", "[credit]\nperiod_days = 0\n"},
		{"bad rtd", "[reserve]\ntarget_rtd = 1.5\n"},
		{"bad fee rate", "[fees]\ntarget_rate_ppm = 2000000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.data), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() error = nil, want validation error")
			}
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg := DefaultConfig()
	cfg.API.Port = 9999
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.API.Port != 9999 {
		t.Errorf("API.Port = %d after reload, want 9999", got.API.Port)
	}
}

func TestHome_EnvOverride(t *testing.T) {
	t.Setenv("CREDITON_HOME", "/tmp/crediton-test")
	if got := Home(); got != "/tmp/crediton-test" {
		t.Errorf("Home() = %q, want /tmp/crediton-test", got)
	}
}
