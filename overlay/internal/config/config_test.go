package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "adrpg.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(writeFile(t, `
pages:
  - url: https://news.example/
  - id: blog
    url: https://blog.example/
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Scan.Interval != 2*time.Second || cfg.Scan.MinSize != 40 || cfg.Scan.Tolerance != 20 {
		t.Errorf("scan defaults = %+v", cfg.Scan)
	}
	if cfg.Battle.BaseDamage != 10 || *cfg.Battle.CritChance != 0.15 || cfg.Battle.StrikeRevert != 150*time.Millisecond {
		t.Errorf("battle defaults = %+v", cfg.Battle)
	}
	if cfg.Relay.BackendURL != DefaultBackendURL {
		t.Errorf("backend = %q", cfg.Relay.BackendURL)
	}
	if cfg.Pages[0].ID != "page-1" || cfg.Pages[1].ID != "blog" {
		t.Errorf("page ids = %q %q", cfg.Pages[0].ID, cfg.Pages[1].ID)
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0].Type != "stdout" {
		t.Errorf("sinks = %+v", cfg.Sinks)
	}
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	t.Setenv("ADRPG_BACKEND_URL", "http://game:8080")
	t.Setenv("ADRPG_SCAN_INTERVAL", "5s")
	t.Setenv("ADRPG_SCAN_EXTRA_SELECTORS", ".promo-box;#house-ad")

	cfg, err := LoadFile(writeFile(t, `
relay:
  backend_url: http://ignored:1
scan:
  interval: 1s
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Relay.BackendURL != "http://game:8080" {
		t.Errorf("backend = %q", cfg.Relay.BackendURL)
	}
	if cfg.Scan.Interval != 5*time.Second {
		t.Errorf("interval = %v", cfg.Scan.Interval)
	}
	if len(cfg.Scan.ExtraSelectors) != 2 || cfg.Scan.ExtraSelectors[1] != "#house-ad" {
		t.Errorf("extra selectors = %v", cfg.Scan.ExtraSelectors)
	}
}

func TestLoad_RelayURLSkipsBackendDefault(t *testing.T) {
	t.Setenv("ADRPG_RELAY_URL", "ws://relay:7000/relay")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Relay.BackendURL != "" || cfg.Relay.URL != "ws://relay:7000/relay" {
		t.Errorf("relay = %+v", cfg.Relay)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	_, err := LoadFile(writeFile(t, `
pages:
  - id: nourl
battle:
  crit_chance: 1.5
sinks:
  - type: journal
  - type: carrier-pigeon
`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"url is required", "crit_chance", "journal needs path", "carrier-pigeon"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadFile_ZeroCritChanceKept(t *testing.T) {
	cfg, err := LoadFile(writeFile(t, `
battle:
  crit_chance: 0
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Battle.CritChance == nil || *cfg.Battle.CritChance != 0 {
		t.Errorf("crit_chance = %v, want 0", cfg.Battle.CritChance)
	}
}
