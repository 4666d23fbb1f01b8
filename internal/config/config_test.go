package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
)

func TestLoadSimulateMergesFlagsAndEnv(t *testing.T) {
	t.Setenv("FARM_LOCKUP", "1h")

	flags := pflag.NewFlagSet("simulate", pflag.ContinueOnError)
	flags.String("scenario", "", "")
	flags.String("out", "./data/journal.jsonl", "")
	flags.String("rewards-duration", "", "")
	flags.Uint64("fee-bps", 0, "")
	if err := flags.Parse([]string{"--scenario", "week.yaml", "--rewards-duration", "604800"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadSimulate("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scenario != "week.yaml" || cfg.Out != "./data/journal.jsonl" {
		t.Fatalf("unexpected paths %+v", cfg)
	}
	if cfg.Overrides.RewardsDuration != 604800 || cfg.Overrides.Lockup != 3600 {
		t.Fatalf("unexpected overrides %+v", cfg.Overrides)
	}
	if cfg.Overrides.FeeBps != nil {
		t.Fatalf("fee override should be unset, got %d", *cfg.Overrides.FeeBps)
	}
}

func TestLoadQuoteReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "farm.yaml")
	body := `rpc: http://localhost:8545
fee-bps: 0
route:
  - "0x1000000000000000000000000000000000000001>0x5000000000000000000000000000000000000005"
  - "0x3000000000000000000000000000000000000003>0x1000000000000000000000000000000000000001>0x5000000000000000000000000000000000000005"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadQuote(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "http://localhost:8545" || cfg.FeeBps != 0 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if len(cfg.Routes) != 2 {
		t.Fatalf("expected 2 routes, got %v", cfg.Routes)
	}
	if cfg.MaxRetries != 5 || cfg.RetryBackoff != 500*time.Millisecond {
		t.Fatalf("unexpected retry defaults %+v", cfg)
	}
}

func TestLoadServeDefaultsListen(t *testing.T) {
	cfg, err := LoadServe("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":8080" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestParseRoute(t *testing.T) {
	path, err := ParseRoute("0x3000000000000000000000000000000000000003 > 0x5000000000000000000000000000000000000005")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []common.Address{
		common.HexToAddress("0x3000000000000000000000000000000000000003"),
		common.HexToAddress("0x5000000000000000000000000000000000000005"),
	}
	if len(path) != 2 || path[0] != want[0] || path[1] != want[1] {
		t.Fatalf("unexpected path %v", path)
	}
	if _, err := ParseRoute("0x1>nope"); err == nil {
		t.Fatalf("expected invalid address error")
	}
	if _, err := ParseRoute(" "); err == nil {
		t.Fatalf("expected empty route error")
	}
}

func TestParseSeconds(t *testing.T) {
	cases := map[string]uint64{
		"":      0,
		"86400": 86400,
		"168h":  604800,
		"1m30s": 90,
	}
	for in, want := range cases {
		got, err := ParseSeconds(in)
		if err != nil {
			t.Fatalf("ParseSeconds(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseSeconds(%q) = %d, want %d", in, got, want)
		}
	}
	if _, err := ParseSeconds("-1h"); err == nil {
		t.Fatalf("expected negative duration error")
	}
}
