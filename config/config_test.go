package config

import (
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hashledger/consensus"
	"hashledger/logger"

	"github.com/spf13/viper"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadConfigFrom(viper.New())
	if err != nil {
		t.Fatalf("LoadConfigFrom: %v", err)
	}
	if cfg.RPCListenAddr() != "127.0.0.1:5000" {
		t.Fatalf("listen addr %s", cfg.RPCListenAddr())
	}
	if cfg.Miner != "you" || cfg.RewardSender != "0" || cfg.RewardAmount != 1 {
		t.Fatalf("reward config = %q %q %v", cfg.Miner, cfg.RewardSender, cfg.RewardAmount)
	}
	d, err := cfg.GetDifficulty()
	if err != nil {
		t.Fatal(err)
	}
	if d != consensus.DefaultDifficulty {
		t.Fatalf("difficulty = %v, want %v", d, consensus.DefaultDifficulty)
	}
	if cfg.GetLogLevel() != logger.INFO {
		t.Fatal("default log level is not INFO")
	}
}

func TestYAMLOverrides(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	yaml := `
rpcport: 6001
mining: true
mining_interval: 2s
difficulty_digit: "7"
difficulty_run: 3
difficulty_anchor: prefix
max_pending: 50
reward_amount: 2.5
`
	if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfigFrom(v)
	if err != nil {
		t.Fatalf("LoadConfigFrom: %v", err)
	}
	if cfg.RPCPort != 6001 || !cfg.Mining || cfg.MiningInterval != 2*time.Second || cfg.MaxPending != 50 || cfg.RewardAmount != 2.5 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	d, err := cfg.GetDifficulty()
	if err != nil {
		t.Fatal(err)
	}
	if d.Digit != '7' || d.Run != 3 || d.Anchor != consensus.AnchorPrefix {
		t.Fatalf("difficulty = %+v", d)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("HASHLEDGER_RPCPORT", "7100")
	t.Setenv("HASHLEDGER_MINING_TIMEOUT", "3s")
	t.Setenv("HASHLEDGER_MINER", "alice")

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("HASHLEDGER")
	v.AutomaticEnv()

	cfg, err := LoadConfigFrom(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RPCPort != 7100 || cfg.MiningTimeout != 3*time.Second || cfg.Miner != "alice" {
		t.Fatalf("env not applied: port %d timeout %v miner %q", cfg.RPCPort, cfg.MiningTimeout, cfg.Miner)
	}
}

func TestValidationFallbacks(t *testing.T) {
	v := viper.New()
	v.Set("proof_check_interval", 0)
	v.Set("max_pending", -3)
	v.Set("cache_ttl", "-1s")
	v.Set("miner", "  ")
	cfg, err := LoadConfigFrom(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ProofCheckInterval != consensus.DefaultCheckInterval || cfg.MaxPending != 0 || cfg.CacheTTL != DefaultConfig.CacheTTL || cfg.Miner != "you" {
		t.Fatalf("fallbacks not applied: %+v", cfg)
	}
}

func TestValidationErrors(t *testing.T) {
	tests := map[string]map[string]interface{}{
		"port":          {"rpcport": 70000},
		"digit":         {"difficulty_digit": "x"},
		"anchor":        {"difficulty_anchor": "middle"},
		"zero prefix":   {"difficulty_anchor": "prefix"},
		"zero run 20":   {"difficulty_run": 20},
		"empty datadir": {"persist": true, "datadir": " "},
		"nan reward":    {"reward_amount": "NaN"},
		"inf reward":    {"reward_amount": math.Inf(1)},
		"-inf reward":   {"reward_amount": "-Inf"},
	}
	for name, values := range tests {
		t.Run(name, func(t *testing.T) {
			v := viper.New()
			for k, val := range values {
				v.Set(k, val)
			}
			if _, err := LoadConfigFrom(v); err == nil {
				t.Fatal("invalid config accepted")
			}
		})
	}
}

func TestPersistCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "node")
	v := viper.New()
	v.Set("persist", true)
	v.Set("datadir", dir)
	cfg, err := LoadConfigFrom(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.GetDataSubDir("chaindata") != filepath.Join(dir, "chaindata") {
		t.Fatalf("subdir = %s", cfg.GetDataSubDir("chaindata"))
	}
}

func TestGetLogLevelVerbosityFallback(t *testing.T) {
	cfg := DefaultConfig
	cfg.LogLevel = "loud"
	cfg.Verbosity = 5
	if cfg.GetLogLevel() != logger.DEBUG {
		t.Fatal("verbosity 5 should map to DEBUG")
	}
}
