package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hashledger/consensus"
	"hashledger/logger"

	"github.com/spf13/viper"
)

// Config holds all configuration for the node.
// Tags are used by viper to map ENV variables and config file keys.
type Config struct {
	// RPC
	RPCAddr string `mapstructure:"rpcaddr"`
	RPCPort int    `mapstructure:"rpcport"`

	// Logging
	LogLevel  string `mapstructure:"log_level"` // e.g., "debug", "info", "warn", "error"
	Verbosity int    `mapstructure:"verbosity"` // Alternative to LogLevel, 0-5

	// Mining. Miner adalah penerima reward; MiningTimeout 0 berarti tanpa batas.
	Mining         bool          `mapstructure:"mining"`
	MiningInterval time.Duration `mapstructure:"mining_interval"`
	MiningTimeout  time.Duration `mapstructure:"mining_timeout"`
	Miner          string        `mapstructure:"miner"`
	RewardSender   string        `mapstructure:"reward_sender"`
	RewardAmount   float64       `mapstructure:"reward_amount"`

	// Proof of work
	DifficultyDigit    string `mapstructure:"difficulty_digit"`
	DifficultyRun      int    `mapstructure:"difficulty_run"`
	DifficultyAnchor   string `mapstructure:"difficulty_anchor"` // "suffix" atau "prefix"
	ProofCheckInterval uint64 `mapstructure:"proof_check_interval"`

	// Ledger
	MaxPending int `mapstructure:"max_pending"` // 0 = tanpa batas

	// Response cache
	EnableCache bool          `mapstructure:"enable_cache"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`

	// Archive
	Persist      bool   `mapstructure:"persist"`
	DataDir      string `mapstructure:"datadir"`
	ForceGenesis bool   `mapstructure:"forcegenesis"` // hapus arsip dan mulai dari genesis baru
}

var defaultConfig = Config{
	RPCAddr:            "127.0.0.1",
	RPCPort:            5000,
	LogLevel:           "info",
	Verbosity:          3,
	Mining:             false,
	MiningInterval:     500 * time.Millisecond,
	MiningTimeout:      5 * time.Minute,
	Miner:              "you",
	RewardSender:       "0",
	RewardAmount:       1.0,
	DifficultyDigit:    "0",
	DifficultyRun:      4,
	DifficultyAnchor:   string(consensus.AnchorSuffix),
	ProofCheckInterval: consensus.DefaultCheckInterval,
	MaxPending:         0,
	EnableCache:        true,
	CacheTTL:           5 * time.Minute,
	Persist:            false,
	DataDir:            "./data",
	ForceGenesis:       false,
}

// DefaultConfig is the exported copy of the defaults, used e.g. when setting up CLI flags.
var DefaultConfig = defaultConfig

// SetDefaults mendaftarkan semua key ke v. Tanpa ini, key yang hanya ada di ENV
// tidak ikut dibaca oleh Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig
	v.SetDefault("rpcaddr", d.RPCAddr)
	v.SetDefault("rpcport", d.RPCPort)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("verbosity", d.Verbosity)
	v.SetDefault("mining", d.Mining)
	v.SetDefault("mining_interval", d.MiningInterval)
	v.SetDefault("mining_timeout", d.MiningTimeout)
	v.SetDefault("miner", d.Miner)
	v.SetDefault("reward_sender", d.RewardSender)
	v.SetDefault("reward_amount", d.RewardAmount)
	v.SetDefault("difficulty_digit", d.DifficultyDigit)
	v.SetDefault("difficulty_run", d.DifficultyRun)
	v.SetDefault("difficulty_anchor", d.DifficultyAnchor)
	v.SetDefault("proof_check_interval", d.ProofCheckInterval)
	v.SetDefault("max_pending", d.MaxPending)
	v.SetDefault("enable_cache", d.EnableCache)
	v.SetDefault("cache_ttl", d.CacheTTL)
	v.SetDefault("persist", d.Persist)
	v.SetDefault("datadir", d.DataDir)
	v.SetDefault("forcegenesis", d.ForceGenesis)
}

// LoadConfig loads configuration from the global viper instance (file, environment, flags).
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(viper.GetViper())
}

// LoadConfigFrom starts from DefaultConfig and lets v override it.
func LoadConfigFrom(v *viper.Viper) (*Config, error) {
	currentConfig := DefaultConfig

	if err := v.Unmarshal(&currentConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config from Viper: %v", err)
	}

	logger.Debugf("Effective config: RPC=%s, Mining=%t, Miner='%s', Difficulty=%s/%d/%s, MaxPending=%d, Persist=%t, DataDir='%s', ForceGenesis=%t, LogLevel='%s'",
		currentConfig.RPCListenAddr(), currentConfig.Mining, currentConfig.Miner,
		currentConfig.DifficultyDigit, currentConfig.DifficultyRun, currentConfig.DifficultyAnchor,
		currentConfig.MaxPending, currentConfig.Persist, currentConfig.DataDir, currentConfig.ForceGenesis, currentConfig.LogLevel)

	if err := validate(&currentConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %v", err)
	}
	return &currentConfig, nil
}

func validate(config *Config) error {
	if config.RPCPort <= 0 || config.RPCPort > 65535 {
		return fmt.Errorf("invalid RPC port: %d. Must be between 1 and 65535", config.RPCPort)
	}
	if _, err := config.GetDifficulty(); err != nil {
		return err
	}
	// NaN dan ±Inf akan tersegel di setiap blok hasil mining
	if math.IsNaN(config.RewardAmount) || math.IsInf(config.RewardAmount, 0) {
		return fmt.Errorf("invalid reward_amount: %v. Must be a finite number", config.RewardAmount)
	}

	if config.ProofCheckInterval == 0 {
		logger.Warningf("proof_check_interval is 0, using default: %d", DefaultConfig.ProofCheckInterval)
		config.ProofCheckInterval = DefaultConfig.ProofCheckInterval
	}
	if config.MaxPending < 0 {
		logger.Warningf("max_pending is negative (%d), treating as unbounded", config.MaxPending)
		config.MaxPending = 0
	}
	if config.MiningInterval < 0 {
		logger.Warningf("mining_interval is negative (%v), using default: %v", config.MiningInterval, DefaultConfig.MiningInterval)
		config.MiningInterval = DefaultConfig.MiningInterval
	}
	if config.MiningTimeout < 0 {
		logger.Warningf("mining_timeout is negative (%v), disabling the timeout", config.MiningTimeout)
		config.MiningTimeout = 0
	}
	if config.EnableCache && config.CacheTTL <= 0 {
		logger.Warningf("cache_ttl is invalid (%v), using default: %v", config.CacheTTL, DefaultConfig.CacheTTL)
		config.CacheTTL = DefaultConfig.CacheTTL
	}
	if strings.TrimSpace(config.Miner) == "" {
		logger.Warningf("miner is empty, rewards go to default recipient '%s'", DefaultConfig.Miner)
		config.Miner = DefaultConfig.Miner
	}

	if config.Persist {
		config.DataDir = strings.TrimSpace(config.DataDir)
		if config.DataDir == "" {
			return fmt.Errorf("datadir cannot be empty when persist is enabled")
		}
		if err := os.MkdirAll(config.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory '%s': %v", config.DataDir, err)
		}
	}
	return nil
}

// GetDifficulty mengubah field difficulty_* menjadi consensus.Difficulty yang tervalidasi.
func (c *Config) GetDifficulty() (consensus.Difficulty, error) {
	return consensus.ParseDifficulty(c.DifficultyDigit, c.DifficultyRun, c.DifficultyAnchor)
}

func (c *Config) GetLogLevel() logger.LogLevel {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "trace":
		return logger.DEBUG
	case "info":
		return logger.INFO
	case "warn", "warning":
		return logger.WARNING
	case "error":
		return logger.ERROR
	case "fatal":
		return logger.FATAL
	default:
		logger.Warningf("Unknown log_level '%s', falling back to verbosity %d", c.LogLevel, c.Verbosity)
		switch c.Verbosity {
		case 0, 1:
			return logger.ERROR
		case 2:
			return logger.WARNING
		case 3:
			return logger.INFO
		case 4, 5:
			return logger.DEBUG
		default:
			logger.Warningf("Unknown verbosity level %d, defaulting to INFO", c.Verbosity)
			return logger.INFO
		}
	}
}

// RPCListenAddr adalah host:port untuk server HTTP.
func (c *Config) RPCListenAddr() string {
	return fmt.Sprintf("%s:%d", c.RPCAddr, c.RPCPort)
}

func (c *Config) GetDataSubDir(subdir string) string {
	return filepath.Join(c.DataDir, subdir)
}
