package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-points-ledger/pkg/mysql"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// 帳本引擎
const (
	EngineMutex = "mutex"
	EngineLMAX  = "lmax"
)

// Journal driver
const (
	JournalNone   = "none"
	JournalFile   = "file"
	JournalSQLite = "sqlite"
	JournalMySQL  = "mysql"
)

// DefaultPath 未指定 --config 時讀取的檔案
const DefaultPath = "config/config.yaml"

type Config struct {
	Env     string        `yaml:"env" toml:"env"`
	HTTP    HTTPConfig    `yaml:"http" toml:"http"`
	GRPC    GRPCConfig    `yaml:"grpc" toml:"grpc"`
	Ledger  LedgerConfig  `yaml:"ledger" toml:"ledger"`
	Journal JournalConfig `yaml:"journal" toml:"journal"`
	MySQL   mysql.Config  `yaml:"mysql" toml:"mysql"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

type HTTPConfig struct {
	Address         string        `yaml:"address" toml:"address"`
	Timeout         time.Duration `yaml:"timeout" toml:"timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" toml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

type GRPCConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Address string `yaml:"address" toml:"address"`
}

// LedgerConfig
//
//	Engine: mutex (Level 1) 或 lmax (Level 2)
//	QueueSize: lmax 輸送帶容量
//	IdempotencyTTL: RefID 保留時間
type LedgerConfig struct {
	Engine         string        `yaml:"engine" toml:"engine"`
	QueueSize      int           `yaml:"queue_size" toml:"queue_size"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl" toml:"idempotency_ttl"`
}

// JournalConfig
//
//	Driver: none / file / sqlite / mysql
//	Path: file 與 sqlite 的檔案路徑
//	Sync: file driver 每筆寫入後 fsync
type JournalConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"`
	Sync   *bool  `yaml:"sync" toml:"sync"`
}

// SyncEachWrite 未設定時預設為 true
func (j JournalConfig) SyncEachWrite() bool {
	return j.Sync == nil || *j.Sync
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
}

// Load 依副檔名讀取 YAML (.yaml/.yml) 或 TOML (.toml) 設定檔，並補上預設值
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("parse toml config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 不讀檔時使用的設定
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	if c.Env == "" {
		c.Env = EnvLocal
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8000"
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = 4 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.GRPC.Address == "" {
		c.GRPC.Address = ":50051"
	}
	if c.Ledger.Engine == "" {
		c.Ledger.Engine = EngineMutex
	}
	if c.Ledger.QueueSize == 0 {
		c.Ledger.QueueSize = 1000
	}
	if c.Ledger.IdempotencyTTL == 0 {
		c.Ledger.IdempotencyTTL = 10 * time.Minute
	}
	if c.Journal.Driver == "" {
		c.Journal.Driver = JournalNone
	}
	if c.Journal.Path == "" {
		switch c.Journal.Driver {
		case JournalFile:
			c.Journal.Path = "data/events.log"
		case JournalSQLite:
			c.Journal.Path = "data/ledger.db"
		}
	}
	if c.Journal.Driver == JournalMySQL {
		c.MySQL = c.MySQL.WithDefaults()
	}
}

// Validate 檢查列舉欄位
func (c *Config) Validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("invalid env %q", c.Env)
	}
	switch c.Ledger.Engine {
	case EngineMutex, EngineLMAX:
	default:
		return fmt.Errorf("invalid ledger engine %q", c.Ledger.Engine)
	}
	if c.Ledger.QueueSize < 0 {
		return fmt.Errorf("invalid ledger queue_size %d", c.Ledger.QueueSize)
	}
	switch c.Journal.Driver {
	case JournalNone, JournalFile, JournalSQLite:
	case JournalMySQL:
		if c.MySQL.DBName == "" {
			return fmt.Errorf("journal driver mysql requires mysql.db_name")
		}
	default:
		return fmt.Errorf("invalid journal driver %q", c.Journal.Driver)
	}
	return nil
}
