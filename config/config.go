package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// SysConfig system configuration
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
}

// WebConfig admin api server configuration
type WebConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// DBConfig database configuration
type DBConfig struct {
	Type     string `yaml:"type"` // postgres, bolt, memory
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	MaxConn  int    `yaml:"max_conn"`
	IdleConn int    `yaml:"idle_conn"`
	Debug    bool   `yaml:"debug"`
	// BoltFile is relative to System.Workdir unless absolute.
	BoltFile string `yaml:"bolt_file"`
}

// LogConfig logger configuration
type LogConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

// InventoryConfig tunes the inventory engine and reporting views
type InventoryConfig struct {
	PageSize      int    `yaml:"page_size"`
	MaxPageSize   int    `yaml:"max_page_size"`
	NotifyWorkers int    `yaml:"notify_workers"`
	LowStockSweep string `yaml:"low_stock_sweep"`
	Seed          bool   `yaml:"seed"`
	Node          int64  `yaml:"node"` // snowflake node id for log ids
}

type AppConfig struct {
	System    SysConfig       `yaml:"system"`
	Web       WebConfig       `yaml:"web"`
	Database  DBConfig        `yaml:"database"`
	Logger    LogConfig       `yaml:"logger"`
	Inventory InventoryConfig `yaml:"inventory"`
}

func (c *AppConfig) GetLogDir() string {
	return filepath.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetDataDir() string {
	return filepath.Join(c.System.Workdir, "data")
}

// BoltPath resolves the bbolt database file location.
func (c *AppConfig) BoltPath() string {
	if filepath.IsAbs(c.Database.BoltFile) {
		return c.Database.BoltFile
	}
	return filepath.Join(c.GetDataDir(), c.Database.BoltFile)
}

func (c *AppConfig) InitDirs() error {
	for _, dir := range []string{c.System.Workdir, c.GetLogDir(), c.GetDataDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create dir %s", dir)
		}
	}
	return nil
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "StockLedger",
		Location: "Asia/Jakarta",
		Workdir:  "/var/stockledger",
		Debug:    true,
	},
	Web: WebConfig{
		Host:        "0.0.0.0",
		Port:        3000,
		CORSOrigins: []string{"*"},
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "stockledger",
		User:     "postgres",
		Passwd:   "postgres",
		MaxConn:  100,
		IdleConn: 10,
		BoltFile: "inventory.db",
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: false,
		Filename:   "/var/stockledger/logs/stockledger.log",
	},
	Inventory: InventoryConfig{
		PageSize:      10,
		MaxPageSize:   10000,
		NotifyWorkers: 4,
		LowStockSweep: "@every 10m",
		Seed:          false,
		Node:          1,
	},
}

// LoadConfig reads the yaml file at cfile (if any) on top of the defaults and
// then applies STOCKLEDGER_* environment overrides.
func LoadConfig(cfile string) (*AppConfig, error) {
	cfg := *DefaultAppConfig
	cfg.Web.CORSOrigins = append([]string(nil), DefaultAppConfig.Web.CORSOrigins...)
	if cfile != "" {
		data, err := os.ReadFile(cfile)
		if err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "parse config file")
		}
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) applyEnv(lookup func(string) (string, bool)) {
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = cast.ToInt(v)
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = cast.ToBool(v)
		}
	}

	setString("STOCKLEDGER_SYSTEM_WORKDIR", &c.System.Workdir)
	setString("STOCKLEDGER_SYSTEM_LOCATION", &c.System.Location)
	setBool("STOCKLEDGER_SYSTEM_DEBUG", &c.System.Debug)

	setString("STOCKLEDGER_WEB_HOST", &c.Web.Host)
	setInt("STOCKLEDGER_WEB_PORT", &c.Web.Port)
	if v, ok := lookup("STOCKLEDGER_WEB_CORS_ORIGINS"); ok && v != "" {
		origins := make([]string, 0)
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Web.CORSOrigins = origins
	}

	setString("STOCKLEDGER_DB_TYPE", &c.Database.Type)
	setString("STOCKLEDGER_DB_HOST", &c.Database.Host)
	setInt("STOCKLEDGER_DB_PORT", &c.Database.Port)
	setString("STOCKLEDGER_DB_NAME", &c.Database.Name)
	setString("STOCKLEDGER_DB_USER", &c.Database.User)
	setString("STOCKLEDGER_DB_PWD", &c.Database.Passwd)
	setBool("STOCKLEDGER_DB_DEBUG", &c.Database.Debug)
	setString("STOCKLEDGER_DB_BOLT_FILE", &c.Database.BoltFile)

	setString("STOCKLEDGER_LOGGER_MODE", &c.Logger.Mode)
	setBool("STOCKLEDGER_LOGGER_FILE_ENABLE", &c.Logger.FileEnable)
	setString("STOCKLEDGER_LOGGER_FILENAME", &c.Logger.Filename)

	setInt("STOCKLEDGER_INVENTORY_PAGE_SIZE", &c.Inventory.PageSize)
	setInt("STOCKLEDGER_INVENTORY_MAX_PAGE_SIZE", &c.Inventory.MaxPageSize)
	setInt("STOCKLEDGER_INVENTORY_NOTIFY_WORKERS", &c.Inventory.NotifyWorkers)
	setString("STOCKLEDGER_INVENTORY_LOW_STOCK_SWEEP", &c.Inventory.LowStockSweep)
	setBool("STOCKLEDGER_INVENTORY_SEED", &c.Inventory.Seed)
	if v, ok := lookup("STOCKLEDGER_INVENTORY_NODE"); ok && v != "" {
		c.Inventory.Node = cast.ToInt64(v)
	}
}

func (c *AppConfig) validate() error {
	switch c.Database.Type {
	case "postgres", "bolt", "memory":
	default:
		return errors.Errorf("unsupported database type %q", c.Database.Type)
	}
	if c.Inventory.PageSize <= 0 {
		c.Inventory.PageSize = DefaultAppConfig.Inventory.PageSize
	}
	if c.Inventory.MaxPageSize < c.Inventory.PageSize {
		c.Inventory.MaxPageSize = c.Inventory.PageSize
	}
	if c.Inventory.NotifyWorkers <= 0 {
		c.Inventory.NotifyWorkers = 1
	}
	if c.Inventory.Node < 0 || c.Inventory.Node > 1023 {
		return errors.Errorf("inventory.node must be within 0..1023, got %d", c.Inventory.Node)
	}
	return nil
}
