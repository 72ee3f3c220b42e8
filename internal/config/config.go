// internal/config/config.go
package conf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/kweber84/erpimport/internal/sources/file"
	"github.com/kweber84/erpimport/internal/sources/storeapi"
)

// DBConfig selects the database. An empty DSN with the sqlite driver
// means "sqlite file in the app data dir".
type DBConfig struct {
	Driver string `json:"driver"` // sqlite, postgres, mysql
	DSN    string `json:"dsn"`
}

// SupplierSource binds a supplier code to a connector and its raw
// connector-specific config section.
type SupplierSource struct {
	Source     string          `json:"source"`      // registered connector name: file, api
	SourceType string          `json:"source_type"` // import source type code, defaults to Source
	Config     json.RawMessage `json:"config"`
}

// Config is the main application config.
type Config struct {
	DB           DBConfig                  `json:"db"`
	Organization string                    `json:"organization"` // org code records are normalized for
	WatchCron    string                    `json:"watch_cron"`   // cron spec for watch mode
	Suppliers    map[string]SupplierSource `json:"suppliers"`    // supplier code -> connector
}

func LoadOrCreate(path string) (*Config, bool, error) {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := defaultConfig()
			if err := Save(path, cfg); err != nil {
				return nil, false, fmt.Errorf("write default config: %w", err)
			}
			return cfg, true, nil
		}
		return nil, false, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, false, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Suppliers == nil {
		cfg.Suppliers = map[string]SupplierSource{}
	}
	cfg.applyEnv()
	return &cfg, false, nil
}

// defaultConfig carries one example entry per connector so a fresh
// install shows the expected shape.
func defaultConfig() *Config {
	fileCfg, _ := json.Marshal(file.Config{
		DataDir:         "./data/KOMATSU",
		Pattern:         "*.xlsx",
		RequiredColumns: []string{"Material", "Description", "Price"},
		ReferenceColumn: "Material",
	})
	apiCfg, _ := json.Marshal(storeapi.Config{
		BaseURL:        "https://shop.example.com",
		AccessKey:      "SWSC...",
		Username:       "import@example.com",
		Password:       "changeme",
		PageSize:       100,
		ThrottleMs:     250,
		ReferenceField: "productNumber",
	})

	return &Config{
		DB:           DBConfig{Driver: "sqlite"},
		Organization: "MAIN",
		WatchCron:    "0 3 * * *",
		Suppliers: map[string]SupplierSource{
			"KOMATSU":   {Source: "file", Config: fileCfg},
			"ELSAESSER": {Source: "api", Config: apiCfg},
		},
	}
}

// applyEnv lets deployment override the database without editing the
// config file. A .env next to the binary is honored if present.
func (c *Config) applyEnv() {
	_ = godotenv.Load()
	if v := os.Getenv("ERPIMPORT_DB_DRIVER"); v != "" {
		c.DB.Driver = v
	}
	if v := os.Getenv("ERPIMPORT_DB_DSN"); v != "" {
		c.DB.DSN = v
	}
}

func Save(path string, cfg *Config) error {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

// Supplier returns the connector binding for a supplier code.
func (c *Config) Supplier(code string) (SupplierSource, error) {
	s, ok := c.Suppliers[code]
	if !ok {
		return SupplierSource{}, fmt.Errorf("supplier %q not in config", code)
	}
	return s, nil
}

// SourceTypeCode returns the import source type code for the binding.
func (s SupplierSource) SourceTypeCode() string {
	if s.SourceType != "" {
		return s.SourceType
	}
	return s.Source
}
