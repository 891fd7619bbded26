package internal

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/tuannm99/novats/internal/engine"
	"github.com/tuannm99/novats/internal/record"
	"github.com/tuannm99/novats/internal/storage"
)

type FieldConfig struct {
	Name    string `mapstructure:"name"`
	Type    string `mapstructure:"type"`
	Default any    `mapstructure:"default"`
}

type TableConfig struct {
	Locked bool          `mapstructure:"locked"`
	Fields []FieldConfig `mapstructure:"fields"`
}

type NovaTsConfig struct {
	AppName string `mapstructure:"app_name"`

	Storage struct {
		Workdir       string `mapstructure:"workdir"`
		Durability    string `mapstructure:"durability"`
		StrictOrder   bool   `mapstructure:"strict_order"`
		MaxOpenTables int    `mapstructure:"max_open_tables"`
	} `mapstructure:"storage"`

	Server struct {
		Addr        string `mapstructure:"addr"`
		Debug       bool   `mapstructure:"debug"`
		MetricsAddr string `mapstructure:"metrics_addr"`
	} `mapstructure:"server"`

	Tables map[string]TableConfig `mapstructure:"tables"`
}

// NewViper returns a viper instance with defaults and NOVATS_* environment
// overrides, e.g. NOVATS_STORAGE_WORKDIR.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("app_name", "novats")
	v.SetDefault("storage.workdir", "./data")
	v.SetDefault("storage.durability", "safe")
	v.SetDefault("storage.strict_order", false)
	v.SetDefault("storage.max_open_tables", 0)
	v.SetDefault("server.addr", "127.0.0.1:8866")
	v.SetDefault("server.debug", false)
	v.SetDefault("server.metrics_addr", "")

	v.SetEnvPrefix("NOVATS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads the YAML file at path. An empty path uses defaults and
// environment only.
func LoadConfig(path string) (*NovaTsConfig, error) {
	v := NewViper()
	if err := ReadFile(v, path); err != nil {
		return nil, err
	}
	return Decode(v)
}

// ReadFile merges the YAML file at path into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Decode unmarshals an already populated viper instance, for callers that
// bind flags first.
func Decode(v *viper.Viper) (*NovaTsConfig, error) {
	var cfg NovaTsConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if _, err := storage.ParseDurability(cfg.Storage.Durability); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Schemas converts the tables section into record schemas.
func (c *NovaTsConfig) Schemas() (map[string]record.Schema, error) {
	out := make(map[string]record.Schema, len(c.Tables))
	for name, tc := range c.Tables {
		fields := make([]record.Field, 0, len(tc.Fields))
		for _, fc := range tc.Fields {
			typ, err := record.ParseFieldType(fc.Type)
			if err != nil {
				return nil, fmt.Errorf("table %s field %s: %w", name, fc.Name, err)
			}
			fields = append(fields, record.Field{Name: fc.Name, Type: typ, Default: fc.Default})
		}
		s, err := record.NewSchema(tc.Locked, fields...)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		out[name] = s
	}
	return out, nil
}

// EngineOptions maps the storage section and table schemas onto database
// options.
func (c *NovaTsConfig) EngineOptions() (engine.Options, error) {
	d, err := storage.ParseDurability(c.Storage.Durability)
	if err != nil {
		return engine.Options{}, err
	}
	schemas, err := c.Schemas()
	if err != nil {
		return engine.Options{}, err
	}
	return engine.Options{
		Durability:    d,
		StrictOrder:   c.Storage.StrictOrder,
		Schemas:       schemas,
		MaxOpenTables: c.Storage.MaxOpenTables,
	}, nil
}
