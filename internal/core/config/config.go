package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/mohammed-shakir/rasterman/internal/grid"
)

type MetaCacheCfg struct {
	Size      int           `yaml:"size"`
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
	OpTimeout time.Duration `yaml:"op_timeout"`
}

type EventsCfg struct {
	Enabled bool   `yaml:"enabled"`
	Brokers string `yaml:"brokers"`
	Topic   string `yaml:"topic"`
	GroupID string `yaml:"group_id"`
}

type MetricsCfg struct {
	Path     string `yaml:"path"`
	Textfile string `yaml:"textfile"`
}

type Config struct {
	Addr         string       `yaml:"addr"`
	DataRoot     string       `yaml:"data_root"`
	LogLevel     string       `yaml:"log_level"`
	LogConsole   bool         `yaml:"log_console"`
	NoData       float64      `yaml:"nodata"`
	DataType     string       `yaml:"data_type"`
	RowCacheSize int          `yaml:"row_cache_size"`
	MetaCache    MetaCacheCfg `yaml:"metacache"`
	Events       EventsCfg    `yaml:"events"`
	Metrics      MetricsCfg   `yaml:"metrics"`
}

func defaults() Config {
	return Config{
		Addr:         ":8090",
		LogLevel:     "info",
		NoData:       grid.DefaultNoData,
		DataType:     grid.Float32.String(),
		RowCacheSize: 64,
		MetaCache: MetaCacheCfg{
			Size:      1024,
			TTL:       10 * time.Minute,
			OpTimeout: 250 * time.Millisecond,
		},
		Events: EventsCfg{
			Brokers: "localhost:9092",
			Topic:   "raster-written",
			GroupID: "rasterman-metacache",
		},
		Metrics: MetricsCfg{Path: "/metrics"},
	}
}

// FromEnv returns the defaults overridden by environment variables.
func FromEnv() Config {
	return applyEnv(defaults())
}

// Load reads the YAML file named by RASTERMAN_CONFIG, if any, over the
// defaults and then applies the environment on top.
func Load() (Config, error) {
	cfg := defaults()
	if path := os.Getenv("RASTERMAN_CONFIG"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	}
	cfg = applyEnv(cfg)
	if _, err := cfg.Defaults(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(c Config) Config {
	c.Addr = getenv("ADDR", c.Addr)
	c.DataRoot = getenv("DATA_ROOT", c.DataRoot)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.LogConsole = getbool("LOG_CONSOLE", c.LogConsole)
	c.NoData = getfloat("RASTER_NODATA", c.NoData)
	c.DataType = getenv("RASTER_DATA_TYPE", c.DataType)
	c.RowCacheSize = getint("ROW_CACHE_SIZE", c.RowCacheSize)

	c.MetaCache.Size = getint("METACACHE_SIZE", c.MetaCache.Size)
	c.MetaCache.RedisAddr = getenv("REDIS_ADDR", c.MetaCache.RedisAddr)
	c.MetaCache.TTL = getduration("METACACHE_TTL", c.MetaCache.TTL)
	c.MetaCache.OpTimeout = getduration("CACHE_OP_TIMEOUT", c.MetaCache.OpTimeout)

	c.Events.Enabled = getbool("EVENTS_ENABLED", c.Events.Enabled)
	c.Events.Brokers = getenv("KAFKA_BROKERS", c.Events.Brokers)
	c.Events.Topic = getenv("KAFKA_TOPIC", c.Events.Topic)
	c.Events.GroupID = getenv("KAFKA_GROUP_ID", c.Events.GroupID)

	c.Metrics.Path = getenv("METRICS_PATH", c.Metrics.Path)
	c.Metrics.Textfile = getenv("METRICS_TEXTFILE", c.Metrics.Textfile)
	return c
}

// Defaults converts the raster defaults to the form operations take.
func (c Config) Defaults() (grid.Defaults, error) {
	dt, err := grid.ParseDataType(c.DataType)
	if err != nil || dt == grid.Unknown {
		return grid.Defaults{}, fmt.Errorf("config data_type: unknown type %q", c.DataType)
	}
	return grid.Defaults{NoData: c.NoData, Driver: grid.DefaultDriver, DataType: dt}, nil
}

// BrokerList splits the comma separated broker list.
func (e EventsCfg) BrokerList() []string {
	var out []string
	for b := range strings.SplitSeq(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
