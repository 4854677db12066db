// Package config loads the settings of the wbcache command from a HuJSON
// file, a .env file, and WBCACHE_* environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tailscale/hujson"
)

// The backends that the command can put behind a cache.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// EnvPrefix is the prefix of the environment variables that override the
// configuration file.
const EnvPrefix = "WBCACHE_"

var (
	errConfigRead    = errors.New("cannot read config file")
	errConfigInvalid = errors.New("invalid config")
)

// Config holds the settings of the wbcache command.
type Config struct {
	NumLines     int    `json:"num_lines"`
	EntrySize    int    `json:"entry_size"`
	IDSize       int    `json:"id_size"`
	MaxBytes     uint64 `json:"max_bytes"`
	Backend      string `json:"backend"`
	DBPath       string `json:"db_path"`
	Dir          string `json:"dir"`
	MonitorPort  int    `json:"monitor_port"`
	RecordEvents bool   `json:"record_events"`
	RecordPath   string `json:"record_path"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		NumLines:  5,
		EntrySize: 4,
		IDSize:    4,
		MaxBytes:  1 << 30,
		Backend:   BackendMemory,
		DBPath:    "wbcache.sqlite3",
		Dir:       "wbcache_entries",
	}
}

// Load builds a configuration. It starts from Default, applies the HuJSON
// file at path if path is not empty, then the variables in envFile if
// envFile is not empty, and finally the process environment. The process
// environment wins over the .env file.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		fileCfg, err := LoadFile(path, cfg)
		if err != nil {
			return Config{}, err
		}

		cfg = fileCfg
	}

	env := map[string]string{}

	if envFile != "" {
		fileEnv, err := godotenv.Read(envFile)
		if err != nil {
			return Config{}, fmt.Errorf("%w %s: %w", errConfigRead, envFile, err)
		}

		env = fileEnv
	}

	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}

	cfg, err := ApplyEnv(cfg, env)
	if err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

// LoadFile reads a HuJSON file on top of base. Fields missing from the file
// keep the values of base.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w %s: %w", errConfigRead, path, err)
	}

	cfg, err := Parse(data, base)
	if err != nil {
		return Config{}, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}

	return cfg, nil
}

// Parse decodes HuJSON data on top of base.
func Parse(data []byte, base Config) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	cfg := base
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides cfg with the WBCACHE_* entries of env.
func ApplyEnv(cfg Config, env map[string]string) (Config, error) {
	var err error

	for key, value := range env {
		name, ok := strings.CutPrefix(key, EnvPrefix)
		if !ok {
			continue
		}

		switch name {
		case "NUM_LINES":
			cfg.NumLines, err = strconv.Atoi(value)
		case "ENTRY_SIZE":
			cfg.EntrySize, err = strconv.Atoi(value)
		case "ID_SIZE":
			cfg.IDSize, err = strconv.Atoi(value)
		case "MAX_BYTES":
			cfg.MaxBytes, err = strconv.ParseUint(value, 10, 64)
		case "BACKEND":
			cfg.Backend = value
		case "DB_PATH":
			cfg.DBPath = value
		case "DIR":
			cfg.Dir = value
		case "MONITOR_PORT":
			cfg.MonitorPort, err = strconv.Atoi(value)
		case "RECORD_EVENTS":
			cfg.RecordEvents, err = strconv.ParseBool(value)
		case "RECORD_PATH":
			cfg.RecordPath = value
		}

		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %w", errConfigInvalid, key, err)
		}
	}

	return cfg, nil
}

// Validate checks that the configuration can build a cache.
func (c Config) Validate() error {
	switch {
	case c.NumLines <= 0:
		return fmt.Errorf("%w: num_lines must be positive", errConfigInvalid)
	case c.EntrySize <= 0:
		return fmt.Errorf("%w: entry_size must be positive", errConfigInvalid)
	case c.IDSize <= 0:
		return fmt.Errorf("%w: id_size must be positive", errConfigInvalid)
	case c.MonitorPort < 0:
		return fmt.Errorf("%w: monitor_port must not be negative", errConfigInvalid)
	}

	switch c.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("%w: db_path is required by the sqlite backend",
				errConfigInvalid)
		}
	case BackendFile:
		if c.Dir == "" {
			return fmt.Errorf("%w: dir is required by the file backend",
				errConfigInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", errConfigInvalid, c.Backend)
	}

	return nil
}

// Format returns the configuration as indented JSON.
func (c Config) Format() (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}

	return string(data), nil
}
