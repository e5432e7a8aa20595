package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Duration is a time.Duration that reads and writes Go duration strings
// ("30s", "35m"). Bare numbers are taken as seconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var secs float64
		if err := json.Unmarshal(data, &secs); err != nil {
			return fmt.Errorf("duration must be a string or number: %s", data)
		}
		d.Duration = time.Duration(secs * float64(time.Second))
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	DeviceName    string `json:"device_name"`
	DeviceID      string `json:"device_id"`
	BaseURL       string `json:"base_url"`
	DefaultScreen string `json:"default_screen"`
	EventBuffer   int    `json:"event_buffer"`
	Timeouts      struct {
		Request       Duration `json:"request"`
		LongPoll      Duration `json:"long_poll"`
		Settle        Duration `json:"settle"`
		StreamRestart Duration `json:"stream_restart"`
	} `json:"timeouts"`
	Backoff struct {
		Initial    Duration `json:"initial"`
		Multiplier float64  `json:"multiplier"`
		Max        Duration `json:"max"`
	} `json:"backoff"`
	HTTP struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
	} `json:"http"`
	Telegram struct {
		Token        string  `json:"token"`
		AllowedChats []int64 `json:"allowed_chats"`
	} `json:"telegram"`
	Metrics struct {
		Namespace string `json:"namespace"`
	} `json:"metrics"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		DataDir:     filepath.Join(os.Getenv("HOME"), ".loungeremote"),
		LogLevel:    "info",
		DeviceName:  "loungectl",
		BaseURL:     "https://www.youtube.com",
		EventBuffer: 256,
	}
	cfg.Timeouts.Request = Duration{30 * time.Second}
	cfg.Timeouts.LongPoll = Duration{35 * time.Minute}
	cfg.Timeouts.Settle = Duration{500 * time.Millisecond}
	cfg.Timeouts.StreamRestart = Duration{time.Second}
	cfg.Backoff.Initial = Duration{5 * time.Second}
	cfg.Backoff.Multiplier = 2
	cfg.Backoff.Max = Duration{2 * time.Minute}
	cfg.HTTP.Listen = "127.0.0.1:8787"
	cfg.Metrics.Namespace = "lounge"
	return cfg
}

// Load reads path, writing defaults on first use, then applies .env files and
// environment overrides. A missing device id is generated and persisted so
// the screen keeps recognising this controller.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if cfg.DeviceID == "" {
			cfg.DeviceID = uuid.NewString()
			if err := Save(path, cfg); err != nil {
				return nil, err
			}
		}
	} else if os.IsNotExist(err) {
		cfg.DeviceID = uuid.NewString()
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Existing environment wins over .env files.
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))
	_ = godotenv.Load()

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LOUNGE_DEVICE_NAME"); v != "" {
		cfg.DeviceName = v
	}
	if v := os.Getenv("LOUNGE_SCREEN"); v != "" {
		cfg.DefaultScreen = v
	}
	if v := os.Getenv("LOUNGE_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("LOUNGE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOUNGE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_ALLOWED_CHATS"); v != "" {
		var chats []int64
		for _, s := range strings.Split(v, ",") {
			if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				chats = append(chats, id)
			}
		}
		cfg.Telegram.AllowedChats = chats
	}
}

// Save writes cfg to path atomically.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeAtomic(path, append(data, '\n'))
}

func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg to its generic JSON form.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListValues flattens cfg to dot-separated keys, masking secrets if asked.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

func readRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

// GetValue reads one dot-separated key from the file at path.
func GetValue(path, key string) (any, error) {
	m, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	v, ok := Flatten(m)[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue sets one dot-separated key in the file at path. The value is
// parsed as JSON when possible (numbers, booleans, arrays) and stored as a
// string otherwise.
func SetValue(path, key, value string) error {
	m, err := readRaw(path)
	if err != nil {
		return err
	}

	var parsed any
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		parsed = value
	}

	flat := Flatten(m)
	flat[key] = parsed
	data, err := json.MarshalIndent(Unflatten(flat), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeAtomic(path, append(data, '\n'))
}
