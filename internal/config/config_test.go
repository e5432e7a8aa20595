package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.json")
}

func writeTestConfig(t *testing.T, path string, cfg *Config) {
	t.Helper()
	if err := Save(path, cfg); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
}

func TestLoad_WritesDefaultsWithDeviceID(t *testing.T) {
	path := tempConfigPath(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DeviceID == "" {
		t.Fatal("expected generated device id")
	}
	if cfg.Timeouts.LongPoll.Duration != 35*time.Minute {
		t.Errorf("expected 35m long poll timeout, got %v", cfg.Timeouts.LongPoll)
	}
	if cfg.Backoff.Initial.Duration != 5*time.Second || cfg.Backoff.Max.Duration != 2*time.Minute {
		t.Errorf("unexpected backoff defaults %+v", cfg.Backoff)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if again.DeviceID != cfg.DeviceID {
		t.Errorf("device id changed across loads: %s != %s", cfg.DeviceID, again.DeviceID)
	}
}

func TestLoad_PersistsMissingDeviceID(t *testing.T) {
	path := tempConfigPath(t)
	if err := os.WriteFile(path, []byte(`{"device_name":"den"}`), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DeviceName != "den" {
		t.Errorf("expected device_name=den, got %s", cfg.DeviceName)
	}
	v, err := GetValue(path, "device_id")
	if err != nil {
		t.Fatal(err)
	}
	if v != cfg.DeviceID {
		t.Errorf("expected persisted device id %s, got %v", cfg.DeviceID, v)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := tempConfigPath(t)
	t.Setenv("LOUNGE_DEVICE_NAME", "env remote")
	t.Setenv("LOUNGE_SCREEN", "bedroom")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tg-env")
	t.Setenv("TELEGRAM_ALLOWED_CHATS", "10, 20,bad")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DeviceName != "env remote" || cfg.DefaultScreen != "bedroom" || cfg.Telegram.Token != "tg-env" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if len(cfg.Telegram.AllowedChats) != 2 || cfg.Telegram.AllowedChats[1] != 20 {
		t.Errorf("expected chats [10 20], got %v", cfg.Telegram.AllowedChats)
	}
}

func TestLoad_DotEnvNextToConfig(t *testing.T) {
	path := tempConfigPath(t)
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := os.WriteFile(envPath, []byte("LOUNGE_BASE_URL=http://dotenv.test\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("LOUNGE_BASE_URL") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaseURL != "http://dotenv.test" {
		t.Errorf("expected base url from .env, got %s", cfg.BaseURL)
	}
}

func TestSave_ReloadRoundTrip(t *testing.T) {
	path := tempConfigPath(t)

	original := Default()
	original.DataDir = "/tmp/test-data"
	original.LogLevel = "debug"
	original.DeviceID = "fixed-id"
	original.Timeouts.Request = Duration{10 * time.Second}
	original.Backoff.Multiplier = 1.5
	original.Telegram.Token = "bot-token-456"
	original.Telegram.AllowedChats = []int64{42}

	if err := Save(path, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file should not exist after successful save")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.DataDir != original.DataDir || loaded.LogLevel != original.LogLevel || loaded.DeviceID != "fixed-id" {
		t.Errorf("scalar mismatch: %+v", loaded)
	}
	if loaded.Timeouts.Request.Duration != 10*time.Second {
		t.Errorf("expected 10s request timeout, got %v", loaded.Timeouts.Request)
	}
	if loaded.Backoff.Multiplier != 1.5 {
		t.Errorf("expected multiplier 1.5, got %v", loaded.Backoff.Multiplier)
	}
	if len(loaded.Telegram.AllowedChats) != 1 || loaded.Telegram.AllowedChats[0] != 42 {
		t.Errorf("expected allowed chats [42], got %v", loaded.Telegram.AllowedChats)
	}
}

func TestDuration_AcceptsSeconds(t *testing.T) {
	var d Duration
	if err := json.Unmarshal([]byte(`90`), &d); err != nil {
		t.Fatal(err)
	}
	if d.Duration != 90*time.Second {
		t.Errorf("expected 90s, got %v", d.Duration)
	}
	if err := json.Unmarshal([]byte(`"nope"`), &d); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestListValues_WithMask(t *testing.T) {
	cfg := Default()
	cfg.Telegram.Token = "bot-token-abcd"

	flat, err := ListValues(cfg, true)
	if err != nil {
		t.Fatalf("ListValues failed: %v", err)
	}
	if flat["telegram.token"] != "***abcd" {
		t.Errorf("expected masked telegram.token=***abcd, got %v", flat["telegram.token"])
	}
	if flat["timeouts.long_poll"] != "35m0s" {
		t.Errorf("expected timeouts.long_poll=35m0s, got %v", flat["timeouts.long_poll"])
	}

	flat, err = ListValues(cfg, false)
	if err != nil {
		t.Fatal(err)
	}
	if flat["telegram.token"] != "bot-token-abcd" {
		t.Errorf("expected unmasked telegram.token, got %v", flat["telegram.token"])
	}
}

func TestGetValue_UnknownKey(t *testing.T) {
	path := tempConfigPath(t)
	writeTestConfig(t, path, Default())

	_, err := GetValue(path, "nonexistent.key")
	if err == nil {
		t.Fatal("expected error for unknown key, got nil")
	}
	if err.Error() != "unknown config key: nonexistent.key" {
		t.Errorf("unexpected error %q", err.Error())
	}
}

func TestSetValue_Types(t *testing.T) {
	path := tempConfigPath(t)
	writeTestConfig(t, path, Default())

	if err := SetValue(path, "device_name", "kitchen"); err != nil {
		t.Fatal(err)
	}
	if err := SetValue(path, "event_buffer", "512"); err != nil {
		t.Fatal(err)
	}
	if err := SetValue(path, "http.enabled", "true"); err != nil {
		t.Fatal(err)
	}
	if err := SetValue(path, "backoff.max", "1m"); err != nil {
		t.Fatal(err)
	}

	if v, _ := GetValue(path, "device_name"); v != "kitchen" {
		t.Errorf("expected device_name=kitchen, got %v", v)
	}
	if v, _ := GetValue(path, "event_buffer"); v != float64(512) {
		t.Errorf("expected event_buffer=512, got %v (%T)", v, v)
	}
	if v, _ := GetValue(path, "http.enabled"); v != true {
		t.Errorf("expected http.enabled=true, got %v", v)
	}
	if v, _ := GetValue(path, "metrics.namespace"); v != "lounge" {
		t.Errorf("expected other values preserved, got %v", v)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backoff.Max.Duration != time.Minute || !cfg.HTTP.Enabled || cfg.EventBuffer != 512 {
		t.Errorf("set values not loaded: %+v", cfg)
	}
}

func TestSetValue_NonexistentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist", "config.json")
	if err := SetValue(path, "log_level", "debug"); err == nil {
		t.Fatal("expected error for nonexistent file, got nil")
	}
}
