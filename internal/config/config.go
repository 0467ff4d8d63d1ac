/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted as YAML in the user scope.
// Environment variables are read-only overrides applied at load time.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type ConversionConfig struct {
	Policy               string `yaml:"policy"` // "escape" | "strict"
	SuppressVacantGoBack bool   `yaml:"suppress_vacant_goback"`
	Validate             bool   `yaml:"validate"`
	SidesFile            string `yaml:"sides_file"`
	MaxAttempts          int    `yaml:"max_attempts"` // 0 = ask until answered
}

type StoreConfig struct {
	// DSN selects the history/side-memory database. A file path or sqlite: URI
	// uses SQLite, postgres:// uses Postgres. Empty means the default SQLite
	// file next to the config.
	DSN      string `yaml:"dsn"`
	Remember bool   `yaml:"remember"`
	// The database password is not stored here; it lives in the OS keychain.
}

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int              `yaml:"config_version"`
	General       GeneralConfig    `yaml:"general"`
	Conversion    ConversionConfig `yaml:"conversion"`
	Store         StoreConfig      `yaml:"store"`
	Logging       LoggingConfig    `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false},
		Conversion:    ConversionConfig{Policy: "escape", Validate: true},
		Store:         StoreConfig{Remember: true},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvPolicy               = "SCS_POLICY"
	EnvSuppressVacantGoBack = "SCS_SUPPRESS_VACANT_GOBACK"
	EnvValidate             = "SCS_VALIDATE"
	EnvSidesFile            = "SCS_SIDES_FILE"
	EnvMaxAttempts          = "SCS_MAX_ATTEMPTS"
	EnvStoreDSN             = "SCS_STORE_DSN"
	EnvStoreRemember        = "SCS_STORE_REMEMBER"
	EnvTelemetryOptIn       = "SCS_TELEMETRY_OPT_IN"
	EnvConfigFile           = "SCS_CONFIG"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "SCS_LOG_LEVEL"
	EnvLogFormat = "SCS_LOG_FORMAT"
	EnvLogSource = "SCS_LOG_SOURCE"
	EnvLogFile   = "SCS_LOG_FILE"
)

// ConfigDir returns the per-user directory holding config.yaml and the default history DB.
func ConfigDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "ScriptStage")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "ScriptStage")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "scriptstage")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "scriptstage")
		}
	}
	if base == "" || base == "ScriptStage" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the config file path, honoring SCS_CONFIG.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultStoreDSN is the SQLite file used when no DSN is configured.
func DefaultStoreDSN() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.sqlite"), nil
}

// Load reads the user config file, applies defaults and environment overrides,
// and returns the store password from the keyring. The keyring is only read
// for Postgres DSNs; otherwise the password is empty.
func Load() (AppConfig, string, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Defaults()
		applyEnvOverrides(&cfg)
		return cfg, "", err
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit config file path. A missing file is not an error.
func LoadFrom(path string) (AppConfig, string, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			applyEnvOverrides(&cfg)
			return cfg, "", err
		}
		mergeInto(&cfg, &fileCfg, data)
	case !errors.Is(err, os.ErrNotExist):
		applyEnvOverrides(&cfg)
		return cfg, "", err
	}
	applyEnvOverrides(&cfg)
	if !usesPostgres(cfg.Store.DSN) {
		return cfg, "", nil
	}
	secret, _ := tokenStore.Get(keyringService, keyringStorePassword)
	return cfg, secret, nil
}

// usesPostgres reports whether dsn needs the keyring password.
func usesPostgres(dsn string) bool {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}

// Save writes the config YAML and stores the password in the keyring (if non-empty).
func Save(path string, cfg AppConfig, password string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if password != "" {
		if err := tokenStore.Set(keyringService, keyringStorePassword, password); err != nil {
			return err
		}
	}
	return nil
}

// mergeInto copies file values over defaults. Booleans that default to true
// are only overridden when the key is present in the file.
func mergeInto(dst *AppConfig, src *AppConfig, raw []byte) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn

	if v := strings.TrimSpace(src.Conversion.Policy); v != "" {
		dst.Conversion.Policy = strings.ToLower(v)
	}
	dst.Conversion.SuppressVacantGoBack = src.Conversion.SuppressVacantGoBack
	if v := strings.TrimSpace(src.Conversion.SidesFile); v != "" {
		dst.Conversion.SidesFile = v
	}
	if src.Conversion.MaxAttempts > 0 {
		dst.Conversion.MaxAttempts = src.Conversion.MaxAttempts
	}
	if v := strings.TrimSpace(src.Store.DSN); v != "" {
		dst.Store.DSN = v
	}

	present := presentKeys(raw)
	if present["conversion.validate"] {
		dst.Conversion.Validate = src.Conversion.Validate
	}
	if present["store.remember"] {
		dst.Store.Remember = src.Store.Remember
	}

	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

// presentKeys lists "section.key" pairs set in the YAML document.
func presentKeys(raw []byte) map[string]bool {
	var doc map[string]map[string]any
	out := map[string]bool{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return out
	}
	for section, kv := range doc {
		for k := range kv {
			out[section+"."+k] = true
		}
	}
	return out
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvPolicy)); v != "" {
		cfg.Conversion.Policy = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvSuppressVacantGoBack)); v != "" {
		cfg.Conversion.SuppressVacantGoBack = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvValidate)); v != "" {
		cfg.Conversion.Validate = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvSidesFile)); v != "" {
		cfg.Conversion.SidesFile = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMaxAttempts)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Conversion.MaxAttempts = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoreDSN)); v != "" {
		cfg.Store.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoreRemember)); v != "" {
		cfg.Store.Remember = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by the environment.
func EnvOverrideFor(key string) (string, bool) {
	names := map[string]string{
		"conversion.policy":                 EnvPolicy,
		"conversion.suppress_vacant_goback": EnvSuppressVacantGoBack,
		"conversion.validate":               EnvValidate,
		"conversion.sides_file":             EnvSidesFile,
		"conversion.max_attempts":           EnvMaxAttempts,
		"store.dsn":                         EnvStoreDSN,
		"store.remember":                    EnvStoreRemember,
		"general.telemetry_opt_in":          EnvTelemetryOptIn,
		"logging.level":                     EnvLogLevel,
		"logging.format":                    EnvLogFormat,
		"logging.source":                    EnvLogSource,
		"logging.file":                      EnvLogFile,
	}
	env, ok := names[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}
