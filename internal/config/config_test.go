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
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type memKeyring map[string]string

func (m memKeyring) Get(service, key string) (string, error) { return m[service+"/"+key], nil }
func (m memKeyring) Set(service, key, value string) error {
	m[service+"/"+key] = value
	return nil
}
func (m memKeyring) Delete(service, key string) error {
	delete(m, service+"/"+key)
	return nil
}

func stubKeyring(t *testing.T) memKeyring {
	t.Helper()
	old := tokenStore
	m := memKeyring{}
	tokenStore = m
	t.Cleanup(func() { tokenStore = old })
	return m
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	stubKeyring(t)
	cfg, secret, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if secret != "" {
		t.Fatalf("secret = %q, want empty", secret)
	}
	if cfg.Conversion.Policy != "escape" || !cfg.Conversion.Validate || !cfg.Store.Remember {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestEnvOverridesPolicy(t *testing.T) {
	stubKeyring(t)
	t.Setenv(EnvPolicy, "STRICT")
	cfg, _, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if got, want := cfg.Conversion.Policy, "strict"; got != want {
		t.Fatalf("Conversion.Policy = %q, want %q", got, want)
	}
	if env, ok := EnvOverrideFor("conversion.policy"); !ok || env != EnvPolicy {
		t.Fatalf("EnvOverrideFor = %q,%v", env, ok)
	}
}

func TestEnvOverridesTelemetryAndStore(t *testing.T) {
	stubKeyring(t)
	t.Setenv(EnvTelemetryOptIn, "true")
	t.Setenv(EnvStoreDSN, "postgres://u@db/scs")
	t.Setenv(EnvStoreRemember, "off")
	t.Setenv(EnvMaxAttempts, "4")
	cfg, _, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if !cfg.General.TelemetryOptIn {
		t.Fatalf("General.TelemetryOptIn expected true from env override")
	}
	if cfg.Store.DSN != "postgres://u@db/scs" || cfg.Store.Remember {
		t.Fatalf("store overrides not applied: %+v", cfg.Store)
	}
	if cfg.Conversion.MaxAttempts != 4 {
		t.Fatalf("MaxAttempts = %d", cfg.Conversion.MaxAttempts)
	}
}

func TestFileValuesMerged(t *testing.T) {
	stubKeyring(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
conversion:
  policy: strict
  validate: false
  suppress_vacant_goback: true
  sides_file: sides.yaml
store:
  remember: false
logging:
  level: DEBUG
  format: json
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, _, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	c := cfg.Conversion
	if c.Policy != "strict" || c.Validate || !c.SuppressVacantGoBack || c.SidesFile != "sides.yaml" {
		t.Fatalf("conversion not merged: %+v", c)
	}
	if cfg.Store.Remember {
		t.Fatalf("store.remember=false in file was ignored")
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("logging not merged: %+v", cfg.Logging)
	}
}

func TestAbsentBoolKeysKeepDefaults(t *testing.T) {
	stubKeyring(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("conversion:\n  policy: escape\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, _, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if !cfg.Conversion.Validate || !cfg.Store.Remember {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestInvalidYAMLReturnsError(t *testing.T) {
	stubKeyring(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("conversion: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, _, err := LoadFrom(path)
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if cfg.Conversion.Policy != "escape" {
		t.Fatalf("defaults should still be returned, got %+v", cfg)
	}
}

func TestSaveRoundTripStoresPasswordInKeyring(t *testing.T) {
	kr := stubKeyring(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Defaults()
	cfg.Store.DSN = "postgres://scs@localhost/scs"
	if err := Save(path, cfg, "hunter2"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(raw); strings.Contains(got, "hunter2") {
		t.Fatalf("password leaked into config file:\n%s", got)
	}
	if kr[keyringService+"/"+keyringStorePassword] != "hunter2" {
		t.Fatalf("password not stored in keyring: %v", kr)
	}
	got, secret, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if got.Store.DSN != cfg.Store.DSN || secret != "hunter2" {
		t.Fatalf("round trip mismatch: dsn=%q secret=%q", got.Store.DSN, secret)
	}
	if err := ClearStorePassword(); err != nil {
		t.Fatalf("ClearStorePassword: %v", err)
	}
	if _, ok := kr[keyringService+"/"+keyringStorePassword]; ok {
		t.Fatalf("password not cleared")
	}
}

func TestConfigPathHonorsEnv(t *testing.T) {
	t.Setenv(EnvConfigFile, "/tmp/custom.yaml")
	p, err := ConfigPath()
	if err != nil || p != "/tmp/custom.yaml" {
		t.Fatalf("ConfigPath = %q, %v", p, err)
	}
}

func TestKeyringOnlyReadForPostgres(t *testing.T) {
	kr := stubKeyring(t)
	kr[keyringService+"/"+keyringStorePassword] = "pw"
	t.Setenv(EnvStoreDSN, "/tmp/history.sqlite")
	_, secret, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if secret != "" {
		t.Fatalf("secret read for sqlite dsn: %q", secret)
	}
	t.Setenv(EnvStoreDSN, "postgresql://scs@db/scs")
	if _, secret, _ = LoadFrom(filepath.Join(t.TempDir(), "absent.yaml")); secret != "pw" {
		t.Fatalf("secret = %q, want pw", secret)
	}
}
