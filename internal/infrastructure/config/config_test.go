package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := FromEnv("")
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Store != StoreMemory || cfg.HTTPAddr != ":8080" || cfg.Provider.Timeout != 10*time.Second {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.Log.Level != "info" || cfg.AMQPExchange != "bookhub.events" {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestFromEnvNestedKeys(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BOOKHUB_STORE", "Bolt")
	t.Setenv("BOOKHUB_PROVIDER_TIMEOUT", "3s")
	t.Setenv("BOOKHUB_ZENCHEF_API_KEY", "zk")
	t.Setenv("BOOKHUB_RESY_AUTH_TOKEN", "rt")
	t.Setenv("BOOKHUB_LOG_PRETTY", "true")

	cfg, err := FromEnv("")
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Store != StoreBolt || cfg.Provider.Timeout != 3*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Zenchef.APIKey != "zk" || cfg.Resy.AuthToken != "rt" || !cfg.Log.Pretty {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "test.env")
	body := "BOOKHUB_STORE=postgres\nBOOKHUB_DATABASE_URL=postgres://file\nBOOKHUB_HTTP_ADDR=:9999\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("BOOKHUB_HTTP_ADDR", ":7000")
	// Registered so t.Setenv's cleanup removes what the file exported.
	t.Setenv("BOOKHUB_STORE", "")
	t.Setenv("BOOKHUB_DATABASE_URL", "")
	os.Unsetenv("BOOKHUB_STORE")
	os.Unsetenv("BOOKHUB_DATABASE_URL")

	cfg, err := FromEnv(path)
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Store != StorePostgres || cfg.DatabaseURL != "postgres://file" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.HTTPAddr != ":7000" {
		t.Fatalf("file overrode environment: %s", cfg.HTTPAddr)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"unknown store", Config{Store: "redis", Provider: Provider{Timeout: time.Second}}, "STORE"},
		{"postgres without url", Config{Store: "postgres", Provider: Provider{Timeout: time.Second}}, "DATABASE_URL"},
		{"zero timeout", Config{Store: "memory"}, "PROVIDER_TIMEOUT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %v, want mention of %s", err, tc.want)
			}
		})
	}
}
