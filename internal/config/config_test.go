package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(testConfigPath(t, "valid.toml"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Global.UpstreamTimeout.DurationValue() != 15*time.Second {
		t.Fatalf("UpstreamTimeout 解析错误: %s", cfg.Global.UpstreamTimeout.DurationValue())
	}
	if cfg.Global.InitialBackoff.DurationValue() != 2*time.Second {
		t.Fatalf("纯数字应按秒解析: %s", cfg.Global.InitialBackoff.DurationValue())
	}
	if cfg.Global.RetryCooldown.DurationValue() != time.Minute {
		t.Fatalf("RetryCooldown 默认值错误: %s", cfg.Global.RetryCooldown.DurationValue())
	}
	if cfg.App.APIPrefix != "/api/" || cfg.App.SettingsPath != "/get_settings" || cfg.App.StaticPrefix != "/static/" {
		t.Fatalf("路径规则默认值缺失: %+v", cfg.App)
	}
	if len(cfg.App.FontOrigins) != 2 {
		t.Fatalf("字体 Origin 默认值缺失: %v", cfg.App.FontOrigins)
	}
	if len(cfg.App.Precache) == 0 || cfg.App.Precache[0] != "/" {
		t.Fatalf("预缓存清单默认值缺失: %v", cfg.App.Precache)
	}
	if cfg.App.OfflineKey != "/static/offline.html" {
		t.Fatalf("OfflineKey 默认值错误: %s", cfg.App.OfflineKey)
	}
}

func TestNamespaceNamesFollowVersion(t *testing.T) {
	app := AppConfig{Version: "v2"}
	if app.StaticNamespace() != "static-v2" {
		t.Fatalf("unexpected static namespace %s", app.StaticNamespace())
	}
	if app.RuntimeNamespace() != "runtime-v2" {
		t.Fatalf("unexpected runtime namespace %s", app.RuntimeNamespace())
	}
}

func TestResolveKeyUsesOrigin(t *testing.T) {
	app := AppConfig{Origin: "http://app.local:5000", Precache: []string{"/", "/static/a.png"}}
	if got := app.ResolveKey("/static/offline.html"); got != "http://app.local:5000/static/offline.html" {
		t.Fatalf("unexpected key %s", got)
	}
	resolved := app.ResolvedPrecache()
	if resolved[0] != "http://app.local:5000/" || resolved[1] != "http://app.local:5000/static/a.png" {
		t.Fatalf("unexpected precache %v", resolved)
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Global.ListenPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ListenPort 超出范围应当报错")
	}
}

func TestValidateStorageBackend(t *testing.T) {
	testCases := []struct {
		name      string
		backend   string
		redisAddr string
		shouldErr bool
	}{
		{"memory ok", BackendMemory, "", false},
		{"fs ok", BackendFS, "", false},
		{"sqlite ok", BackendSQLite, "", false},
		{"redis ok", BackendRedis, "127.0.0.1:6379", false},
		{"redis missing addr", BackendRedis, "", true},
		{"unsupported", "etcd", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Global.StorageBackend = tc.backend
			cfg.Global.RedisAddr = tc.redisAddr
			err := cfg.Validate()
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error for backend %q", tc.backend)
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error for backend %q: %v", tc.backend, err)
			}
		})
	}
}

func TestValidateRejectsVersionWithSeparator(t *testing.T) {
	cfg := validConfig()
	cfg.App.Version = "v1/../x"
	err := cfg.Validate()
	var fieldErr FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "App.Version" {
		t.Fatalf("expected App.Version field error, got %v", err)
	}
}

func TestValidateRejectsZeroRetryCooldown(t *testing.T) {
	cfg := validConfig()
	cfg.Global.RetryCooldown = 0
	err := cfg.Validate()
	var fieldErr FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "Global.RetryCooldown" {
		t.Fatalf("expected Global.RetryCooldown field error, got %v", err)
	}
}

func TestValidateRejectsRelativePrefix(t *testing.T) {
	cfg := validConfig()
	cfg.App.StaticPrefix = "static/"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("相对前缀应当报错")
	}
}

func TestValidateRejectsFontOriginWithPath(t *testing.T) {
	cfg := validConfig()
	cfg.App.FontOrigins = []string{"https://fonts.gstatic.com/s"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("带路径的 Origin 应当报错")
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenPort:      5000,
			StorageBackend:  BackendFS,
			StoragePath:     "./data",
			MaxRetries:      1,
			InitialBackoff:  Duration(time.Second),
			RetryCooldown:   Duration(time.Minute),
			UpstreamTimeout: Duration(time.Second),
		},
		App: AppConfig{
			Origin:          "http://localhost:5000",
			Upstream:        "http://127.0.0.1:8000",
			Version:         "v1.0.3",
			APIPrefix:       "/api/",
			SettingsPath:    "/get_settings",
			StaticPrefix:    "/static/",
			FontOrigins:     []string{"https://fonts.googleapis.com"},
			RootKey:         "/",
			OfflineKey:      "/static/offline.html",
			DefaultImageKey: "/static/default_chart.png",
			Precache:        []string{"/", "/static/offline.html"},
		},
	}
}
