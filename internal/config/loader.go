package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// 默认值沿用原始部署：版本 v1.0.3、/api/ 与 /get_settings 走 API 策略、/static/ 走静态策略。
var (
	defaultFontOrigins = []string{
		"https://fonts.googleapis.com",
		"https://fonts.gstatic.com",
	}
	defaultPrecache = []string{
		"/",
		"/static/offline.html",
		"/static/bg_cyber_alt2.png",
		"/static/default_chart.png",
		"/static/bgm.mp3",
		"/static/sound_scalp.mp3",
		"/static/buy.mp3",
		"/static/sell.mp3",
		"/static/manifest.webmanifest",
	}
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyAppDefaults(&cfg.App, cfg.Global.ListenPort)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Global.StorageBackend == BackendFS || cfg.Global.StorageBackend == BackendSQLite {
		absStorage, err := filepath.Abs(cfg.Global.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("无法解析缓存目录: %w", err)
		}
		cfg.Global.StoragePath = absStorage
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StorageBackend", BackendFS)
	v.SetDefault("StoragePath", "./storage")
	v.SetDefault("RedisPrefix", "offline-edge")
	v.SetDefault("MaxRetries", 3)
	v.SetDefault("InitialBackoff", "1s")
	v.SetDefault("RetryCooldown", "1m")
	v.SetDefault("UpstreamTimeout", "30s")

	v.SetDefault("App.Version", "v1.0.3")
	v.SetDefault("App.APIPrefix", "/api/")
	v.SetDefault("App.SettingsPath", "/get_settings")
	v.SetDefault("App.StaticPrefix", "/static/")
	v.SetDefault("App.FontOrigins", defaultFontOrigins)
	v.SetDefault("App.RootKey", "/")
	v.SetDefault("App.OfflineKey", "/static/offline.html")
	v.SetDefault("App.DefaultImageKey", "/static/default_chart.png")
	v.SetDefault("App.Precache", defaultPrecache)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	g.StorageBackend = strings.ToLower(strings.TrimSpace(g.StorageBackend))
	if g.StorageBackend == "" {
		g.StorageBackend = BackendFS
	}
	if g.InitialBackoff.DurationValue() == 0 {
		g.InitialBackoff = Duration(time.Second)
	}
	if g.RetryCooldown.DurationValue() == 0 {
		g.RetryCooldown = Duration(time.Minute)
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(30 * time.Second)
	}
}

func applyAppDefaults(a *AppConfig, listenPort int) {
	if strings.TrimSpace(a.Origin) == "" {
		a.Origin = fmt.Sprintf("http://localhost:%d", listenPort)
	}
	a.Origin = strings.TrimSuffix(strings.TrimSpace(a.Origin), "/")
	for i, origin := range a.FontOrigins {
		a.FontOrigins[i] = strings.TrimSuffix(strings.TrimSpace(origin), "/")
	}
	a.Version = strings.TrimSpace(a.Version)
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
