package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// 支持的命名空间存储后端。
const (
	BackendMemory = "memory"
	BackendFS     = "fs"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// GlobalConfig 描述进程级运行参数：监听端口、日志、存储后端与上游网络栈。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	StorageBackend  string   `mapstructure:"StorageBackend"`
	StoragePath     string   `mapstructure:"StoragePath"`
	RedisAddr       string   `mapstructure:"RedisAddr"`
	RedisDB         int      `mapstructure:"RedisDB"`
	RedisPrefix     string   `mapstructure:"RedisPrefix"`
	MaxRetries      int      `mapstructure:"MaxRetries"`
	InitialBackoff  Duration `mapstructure:"InitialBackoff"`
	RetryCooldown   Duration `mapstructure:"RetryCooldown"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// AppConfig 描述被代理的 Web 应用：版本标签、预缓存清单以及各类请求的路径规则。
type AppConfig struct {
	Origin          string   `mapstructure:"Origin"`
	Upstream        string   `mapstructure:"Upstream"`
	Version         string   `mapstructure:"Version"`
	APIPrefix       string   `mapstructure:"APIPrefix"`
	SettingsPath    string   `mapstructure:"SettingsPath"`
	StaticPrefix    string   `mapstructure:"StaticPrefix"`
	FontOrigins     []string `mapstructure:"FontOrigins"`
	RootKey         string   `mapstructure:"RootKey"`
	OfflineKey      string   `mapstructure:"OfflineKey"`
	DefaultImageKey string   `mapstructure:"DefaultImageKey"`
	Precache        []string `mapstructure:"Precache"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
	App    AppConfig    `mapstructure:"App"`
}

// StaticNamespace 返回当前版本的静态命名空间名称，例如 static-v1.0.3。
func (a AppConfig) StaticNamespace() string {
	return "static-" + a.Version
}

// RuntimeNamespace 返回当前版本的运行时（API）命名空间名称。
func (a AppConfig) RuntimeNamespace() string {
	return "runtime-" + a.Version
}

// OriginURL 解析应用的公开 Origin；调用前应已通过 Validate。
func (a AppConfig) OriginURL() *url.URL {
	parsed, err := url.Parse(a.Origin)
	if err != nil {
		return &url.URL{}
	}
	return parsed
}

// ResolveKey 将 "/static/offline.html" 这类相对路径解析为以应用 Origin 为基准的绝对 URL。
func (a AppConfig) ResolveKey(ref string) string {
	base := a.OriginURL()
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}

// ResolvedPrecache 返回预缓存清单的绝对 URL，保持声明顺序。
func (a AppConfig) ResolvedPrecache() []string {
	if len(a.Precache) == 0 {
		return nil
	}
	result := make([]string, len(a.Precache))
	for i, entry := range a.Precache {
		result[i] = a.ResolveKey(entry)
	}
	return result
}
