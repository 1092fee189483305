package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	switch g.StorageBackend {
	case BackendMemory:
	case BackendFS, BackendSQLite:
		if g.StoragePath == "" {
			return newFieldError("Global.StoragePath", "不能为空")
		}
	case BackendRedis:
		if strings.TrimSpace(g.RedisAddr) == "" {
			return newFieldError("Global.RedisAddr", "redis 后端必须提供地址")
		}
	default:
		return newFieldError("Global.StorageBackend", "仅支持 memory|fs|sqlite|redis")
	}
	if g.MaxRetries < 0 {
		return newFieldError("Global.MaxRetries", "不能为负数")
	}
	if g.InitialBackoff.DurationValue() <= 0 {
		return newFieldError("Global.InitialBackoff", "必须大于 0")
	}
	if g.RetryCooldown.DurationValue() <= 0 {
		return newFieldError("Global.RetryCooldown", "必须大于 0")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}

	return c.App.validate()
}

func (a AppConfig) validate() error {
	if a.Version == "" {
		return newFieldError(appField("Version"), "不能为空")
	}
	if strings.ContainsAny(a.Version, `/\ `) {
		return newFieldError(appField("Version"), "不允许包含路径分隔符或空格")
	}
	if err := validateOrigin(a.Origin); err != nil {
		return fmt.Errorf("%s: %w", appField("Origin"), err)
	}
	if err := validateUpstream(a.Upstream); err != nil {
		return fmt.Errorf("%s: %w", appField("Upstream"), err)
	}
	for _, origin := range a.FontOrigins {
		if err := validateOrigin(origin); err != nil {
			return fmt.Errorf("%s: %w", appField("FontOrigins"), err)
		}
	}

	prefixes := map[string]string{
		"APIPrefix":    a.APIPrefix,
		"SettingsPath": a.SettingsPath,
		"StaticPrefix": a.StaticPrefix,
	}
	for field, value := range prefixes {
		if !strings.HasPrefix(value, "/") {
			return newFieldError(appField(field), "必须以 / 开头")
		}
	}

	keys := map[string]string{
		"RootKey":         a.RootKey,
		"OfflineKey":      a.OfflineKey,
		"DefaultImageKey": a.DefaultImageKey,
	}
	for field, value := range keys {
		if !strings.HasPrefix(value, "/") {
			return newFieldError(appField(field), "必须是以 / 开头的同源路径")
		}
	}

	for i, entry := range a.Precache {
		if strings.TrimSpace(entry) == "" {
			return newFieldError(fmt.Sprintf("App.Precache[%d]", i), "不能为空")
		}
	}
	return nil
}

func validateOrigin(raw string) error {
	if raw == "" {
		return errors.New("缺少 Origin")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	if parsed.Path != "" && parsed.Path != "/" {
		return fmt.Errorf("Origin 不应包含路径: %s", raw)
	}
	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("缺少上游地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}
