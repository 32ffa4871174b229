package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"accessdesk/pkg/config"
)

// Notification delivery modes.
const (
	NotifyModeInline = "inline"
	NotifyModeQueue  = "queue"
)

type ActionTokenConfig struct {
	// Mode: structural (default, unsigned) or jwt (HS256 signed)
	Mode        string `yaml:"mode"`
	MaxAgeHours int    `yaml:"max_age_hours"`
	Secret      string `yaml:"secret"`
}

type NotifyConfig struct {
	Mode               string `yaml:"mode"`
	Workers            int    `yaml:"workers"`
	QueueSize          int    `yaml:"queue_size"`
	SendTimeoutSeconds int    `yaml:"send_timeout_seconds"`
	// DedupTTLMinutes 重复投递去重窗口
	DedupTTLMinutes    int    `yaml:"dedup_ttl_minutes"`
}

type RateLimitConfig struct {
	EmailActionPerMinute int64 `yaml:"email_action_per_minute"`
}

type Config struct {
	Env         string               `yaml:"-"`
	DB          config.DBConfig      `yaml:"db"`
	MQ          config.MQConfig      `yaml:"mq"`
	Redis       config.RedisConfig   `yaml:"redis"`
	JWT         config.JWTConfig     `yaml:"jwt"`
	Server      config.ServerConfig  `yaml:"server"`
	SMTP        config.SMTPConfig    `yaml:"smtp"`
	Storage     config.StorageConfig `yaml:"storage"`
	Otel        config.OtelConfig    `yaml:"otel"`
	FrontendURL string               `yaml:"frontend_url"`
	ActionToken ActionTokenConfig    `yaml:"action_token"`
	Notify      NotifyConfig         `yaml:"notify"`
	RateLimit   RateLimitConfig      `yaml:"rate_limit"`
}

// Load 使用统一配置中心加载配置，失败直接退出
func Load() *Config {
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	cfg, err := LoadFrom(env, configDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// LoadFrom merges base.yaml with <env>.yaml in dir, then applies env overrides.
func LoadFrom(env, dir string) (*Config, error) {
	cfgMap, err := config.LoadConfig(env, dir)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := config.Decode(cfgMap, &cfg); err != nil {
		return nil, err
	}
	cfg.Env = env

	// secrets.env 缺失时占位符原样保留，视为未配置
	for _, v := range []*string{&cfg.DB.Password, &cfg.MQ.URL, &cfg.JWT.Secret, &cfg.SMTP.Password, &cfg.ActionToken.Secret} {
		if strings.HasPrefix(*v, "${") && strings.HasSuffix(*v, "}") {
			*v = ""
		}
	}

	// 环境变量覆盖（优先级最高）
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideSMTPFromEnv(&cfg.SMTP)
	config.OverrideStorageFromEnv(&cfg.Storage)
	overrideAppFromEnv(&cfg)

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func overrideAppFromEnv(cfg *Config) {
	if url := os.Getenv("FRONTEND_URL"); url != "" {
		cfg.FrontendURL = url
	}
	if mode := os.Getenv("NOTIFY_MODE"); mode != "" {
		cfg.Notify.Mode = mode
	}
	if mode := os.Getenv("ACTION_TOKEN_MODE"); mode != "" {
		cfg.ActionToken.Mode = mode
	}
	if secret := os.Getenv("ACTION_TOKEN_SECRET"); secret != "" {
		cfg.ActionToken.Secret = secret
	}
	if hours := os.Getenv("ACTION_TOKEN_MAX_AGE_HOURS"); hours != "" {
		if h, err := strconv.Atoi(hours); err == nil {
			cfg.ActionToken.MaxAgeHours = h
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.JWT.TTLHours <= 0 {
		c.JWT.TTLHours = 24
	}
	if c.FrontendURL == "" {
		c.FrontendURL = "http://localhost:3000"
	}
	if c.ActionToken.Mode == "" {
		c.ActionToken.Mode = "structural"
	}
	if c.Notify.Mode == "" {
		c.Notify.Mode = NotifyModeInline
	}
	if c.Notify.Workers <= 0 {
		c.Notify.Workers = 4
	}
	if c.Notify.QueueSize <= 0 {
		c.Notify.QueueSize = 256
	}
	if c.Notify.SendTimeoutSeconds <= 0 {
		c.Notify.SendTimeoutSeconds = 15
	}
	if c.Notify.DedupTTLMinutes <= 0 {
		c.Notify.DedupTTLMinutes = 60
	}
	if c.RateLimit.EmailActionPerMinute <= 0 {
		c.RateLimit.EmailActionPerMinute = 30
	}
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	switch c.Notify.Mode {
	case NotifyModeInline, NotifyModeQueue:
	default:
		return fmt.Errorf("unknown notify.mode %q", c.Notify.Mode)
	}
	if c.Notify.Mode == NotifyModeQueue && c.MQ.URL == "" {
		return fmt.Errorf("mq.url is required when notify.mode is queue")
	}
	return nil
}

// HasDB reports whether a Postgres host is configured; cmd/server falls back
// to in-memory stores otherwise.
func (c *Config) HasDB() bool { return c.DB.Host != "" }

func (c *Config) JWTTTL() time.Duration {
	return time.Duration(c.JWT.TTLHours) * time.Hour
}

func (c *Config) TokenMaxAge() time.Duration {
	return time.Duration(c.ActionToken.MaxAgeHours) * time.Hour
}

func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.Notify.SendTimeoutSeconds) * time.Second
}

func (c *Config) DedupTTL() time.Duration {
	return time.Duration(c.Notify.DedupTTLMinutes) * time.Minute
}
