package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Term      TermConfig      `mapstructure:"term"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port      int        `mapstructure:"port"`
	BaseURL   string     `mapstructure:"base_url"`
	BodyLimit int64      `mapstructure:"body_limit"` // 请求体上限（字节）
	CORS      CORSConfig `mapstructure:"cors"`
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

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PlannerConfig 选课生成策略
type PlannerConfig struct {
	MaxSections   int           `mapstructure:"max_sections"`
	CoreQuota     int           `mapstructure:"core_quota"`
	GraduateLevel int           `mapstructure:"graduate_level"` // 课程号数字部分 >= 该值视为研究生课程
	RankTimeout   time.Duration `mapstructure:"rank_timeout"`
}

// OracleConfig 选修课排序服务（OpenAI 兼容接口）
type OracleConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

// TermConfig 学期信息（ICS 导出使用）
type TermConfig struct {
	Name      string `mapstructure:"name"`
	StartDate string `mapstructure:"start_date"` // 2006-01-02
	EndDate   string `mapstructure:"end_date"`
	Timezone  string `mapstructure:"timezone"`
}

// Start 解析学期开始日期
func (t *TermConfig) Start() (time.Time, error) {
	return t.parseDate(t.StartDate)
}

// End 解析学期结束日期
func (t *TermConfig) End() (time.Time, error) {
	return t.parseDate(t.EndDate)
}

// Location 学期所在时区，无效时回退 UTC
func (t *TermConfig) Location() *time.Location {
	if t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (t *TermConfig) parseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, t.Location())
}

// CatalogConfig 课程目录配置
type CatalogConfig struct {
	DefaultSubject string `mapstructure:"default_subject"` // 路径中仅给出数字课程号时补全的院系前缀
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	GeneratePerMinute int `mapstructure:"generate_per_minute"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.body_limit", 2<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "course_advisor")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "America/New_York")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.access_token_ttl", "2h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("planner.max_sections", 5)
	v.SetDefault("planner.core_quota", 3)
	v.SetDefault("planner.graduate_level", 5000)
	v.SetDefault("planner.rank_timeout", "15s")

	v.SetDefault("oracle.enabled", false)
	v.SetDefault("oracle.base_url", "https://api.openai.com")
	v.SetDefault("oracle.model", "gpt-3.5-turbo")
	v.SetDefault("oracle.temperature", 0.3)
	v.SetDefault("oracle.timeout", "20s")
	v.SetDefault("oracle.max_retries", 1)
	v.SetDefault("oracle.cache_ttl", "30m")

	v.SetDefault("term.name", "FA25")
	v.SetDefault("term.start_date", "2025-08-25")
	v.SetDefault("term.end_date", "2025-12-09")
	v.SetDefault("term.timezone", "America/New_York")

	v.SetDefault("catalog.default_subject", "CS")

	v.SetDefault("rate_limit.generate_per_minute", 10)

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
	v.SetEnvPrefix("ADVISOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

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
	if c.Planner.MaxSections < 1 {
		return fmt.Errorf("配置校验失败: planner.max_sections 至少为 1")
	}
	if c.Planner.CoreQuota < 0 {
		return fmt.Errorf("配置校验失败: planner.core_quota 不能为负数")
	}
	if c.Oracle.Enabled && c.Oracle.APIKey == "" {
		return fmt.Errorf("配置校验失败: oracle.enabled 为 true 时 oracle.api_key 不能为空")
	}
	start, err := c.Term.Start()
	if err != nil {
		return fmt.Errorf("配置校验失败: term.start_date 格式无效: %w", err)
	}
	end, err := c.Term.End()
	if err != nil {
		return fmt.Errorf("配置校验失败: term.end_date 格式无效: %w", err)
	}
	if !end.After(start) {
		return fmt.Errorf("配置校验失败: term.end_date 必须晚于 term.start_date")
	}
	return nil
}
