package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

var (
	once   sync.Once
	config *Config
)

// Config 全局配置结构
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
}

// HTTPConfig HTTP服务配置
type HTTPConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`
	WriteTimeout int    `mapstructure:"writeTimeout"`
	BasePath     string `mapstructure:"basePath"`
}

// Addr 监听地址
func (c *HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Database     string `mapstructure:"database"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Charset      string `mapstructure:"charset"`
	MaxIdleConns int    `mapstructure:"maxIdleConns"`
	MaxOpenConns int    `mapstructure:"maxOpenConns"`
	LogLevel     string `mapstructure:"logLevel"`
}

// DSN 生成数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
			c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.Host, c.Port, c.Username, c.Password, c.Database)
	case "sqlite":
		// 为空时使用内存数据库
		if c.Database == "" {
			return ":memory:"
		}
		return c.Database
	default:
		return ""
	}
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"poolSize"`
	Mode     string `mapstructure:"mode"` // "standalone" 外部 Redis, "memory" 内存模式
}

// Addr 获取Redis地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
	Expire int64  `mapstructure:"expire"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAge     int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// PipelineConfig 请求管道配置
type PipelineConfig struct {
	RoleHeader   string   `mapstructure:"roleHeader"`
	UserHeader   string   `mapstructure:"userHeader"`
	AuthPrefix   string   `mapstructure:"authPrefix"`
	Validation   bool     `mapstructure:"validation"`
	AllowOrigins []string `mapstructure:"allowOrigins"`
	// Permissions 资源 -> 方法 -> 权限编码，覆盖默认权限表
	Permissions      map[string]map[string]string `mapstructure:"permissions"`
	LoginMaxAttempts int                          `mapstructure:"loginMaxAttempts"`
	LoginWindow      int                          `mapstructure:"loginWindow"` // 秒
	SeedFile         string                       `mapstructure:"seedFile"`
}

// setDefaults 默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "edumarket-api")
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 3001)
	v.SetDefault("server.http.readTimeout", 15)
	v.SetDefault("server.http.writeTimeout", 15)
	v.SetDefault("server.http.basePath", "/api")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxOpenConns", 10)
	v.SetDefault("database.logLevel", "warn")
	v.SetDefault("redis.mode", "memory")
	v.SetDefault("jwt.issuer", "edumarket")
	v.SetDefault("jwt.expire", 86400)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "console")
	v.SetDefault("pipeline.roleHeader", "X-Role-Id")
	v.SetDefault("pipeline.userHeader", "X-User-Id")
	v.SetDefault("pipeline.authPrefix", "/auth")
	v.SetDefault("pipeline.validation", true)
	v.SetDefault("pipeline.loginMaxAttempts", 5)
	v.SetDefault("pipeline.loginWindow", 300)
}

// Init 初始化全局配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		config, err = Load(configPath)
	})
	return err
}

// Load 加载配置文件，返回独立的配置实例
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	// 读取环境变量
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// 加载环境特定配置
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = v.GetString("app.env")
	}

	if env != "" && env != "default" && configPath == "" {
		v.SetConfigName(fmt.Sprintf("config.%s", env))
		if err := v.MergeInConfig(); err != nil {
			// 环境配置文件不存在不报错
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to merge env config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	resolveEnvVars(cfg)
	cfg.Pipeline.Permissions = normalizePermissions(cfg.Pipeline.Permissions)

	if unresolved := cfg.Unresolved(); len(unresolved) > 0 && cfg.IsProd() {
		return nil, fmt.Errorf("unresolved env placeholders in %s", strings.Join(unresolved, ", "))
	}
	return cfg, nil
}

// normalizePermissions viper 会把 key 转为小写，这里把方法统一为大写
func normalizePermissions(in map[string]map[string]string) map[string]map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]map[string]string, len(in))
	for resource, methods := range in {
		resource = "/" + strings.Trim(strings.TrimSpace(resource), "/")
		m := make(map[string]string, len(methods))
		for method, code := range methods {
			m[strings.ToUpper(strings.TrimSpace(method))] = strings.TrimSpace(code)
		}
		out[resource] = m
	}
	return out
}

// resolveEnvVars 解析环境变量占位符
func resolveEnvVars(cfg *Config) {
	cfg.Database.Host = resolveEnvVar(cfg.Database.Host)
	cfg.Database.Username = resolveEnvVar(cfg.Database.Username)
	cfg.Database.Password = resolveEnvVar(cfg.Database.Password)
	cfg.Database.Database = resolveEnvVar(cfg.Database.Database)
	cfg.Redis.Host = resolveEnvVar(cfg.Redis.Host)
	cfg.Redis.Password = resolveEnvVar(cfg.Redis.Password)
	cfg.JWT.Secret = resolveEnvVar(cfg.JWT.Secret)
	cfg.Pipeline.SeedFile = resolveEnvVar(cfg.Pipeline.SeedFile)
}

// Unresolved 返回环境变量未设置、仍为占位符的密钥配置项
func (c *Config) Unresolved() []string {
	var out []string
	if isPlaceholder(c.JWT.Secret) {
		out = append(out, "jwt.secret")
	}
	if isPlaceholder(c.Database.Password) {
		out = append(out, "database.password")
	}
	if isPlaceholder(c.Redis.Password) {
		out = append(out, "redis.password")
	}
	return out
}

func isPlaceholder(value string) bool {
	return strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}")
}

// resolveEnvVar 解析单个环境变量
func resolveEnvVar(value string) string {
	if isPlaceholder(value) {
		envKey := strings.TrimSuffix(strings.TrimPrefix(value, "${"), "}")
		if envValue := os.Getenv(envKey); envValue != "" {
			return envValue
		}
	}
	return value
}

// Get 获取配置实例
func Get() *Config {
	if config == nil {
		panic("config not initialized, call Init first")
	}
	return config
}

// IsDev 是否为开发环境
func (c *Config) IsDev() bool {
	return c.App.Env == "dev" || c.App.Env == "development"
}

// IsProd 是否为生产环境
func (c *Config) IsProd() bool {
	return c.App.Env == "prod" || c.App.Env == "production"
}
