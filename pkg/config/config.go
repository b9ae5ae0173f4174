package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Engine      EngineConfig      `mapstructure:"engine"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Hetzner     HetznerConfig     `mapstructure:"hetzner"`
	Targets     TargetsConfig     `mapstructure:"targets"`
	Guest       GuestConfig       `mapstructure:"guest"`
	Mail        MailConfig        `mapstructure:"mail"`
	Auth        AuthConfig        `mapstructure:"auth"`
}

// EngineConfig 任务执行引擎配置
type EngineConfig struct {
	InstanceID               string        `mapstructure:"instance_id"`
	MaxConcurrentTasks       int           `mapstructure:"max_concurrent_tasks"`
	DefaultExpirationSeconds int           `mapstructure:"default_expiration_seconds"`
	BootstrapRetryInterval   time.Duration `mapstructure:"bootstrap_retry_interval"`
	ScoreMaxAttempts         int           `mapstructure:"score_max_attempts"`
}

// MaintenanceConfig 维护循环配置
type MaintenanceConfig struct {
	Interval          time.Duration `mapstructure:"interval"`
	LivenessAllowance time.Duration `mapstructure:"liveness_allowance"`
	LockName          string        `mapstructure:"lock_name"`
}

type DatabaseConfig struct {
	Host                  string        `mapstructure:"host"`
	Port                  int           `mapstructure:"port"`
	Database              string        `mapstructure:"database"`
	User                  string        `mapstructure:"user"`
	Password              string        `mapstructure:"password"`
	MaxConnections        int           `mapstructure:"max_connections"`
	MaxIdleConnections    int           `mapstructure:"max_idle_connections"`
	ConnectionMaxLifetime time.Duration `mapstructure:"connection_max_lifetime"`
	LogLevel              string        `mapstructure:"log_level"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// HetznerConfig 云主机目录及电源操作配置
type HetznerConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Token      string `mapstructure:"token"`
	ViewLabel  string `mapstructure:"view_label"`
	VMIDLabel  string `mapstructure:"vm_id_label"`
	WaitAction bool   `mapstructure:"wait_action"`
}

type TargetsConfig struct {
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	CacheSize int           `mapstructure:"cache_size"`
}

// GuestConfig 通过ssh执行客户机命令的配置
type GuestConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	SSHPath  string        `mapstructure:"ssh_path"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Prompt   string        `mapstructure:"prompt"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type MailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// Load 读取配置文件，环境变量(TASKENGINE_前缀)可覆盖文件中的值
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("taskengine")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// 设置默认值
	v.SetDefault("engine.instance_id", "engine-001")
	v.SetDefault("engine.max_concurrent_tasks", 64)
	v.SetDefault("engine.default_expiration_seconds", 600)
	v.SetDefault("engine.bootstrap_retry_interval", "10s")
	v.SetDefault("engine.score_max_attempts", 10)

	v.SetDefault("maintenance.interval", "60s")
	v.SetDefault("maintenance.liveness_allowance", "30s")
	v.SetDefault("maintenance.lock_name", "taskengine:maintenance")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.max_connections", 20)
	v.SetDefault("database.max_idle_connections", 10)
	v.SetDefault("database.connection_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.max_header_bytes", 1048576)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "taskengine:notifications")

	v.SetDefault("hetzner.enabled", false)
	v.SetDefault("hetzner.view_label", "view")
	v.SetDefault("hetzner.vm_id_label", "vm-id")
	v.SetDefault("hetzner.wait_action", true)

	v.SetDefault("targets.cache_ttl", "2m")
	v.SetDefault("targets.cache_size", 256)

	v.SetDefault("guest.enabled", false)
	v.SetDefault("guest.ssh_path", "ssh")
	v.SetDefault("guest.port", 22)
	v.SetDefault("guest.prompt", `[#$>] ?$`)
	v.SetDefault("guest.timeout", "30s")

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.port", 25)

	v.SetDefault("auth.enabled", false)
}
