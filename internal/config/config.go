package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr         string `mapstructure:"addr"`          // 监听地址
	ReadTimeout  int    `mapstructure:"read_timeout"`  // 读超时（秒）
	WriteTimeout int    `mapstructure:"write_timeout"` // 写超时（秒）
}

// StoreConfig 题库存储配置
type StoreConfig struct {
	Path string `mapstructure:"path"` // bbolt 数据库文件路径
}

// AuthConfig 登录鉴权配置
type AuthConfig struct {
	Users          map[string]string `mapstructure:"users"`           // 用户名 -> 密码（管理后台内部使用）
	SessionTTL     int               `mapstructure:"session_ttl"`     // 会话有效期（秒）
	AllowAnonymous bool              `mapstructure:"allow_anonymous"` // 只读接口允许匿名访问
}

// LLMConfig 生成流水线和 LLM 修复器的模型配置
type LLMConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
	Timeout     int     `mapstructure:"timeout"`     // 请求超时（秒）
	MaxRetries  int     `mapstructure:"max_retries"` // 最大重试次数
}

// ObjectStoreConfig 导出文件的对象存储配置
type ObjectStoreConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	Bucket      string `mapstructure:"bucket"`
	UseSSL      bool   `mapstructure:"use_ssl"`
	URLExpiry   int    `mapstructure:"url_expiry"`   // 预签名 URL 有效期（秒）
	PublicCache bool   `mapstructure:"public_cache"` // 是否允许 CDN 缓存
}

// WorkerConfig 题目生成 worker 配置
type WorkerConfig struct {
	Concurrency  int `mapstructure:"concurrency"`   // 并行处理的任务数
	PollInterval int `mapstructure:"poll_interval"` // 队列轮询间隔（秒）
}

// Config 保存管理后台的所有配置
type Config struct {
	Debug          bool              `mapstructure:"debug"`
	Server         ServerConfig      `mapstructure:"server"`
	Store          StoreConfig       `mapstructure:"store"`
	Auth           AuthConfig        `mapstructure:"auth"`
	LLM            LLMConfig         `mapstructure:"llm"`
	ObjectStore    ObjectStoreConfig `mapstructure:"object_store"`
	Worker         WorkerConfig      `mapstructure:"worker"`
	LatexFixConfig string            `mapstructure:"latexfix_config"` // 修复引擎启发式配置（TOML），空用内置默认
}

// Load 加载配置文件，找不到时退回默认配置
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigName(".qbank-admin")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("QBANK")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return Default(), nil
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8787",
			ReadTimeout:  30,
			WriteTimeout: 60,
		},
		Store: StoreConfig{
			Path: defaultStorePath(),
		},
		Auth: AuthConfig{
			SessionTTL: 86400,
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.3,
			Timeout:     120,
			MaxRetries:  2,
		},
		ObjectStore: ObjectStoreConfig{
			Bucket:    "qbank-exports",
			URLExpiry: 3600,
		},
		Worker: WorkerConfig{
			Concurrency:  2,
			PollInterval: 5,
		},
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "qbank.db"
	}
	return filepath.Join(home, ".qbank-admin", "qbank.db")
}

// validate 校验必填项
func validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr 不能为空")
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("store.path 不能为空")
	}
	if cfg.Auth.SessionTTL <= 0 {
		cfg.Auth.SessionTTL = 86400
	}
	if cfg.Worker.Concurrency <= 0 {
		cfg.Worker.Concurrency = 1
	}
	return nil
}
