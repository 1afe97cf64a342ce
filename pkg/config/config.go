package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Address      string   `yaml:"address"`
	AllowOrigins []string `yaml:"allowOrigins"`
	Debug        bool     `yaml:"debug"`
}

type HTTPConfig struct {
	// 0 表示不设置超时，远程调用只受 context 约束
	Timeout time.Duration `yaml:"timeout"`
}

// SecretsConfig 本地密钥文件路径
type SecretsConfig struct {
	SecretsFile string `yaml:"secretsFile"` // key-value (TOML)
	EnvFile     string `yaml:"envFile"`
	ConfigFile  string `yaml:"configFile"` // 结构化 YAML，api_keys 段
}

type MongoConfig struct {
	URI        string `yaml:"uri"`
	DBName     string `yaml:"dbname"`
	Collection string `yaml:"collection"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	AuthSource string `yaml:"authSource"`
}

// HostedConfig 托管平台密钥源：挂载目录和/或 Mongo 集合
type HostedConfig struct {
	Dir   string      `yaml:"dir"`
	Mongo MongoConfig `yaml:"mongo"`
	// RefreshInterval 周期性重新解析凭据，0 表示只在启动和手动 reload 时解析
	RefreshInterval time.Duration `yaml:"refreshInterval"`
}

type ApifyConfig struct {
	BaseURL      string        `yaml:"baseURL"`
	Actor        string        `yaml:"actor"`
	PollInterval time.Duration `yaml:"pollInterval"`
	PageSize     int           `yaml:"pageSize"`
}

type AIConfig struct {
	GeminiModel string `yaml:"geminiModel"`
	OpenAIModel string `yaml:"openaiModel"`
}

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	HTTP    HTTPConfig    `yaml:"http"`
	Secrets SecretsConfig `yaml:"secrets"`
	Hosted  HostedConfig  `yaml:"hosted"`
	Apify   ApifyConfig   `yaml:"apify"`
	AI      AIConfig      `yaml:"ai"`
}

// Default 返回默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig 读取 YAML 配置；文件不存在时使用默认值
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if len(c.Server.AllowOrigins) == 0 {
		c.Server.AllowOrigins = []string{"http://localhost:3000"}
	}
	if c.Secrets.SecretsFile == "" {
		c.Secrets.SecretsFile = ".streamlit/secrets.toml"
	}
	if c.Secrets.EnvFile == "" {
		c.Secrets.EnvFile = ".env"
	}
	if c.Secrets.ConfigFile == "" {
		c.Secrets.ConfigFile = "config.yaml"
	}
	if c.Hosted.Mongo.URI != "" {
		if c.Hosted.Mongo.Collection == "" {
			c.Hosted.Mongo.Collection = "secrets"
		}
		if c.Hosted.Mongo.AuthSource == "" {
			c.Hosted.Mongo.AuthSource = "admin"
		}
	}
	if c.Apify.BaseURL == "" {
		c.Apify.BaseURL = "https://api.apify.com"
	}
	if c.Apify.Actor == "" {
		c.Apify.Actor = "apify/instagram-hashtag-scraper"
	}
	if c.Apify.PollInterval <= 0 {
		c.Apify.PollInterval = 5 * time.Second
	}
	if c.Apify.PageSize <= 0 {
		c.Apify.PageSize = 100
	}
	if c.AI.GeminiModel == "" {
		c.AI.GeminiModel = "gemini-pro"
	}
	if c.AI.OpenAIModel == "" {
		c.AI.OpenAIModel = "gpt-4o-mini"
	}
}
