package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"gopkg.in/yaml.v3"

	"ig-dashboard/internal/ig_dashboard/model"
)

// Source 一个凭据来源。返回的 map 只包含非空值；读取失败时返回 error，
// 由 Resolver 当作“该来源没有值”处理。
type Source interface {
	Name() string
	Load(ctx context.Context) (model.Credentials, error)
}

// ---------------- 托管平台：挂载目录 ----------------

// DirSource 读取平台挂载的密钥目录，每个键一个文件（文件名为大写键名，如 APIFY_TOKEN）
type DirSource struct {
	Dir string
}

func (s DirSource) Name() string { return "hosted-dir" }

func (s DirSource) Load(_ context.Context) (model.Credentials, error) {
	if s.Dir == "" {
		return nil, nil
	}
	info, err := os.Stat(s.Dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", s.Dir)
	}

	out := model.Credentials{}
	for _, key := range model.CredentialKeys {
		data, err := os.ReadFile(filepath.Join(s.Dir, model.EnvName(key)))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			out[key] = v
		}
	}
	return out, nil
}

// ---------------- 托管平台：Mongo 集合 ----------------

// hostedSecret secrets 集合中的文档：{_id: "APIFY_TOKEN", value: "..."}
type hostedSecret struct {
	Name  string `bson:"_id"`
	Value string `bson:"value"`
}

// MongoSource 从共享 Mongo 集合读取平台下发的密钥
type MongoSource struct {
	Coll *mongo.Collection
}

func (s MongoSource) Name() string { return "hosted-mongo" }

func (s MongoSource) Load(ctx context.Context) (model.Credentials, error) {
	if s.Coll == nil {
		return nil, nil
	}

	names := make([]string, 0, len(model.CredentialKeys))
	for _, key := range model.CredentialKeys {
		names = append(names, model.EnvName(key))
	}

	cur, err := s.Coll.Find(ctx, bson.M{"_id": bson.M{"$in": names}})
	if err != nil {
		return nil, err
	}
	defer func(cur *mongo.Cursor, ctx context.Context) {
		_ = cur.Close(ctx)
	}(cur, ctx)

	out := model.Credentials{}
	for cur.Next(ctx) {
		var doc hostedSecret
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		if doc.Value != "" {
			out[strings.ToLower(doc.Name)] = doc.Value
		}
	}
	return out, cur.Err()
}

// ---------------- 环境变量 ----------------

type envCredentials struct {
	ApifyToken         string `env:"APIFY_TOKEN"`
	GeminiAPIKey       string `env:"GEMINI_API_KEY"`
	InstagramSessionID string `env:"INSTAGRAM_SESSION_ID"`
	ProxyURL           string `env:"PROXY_URL"`
	OpenAIAPIKey       string `env:"OPENAI_API_KEY"`
}

// EnvSource 进程环境变量；DotEnvFile 中的值只填补进程里未设置的变量
type EnvSource struct {
	DotEnvFile string
	// Environ 为空时使用 os.Environ()
	Environ func() []string
}

func (s EnvSource) Name() string { return "env" }

func (s EnvSource) Load(_ context.Context) (model.Credentials, error) {
	environ := s.Environ
	if environ == nil {
		environ = os.Environ
	}

	vars := map[string]string{}
	if s.DotEnvFile != "" {
		// .env 缺失或损坏不影响进程环境变量
		if dot, err := godotenv.Read(s.DotEnvFile); err == nil {
			for k, v := range dot {
				vars[k] = v
			}
		}
	}
	for k, v := range env.ToMap(environ()) {
		if v != "" {
			vars[k] = v
		}
	}

	var ec envCredentials
	if err := env.ParseWithOptions(&ec, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	out := model.Credentials{}
	set := func(key, v string) {
		if v != "" {
			out[key] = v
		}
	}
	set(model.KeyApifyToken, ec.ApifyToken)
	set(model.KeyGeminiAPIKey, ec.GeminiAPIKey)
	set(model.KeyInstagramSessionID, ec.InstagramSessionID)
	set(model.KeyProxyURL, ec.ProxyURL)
	set(model.KeyOpenAIAPIKey, ec.OpenAIAPIKey)
	return out, nil
}

// ---------------- 本地 key-value 文件（TOML） ----------------

// TOMLFileSource 读取 secrets.toml，键为大写名
type TOMLFileSource struct {
	Path string
}

func (s TOMLFileSource) Name() string { return "secrets-file" }

func (s TOMLFileSource) Load(_ context.Context) (model.Credentials, error) {
	var raw map[string]any
	if _, err := toml.DecodeFile(s.Path, &raw); err != nil {
		return nil, err
	}

	out := model.Credentials{}
	for _, key := range model.CredentialKeys {
		if v := stringValue(raw[model.EnvName(key)]); v != "" {
			out[key] = v
		}
	}
	return out, nil
}

// ---------------- 本地结构化配置（YAML） ----------------

type yamlSecrets struct {
	APIKeys map[string]any `yaml:"api_keys"`
}

// YAMLFileSource 读取 config.yaml 的 api_keys 段，键为小写名
type YAMLFileSource struct {
	Path string
}

func (s YAMLFileSource) Name() string { return "config-file" }

func (s YAMLFileSource) Load(_ context.Context) (model.Credentials, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	var doc yamlSecrets
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	out := model.Credentials{}
	for k, v := range doc.APIKeys {
		key := strings.ToLower(k)
		if !isCredentialKey(key) {
			continue
		}
		if sv := stringValue(v); sv != "" {
			out[key] = sv
		}
	}
	return out, nil
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case bool:
		// 布尔值不是合法凭据
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func isCredentialKey(key string) bool {
	for _, k := range model.CredentialKeys {
		if k == key {
			return true
		}
	}
	return false
}
