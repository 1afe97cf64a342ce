package secrets

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"ig-dashboard/internal/ig_dashboard/model"
)

// Format 凭据落盘格式
type Format string

const (
	FormatTOML Format = "toml"
	FormatEnv  Format = "env"
	FormatYAML Format = "yaml"
)

// ParseFormat 支持原界面的选项文字，如 "TOML (.streamlit/secrets.toml)"
func ParseFormat(s string) (Format, error) {
	l := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(l, "toml"):
		return FormatTOML, nil
	case strings.HasPrefix(l, "env"), l == ".env":
		return FormatEnv, nil
	case strings.HasPrefix(l, "yaml"), strings.HasPrefix(l, "yml"):
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// AppSettings 写入结构化配置时附带的默认应用设置
type AppSettings struct {
	DebugMode          bool `yaml:"debug_mode"`
	CacheEnabled       bool `yaml:"cache_enabled"`
	MaxPostsPerRequest int  `yaml:"max_posts_per_request"`
}

func DefaultAppSettings() AppSettings {
	return AppSettings{
		DebugMode:          false,
		CacheEnabled:       true,
		MaxPostsPerRequest: 100,
	}
}

type yamlDocument struct {
	APIKeys     map[string]string `yaml:"api_keys"`
	AppSettings AppSettings       `yaml:"app_settings"`
}

// Writer 把凭据写到与读取端相同的三个本地文件之一
type Writer struct {
	Log         *zap.Logger
	SecretsFile string
	EnvFile     string
	ConfigFile  string
}

// Save 尽力写入：失败时记录日志并返回 error，由调用方作为提示展示，不会中断流程
func (w *Writer) Save(creds model.Credentials, format Format) (string, error) {
	var (
		path string
		data []byte
		err  error
	)

	switch format {
	case FormatTOML:
		path = w.SecretsFile
		data, err = encodeTOML(creds)
	case FormatEnv:
		path = w.EnvFile
		data, err = encodeEnv(creds)
	case FormatYAML:
		path = w.ConfigFile
		data, err = encodeYAML(creds)
	default:
		err = fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		w.Log.Error("Failed to encode credentials", zap.String("format", string(format)), zap.Error(err))
		return path, err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			w.Log.Error("Failed to create secrets directory", zap.String("dir", dir), zap.Error(err))
			return path, err
		}
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		w.Log.Error("Failed to write credentials", zap.String("path", path), zap.Error(err))
		return path, err
	}

	w.Log.Info("Credentials saved",
		zap.String("format", string(format)),
		zap.String("path", path),
	)
	return path, nil
}

// nonEmptyUpper toml/env 只写非空值，键转大写
func nonEmptyUpper(creds model.Credentials) map[string]string {
	out := map[string]string{}
	for k, v := range creds {
		if v != "" {
			out[model.EnvName(k)] = v
		}
	}
	return out
}

func encodeTOML(creds model.Credentials) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(nonEmptyUpper(creds)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// envSpecial 出现这些字符的值交给 godotenv 加引号转义，其余写成 KEY=value
const envSpecial = " \t\r\n#\"'\\$`"

func encodeEnv(creds model.Credentials) ([]byte, error) {
	env := nonEmptyUpper(creds)
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, k := range keys {
		v := env[k]
		if !strings.ContainsAny(v, envSpecial) {
			fmt.Fprintf(&buf, "%s=%s\n", k, v)
			continue
		}
		line, err := godotenv.Marshal(map[string]string{k: v})
		if err != nil {
			return nil, err
		}
		buf.WriteString(line + "\n")
	}
	return buf.Bytes(), nil
}

func encodeYAML(creds model.Credentials) ([]byte, error) {
	doc := yamlDocument{
		APIKeys:     map[string]string{},
		AppSettings: DefaultAppSettings(),
	}
	for k, v := range creds {
		doc.APIKeys[strings.ToLower(k)] = v
	}
	return yaml.Marshal(doc)
}
