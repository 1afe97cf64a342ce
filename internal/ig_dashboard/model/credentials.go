package model

import "strings"

// 凭据逻辑名（小写），对应的环境变量名为大写形式
const (
	KeyApifyToken         = "apify_token"
	KeyGeminiAPIKey       = "gemini_api_key"
	KeyInstagramSessionID = "instagram_session_id"
	KeyProxyURL           = "proxy_url"
	KeyOpenAIAPIKey       = "openai_api_key"
)

// CredentialKeys 固定顺序的全部凭据名
var CredentialKeys = []string{
	KeyApifyToken,
	KeyGeminiAPIKey,
	KeyInstagramSessionID,
	KeyProxyURL,
	KeyOpenAIAPIKey,
}

// RequiredKeys 抓取与分析路径必需的凭据
var RequiredKeys = []string{KeyApifyToken, KeyGeminiAPIKey}

// EnvName apify_token -> APIFY_TOKEN
func EnvName(key string) string {
	return strings.ToUpper(key)
}

// Credentials 逻辑名 -> 值；缺失的键不出现在 map 中
type Credentials map[string]string

func (c Credentials) Get(key string) (string, bool) {
	v, ok := c[strings.ToLower(key)]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Value 缺失时返回空串
func (c Credentials) Value(key string) string {
	v, _ := c.Get(key)
	return v
}
