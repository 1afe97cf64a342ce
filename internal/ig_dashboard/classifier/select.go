package classifier

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"ig-dashboard/internal/ig_dashboard/model"
)

// Settings 构造模型时使用的模型名
type Settings struct {
	GeminiModel string
	OpenAIModel string
	// GeminiHTTP 零值使用默认 endpoint
	GeminiHTTP genai.HTTPOptions
}

// FromCredentials 优先 Gemini，其次 OpenAI；两者都不可用时 Model 为 nil
func FromCredentials(ctx context.Context, log *zap.Logger, creds model.Credentials, s Settings) *Classifier {
	if key, ok := creds.Get(model.KeyGeminiAPIKey); ok {
		m, err := NewGeminiModel(ctx, key, s.GeminiModel, s.GeminiHTTP)
		if err == nil {
			return New(log, m)
		}
		log.Warn("Gemini model unavailable", zap.Error(err))
	}

	if key, ok := creds.Get(model.KeyOpenAIAPIKey); ok {
		m, err := NewOpenAIModel(key, s.OpenAIModel)
		if err == nil {
			return New(log, m)
		}
		log.Warn("OpenAI model unavailable", zap.Error(err))
	}

	log.Info("No AI key configured, classification uses default results")
	return New(log, nil)
}
