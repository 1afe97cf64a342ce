package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"ig-dashboard/internal/ig_dashboard/model"
	"ig-dashboard/internal/ig_dashboard/secrets"
)

// GeminiModel 通过 Gemini API 生成分类结果
type GeminiModel struct {
	client *genai.Client
	model  string
}

// NewGeminiModel httpOptions 为零值时使用默认 endpoint
func NewGeminiModel(ctx context.Context, apiKey, modelName string, httpOptions genai.HTTPOptions) (*GeminiModel, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key not configured")
	}
	client, err := newGeminiClient(ctx, apiKey, httpOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiModel{client: client, model: strings.TrimPrefix(modelName, "models/")}, nil
}

func newGeminiClient(ctx context.Context, apiKey string, httpOptions genai.HTTPOptions) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: httpOptions,
	})
}

func (g *GeminiModel) Name() string { return "gemini" }

func (g *GeminiModel) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// GeminiChecker 用 models.list 验证 API key
type GeminiChecker struct {
	HTTPOptions genai.HTTPOptions
}

func (GeminiChecker) Provider() string      { return "Gemini" }
func (GeminiChecker) CredentialKey() string { return model.KeyGeminiAPIKey }

func (c GeminiChecker) Check(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("%w: empty key", secrets.ErrInvalidCredential)
	}
	client, err := newGeminiClient(ctx, apiKey, c.HTTPOptions)
	if err != nil {
		return err
	}
	_, err = client.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1})
	if apiErr, ok := asGeminiError(err); ok {
		return fmt.Errorf("%w: status %d", secrets.ErrInvalidCredential, apiErr.Code)
	}
	return err
}

// asGeminiError SDK 以值类型返回 APIError，这里兼容指针
func asGeminiError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return genai.APIError{}, false
}
