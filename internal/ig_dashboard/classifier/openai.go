package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	oaioption "github.com/openai/openai-go/option"

	"ig-dashboard/internal/ig_dashboard/model"
	"ig-dashboard/internal/ig_dashboard/secrets"
)

// OpenAIModel Gemini 不可用时的备选后端
type OpenAIModel struct {
	client *openai.Client
	model  openai.ChatModel
}

// NewOpenAIModel 关闭 SDK 自带的重试，一次分类只请求一次
func NewOpenAIModel(apiKey, modelName string, opts ...oaioption.RequestOption) (*OpenAIModel, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key not configured")
	}
	client := openai.NewClient(append([]oaioption.RequestOption{oaioption.WithAPIKey(apiKey), oaioption.WithMaxRetries(0)}, opts...)...)
	return &OpenAIModel{client: &client, model: openai.ChatModel(modelName)}, nil
}

func (o *OpenAIModel) Name() string { return "openai" }

func (o *OpenAIModel) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// OpenAIChecker 用 models.list 验证 API key
type OpenAIChecker struct {
	Options []oaioption.RequestOption
}

func (OpenAIChecker) Provider() string      { return "OpenAI" }
func (OpenAIChecker) CredentialKey() string { return model.KeyOpenAIAPIKey }

func (c OpenAIChecker) Check(ctx context.Context, apiKey string) error {
	client := openai.NewClient(append([]oaioption.RequestOption{oaioption.WithAPIKey(apiKey), oaioption.WithMaxRetries(0)}, c.Options...)...)
	_, err := client.Models.List(ctx)

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: status %d", secrets.ErrInvalidCredential, apiErr.StatusCode)
	}
	return err
}
