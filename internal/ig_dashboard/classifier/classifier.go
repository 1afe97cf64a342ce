package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"ig-dashboard/internal/ig_dashboard/fallback"
	"ig-dashboard/internal/ig_dashboard/model"
)

// Model 文本生成后端
type Model interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Classifier 对帖子文案做一次 AI 分析；Model 为 nil 表示未配置 AI
type Classifier struct {
	Log   *zap.Logger
	Model Model
}

func New(log *zap.Logger, m Model) *Classifier {
	return &Classifier{Log: log, Model: m}
}

// Available 是否配置了可用的模型
func (c *Classifier) Available() bool {
	return c != nil && c.Model != nil
}

func (c *Classifier) source() string {
	if c.Model == nil {
		return "ai"
	}
	return c.Model.Name()
}

// Classify 失败或不可用时返回 model.DefaultClassification()；失败附带 Warning
func (c *Classifier) Classify(ctx context.Context, caption string, hashtags []string) (model.ClassificationResult, *fallback.Warning) {
	var op func(context.Context) (model.ClassificationResult, error)
	if c.Model != nil {
		op = func(ctx context.Context) (model.ClassificationResult, error) {
			text, err := c.Model.Generate(ctx, buildPrompt(caption, hashtags))
			if err != nil {
				return model.ClassificationResult{}, err
			}
			return ParseResult(text)
		}
	}
	return fallback.Run(ctx, c.Log, c.source(), op, model.DefaultClassification)
}

// Enrich 逐条分析并写入 Analysis；相同内容的 Warning 只保留一条
func (c *Classifier) Enrich(ctx context.Context, posts []model.Post) ([]model.Post, []fallback.Warning) {
	out := make([]model.Post, len(posts))
	warnings := []fallback.Warning{}
	seen := map[string]bool{}

	for i, p := range posts {
		result, w := c.Classify(ctx, p.Caption, p.Hashtags)
		p.Analysis = &result
		out[i] = p

		if w != nil && !seen[w.String()] {
			seen[w.String()] = true
			warnings = append(warnings, *w)
		}
	}

	c.Log.Info("Posts classified",
		zap.String("model", c.source()),
		zap.Int("count", len(out)),
		zap.Int("warnings", len(warnings)),
	)
	return out, warnings
}

type rawResult struct {
	Category             string      `json:"category"`
	Sentiment            string      `json:"sentiment"`
	EngagementPrediction string      `json:"engagement_prediction"`
	ContentQuality       json.Number `json:"content_quality"`
	TrendingPotential    json.Number `json:"trending_potential"`
}

var (
	ErrEmptyResponse   = errors.New("empty model response")
	ErrInvalidResponse = errors.New("invalid model response")
)

// ParseResult 解析模型输出；情感或热度预测不在取值范围内时返回错误，
// 类别归一到固定集合，分数截断到 0-100
func ParseResult(text string) (model.ClassificationResult, error) {
	content := cleanJSONResponse(text)
	if content == "" {
		return model.ClassificationResult{}, ErrEmptyResponse
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return model.ClassificationResult{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	sentiment, ok := matchSentiment(raw.Sentiment)
	if !ok {
		return model.ClassificationResult{}, fmt.Errorf("%w: sentiment %q", ErrInvalidResponse, raw.Sentiment)
	}
	level, ok := matchEngagement(raw.EngagementPrediction)
	if !ok {
		return model.ClassificationResult{}, fmt.Errorf("%w: engagement_prediction %q", ErrInvalidResponse, raw.EngagementPrediction)
	}
	quality, err := score(raw.ContentQuality)
	if err != nil {
		return model.ClassificationResult{}, fmt.Errorf("%w: content_quality: %v", ErrInvalidResponse, err)
	}
	trending, err := score(raw.TrendingPotential)
	if err != nil {
		return model.ClassificationResult{}, fmt.Errorf("%w: trending_potential: %v", ErrInvalidResponse, err)
	}

	return model.ClassificationResult{
		Category:             NormalizeCategory(raw.Category),
		Sentiment:            sentiment,
		EngagementPrediction: level,
		ContentQuality:       quality,
		TrendingPotential:    trending,
	}, nil
}

// NormalizeCategory 不区分大小写匹配已知类别，"UI/UX" 视为 UI-UX，其余归为 Other
func NormalizeCategory(s string) string {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("/", "-", " ", "").Replace(key)
	for _, c := range model.Categories {
		if key == strings.ReplaceAll(strings.ToLower(c), " ", "") {
			return c
		}
	}
	return model.CategoryOther
}

func matchSentiment(s string) (model.Sentiment, bool) {
	for _, v := range []model.Sentiment{model.SentimentPositive, model.SentimentNeutral, model.SentimentNegative} {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v, true
		}
	}
	return "", false
}

func matchEngagement(s string) (model.EngagementLevel, bool) {
	for _, v := range []model.EngagementLevel{model.EngagementHigh, model.EngagementMedium, model.EngagementLow} {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v, true
		}
	}
	return "", false
}

func score(n json.Number) (int, error) {
	if n == "" {
		return 0, errors.New("missing")
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	return int(math.Round(math.Min(100, math.Max(0, f)))), nil
}
