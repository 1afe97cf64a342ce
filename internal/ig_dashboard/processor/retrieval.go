package processor

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"ig-dashboard/internal/ig_dashboard/fallback"
	"ig-dashboard/internal/ig_dashboard/model"
)

// SourceApify 抓取相关 Warning 的来源名
const SourceApify = "apify"

// DefaultLimit Query.Limit 未设置时的条数
const DefaultLimit = 50

// Scraper 按话题标签抓取原始数据；ApifyClient 实现该接口
type Scraper interface {
	ScrapeHashtags(ctx context.Context, input HashtagInput) ([]RawItem, error)
}

// Query 一次检索的过滤条件
type Query struct {
	Hashtags []string
	Window   TimeWindow
	Kind     model.PostKind
	Limit    int
}

// Service 帖子检索：有抓取客户端时走实时数据，否则或失败时使用演示数据
type Service struct {
	Log *zap.Logger
	// Scraper 为 nil 表示未配置抓取服务
	Scraper  Scraper
	ProxyURL string
	// Now 可替换的时钟，测试用
	Now func() time.Time
}

// NewService scraper 传 nil 接口值表示只使用演示数据
func NewService(log *zap.Logger, scraper Scraper, proxyURL string) *Service {
	return &Service{
		Log:      log,
		Scraper:  scraper,
		ProxyURL: proxyURL,
		Now:      time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Fetch 返回按时间窗口和类型过滤、截断到 Limit 的帖子。两条路径使用同一个 cutoff，不排序。
func (s *Service) Fetch(ctx context.Context, q Query) ([]model.Post, []fallback.Warning) {
	now := s.now()
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	hashtags := NormalizeHashtags(q.Hashtags)
	warnings := []fallback.Warning{}

	demo := func() []model.Post {
		return DemoPosts(hashtags, q.Kind, limit, now)
	}

	var posts []model.Post
	if s.Scraper == nil {
		warnings = append(warnings, fallback.Warning{
			Source:  SourceApify,
			Message: "scraping client not configured, using demo data",
		})
		posts = demo()
	} else {
		var w *fallback.Warning
		posts, w = fallback.Run(ctx, s.Log, SourceApify, func(ctx context.Context) ([]model.Post, error) {
			return s.live(ctx, hashtags, q.Window, limit, now)
		}, demo)
		if w != nil {
			w.Message += " (showing demo data)"
			warnings = append(warnings, *w)
		}
	}

	posts = FilterByWindow(posts, q.Window, now)
	posts = FilterByKind(posts, q.Kind)
	if len(posts) > limit {
		posts = posts[:limit]
	}

	s.Log.Info("Posts fetched",
		zap.Strings("hashtags", hashtags),
		zap.String("window", string(q.Window)),
		zap.String("kind", string(q.Kind)),
		zap.Int("count", len(posts)),
		zap.Int("warnings", len(warnings)),
	)
	return posts, warnings
}

func (s *Service) live(ctx context.Context, hashtags []string, w TimeWindow, limit int, now time.Time) ([]model.Post, error) {
	items, err := s.Scraper.ScrapeHashtags(ctx, BuildInput(hashtags, w, limit, now, s.ProxyURL))
	if err != nil {
		return nil, err
	}
	return NormalizeItems(items, now, s.Log), nil
}

// BuildInput 构造 actor 输入；标签去掉前导 "#"，proxyURL 为空时不带代理
func BuildInput(hashtags []string, w TimeWindow, limit int, now time.Time, proxyURL string) HashtagInput {
	tags := make([]string, 0, len(hashtags))
	for _, h := range hashtags {
		tags = append(tags, strings.TrimPrefix(h, "#"))
	}

	input := HashtagInput{
		Hashtags:      tags,
		ResultsLimit:  limit,
		SearchType:    "hashtag",
		AddParentData: false,
		DateFrom:      w.Cutoff(now).Format(time.RFC3339),
	}
	if proxyURL != "" {
		input.Proxy = &ProxyInput{UseApifyProxy: false, ProxyURLs: []string{proxyURL}}
	}
	return input
}
