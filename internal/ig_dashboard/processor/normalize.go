package processor

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"ig-dashboard/internal/ig_dashboard/model"
)

// RawItem 抓取服务返回的松散结构
type RawItem map[string]any

const (
	postURLPrefix  = "https://instagram.com/p/"
	unknownCreator = "unknown"
	// viewsPerLike 无播放量时按 likes×10 估算
	viewsPerLike = 10
)

// 各字段的候选名，按顺序取第一个非空值
var (
	idFields       = []string{"id", "shortCode"}
	likesFields    = []string{"likesCount"}
	commentsFields = []string{"commentsCount"}
	sharesFields   = []string{"sharesCount", "videoViewCount"}
	viewsFields    = []string{"videoViewCount", "videoPlayCount"}
	carouselFields = []string{"sidecarMedias", "childPosts"}
)

// NormalizeItems 把一批原始数据转换成 Post，ID 重复的条目只保留第一条
func NormalizeItems(items []RawItem, now time.Time, logger *zap.Logger) []model.Post {
	posts := make([]model.Post, 0, len(items))
	seen := make(map[string]bool, len(items))

	for i, item := range items {
		p := NormalizeItem(item, i, now)
		if seen[p.ID] {
			logger.Debug("duplicate item dropped", zap.String("id", p.ID), zap.Int("index", i))
			continue
		}
		seen[p.ID] = true
		posts = append(posts, p)
	}
	return posts
}

// NormalizeItem 单条原始数据 -> Post；index 用于生成兜底 ID，now 用于缺失的时间戳
func NormalizeItem(item RawItem, index int, now time.Time) model.Post {
	caption := stringField(item, "caption")
	likes := intField(item, likesFields...)

	p := model.Post{
		ID:        stringField(item, idFields...),
		Creator:   stringField(item, "ownerUsername"),
		Thumbnail: stringField(item, "displayUrl"),
		Likes:     likes,
		Comments:  intField(item, commentsFields...),
		Shares:    intField(item, sharesFields...),
		Caption:   caption,
		Kind:      DetermineKind(item),
		URL:       postURLPrefix + stringField(item, "shortCode"),
		Timestamp: timeField(item, "timestamp", now),
		Hashtags:  ExtractHashtags(caption),
	}
	if p.ID == "" {
		p.ID = fmt.Sprintf("post_%d", index)
	}
	if p.Creator == "" {
		p.Creator = unknownCreator
	}

	if hasAny(item, viewsFields...) {
		p.Views = intField(item, viewsFields...)
	} else {
		p.Views = likes * viewsPerLike
		p.ViewsEstimated = true
	}

	return p
}

// DetermineKind videoUrl -> reel；多媒体 -> carousel；否则 post
func DetermineKind(item RawItem) model.PostKind {
	if stringField(item, "videoUrl") != "" {
		return model.KindReel
	}
	for _, f := range carouselFields {
		if !isEmpty(item[f]) {
			return model.KindCarousel
		}
	}
	return model.KindPost
}

func hasAny(item RawItem, fields ...string) bool {
	for _, f := range fields {
		if !isEmpty(item[f]) {
			return true
		}
	}
	return false
}

func stringField(item RawItem, fields ...string) string {
	for _, f := range fields {
		v, ok := item[f]
		if !ok || isEmpty(v) {
			continue
		}
		switch t := v.(type) {
		case string:
			return strings.TrimSpace(t)
		case json.Number:
			return t.String()
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		default:
			return fmt.Sprintf("%v", t)
		}
	}
	return ""
}

// intField 取第一个可解析的计数；负数按 0 处理
func intField(item RawItem, fields ...string) int64 {
	for _, f := range fields {
		v, ok := item[f]
		if !ok || isEmpty(v) {
			continue
		}
		if n, ok := toInt64(v); ok {
			if n < 0 {
				return 0
			}
			return n
		}
	}
	return 0
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int64(t), true
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		if f, err := t.Float64(); err == nil {
			return int64(f), true
		}
		return 0, false
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// timeField RFC 3339 字符串或 unix 秒；缺失或无法解析时返回 fallback
func timeField(item RawItem, field string, fallback time.Time) time.Time {
	v, ok := item[field]
	if !ok || isEmpty(v) {
		return fallback
	}
	if s, ok := v.(string); ok {
		if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(s)); err == nil {
			return ts
		}
	}
	if n, ok := toInt64(v); ok && n > 0 {
		return time.Unix(n, 0).UTC()
	}
	return fallback
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case bool:
		return !t
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}
