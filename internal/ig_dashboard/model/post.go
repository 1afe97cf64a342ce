package model

import (
	"strings"
	"time"
)

// PostKind 帖子结构类型
type PostKind string

const (
	KindAll      PostKind = "all"
	KindPost     PostKind = "post"
	KindCarousel PostKind = "carousel"
	KindReel     PostKind = "reel"
)

// demoKinds 演示数据按下标循环使用的类型
var demoKinds = []PostKind{KindPost, KindCarousel, KindReel}

// ParsePostKind 兼容原界面的复数写法（Posts/Carousels/Reels），无法识别时返回 all
func ParsePostKind(s string) PostKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "post", "posts":
		return KindPost
	case "carousel", "carousels":
		return KindCarousel
	case "reel", "reels":
		return KindReel
	default:
		return KindAll
	}
}

// CycleKind 第 i 条演示数据的类型
func CycleKind(i int) PostKind {
	return demoKinds[i%len(demoKinds)]
}

type Post struct {
	ID        string   `json:"id"`
	Creator   string   `json:"creator"`
	Thumbnail string   `json:"thumbnail"`
	Likes     int64    `json:"likes"`
	Comments  int64    `json:"comments"`
	Shares    int64    `json:"shares"`
	Views     int64    `json:"views"`
	Caption   string   `json:"caption"`
	Kind      PostKind `json:"kind"`
	URL       string   `json:"url"`
	// ViewsEstimated 为 true 时 Views 是 likes×10 的估算值，不是平台数据
	ViewsEstimated bool                  `json:"views_estimated"`
	Timestamp      time.Time             `json:"timestamp"`
	Hashtags       []string              `json:"hashtags"`
	Analysis       *ClassificationResult `json:"analysis,omitempty"`
}

// Engagement likes + comments + shares
func (p Post) Engagement() int64 {
	return p.Likes + p.Comments + p.Shares
}
