package processor

import (
	"strings"
	"time"

	"ig-dashboard/internal/ig_dashboard/model"
)

// TimeWindow 相对时间窗口
type TimeWindow string

const (
	WindowToday TimeWindow = "Today"
	Window48h   TimeWindow = "48h"
	Window4d    TimeWindow = "4d"
	WindowWeek  TimeWindow = "Week"
	WindowMonth TimeWindow = "Month"
)

// defaultWindowDays 无法识别的窗口按 30 天处理
const defaultWindowDays = 30

var windowDays = map[TimeWindow]int{
	WindowToday: 1,
	Window48h:   2,
	Window4d:    4,
	WindowWeek:  7,
	WindowMonth: 30,
}

// ParseTimeWindow 兼容原界面文字（"48 Hours"、"4 Days"）和大小写差异；
// 无法识别的值原样保留，Days() 会给出 30
func ParseTimeWindow(s string) TimeWindow {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "")) {
	case "today":
		return WindowToday
	case "48h", "48hours":
		return Window48h
	case "4d", "4days":
		return Window4d
	case "week", "7d":
		return WindowWeek
	case "month", "30d":
		return WindowMonth
	default:
		return TimeWindow(s)
	}
}

func (w TimeWindow) Days() int {
	if d, ok := windowDays[w]; ok {
		return d
	}
	return defaultWindowDays
}

const day = 24 * time.Hour

// Cutoff now - days(window)，按固定 24 小时计，不受夏令时影响
func (w TimeWindow) Cutoff(now time.Time) time.Time {
	return now.Add(-time.Duration(w.Days()) * day)
}

// FilterByWindow 保留 timestamp >= cutoff 的帖子，保持原顺序
func FilterByWindow(posts []model.Post, w TimeWindow, now time.Time) []model.Post {
	cutoff := w.Cutoff(now)
	out := make([]model.Post, 0, len(posts))
	for _, p := range posts {
		if !p.Timestamp.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

// FilterByKind kind 为 all 时不过滤
func FilterByKind(posts []model.Post, kind model.PostKind) []model.Post {
	if kind == model.KindAll || kind == "" {
		return posts
	}
	out := make([]model.Post, 0, len(posts))
	for _, p := range posts {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}
