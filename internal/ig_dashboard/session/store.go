package session

import (
	"fmt"
	"sort"
	"strings"

	"ig-dashboard/internal/ig_dashboard/model"
)

// SortBy 结果列表排序字段
type SortBy string

const (
	SortLikes    SortBy = "likes"
	SortComments SortBy = "comments"
	SortShares   SortBy = "shares"
	SortViews    SortBy = "views"
	SortRecency  SortBy = "recency"
)

// ParseSortBy 接受 "recent" 作为 recency 的别名，大小写不敏感
func ParseSortBy(s string) (SortBy, error) {
	switch v := SortBy(strings.ToLower(strings.TrimSpace(s))); v {
	case SortLikes, SortComments, SortShares, SortViews, SortRecency:
		return v, nil
	case "recent":
		return SortRecency, nil
	default:
		return "", fmt.Errorf("unknown sort criterion %q", s)
	}
}

// Store 单个会话的书签和当前结果列表。不加锁，并发访问由调用方串行化。
type Store struct {
	bookmarks []string
	marked    map[string]bool
	results   []model.Post
}

func NewStore() *Store {
	return &Store{marked: map[string]bool{}}
}

// ToggleBookmark 已收藏则移除，否则追加；返回操作后的状态
func (s *Store) ToggleBookmark(id string) bool {
	if s.marked[id] {
		delete(s.marked, id)
		for i, b := range s.bookmarks {
			if b == id {
				s.bookmarks = append(s.bookmarks[:i], s.bookmarks[i+1:]...)
				break
			}
		}
		return false
	}
	s.marked[id] = true
	s.bookmarks = append(s.bookmarks, id)
	return true
}

func (s *Store) Bookmarked(id string) bool {
	return s.marked[id]
}

// Bookmarks 按收藏顺序返回 ID
func (s *Store) Bookmarks() []string {
	return append([]string{}, s.bookmarks...)
}

// BookmarkedPosts 当前结果中已收藏的帖子，保持结果列表顺序
func (s *Store) BookmarkedPosts() []model.Post {
	out := []model.Post{}
	for _, p := range s.results {
		if s.marked[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

// SetResults 整体替换结果列表
func (s *Store) SetResults(posts []model.Post) {
	s.results = append([]model.Post{}, posts...)
}

func (s *Store) Results() []model.Post {
	return append([]model.Post{}, s.results...)
}

// Sort 按字段降序稳定排序结果列表
func (s *Store) Sort(by SortBy) error {
	less, err := lessFunc(by)
	if err != nil {
		return err
	}
	sort.SliceStable(s.results, func(i, j int) bool {
		return less(s.results[i], s.results[j])
	})
	return nil
}

func lessFunc(by SortBy) (func(a, b model.Post) bool, error) {
	switch by {
	case SortLikes:
		return func(a, b model.Post) bool { return a.Likes > b.Likes }, nil
	case SortComments:
		return func(a, b model.Post) bool { return a.Comments > b.Comments }, nil
	case SortShares:
		return func(a, b model.Post) bool { return a.Shares > b.Shares }, nil
	case SortViews:
		return func(a, b model.Post) bool { return a.Views > b.Views }, nil
	case SortRecency, "recent":
		return func(a, b model.Post) bool { return a.Timestamp.After(b.Timestamp) }, nil
	default:
		return nil, fmt.Errorf("unknown sort criterion %q", by)
	}
}

// Summary 结果列表的汇总指标
type Summary struct {
	TotalPosts        int     `json:"total_posts"`
	AverageLikes      float64 `json:"average_likes"`
	AverageEngagement float64 `json:"average_engagement"`
	TopCreator        string  `json:"top_creator"`
}

// Summary 空列表时各项为零值；top creator 取 likes 最高者，相同时取先出现的
func (s *Store) Summary() Summary {
	return Summarize(s.results)
}

func Summarize(posts []model.Post) Summary {
	sum := Summary{TotalPosts: len(posts)}
	if len(posts) == 0 {
		return sum
	}

	var likes, engagement int64
	top := posts[0]
	for _, p := range posts {
		likes += p.Likes
		engagement += p.Engagement()
		if p.Likes > top.Likes {
			top = p
		}
	}
	sum.AverageLikes = float64(likes) / float64(len(posts))
	sum.AverageEngagement = float64(engagement) / float64(len(posts))
	sum.TopCreator = top.Creator
	return sum
}
