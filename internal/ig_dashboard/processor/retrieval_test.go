package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"go.uber.org/zap"

	"ig-dashboard/internal/ig_dashboard/model"
)

type fakeScraper struct {
	items []RawItem
	err   error
	input HashtagInput
	calls int
}

func (f *fakeScraper) ScrapeHashtags(_ context.Context, input HashtagInput) ([]RawItem, error) {
	f.calls++
	f.input = input
	return f.items, f.err
}

func newTestService(scraper Scraper) *Service {
	s := NewService(zap.NewNop(), scraper, "")
	s.Now = func() time.Time { return testNow }
	return s
}

func TestDemoPosts(t *testing.T) {
	posts := DemoPosts([]string{"#design"}, model.KindAll, 10, testNow)

	assert.Equal(t, 10, len(posts))
	for i, p := range posts {
		n := int64(i)
		assert.Equal(t, 1500+100*n, p.Likes)
		assert.Equal(t, 45+5*n, p.Comments)
		assert.Equal(t, 20+2*n, p.Shares)
		assert.Equal(t, 5000+200*n, p.Views)
		assert.Equal(t, model.CycleKind(i), p.Kind)
		assert.Equal(t, testNow.Add(-time.Duration(i)*day), p.Timestamp)
	}
	assert.Equal(t, "post_3", posts[3].ID)
	assert.Equal(t, "designer_3", posts[3].Creator)
	assert.Equal(t, "https://picsum.photos/300/200?random=3", posts[3].Thumbnail)
	assert.Equal(t, "https://instagram.com/p/mock_3", posts[3].URL)
	assert.Equal(t, model.KindPost, posts[0].Kind)
	assert.Equal(t, model.KindCarousel, posts[1].Kind)
	assert.Equal(t, model.KindReel, posts[2].Kind)
	assert.Equal(t, "Amazing #design inspiration! Check out this innovative approach to modern design solutions.", posts[0].Caption)
	assert.Equal(t, []string{"#design"}, posts[0].Hashtags)
}

func TestDemoPostsDefaults(t *testing.T) {
	posts := DemoPosts(nil, model.KindReel, 35, testNow)

	assert.Equal(t, 35, len(posts))
	assert.Equal(t, model.KindReel, posts[1].Kind)
	assert.Equal(t, []string{"#design"}, posts[0].Hashtags)
	assert.Equal(t, testNow, posts[30].Timestamp)

	tags := DemoPosts([]string{"#a", "#b", "#c", "#d"}, model.KindAll, 1, testNow)[0].Hashtags
	assert.Equal(t, []string{"#a", "#b", "#c"}, tags)
}

func TestFetchDemoTodayWrapsEveryThirtyDays(t *testing.T) {
	s := newTestService(nil)

	posts, _ := s.Fetch(context.Background(), Query{Window: WindowToday, Kind: model.KindAll, Limit: 50})

	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	assert.Equal(t, []string{"post_0", "post_1", "post_30", "post_31"}, ids)

	posts, _ = s.Fetch(context.Background(), Query{Window: WindowToday, Kind: model.KindAll, Limit: 30})
	assert.Equal(t, 2, len(posts))
}

func TestFetchWithoutScraperUsesDemo(t *testing.T) {
	s := newTestService(nil)

	posts, warnings := s.Fetch(context.Background(), Query{
		Hashtags: []string{"#design"},
		Window:   WindowWeek,
		Kind:     model.KindAll,
		Limit:    10,
	})

	// i=0..7 在 7 天窗口内（i=7 恰好等于 cutoff）
	assert.Equal(t, 8, len(posts))
	assert.Equal(t, int64(1500), posts[0].Likes)
	assert.Equal(t, int64(2200), posts[7].Likes)
	assert.Equal(t, 1, len(warnings))
	assert.Equal(t, SourceApify, warnings[0].Source)
}

func TestFetchDemoKindFilter(t *testing.T) {
	s := newTestService(nil)

	posts, _ := s.Fetch(context.Background(), Query{Window: WindowMonth, Kind: model.KindCarousel, Limit: 12})

	assert.Equal(t, 12, len(posts))
	for _, p := range posts {
		assert.Equal(t, model.KindCarousel, p.Kind)
	}
}

func TestFetchLive(t *testing.T) {
	scraper := &fakeScraper{items: []RawItem{
		{"id": "1", "shortCode": "A", "likesCount": float64(10), "timestamp": testNow.Add(-time.Hour).Format(time.RFC3339)},
		{"id": "2", "shortCode": "B", "videoUrl": "v", "timestamp": testNow.Add(-3 * day).Format(time.RFC3339)},
		{"id": "3", "shortCode": "C", "timestamp": testNow.Add(-10 * day).Format(time.RFC3339)},
		{"id": "4", "shortCode": "D"},
	}}
	s := newTestService(scraper)
	s.ProxyURL = "http://proxy:8080"

	posts, warnings := s.Fetch(context.Background(), Query{
		Hashtags: []string{"#ui", "design"},
		Window:   WindowWeek,
		Kind:     model.KindAll,
		Limit:    2,
	})

	assert.Equal(t, 0, len(warnings))
	assert.Equal(t, 1, scraper.calls)
	assert.Equal(t, []string{"ui", "design"}, scraper.input.Hashtags)
	assert.Equal(t, 2, scraper.input.ResultsLimit)
	assert.Equal(t, "hashtag", scraper.input.SearchType)
	assert.Equal(t, testNow.Add(-7*day).Format(time.RFC3339), scraper.input.DateFrom)
	assert.Equal(t, []string{"http://proxy:8080"}, scraper.input.Proxy.ProxyURLs)
	assert.Equal(t, false, scraper.input.Proxy.UseApifyProxy)

	assert.Equal(t, 2, len(posts))
	assert.Equal(t, "1", posts[0].ID)
	assert.Equal(t, "2", posts[1].ID)
}

func TestFetchLiveFailureFallsBackToDemo(t *testing.T) {
	scraper := &fakeScraper{err: errors.New("actor run finished with status FAILED")}
	s := newTestService(scraper)

	posts, warnings := s.Fetch(context.Background(), Query{Hashtags: []string{"#tech"}, Window: WindowToday, Limit: 10})

	assert.Equal(t, 1, len(warnings))
	assert.Equal(t, SourceApify, warnings[0].Source)
	// Today 保留 i=0 和 i=1（恰好一天前）
	assert.Equal(t, 2, len(posts))
	assert.Equal(t, "post_0", posts[0].ID)
}

func TestFetchCutoffMatchesAcrossPaths(t *testing.T) {
	edge := testNow.Add(-2 * day)
	scraper := &fakeScraper{items: []RawItem{
		{"id": "edge", "timestamp": edge.Format(time.RFC3339)},
		{"id": "old", "timestamp": edge.Add(-time.Second).Format(time.RFC3339)},
	}}

	live, _ := newTestService(scraper).Fetch(context.Background(), Query{Window: Window48h, Limit: 10})
	demo, _ := newTestService(nil).Fetch(context.Background(), Query{Window: Window48h, Limit: 10})

	assert.Equal(t, 1, len(live))
	assert.Equal(t, "edge", live[0].ID)
	assert.Equal(t, 3, len(demo))
	assert.Equal(t, edge, demo[2].Timestamp)
}

func TestBuildInputWithoutProxy(t *testing.T) {
	input := BuildInput([]string{"#ai"}, WindowMonth, 50, testNow, "")

	assert.Equal(t, true, input.Proxy == nil)
	assert.Equal(t, []string{"ai"}, input.Hashtags)
	assert.Equal(t, "2025-02-08T12:00:00Z", input.DateFrom)
}
