package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"
	"go.uber.org/zap"

	"ig-dashboard/internal/ig_dashboard/app"
	"ig-dashboard/internal/ig_dashboard/classifier"
	"ig-dashboard/internal/ig_dashboard/fallback"
	"ig-dashboard/internal/ig_dashboard/model"
	"ig-dashboard/internal/ig_dashboard/processor"
	"ig-dashboard/internal/ig_dashboard/secrets"
	"ig-dashboard/internal/ig_dashboard/session"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeBackend struct {
	snap     app.Snapshot
	status   app.Status
	saved    model.Credentials
	format   secrets.Format
	saveWarn *fallback.Warning
	reloads  int
	results  []secrets.KeyResult
}

func (f *fakeBackend) Snapshot() app.Snapshot { return f.snap }
func (f *fakeBackend) Status() app.Status     { return f.status }

func (f *fakeBackend) Reload(context.Context) model.Credentials {
	f.reloads++
	return model.Credentials{}
}

func (f *fakeBackend) SaveSecrets(_ context.Context, creds model.Credentials, format secrets.Format) (string, *fallback.Warning) {
	f.saved = creds
	f.format = format
	if f.saveWarn != nil {
		return "", f.saveWarn
	}
	return "/tmp/secrets.toml", nil
}

func (f *fakeBackend) TestKeys(context.Context) []secrets.KeyResult { return f.results }

type fakeModel struct{ reply string }

func (m fakeModel) Name() string { return "fake" }
func (m fakeModel) Generate(context.Context, string) (string, error) {
	return m.reply, nil
}

func demoBackend() *fakeBackend {
	svc := processor.NewService(zap.NewNop(), nil, "")
	svc.Now = func() time.Time { return testNow }
	return &fakeBackend{
		snap: app.Snapshot{
			Credentials: model.Credentials{},
			Posts:       svc,
			Classifier:  classifier.New(zap.NewNop(), nil),
		},
		status: app.Status{Missing: []string{model.KeyApifyToken, model.KeyGeminiAPIKey}, SetupNeeded: true},
	}
}

func newTestServer(b Backend) (*Server, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	s := NewServer(zap.NewNop(), b, []string{"http://localhost:3000"})
	return s, s.Router()
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	return doJSONContext(context.Background(), r, method, path, body)
}

func doJSONContext(ctx context.Context, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type loadResponse struct {
	Posts    []model.Post       `json:"posts"`
	Warnings []fallback.Warning `json:"warnings"`
	Summary  session.Summary    `json:"summary"`
	SortBy   string             `json:"sort_by"`
}

func TestHealth(t *testing.T) {
	_, r := newTestServer(demoBackend())

	w := doJSON(r, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"status":"ok"}`, w.Body.String())
}

func TestStatusReportsMissingKeys(t *testing.T) {
	_, r := newTestServer(demoBackend())

	w := doJSON(r, http.MethodGet, "/status", nil)

	var st app.Status
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, st.SetupNeeded)
	assert.Equal(t, []string{"apify_token", "gemini_api_key"}, st.Missing)
}

func TestHashtags(t *testing.T) {
	_, r := newTestServer(demoBackend())

	w := doJSON(r, http.MethodGet, "/hashtags", nil)

	var body struct {
		Presets  []processor.Preset `json:"presets"`
		All      []string           `json:"all"`
		Defaults []string           `json:"defaults"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	assert.Equal(t, 4, len(body.Presets))
	assert.Equal(t, []string{"#ui", "#design", "#tech"}, body.Defaults)
	assert.Equal(t, processor.AllHashtags(), body.All)

	processor.DefaultHashtags()[0] = "#changed"
	w = doJSON(r, http.MethodGet, "/hashtags", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	assert.Equal(t, "#ui", body.Defaults[0])
}

func TestLoadPostsDemoSortedByLikes(t *testing.T) {
	_, r := newTestServer(demoBackend())

	w := doJSON(r, http.MethodPost, "/posts/load", gin.H{
		"hashtags":    []string{"#design"},
		"time_window": "Week",
		"kind":        "All",
		"limit":       10,
	})

	var resp loadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 8, len(resp.Posts))
	assert.Equal(t, int64(2200), resp.Posts[0].Likes)
	assert.Equal(t, int64(1500), resp.Posts[7].Likes)
	assert.Equal(t, "likes", resp.SortBy)
	assert.Equal(t, 1, len(resp.Warnings))
	assert.Equal(t, 8, resp.Summary.TotalPosts)
	assert.Equal(t, "designer_7", resp.Summary.TopCreator)
}

func TestLoadPostsClampsLimit(t *testing.T) {
	_, r := newTestServer(demoBackend())

	w := doJSON(r, http.MethodPost, "/posts/load", gin.H{"time_window": "Month", "limit": 500})
	var resp loadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	// 100 条演示数据，i%30 使其全部落在 30 天内
	assert.Equal(t, 100, len(resp.Posts))

	w = doJSON(r, http.MethodPost, "/posts/load", gin.H{"time_window": "Month", "limit": 3})
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, 10, len(resp.Posts))
}

func TestLoadPostsUnknownSort(t *testing.T) {
	_, r := newTestServer(demoBackend())

	w := doJSON(r, http.MethodPost, "/posts/load", gin.H{"sort_by": "popularity"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoadPostsWithAnalysis(t *testing.T) {
	b := demoBackend()
	b.snap.Classifier = classifier.New(zap.NewNop(), fakeModel{
		reply: `{"category":"Tech","sentiment":"Neutral","engagement_prediction":"High","content_quality":90,"trending_potential":85}`,
	})
	_, r := newTestServer(b)

	w := doJSON(r, http.MethodPost, "/posts/load", gin.H{"time_window": "Today", "analyze": true})

	var resp loadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	// 默认 50 条，post_30 和 post_31 的时间与 post_0、post_1 相同
	ids := make([]string, len(resp.Posts))
	for i, p := range resp.Posts {
		ids[i] = p.ID
	}
	assert.Equal(t, []string{"post_31", "post_30", "post_1", "post_0"}, ids)
	assert.Equal(t, "Tech", resp.Posts[0].Analysis.Category)
	assert.Equal(t, 90, resp.Posts[3].Analysis.ContentQuality)

	w = doJSON(r, http.MethodPost, "/posts/load", gin.H{"time_window": "Today", "analyze": true, "limit": 10})
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, 2, len(resp.Posts))
}

// blockingScraper 第一次调用后阻塞，直到 release 关闭或 ctx 取消
type blockingScraper struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingScraper) ScrapeHashtags(ctx context.Context, _ processor.HashtagInput) ([]processor.RawItem, error) {
	if b.calls.Add(1) == 1 {
		close(b.started)
	}
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []processor.RawItem{
		{"id": "live_1", "shortCode": "L1", "likesCount": float64(10), "timestamp": testNow.Add(-time.Hour).Format(time.RFC3339)},
	}, nil
}

func TestLoadPostsSharedFetchOutlivesCancelledCaller(t *testing.T) {
	scraper := &blockingScraper{started: make(chan struct{}), release: make(chan struct{})}
	svc := processor.NewService(zap.NewNop(), scraper, "")
	svc.Now = func() time.Time { return testNow }
	b := demoBackend()
	b.snap.Posts = svc
	_, r := newTestServer(b)
	body := gin.H{"hashtags": []string{"#ui"}, "time_window": "Week", "limit": 10}

	ctxA, cancelA := context.WithCancel(context.Background())
	doneA := make(chan *httptest.ResponseRecorder, 1)
	go func() { doneA <- doJSONContext(ctxA, r, http.MethodPost, "/posts/load", body) }()
	<-scraper.started

	doneB := make(chan *httptest.ResponseRecorder, 1)
	go func() { doneB <- doJSON(r, http.MethodPost, "/posts/load", body) }()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	wA := <-doneA
	assert.Equal(t, http.StatusRequestTimeout, wA.Code)

	close(scraper.release)
	wB := <-doneB

	var resp loadResponse
	_ = json.Unmarshal(wB.Body.Bytes(), &resp)
	assert.Equal(t, http.StatusOK, wB.Code)
	assert.Equal(t, int32(1), scraper.calls.Load())
	assert.Equal(t, 0, len(resp.Warnings))
	assert.Equal(t, 1, len(resp.Posts))
	assert.Equal(t, int64(10), resp.Posts[0].Likes)
}

func TestListPostsPagination(t *testing.T) {
	_, r := newTestServer(demoBackend())
	doJSON(r, http.MethodPost, "/posts/load", gin.H{"time_window": "Month", "limit": 25})

	w := doJSON(r, http.MethodGet, "/posts?page=2&page_size=10", nil)

	var body struct {
		Total    int          `json:"total"`
		Page     int          `json:"page"`
		PageSize int          `json:"page_size"`
		Data     []model.Post `json:"data"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	assert.Equal(t, 25, body.Total)
	assert.Equal(t, 2, body.Page)
	assert.Equal(t, 10, len(body.Data))

	w = doJSON(r, http.MethodGet, "/posts?page=9", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	assert.Equal(t, 0, len(body.Data))
}

func TestSortPosts(t *testing.T) {
	_, r := newTestServer(demoBackend())
	doJSON(r, http.MethodPost, "/posts/load", gin.H{"time_window": "Week", "limit": 10})

	w := doJSON(r, http.MethodPost, "/posts/sort", gin.H{"sort_by": "Recent"})

	var resp loadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "recency", resp.SortBy)
	assert.Equal(t, "post_0", resp.Posts[0].ID)

	w = doJSON(r, http.MethodPost, "/posts/sort", gin.H{"sort_by": "rank"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/posts/sort", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEmpty(t *testing.T) {
	_, r := newTestServer(demoBackend())

	w := doJSON(r, http.MethodGet, "/metrics", nil)

	var sum session.Summary
	_ = json.Unmarshal(w.Body.Bytes(), &sum)
	assert.Equal(t, session.Summary{}, sum)
}

func TestBookmarks(t *testing.T) {
	_, r := newTestServer(demoBackend())
	doJSON(r, http.MethodPost, "/posts/load", gin.H{"time_window": "Week", "limit": 10})

	w := doJSON(r, http.MethodPost, "/bookmarks/post_2/toggle", nil)
	var toggle struct {
		ID         string `json:"id"`
		Bookmarked bool   `json:"bookmarked"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &toggle)
	assert.Equal(t, "post_2", toggle.ID)
	assert.Equal(t, true, toggle.Bookmarked)

	doJSON(r, http.MethodPost, "/bookmarks/unknown/toggle", nil)

	w = doJSON(r, http.MethodGet, "/bookmarks", nil)
	var list struct {
		IDs   []string     `json:"ids"`
		Posts []model.Post `json:"posts"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	assert.Equal(t, []string{"post_2", "unknown"}, list.IDs)
	assert.Equal(t, 1, len(list.Posts))
	assert.Equal(t, "post_2", list.Posts[0].ID)

	w = doJSON(r, http.MethodPost, "/bookmarks/post_2/toggle", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &toggle)
	assert.Equal(t, false, toggle.Bookmarked)
}

func TestSaveSecrets(t *testing.T) {
	b := demoBackend()
	_, r := newTestServer(b)

	w := doJSON(r, http.MethodPost, "/secrets", gin.H{
		"credentials": map[string]string{"APIFY_TOKEN": " tok ", "gemini_api_key": "g", "other": "x"},
		"format":      "Environment Variables (.env)",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, secrets.FormatEnv, b.format)
	assert.Equal(t, model.Credentials{"apify_token": "tok", "gemini_api_key": "g"}, b.saved)
}

func TestSaveSecretsWarning(t *testing.T) {
	b := demoBackend()
	b.saveWarn = &fallback.Warning{Source: "secrets", Message: "permission denied"}
	_, r := newTestServer(b)

	w := doJSON(r, http.MethodPost, "/secrets", gin.H{"credentials": map[string]string{"apify_token": "x"}})

	var body struct {
		Saved    bool               `json:"saved"`
		Warnings []fallback.Warning `json:"warnings"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body.Saved)
	assert.Equal(t, "permission denied", body.Warnings[0].Message)
	assert.Equal(t, secrets.FormatTOML, b.format)
}

func TestSaveSecretsBadFormat(t *testing.T) {
	_, r := newTestServer(demoBackend())

	w := doJSON(r, http.MethodPost, "/secrets", gin.H{"credentials": map[string]string{}, "format": "xml"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReloadAndTestSecrets(t *testing.T) {
	b := demoBackend()
	b.results = []secrets.KeyResult{{Provider: "Apify", Key: model.KeyApifyToken, Status: secrets.StatusNotSet}}
	_, r := newTestServer(b)

	w := doJSON(r, http.MethodPost, "/secrets/reload", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, b.reloads)

	w = doJSON(r, http.MethodGet, "/secrets/test", nil)
	var body struct {
		Results []secrets.KeyResult `json:"results"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	assert.Equal(t, secrets.StatusNotSet, body.Results[0].Status)
}

func TestFlightKeyIgnoresOrderAndCase(t *testing.T) {
	a := processor.Query{Hashtags: []string{"#UI", "#design"}, Window: processor.WindowWeek, Kind: model.KindAll, Limit: 50}
	b := processor.Query{Hashtags: []string{"#design", "#ui"}, Window: processor.WindowWeek, Kind: model.KindAll, Limit: 50}

	assert.Equal(t, flightKey(a, false), flightKey(b, false))
	assert.NotEqual(t, flightKey(a, false), flightKey(a, true))
}
