package api

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"ig-dashboard/internal/ig_dashboard/app"
	"ig-dashboard/internal/ig_dashboard/fallback"
	"ig-dashboard/internal/ig_dashboard/model"
	"ig-dashboard/internal/ig_dashboard/processor"
	"ig-dashboard/internal/ig_dashboard/secrets"
	"ig-dashboard/internal/ig_dashboard/session"
	"ig-dashboard/internal/middleware/logger"
)

// 加载条数范围（与原界面滑块一致）
const (
	minLimit = 10
	maxLimit = 100

	defaultPageSize = 20
	maxPageSize     = 100
)

// loadTimeout 一次共享抓取的上限，不随任何单个请求取消
const loadTimeout = 10 * time.Minute

// Backend 凭据与客户端的持有者，由 *app.App 实现
type Backend interface {
	Snapshot() app.Snapshot
	Status() app.Status
	Reload(ctx context.Context) model.Credentials
	SaveSecrets(ctx context.Context, creds model.Credentials, format secrets.Format) (string, *fallback.Warning)
	TestKeys(ctx context.Context) []secrets.KeyResult
}

type Server struct {
	Log          *zap.Logger
	Backend      Backend
	Session      *session.Store
	AllowOrigins []string

	// mu 串行化所有会话修改
	mu    sync.Mutex
	loads singleflight.Group
}

func NewServer(log *zap.Logger, backend Backend, allowOrigins []string) *Server {
	return &Server{
		Log:          log,
		Backend:      backend,
		Session:      session.NewStore(),
		AllowOrigins: allowOrigins,
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(logger.GinLogger(s.Log), logger.GinRecovery(s.Log))
	r.Use(cors.New(cors.Config{
		AllowOrigins: s.AllowOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	r.GET("/health", s.health)
	r.GET("/status", s.status)
	r.GET("/hashtags", s.hashtags)

	r.POST("/posts/load", s.loadPosts)
	r.GET("/posts", s.listPosts) // ?page=1&page_size=20
	r.POST("/posts/sort", s.sortPosts)
	r.GET("/metrics", s.metrics)

	r.GET("/bookmarks", s.listBookmarks)
	r.POST("/bookmarks/:id/toggle", s.toggleBookmark)

	r.POST("/secrets", s.saveSecrets)
	r.POST("/secrets/reload", s.reloadSecrets)
	r.GET("/secrets/test", s.testSecrets)
	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.Backend.Status())
}

func (s *Server) hashtags(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"presets":  processor.Presets(),
		"all":      processor.AllHashtags(),
		"defaults": processor.DefaultHashtags(),
	})
}

// ---------------- 帖子 ----------------

type loadRequest struct {
	Hashtags   []string `json:"hashtags"`
	TimeWindow string   `json:"time_window"`
	Kind       string   `json:"kind"`
	SortBy     string   `json:"sort_by"`
	Limit      int      `json:"limit"`
	Analyze    bool     `json:"analyze"`
}

type loadResult struct {
	Posts    []model.Post
	Warnings []fallback.Warning
}

// normalize 填充默认值；sort_by 无法识别时返回错误
func (r *loadRequest) normalize() (processor.Query, session.SortBy, error) {
	by := session.SortLikes
	if r.SortBy != "" {
		v, err := session.ParseSortBy(r.SortBy)
		if err != nil {
			return processor.Query{}, "", err
		}
		by = v
	}

	hashtags := processor.NormalizeHashtags(r.Hashtags)
	if len(hashtags) == 0 {
		hashtags = processor.DefaultHashtags()
	}

	window := processor.WindowMonth
	if r.TimeWindow != "" {
		window = processor.ParseTimeWindow(r.TimeWindow)
	}

	limit := r.Limit
	if limit == 0 {
		limit = processor.DefaultLimit
	}
	limit = min(max(limit, minLimit), maxLimit)

	return processor.Query{
		Hashtags: hashtags,
		Window:   window,
		Kind:     model.ParsePostKind(r.Kind),
		Limit:    limit,
	}, by, nil
}

// flightKey 过滤条件相同的并发请求共享一次抓取
func flightKey(q processor.Query, analyze bool) string {
	tags := make([]string, len(q.Hashtags))
	for i, h := range q.Hashtags {
		tags[i] = strings.ToLower(h)
	}
	sort.Strings(tags)
	return fmt.Sprintf("%s|%s|%s|%d|%t", strings.Join(tags, ","), q.Window, q.Kind, q.Limit, analyze)
}

func (s *Server) loadPosts(c *gin.Context) {
	var req loadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	q, by, err := req.normalize()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	ch := s.loads.DoChan(flightKey(q, req.Analyze), func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return s.fetch(flightCtx, q, req.Analyze), nil
	})

	var res loadResult
	select {
	case <-ctx.Done():
		// 调用方已断开，结果留给同一 flight 的其他请求
		s.Log.Info("Load request cancelled", zap.Strings("hashtags", q.Hashtags), zap.Error(ctx.Err()))
		c.AbortWithStatus(http.StatusRequestTimeout)
		return
	case r := <-ch:
		res = r.Val.(loadResult)
		if r.Shared {
			s.Log.Debug("Load request shared", zap.Strings("hashtags", q.Hashtags))
		}
	}

	s.mu.Lock()
	s.Session.SetResults(res.Posts)
	_ = s.Session.Sort(by)
	posts := s.Session.Results()
	summary := s.Session.Summary()
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"posts":    posts,
		"warnings": res.Warnings,
		"summary":  summary,
		"sort_by":  by,
	})
}

func (s *Server) fetch(ctx context.Context, q processor.Query, analyze bool) loadResult {
	snap := s.Backend.Snapshot()
	if snap.Posts == nil {
		snap.Posts = processor.NewService(s.Log, nil, "")
	}

	posts, warnings := snap.Posts.Fetch(ctx, q)
	if analyze && snap.Classifier != nil {
		var more []fallback.Warning
		posts, more = snap.Classifier.Enrich(ctx, posts)
		warnings = append(warnings, more...)
	}
	return loadResult{Posts: posts, Warnings: warnings}
}

func (s *Server) listPosts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}

	s.mu.Lock()
	all := s.Session.Results()
	s.mu.Unlock()

	start := min((page-1)*size, len(all))
	end := min(start+size, len(all))
	c.JSON(http.StatusOK, gin.H{
		"total":     len(all),
		"page":      page,
		"page_size": size,
		"data":      all[start:end],
	})
}

type sortRequest struct {
	SortBy string `json:"sort_by" binding:"required"`
}

func (s *Server) sortPosts(c *gin.Context) {
	var req sortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	by, err := session.ParseSortBy(req.SortBy)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	_ = s.Session.Sort(by)
	posts := s.Session.Results()
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"sort_by": by, "posts": posts})
}

func (s *Server) metrics(c *gin.Context) {
	s.mu.Lock()
	summary := s.Session.Summary()
	s.mu.Unlock()

	c.JSON(http.StatusOK, summary)
}

// ---------------- 书签 ----------------

func (s *Server) listBookmarks(c *gin.Context) {
	s.mu.Lock()
	ids := s.Session.Bookmarks()
	posts := s.Session.BookmarkedPosts()
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"ids": ids, "posts": posts})
}

func (s *Server) toggleBookmark(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	on := s.Session.ToggleBookmark(id)
	count := len(s.Session.Bookmarks())
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"id": id, "bookmarked": on, "count": count})
}

// ---------------- 凭据 ----------------

type saveSecretsRequest struct {
	Credentials map[string]string `json:"credentials" binding:"required"`
	Format      string            `json:"format"`
}

func (s *Server) saveSecrets(c *gin.Context) {
	var req saveSecretsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	format := secrets.FormatTOML
	if req.Format != "" {
		f, err := secrets.ParseFormat(req.Format)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		format = f
	}

	creds := model.Credentials{}
	for k, v := range req.Credentials {
		key := strings.ToLower(strings.TrimSpace(k))
		for _, known := range model.CredentialKeys {
			if key == known {
				creds[key] = strings.TrimSpace(v)
			}
		}
	}

	path, w := s.Backend.SaveSecrets(c.Request.Context(), creds, format)
	warnings := []fallback.Warning{}
	if w != nil {
		warnings = append(warnings, *w)
	}
	c.JSON(http.StatusOK, gin.H{
		"saved":    w == nil,
		"path":     path,
		"warnings": warnings,
		"status":   s.Backend.Status(),
	})
}

func (s *Server) reloadSecrets(c *gin.Context) {
	s.Backend.Reload(c.Request.Context())
	c.JSON(http.StatusOK, s.Backend.Status())
}

func (s *Server) testSecrets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"results": s.Backend.TestKeys(c.Request.Context())})
}
