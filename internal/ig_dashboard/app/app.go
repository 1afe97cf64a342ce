package app

import (
	"context"
	"net/http"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"ig-dashboard/internal/ig_dashboard/classifier"
	"ig-dashboard/internal/ig_dashboard/fallback"
	"ig-dashboard/internal/ig_dashboard/model"
	"ig-dashboard/internal/ig_dashboard/processor"
	"ig-dashboard/internal/ig_dashboard/secrets"
	"ig-dashboard/pkg/config"
)

// App 持有凭据和由凭据构造出的各个客户端。
// Reload 会整体替换这些客户端，读取时使用 Snapshot。
type App struct {
	Log        *zap.Logger
	Config     *config.Config
	Resolver   *secrets.Resolver
	Writer     *secrets.Writer
	HTTPClient *http.Client

	// 以下构造函数可在测试中替换
	NewScraper    func(creds model.Credentials) (processor.Scraper, error)
	NewClassifier func(ctx context.Context, creds model.Credentials) *classifier.Classifier
	Checkers      []secrets.Checker

	reloadMu sync.Mutex
	mu       sync.RWMutex
	creds    model.Credentials
	posts    *processor.Service
	ai       *classifier.Classifier
}

// Snapshot 某一时刻的凭据和客户端
type Snapshot struct {
	Credentials model.Credentials
	Posts       *processor.Service
	Classifier  *classifier.Classifier
}

// Status 供前端展示的服务状态和缺失的必需凭据
type Status struct {
	Scraping    bool            `json:"scraping_available"`
	AI          bool            `json:"ai_available"`
	AIModel     string          `json:"ai_model,omitempty"`
	Configured  map[string]bool `json:"configured"`
	Missing     []string        `json:"missing"`
	SetupNeeded bool            `json:"setup_needed"`
}

// BuildSources 按优先级排列的凭据来源：托管目录、托管 Mongo、环境变量(.env)、secrets.toml、config.yaml
func BuildSources(cfg *config.Config, hosted *mongo.Collection) []secrets.Source {
	sources := []secrets.Source{
		secrets.DirSource{Dir: cfg.Hosted.Dir},
	}
	if hosted != nil {
		sources = append(sources, secrets.MongoSource{Coll: hosted})
	}
	return append(sources,
		secrets.EnvSource{DotEnvFile: cfg.Secrets.EnvFile},
		secrets.TOMLFileSource{Path: cfg.Secrets.SecretsFile},
		secrets.YAMLFileSource{Path: cfg.Secrets.ConfigFile},
	)
}

func New(log *zap.Logger, cfg *config.Config, resolver *secrets.Resolver) *App {
	httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}
	a := &App{
		Log:      log,
		Config:   cfg,
		Resolver: resolver,
		Writer: &secrets.Writer{
			Log:         log,
			SecretsFile: cfg.Secrets.SecretsFile,
			EnvFile:     cfg.Secrets.EnvFile,
			ConfigFile:  cfg.Secrets.ConfigFile,
		},
		HTTPClient: httpClient,
		Checkers: []secrets.Checker{
			processor.TokenChecker{HTTPClient: httpClient, BaseURL: cfg.Apify.BaseURL},
			classifier.GeminiChecker{},
			classifier.OpenAIChecker{},
		},
	}
	a.NewScraper = a.newApifyScraper
	a.NewClassifier = a.newClassifier
	return a
}

func (a *App) newApifyScraper(creds model.Credentials) (processor.Scraper, error) {
	c, err := processor.NewApifyClient(a.Log, a.HTTPClient, a.Config.Apify.BaseURL, creds.Value(model.KeyApifyToken),
		a.Config.Apify.Actor, a.Config.Apify.PollInterval, a.Config.Apify.PageSize)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (a *App) newClassifier(ctx context.Context, creds model.Credentials) *classifier.Classifier {
	return classifier.FromCredentials(ctx, a.Log, creds, classifier.Settings{
		GeminiModel: a.Config.AI.GeminiModel,
		OpenAIModel: a.Config.AI.OpenAIModel,
	})
}

// Reload 重新解析凭据并重建抓取客户端和分类器
func (a *App) Reload(ctx context.Context) model.Credentials {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	creds := a.Resolver.Resolve(ctx)

	scraper, err := a.NewScraper(creds)
	if err != nil {
		a.Log.Warn("Scraping client unavailable, demo data will be used", zap.Error(err))
	}
	posts := processor.NewService(a.Log, scraper, creds.Value(model.KeyProxyURL))
	ai := a.NewClassifier(ctx, creds)

	a.mu.Lock()
	a.creds = creds
	a.posts = posts
	a.ai = ai
	a.mu.Unlock()

	a.Log.Info("Clients rebuilt",
		zap.Bool("scraping", scraper != nil),
		zap.Bool("ai", ai.Available()),
	)
	return creds
}

func (a *App) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	creds := make(model.Credentials, len(a.creds))
	for k, v := range a.creds {
		creds[k] = v
	}
	return Snapshot{
		Credentials: creds,
		Posts:       a.posts,
		Classifier:  a.ai,
	}
}

func (a *App) Status() Status {
	snap := a.Snapshot()

	st := Status{
		Scraping:   snap.Posts != nil && snap.Posts.Scraper != nil,
		AI:         snap.Classifier.Available(),
		Configured: make(map[string]bool, len(model.CredentialKeys)),
		Missing:    []string{},
	}
	if st.AI {
		st.AIModel = snap.Classifier.Model.Name()
	}
	for _, key := range model.CredentialKeys {
		_, ok := snap.Credentials.Get(key)
		st.Configured[key] = ok
	}
	for _, key := range model.RequiredKeys {
		if !st.Configured[key] {
			st.Missing = append(st.Missing, key)
		}
	}
	st.SetupNeeded = len(st.Missing) > 0
	return st
}

// SaveSecrets 写入本地文件后重新加载；写入失败只返回 Warning，已有凭据保持不变
func (a *App) SaveSecrets(ctx context.Context, creds model.Credentials, format secrets.Format) (string, *fallback.Warning) {
	path, err := a.Writer.Save(creds, format)
	if err != nil {
		return "", &fallback.Warning{Source: "secrets", Message: err.Error()}
	}
	a.Reload(ctx)
	return path, nil
}

// TestKeys 用当前凭据逐个验证
func (a *App) TestKeys(ctx context.Context) []secrets.KeyResult {
	return secrets.TestKeys(ctx, a.Log, a.Snapshot().Credentials, a.Checkers)
}
