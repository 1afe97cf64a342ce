package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"ig-dashboard/internal/ig_dashboard/model"
	"ig-dashboard/internal/ig_dashboard/secrets"
)

// waitForFinishSeconds 服务端最长阻塞等待 run 结束的秒数（Apify 上限 60）
const waitForFinishSeconds = 60

// Apify run 状态
const (
	runSucceeded = "SUCCEEDED"
	runFailed    = "FAILED"
	runAborted   = "ABORTED"
	runTimedOut  = "TIMED-OUT"
)

// ErrNoToken 缺少 apify_token 时无法创建客户端
var ErrNoToken = errors.New("apify token not configured")

// ApifyClient 调用 Apify actor 并读取其默认 dataset
type ApifyClient struct {
	Log          *zap.Logger
	HTTPClient   *http.Client
	BaseURL      string
	Token        string
	Actor        string
	PollInterval time.Duration
	PageSize     int
}

// ProxyInput actor 输入中的代理设置
type ProxyInput struct {
	UseApifyProxy bool     `json:"useApifyProxy"`
	ProxyURLs     []string `json:"proxyUrls"`
}

// HashtagInput instagram-hashtag-scraper 的输入
type HashtagInput struct {
	Hashtags      []string    `json:"hashtags"`
	ResultsLimit  int         `json:"resultsLimit"`
	SearchType    string      `json:"searchType"`
	AddParentData bool        `json:"addParentData"`
	DateFrom      string      `json:"dateFrom"`
	Proxy         *ProxyInput `json:"proxy,omitempty"`
}

type actorRun struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

type runEnvelope struct {
	Data actorRun `json:"data"`
}

// APIError Apify 返回的非 2xx 响应
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("apify returned status %d: %.300s", e.StatusCode, e.Body)
}

// NewApifyClient token 为空或 baseURL 非法时返回错误
func NewApifyClient(log *zap.Logger, httpClient *http.Client, baseURL, token, actor string, poll time.Duration, pageSize int) (*ApifyClient, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid apify base url %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if poll <= 0 {
		poll = 5 * time.Second
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	return &ApifyClient{
		Log:          log,
		HTTPClient:   httpClient,
		BaseURL:      strings.TrimRight(baseURL, "/"),
		Token:        token,
		Actor:        actor,
		PollInterval: poll,
		PageSize:     pageSize,
	}, nil
}

// ScrapeHashtags 提交一次 actor run，等待结束后遍历结果集
func (c *ApifyClient) ScrapeHashtags(ctx context.Context, input HashtagInput) ([]RawItem, error) {
	run, err := c.startRun(ctx, input)
	if err != nil {
		return nil, err
	}

	c.Log.Info("Actor run started",
		zap.String("actor", c.Actor),
		zap.String("runId", run.ID),
		zap.Strings("hashtags", input.Hashtags),
		zap.Int("resultsLimit", input.ResultsLimit),
	)

	run, err = c.waitForRun(ctx, run)
	if err != nil {
		return nil, err
	}

	return c.datasetItems(ctx, run.DefaultDatasetID)
}

func (c *ApifyClient) startRun(ctx context.Context, input HashtagInput) (actorRun, error) {
	actorID := strings.ReplaceAll(c.Actor, "/", "~")
	q := url.Values{}
	q.Set("waitForFinish", strconv.Itoa(waitForFinishSeconds))

	var env runEnvelope
	if err := c.do(ctx, c.Token, http.MethodPost, "/v2/acts/"+url.PathEscape(actorID)+"/runs", q, input, &env); err != nil {
		return actorRun{}, fmt.Errorf("start actor run: %w", err)
	}
	if env.Data.ID == "" {
		return actorRun{}, errors.New("start actor run: response has no run id")
	}
	return env.Data, nil
}

func (c *ApifyClient) getRun(ctx context.Context, runID string) (actorRun, error) {
	q := url.Values{}
	q.Set("waitForFinish", strconv.Itoa(waitForFinishSeconds))

	var env runEnvelope
	if err := c.do(ctx, c.Token, http.MethodGet, "/v2/actor-runs/"+url.PathEscape(runID), q, nil, &env); err != nil {
		return actorRun{}, fmt.Errorf("get actor run: %w", err)
	}
	return env.Data, nil
}

// waitForRun 轮询直到 run 进入终态；只受 ctx 约束，不设最大次数
func (c *ApifyClient) waitForRun(ctx context.Context, run actorRun) (actorRun, error) {
	for attempt := 1; ; attempt++ {
		switch run.Status {
		case runSucceeded:
			if run.DefaultDatasetID == "" {
				return run, errors.New("actor run finished without a dataset")
			}
			return run, nil
		case runFailed, runAborted, runTimedOut:
			return run, fmt.Errorf("actor run %s finished with status %s", run.ID, run.Status)
		}

		c.Log.Debug("Actor run in progress",
			zap.String("runId", run.ID),
			zap.String("status", run.Status),
			zap.Int("attempt", attempt),
			zap.Duration("delay", c.PollInterval),
		)

		timer := time.NewTimer(c.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return run, ctx.Err()
		case <-timer.C:
		}

		next, err := c.getRun(ctx, run.ID)
		if err != nil {
			return run, err
		}
		if next.ID == "" {
			next.ID = run.ID
		}
		run = next
	}
}

// datasetItems 分页读取 dataset，直到某页不足 PageSize
func (c *ApifyClient) datasetItems(ctx context.Context, datasetID string) ([]RawItem, error) {
	var all []RawItem
	path := "/v2/datasets/" + url.PathEscape(datasetID) + "/items"

	for offset := 0; ; offset += c.PageSize {
		q := url.Values{}
		q.Set("format", "json")
		q.Set("clean", "true")
		q.Set("offset", strconv.Itoa(offset))
		q.Set("limit", strconv.Itoa(c.PageSize))

		var page []RawItem
		if err := c.do(ctx, c.Token, http.MethodGet, path, q, nil, &page); err != nil {
			return nil, fmt.Errorf("read dataset %s: %w", datasetID, err)
		}
		all = append(all, page...)

		c.Log.Debug("Fetched dataset page",
			zap.String("datasetId", datasetID),
			zap.Int("offset", offset),
			zap.Int("items", len(page)),
		)

		if len(page) < c.PageSize {
			return all, nil
		}
	}
}

// do 构建请求、执行并把 JSON 响应解码到 out
func (c *ApifyClient) do(ctx context.Context, token, method, path string, query url.Values, body any, out any) error {
	return doApify(ctx, c.HTTPClient, c.BaseURL, token, method, path, query, body, out)
}

func doApify(ctx context.Context, client *http.Client, baseURL, token, method, path string, query url.Values, body any, out any) error {
	u := baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// TokenChecker 用 /v2/users/me 验证 Apify token
type TokenChecker struct {
	HTTPClient *http.Client
	BaseURL    string
}

func (TokenChecker) Provider() string      { return "Apify" }
func (TokenChecker) CredentialKey() string { return model.KeyApifyToken }

// Check 200 为有效；其他 HTTP 状态视为凭据无效；网络错误原样返回
func (t TokenChecker) Check(ctx context.Context, token string) error {
	client := t.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	err := doApify(ctx, client, strings.TrimRight(t.BaseURL, "/"), token, http.MethodGet, "/v2/users/me", nil, nil, nil)

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %s", secrets.ErrInvalidCredential, apiErr.Error())
	}
	return err
}
