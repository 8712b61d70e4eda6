package serper

import (
	"bytes"
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	xerrors "MarketCrew/internal/errors"
	"MarketCrew/internal/tool"
)

const (
	defaultEndpoint   = "https://google.serper.dev/search"
	defaultMaxResults = 5
	toolName          = "web_search"
)

// Config 描述调用 Serper 搜索服务所需的信息。
type Config struct {
	APIKey     string
	Endpoint   string
	MaxResults int
	Timeout    time.Duration
	MaxRetries int
}

// Search 通过 Serper.dev 提供网页搜索能力，输入查询词，输出带链接的结果摘要。
type Search struct {
	apiKey     string
	endpoint   string
	maxResults int
	maxRetries int
	httpClient *http.Client
}

// NewSearch 根据配置创建搜索工具。
func NewSearch(cfg Config) (*Search, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, xerrors.New(xerrors.CodeConfigurationMissing, "未提供 Serper API Key")
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &Search{
		apiKey:     apiKey,
		endpoint:   endpoint,
		maxResults: maxResults,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Name 返回工具名称。
func (s *Search) Name() string { return toolName }

// Description 返回提供给模型的工具签名说明。
func (s *Search) Description() string {
	return "Search the web for recent news, articles and reports. Input: a search query string. " +
		"Output: a ranked list of result titles, links and snippets."
}

// Invoke 执行一次搜索。瞬时故障在内部按策略重试，重试耗尽返回 TOOL_FAILURE。
func (s *Search) Invoke(ctx context.Context, input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return "", tool.Failure(toolName, xerrors.New(xerrors.CodeInvalidArgument, "搜索查询不能为空"))
	}
	return tool.Retry(ctx, toolName, s.maxRetries, func(ctx context.Context) (string, error) {
		return s.search(ctx, query)
	})
}

func (s *Search) search(ctx context.Context, query string) (string, error) {
	payload, err := json.Marshal(map[string]any{"q": query, "num": s.maxResults})
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeExecutorFailure, err, "序列化搜索请求失败", xerrors.WithRetryable(false))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeExecutorFailure, err, "构建搜索请求失败", xerrors.WithRetryable(false))
	}
	httpReq.Header.Set("X-API-KEY", s.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) || stdErrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", xerrors.Wrap(xerrors.CodeTimeout, err, "搜索请求超时")
		}
		return "", xerrors.Wrap(xerrors.CodeExecutorFailure, err, "搜索请求失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		message := fmt.Sprintf("搜索服务返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return "", xerrors.New(xerrors.CodeExecutorFailure, message)
		}
		return "", xerrors.New(xerrors.CodeExecutorFailure, message, xerrors.WithRetryable(false))
	}

	var decoded struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", xerrors.Wrap(xerrors.CodeExecutorFailure, err, "解析搜索响应失败", xerrors.WithRetryable(false))
	}
	if len(decoded.Organic) == 0 {
		return "No search results found.", nil
	}

	var builder strings.Builder
	for idx, item := range decoded.Organic {
		if idx >= s.maxResults {
			break
		}
		fmt.Fprintf(&builder, "%d. %s\n   %s\n   %s\n", idx+1,
			strings.TrimSpace(item.Title),
			strings.TrimSpace(item.Link),
			strings.TrimSpace(item.Snippet),
		)
	}
	return strings.TrimRight(builder.String(), "\n"), nil
}

var _ tool.Invoker = (*Search)(nil)
