package openai

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
	"MarketCrew/internal/llm"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModelName = "gpt-4"
	defaultTimeout   = 60 * time.Second
	retryBaseDelay   = 500 * time.Millisecond
)

// Config 描述了调用 OpenAI Chat Completions API 所需的信息。
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
}

// Client 通过 HTTP 调用 OpenAI 提供的文本生成能力。
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxRetries  int
	httpClient  *http.Client
}

// NewClient 根据配置创建 OpenAI 客户端。
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, xerrors.New(xerrors.CodeConfigurationMissing, "未提供 OpenAI API Key")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModelName
	}

	temperature := cfg.Temperature
	if temperature < 0 || temperature > 2 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("temperature 必须位于 [0,2] 区间，当前为 %v", temperature))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Client{
		apiKey:      apiKey,
		baseURL:     baseURL,
		model:       model,
		temperature: temperature,
		maxRetries:  maxRetries,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Complete 调用模型生成一段补全文本。对限流与服务端错误做有界重试。
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	payload, err := c.buildPayload(req)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, xerrors.Wrap(xerrors.CodeTimeout, ctx.Err(), "等待重试时上下文已取消")
			case <-time.After(delay):
			}
		}

		resp, err := c.complete(ctx, payload)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !xerrors.RetryableError(err) {
			return nil, err
		}
	}
	return nil, xerrors.Wrap(xerrors.CodeRetriesExhausted, lastErr,
		fmt.Sprintf("大模型调用重试 %d 次后仍然失败", c.maxRetries))
}

func (c *Client) complete(ctx context.Context, payload []byte) (*llm.Response, error) {
	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeExecutorFailure, err, "构建 OpenAI 请求失败", xerrors.WithRetryable(false))
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) || stdErrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, xerrors.Wrap(xerrors.CodeTimeout, err, "大模型推理超时")
		}
		return nil, xerrors.Wrap(xerrors.CodeExecutorFailure, err, "请求 OpenAI 失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		message := fmt.Sprintf("OpenAI 返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return nil, xerrors.New(xerrors.CodeExecutorFailure, message)
		}
		return nil, xerrors.New(xerrors.CodeExecutorFailure, message, xerrors.WithRetryable(false))
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeExecutorFailure, err, "解析 OpenAI 响应失败", xerrors.WithRetryable(false))
	}
	if len(decoded.Choices) == 0 {
		return nil, xerrors.New(xerrors.CodeExecutorFailure, "OpenAI 响应中没有有效的 choices", xerrors.WithRetryable(false))
	}

	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return nil, xerrors.New(xerrors.CodeExecutorFailure, "OpenAI 响应内容为空", xerrors.WithRetryable(false))
	}

	return &llm.Response{Content: content}, nil
}

func (c *Client) buildPayload(req llm.Request) ([]byte, error) {
	type message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	messages := make([]message, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, message{Role: "system", Content: req.System})
	}
	messages = append(messages, message{Role: "user", Content: req.User})

	body := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": c.temperature,
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeExecutorFailure, err, "序列化 OpenAI 请求失败", xerrors.WithRetryable(false))
	}
	return encoded, nil
}

var _ llm.Client = (*Client)(nil)
