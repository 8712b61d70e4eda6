package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	xerrors "MarketCrew/internal/errors"
	"MarketCrew/internal/tool"
)

const (
	toolName        = "scrape_website"
	defaultMaxRunes = 8000
	userAgent       = "MarketCrew/1.0 (+research pipeline)"
)

// Config 描述网页抓取工具的行为。
type Config struct {
	Timeout    time.Duration
	MaxRetries int
	MaxRunes   int
}

// Scraper 抓取指定 URL 的页面并抽取正文文本，供研究智能体阅读一手资料。
type Scraper struct {
	timeout    time.Duration
	maxRetries int
	maxRunes   int
}

// NewScraper 创建抓取工具。
func NewScraper(cfg Config) *Scraper {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	maxRunes := cfg.MaxRunes
	if maxRunes <= 0 {
		maxRunes = defaultMaxRunes
	}
	return &Scraper{
		timeout:    timeout,
		maxRetries: cfg.MaxRetries,
		maxRunes:   maxRunes,
	}
}

// Name 返回工具名称。
func (s *Scraper) Name() string { return toolName }

// Description 返回提供给模型的工具签名说明。
func (s *Scraper) Description() string {
	return "Read the full text content of a web page. Input: a single absolute http(s) URL. " +
		"Output: the extracted page text, truncated when the page is very long."
}

// Invoke 抓取一个页面。URL 非法属于不可重试错误；网络与服务端故障按策略重试。
func (s *Scraper) Invoke(ctx context.Context, input string) (string, error) {
	target, err := parseTarget(input)
	if err != nil {
		return "", tool.Failure(toolName, err)
	}
	return tool.Retry(ctx, toolName, s.maxRetries, func(ctx context.Context) (string, error) {
		return s.scrape(ctx, target)
	})
}

func parseTarget(input string) (string, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "抓取目标 URL 不能为空")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeInvalidArgument, err, "抓取目标不是合法的 URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("不支持的 URL scheme: %q", parsed.Scheme))
	}
	if parsed.Host == "" {
		return "", xerrors.New(xerrors.CodeInvalidArgument, "抓取目标缺少主机名")
	}
	return parsed.String(), nil
}

func (s *Scraper) scrape(ctx context.Context, target string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", xerrors.Wrap(xerrors.CodeTimeout, err, "抓取前上下文已取消")
	}

	collector := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.MaxDepth(1),
	)
	collector.SetRequestTimeout(s.timeout)

	var (
		body     []byte
		visitErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	collector.OnError(func(r *colly.Response, err error) {
		visitErr = classify(r, err)
	})

	if err := collector.Visit(target); err != nil && visitErr == nil {
		visitErr = classify(nil, err)
	}
	collector.Wait()

	if visitErr != nil {
		return "", visitErr
	}
	if len(body) == 0 {
		return "", xerrors.New(xerrors.CodeExecutorFailure, "页面响应为空", xerrors.WithRetryable(false))
	}

	text, err := extractText(body)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", xerrors.New(xerrors.CodeExecutorFailure, "页面中没有可抽取的正文", xerrors.WithRetryable(false))
	}
	return s.truncate(text), nil
}

// classify 将抓取失败归类为可重试或不可重试。限流与服务端错误可重试，
// 客户端错误（被拒绝、页面不存在）不可重试。
func classify(r *colly.Response, err error) error {
	if r != nil && r.StatusCode > 0 {
		message := fmt.Sprintf("抓取返回错误状态 %d", r.StatusCode)
		if r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= http.StatusInternalServerError {
			return xerrors.Wrap(xerrors.CodeExecutorFailure, err, message)
		}
		return xerrors.Wrap(xerrors.CodeExecutorFailure, err, message, xerrors.WithRetryable(false))
	}
	return xerrors.Wrap(xerrors.CodeExecutorFailure, err, "抓取页面失败")
}

// extractText 去掉脚本、样式与导航等噪音节点后抽取正文文本。
func extractText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeExecutorFailure, err, "解析页面 HTML 失败", xerrors.WithRetryable(false))
	}

	doc.Find("script, style, noscript, iframe, nav, header, footer, aside").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	return strings.Join(strings.Fields(root.Text()), " "), nil
}

func (s *Scraper) truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= s.maxRunes {
		return text
	}
	return string(runes[:s.maxRunes]) + " …[truncated]"
}

var _ tool.Invoker = (*Scraper)(nil)
