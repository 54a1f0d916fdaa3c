package source

import (
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
)

const (
	DefaultStrategyTimeout = 8 * time.Second
	DefaultMinBodySize     = 50
	DefaultUserAgent       = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// Больше этого мы из ленты не читаем
	maxBodySize = 10 << 20
)

var ErrEmptyResponse = errors.New("empty response")

// Strategy это один способ достать тело ленты
type Strategy interface {
	Name() string
	Retrieve(ctx context.Context, target string) ([]byte, error)
}

// Прямой запрос с браузерным user agent, часть источников режет стандартные агенты
type DirectStrategy struct {
	UserAgent string
	Client    *http.Client
}

func (s DirectStrategy) Name() string {
	return "direct"
}

func (s DirectStrategy) Retrieve(ctx context.Context, target string) ([]byte, error) {
	ua := s.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	return get(ctx, s.Client, target, map[string]string{
		"User-Agent": ua,
		"Accept":     "application/rss+xml, application/xml, text/xml, */*",
	})
}

// ProxyStrategy ходит за лентой через внешний прокси.
// В шаблоне {url} заменяется на экранированный адрес ленты, {raw} на адрес как есть.
// Если задан JSONField, тело ленты лежит в этом поле json ответа.
type ProxyStrategy struct {
	Label     string
	Template  string
	JSONField string
	Client    *http.Client
}

// ParseProxy разбирает строку конфига вида "name|template" или "name|template|json_field"
func ParseProxy(spec string) (ProxyStrategy, error) {
	parts := strings.Split(spec, "|")
	if len(parts) < 2 || len(parts) > 3 {
		return ProxyStrategy{}, fmt.Errorf("invalid proxy %q, expected name|template[|json_field]", spec)
	}

	p := ProxyStrategy{
		Label:    strings.TrimSpace(parts[0]),
		Template: strings.TrimSpace(parts[1]),
	}
	if len(parts) == 3 {
		p.JSONField = strings.TrimSpace(parts[2])
	}

	if !strings.Contains(p.Template, "{url}") && !strings.Contains(p.Template, "{raw}") {
		return ProxyStrategy{}, fmt.Errorf("proxy %q template has no {url} or {raw} placeholder", p.Label)
	}

	return p, nil
}

func (s ProxyStrategy) Name() string {
	return s.Label
}

func (s ProxyStrategy) Retrieve(ctx context.Context, target string) ([]byte, error) {
	proxied := strings.NewReplacer(
		"{url}", url.QueryEscape(target),
		"{raw}", target,
	).Replace(s.Template)

	body, err := get(ctx, s.Client, proxied, nil)
	if err != nil {
		return nil, err
	}

	if s.JSONField == "" {
		return body, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode proxy envelope: %w", err)
	}

	var contents string
	if err := json.Unmarshal(envelope[s.JSONField], &contents); err != nil {
		return nil, fmt.Errorf("proxy field %q: %w", s.JSONField, err)
	}

	return []byte(contents), nil
}

func get(ctx context.Context, client *http.Client, target string, headers map[string]string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}

// Retriever по очереди пробует стратегии, пока одна не вернет непустое тело
type Retriever struct {
	strategies  []Strategy
	timeout     time.Duration
	minBodySize int
	now         func() time.Time
}

func NewRetriever(timeout time.Duration, minBodySize int, strategies ...Strategy) *Retriever {
	if timeout <= 0 {
		timeout = DefaultStrategyTimeout
	}
	if minBodySize <= 0 {
		minBodySize = DefaultMinBodySize
	}

	return &Retriever{
		strategies:  strategies,
		timeout:     timeout,
		minBodySize: minBodySize,
		now:         time.Now,
	}
}

func (r *Retriever) Retrieve(ctx context.Context, feedURL string) ([]byte, error) {
	if len(r.strategies) == 0 {
		return nil, errors.New("no retrieval strategies configured")
	}

	target := withCacheBuster(feedURL, r.now())

	var lastErr error
	for _, strategy := range r.strategies {
		body, err := r.try(ctx, strategy, target)
		if err == nil {
			return body, nil
		}

		// Отмена всего прохода, а не таймаут одной стратегии
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = fmt.Errorf("%s: %w", strategy.Name(), err)
	}

	return nil, fmt.Errorf("all strategies failed, last error: %v", lastErr)
}

func (r *Retriever) try(ctx context.Context, strategy Strategy, target string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := strategy.Retrieve(ctx, target)
	if err != nil {
		return nil, err
	}

	if len(strings.TrimSpace(string(body))) < r.minBodySize {
		return nil, ErrEmptyResponse
	}

	return body, nil
}

func withCacheBuster(feedURL string, now time.Time) string {
	separator := "?"
	if strings.Contains(feedURL, "?") {
		separator = "&"
	}
	return feedURL + separator + "t=" + strconv.FormatInt(now.UnixMilli(), 10)
}
