package naga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/nagabus/internal/common"
)

const (
	DefaultBaseURL = "https://naga.dmv.nico/naga_report/api"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/113.0.0.0 Safari/537.36 Edg/113.0.1774.35"
)

type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration
	Cookies map[string]string
}

// HTTPClient talks to the NAGA report site with a browser session.
type HTTPClient struct {
	http    *http.Client
	baseURL string
	siteURL string
	logger  *slog.Logger

	mu      sync.RWMutex
	cookies map[string]string
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(cfg HTTPConfig, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &HTTPClient{
		http: &http.Client{
			Timeout: timeout,
			// An expired session is answered with a redirect to the login page.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		baseURL: base,
		siteURL: strings.TrimSuffix(base, "/api"),
		logger:  logger,
	}
	c.SetCookies(cfg.Cookies)
	return c
}

func (c *HTTPClient) SetCookies(cookies map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cookies = maps.Clone(cookies)
	if c.cookies == nil {
		c.cookies = map[string]string{}
	}
}

func (c *HTTPClient) cookieHeader() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	parts := make([]string, 0, len(c.cookies))
	for _, k := range slices.Sorted(maps.Keys(c.cookies)) {
		parts = append(parts, k+"="+c.cookies[k])
	}
	return strings.Join(parts, "; "), c.cookies[common.CookieCSRFToken]
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) OrderReportList(ctx context.Context, year, month int) (OrderReportList, error) {
	q := url.Values{}
	q.Set("year", strconv.Itoa(year))
	q.Set("month", strconv.Itoa(month))
	raw, err := c.do(ctx, http.MethodGet, "/order_report_list/?"+q.Encode(), c.siteURL+"/order_report_list/", nil)
	if err != nil {
		return OrderReportList{}, err
	}
	var out OrderReportList
	if err := json.Unmarshal(raw, &out); err != nil {
		return OrderReportList{}, common.NewAppError("NAGA_DECODE", "unexpected order report list payload", err)
	}
	return out, nil
}

func (c *HTTPClient) AnalyzeTenhou(ctx context.Context, req TenhouRequest) (AnalyzeResult, error) {
	form := url.Values{}
	form.Set("haihu_id", req.HaihuID)
	form.Set("seat", strconv.Itoa(req.Seat))
	form.Set("reanalysis", "0")
	form.Set("player_type", strconv.Itoa(int(req.ModelType)))
	raw, err := c.do(ctx, http.MethodPost, "/url_analyze/", c.siteURL+"/order_form/", form)
	if err != nil {
		return AnalyzeResult{}, err
	}
	var res AnalyzeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return AnalyzeResult{}, common.NewAppError("NAGA_DECODE", "unexpected analyze response", err)
	}
	return res, nil
}

func (c *HTTPClient) AnalyzeCustom(ctx context.Context, req CustomRequest) error {
	form := url.Values{}
	form.Set("json_data", string(req.Data))
	form.Set("seat", strconv.Itoa(req.Seat))
	form.Set("game_type", strconv.Itoa(int(req.Rule)))
	form.Set("player_type", strconv.Itoa(int(req.ModelType)))
	_, err := c.do(ctx, http.MethodPost, "/custom_haihu_analyze/", c.siteURL+"/order_form/", form)
	return err
}

func (c *HTTPClient) do(ctx context.Context, method, path, referer string, form url.Values) ([]byte, error) {
	reqID := uuid.New().String()
	start := time.Now()
	cookie, csrf := c.cookieHeader()

	var body io.Reader
	if form != nil {
		if csrf == "" {
			return nil, common.NewAppError("NAGA_AUTH", "csrftoken cookie is not set", common.ErrInvalidCredentials)
		}
		form.Set("csrfmiddlewaretoken", csrf)
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		c.logger.Error("naga.http.build_request_error", "req_id", reqID, "error", err)
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", referer)
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-CSRFToken", csrf)
	}

	c.logger.Debug("naga.http.request", "req_id", reqID, "method", method, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("naga.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s %s: %v", common.ErrTransientNetwork, method, path, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("naga.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	c.logger.Info("naga.http.response",
		"req_id", reqID,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", common.ErrTransientNetwork, err)
	}
	return raw, classify(resp.StatusCode)
}

func classify(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status >= 300 && status < 400, status == http.StatusUnauthorized, status == http.StatusForbidden:
		return common.NewAppError("NAGA_AUTH", fmt.Sprintf("session rejected (status %d), refresh the cookies", status), common.ErrInvalidCredentials)
	case status >= 500, status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: naga answered %d", common.ErrTransientNetwork, status)
	default:
		return common.UpstreamRejected(fmt.Sprintf("naga answered %d", status))
	}
}

// IsInvalidCredentials reports whether err means the session cookies must be refreshed.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, common.ErrInvalidCredentials)
}
