package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/counseldesk/gateway/pkg/logger"
)

// KeyModeAlways attaches the API key to every call; KeyModeHostSuffix
// only to targets whose host ends in the configured suffix.
const (
	KeyModeAlways     = "always"
	KeyModeHostSuffix = "host-suffix"
)

type Options struct {
	APIKey        string
	APIKeyHeader  string
	KeyMode       string
	KeyHostSuffix string
}

// Client performs single JSON-over-HTTP calls with a hard per-call
// timeout. It never retries; retry policy belongs to the caller.
type Client struct {
	httpClient    *http.Client
	apiKey        string
	apiKeyHeader  string
	keyMode       string
	keyHostSuffix string
}

func NewClient(opts Options) *Client {
	header := opts.APIKeyHeader
	if header == "" {
		header = "X-API-Key"
	}
	mode := opts.KeyMode
	if mode == "" {
		mode = KeyModeAlways
	}

	return &Client{
		// Per-call deadlines come from the context; the client itself
		// carries no global timeout.
		httpClient:    &http.Client{},
		apiKey:        opts.APIKey,
		apiKeyHeader:  header,
		keyMode:       mode,
		keyHostSuffix: opts.KeyHostSuffix,
	}
}

// Call POSTs payload as JSON to targetURL and returns the decoded body.
// A response that is a JSON array collapses to its first element, since
// some upstreams wrap a single logical result in an array; a bare object
// passes through unchanged.
func (c *Client) Call(ctx context.Context, targetURL string, payload any, timeout time.Duration) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.shouldAttachKey(targetURL) {
		req.Header.Set(c.apiKeyHeader, c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, &TimeoutError{Target: targetURL, Timeout: timeout}
		}
		return nil, &TransportError{Target: targetURL, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, &TimeoutError{Target: targetURL, Timeout: timeout}
		}
		return nil, &TransportError{Target: targetURL, Err: err}
	}

	if resp.StatusCode >= 400 {
		logger.Warn("Upstream returned non-success status",
			zap.String("target", targetURL),
			zap.Int("status", resp.StatusCode),
		)
	}

	logger.Debug("Upstream call completed",
		zap.String("target", targetURL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	return normalize(targetURL, raw)
}

// normalize decodes the body into the canonical shape downstream
// components consume: a single JSON object.
func normalize(target string, raw []byte) (map[string]any, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &ProtocolError{Target: target, Err: fmt.Errorf("invalid JSON body: %w", err)}
	}

	switch v := decoded.(type) {
	case map[string]any:
		return v, nil
	case []any:
		if len(v) == 0 {
			return nil, &ProtocolError{Target: target, Err: errors.New("empty array response")}
		}
		obj, ok := v[0].(map[string]any)
		if !ok {
			return nil, &ProtocolError{Target: target, Err: errors.New("array response does not contain an object")}
		}
		return obj, nil
	default:
		return nil, &ProtocolError{Target: target, Err: fmt.Errorf("unexpected response shape %T", decoded)}
	}
}

func (c *Client) shouldAttachKey(targetURL string) bool {
	if c.apiKey == "" {
		return false
	}
	if c.keyMode == KeyModeAlways {
		return true
	}
	if c.keyHostSuffix == "" {
		return false
	}

	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Hostname(), c.keyHostSuffix)
}
