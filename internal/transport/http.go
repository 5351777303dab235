package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/scouter-ml/scouter/internal/types"
	"go.uber.org/zap"
)

// TokenSource fetches a fresh bearer token, used to refresh the HTTP
// transport's credential on a 401, per spec.md §4.B.
type TokenSource func(ctx context.Context) (string, error)

// HTTPPublisher posts ServerRecords batches to a /drift route with a
// JWT bearer token, refreshing once on 401, grounded on
// original_source/crates/scouter_client/src/http/client.rs.
type HTTPPublisher struct {
	client      *http.Client
	baseURL     string
	tokenSource TokenSource
	log         *zap.Logger

	mu    sync.Mutex
	token string
}

// NewHTTPPublisher builds an HTTP transport publisher. timeout defaults to
// 60s per spec.md §5 when zero.
func NewHTTPPublisher(baseURL string, timeout time.Duration, ts TokenSource, log *zap.Logger) *HTTPPublisher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPPublisher{
		client:      &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		tokenSource: ts,
		log:         log,
	}
}

func (p *HTTPPublisher) currentToken(ctx context.Context, forceRefresh bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && !forceRefresh && !jwtExpired(p.token) {
		return p.token, nil
	}
	tok, err := p.tokenSource(ctx)
	if err != nil {
		return "", fmt.Errorf("transport: http: fetching token: %w", err)
	}
	p.token = tok
	return tok, nil
}

func jwtExpired(token string) bool {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	_, _, err := parser.ParseUnverified(token, claims)
	if err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Now().After(exp.Time)
}

func (p *HTTPPublisher) Publish(ctx context.Context, records types.ServerRecords) error {
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("transport: http: marshal: %w", err)
	}

	resp, err := p.doPost(ctx, body, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		resp, err = p.doPost(ctx, body, true)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
	}

	if resp.StatusCode >= 300 {
		return fmt.Errorf("transport: http: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (p *HTTPPublisher) doPost(ctx context.Context, body []byte, forceRefresh bool) (*http.Response, error) {
	token, err := p.currentToken(ctx, forceRefresh)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/drift", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transport: http: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: http: request failed: %w", err)
	}
	return resp, nil
}

func (p *HTTPPublisher) Flush(_ context.Context) error { return nil }
func (p *HTTPPublisher) Close() error                  { return nil }
