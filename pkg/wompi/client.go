// Package wompi talks to the Wompi payment processor: bearer token grants,
// hosted payment link creation, and signature verification for the webhook
// and redirect trust paths.
package wompi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/basalto/pkg/config"
)

const userAgent = "Basalto/1.0"

// APIError is a failed call to the processor, carrying the upstream HTTP
// status and response body so callers can surface a distinguishable
// payment-provider error.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wompi %s: %d: %s", e.Op, e.Status, e.Body)
}

type Client struct {
	cfg    *config.WompiConfig
	http   *http.Client
	cache  TokenCache
	logger *zap.Logger
	now    func() time.Time
}

func NewClient(cfg *config.WompiConfig, cache TokenCache, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// GetToken returns a bearer token, reusing the cached one until 30 seconds
// before expiry. No automatic retry: a failed grant fails the call.
func (c *Client) GetToken(ctx context.Context) (string, error) {
	tok, err := c.cache.Get(ctx)
	if err != nil {
		c.logger.Warn("Token cache read failed", zap.Error(err))
	} else if tok.Usable(c.now()) {
		return tok.Value, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"audience":      {c.cfg.Audience},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{Op: "token", Status: resp.StatusCode, Body: string(body)}
	}

	var grant struct {
		AccessToken string          `json:"access_token"`
		ExpiresIn   json.RawMessage `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &grant); err != nil {
		return "", &APIError{Op: "token", Status: resp.StatusCode, Body: string(body)}
	}
	if grant.AccessToken == "" {
		return "", &APIError{Op: "token", Status: resp.StatusCode, Body: string(body)}
	}

	expiresIn := parseExpiresIn(grant.ExpiresIn)
	fresh := &Token{
		Value:     grant.AccessToken,
		ExpiresAt: c.now().Add(time.Duration(expiresIn) * time.Second),
	}
	if err := c.cache.Put(ctx, fresh); err != nil {
		c.logger.Warn("Token cache write failed", zap.Error(err))
	}

	return fresh.Value, nil
}

// CreatePaymentLink requests a hosted payment link for the order. On any
// non-success status, or a success without a link URL in the response, the
// returned error is an *APIError.
func (c *Client) CreatePaymentLink(ctx context.Context, orderNumber string, amount decimal.Decimal, successURL, webhookURL string) (string, error) {
	token, err := c.GetToken(ctx)
	if err != nil {
		return "", err
	}

	payload := map[string]interface{}{
		"identificadorEnlaceComercio": orderNumber,
		"monto":                       amount.InexactFloat64(),
		"nombreProducto":              fmt.Sprintf("BASALTO · Orden %s", orderNumber),
		"configuracion": map[string]string{
			"urlRedirect": successURL,
			"urlWebhook":  webhookURL,
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode payment link payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.APIBase, "/")+"/EnlacePago", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to build payment link request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("payment link request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{Op: "payment_link", Status: resp.StatusCode, Body: string(body)}
	}

	var link struct {
		URLEnlace    string `json:"urlEnlace"`
		URLEnlaceAlt string `json:"UrlEnlace"`
	}
	if err := json.Unmarshal(body, &link); err != nil {
		return "", &APIError{Op: "payment_link", Status: resp.StatusCode, Body: string(body)}
	}

	u := link.URLEnlace
	if u == "" {
		u = link.URLEnlaceAlt
	}
	if u == "" {
		return "", &APIError{Op: "payment_link", Status: resp.StatusCode, Body: string(body)}
	}
	return u, nil
}

// Ping hits the application endpoint with a fresh token; used by health
// tooling to confirm credentials.
func (c *Client) Ping(ctx context.Context) (int, string, error) {
	token, err := c.GetToken(ctx)
	if err != nil {
		return 0, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(c.cfg.APIBase, "/")+"/Aplicativo", nil)
	if err != nil {
		return 0, "", fmt.Errorf("failed to build ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("ping request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body), nil
}

func parseExpiresIn(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 3600
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var v int64
		if _, err := fmt.Sscan(s, &v); err == nil && v > 0 {
			return v
		}
	}
	return 3600
}
