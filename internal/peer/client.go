// Package peer forwards sync requests to an independently keyed gateway
// deployment, signing each request with that deployment's cipher material.
package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/utafrali/EcommerceGo/authgateway/internal/cipher"
	"github.com/utafrali/EcommerceGo/authgateway/internal/guard"
	apperrors "github.com/utafrali/EcommerceGo/authgateway/pkg/errors"
	"github.com/utafrali/EcommerceGo/authgateway/pkg/httpclient"
)

// SyncPathPrefix is where the peer accepts sync requests.
const SyncPathPrefix = "/api/v1/sync/"

const maxResponseBytes = 4 << 20

var resourcePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// Doer sends a request. *httpclient.CircuitBreakerClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Config is the peer deployment's address and key material.
type Config struct {
	BaseURL      string
	CipherKey    string
	CipherIV     string
	SharedSecret string
}

// Client pushes resources to the peer deployment.
type Client struct {
	http   Doer
	cfg    Config
	logger *slog.Logger
}

// NewClient creates a peer client.
func NewClient(doer Doer, cfg Config, logger *slog.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{http: doer, cfg: cfg, logger: logger}
}

// Sync posts body to the peer's sync endpoint for resource and returns the
// peer's response body.
func (c *Client) Sync(ctx context.Context, resource string, body json.RawMessage) (json.RawMessage, error) {
	if !resourcePattern.MatchString(resource) {
		return nil, apperrors.InvalidInput("invalid sync resource")
	}
	if !json.Valid(body) {
		return nil, apperrors.InvalidInput("request body must be valid JSON")
	}

	path := SyncPathPrefix + resource
	payload, err := c.payloadFor(path, http.MethodPost)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("build peer request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(guard.HeaderPayload, payload)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		if errors.Is(err, httpclient.ErrCircuitOpen) {
			return nil, apperrors.Unavailable("peer deployment unavailable", err)
		}
		return nil, apperrors.BadGateway("peer deployment unreachable", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := httpclient.ParseResponseError(resp, "peer")
		c.logger.WarnContext(ctx, "peer sync rejected",
			slog.String("resource", resource),
			slog.Int("status", resp.StatusCode),
			slog.String("error", perr.Error()),
		)
		return nil, perr
	}
	defer func() { _ = resp.Body.Close() }()

	out, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperrors.BadGateway("read peer response", err)
	}
	if len(out) == 0 {
		out = []byte("null")
	}

	c.logger.InfoContext(ctx, "peer sync forwarded",
		slog.String("resource", resource),
		slog.Int("status", resp.StatusCode),
	)
	return out, nil
}

// payloadFor builds the signed-payload header the peer expects for a request
// to path with method, encrypted with the peer's key and IV.
func (c *Client) payloadFor(path, method string) (string, error) {
	return cipher.EncryptWith(path+method+c.cfg.SharedSecret, c.cfg.CipherKey, c.cfg.CipherIV)
}
