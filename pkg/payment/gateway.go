package payment

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

	"github.com/shopspring/decimal"
)

var (
	// ErrTransferFailed means the transfer definitely did not happen and may be retried.
	ErrTransferFailed = errors.New("transfer failed")
	// ErrStatusUnknown means the transfer may or may not have happened.
	ErrStatusUnknown = errors.New("transfer status unknown")
)

// Transfer states reported by the payment service.
const (
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusPending   = "PENDING"
)

// TransferRequest describes one value transfer.
type TransferRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Source         string          `json:"source"`
	Destination    string          `json:"destination"`
	Authorization  string          `json:"authorization,omitempty"`
	Memo           string          `json:"memo,omitempty"`
	IdempotencyKey string          `json:"-"`
}

// TransferResult is what the payment service reports for a key.
type TransferResult struct {
	Status         string `json:"status"`
	TransactionRef string `json:"transaction_ref"`
	Reason         string `json:"reason,omitempty"`
}

// Gateway is the capability services depend on.
type Gateway interface {
	Transfer(ctx context.Context, req TransferRequest) (string, error)
	Status(ctx context.Context, idempotencyKey string) (TransferResult, error)
}

// Config configures HTTPGateway.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPGateway talks to the transfer service over JSON/HTTP.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPGateway builds a gateway client. A nil client uses a dedicated http.Client.
func NewHTTPGateway(cfg Config, client *http.Client) *HTTPGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		client:  client,
	}
}

// Transfer executes req and returns the transaction reference.
// Deadline, transport and 5xx outcomes map to ErrStatusUnknown; 4xx and explicit failures to ErrTransferFailed.
func (g *HTTPGateway) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	if req.IdempotencyKey == "" {
		return "", fmt.Errorf("%w: idempotency key required", ErrTransferFailed)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %v", ErrTransferFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/transfers", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrTransferFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	g.authorize(httpReq)

	result, err := g.do(httpReq)
	if err != nil {
		return "", err
	}
	return settle(result)
}

// Status asks the payment service what happened to the transfer identified by idempotencyKey.
func (g *HTTPGateway) Status(ctx context.Context, idempotencyKey string) (TransferResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/transfers/"+url.PathEscape(idempotencyKey), nil)
	if err != nil {
		return TransferResult{}, fmt.Errorf("%w: build request: %v", ErrStatusUnknown, err)
	}
	g.authorize(httpReq)

	result, err := g.do(httpReq)
	if err != nil {
		return TransferResult{}, err
	}
	return result, nil
}

func (g *HTTPGateway) authorize(req *http.Request) {
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
}

func (g *HTTPGateway) do(req *http.Request) (TransferResult, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return TransferResult{}, fmt.Errorf("%w: %v", ErrStatusUnknown, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return TransferResult{}, fmt.Errorf("%w: read response: %v", ErrStatusUnknown, err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return TransferResult{}, fmt.Errorf("%w: upstream status %d", ErrStatusUnknown, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return TransferResult{}, fmt.Errorf("%w: upstream status %d: %s", ErrTransferFailed, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result TransferResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return TransferResult{}, fmt.Errorf("%w: decode response: %v", ErrStatusUnknown, err)
	}
	return result, nil
}

func settle(result TransferResult) (string, error) {
	switch strings.ToUpper(result.Status) {
	case StatusSucceeded:
		if result.TransactionRef == "" {
			return "", fmt.Errorf("%w: success without transaction reference", ErrStatusUnknown)
		}
		return result.TransactionRef, nil
	case StatusFailed:
		return "", fmt.Errorf("%w: %s", ErrTransferFailed, result.Reason)
	default:
		return "", fmt.Errorf("%w: transfer %s", ErrStatusUnknown, strings.ToLower(result.Status))
	}
}
