package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agrimarket/agrimarket-backend/pkg/config"
	pkgerrors "github.com/agrimarket/agrimarket-backend/pkg/errors"
	"github.com/agrimarket/agrimarket-backend/pkg/logger"
)

const (
	initializePath  = "/transaction/initialize"
	maxResponseBody = 1 << 20
)

var (
	errSecretKeyRequired = errors.New("paystack secret key is required")
	errBaseURLRequired   = errors.New("paystack base url is required")
)

// InitializeRequest is the body of POST /transaction/initialize. Amount is in
// minor units.
type InitializeRequest struct {
	Amount      int64  `json:"amount"`
	Email       string `json:"email"`
	CallbackURL string `json:"callback_url,omitempty"`
	Reference   string `json:"reference"`
}

// InitializeData is the data block of a successful initialization.
type InitializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type initializeResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    *InitializeData `json:"data"`
}

// Initializer is the surface the payment service depends on.
type Initializer interface {
	InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeData, error)
}

// Client talks to the Paystack REST API.
type Client struct {
	http      *http.Client
	baseURL   string
	secretKey string
	logger    *logger.Logger
}

// Option customises the client.
type Option func(*Client)

// WithHTTPClient swaps the transport, e.g. for an httptest server.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// NewClient validates the credentials and builds a client with the configured timeout.
func NewClient(cfg config.PaystackConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	secret := strings.TrimSpace(cfg.SecretKey)
	if secret == "" {
		return nil, errSecretKeyRequired
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errBaseURLRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   base,
		secretKey: secret,
		logger:    logg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// InitializeTransaction asks Paystack for a hosted checkout URL.
func (c *Client) InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeData, error) {
	if req.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if strings.TrimSpace(req.Reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode paystack request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+initializePath, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build paystack request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	c.log(ctx, "request", "initialize_transaction", map[string]any{
		"reference": req.Reference,
		"amount":    req.Amount,
		"email":     req.Email,
	})

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.log(ctx, "error", "initialize_transaction", map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paystack initialize transaction failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read paystack response")
	}

	var decoded initializeResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(decoded.Message)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		c.log(ctx, "error", "initialize_transaction", map[string]any{"status": resp.StatusCode, "error": msg})
		return nil, pkgerrors.Newf(domainCodeForStatus(resp.StatusCode), "paystack initialize transaction failed: %s", msg).
			WithDetails(map[string]any{"status": resp.StatusCode})
	}
	if decodeErr != nil {
		c.log(ctx, "error", "initialize_transaction", map[string]any{"error": decodeErr.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, decodeErr, "decode paystack response")
	}
	if !decoded.Status || decoded.Data == nil || decoded.Data.AuthorizationURL == "" {
		c.log(ctx, "error", "initialize_transaction", map[string]any{"error": decoded.Message})
		return nil, pkgerrors.Newf(pkgerrors.CodeDependency, "paystack rejected transaction: %s", decoded.Message)
	}
	if decoded.Data.Reference == "" {
		decoded.Data.Reference = req.Reference
	}

	c.log(ctx, "response", "initialize_transaction", map[string]any{
		"reference":   decoded.Data.Reference,
		"access_code": decoded.Data.AccessCode,
	})
	return decoded.Data, nil
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("paystack %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("paystack %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"access_code", "secret", "email", "phone", "authorization"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return pkgerrors.CodeValidation
	default:
		return pkgerrors.CodeDependency
	}
}
