package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/posync/pkg/errors"
	"github.com/google/uuid"
)

const (
	batchPathFormat          = "api/1.0/extern/tenants/%s/purchase-orders/batch"
	headerTenantKey          = "PDPTenantKey"
	headerTenantSecret       = "PDPTenantSecret"
	headerRequestID          = "X-Request-Id"
	errorBodyReadLimit int64 = 4096
	bodyReadLimit      int64 = 8 << 20

	// DefaultDuplicateCode is the error code the portal uses for an already registered order.
	DefaultDuplicateCode = "PURCHASE_ORDER_DUPLICATED"
	// DefaultTimeout bounds one batch call when no timeout is configured.
	DefaultTimeout = 5 * time.Minute
)

var errBaseURLRequired = errors.New("portal base url is required")

// Client submits purchase order batches to the vendor portal.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	duplicateCodes map[string]struct{}
	newRequestID   func() string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured portal base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithDuplicateCodes replaces the error codes recognized as duplicate-order conflicts.
func WithDuplicateCodes(codes ...string) Option {
	return func(c *Client) {
		set := make(map[string]struct{}, len(codes))
		for _, code := range codes {
			if trimmed := strings.ToUpper(strings.TrimSpace(code)); trimmed != "" {
				set[trimmed] = struct{}{}
			}
		}
		if len(set) > 0 {
			c.duplicateCodes = set
		}
	}
}

// WithRequestIDFunc overrides the X-Request-Id generator.
func WithRequestIDFunc(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newRequestID = fn
		}
	}
}

// NewClient builds a portal client. The HTTP client carries no timeout of its own; callers
// bound each submission through the context.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	client := &Client{
		baseURL:        strings.TrimSpace(baseURL),
		httpClient:     &http.Client{},
		duplicateCodes: map[string]struct{}{DefaultDuplicateCode: {}},
		newRequestID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.baseURL == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.Parse(client.baseURL); err != nil {
		return nil, fmt.Errorf("parse portal base url: %w", err)
	}
	return client, nil
}

// SubmitBatch posts orders as one request. Failures are *pkgerrors.Error values coded
// CodeTimeout, CodeNetwork, CodeDuplicate or CodeRemote; the last two wrap an *APIError.
func (c *Client) SubmitBatch(ctx context.Context, creds Credentials, orders []PurchaseOrder) (*BatchResponse, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "portal client not configured")
	}
	if strings.TrimSpace(creds.TenantID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "portal tenant id is required")
	}
	if len(orders) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch has no orders")
	}

	payload, err := json.Marshal(orders)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal purchase order batch")
	}

	requestID := c.newRequestID()
	endpoint := c.buildURL(fmt.Sprintf(batchPathFormat, url.PathEscape(creds.TenantID)))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build batch request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(headerTenantKey, creds.APIKey)
	httpReq.Header.Set(headerTenantSecret, creds.APISecret)
	httpReq.Header.Set(headerRequestID, requestID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		apiErr := newAPIError(resp.StatusCode, raw)
		if c.isDuplicate(apiErr) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDuplicate, apiErr, "portal reported a duplicated order").
				WithDetails(map[string]any{"external_id": apiErr.DuplicateExternalID, "request_id": requestID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeRemote, apiErr, "portal rejected batch").
			WithDetails(map[string]any{"status": resp.StatusCode, "request_id": requestID})
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, bodyReadLimit))
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	out := &BatchResponse{StatusCode: resp.StatusCode, RequestID: requestID}
	if len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		// A 2xx with an unreadable body is still an acknowledgement of the whole batch.
		out.OrdersStatus = nil
		out.AckID = ""
	}
	return out, nil
}

func (c *Client) isDuplicate(apiErr *APIError) bool {
	if apiErr.StatusCode != http.StatusConflict {
		return false
	}
	if _, ok := c.duplicateCodes[strings.ToUpper(apiErr.Code)]; !ok {
		return false
	}
	id, ok := parseDuplicatedExternalID(apiErr.Description)
	if !ok {
		id, ok = parseDuplicatedExternalID(apiErr.Body)
	}
	if !ok {
		return false
	}
	apiErr.DuplicateExternalID = id
	return true
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, "portal request timed out")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, "portal request timed out")
	}
	if ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, "portal request timed out")
	}
	return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "portal request failed")
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
