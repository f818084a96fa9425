// Package gateway is the client side of the inventory REST API.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rayaadinda/kp-inventory/internal/models"
	"github.com/rayaadinda/kp-inventory/internal/session"
)

// Gateway is what the dashboard pages need from the backend.
type Gateway interface {
	ListInventory(ctx context.Context) ([]models.InventoryItem, error)
	CreateItem(ctx context.Context, req models.CreateItemRequest) (models.InventoryItem, error)
	UpdateQuantity(ctx context.Context, id string, quantity int) (models.InventoryItem, error)
	DeleteItem(ctx context.Context, id string) error
	SubmitCheckout(ctx context.Context, req models.CheckoutRequest) (CheckoutResult, error)
	CheckoutHistory(ctx context.Context, q HistoryQuery) ([]models.CheckoutReport, error)
	ExportHistory(ctx context.Context, q HistoryQuery, format string) ([]byte, error)
	Login(ctx context.Context, email, password string) (models.LoginResponse, error)
}

// CheckoutResult is a 2xx checkout response. Success false means the
// backend refused the checkout without an error status.
type CheckoutResult struct {
	Success bool
	Message string
}

// HistoryQuery bounds the checkout history. Empty dates are unbounded;
// dates are YYYY-MM-DD.
type HistoryQuery struct {
	StartDate string
	EndDate   string
}

type Option func(*Client)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithHTTPClient swaps the transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = resty.NewWithClient(hc).SetBaseURL(c.baseURL)
	}
}

// Client implements Gateway over HTTP with a bearer token from auth.
type Client struct {
	baseURL string
	http    *resty.Client
	auth    *session.AuthContext
	log     *zap.Logger
	tracer  trace.Tracer
}

func New(baseURL string, auth *session.AuthContext, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    resty.New().SetBaseURL(baseURL).SetTimeout(30 * time.Second),
		auth:    auth,
		log:     zap.NewNop(),
		tracer:  otel.Tracer("kp-inventory/gateway"),
	}
	for _, o := range opts {
		o(c)
	}
	c.http.SetHeader("Content-Type", "application/json")
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// envelope is the {success, data, message} body. Data is decoded by callers.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (c *Client) ListInventory(ctx context.Context) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	if err := c.fetchData(ctx, "inventory.list", http.MethodGet, "/api/inventory", nil, nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.InventoryItem{}
	}
	return items, nil
}

func (c *Client) CreateItem(ctx context.Context, req models.CreateItemRequest) (models.InventoryItem, error) {
	var item models.InventoryItem
	err := c.fetchData(ctx, "inventory.create", http.MethodPost, "/api/inventory", req, nil, &item)
	return item, err
}

func (c *Client) UpdateQuantity(ctx context.Context, id string, quantity int) (models.InventoryItem, error) {
	var item models.InventoryItem
	body := models.UpdateItemRequest{Quantity: &quantity}
	err := c.fetchData(ctx, "inventory.update", http.MethodPut, "/api/inventory/"+url.PathEscape(id), body, nil, &item)
	return item, err
}

func (c *Client) DeleteItem(ctx context.Context, id string) error {
	ctx, span := c.tracer.Start(ctx, "inventory.delete", trace.WithAttributes(attribute.String("item.id", id)))
	defer span.End()

	resp, err := c.do(ctx, http.MethodDelete, "/api/inventory/"+url.PathEscape(id), nil, nil)
	if err == nil && resp.StatusCode() != http.StatusNoContent && len(resp.Body()) > 0 {
		var env envelope
		if jerr := json.Unmarshal(resp.Body(), &env); jerr != nil {
			err = &Error{Kind: InvalidResponseShape, Status: resp.StatusCode(), Err: jerr}
		} else if !env.Success {
			err = NewRejected(env.Message)
		}
	}
	return c.finish(span, err)
}

func (c *Client) SubmitCheckout(ctx context.Context, req models.CheckoutRequest) (CheckoutResult, error) {
	ctx, span := c.tracer.Start(ctx, "inventory.checkout", trace.WithAttributes(
		attribute.String("work_order", req.WorkOrderNumber),
		attribute.Int("lines", len(req.Items)),
	))
	defer span.End()

	resp, err := c.do(ctx, http.MethodPost, "/api/inventory/checkout", req, nil)
	if err != nil {
		return CheckoutResult{}, c.finish(span, err)
	}
	var env envelope
	if jerr := json.Unmarshal(resp.Body(), &env); jerr != nil {
		return CheckoutResult{}, c.finish(span, &Error{Kind: InvalidResponseShape, Status: resp.StatusCode(), Err: jerr})
	}
	span.SetAttributes(attribute.Bool("checkout.success", env.Success))
	return CheckoutResult{Success: env.Success, Message: env.Message}, nil
}

func (c *Client) CheckoutHistory(ctx context.Context, q HistoryQuery) ([]models.CheckoutReport, error) {
	params := map[string]string{}
	if q.StartDate != "" {
		params["startDate"] = q.StartDate
	}
	if q.EndDate != "" {
		params["endDate"] = q.EndDate
	}
	var reports []models.CheckoutReport
	if err := c.fetchData(ctx, "checkout.history", http.MethodGet, "/api/inventory/checkout-history", nil, params, &reports); err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []models.CheckoutReport{}
	}
	return reports, nil
}

// ExportHistory downloads the checkout history as csv or xlsx.
func (c *Client) ExportHistory(ctx context.Context, q HistoryQuery, format string) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "checkout.export", trace.WithAttributes(attribute.String("format", format)))
	defer span.End()

	params := map[string]string{"format": format}
	if q.StartDate != "" {
		params["startDate"] = q.StartDate
	}
	if q.EndDate != "" {
		params["endDate"] = q.EndDate
	}
	resp, err := c.do(ctx, http.MethodGet, "/api/inventory/checkout-history/export", nil, params)
	if err != nil {
		return nil, c.finish(span, err)
	}
	return resp.Body(), nil
}

// Login does not need a session. The caller stores the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (models.LoginResponse, error) {
	ctx, span := c.tracer.Start(ctx, "auth.login")
	defer span.End()

	var out models.LoginResponse
	resp, err := c.send(ctx, http.MethodPost, "/api/auth/login", models.LoginRequest{Email: email, Password: password}, nil, "")
	if err != nil {
		return out, c.finish(span, err)
	}
	if jerr := json.Unmarshal(resp.Body(), &out); jerr != nil {
		return out, c.finish(span, &Error{Kind: InvalidResponseShape, Status: resp.StatusCode(), Err: jerr})
	}
	if !out.Success || out.Token == "" {
		msg := out.Message
		if msg == "" {
			msg = "login failed: no token received"
		}
		return out, c.finish(span, NewRejected(msg))
	}
	return out, nil
}

// fetchData performs an authenticated call and decodes the envelope's data
// into dst.
func (c *Client) fetchData(ctx context.Context, op, method, path string, body interface{}, params map[string]string, dst interface{}) error {
	ctx, span := c.tracer.Start(ctx, op)
	defer span.End()

	resp, err := c.do(ctx, method, path, body, params)
	if err != nil {
		return c.finish(span, err)
	}
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return c.finish(span, &Error{Kind: InvalidResponseShape, Status: resp.StatusCode(), Err: err})
	}
	if !env.Success {
		return c.finish(span, NewRejected(env.Message))
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return c.finish(span, &Error{Kind: InvalidResponseShape, Status: resp.StatusCode(), Err: err})
	}
	return nil
}

// do sends an authenticated request. Without a token nothing is sent.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, params map[string]string) (*resty.Response, error) {
	token := ""
	if c.auth != nil {
		token = c.auth.Token()
	}
	if token == "" {
		return nil, &Error{Kind: AuthRequired}
	}
	return c.send(ctx, method, path, body, params, token)
}

// send performs the request and converts transport failures and non-2xx
// statuses into *Error.
func (c *Client) send(ctx context.Context, method, path string, body interface{}, params map[string]string, token string) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx)
	if token != "" {
		req.SetAuthToken(token)
	}
	if body != nil {
		req.SetBody(body)
	}
	if len(params) > 0 {
		req.SetQueryParams(params)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		c.log.Warn("gateway request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, &Error{Kind: Transport, Err: err}
	}
	c.log.Debug("gateway request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("duration", time.Since(start)))

	if err := statusError(resp.StatusCode(), resp.Body()); err != nil {
		return nil, err
	}
	return resp, nil
}

// statusError maps a non-2xx response onto the error taxonomy. A JSON body
// with a message makes the failure a rejection carrying that message.
func statusError(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	switch status {
	case http.StatusTooManyRequests:
		return &Error{Kind: RateLimited, Status: status}
	case http.StatusUnauthorized:
		return &Error{Kind: AuthRequired, Status: status}
	}
	var env struct {
		Message string `json:"message"`
	}
	parsed := json.Unmarshal(body, &env) == nil && env.Message != ""
	if status == http.StatusForbidden {
		msg := "you do not have permission to perform this action"
		if parsed {
			msg = env.Message
		}
		return &Error{Kind: Forbidden, Status: status, Message: msg}
	}
	if parsed {
		return &Error{Kind: Rejected, Status: status, Message: env.Message}
	}
	return &Error{Kind: ServerError, Status: status}
}

func (c *Client) finish(span trace.Span, err error) error {
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	var ge *Error
	if !errors.As(err, &ge) {
		return &Error{Kind: Transport, Err: err}
	}
	return err
}

var _ Gateway = (*Client)(nil)
