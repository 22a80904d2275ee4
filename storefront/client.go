package storefront

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

	"github.com/yeremiapane/cloud-kitchen/models"
	"github.com/yeremiapane/cloud-kitchen/services"
)

const defaultHTTPTimeout = 10 * time.Second

// envelope mirrors utils.JSONResponse.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// OrderDetail is what the tracking endpoint returns.
type OrderDetail struct {
	models.Order
	Items []models.OrderLineView `json:"items"`
}

// Client talks to the cloud kitchen HTTP API on behalf of a customer.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: defaultHTTPTimeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, headers map[string]string) (int, *envelope, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return resp.StatusCode, nil, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return resp.StatusCode, &env, nil
}

// get fetches path and decodes the envelope data into out. A 404 maps to notFound.
func (c *Client) get(ctx context.Context, op, path string, notFound error, out interface{}) error {
	code, env, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return &models.ReadError{Op: op, Err: err}
	}
	switch {
	case code == http.StatusNotFound && notFound != nil:
		return notFound
	case code != http.StatusOK:
		return &models.ReadError{Op: op, Err: fmt.Errorf("status %d: %s", code, env.Message)}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &models.ReadError{Op: op, Err: err}
	}
	return nil
}

func (c *Client) Menu(ctx context.Context) ([]models.MenuItem, error) {
	var items []models.MenuItem
	if err := c.get(ctx, "list menu", "/menu", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) MenuItem(ctx context.Context, id uint) (*models.MenuItem, error) {
	var item models.MenuItem
	if err := c.get(ctx, "get menu item", fmt.Sprintf("/menu/%d", id), models.ErrMenuItemNotFound, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := c.get(ctx, "get order", fmt.Sprintf("/orders/%d", orderID), models.ErrOrderNotFound, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) GetOrderLines(ctx context.Context, orderID uint) ([]models.OrderLineView, error) {
	var lines []models.OrderLineView
	if err := c.get(ctx, "get order lines", fmt.Sprintf("/orders/%d/lines", orderID), models.ErrOrderNotFound, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// TrackOrder looks an order up by display id, with or without the leading '#'.
func (c *Client) TrackOrder(ctx context.Context, displayID string) (*OrderDetail, error) {
	displayID = strings.TrimPrefix(strings.TrimSpace(displayID), "#")
	var detail OrderDetail
	if err := c.get(ctx, "track order", "/track/"+url.PathEscape(displayID), models.ErrOrderNotFound, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// CustomerOrders lists a guest's orders; scope is active, history or all.
func (c *Client) CustomerOrders(ctx context.Context, guestID, scope string) ([]models.Order, error) {
	q := url.Values{}
	q.Set("guest_id", guestID)
	if scope != "" {
		q.Set("scope", scope)
	}
	var orders []models.Order
	if err := c.get(ctx, "list customer orders", "/orders?"+q.Encode(), nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Submit posts a checkout. Transport failures come back as an aborted WriteError so the
// caller keeps its cart and may retry with the same idempotency key.
func (c *Client) Submit(ctx context.Context, req services.CheckoutRequest) services.CheckoutResult {
	headers := map[string]string{}
	if req.IdempotencyKey != "" {
		headers["Idempotency-Key"] = req.IdempotencyKey
	}

	code, env, err := c.do(ctx, http.MethodPost, "/checkout", req, headers)
	if err != nil {
		return services.CheckoutResult{
			Outcome: services.CheckoutAborted,
			Err:     &models.WriteError{Op: "submit checkout", Err: err},
		}
	}

	var res services.CheckoutResult
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &res); err != nil {
			return services.CheckoutResult{
				Outcome: services.CheckoutAborted,
				Err:     &models.WriteError{Op: "submit checkout", Err: err},
			}
		}
	}

	switch {
	case code == http.StatusOK || code == http.StatusCreated:
		res.Outcome = services.CheckoutCommitted
		return res
	case code == http.StatusBadGateway:
		res.Outcome = services.CheckoutHeaderOnlyOrphan
		res.Err = &models.WriteError{Op: "insert order lines", Err: errors.New(env.Message)}
		return res
	case code == http.StatusBadRequest:
		res.Outcome = services.CheckoutAborted
		res.Err = &models.ValidationError{Field: "checkout", Message: env.Message}
		return res
	case code == http.StatusNotFound:
		res.Outcome = services.CheckoutAborted
		res.Err = fmt.Errorf("%w: %s", models.ErrMenuItemNotFound, env.Message)
		return res
	default:
		res.Outcome = services.CheckoutAborted
		res.Err = &models.WriteError{Op: "submit checkout", Err: fmt.Errorf("status %d: %s", code, env.Message)}
		return res
	}
}
