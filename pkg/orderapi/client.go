// Package orderapi is the HTTP client for the remote order service.
//
// Failures come back as one of three kinds: *errs.TransportError when the
// service could not be reached or answered with something unreadable,
// *errs.NotFoundError for an unknown order, and *errs.ApplicationError when
// the service answered with success=false. Only transport-level failures
// count against the circuit breaker.
package orderapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"

	"julianmorley.ca/con-plar/petstore/pkg/errs"
	"julianmorley.ca/con-plar/petstore/pkg/global"
	"julianmorley.ca/con-plar/petstore/pkg/models"
)

const circuitName = "OrderAPI"

var errServerStatus = errors.New("order service returned a server error")

type Config struct {
	BaseURL string
	Timeout time.Duration
	// Service labels breaker metrics.
	Service string
}

type Client struct {
	http    *resty.Client
	breaker *CircuitBreaker
}

// envelope covers every response shape the order service sends.
type envelope struct {
	Success     bool           `json:"success"`
	Message     string         `json:"message"`
	OrderNumber int            `json:"orderNumber"`
	OrderID     string         `json:"order_id"`
	Order       *models.Order  `json:"order"`
	Orders      []models.Order `json:"orders"`
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = global.DefaultOrderAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = global.DefaultOrderAPITimeout
	}
	if cfg.Service == "" {
		cfg.Service = "storefront"
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &Client{
		http:    httpClient,
		breaker: NewCircuitBreaker(circuitName, cfg.Service),
	}
}

// CircuitState reports the breaker state name.
func (c *Client) CircuitState() string {
	return c.breaker.GetState()
}

// CreateOrder submits order. A returned response always has Success set.
func (c *Client) CreateOrder(ctx context.Context, order models.Order) (*models.CreateOrderResponse, error) {
	const op = "create order"

	resp, err := c.do(ctx, op, func(r *resty.Request) (*resty.Response, error) {
		return r.SetHeader("Content-Type", "application/json").
			SetBody(order).
			Post("/orders")
	})
	if err != nil {
		return nil, err
	}

	env, err := decode(op, resp)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"order_number": order.OrderNumber,
		"order_id":     env.OrderID,
	}).Info("Order accepted by order service")

	number := env.OrderNumber
	if number == 0 {
		number = order.OrderNumber
	}
	return &models.CreateOrderResponse{
		Success:     true,
		OrderNumber: number,
		OrderID:     env.OrderID,
		Message:     env.Message,
	}, nil
}

func (c *Client) GetOrder(ctx context.Context, orderNumber int) (*models.Order, error) {
	const op = "get order"

	resp, err := c.do(ctx, op, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("orderNumber", strconv.Itoa(orderNumber)).
			Get("/orders/{orderNumber}")
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, &errs.NotFoundError{Resource: "order", ID: strconv.Itoa(orderNumber)}
	}

	env, err := decode(op, resp)
	if err != nil {
		return nil, err
	}
	if env.Order == nil {
		return nil, &errs.TransportError{Op: op, Cause: errors.New("response has no order")}
	}
	return env.Order, nil
}

// GetOrdersByUser lists the orders placed by userID in the order the service
// returns them.
func (c *Client) GetOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	const op = "get orders by user"

	resp, err := c.do(ctx, op, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("userId", userID).
			Get("/orders/user/{userId}")
	})
	if err != nil {
		return nil, err
	}

	env, err := decode(op, resp)
	if err != nil {
		return nil, err
	}
	return nonNil(env.Orders), nil
}

// GetAllOrders lists every order the service holds.
func (c *Client) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	const op = "get all orders"

	resp, err := c.do(ctx, op, func(r *resty.Request) (*resty.Response, error) {
		return r.Get("/orders")
	})
	if err != nil {
		return nil, err
	}

	env, err := decode(op, resp)
	if err != nil {
		return nil, err
	}
	return nonNil(env.Orders), nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, orderNumber int, status string) error {
	const op = "update order status"

	resp, err := c.do(ctx, op, func(r *resty.Request) (*resty.Response, error) {
		return r.SetHeader("Content-Type", "application/json").
			SetPathParam("orderNumber", strconv.Itoa(orderNumber)).
			SetBody(models.UpdateOrderStatusRequest{Status: status}).
			Patch("/orders/{orderNumber}/status")
	})
	if err != nil {
		return err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return &errs.NotFoundError{Resource: "order", ID: strconv.Itoa(orderNumber)}
	}

	_, err = decode(op, resp)
	return err
}

// do sends one request through the breaker. Network errors and 5xx answers
// trip it; a 5xx response is still handed back so its message can surface.
func (c *Client) do(ctx context.Context, op string, send func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := send(c.http.R().SetContext(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return resp, errServerStatus
		}
		return resp, nil
	})

	resp, _ := out.(*resty.Response)
	if err != nil && resp == nil {
		log.WithError(err).WithField("op", op).Error("Order service unreachable")
		return nil, &errs.TransportError{Op: op, Cause: formatError(circuitName, err)}
	}
	return resp, nil
}

// decode reads the response envelope. Unreadable bodies are transport
// failures; readable ones that are not a success are application failures.
func decode(op string, resp *resty.Response) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		log.WithFields(log.Fields{
			"op":     op,
			"status": resp.StatusCode(),
		}).WithError(err).Error("Unreadable order service response")
		return nil, &errs.TransportError{
			Op:    op,
			Cause: fmt.Errorf("decode response (status %d): %w", resp.StatusCode(), err),
		}
	}

	if !resp.IsSuccess() || !env.Success {
		log.WithFields(log.Fields{
			"op":      op,
			"status":  resp.StatusCode(),
			"message": env.Message,
		}).Warn("Order service rejected request")
		return nil, &errs.ApplicationError{
			Op:         op,
			StatusCode: resp.StatusCode(),
			Message:    env.Message,
		}
	}
	return &env, nil
}

func nonNil(orders []models.Order) []models.Order {
	if orders == nil {
		return []models.Order{}
	}
	return orders
}
