package services

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

	"github.com/chachabrian/propnest-backend/internal/config"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// GatewayOrder is the order descriptor returned by the payment gateway.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Gateway registers payment orders with an external provider.
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*GatewayOrder, error)
}

var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// RazorpayGateway talks to the Razorpay orders API.
type RazorpayGateway struct {
	keyID      string
	keySecret  string
	baseURL    string
	maxRetries int
	client     *http.Client
	log        logrus.FieldLogger
}

type razorpayOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func NewRazorpayGateway(cfg config.PaymentConfig, log logrus.FieldLogger) *RazorpayGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RazorpayGateway{
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: timeout},
		log:        log,
	}
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*GatewayOrder, error) {
	body, err := json.Marshal(razorpayOrderRequest{Amount: amount, Currency: currency, Receipt: receipt})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
		}

		order, retry, err := g.createOrderOnce(ctx, body)
		if err == nil {
			g.log.WithFields(logrus.Fields{
				"order_id": order.ID,
				"receipt":  receipt,
				"amount":   amount,
			}).Info("gateway order created")
			return order, nil
		}
		lastErr = err
		if !retry {
			break
		}
		g.log.WithFields(logrus.Fields{"attempt": attempt + 1, "key_id": maskKey(g.keyID)}).
			WithError(err).Warn("gateway order attempt failed")
	}
	return nil, lastErr
}

// createOrderOnce performs a single request. retry reports whether the
// failure is worth another attempt.
func (g *RazorpayGateway) createOrderOnce(ctx context.Context, body []byte) (order *GatewayOrder, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, true, err
	}

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var gwErr razorpayError
		if json.Unmarshal(payload, &gwErr) == nil && gwErr.Error.Description != "" {
			return nil, false, fmt.Errorf("razorpay error %s: %s", gwErr.Error.Code, gwErr.Error.Description)
		}
		return nil, false, fmt.Errorf("razorpay error: status %d", resp.StatusCode)
	}

	var out GatewayOrder
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, false, fmt.Errorf("decode razorpay order: %w", err)
	}
	if out.ID == "" {
		return nil, false, errors.New("razorpay returned an order without id")
	}
	return &out, false, nil
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:8] + "****"
}

// FixtureGateway hands out canned orders without any network call.
type FixtureGateway struct{}

func (FixtureGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string) (*GatewayOrder, error) {
	return &GatewayOrder{
		ID:       "order_fixture_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}
