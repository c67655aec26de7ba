// Package payments talks to the Square REST API for the lifetime upgrade checkout.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"charteye/pkg/charteye"
	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL = "https://connect.squareupsandbox.com/v2"
	squareVersion  = "2023-12-13"
	productName    = "ChartEye Lifetime Access"
	supportEmail   = "support@tradertools.com"
	maxErrorBody   = 64 << 10
)

// LifetimePrice is the upgrade price in USD.
var LifetimePrice = decimal.RequireFromString("20.00")

// Config configures the Square client.
type Config struct {
	AccessToken string
	LocationID  string
	BaseURL     string
	AppURL      string
	Currency    string
	Price       decimal.Decimal
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Square is a charteye.PaymentProvider backed by Square payment links and orders.
type Square struct {
	token      string
	locationID string
	baseURL    string
	appURL     string
	currency   string
	price      decimal.Decimal
	client     *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

var _ charteye.PaymentProvider = (*Square)(nil)

func NewSquare(cfg Config) (*Square, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" || strings.TrimSpace(cfg.LocationID) == "" {
		return nil, errors.New("square access token and location id are required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid square base url: %w", err)
	}
	price := cfg.Price
	if price.IsZero() {
		price = LifetimePrice
	}
	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "USD"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appURL := strings.TrimRight(strings.TrimSpace(cfg.AppURL), "/")
	if appURL == "" {
		appURL = "http://localhost:3000"
	}
	return &Square{
		token:      strings.TrimSpace(cfg.AccessToken),
		locationID: strings.TrimSpace(cfg.LocationID),
		baseURL:    baseURL,
		appURL:     appURL,
		currency:   currency,
		price:      price,
		client:     client,
		logger:     logger.With("component", "square"),
		now:        time.Now,
	}, nil
}

type money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type paymentLinkRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	QuickPay       struct {
		Name       string `json:"name"`
		PriceMoney money  `json:"price_money"`
		LocationID string `json:"location_id"`
	} `json:"quick_pay"`
	CheckoutOptions struct {
		RedirectURL          string `json:"redirect_url"`
		MerchantSupportEmail string `json:"merchant_support_email"`
	} `json:"checkout_options"`
}

type paymentLinkResponse struct {
	PaymentLink struct {
		ID      string `json:"id"`
		URL     string `json:"url"`
		OrderID string `json:"order_id"`
	} `json:"payment_link"`
}

type orderResponse struct {
	Order struct {
		ID         string `json:"id"`
		State      string `json:"state"`
		TotalMoney money  `json:"total_money"`
	} `json:"order"`
}

type squareErrors struct {
	Errors []struct {
		Category string `json:"category"`
		Code     string `json:"code"`
		Detail   string `json:"detail"`
	} `json:"errors"`
}

// APIError is a non-2xx Square response.
type APIError struct {
	Status int
	Code   string
	Detail string
}

func (e *APIError) Error() string {
	detail := e.Detail
	if detail == "" {
		detail = "Unknown error"
	}
	return fmt.Sprintf("square api error (%d %s): %s", e.Status, e.Code, detail)
}

// CreatePaymentLink creates a quick-pay checkout link for userID.
func (s *Square) CreatePaymentLink(ctx context.Context, userID string) (string, error) {
	var req paymentLinkRequest
	req.IdempotencyKey = fmt.Sprintf("%d_%s", s.now().UnixMilli(), userID)
	req.QuickPay.Name = productName
	req.QuickPay.PriceMoney = money{Amount: minorUnits(s.price), Currency: s.currency}
	req.QuickPay.LocationID = s.locationID
	req.CheckoutOptions.RedirectURL = s.appURL + "/upgrade?status=success&user_id=" + url.QueryEscape(userID)
	req.CheckoutOptions.MerchantSupportEmail = supportEmail

	var resp paymentLinkResponse
	if err := s.do(ctx, http.MethodPost, "/online-checkout/payment-links", req, &resp); err != nil {
		return "", err
	}
	if resp.PaymentLink.URL == "" {
		return "", errors.New("no payment link url in square response")
	}
	s.logger.Info("payment link created", "user_id", userID, "order_id", resp.PaymentLink.OrderID)
	return resp.PaymentLink.URL, nil
}

// OrderState returns the state of orderID. An unknown order yields an empty state.
func (s *Square) OrderState(ctx context.Context, orderID string) (string, error) {
	var resp orderResponse
	err := s.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		s.logger.Warn("order not found", "order_id", orderID)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	s.logger.Info("order retrieved", "order_id", orderID, "state", resp.Order.State,
		"total", decimal.New(resp.Order.TotalMoney.Amount, -2).StringFixed(2), "currency", resp.Order.TotalMoney.Currency)
	return resp.Order.State, nil
}

func (s *Square) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode square request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build square request: %w", err)
	}
	req.Header.Set("Square-Version", squareVersion)
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("square request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var decoded squareErrors
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&decoded); err == nil && len(decoded.Errors) > 0 {
			apiErr.Code = decoded.Errors[0].Code
			apiErr.Detail = decoded.Errors[0].Detail
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode square response: %w", err)
	}
	return nil
}

// minorUnits converts a price to cents.
func minorUnits(price decimal.Decimal) int64 {
	return price.Shift(2).Round(0).IntPart()
}
