package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSquare(t *testing.T, handler http.HandlerFunc) *Square {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	sq, err := NewSquare(Config{
		AccessToken: "sq-token",
		LocationID:  "LOC1",
		BaseURL:     server.URL + "/v2",
		AppURL:      "https://charteye.example.com/",
	})
	require.NoError(t, err)
	sq.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return sq
}

func TestCreatePaymentLink(t *testing.T) {
	t.Parallel()

	var captured map[string]any
	sq := newTestSquare(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/online-checkout/payment-links", r.URL.Path)
		assert.Equal(t, "Bearer sq-token", r.Header.Get("Authorization"))
		assert.Equal(t, "2023-12-13", r.Header.Get("Square-Version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"payment_link":{"id":"pl1","url":"https://square.link/u/abc","order_id":"o1"}}`))
	})

	link, err := sq.CreatePaymentLink(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "https://square.link/u/abc", link)

	assert.Equal(t, "1700000000000_user-1", captured["idempotency_key"])
	quickPay := captured["quick_pay"].(map[string]any)
	assert.Equal(t, "ChartEye Lifetime Access", quickPay["name"])
	assert.Equal(t, "LOC1", quickPay["location_id"])
	price := quickPay["price_money"].(map[string]any)
	assert.Equal(t, float64(2000), price["amount"])
	assert.Equal(t, "USD", price["currency"])
	options := captured["checkout_options"].(map[string]any)
	assert.Equal(t, "https://charteye.example.com/upgrade?status=success&user_id=user-1", options["redirect_url"])
}

func TestCreatePaymentLinkErrors(t *testing.T) {
	t.Parallel()

	sq := newTestSquare(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"category":"INVALID_REQUEST_ERROR","code":"INVALID_VALUE","detail":"bad location"}]}`))
	})
	_, err := sq.CreatePaymentLink(context.Background(), "user-1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, err.Error(), "bad location")

	empty := newTestSquare(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"payment_link":{}}`))
	})
	_, err = empty.CreatePaymentLink(context.Background(), "user-1")
	require.Error(t, err)
}

func TestOrderState(t *testing.T) {
	t.Parallel()

	sq := newTestSquare(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/v2/orders/paid":
			_, _ = w.Write([]byte(`{"order":{"id":"paid","state":"COMPLETED","total_money":{"amount":2000,"currency":"USD"}}}`))
		case "/v2/orders/open":
			_, _ = w.Write([]byte(`{"order":{"id":"open","state":"OPEN"}}`))
		case "/v2/orders/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[{"code":"NOT_FOUND","detail":"missing"}]}`))
		}
	})

	state, err := sq.OrderState(context.Background(), "paid")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", state)

	state, err = sq.OrderState(context.Background(), "open")
	require.NoError(t, err)
	assert.Equal(t, "OPEN", state)

	state, err = sq.OrderState(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, state)

	_, err = sq.OrderState(context.Background(), "broken")
	require.Error(t, err)
}

func TestNewSquareValidation(t *testing.T) {
	t.Parallel()

	_, err := NewSquare(Config{AccessToken: "t"})
	require.Error(t, err)

	sq, err := NewSquare(Config{AccessToken: "t", LocationID: "l"})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, sq.baseURL)
	assert.True(t, sq.price.Equal(LifetimePrice))
}

func TestMinorUnits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(2000), minorUnits(decimal.RequireFromString("20")))
	assert.Equal(t, int64(1999), minorUnits(decimal.RequireFromString("19.99")))
	assert.Equal(t, int64(1000), minorUnits(decimal.RequireFromString("9.995")))
}
