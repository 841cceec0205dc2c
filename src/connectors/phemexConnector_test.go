package connectors

// Test index:
//  1. TestIsRetryableResp verifies retry decisions for various response codes and errors.
//  2. TestSignRequest validates HMAC signature generation inputs and output.
//  3. TestPhemexFetchPositions checks request signing headers and mapping to positions.
//  4. TestPhemexFetchPositionsOneWayMode derives sides from side or size in merged mode.
//  5. TestPhemexFetchPositionsAPIError surfaces non-zero API codes.
//  6. TestPhemexFetchPositionsHTTPError surfaces non-200 responses with the body.

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posbot/src/model"
)

// TestIsRetryableResp verifies retry decisions for assorted errors and HTTP responses.
func TestIsRetryableResp(t *testing.T) {
	cases := []struct {
		name string
		resp *resty.Response
		err  error
		want bool
	}{
		{name: "error present", err: assertError{}, want: true},
		{name: "server error", resp: fakeResponse(500), want: true},
		{name: "too many requests", resp: fakeResponse(429), want: true},
		{name: "timeout", resp: fakeResponse(408), want: true},
		{name: "ok response", resp: fakeResponse(200), want: false},
		{name: "bad request", resp: fakeResponse(400), want: false},
		{name: "nil resp", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := isRetryableResp(tc.resp, tc.err)
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

// TestSignRequest ensures HMAC signing matches the expected digest for a fixed payload and secret.
func TestSignRequest(t *testing.T) {
	expiry := int64(1700000000)
	expectedMac := hmac.New(sha256.New, []byte("secret"))
	expectedMac.Write([]byte("/testpath" + "query" + "1700000000" + "body"))
	expected := hex.EncodeToString(expectedMac.Sum(nil))

	got := signRequest("/testpath", "query", "body", expiry, "secret")
	if got != expected {
		t.Fatalf("expected signature %s, got %s", expected, got)
	}
}

func newTestPhemexClient(baseURL string) *PhemexClient {
	c := NewPhemexClient("test-key", "test-secret", baseURL, "USDT", 0)
	c.http.SetRetryCount(0)
	return c
}

func TestPhemexFetchPositions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/g-accounts/positions", r.URL.Path)
		assert.Equal(t, "currency=USDT", r.URL.RawQuery)
		assert.Equal(t, "test-key", r.Header.Get("x-phemex-access-token"))
		assert.NotEmpty(t, r.Header.Get("x-phemex-request-signature"))
		assert.NotEmpty(t, r.Header.Get("x-phemex-request-expiry"))

		_ = json.NewEncoder(w).Encode(APIResponse{Code: 0, Data: mustJSON(GAccountPositions{Positions: []PhemexPosition{
			{Symbol: "BTCUSDT", Side: "Buy", PosSide: "Long", SizeRq: "0.5", AvgEntryPriceRp: "60000", MarkPriceRp: "61000.5", UnRealisedPnlRv: "500.25"},
			{Symbol: "ETHUSDT", Side: "Sell", PosSide: "Short", SizeRq: "2", UnRealisedPnlRv: "-12.5"},
			{Symbol: "SOLUSDT", Side: "None", PosSide: "Long", SizeRq: "0", UnRealisedPnlRv: "0"},
		}})})
	}))
	defer server.Close()

	client := newTestPhemexClient(server.URL)
	positions, err := client.FetchPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 2)

	btc := positions[0]
	assert.Equal(t, "BTCUSDT:LONG", btc.Key())
	assert.Equal(t, 500.25, btc.UnrealizedPnl)
	require.NotNil(t, btc.Quantity)
	assert.Equal(t, 0.5, *btc.Quantity)
	require.NotNil(t, btc.MarkPrice)
	assert.Equal(t, 61000.5, *btc.MarkPrice)

	eth := positions[1]
	assert.Equal(t, model.PositionSideShort, eth.Side)
	assert.Equal(t, -12.5, eth.UnrealizedPnl)
	assert.Nil(t, eth.EntryPrice)
}

func TestPhemexFetchPositionsOneWayMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(APIResponse{Code: 0, Data: mustJSON(GAccountPositions{Positions: []PhemexPosition{
			{Symbol: "BTCUSDT", Side: "Sell", PosSide: "Merged", SizeRq: "1", UnRealisedPnlRv: "1"},
			{Symbol: "ETHUSDT", Side: "", PosSide: "Merged", SizeRq: "-3", UnRealisedPnlRv: "2"},
		}})})
	}))
	defer server.Close()

	positions, err := newTestPhemexClient(server.URL).FetchPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, model.PositionSideShort, positions[0].Side)
	assert.Equal(t, model.PositionSideShort, positions[1].Side)
	assert.Equal(t, 3.0, *positions[1].Quantity)
}

func TestPhemexFetchPositionsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(APIResponse{Code: 10500, Msg: "invalid signature"})
	}))
	defer server.Close()

	_, err := newTestPhemexClient(server.URL).FetchPositions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid signature")
	assert.Contains(t, err.Error(), "INVALID_SIGNATURE")
}

func TestPhemexErrorName(t *testing.T) {
	assert.Equal(t, "TE_MAINTENANCE_MODE", phemexErrorName(11005))
	assert.Equal(t, "UNKNOWN_PHEMEX_ERROR_42", phemexErrorName(42))
	assert.EqualError(t, phemexAPIError(11041, ""), "API error 11041 (TE_MARGIN_ACCOUNT_FROZEN)")
}

func TestPhemexFetchPositionsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("denied"))
	}))
	defer server.Close()

	_, err := newTestPhemexClient(server.URL).FetchPositions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401: denied")
}

type assertError struct{}

func (assertError) Error() string { return "err" }

func fakeResponse(status int) *resty.Response {
	return &resty.Response{RawResponse: &http.Response{StatusCode: status}}
}

func mustJSON(v interface{}) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
