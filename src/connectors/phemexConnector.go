// REST CLIENT FOR PHEMEX USDT-M FUTURES POSITIONS
// RESTY ONLY + INTERNAL RETRY
package connectors

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"posbot/src/model"
)

const defaultPhemexBaseURL = "https://api.phemex.com"

// -----------------------------
// STRUCTURES FOR POSITIONS
// -----------------------------
type GAccountPositions struct {
	Account struct {
		UserID           int64  `json:"userID"`
		AccountID        int64  `json:"accountId"`
		Currency         string `json:"currency"`
		AccountBalanceRv string `json:"accountBalanceRv"`
	} `json:"account"`

	Positions []PhemexPosition `json:"positions"`
}

type PhemexPosition struct {
	AccountID        int64  `json:"accountID"`
	Symbol           string `json:"symbol"`
	Currency         string `json:"currency"`
	Side             string `json:"side"`
	PosSide          string `json:"posSide"`
	SizeRq           string `json:"sizeRq"`
	AvgEntryPriceRp  string `json:"avgEntryPriceRp"`
	PositionMarginRv string `json:"positionMarginRv"`
	MarkPriceRp      string `json:"markPriceRp"`
	UnRealisedPnlRv  string `json:"unRealisedPnlRv"`
}

// -----------------------------
// AUTHENTICATED CLIENT
// -----------------------------
type PhemexClient struct {
	apiKey    string
	apiSecret string
	baseURL   string
	currency  string
	http      *resty.Client
}

func NewPhemexClient(apiKey, apiSecret, baseURL, currency string, timeout time.Duration) *PhemexClient {
	if baseURL == "" {
		baseURL = defaultPhemexBaseURL
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}
	if currency == "" {
		currency = "USDT"
	}

	return &PhemexClient{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		currency:  currency,
		http:      newRestyClient(baseURL, timeout),
	}
}

func signRequest(path, query, body string, expiry int64, secret string) string {
	base := path
	if query != "" {
		base += query
	}
	base += fmt.Sprintf("%d", expiry)
	if body != "" {
		base += body
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(base))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *PhemexClient) doRequest(ctx context.Context, method, path, query string, body []byte) (*APIResponse, error) {
	expiry := time.Now().Add(1 * time.Minute).Unix()

	sig := signRequest(path, query, string(body), expiry, c.apiSecret)

	req := c.http.R().
		SetContext(ctx).
		SetHeader("x-phemex-access-token", c.apiKey).
		SetHeader("x-phemex-request-expiry", fmt.Sprintf("%d", expiry)).
		SetHeader("x-phemex-request-signature", sig)

	if query != "" {
		req = req.SetQueryString(query)
	}
	if body != nil {
		req = req.SetBody(body).SetHeader("Content-Type", "application/json")
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(resp.Body(), &apiResp); err != nil {
		return nil, err
	}

	return &apiResp, nil
}

// GetPositions returns the raw hedged-account positions for the settle currency.
func (c *PhemexClient) GetPositions(ctx context.Context) (*GAccountPositions, error) {
	resp, err := c.doRequest(ctx, "GET", "/g-accounts/positions", "currency="+c.currency, nil)
	if err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, phemexAPIError(resp.Code, resp.Msg)
	}

	var parsed GAccountPositions
	return &parsed, json.Unmarshal(resp.Data, &parsed)
}

// FetchPositions lists open positions. Flat entries are skipped.
func (c *PhemexClient) FetchPositions(ctx context.Context) ([]model.Position, error) {
	raw, err := c.GetPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("phemex positions: %w", err)
	}

	out := make([]model.Position, 0, len(raw.Positions))
	for _, p := range raw.Positions {
		size, err := parseAmount(p.SizeRq)
		if err != nil {
			return nil, fmt.Errorf("phemex position %s: %w", p.Symbol, err)
		}
		if size == 0 {
			continue
		}

		side, ok := phemexSide(p, size)
		if !ok {
			logger.WithFields(logger.Fields{"symbol": p.Symbol, "side": p.Side, "posSide": p.PosSide}).
				Warn("skipping phemex position with unknown side")
			continue
		}

		pnl, err := parseAmount(p.UnRealisedPnlRv)
		if err != nil {
			return nil, fmt.Errorf("phemex position %s: %w", p.Symbol, err)
		}

		if size < 0 {
			size = -size
		}
		out = append(out, model.Position{
			Symbol:        p.Symbol,
			Side:          side,
			UnrealizedPnl: pnl,
			Quantity:      floatPtr(size),
			EntryPrice:    optionalAmount(p.AvgEntryPriceRp),
			MarkPrice:     optionalAmount(p.MarkPriceRp),
		})
	}

	return out, nil
}

// phemexSide prefers posSide (hedge mode) and falls back to side, then to the size sign, for one-way mode.
func phemexSide(p PhemexPosition, size float64) (string, bool) {
	if side, ok := normalizeSide(p.PosSide); ok {
		return side, true
	}
	if side, ok := normalizeSide(p.Side); ok {
		return side, true
	}
	if size > 0 {
		return model.PositionSideLong, true
	}
	if size < 0 {
		return model.PositionSideShort, true
	}
	return "", false
}
