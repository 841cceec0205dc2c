package connectors

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"posbot/src/model"
)

const (
	kucoinFuturesBaseURL = "https://api-futures.kucoin.com"
	kucoinSuccessCode    = "200000"
	kucoinKeyVersion     = "2"
)

type kucoinAPIResponse struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg,omitempty"`
	Data json.RawMessage `json:"data"`
}

// KucoinPosition is one entry of GET /api/v1/positions.
type KucoinPosition struct {
	Symbol         string  `json:"symbol"`
	IsOpen         bool    `json:"isOpen"`
	CurrentQty     float64 `json:"currentQty"`
	AvgEntryPrice  float64 `json:"avgEntryPrice"`
	MarkPrice      float64 `json:"markPrice"`
	UnrealisedPnl  float64 `json:"unrealisedPnl"`
	SettleCurrency string  `json:"settleCurrency"`
	PositionSide   string  `json:"positionSide"` // BOTH in one-way mode
}

// KC-API-PASSPHRASE = base64( HMAC_SHA256(apiSecret, apiPassphrase) )
func kucoinSignPassphrase(secret, passphrase string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(passphrase))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// KC-API-SIGN = base64( HMAC_SHA256(apiSecret, timestamp + method + requestPath + body) )
// requestPath = path + queryString (ex: "/api/v1/positions?currency=USDT")
func kucoinSignRequest(secret, timestamp, method, requestPath, body string) string {
	prehash := timestamp + method + requestPath + body
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(prehash))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type KucoinConnector struct {
	apiKey        string
	apiSecret     string
	apiPassphrase string
	currency      string
	http          *resty.Client
}

func NewKucoinConnector(apiKey, apiSecret, apiPassphrase, baseURL, currency string, timeout time.Duration) *KucoinConnector {
	if baseURL == "" {
		baseURL = kucoinFuturesBaseURL
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}
	if currency == "" {
		currency = "USDT"
	}

	return &KucoinConnector{
		apiKey:        apiKey,
		apiSecret:     apiSecret,
		apiPassphrase: apiPassphrase,
		currency:      currency,
		http:          newRestyClient(baseURL, timeout),
	}
}

func (k *KucoinConnector) doRequest(ctx context.Context, method, path, query string) (*kucoinAPIResponse, error) {
	requestPath := path
	if query != "" {
		requestPath += "?" + query
	}
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)

	req := k.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetHeader("KC-API-KEY", k.apiKey).
		SetHeader("KC-API-SIGN", kucoinSignRequest(k.apiSecret, ts, method, requestPath, "")).
		SetHeader("KC-API-TIMESTAMP", ts).
		SetHeader("KC-API-PASSPHRASE", kucoinSignPassphrase(k.apiSecret, k.apiPassphrase)).
		SetHeader("KC-API-KEY-VERSION", kucoinKeyVersion)

	if query != "" {
		req = req.SetQueryString(query)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var apiResp kucoinAPIResponse
	if err := json.Unmarshal(resp.Body(), &apiResp); err != nil {
		return nil, fmt.Errorf("decode kucoin response: %w", err)
	}
	if apiResp.Code != kucoinSuccessCode {
		return nil, fmt.Errorf("kucoin error %s: %s", apiResp.Code, apiResp.Msg)
	}
	return &apiResp, nil
}

// GetPositions returns the raw open futures positions settled in the connector currency.
func (k *KucoinConnector) GetPositions(ctx context.Context) ([]KucoinPosition, error) {
	resp, err := k.doRequest(ctx, "GET", "/api/v1/positions", "currency="+k.currency)
	if err != nil {
		return nil, err
	}

	var positions []KucoinPosition
	if err := json.Unmarshal(resp.Data, &positions); err != nil {
		return nil, fmt.Errorf("decode kucoin positions: %w", err)
	}
	return positions, nil
}

func (k *KucoinConnector) FetchPositions(ctx context.Context) ([]model.Position, error) {
	raw, err := k.GetPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("kucoin positions: %w", err)
	}

	out := make([]model.Position, 0, len(raw))
	for _, p := range raw {
		if !p.IsOpen || p.CurrentQty == 0 {
			continue
		}

		side, ok := normalizeSide(p.PositionSide)
		if !ok {
			side = model.PositionSideLong
			if p.CurrentQty < 0 {
				side = model.PositionSideShort
			}
		}

		qty := p.CurrentQty
		if qty < 0 {
			qty = -qty
		}
		out = append(out, model.Position{
			Symbol:        strings.ToUpper(p.Symbol),
			Side:          side,
			UnrealizedPnl: p.UnrealisedPnl,
			Quantity:      floatPtr(qty),
			EntryPrice:    floatPtr(p.AvgEntryPrice),
			MarkPrice:     floatPtr(p.MarkPrice),
		})
	}

	return out, nil
}
