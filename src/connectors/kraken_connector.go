package connectors

// REST CLIENT FOR KRAKEN FUTURES POSITIONS (v3 /derivatives)
// RESTY ONLY + INTERNAL RETRY

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"posbot/src/model"
)

// Kraken Futures uses /derivatives + /api/v3/...
const (
	defaultKrakenDerivativesBaseURL = "https://futures.kraken.com/derivatives"
	apiV3Prefix                     = "/api/v3"
)

type KrakenFuturesClient struct {
	apiKey    string
	apiSecret string // base64-encoded secret from Kraken
	baseURL   string
	http      *resty.Client
}

func NewKrakenFuturesClient(apiKey, apiSecret, baseURL string, timeout time.Duration) *KrakenFuturesClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultKrakenDerivativesBaseURL
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return &KrakenFuturesClient{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		http:      newRestyClient(baseURL, timeout),
	}
}

// -----------------------------
// AUTH
// -----------------------------
//
// Kraken Futures REST (v3 /derivatives/*) Authent:
//  1. message = postData + Nonce + endpointPath
//  2. sha256(message)
//  3. base64-decode apiSecret
//  4. hmac-sha512(secretDecoded, sha256Digest)
//  5. base64-encode result
//
// endpointPath is /api/v3/... without the /derivatives prefix.

func nonceMillis() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

func computeAuthent(postData, nonce, endpointPath, apiSecretB64 string) (string, error) {
	msg := postData + nonce + endpointPath

	sum := sha256.Sum256([]byte(msg))

	secret, err := base64.StdEncoding.DecodeString(apiSecretB64)
	if err != nil {
		return "", fmt.Errorf("base64 decode api secret failed: %w", err)
	}

	mac := hmac.New(sha512.New, secret)
	_, _ = mac.Write(sum[:])

	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Spaces are encoded as %20, not '+', so the signed query matches the raw URI component.
func queryEscapeRFC3986(s string) string {
	esc := url.QueryEscape(s)
	return strings.ReplaceAll(esc, "+", "%20")
}

func encodeValuesRFC3986(v url.Values) string {
	if len(v) == 0 {
		return ""
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		vals := v[k]
		sort.Strings(vals)
		ek := queryEscapeRFC3986(k)
		for _, val := range vals {
			parts = append(parts, ek+"="+queryEscapeRFC3986(val))
		}
	}
	return strings.Join(parts, "&")
}

// -----------------------------
// LOW-LEVEL REQUESTS
// -----------------------------
type krakenBaseResp struct {
	Result     string `json:"result"`
	Error      string `json:"error,omitempty"`
	ServerTime string `json:"serverTime,omitempty"`
}

func (c *KrakenFuturesClient) doRequest(ctx context.Context, method, endpoint string, params url.Values, auth bool, out any) error {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}

	httpPath := apiV3Prefix + endpoint
	postData := encodeValuesRFC3986(params)

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json")

	if auth {
		nonce := nonceMillis()
		authent, err := computeAuthent(postData, nonce, httpPath, c.apiSecret)
		if err != nil {
			return err
		}

		req = req.
			SetHeader("APIKey", c.apiKey).
			SetHeader("Nonce", nonce).
			SetHeader("Authent", authent)
	}

	if postData != "" {
		req = req.SetQueryString(postData)
	}

	resp, err := req.Execute(method, httpPath)
	if err != nil {
		return err
	}
	if err := checkStatus(resp); err != nil {
		return err
	}
	raw := resp.Body()

	// Many Kraken Futures endpoints return HTTP 200 even on errors, with {result:"error", error:"..."}.
	var base krakenBaseResp
	if err := json.Unmarshal(raw, &base); err != nil {
		return fmt.Errorf("json unmarshal failed: %w. raw=%s", err, string(raw))
	}
	if strings.EqualFold(base.Result, "error") {
		if base.Error == "" {
			return errors.New("kraken futures returned result=error")
		}
		return fmt.Errorf("kraken futures error: %s", base.Error)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("json unmarshal into output failed: %w. raw=%s", err, string(raw))
		}
	}

	return nil
}

// -----------------------------
// PRIVATE QUERIES
// -----------------------------
type OpenPositionsResponse struct {
	Result     string `json:"result"`
	ServerTime string `json:"serverTime"`

	OpenPositions []OpenPosition `json:"openPositions"`
}

type OpenPosition struct {
	FillTime          string   `json:"fillTime,omitempty"`
	Price             *float64 `json:"price,omitempty"`
	Side              string   `json:"side,omitempty"` // long or short
	Size              float64  `json:"size,omitempty"`
	Symbol            string   `json:"symbol,omitempty"`
	UnrealizedFunding *float64 `json:"unrealizedFunding,omitempty"`
	PnLCurrency       *string  `json:"pnlCurrency,omitempty"`
}

// GET /openpositions
func (c *KrakenFuturesClient) GetOpenPositions(ctx context.Context) (*OpenPositionsResponse, error) {
	var out OpenPositionsResponse
	if err := c.doRequest(ctx, "GET", "/openpositions", nil, true, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// -----------------------------
// PUBLIC MARKET DATA
// -----------------------------
type KrakenTicker struct {
	Symbol    string  `json:"symbol"`
	MarkPrice float64 `json:"markPrice"`
	Last      float64 `json:"last"`
}

type TickersResponse struct {
	Result     string         `json:"result"`
	ServerTime string         `json:"serverTime"`
	Tickers    []KrakenTicker `json:"tickers"`
}

// GET /tickers
func (c *KrakenFuturesClient) GetTickers(ctx context.Context) (*TickersResponse, error) {
	var out TickersResponse
	if err := c.doRequest(ctx, "GET", "/tickers", nil, false, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchPositions joins open positions with ticker mark prices. Kraken does not report unrealized PNL
// on /openpositions, so it is derived as (mark - entry) * size, sign-flipped for shorts.
func (c *KrakenFuturesClient) FetchPositions(ctx context.Context) ([]model.Position, error) {
	open, err := c.GetOpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("kraken open positions: %w", err)
	}
	if len(open.OpenPositions) == 0 {
		return []model.Position{}, nil
	}

	tickers, err := c.GetTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("kraken tickers: %w", err)
	}
	marks := make(map[string]float64, len(tickers.Tickers))
	for _, t := range tickers.Tickers {
		mark := t.MarkPrice
		if mark == 0 {
			mark = t.Last
		}
		marks[strings.ToUpper(t.Symbol)] = mark
	}

	out := make([]model.Position, 0, len(open.OpenPositions))
	for _, p := range open.OpenPositions {
		side, ok := normalizeSide(p.Side)
		if !ok || p.Size == 0 {
			logger.WithFields(logger.Fields{"symbol": p.Symbol, "side": p.Side}).Warn("skipping kraken position")
			continue
		}

		mark, ok := marks[strings.ToUpper(p.Symbol)]
		if !ok || p.Price == nil {
			return nil, fmt.Errorf("kraken position %s: no mark price or entry price", p.Symbol)
		}

		pnl := krakenUnrealizedPnl(side, *p.Price, mark, p.Size)
		out = append(out, model.Position{
			Symbol:        p.Symbol,
			Side:          side,
			UnrealizedPnl: pnl,
			Quantity:      floatPtr(p.Size),
			EntryPrice:    floatPtr(*p.Price),
			MarkPrice:     floatPtr(mark),
		})
	}

	return out, nil
}

func krakenUnrealizedPnl(side string, entry, mark, size float64) float64 {
	diff := decimal.NewFromFloat(mark).Sub(decimal.NewFromFloat(entry))
	if side == model.PositionSideShort {
		diff = diff.Neg()
	}
	return diff.Mul(decimal.NewFromFloat(size)).InexactFloat64()
}
