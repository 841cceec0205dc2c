package connectors

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"posbot/src/model"
)

const (
	defaultBitunixBaseURL   = "https://fapi.bitunix.com"
	bitunixPendingPositions = "/api/v1/futures/position/get_pending_positions"
)

// BitunixPosition is one entry of the pending positions list. Amounts are decimal strings.
type BitunixPosition struct {
	PositionID    string `json:"positionId"`
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	AvgOpenPrice  string `json:"avgOpenPrice"`
	UnrealizedPNL string `json:"unrealizedPNL"`
	MarginCoin    string `json:"marginCoin"`
}

type BitunixClient struct {
	apiKey     string
	apiSecret  string
	marginCoin string
	http       *resty.Client
}

func NewBitunixClient(apiKey, apiSecret, baseURL, marginCoin string, timeout time.Duration) *BitunixClient {
	if baseURL == "" {
		baseURL = defaultBitunixBaseURL
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}
	if marginCoin == "" {
		marginCoin = "USDT"
	}

	return &BitunixClient{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		marginCoin: marginCoin,
		http:       newRestyClient(baseURL, timeout),
	}
}

// bitunixSign computes sha256hex(sha256hex(nonce + timestamp + apiKey + queryParams + body) + secret).
// queryParams is every key and value concatenated, keys in ascending order.
func bitunixSign(nonce, timestamp, apiKey, queryParams, body, secret string) string {
	digest := sha256.Sum256([]byte(nonce + timestamp + apiKey + queryParams + body))
	sign := sha256.Sum256([]byte(hex.EncodeToString(digest[:]) + secret))
	return hex.EncodeToString(sign[:])
}

func bitunixQueryParams(v url.Values) string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, val := range v[k] {
			b.WriteString(k)
			b.WriteString(val)
		}
	}
	return b.String()
}

func (c *BitunixClient) doRequest(ctx context.Context, method, path string, params url.Values) (*APIResponse, error) {
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	sign := bitunixSign(nonce, timestamp, c.apiKey, bitunixQueryParams(params), "", c.apiSecret)

	req := c.http.R().
		SetContext(ctx).
		SetHeader("api-key", c.apiKey).
		SetHeader("nonce", nonce).
		SetHeader("timestamp", timestamp).
		SetHeader("sign", sign).
		SetHeader("Content-Type", "application/json")

	if len(params) > 0 {
		req = req.SetQueryParamsFromValues(params)
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
		return nil, fmt.Errorf("decode bitunix response: %w", err)
	}
	if apiResp.Code != 0 {
		return nil, fmt.Errorf("bitunix error %d: %s", apiResp.Code, apiResp.Msg)
	}
	return &apiResp, nil
}

func (c *BitunixClient) GetPendingPositions(ctx context.Context) ([]BitunixPosition, error) {
	params := url.Values{}
	params.Set("marginCoin", c.marginCoin)

	resp, err := c.doRequest(ctx, "GET", bitunixPendingPositions, params)
	if err != nil {
		return nil, err
	}

	var positions []BitunixPosition
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return positions, nil
	}
	if err := json.Unmarshal(resp.Data, &positions); err != nil {
		return nil, fmt.Errorf("decode bitunix positions: %w", err)
	}
	return positions, nil
}

func (c *BitunixClient) FetchPositions(ctx context.Context) ([]model.Position, error) {
	raw, err := c.GetPendingPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("bitunix positions: %w", err)
	}

	out := make([]model.Position, 0, len(raw))
	for _, p := range raw {
		side, ok := normalizeSide(p.Side)
		if !ok {
			logger.WithFields(logger.Fields{"symbol": p.Symbol, "side": p.Side}).Warn("skipping bitunix position with unknown side")
			continue
		}
		pnl, err := parseAmount(p.UnrealizedPNL)
		if err != nil {
			return nil, fmt.Errorf("bitunix position %s: %w", p.Symbol, err)
		}

		out = append(out, model.Position{
			Symbol:        p.Symbol,
			Side:          side,
			UnrealizedPnl: pnl,
			Quantity:      optionalAmount(p.Qty),
			EntryPrice:    optionalAmount(p.AvgOpenPrice),
		})
	}

	return out, nil
}
