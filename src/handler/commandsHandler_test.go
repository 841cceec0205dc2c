package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posbot/src/commands"
	"posbot/src/model"
	"posbot/src/state"
)

type mockService struct {
	status    commands.Status
	positions []model.Position
	fetchErr  error
	saveErr   error
	calls     []string
}

func (m *mockService) Status() commands.Status { return m.status }

func (m *mockService) Positions(ctx context.Context) ([]model.Position, error) {
	return m.positions, m.fetchErr
}

func (m *mockService) SetWatch(on bool) error {
	m.calls = append(m.calls, fmt.Sprintf("watch=%v", on))
	if m.saveErr != nil {
		return m.saveErr
	}
	m.status.WatchEnabled = on
	return nil
}

func (m *mockService) SetThreshold(v float64) error {
	if v < 0 {
		return commands.ErrNegativeThreshold
	}
	m.calls = append(m.calls, fmt.Sprintf("threshold=%v", v))
	if m.saveErr != nil {
		return m.saveErr
	}
	m.status.PnlThreshold = v
	return nil
}

func (m *mockService) SetCooldown(seconds int64) error {
	if seconds < 0 {
		return commands.ErrNegativeCooldown
	}
	m.calls = append(m.calls, fmt.Sprintf("cooldown=%d", seconds))
	if m.saveErr != nil {
		return m.saveErr
	}
	m.status.CooldownSeconds = seconds
	return nil
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: commands.Status{WatchEnabled: true, PnlThreshold: 0.5, CooldownSeconds: 600, LastPollAge: "never"}}

	rr := httptest.NewRecorder()
	StatusHandler(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var got commands.Status
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, svc.status, got)
}

func TestPositionsHandler(t *testing.T) {
	svc := &mockService{positions: []model.Position{{Symbol: "BTCUSDT", Side: "LONG", UnrealizedPnl: 1.5}}}

	rr := httptest.NewRecorder()
	PositionsHandler(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/positions", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"BTCUSDT"`)
}

func TestPositionsHandlerEmptyIsArray(t *testing.T) {
	rr := httptest.NewRecorder()
	PositionsHandler(&mockService{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/positions", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestPositionsHandlerFetchError(t *testing.T) {
	svc := &mockService{fetchErr: errors.New("HTTP 502: bad gateway")}

	rr := httptest.NewRecorder()
	PositionsHandler(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/positions", nil))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "HTTP 502")
}

func TestWatchHandler(t *testing.T) {
	svc := &mockService{status: commands.Status{WatchEnabled: true}}

	rr := post(WatchHandler(svc), `{"enabled": false}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"watch=false"}, svc.calls)
	assert.Contains(t, rr.Body.String(), `"watch_enabled":false`)
}

func TestSettingHandlersRejectBadPayloads(t *testing.T) {
	svc := &mockService{}
	cases := []struct {
		name string
		h    http.Handler
		body string
	}{
		{"watch missing field", WatchHandler(svc), `{}`},
		{"watch wrong type", WatchHandler(svc), `{"enabled":"on"}`},
		{"unknown field", ThresholdHandler(svc), `{"value":1,"extra":true}`},
		{"threshold not json", ThresholdHandler(svc), `abc`},
		{"threshold missing", ThresholdHandler(svc), `{}`},
		{"threshold negative", ThresholdHandler(svc), `{"value":-0.1}`},
		{"cooldown float", CooldownHandler(svc), `{"seconds":1.5}`},
		{"cooldown negative", CooldownHandler(svc), `{"seconds":-1}`},
		{"cooldown missing", CooldownHandler(svc), `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := post(tc.h, tc.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
	assert.Empty(t, svc.calls)
}

func TestThresholdAndCooldownHandlers(t *testing.T) {
	svc := &mockService{}

	require.Equal(t, http.StatusOK, post(ThresholdHandler(svc), `{"value":0}`).Code)
	require.Equal(t, http.StatusOK, post(CooldownHandler(svc), `{"seconds":0}`).Code)

	assert.Equal(t, []string{"threshold=0", "cooldown=0"}, svc.calls)
}

func TestSettingHandlerSaveFailure(t *testing.T) {
	svc := &mockService{saveErr: fmt.Errorf("%w: disk full", state.ErrPersist)}

	rr := post(CooldownHandler(svc), `{"seconds":60}`)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestHandlersOverRealService(t *testing.T) {
	shared := state.NewShared(state.NewStore(t.TempDir()+"/state.json"), nil)
	svc := commands.NewService(shared, nil)

	rr := post(ThresholdHandler(svc), `{"value":2.5}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2.5, shared.Snapshot().PnlThreshold)

	rr = post(ThresholdHandler(svc), `{"value":-1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "threshold must be >= 0")

	rr = post(CooldownHandler(svc), `{"seconds":3000000000}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "cooldown must be <= 86400")
	assert.EqualValues(t, model.DefaultCooldownSeconds, shared.Snapshot().CooldownSeconds)
}
