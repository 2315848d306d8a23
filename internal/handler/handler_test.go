package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sde1000/quicktill-sub001/internal/apperr"
	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/middleware"
	"github.com/sde1000/quicktill-sub001/internal/model"
	"github.com/sde1000/quicktill-sub001/internal/permission"
	"github.com/sde1000/quicktill-sub001/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Stubs ────────────────────────────────────────────────────────────────────

// Each stub embeds the service interface; calling a method the test did
// not override panics.

type stubKeyboard struct {
	service.KeyboardService
	calls int
}

func (s *stubKeyboard) PriceCheck(_ context.Context, code string) (*dto.PriceCheckResponse, error) {
	s.calls++
	if code != "5000000000011" {
		return nil, apperr.NotFound("barcode %s is not known", code)
	}
	price := decimal.RequireFromString("2.50")
	return &dto.PriceCheckResponse{Code: code, Kind: model.TargetStockType, Description: "Distillery Dry Gin", Price: &price}, nil
}

type stubRegister struct {
	service.RegisterService
	actor service.Actor
	req   dto.SellStockLineRequest
}

func (s *stubRegister) GetTransaction(_ context.Context, id int64) (*dto.TransactionResponse, error) {
	return nil, apperr.NotFound("transaction %d not found", id)
}

func (s *stubRegister) SellStockLine(_ context.Context, actor service.Actor, req dto.SellStockLineRequest) (*dto.SaleResponse, error) {
	s.actor, s.req = actor, req
	if req.StockLineID == 99 {
		return nil, apperr.Incompatible("Half can't be used with Crisps")
	}
	return &dto.SaleResponse{LineID: 1}, nil
}

type stubConfig struct {
	service.SiteConfigService
	failWith error
}

func (s *stubConfig) Set(_ context.Context, key, value string) (*dto.ConfigItemResponse, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	return &dto.ConfigItemResponse{Key: key, Value: value, Type: "text"}, nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())
	return r
}

// withClaims stands in for JWTAuth.
func withClaims(claims *middleware.JWTClaims) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ClaimsKey, claims)
		c.Next()
	}
}

func send(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// ── Price check ──────────────────────────────────────────────────────────────

func TestPriceCheck_Found(t *testing.T) {
	r := newTestEngine()
	r.GET("/v1/pricecheck/:code", NewPriceCheckHandler(&stubKeyboard{}, nil).Check)

	w := send(r, http.MethodGet, "/v1/pricecheck/5000000000011", "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Distillery Dry Gin", body["description"])
	assert.Equal(t, "2.5", body["price"])
}

func TestPriceCheck_Unknown(t *testing.T) {
	r := newTestEngine()
	r.GET("/v1/pricecheck/:code", NewPriceCheckHandler(&stubKeyboard{}, nil).Check)

	w := send(r, http.MethodGet, "/v1/pricecheck/0000", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "barcode 0000 is not known", body["detail"])
	assert.Equal(t, "not_found", body["kind"])
}

// ── Register ─────────────────────────────────────────────────────────────────

func TestGetTransaction_BadID(t *testing.T) {
	r := newTestEngine()
	r.GET("/v1/transactions/:id", NewRegisterHandler(&stubRegister{}).GetTransaction)

	w := send(r, http.MethodGet, "/v1/transactions/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "id must be a positive integer")

	w = send(r, http.MethodGet, "/v1/transactions/0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, http.MethodGet, "/v1/transactions/12", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSellStockLine_PassesActor(t *testing.T) {
	stub := &stubRegister{}
	r := newTestEngine()
	claims := &middleware.JWTClaims{UserID: 7, Name: "Alice", Permissions: []string{permission.Sell.ID}}
	r.POST("/v1/register/stockline", withClaims(claims), NewRegisterHandler(stub).SellStockLine)

	w := send(r, http.MethodPost, "/v1/register/stockline", `{"stockline_id": 4, "items": 2, "modifiers": ["Half"]}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, stub.actor.UserID)
	assert.Equal(t, int64(7), *stub.actor.UserID)
	assert.True(t, permission.Allowed(stub.actor.Perms, permission.Sell))
	assert.False(t, permission.Allowed(stub.actor.Perms, permission.Void))
	assert.Equal(t, dto.SellStockLineRequest{StockLineID: 4, Items: 2, Modifiers: []string{"Half"}}, stub.req)
}

func TestSellStockLine_Validation(t *testing.T) {
	r := newTestEngine()
	r.POST("/v1/register/stockline", NewRegisterHandler(&stubRegister{}).SellStockLine)

	w := send(r, http.MethodPost, "/v1/register/stockline", `{"stockline_id": "four"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid JSON")

	w = send(r, http.MethodPost, "/v1/register/stockline", `{"items": 1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, map[string]any{"StockLineID": "required"}, body["fields"])
}

func TestSellStockLine_IncompatibleModifier(t *testing.T) {
	r := newTestEngine()
	r.POST("/v1/register/stockline", NewRegisterHandler(&stubRegister{}).SellStockLine)

	w := send(r, http.MethodPost, "/v1/register/stockline", `{"stockline_id": 99, "modifiers": ["Half"]}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "incompatible", body["kind"])
	assert.Equal(t, "Half can't be used with Crisps", body["detail"])
}

// ── Site config ──────────────────────────────────────────────────────────────

func TestConfigSet(t *testing.T) {
	r := newTestEngine()
	r.PUT("/v1/config/:key", NewConfigHandler(&stubConfig{}).Set)

	w := send(r, http.MethodPut, "/v1/config/core:sitename", `{"value": "The Crown"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "core:sitename", body["key"])
	assert.Equal(t, "The Crown", body["value"])
}

func TestConfigSet_Errors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"bad value", apperr.User(`register:max_transline_items: "lots" is not a valid integer`), http.StatusBadRequest, "not a valid integer"},
		{"unknown key", apperr.NotFound(`unknown config item "core:colour"`), http.StatusNotFound, "unknown config item"},
		{"database gone", apperr.Fatal(assert.AnError, "site configuration is invalid"), http.StatusServiceUnavailable, "site configuration is invalid"},
		{"unexpected", assert.AnError, http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestEngine()
			r.PUT("/v1/config/:key", NewConfigHandler(&stubConfig{failWith: tc.err}).Set)

			w := send(r, http.MethodPut, "/v1/config/x", `{"value": "lots"}`)

			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, decodeBody(t, w)["detail"], tc.detail)
		})
	}
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func TestActor_WithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	a := actor(c)

	assert.Nil(t, a.UserID)
	assert.False(t, permission.Allowed(a.Perms, permission.Sell))
}
