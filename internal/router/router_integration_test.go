//go:build integration

package router

// Runs the HTTP API against real Postgres and Redis containers.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/app"
	"github.com/sde1000/quicktill-sub001/internal/config"
	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/infra"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any, token string) *http.Response {
	t.Helper()
	var buf *bytes.Buffer
	if body != nil {
		buf = jsonBody(t, body)
	} else {
		buf = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, srv.URL+path, buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func expect(t *testing.T, resp *http.Response, status int, dest any) {
	t.Helper()
	if resp.StatusCode != status {
		var body map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		require.Failf(t, "unexpected status", "%s %s: got %d, want %d: %v",
			resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, status, body)
	}
	if dest == nil {
		resp.Body.Close()
		return
	}
	decodeJSON(t, resp, dest)
}

type idResponse struct {
	ID int64 `json:"id"`
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ── Test Suite Setup ─────────────────────────────────────────────────────────

type testEnv struct {
	server *httptest.Server
	app    *app.App
	token  string // superuser JWT
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("quicktill_test"),
		tcPostgres.WithUsername("quicktill"),
		tcPostgres.WithPassword("quicktill"),
		testcontainers.WithWaitStrategy(
			tcPostgres.BasicWaitStrategies()...,
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Port:               8000,
		Env:                "test",
		WorkerPoolSize:     1,
		TerminalName:       "test-till",
		DatabaseURL:        pgURL,
		RedisURL:           rdURL,
		JWTSecret:          "test-secret-key",
		JWTExpirationHours: 8,
		AccountsTimeout:    time.Second,
		PDFStoragePath:     t.TempDir(),
		PriceMarkup:        "2.0",
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)

	a, err := app.New(cfg, db, rdb)
	require.NoError(t, err)
	require.NoError(t, a.Prepare(ctx))

	admin, err := a.Users.CreateUser(ctx, dto.CreateUserRequest{
		FullName:  "Integration Admin",
		ShortName: "Admin",
		Superuser: true,
		Password:  ptr("correct horse"),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(New(a))
	t.Cleanup(srv.Close)

	var login dto.LoginResponse
	expect(t, do(t, srv, http.MethodPost, "/v1/auth/login",
		dto.PasswordLoginRequest{UserID: &admin.ID, Password: "correct horse"}, ""), http.StatusOK, &login)
	require.NotEmpty(t, login.AccessToken)

	return &testEnv{server: srv, app: a, token: login.AccessToken}
}

func ptr[T any](v T) *T { return &v }

// seedBar sets up a firkin of bitter on a pump through the HTTP API and
// returns the stock line id.
func seedBar(t *testing.T, env *testEnv) int64 {
	t.Helper()
	srv, tok := env.server, env.token

	expect(t, do(t, srv, http.MethodPost, "/v1/units", dto.CreateUnitRequest{
		ID: "pt", Description: "Pints", BaseName: "pint", BaseNamePlural: "pints",
		ItemName: "pint", ItemNamePlural: "pints", UnitsPerItem: dec("1"),
	}, tok), http.StatusCreated, nil)
	var firkin idResponse
	expect(t, do(t, srv, http.MethodPost, "/v1/stockunits", dto.CreateStockUnitRequest{
		Name: "Firkin", UnitID: "pt", Size: dec("72"),
	}, tok), http.StatusCreated, &firkin)
	expect(t, do(t, srv, http.MethodPost, "/v1/vatbands", dto.VatBandRequest{
		Band: "A", Description: "Standard", Rate: dec("20"),
	}, tok), http.StatusCreated, nil)
	expect(t, do(t, srv, http.MethodPost, "/v1/departments", dto.DepartmentRequest{
		ID: 1, Description: "Real Ale", VatBand: "A",
	}, tok), http.StatusCreated, nil)
	expect(t, do(t, srv, http.MethodPost, "/v1/paytypes", dto.PayTypeRequest{
		ID: "CASH", Description: "Cash", Order: 1, ChangeGiven: true,
	}, tok), http.StatusCreated, nil)

	var supplier, bitter, delivery idResponse
	expect(t, do(t, srv, http.MethodPost, "/v1/suppliers", dto.SupplierRequest{Name: "Brewery"}, tok),
		http.StatusCreated, &supplier)
	expect(t, do(t, srv, http.MethodPost, "/v1/stocktypes", dto.StockTypeRequest{
		DeptID: 1, Manufacturer: "Brewery", Name: "Best Bitter", ShortName: "Best",
		UnitID: "pt", SalePrice: ptr(dec("3.60")),
	}, tok), http.StatusCreated, &bitter)
	expect(t, do(t, srv, http.MethodPost, "/v1/deliveries", dto.DeliveryRequest{
		SupplierID: supplier.ID, Date: time.Now().Format("2006-01-02"),
	}, tok), http.StatusCreated, &delivery)

	var items []idResponse
	expect(t, do(t, srv, http.MethodPost, fmt.Sprintf("/v1/deliveries/%d/items", delivery.ID), dto.ReceiveRequest{
		StockTypeID: bitter.ID, StockUnitID: firkin.ID, CostPrice: ptr(dec("90")),
	}, tok), http.StatusCreated, &items)
	require.Len(t, items, 1)
	expect(t, do(t, srv, http.MethodPost, fmt.Sprintf("/v1/deliveries/%d/confirm", delivery.ID), nil, tok),
		http.StatusOK, nil)

	var pump idResponse
	expect(t, do(t, srv, http.MethodPost, "/v1/stocklines", dto.StockLineRequest{
		Name: "Pump 1", Location: "Bar", LineType: "regular",
	}, tok), http.StatusCreated, &pump)
	expect(t, do(t, srv, http.MethodPost, fmt.Sprintf("/v1/stocklines/%d/items", pump.ID), dto.PutOnSaleRequest{
		StockItemID: items[0].ID,
	}, tok), http.StatusCreated, nil)
	return pump.ID
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestSaleCycle(t *testing.T) {
	env := setupTestEnv(t)
	srv, tok := env.server, env.token
	pump := seedBar(t, env)

	// No session yet: selling is refused.
	resp := do(t, srv, http.MethodPost, "/v1/register/stockline", dto.SellStockLineRequest{StockLineID: pump, Items: 1}, tok)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	var sess idResponse
	expect(t, do(t, srv, http.MethodPost, "/v1/sessions",
		dto.StartSessionRequest{Date: time.Now().Format("2006-01-02")}, tok), http.StatusCreated, &sess)

	var sale dto.SaleResponse
	expect(t, do(t, srv, http.MethodPost, "/v1/register/stockline",
		dto.SellStockLineRequest{StockLineID: pump, Items: 2}, tok), http.StatusCreated, &sale)
	require.NotNil(t, sale.Transaction)
	assert.True(t, dec("7.20").Equal(sale.Transaction.Total), sale.Transaction.Total.String())

	var paid dto.PaymentResponse
	expect(t, do(t, srv, http.MethodPost, fmt.Sprintf("/v1/transactions/%d/payments", sale.Transaction.ID),
		dto.PaymentRequest{PayType: "CASH", Amount: ptr(dec("10.00"))}, tok), http.StatusCreated, &paid)
	assert.True(t, dec("2.80").Equal(paid.Change), paid.Change.String())
	assert.True(t, paid.Transaction.Balance.IsZero())

	var line dto.StockLineSummary
	expect(t, do(t, srv, http.MethodGet, fmt.Sprintf("/v1/stocklines/%d", pump), nil, tok), http.StatusOK, &line)
	assert.True(t, dec("70").Equal(line.Remaining), line.Remaining.String())

	expect(t, do(t, srv, http.MethodPost, "/v1/sessions/current/end", nil, tok), http.StatusOK, nil)
	expect(t, do(t, srv, http.MethodPost, fmt.Sprintf("/v1/sessions/%d/totals", sess.ID),
		dto.TotalsRequest{Totals: map[string]decimal.Decimal{"CASH": dec("7.20")}}, tok), http.StatusCreated, nil)

	export, err := env.app.Repos.Sessions.FindSessionExport(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, export.SessionID)
}

func TestPermissionsEnforced(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	clerk, err := env.app.Users.CreateUser(ctx, dto.CreateUserRequest{
		FullName: "Bar Clerk", ShortName: "Clerk", Password: ptr("pint please"), Permissions: []string{"sell"},
	})
	require.NoError(t, err)

	var login dto.LoginResponse
	expect(t, do(t, env.server, http.MethodPost, "/v1/auth/login",
		dto.PasswordLoginRequest{UserID: &clerk.ID, Password: "pint please"}, ""), http.StatusOK, &login)

	resp := do(t, env.server, http.MethodPost, "/v1/units", dto.CreateUnitRequest{
		ID: "pt", Description: "Pints", BaseName: "pint", BaseNamePlural: "pints",
		ItemName: "pint", ItemNamePlural: "pints", UnitsPerItem: dec("1"),
	}, login.AccessToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, env.server, http.MethodGet, "/v1/plus", nil, login.AccessToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestHealth(t *testing.T) {
	env := setupTestEnv(t)

	var body map[string]any
	expect(t, do(t, env.server, http.MethodGet, "/health", nil, ""), http.StatusOK, &body)

	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "connected", body["db"])
	assert.Equal(t, "connected", body["redis"])
	assert.Equal(t, "closed", body["accounts"])
}
