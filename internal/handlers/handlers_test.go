package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-pos-ledger/internal/ai"
	"go-pos-ledger/internal/auth"
	"go-pos-ledger/internal/database/dbtest"
	"go-pos-ledger/internal/handlers"
	"go-pos-ledger/internal/idempotency"
	"go-pos-ledger/internal/images"
	"go-pos-ledger/internal/inventory"
	"go-pos-ledger/internal/ledger"
	"go-pos-ledger/internal/models"
	"go-pos-ledger/internal/reports"
	"go-pos-ledger/internal/sales"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	router *gin.Engine
	users  *auth.Directory
	tokens *auth.TokenIssuer
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.New(t)
	w := ledger.NewWriter(db)
	users := auth.NewDirectory(db)
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	inv := inventory.NewService(db, w, nil)
	repo := sales.NewRepository(db)
	engine := reports.NewEngine(db, repo, time.UTC)

	h := &handlers.Handler{
		Users:       users,
		Tokens:      tokens,
		Inventory:   inv,
		Sales:       sales.NewService(w, repo, users, nil, nil),
		SaleRecords: repo,
		Reports:     engine,
		Images:      images.NewStore(db, t.TempDir(), "/uploads", nil),
		Agent:       ai.NewAgent("", ai.NewTools(inv, engine, time.UTC), time.UTC),
		Idempotency: idempotency.NewMemoryGuard(time.Minute),
		Log:         zap.NewNop(),
	}
	r := gin.New()
	h.Mount(r, true)
	return &testServer{router: r, users: users, tokens: tokens}
}

func (s *testServer) token(t *testing.T, username string, role models.Role, store models.Store) string {
	t.Helper()
	u, err := s.users.Register(t.Context(), username, "secret-pass", role, store)
	require.NoError(t, err)
	tok, err := s.tokens.GenerateToken(u)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(method, path, token string, body any, header ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func createProduct(t *testing.T, s *testServer, token string, qty int) string {
	t.Helper()
	rec := s.do(http.MethodPost, "/api/products", token, map[string]any{
		"name": "Rice", "store": "store1", "quantity": qty, "usd_price": "5", "lrd_price": "900",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(t, rec)["id"].(string)
}

func TestInitialAdminAndLogin(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodPost, "/auth/initial-admin", "", map[string]string{"username": "root", "password": "pw-123456"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/auth/initial-admin", "", map[string]string{"username": "other", "password": "pw-123456"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "root", "password": "pw-123456"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, "admin", body["role"])

	rec = s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "root", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode(t, rec)["kind"])
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodGet, "/api/products/store/store1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/products/store/store1", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateSaleFlow(t *testing.T) {
	s := newServer(t)
	admin := s.token(t, "boss", models.RoleAdmin, "")
	id := createProduct(t, s, admin, 10)

	rec := s.do(http.MethodPost, "/api/sales", admin, map[string]any{
		"items":          []map[string]any{{"product_id": id, "quantity": 3}},
		"store":          "store1",
		"payment_method": "usd",
		"amount_paid":    "15",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sale := decode(t, rec)
	assert.Equal(t, "15", sale["total_amount"].(map[string]any)["usd"])

	rec = s.do(http.MethodGet, "/api/products/details/"+id, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 7, decode(t, rec)["current_quantity"])

	rec = s.do(http.MethodPost, "/api/sales", admin, map[string]any{
		"items":          []map[string]any{{"product_id": id, "quantity": 8}},
		"store":          "store1",
		"payment_method": "usd",
		"amount_paid":    "40",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "insufficient_stock", decode(t, rec)["kind"])

	rec = s.do(http.MethodGet, "/api/sales/"+sale["id"].(string), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "boss", decode(t, rec)["sold_by"])

	rec = s.do(http.MethodGet, "/api/sales/report/daily?store=store1", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, decode(t, rec)["sales_count"])
}

func TestCreateSale_IdempotencyKey(t *testing.T) {
	s := newServer(t)
	admin := s.token(t, "boss", models.RoleAdmin, "")
	id := createProduct(t, s, admin, 10)

	sale := map[string]any{
		"items":          []map[string]any{{"product_id": id, "quantity": 1}},
		"store":          "store1",
		"payment_method": "lrd",
		"amount_paid":    "900",
	}
	rec := s.do(http.MethodPost, "/api/sales", admin, sale, handlers.IdempotencyHeader, "k-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/sales", admin, sale, handlers.IdempotencyHeader, "k-1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decode(t, rec)["kind"])

	// a failed sale frees its key
	tooMany := map[string]any{
		"items":          []map[string]any{{"product_id": id, "quantity": 50}},
		"store":          "store1",
		"payment_method": "lrd",
		"amount_paid":    "0",
	}
	rec = s.do(http.MethodPost, "/api/sales", admin, tooMany, handlers.IdempotencyHeader, "k-2")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "insufficient_stock", decode(t, rec)["kind"])
	rec = s.do(http.MethodPost, "/api/sales", admin, sale, handlers.IdempotencyHeader, "k-2")
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestManagerIsScopedToStore(t *testing.T) {
	s := newServer(t)
	admin := s.token(t, "boss", models.RoleAdmin, "")
	manager := s.token(t, "mary", models.RoleManager, models.Store2)
	id := createProduct(t, s, admin, 10)

	rec := s.do(http.MethodGet, "/api/products/store/store1", manager, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/api/products/store/store2", manager, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/sales", manager, map[string]any{
		"items":          []map[string]any{{"product_id": id, "quantity": 1}},
		"store":          "store1",
		"payment_method": "usd",
		"amount_paid":    "5",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/api/ask", manager, map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdjustments(t *testing.T) {
	s := newServer(t)
	admin := s.token(t, "boss", models.RoleAdmin, "")
	id := createProduct(t, s, admin, 2)

	rec := s.do(http.MethodPatch, "/api/products/"+id+"/quantity", admin, map[string]any{"quantity": 3, "type": "subtraction"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPatch, "/api/products/"+id+"/quantity", admin, map[string]any{"quantity": 3, "type": "addition"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 5, decode(t, rec)["current_quantity"])

	rec = s.do(http.MethodPatch, "/api/products/"+id+"/quantity", admin, map[string]any{"quantity": 1, "type": "teleport"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPatch, "/api/products/"+id+"/prices", admin, map[string]any{"usd_price": "6.25"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "6.25", decode(t, rec)["current_usd_price"])

	rec = s.do(http.MethodPatch, "/api/products/missing/prices", admin, map[string]any{"usd_price": "1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSalesReportAndExport(t *testing.T) {
	s := newServer(t)
	admin := s.token(t, "boss", models.RoleAdmin, "")
	createProduct(t, s, admin, 4)

	rec := s.do(http.MethodGet, "/api/sales/store/store1", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	rec = s.do(http.MethodGet, "/api/sales/store/store1?startDate=2024-01-31&endDate=2024-01-01", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/sales/store/store1?startDate=jan&endDate=feb", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/sales/store/store1/export", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.NotZero(t, rec.Body.Len())

	rec = s.do(http.MethodGet, "/api/sales/report/daily", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAskAI_WithoutKey(t *testing.T) {
	s := newServer(t)
	admin := s.token(t, "boss", models.RoleAdmin, "")

	rec := s.do(http.MethodPost, "/api/ask", admin, map[string]string{"message": "how much rice?"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDeleteUser(t *testing.T) {
	s := newServer(t)
	admin := s.token(t, "boss", models.RoleAdmin, "")
	s.token(t, "mary", models.RoleManager, models.Store2)

	rec := s.do(http.MethodDelete, "/api/auth/users/mary?store=store2", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodDelete, "/api/auth/users/mary?store=store2", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestManagerCannotTouchOtherStoreProducts(t *testing.T) {
	s := newServer(t)
	admin := s.token(t, "boss", models.RoleAdmin, "")
	manager := s.token(t, "mary", models.RoleManager, models.Store2)
	id := createProduct(t, s, admin, 10)

	cases := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/products/details/" + id, nil},
		{http.MethodPatch, "/api/products/" + id + "/quantity", map[string]any{"quantity": 10, "type": "subtraction"}},
		{http.MethodPatch, "/api/products/" + id + "/prices", map[string]any{"usd_price": "0.01"}},
		{http.MethodPost, "/api/images/" + id, nil},
		{http.MethodGet, "/api/images/" + id, nil},
		{http.MethodDelete, "/api/images/" + id + "/a.png", nil},
	}
	for _, tc := range cases {
		rec := s.do(tc.method, tc.path, manager, tc.body)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", tc.method, tc.path)
	}

	// stock and prices are unchanged
	rec := s.do(http.MethodGet, "/api/products/details/"+id, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 10, body["current_quantity"])
	assert.Equal(t, "5", body["current_usd_price"])

	// unknown ids still answer 404
	rec = s.do(http.MethodPatch, "/api/products/missing/quantity", manager, map[string]any{"quantity": 1, "type": "addition"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
