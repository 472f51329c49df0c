package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/canteen-ledger/internal/config"
	"github.com/iliyamo/canteen-ledger/internal/handler"
	"github.com/iliyamo/canteen-ledger/internal/metrics"
	"github.com/iliyamo/canteen-ledger/internal/model"
	"github.com/iliyamo/canteen-ledger/internal/service"
	"github.com/iliyamo/canteen-ledger/internal/session"
	"github.com/iliyamo/canteen-ledger/internal/storetest"
	"github.com/iliyamo/canteen-ledger/internal/utils"
)

const testSecret = "router-test-secret"

var (
	adminA = model.SessionUser{ID: "a1", Email: "a@x.io", WarName: "Alpha", IsAdmin: true}
	userU  = model.SessionUser{ID: "u1", Email: "test@example.com", WarName: "TestUser"}
	userV  = model.SessionUser{ID: "u2", Email: "v@x.io", WarName: "Victor"}
)

type server struct {
	e     *echo.Echo
	store *storetest.Store
	codec *session.Codec
}

// newServer seeds admins A (p at 10.00) and B (q at 5.00); U took 3×p and
// 2×q, V took nothing.  U's password is "secret1".
func newServer(t *testing.T) *server {
	t.Helper()
	m := storetest.New()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	h := string(hash)
	m.AddUser(model.User{ID: "a1", Email: "a@x.io", WarName: "Alpha", Phone: "1", IsAdmin: true})
	m.AddUser(model.User{ID: "b1", Email: "b@x.io", WarName: "Bravo", Phone: "2", IsAdmin: true})
	m.AddUser(model.User{ID: "u1", Email: "test@example.com", WarName: "TestUser", Phone: "3", PasswordHash: &h})
	m.AddUser(model.User{ID: "u2", Email: "v@x.io", WarName: "Victor", Phone: "4"})
	m.AddProduct("p", "a1", "10.00")
	m.AddProduct("q", "b1", "5.00")
	m.Consume("u1", "p", 3)
	m.Consume("u1", "q", 2)

	log := zap.NewNop()
	codec := session.NewCodec(testSecret)
	sessions := session.NewManager(codec, false)
	met := metrics.New(config.MetricsConfig{Namespace: "test"})
	hasher := utils.Hasher{Cost: bcrypt.MinCost}

	e := New(Handlers{
		Auth:          handler.NewAuthHandler(service.NewAuthService(m, hasher, time.Hour, log, met), sessions, log),
		Users:         handler.NewUserHandler(service.NewUserService(m, m.ConsumptionRepo(), log), log),
		Products:      handler.NewProductHandler(service.NewProductService(m.ProductRepo(), log), log),
		Consumptions:  handler.NewConsumptionHandler(service.NewConsumptionService(m.ConsumptionRepo(), m.ProductRepo(), log), log),
		Admin:         handler.NewAdminHandler(service.NewLedgerService(m, m.ConsumptionRepo(), nil, met, log), log),
		Notifications: handler.NewNotificationHandler(service.NewNotificationService(m.NotificationRepo()), log),
	}, Options{Sessions: sessions, Metrics: met, Logger: log})
	return &server{e: e, store: m, codec: codec}
}

func (s *server) do(t *testing.T, method, path, body string, as *model.SessionUser) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if as != nil {
		tok, err := s.codec.Encode(*as)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: tok})
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, rec, &body)
	return body.Error
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_http_requests_total")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestLoginIssuesSessionCookie(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodPost, "/auth/login", `{"identifier":"  TEST@EXAMPLE.COM  ","password":"secret1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		User model.SessionUser `json:"user"`
	}
	decode(t, rec, &body)
	assert.Equal(t, userU, body.User)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)
	assert.Equal(t, session.MaxAge, cookies[0].MaxAge)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, &userU, s.codec.Decode(cookies[0].Value))

	// the legacy field name and the warName both identify the user
	rec = s.do(t, http.MethodPost, "/auth/login", `{"email":"testuser","password":"secret1"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginFailures(t *testing.T) {
	s := newServer(t)
	cases := []struct {
		name, body, msg string
		code            int
	}{
		{"missing fields", `{"identifier":"","password":""}`, "identifier and password are required", http.StatusBadRequest},
		{"unknown user", `{"identifier":"nobody","password":"x"}`, "user not found", http.StatusUnauthorized},
		{"no credential", `{"identifier":"v@x.io","password":"x"}`, "invalid credentials", http.StatusUnauthorized},
		{"wrong password", `{"identifier":"test@example.com","password":"nope"}`, "wrong password", http.StatusUnauthorized},
		{"malformed body", `{"identifier":`, "invalid request body", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/auth/login", tc.body, nil)
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, tc.msg, errorOf(t, rec))
		})
	}
}

func TestSessionAndLogout(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/auth/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/auth/session", "", &userU)
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.SessionUser
	decode(t, rec, &got)
	assert.Equal(t, userU, got)

	rec = s.do(t, http.MethodPost, "/auth/logout", "", &userU)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestRegisterSignsIn(t *testing.T) {
	s := newServer(t)
	body := `{"email":"New@X.io","password":"secret1","warName":"Novo","rank":"Sgt","company":"3rd","phone":"9"}`
	rec := s.do(t, http.MethodPost, "/auth/register", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Set-Cookie"), session.CookieName+"=")

	rec = s.do(t, http.MethodPost, "/auth/register", body, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/register", `{"email":"not-an-email","password":"secret1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email must be a valid email", errorOf(t, rec))
}

func TestPasswordResetOverHTTP(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodPost, "/auth/forgot-password", `{"email":"missing@x.io"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/forgot-password", `{"email":"test@example.com"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fp struct {
		Token string `json:"token"`
	}
	decode(t, rec, &fp)
	assert.Len(t, fp.Token, 64)

	rec = s.do(t, http.MethodPost, "/auth/reset-password", `{"token":"`+fp.Token+`","newPassword":"short"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/reset-password", `{"token":"`+fp.Token+`","newPassword":"brand-new"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/login", `{"identifier":"test@example.com","password":"brand-new"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUsersListingIsTenantScoped(t *testing.T) {
	s := newServer(t)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/users", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/users", "", &userU).Code)

	rec := s.do(t, http.MethodGet, "/users", "", &adminA)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []struct {
		ID    string          `json:"id"`
		Total decimal.Decimal `json:"total"`
	}
	decode(t, rec, &list)
	totals := map[string]decimal.Decimal{}
	for _, u := range list {
		totals[u.ID] = u.Total
	}
	require.Contains(t, totals, "u1")
	assert.True(t, decimal.RequireFromString("30.00").Equal(totals["u1"]), "got %s", totals["u1"])
	assert.True(t, totals["u2"].IsZero())
	assert.NotContains(t, totals, "a1")
}

func TestProfileAccess(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodPut, "/users/u2", `{"warName":"Hijack"}`, &userU)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Victor", s.store.Users["u2"].WarName)

	rec = s.do(t, http.MethodPut, "/users/u1", `{"pixKey":"k"}`, &userU)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/users/u1", `{"rank":"Cpl"}`, &userU)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cpl", s.store.Users["u1"].Rank)

	rec = s.do(t, http.MethodGet, "/users/u1", "", &adminA)
	require.Equal(t, http.StatusOK, rec.Code)
	var d struct {
		Consumptions []json.RawMessage `json:"consumptions"`
		Debts        struct {
			Total decimal.Decimal `json:"total"`
		} `json:"debts"`
	}
	decode(t, rec, &d)
	assert.Len(t, d.Consumptions, 1)
	assert.True(t, decimal.NewFromInt(30).Equal(d.Debts.Total))

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/users/u1", "", &userV).Code)
}

func TestClearDebtWithNothingOwedStillNotifies(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodPost, "/admin/consumptions", `{"userId":"u2"}`, &adminA)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		Success bool  `json:"success"`
		Cleared int64 `json:"cleared"`
	}
	decode(t, rec, &res)
	assert.True(t, res.Success)
	assert.Zero(t, res.Cleared)

	rec = s.do(t, http.MethodGet, "/notifications", "", &userV)
	require.Equal(t, http.StatusOK, rec.Code)
	var page service.NotificationPage
	decode(t, rec, &page)
	require.Len(t, page.Notifications, 1)
	assert.Equal(t, service.DebtClearedMessage("Alpha"), page.Notifications[0].Message)
	assert.Equal(t, 1, page.Pagination.Total)
	assert.Equal(t, 20, page.Pagination.Limit)
}

func TestClearDebtKeepsOtherTenants(t *testing.T) {
	s := newServer(t)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/admin/consumptions", `{"userId":"u1"}`, &userU).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/admin/consumptions", `{}`, &adminA).Code)

	rec := s.do(t, http.MethodPost, "/admin/consumptions", `{"userId":"u1"}`, &adminA)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/users/u1", "", &userU)
	require.Equal(t, http.StatusOK, rec.Code)
	var d struct {
		Debts struct {
			ByAdmin map[string]json.RawMessage `json:"byAdmin"`
			Total   decimal.Decimal            `json:"total"`
		} `json:"debts"`
	}
	decode(t, rec, &d)
	assert.True(t, decimal.NewFromInt(10).Equal(d.Debts.Total))
	assert.Contains(t, d.Debts.ByAdmin, "b1")
	assert.NotContains(t, d.Debts.ByAdmin, "a1")
}

func TestProductListingShapes(t *testing.T) {
	s := newServer(t)
	var anon struct {
		Kind   string                     `json:"kind"`
		Groups map[string]json.RawMessage `json:"groups"`
	}
	rec := s.do(t, http.MethodGet, "/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &anon)
	assert.Equal(t, "GroupedByAdmin", anon.Kind)
	assert.Len(t, anon.Groups, 2)

	var own struct {
		Kind  string            `json:"kind"`
		Items []json.RawMessage `json:"items"`
	}
	rec = s.do(t, http.MethodGet, "/products", "", &adminA)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &own)
	assert.Equal(t, "Flat", own.Kind)
	require.Len(t, own.Items, 1)

	var item map[string]interface{}
	require.NoError(t, json.Unmarshal(own.Items[0], &item))
	assert.Equal(t, float64(10), item["price"], "price must be a JSON number")
}

func TestProductWrites(t *testing.T) {
	s := newServer(t)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/products", `{"name":"x","price":1}`, &userU).Code)

	rec := s.do(t, http.MethodPost, "/products", `{"name":"Coffee","price":2.5}`, &adminA)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p model.Product
	decode(t, rec, &p)
	assert.Equal(t, "a1", p.AdminID)

	rec = s.do(t, http.MethodPost, "/products", `{"name":"Free lunch"}`, &adminA)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "price is required", errorOf(t, rec))
	rec = s.do(t, http.MethodPost, "/products", `{"id":"`+p.ID+`","name":"Coffee"}`, &adminA)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/products", `{"id":"q","name":"Stolen","price":1}`, &adminA)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, "/products?id=p", "", &adminA)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodDelete, "/products?id="+p.ID, "", &adminA)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecordConsumption(t *testing.T) {
	s := newServer(t)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/consumptions", `{"productId":"p","quantity":1}`, nil).Code)

	rec := s.do(t, http.MethodPost, "/consumptions", `{"productId":"p","quantity":1}`, &userV)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/consumptions", `{"items":[{"productId":"q","quantity":2},{"productId":"nope","quantity":1}]}`, &userV)
	require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())
	var res service.RecordResult
	decode(t, rec, &res)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, http.StatusNotFound, res.Results[1].Status)

	rec = s.do(t, http.MethodPost, "/consumptions", `{"userId":"u1","productId":"p","quantity":1}`, &userV)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/consumptions", "", &userV)
	require.Equal(t, http.StatusOK, rec.Code)
	var lines []json.RawMessage
	decode(t, rec, &lines)
	assert.Len(t, lines, 2)
}

func TestAdminReports(t *testing.T) {
	s := newServer(t)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/admin/profit", "", &userU).Code)

	rec := s.do(t, http.MethodGet, "/admin/profit", "", &adminA)
	require.Equal(t, http.StatusOK, rec.Code)
	var profit struct {
		TotalProfit       decimal.Decimal `json:"totalProfit"`
		TotalQuantitySold int             `json:"totalQuantitySold"`
	}
	decode(t, rec, &profit)
	assert.True(t, decimal.NewFromInt(30).Equal(profit.TotalProfit))
	assert.Equal(t, 3, profit.TotalQuantitySold)

	rec = s.do(t, http.MethodGet, "/admin/pix?adminId=b1", "", &userU)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/admin/pix?adminId=u2", "", &userU)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodGet, "/admin/pix?adminId=b1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNotificationsValidation(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodPut, "/notifications", `{}`, &userU)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "notificationIds is required", errorOf(t, rec))

	rec = s.do(t, http.MethodPut, "/notifications/missing", "", &userU)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/notifications", "", &userU)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNotificationPaging(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/notifications?page=922337203685477580", "", &userV)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid page", errorOf(t, rec))

	for _, page := range []string{"-3", "abc", "99999999999999999999"} {
		rec = s.do(t, http.MethodGet, "/notifications?page="+page, "", &userV)
		require.Equal(t, http.StatusOK, rec.Code, page)
		var body service.NotificationPage
		decode(t, rec, &body)
		assert.Equal(t, 1, body.Pagination.Page, page)
	}
}
