package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/canteen-ledger/internal/apperr"
	"github.com/iliyamo/canteen-ledger/internal/authz"
	"github.com/iliyamo/canteen-ledger/internal/ledger"
	"github.com/iliyamo/canteen-ledger/internal/model"
	"github.com/iliyamo/canteen-ledger/internal/storetest"
	"github.com/iliyamo/canteen-ledger/internal/utils"
)

var errBoom = errors.New("boom")

var (
	adminA = &model.SessionUser{ID: "a1", Email: "a@x.io", WarName: "Alpha", IsAdmin: true}
	adminB = &model.SessionUser{ID: "b1", Email: "b@x.io", WarName: "Bravo", IsAdmin: true}
	userU  = &model.SessionUser{ID: "u1", Email: "u@x.io", WarName: "Uniform"}
)

// fixture: A sells p (10.00), B sells q (5.00); U took 3×p and 2×q.
func fixture(t *testing.T) *storetest.Store {
	t.Helper()
	m := storetest.New()
	m.AddUser(model.User{ID: "a1", Email: "a@x.io", WarName: "Alpha", Phone: "1", IsAdmin: true})
	m.AddUser(model.User{ID: "b1", Email: "b@x.io", WarName: "Bravo", Phone: "2", IsAdmin: true})
	m.AddUser(model.User{ID: "u1", Email: "u@x.io", WarName: "Uniform", Phone: "3", Company: "1st"})
	m.AddUser(model.User{ID: "u2", Email: "v@x.io", WarName: "Victor", Phone: "4", Company: "2nd"})
	m.AddProduct("p", "a1", "10.00")
	m.AddProduct("q", "b1", "5.00")
	m.Consume("u1", "p", 3)
	m.Consume("u1", "q", 2)
	return m
}

func TestListWithTotalsIsTenantScoped(t *testing.T) {
	m := fixture(t)
	svc := NewUserService(m, m.ConsumptionRepo(), zap.NewNop())

	out, err := svc.ListWithTotals(context.Background(), adminA, UserListQuery{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "u1", out[0].ID)
	assert.True(t, decimal.RequireFromString("30.00").Equal(out[0].Total), "got %s", out[0].Total)
	assert.True(t, out[1].Total.IsZero())

	out, err = svc.ListWithTotals(context.Background(), adminA, UserListQuery{Company: "2nd"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "u2", out[0].ID)

	_, err = svc.ListWithTotals(context.Background(), userU, UserListQuery{})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = svc.ListWithTotals(context.Background(), nil, UserListQuery{})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestDetail(t *testing.T) {
	m := fixture(t)
	svc := NewUserService(m, m.ConsumptionRepo(), zap.NewNop())
	ctx := context.Background()

	self, err := svc.Detail(ctx, userU, "u1")
	require.NoError(t, err)
	assert.Len(t, self.Consumptions, 2)
	assert.True(t, decimal.NewFromInt(40).Equal(self.Debts.Total))
	assert.Len(t, self.Debts.ByAdmin, 2)

	asA, err := svc.Detail(ctx, adminA, "u1")
	require.NoError(t, err)
	assert.Len(t, asA.Consumptions, 1)
	assert.True(t, decimal.NewFromInt(30).Equal(asA.Debts.Total))
	assert.NotContains(t, asA.Debts.ByAdmin, "b1")

	_, err = svc.Detail(ctx, userU, "u2")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = svc.Detail(ctx, adminA, "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	m := fixture(t)
	svc := NewUserService(m, m.ConsumptionRepo(), zap.NewNop())
	ctx := context.Background()
	str := func(s string) *string { return &s }

	u, err := svc.UpdateProfile(ctx, userU, "u1", model.ProfileUpdate{Rank: str("  Sgt ")})
	require.NoError(t, err)
	assert.Equal(t, "Sgt", u.Rank)

	_, err = svc.UpdateProfile(ctx, userU, "u2", model.ProfileUpdate{Rank: str("Sgt")})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.UpdateProfile(ctx, userU, "u1", model.ProfileUpdate{PixKey: str("key")})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	a, err := svc.UpdateProfile(ctx, adminA, "a1", model.ProfileUpdate{PixKey: str("key")})
	require.NoError(t, err)
	require.NotNil(t, a.PixKey)
	assert.Equal(t, "key", *a.PixKey)

	_, err = svc.UpdateProfile(ctx, userU, "u1", model.ProfileUpdate{WarName: str("  ")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestProductListShapes(t *testing.T) {
	m := fixture(t)
	svc := NewProductService(m.ProductRepo(), zap.NewNop())
	ctx := context.Background()

	flat, err := svc.List(ctx, adminA, false)
	require.NoError(t, err)
	assert.Equal(t, authz.Flat, flat.Kind)
	require.Len(t, flat.Items, 1)
	assert.Equal(t, "p", flat.Items[0].ID)

	grouped, err := svc.List(ctx, nil, false)
	require.NoError(t, err)
	assert.Equal(t, authz.GroupedByAdmin, grouped.Kind)
	require.Len(t, grouped.Groups, 2)
	assert.Equal(t, "Bravo", grouped.Groups["b1"].Admin.WarName)

	raw, err := json.Marshal(flat)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"kind":"Flat"`)
	assert.NotContains(t, string(raw), `"groups"`)

	empty, err := json.Marshal(ProductListing{Kind: authz.GroupedByAdmin})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"GroupedByAdmin","groups":{}}`, string(empty))
}

func TestProductSaveAndDelete(t *testing.T) {
	m := fixture(t)
	svc := NewProductService(m.ProductRepo(), zap.NewNop())
	ctx := context.Background()

	p, created, err := svc.Save(ctx, adminA, ProductInput{Name: " Tea ", Price: decimal.RequireFromString("1.255")})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Tea", p.Name)
	assert.Equal(t, "a1", p.AdminID)
	assert.True(t, p.Available)
	assert.Equal(t, "1.26", p.Price.StringFixed(2))

	off := false
	p, created, err = svc.Save(ctx, adminA, ProductInput{ID: p.ID, Name: "Tea", Price: decimal.NewFromInt(2), Available: &off})
	require.NoError(t, err)
	assert.False(t, created)
	assert.False(t, p.Available)

	_, _, err = svc.Save(ctx, adminB, ProductInput{ID: "p", Name: "Stolen", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, _, err = svc.Save(ctx, adminA, ProductInput{ID: "missing", Name: "X", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, _, err = svc.Save(ctx, userU, ProductInput{Name: "X", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, _, err = svc.Save(ctx, adminA, ProductInput{Name: "X", Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.ErrorIs(t, svc.Delete(ctx, adminA, ""), apperr.ErrValidation)
	assert.ErrorIs(t, svc.Delete(ctx, adminB, "p"), apperr.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, adminA, "p"), apperr.ErrConflict)
	assert.NoError(t, svc.Delete(ctx, adminA, p.ID))
	assert.ErrorIs(t, svc.Delete(ctx, adminA, p.ID), apperr.ErrNotFound)
}

func TestRecordConsumptionPartialSuccess(t *testing.T) {
	m := fixture(t)
	m.Products["q"].Available = false
	svc := NewConsumptionService(m.ConsumptionRepo(), m.ProductRepo(), zap.NewNop())
	ctx := context.Background()

	res, err := svc.Record(ctx, userU, "", []ConsumptionItem{
		{ProductID: "p", Quantity: 1},
		{ProductID: "q", Quantity: 1},
		{ProductID: "nope", Quantity: 1},
		{ProductID: "p", Quantity: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 3, res.Failed)
	assert.Equal(t, http.StatusMultiStatus, res.Status())
	assert.Equal(t, []int{201, 409, 404, 400}, []int{res.Results[0].Status, res.Results[1].Status, res.Results[2].Status, res.Results[3].Status})
	assert.NoError(t, res.Results[0].Err())
	assert.ErrorIs(t, res.Results[2].Err(), apperr.ErrNotFound)

	lines, err := svc.List(ctx, userU)
	require.NoError(t, err)
	assert.Len(t, lines, 3)
}

func TestRecordConsumptionOnBehalf(t *testing.T) {
	m := fixture(t)
	svc := NewConsumptionService(m.ConsumptionRepo(), m.ProductRepo(), zap.NewNop())
	ctx := context.Background()

	_, err := svc.Record(ctx, userU, "u2", []ConsumptionItem{{ProductID: "p", Quantity: 1}})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	res, err := svc.Record(ctx, adminA, "u2", []ConsumptionItem{{ProductID: "p", Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.Status())
	assert.Equal(t, "u2", res.Results[0].Consumption.UserID)

	res, err = svc.Record(ctx, userU, "", []ConsumptionItem{{ProductID: "nope", Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.Status())

	_, err = svc.Record(ctx, userU, "", nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestClearDebtOnlyTouchesOwnTenant(t *testing.T) {
	m := fixture(t)
	pub := &storetest.Publisher{}
	svc := NewLedgerService(m, m.ConsumptionRepo(), pub, nil, zap.NewNop())
	ctx := context.Background()

	res, err := svc.ClearDebt(ctx, adminA, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Cleared)
	assert.NotEmpty(t, res.NotificationID)

	lines, _ := m.ConsumptionRepo().ListLines(ctx, model.LineFilter{UserID: "u1"})
	require.Len(t, lines, 1)
	assert.Equal(t, "b1", lines[0].Product.Admin.ID)

	users := NewUserService(m, m.ConsumptionRepo(), zap.NewNop())
	list, err := users.ListWithTotals(ctx, adminA, UserListQuery{})
	require.NoError(t, err)
	assert.True(t, list[0].Total.IsZero())

	require.Len(t, m.Notifications, 1)
	assert.Equal(t, model.NotificationDebtCleared, m.Notifications[0].Type)
	assert.Equal(t, "u1", m.Notifications[0].UserID)
	assert.Contains(t, m.Notifications[0].Message, "Alpha")

	require.Len(t, pub.Events, 1)
	assert.Equal(t, "a1", pub.Events[0].AdminID)
	assert.Equal(t, res.NotificationID, pub.Events[0].NotificationID)
}

func TestClearDebtWithNothingOwed(t *testing.T) {
	m := fixture(t)
	pub := &storetest.Publisher{Err: errBoom}
	svc := NewLedgerService(m, m.ConsumptionRepo(), pub, nil, zap.NewNop())

	res, err := svc.ClearDebt(context.Background(), adminA, "u2")
	require.NoError(t, err, "publish failures must not fail the request")
	assert.Zero(t, res.Cleared)
	assert.Len(t, m.Notifications, 1)
}

func TestClearDebtErrors(t *testing.T) {
	m := fixture(t)
	svc := NewLedgerService(m, m.ConsumptionRepo(), nil, nil, zap.NewNop())
	ctx := context.Background()

	_, err := svc.ClearDebt(ctx, userU, "u1")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = svc.ClearDebt(ctx, nil, "u1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = svc.ClearDebt(ctx, adminA, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.ClearDebt(ctx, adminA, "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	m.FailClear = errBoom
	_, err = svc.ClearDebt(ctx, adminA, "u1")
	assert.ErrorIs(t, err, apperr.ErrInternal)
	assert.Empty(t, m.Notifications)
	assert.Len(t, m.Consumptions, 2)
}

func TestDeleteConsumptionScoped(t *testing.T) {
	m := fixture(t)
	svc := NewLedgerService(m, m.ConsumptionRepo(), nil, nil, zap.NewNop())
	ctx := context.Background()
	pID := m.Consumptions[0].ID

	assert.ErrorIs(t, svc.DeleteConsumption(ctx, adminB, pID), apperr.ErrForbidden)
	assert.ErrorIs(t, svc.DeleteConsumption(ctx, adminA, "ghost"), apperr.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteConsumption(ctx, userU, pID), apperr.ErrForbidden)
	require.NoError(t, svc.DeleteConsumption(ctx, adminA, pID))
	assert.Len(t, m.Consumptions, 1)
}

func TestReportsAndBilling(t *testing.T) {
	m := fixture(t)
	pix := "alpha-pix"
	m.Users["a1"].PixKey = &pix
	svc := NewLedgerService(m, m.ConsumptionRepo(), nil, nil, zap.NewNop())
	ctx := context.Background()

	p, err := svc.Profit(ctx, adminA)
	require.NoError(t, err)
	assert.Equal(t, ledger.ProfitSummary{TotalProfit: p.TotalProfit, TotalQuantitySold: 3}, p)
	assert.True(t, decimal.NewFromInt(30).Equal(p.TotalProfit))

	sold, err := svc.ProductsSold(ctx, adminB)
	require.NoError(t, err)
	require.Len(t, sold, 1)
	assert.Equal(t, "q", sold[0].Product.ID)

	_, err = svc.Profit(ctx, userU)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	info, err := svc.BillingInfo(ctx, userU, "a1")
	require.NoError(t, err)
	assert.Equal(t, "alpha-pix", *info.PixKey)
	_, err = svc.BillingInfo(ctx, userU, "u2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.BillingInfo(ctx, userU, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestNotifications(t *testing.T) {
	m := fixture(t)
	for i := 0; i < 21; i++ {
		m.Notifications = append(m.Notifications, model.Notification{ID: string(rune('a' + i)), UserID: "u1", Type: model.NotificationDebtCleared})
	}
	m.Notifications = append(m.Notifications, model.Notification{ID: "other", UserID: "u2"})
	svc := NewNotificationService(m.NotificationRepo())
	ctx := context.Background()

	page, err := svc.List(ctx, userU, 0)
	require.NoError(t, err)
	assert.Len(t, page.Notifications, 20)
	assert.Equal(t, Pagination{Page: 1, Limit: 20, Total: 21, Pages: 2}, page.Pagination)

	page, err = svc.List(ctx, userU, 3)
	require.NoError(t, err)
	assert.NotNil(t, page.Notifications)
	assert.Empty(t, page.Notifications)

	_, err = svc.List(ctx, userU, math.MaxInt/NotificationsPerPage+2)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.List(ctx, userU, math.MaxInt)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	n, err := svc.MarkRead(ctx, userU, []string{"a", " b ", "", "other"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	assert.ErrorIs(t, svc.MarkOneRead(ctx, userU, "other"), apperr.ErrNotFound)
	assert.NoError(t, svc.MarkOneRead(ctx, userU, "c"))

	n, err = svc.Clear(ctx, userU)
	require.NoError(t, err)
	assert.EqualValues(t, 21, n)
	assert.Len(t, m.Notifications, 1)

	_, err = svc.List(ctx, nil, 1)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func newAuth(m *storetest.Store) *AuthService {
	return NewAuthService(m, utils.Hasher{Cost: bcrypt.MinCost}, time.Hour, zap.NewNop(), nil)
}

func TestRegisterAndLogin(t *testing.T) {
	m := storetest.New()
	svc := newAuth(m)
	ctx := context.Background()

	reg := Registration{Email: " Test@Example.com ", Password: "password123", WarName: "TestUser", Rank: "Sgt", Company: "1st", Phone: "555"}
	u, err := svc.Register(ctx, reg)
	require.NoError(t, err)
	assert.Equal(t, "test@example.com", u.Email)
	assert.Nil(t, u.PasswordHash)
	assert.False(t, u.IsAdmin)

	_, err = svc.Register(ctx, reg)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.Register(ctx, Registration{Email: "x@y.z", Password: "password123"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err := svc.Login(ctx, "  TEST@EXAMPLE.COM  ", "password123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Login(ctx, "testuser", "wrong")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.Equal(t, "wrong password", apperr.From(err).Message)

	_, err = svc.Login(ctx, "nobody", "password123")
	assert.Equal(t, "user not found", apperr.From(err).Message)

	_, err = svc.Login(ctx, "", "x")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	m.AddUser(model.User{ID: "g", Email: "guest@x.io", WarName: "Guest", Phone: "9"})
	_, err = svc.Login(ctx, "guest", "anything")
	assert.Equal(t, "invalid credentials", apperr.From(err).Message)
}

func TestPasswordResetFlow(t *testing.T) {
	m := storetest.New()
	svc := newAuth(m)
	ctx := context.Background()

	_, err := svc.Register(ctx, Registration{Email: "r@x.io", Password: "oldpass", WarName: "R", Rank: "Pvt", Company: "1st", Phone: "7"})
	require.NoError(t, err)

	_, err = svc.ForgotPassword(ctx, "missing@x.io")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	tok, err := svc.ForgotPassword(ctx, " R@X.io ")
	require.NoError(t, err)
	assert.Len(t, tok.Raw, 64)

	stored, _ := m.GetByEmail(ctx, "r@x.io")
	require.NotNil(t, stored.ResetToken)
	assert.Equal(t, utils.HashToken(tok.Raw), *stored.ResetToken)

	assert.ErrorIs(t, svc.ResetPassword(ctx, tok.Raw, "short"), apperr.ErrValidation)
	assert.ErrorIs(t, svc.ResetPassword(ctx, "bogus", "newpass1"), apperr.ErrValidation)

	require.NoError(t, svc.ResetPassword(ctx, tok.Raw, "newpass1"))
	_, err = svc.Login(ctx, "r@x.io", "newpass1")
	assert.NoError(t, err)

	// token is single-use
	assert.ErrorIs(t, svc.ResetPassword(ctx, tok.Raw, "another1"), apperr.ErrValidation)
}

func TestResetPasswordExpired(t *testing.T) {
	m := storetest.New()
	svc := newAuth(m)
	ctx := context.Background()
	_, err := svc.Register(ctx, Registration{Email: "e@x.io", Password: "oldpass", WarName: "E", Rank: "Pvt", Company: "1st", Phone: "8"})
	require.NoError(t, err)
	tok, err := svc.ForgotPassword(ctx, "e@x.io")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	assert.ErrorIs(t, svc.ResetPassword(ctx, tok.Raw, "newpass1"), apperr.ErrValidation)
}

func TestSeedAdmin(t *testing.T) {
	m := storetest.New()
	svc := newAuth(m)
	ctx := context.Background()

	u, created, err := svc.SeedAdmin(ctx, Registration{Email: "boss@x.io", Password: "secret1", WarName: "Boss", Rank: "Maj", Company: "HQ", Phone: "1"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, u.IsAdmin)

	m.AddUser(model.User{ID: "plain", Email: "plain@x.io", WarName: "Plain", Phone: "2"})
	u, created, err = svc.SeedAdmin(ctx, Registration{Email: "PLAIN@x.io"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, u.IsAdmin)
	assert.True(t, m.Users["plain"].IsAdmin)
}
