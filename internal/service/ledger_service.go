package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ledger/internal/apperr"
	"github.com/iliyamo/canteen-ledger/internal/authz"
	"github.com/iliyamo/canteen-ledger/internal/ledger"
	"github.com/iliyamo/canteen-ledger/internal/metrics"
	"github.com/iliyamo/canteen-ledger/internal/model"
	"github.com/iliyamo/canteen-ledger/internal/queue"
)

// LedgerService runs the admin-side debt operations and reports.
type LedgerService struct {
	users     UserStore
	lines     ConsumptionStore
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewLedgerService(users UserStore, lines ConsumptionStore, publisher EventPublisher, m *metrics.Metrics, logger *zap.Logger) *LedgerService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &LedgerService{users: users, lines: lines, publisher: publisher, metrics: m, logger: logger}
}

// ClearResult reports a committed debt clearing.
type ClearResult struct {
	Cleared        int64  `json:"cleared"`
	NotificationID string `json:"notificationId"`
}

// DebtClearedMessage is the notification text sent to the user.
func DebtClearedMessage(adminName string) string {
	return fmt.Sprintf("Your debts were cleared by administrator %s", adminName)
}

// ClearDebt removes every consumption of userID against the caller's
// products and notifies the user, in one transaction.  Other admins' rows
// are untouched.  Clearing with nothing owed still notifies.
func (s *LedgerService) ClearDebt(ctx context.Context, sess *model.SessionUser, userID string) (ClearResult, error) {
	if err := authz.Authorize(sess, authz.ClearDebt, authz.OwnedBy(sessID(sess))); err != nil {
		return ClearResult{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ClearResult{}, apperr.Validation("userId is required")
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return ClearResult{}, storeErr(err, "user not found")
	}

	n := &model.Notification{
		UserID:  userID,
		Type:    model.NotificationDebtCleared,
		Message: DebtClearedMessage(sess.WarName),
	}
	cleared, err := s.lines.ClearDebt(ctx, userID, sess.ID, n)
	if err != nil {
		return ClearResult{}, apperr.Internal(err)
	}
	s.metrics.DebtCleared(cleared)
	s.logger.Info("debt cleared", zap.String("user_id", userID), zap.String("admin_id", sess.ID), zap.Int64("cleared", cleared))

	ev := queue.DebtClearedEvent{
		UserID:         userID,
		AdminID:        sess.ID,
		AdminName:      sess.WarName,
		ClearedCount:   cleared,
		NotificationID: n.ID,
		Message:        n.Message,
		ClearedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.publisher.PublishDebtCleared(ctx, ev); err != nil {
		s.logger.Warn("publish debt.cleared failed", zap.String("user_id", userID), zap.Error(err))
	}
	return ClearResult{Cleared: cleared, NotificationID: n.ID}, nil
}

// DeleteConsumption removes a single consumption row of one of the
// caller's products.
func (s *LedgerService) DeleteConsumption(ctx context.Context, sess *model.SessionUser, consumptionID string) error {
	if err := authz.Authorize(sess, authz.DeleteConsumption, authz.None); err != nil {
		return err
	}
	consumptionID = strings.TrimSpace(consumptionID)
	if consumptionID == "" {
		return apperr.Validation("consumptionId is required")
	}
	line, err := s.lines.GetLine(ctx, consumptionID)
	if err != nil {
		return storeErr(err, "consumption not found")
	}
	if err := authz.Authorize(sess, authz.DeleteConsumption, authz.OwnedBy(line.Product.Admin.ID)); err != nil {
		return err
	}
	if err := s.lines.Delete(ctx, consumptionID, sess.ID); err != nil {
		return storeErr(err, "consumption not found")
	}
	s.logger.Info("consumption deleted", zap.String("consumption_id", consumptionID), zap.String("admin_id", sess.ID))
	return nil
}

func (s *LedgerService) tenantLines(ctx context.Context, sess *model.SessionUser) ([]model.ConsumptionLine, error) {
	if err := authz.Authorize(sess, authz.ViewTenantReport, authz.None); err != nil {
		return nil, err
	}
	lines, err := s.lines.ListLines(ctx, model.LineFilter{AdminID: sess.ID})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return lines, nil
}

// Profit summarizes outstanding revenue on the caller's products.
func (s *LedgerService) Profit(ctx context.Context, sess *model.SessionUser) (ledger.ProfitSummary, error) {
	lines, err := s.tenantLines(ctx, sess)
	if err != nil {
		return ledger.ProfitSummary{}, err
	}
	return ledger.Profit(lines, sess.ID), nil
}

// ProductsSold breaks outstanding revenue down per product.
func (s *LedgerService) ProductsSold(ctx context.Context, sess *model.SessionUser) ([]ledger.ProductSale, error) {
	lines, err := s.tenantLines(ctx, sess)
	if err != nil {
		return nil, err
	}
	return ledger.ProductSales(lines, sess.ID), nil
}

// BillingInfo is how to pay one admin.
type BillingInfo struct {
	AdminID   string  `json:"adminId"`
	WarName   string  `json:"warName"`
	PixKey    *string `json:"pixKey"`
	PixQrCode *string `json:"pixQrCode"`
}

// BillingInfo returns the payment details of adminID to any signed-in user.
func (s *LedgerService) BillingInfo(ctx context.Context, sess *model.SessionUser, adminID string) (BillingInfo, error) {
	if err := authz.Authorize(sess, authz.ViewSelf, authz.None); err != nil {
		return BillingInfo{}, err
	}
	adminID = strings.TrimSpace(adminID)
	if adminID == "" {
		return BillingInfo{}, apperr.Validation("adminId is required")
	}
	u, err := s.users.GetByID(ctx, adminID)
	if err != nil {
		return BillingInfo{}, storeErr(err, "admin not found")
	}
	if !u.IsAdmin {
		return BillingInfo{}, apperr.NotFound("admin not found")
	}
	return BillingInfo{AdminID: u.ID, WarName: u.WarName, PixKey: u.PixKey, PixQrCode: u.PixQrCode}, nil
}

func sessID(s *model.SessionUser) string {
	if s == nil {
		return ""
	}
	return s.ID
}
