package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ledger/internal/apperr"
	"github.com/iliyamo/canteen-ledger/internal/authz"
	"github.com/iliyamo/canteen-ledger/internal/model"
)

// ConsumptionService records what users take.
type ConsumptionService struct {
	lines    ConsumptionStore
	products ProductStore
	logger   *zap.Logger
}

func NewConsumptionService(lines ConsumptionStore, products ProductStore, logger *zap.Logger) *ConsumptionService {
	return &ConsumptionService{lines: lines, products: products, logger: logger}
}

// List returns the caller's own consumption lines across all admins.
func (s *ConsumptionService) List(ctx context.Context, sess *model.SessionUser) ([]model.ConsumptionLine, error) {
	if err := authz.Authorize(sess, authz.ViewSelf, authz.None); err != nil {
		return nil, err
	}
	lines, err := s.lines.ListLines(ctx, model.LineFilter{UserID: sess.ID})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return lines, nil
}

// ConsumptionItem is one cart entry.
type ConsumptionItem struct {
	ProductID string
	Quantity  int
}

// ItemResult is the outcome of one cart entry.
type ItemResult struct {
	ProductID   string             `json:"productId"`
	Quantity    int                `json:"quantity"`
	Status      int                `json:"status"`
	Consumption *model.Consumption `json:"consumption,omitempty"`
	Error       string             `json:"error,omitempty"`
	err         *apperr.Error
}

// Err returns the failure of this item, or nil.
func (r ItemResult) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

// RecordResult reports every item of a cart submission.
type RecordResult struct {
	Results []ItemResult `json:"results"`
	Created int          `json:"created"`
	Failed  int          `json:"failed"`
}

// Status is 201 when every item was stored, 207 when only some were, and
// the first failure's status when none were.
func (r RecordResult) Status() int {
	switch {
	case r.Failed == 0:
		return http.StatusCreated
	case r.Created > 0:
		return http.StatusMultiStatus
	}
	return r.Results[0].Status
}

// Record stores items for userID, or for the caller when userID is empty.
// Only admins may record on behalf of someone else.  Items are independent:
// a failed item does not undo the others.
func (s *ConsumptionService) Record(ctx context.Context, sess *model.SessionUser, userID string, items []ConsumptionItem) (RecordResult, error) {
	userID = strings.TrimSpace(userID)
	if err := authz.Authorize(sess, authz.RecordConsumption, authz.User(userID)); err != nil {
		return RecordResult{}, err
	}
	if userID == "" {
		userID = sess.ID
	}
	if len(items) == 0 {
		return RecordResult{}, apperr.Validation("at least one item is required")
	}

	res := RecordResult{Results: make([]ItemResult, 0, len(items))}
	for _, it := range items {
		r := s.recordOne(ctx, userID, it)
		if r.err != nil {
			r.Status = r.err.HTTPCode
			r.Error = r.err.Message
			res.Failed++
		} else {
			r.Status = http.StatusCreated
			res.Created++
		}
		res.Results = append(res.Results, r)
	}
	if res.Created > 0 {
		s.logger.Info("consumption recorded", zap.String("user_id", userID), zap.String("by", sess.ID),
			zap.Int("created", res.Created), zap.Int("failed", res.Failed))
	}
	return res, nil
}

func (s *ConsumptionService) recordOne(ctx context.Context, userID string, it ConsumptionItem) ItemResult {
	r := ItemResult{ProductID: strings.TrimSpace(it.ProductID), Quantity: it.Quantity}
	if r.ProductID == "" {
		r.err = apperr.Validation("productId is required")
		return r
	}
	if it.Quantity <= 0 {
		r.err = apperr.Validation("quantity must be positive")
		return r
	}
	p, err := s.products.GetByID(ctx, r.ProductID)
	if err != nil {
		r.err = apperr.From(storeErr(err, "product not found"))
		s.logInternal(r.err)
		return r
	}
	if !p.Available {
		r.err = apperr.Conflict("product is not available")
		return r
	}
	c := &model.Consumption{UserID: userID, ProductID: p.ID, Quantity: it.Quantity}
	if err := s.lines.Create(ctx, c); err != nil {
		r.err = apperr.From(storeErr(err, "user or product not found"))
		s.logInternal(r.err)
		return r
	}
	r.Consumption = c
	return r
}

func (s *ConsumptionService) logInternal(e *apperr.Error) {
	if errors.Is(e, apperr.ErrInternal) {
		s.logger.Error("consumption item failed", zap.Error(e.Err))
	}
}
