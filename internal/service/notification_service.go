package service

import (
	"context"
	"math"
	"strings"

	"github.com/iliyamo/canteen-ledger/internal/apperr"
	"github.com/iliyamo/canteen-ledger/internal/authz"
	"github.com/iliyamo/canteen-ledger/internal/model"
)

// NotificationsPerPage is the fixed page size of notification listings.
const NotificationsPerPage = 20

// NotificationService serves the caller's own notifications.
type NotificationService struct {
	notifications NotificationStore
}

func NewNotificationService(notifications NotificationStore) *NotificationService {
	return &NotificationService{notifications: notifications}
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type NotificationPage struct {
	Notifications []model.Notification `json:"notifications"`
	Pagination    Pagination           `json:"pagination"`
}

// maxNotificationPage keeps the row offset of a page within int.
const maxNotificationPage = math.MaxInt/NotificationsPerPage + 1

// List returns page (1-based) of the caller's notifications, newest first.
// Pages below 1 read as 1.
func (s *NotificationService) List(ctx context.Context, sess *model.SessionUser, page int) (NotificationPage, error) {
	if err := authz.Authorize(sess, authz.ViewSelf, authz.None); err != nil {
		return NotificationPage{}, err
	}
	if page < 1 {
		page = 1
	}
	if page > maxNotificationPage {
		return NotificationPage{}, apperr.Validation("invalid page")
	}
	items, total, err := s.notifications.ListByUser(ctx, sess.ID, NotificationsPerPage, (page-1)*NotificationsPerPage)
	if err != nil {
		return NotificationPage{}, apperr.Internal(err)
	}
	if items == nil {
		items = []model.Notification{}
	}
	return NotificationPage{
		Notifications: items,
		Pagination: Pagination{
			Page:  page,
			Limit: NotificationsPerPage,
			Total: total,
			Pages: (total + NotificationsPerPage - 1) / NotificationsPerPage,
		},
	}, nil
}

// MarkRead flags the caller's notifications among ids as read and returns
// how many changed.
func (s *NotificationService) MarkRead(ctx context.Context, sess *model.SessionUser, ids []string) (int64, error) {
	if err := authz.Authorize(sess, authz.ViewSelf, authz.None); err != nil {
		return 0, err
	}
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	n, err := s.notifications.MarkRead(ctx, sess.ID, clean)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

// MarkOneRead flags one notification; it is NotFound unless addressed to
// the caller.
func (s *NotificationService) MarkOneRead(ctx context.Context, sess *model.SessionUser, id string) error {
	if err := authz.Authorize(sess, authz.ViewSelf, authz.None); err != nil {
		return err
	}
	if err := s.notifications.MarkOneRead(ctx, sess.ID, id); err != nil {
		return storeErr(err, "notification not found")
	}
	return nil
}

// Clear deletes all of the caller's notifications.
func (s *NotificationService) Clear(ctx context.Context, sess *model.SessionUser) (int64, error) {
	if err := authz.Authorize(sess, authz.ViewSelf, authz.None); err != nil {
		return 0, err
	}
	n, err := s.notifications.DeleteAll(ctx, sess.ID)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}
