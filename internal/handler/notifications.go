package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ledger/internal/service"
	"github.com/iliyamo/canteen-ledger/internal/session"
)

// NotificationHandler serves the caller's inbox.
type NotificationHandler struct {
	Notifications *service.NotificationService
	Logger        *zap.Logger
}

func NewNotificationHandler(notifications *service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{Notifications: notifications, Logger: logger}
}

type markReadReq struct {
	NotificationIDs []string `json:"notificationIds" validate:"required,min=1"`
}

// List handles GET /notifications?page=.  A missing or malformed page is 1.
func (h *NotificationHandler) List(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))

	ctx, cancel := requestCtx(c)
	defer cancel()

	out, err := h.Notifications.List(ctx, session.FromContext(c), page)
	if err != nil {
		return respond(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, out)
}

// MarkRead handles PUT /notifications {notificationIds}.  Ids addressed to
// other users are ignored.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	var req markReadReq
	if err := bind(c, &req); err != nil {
		return respond(c, h.Logger, err)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	n, err := h.Notifications.MarkRead(ctx, session.FromContext(c), req.NotificationIDs)
	if err != nil {
		return respond(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "updated": n})
}

// MarkOneRead handles PUT /notifications/:id.
func (h *NotificationHandler) MarkOneRead(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Notifications.MarkOneRead(ctx, session.FromContext(c), c.Param("id")); err != nil {
		return respond(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, success())
}

// Clear handles DELETE /notifications.
func (h *NotificationHandler) Clear(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	n, err := h.Notifications.Clear(ctx, session.FromContext(c))
	if err != nil {
		return respond(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "deleted": n})
}
