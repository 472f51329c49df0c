package handler // handler package contains the HTTP handlers of the ledger API

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ledger/internal/apperr"
	"github.com/iliyamo/canteen-ledger/internal/middleware"
)

// requestTimeout bounds every datastore round trip made by a handler.
const requestTimeout = 5 * time.Second

// requestCtx derives the per-request datastore context.
func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// Validator adapts go-playground/validator to echo.  Field names in error
// messages use the json tag, so clients see the names they sent.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation("invalid request body")
	}
	return apperr.Validation(fieldMessage(verrs[0]))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must contain at least %s entries", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	}
	return fe.Field() + " is invalid"
}

// bind decodes the body into dst and validates it.
func bind(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Validation("invalid request body")
	}
	return c.Validate(dst)
}

// respond writes err as {"error": message}.  Internal causes are logged
// and never returned to the client.
func respond(c echo.Context, logger *zap.Logger, err error) error {
	ae := apperr.From(err)
	if ae.HTTPCode >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("request_id", middleware.RequestID(c)),
			zap.String("route", c.Path()),
			zap.Error(ae.Err),
		)
	}
	return c.JSON(ae.HTTPCode, echo.Map{"error": ae.Message})
}

// success is the acknowledgement body of mutations without a payload.
func success() echo.Map { return echo.Map{"success": true} }
