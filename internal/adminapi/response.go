package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"
	"github.com/stockledger/stockledger/internal/domain"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

func created(c echo.Context, key string, data interface{}) error {
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"success": true,
		key:       data,
	})
}

func fail(c echo.Context, status int, code, message string, details interface{}) error {
	return c.JSON(status, ErrorResponse{Code: code, Message: message, Details: details})
}

// domainError renders err according to its domain kind. Storage and internal
// failures are logged and reported with a generic message.
func domainError(c echo.Context, err error) error {
	msg := domain.MessageOf(err)
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", msg, nil)
	case domain.KindNotFound:
		return fail(c, http.StatusNotFound, "NOT_FOUND", msg, nil)
	case domain.KindInsufficientStock:
		return fail(c, http.StatusConflict, "INSUFFICIENT_STOCK", msg, nil)
	case domain.KindConflict:
		return fail(c, http.StatusConflict, "CONFLICT", msg, nil)
	case domain.KindPersistence:
		zap.L().Error("persistence failure",
			zap.String("path", c.Path()),
			zap.Error(err),
			zap.String("namespace", "adminapi"))
		return fail(c, http.StatusInternalServerError, "PERSISTENCE_ERROR", "Storage operation failed", nil)
	default:
		zap.L().Error("internal failure",
			zap.String("path", c.Path()),
			zap.Error(err),
			zap.String("namespace", "adminapi"))
		return fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}

// parsePagination reads page and limit. Invalid values fall back to zero so
// the reports layer applies its defaults.
func parsePagination(c echo.Context) (page, limit int) {
	page = cast.ToInt(c.QueryParam("page"))
	limit = cast.ToInt(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 0 {
		limit = 0
	}
	return page, limit
}

// bindMap decodes a JSON object body into a loosely typed map for the
// weakly typed decoders in the inventory package.
func bindMap(c echo.Context) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := new(echo.DefaultBinder).BindBody(c, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	return raw, nil
}

func handleBindError(c echo.Context, err error) error {
	if he, isHTTP := err.(*echo.HTTPError); isHTTP {
		return fail(c, he.Code, "INVALID_REQUEST", cast.ToString(he.Message), nil)
	}
	return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", nil)
}
