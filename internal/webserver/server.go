// Package webserver owns the echo instance serving the admin API. Handlers
// register themselves under /api/v1 through the Api* helpers.
package webserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"github.com/stockledger/stockledger/config"
	"go.uber.org/zap"
)

const apiPrefix = "/api/v1"

type AdminServer struct {
	root *echo.Echo
	api  *echo.Group
}

var server *AdminServer

// Init builds the global admin server. It must run before any Api* call.
func Init(cfg *config.AppConfig) {
	server = NewAdminServer(cfg)
}

func NewAdminServer(cfg *config.AppConfig) *AdminServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = &JSONSerializer{}
	e.Validator = &Validator{validate: validator.New()}
	e.HTTPErrorHandler = httpErrorHandler
	if cfg.System.Debug {
		e.Logger.SetLevel(log.DEBUG)
	} else {
		e.Logger.SetLevel(log.INFO)
	}

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Web.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			zap.L().Debug("http request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("namespace", "webserver"))
			return nil
		},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return &AdminServer{root: e, api: e.Group(apiPrefix)}
}

// Root exposes the echo instance, e.g. for httptest.
func Root() *echo.Echo {
	return server.root
}

func Use(m ...echo.MiddlewareFunc) {
	server.api.Use(m...)
}

func ApiGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.GET(path, h, m...)
}

func ApiPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.POST(path, h, m...)
}

func ApiPUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.PUT(path, h, m...)
}

func ApiDELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.DELETE(path, h, m...)
}

// Listen serves until Shutdown is called. http.ErrServerClosed is not an error.
func Listen(cfg *config.AppConfig) error {
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	zap.L().Info("admin api listening", zap.String("addr", addr), zap.String("namespace", "webserver"))
	err := server.root.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func Shutdown(ctx context.Context) error {
	return server.root.Shutdown(ctx)
}

// JSONSerializer is echo's serializer backed by jsoniter.
type JSONSerializer struct{}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func (JSONSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (JSONSerializer) Deserialize(c echo.Context, i interface{}) error {
	err := json.NewDecoder(c.Request().Body).Decode(i)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON body").SetInternal(err)
	}
	return nil
}

type Validator struct {
	validate *validator.Validate
}

func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// httpErrorHandler renders errors that escaped the handlers. Handlers render
// domain errors themselves, so anything reaching here is an echo routing
// error or an unexpected failure.
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, status, message := "INTERNAL_ERROR", http.StatusInternalServerError, "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		message = fmt.Sprint(he.Message)
		switch status {
		case http.StatusNotFound:
			code = "NOT_FOUND"
		case http.StatusMethodNotAllowed:
			code = "METHOD_NOT_ALLOWED"
		case http.StatusBadRequest:
			code = "INVALID_REQUEST"
		}
	} else {
		zap.L().Error("unhandled api error",
			zap.String("uri", c.Request().RequestURI),
			zap.Error(err),
			zap.String("namespace", "webserver"))
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, map[string]interface{}{"code": code, "message": message})
	}
	if werr != nil {
		zap.L().Error("write error response", zap.Error(werr), zap.String("namespace", "webserver"))
	}
}
