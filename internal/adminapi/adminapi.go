// Package adminapi exposes the inventory engine over the admin HTTP API.
package adminapi

import (
	"github.com/labstack/echo/v4"
	"github.com/stockledger/stockledger/internal/app"
	"github.com/stockledger/stockledger/internal/webserver"
)

const appContextKey = "appctx"

// Init registers every admin route. webserver.Init must have run first.
func Init(appCtx app.AppContext) {
	webserver.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(appContextKey, appCtx)
			return next(c)
		}
	})
	registerProductRoutes()
	registerTransactionRoutes()
	registerReportRoutes()
	registerSystemRoutes()
}

// GetAppContext returns the application bound to the request.
func GetAppContext(c echo.Context) app.AppContext {
	return c.Get(appContextKey).(app.AppContext)
}
