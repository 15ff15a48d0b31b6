package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stockledger/stockledger/internal/webserver"
)

func registerSystemRoutes() {
	webserver.ApiPOST("/system/seed", seedData)
	webserver.ApiPOST("/system/low-stock/sweep", sweepLowStock)
}

// seedData loads the sample data set. Existing records are kept.
func seedData(c echo.Context) error {
	if err := GetAppContext(c).SeedData(c.Request().Context()); err != nil {
		return fail(c, http.StatusInternalServerError, "SEED_FAILED", "Failed to load seed data", err.Error())
	}
	return ok(c, map[string]interface{}{"success": true})
}

func sweepLowStock(c echo.Context) error {
	n := GetAppContext(c).SweepLowStock()
	return ok(c, map[string]interface{}{"lowStockCount": n})
}
