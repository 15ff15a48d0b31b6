package adminapi

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/stockledger/stockledger/internal/domain"
	"github.com/stockledger/stockledger/internal/webserver"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func registerReportRoutes() {
	webserver.ApiGET("/reports/inventory", inventoryValue)
	webserver.ApiGET("/reports/low-stock", lowStock)
	webserver.ApiGET("/reports/low-stock.csv", lowStockCSV)
	webserver.ApiGET("/reports/inventory.xlsx", inventoryXLSX)
	webserver.ApiGET("/reports/sales", salesSummary)
}

func inventoryValue(c echo.Context) error {
	v, err := GetAppContext(c).Reports().InventoryValue(c.Request().Context())
	if err != nil {
		return domainError(c, err)
	}
	return ok(c, map[string]interface{}{"inventoryValue": v})
}

func lowStock(c echo.Context) error {
	rows, err := GetAppContext(c).Reports().LowStock(c.Request().Context())
	if err != nil {
		return domainError(c, err)
	}
	if rows == nil {
		rows = []domain.Product{}
	}
	return ok(c, map[string]interface{}{"lowStock": rows})
}

// Exports are rendered into a buffer first so a failure can still produce a
// JSON error instead of a truncated file.
func lowStockCSV(c echo.Context) error {
	var buf bytes.Buffer
	if err := GetAppContext(c).Reports().WriteLowStockCSV(c.Request().Context(), &buf); err != nil {
		return domainError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="low-stock.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func inventoryXLSX(c echo.Context) error {
	var buf bytes.Buffer
	if err := GetAppContext(c).Reports().WriteInventoryXLSX(c.Request().Context(), &buf); err != nil {
		return domainError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="inventory.xlsx"`)
	return c.Blob(http.StatusOK, xlsxMIME, buf.Bytes())
}

func salesSummary(c echo.Context) error {
	from, to, err := parseRange(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "from and to must be dates", err.Error())
	}
	summary, err := GetAppContext(c).Reports().SalesSummary(c.Request().Context(), from, to)
	if err != nil {
		return domainError(c, err)
	}
	return ok(c, summary)
}
