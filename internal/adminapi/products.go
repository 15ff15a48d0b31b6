package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"
	"github.com/stockledger/stockledger/internal/domain"
	"github.com/stockledger/stockledger/internal/inventory"
	"github.com/stockledger/stockledger/internal/store"
	"github.com/stockledger/stockledger/internal/webserver"
)

type stockPayload struct {
	Quantity int    `json:"quantity" validate:"required,gt=0"`
	Type     string `json:"type" validate:"omitempty,oneof=sale purchase"`
}

// registerProductRoutes registers catalog endpoints
func registerProductRoutes() {
	webserver.ApiGET("/products", listProducts)
	webserver.ApiGET("/products/:id", getProduct)
	webserver.ApiPOST("/products", createProduct)
	webserver.ApiPUT("/products/:id", updateProduct)
	webserver.ApiPOST("/products/:id/stock", updateStock)
	webserver.ApiGET("/products/:id/history", productHistory)
}

func listProducts(c echo.Context) error {
	page, limit := parsePagination(c)
	result, err := GetAppContext(c).Reports().ListProducts(c.Request().Context(), store.ProductQuery{
		Page:     page,
		Limit:    limit,
		Category: c.QueryParam("category"),
		Q:        c.QueryParam("q"),
	})
	if err != nil {
		return domainError(c, err)
	}
	return ok(c, result)
}

func getProduct(c echo.Context) error {
	p, err := GetAppContext(c).Catalog().GetProduct(c.Request().Context(), c.Param("id"))
	if err != nil {
		return domainError(c, err)
	}
	return ok(c, p)
}

func createProduct(c echo.Context) error {
	raw, err := bindMap(c)
	if err != nil {
		return handleBindError(c, err)
	}
	in, err := inventory.DecodeProductInput(raw)
	if err != nil {
		return domainError(c, err)
	}
	p, err := GetAppContext(c).Catalog().AddProduct(c.Request().Context(), in)
	if err != nil {
		return domainError(c, err)
	}
	return created(c, "product", p)
}

func updateProduct(c echo.Context) error {
	raw, err := bindMap(c)
	if err != nil {
		return handleBindError(c, err)
	}
	patch, err := inventory.DecodeProductPatch(raw)
	if err != nil {
		return domainError(c, err)
	}
	p, err := GetAppContext(c).Catalog().UpdateProduct(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return domainError(c, err)
	}
	return ok(c, map[string]interface{}{"success": true, "product": p})
}

func updateStock(c echo.Context) error {
	var payload stockPayload
	if err := c.Bind(&payload); err != nil {
		return handleBindError(c, err)
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "quantity must be positive integer and type sale or purchase", err.Error())
	}
	p, err := GetAppContext(c).Engine().UpdateStock(c.Request().Context(),
		c.Param("id"), payload.Quantity, domain.TransactionType(payload.Type))
	if err != nil {
		return domainError(c, err)
	}
	return ok(c, map[string]interface{}{"success": true, "product": p})
}

func productHistory(c echo.Context) error {
	from, to, err := parseRange(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "from and to must be dates", err.Error())
	}
	id := c.Param("id")
	rows, err := GetAppContext(c).Reports().ProductHistory(c.Request().Context(), id, from, to)
	if err != nil {
		return domainError(c, err)
	}
	if rows == nil {
		rows = []domain.Transaction{}
	}
	return ok(c, map[string]interface{}{"productId": id, "history": rows})
}

// parseRange reads the optional from/to query params in local time. A bare
// date for "to" covers that whole day.
func parseRange(c echo.Context) (from, to time.Time, err error) {
	if s := strings.TrimSpace(c.QueryParam("from")); s != "" {
		if from, err = dateparse.ParseIn(s, time.Local); err != nil {
			return
		}
	}
	if s := strings.TrimSpace(c.QueryParam("to")); s != "" {
		if to, err = dateparse.ParseIn(s, time.Local); err != nil {
			return
		}
		if len(s) == len("2006-01-02") {
			to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
	}
	return
}
