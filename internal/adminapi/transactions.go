package adminapi

import (
	"github.com/labstack/echo/v4"
	"github.com/stockledger/stockledger/internal/inventory"
	"github.com/stockledger/stockledger/internal/webserver"
)

func registerTransactionRoutes() {
	webserver.ApiPOST("/transactions", createTransaction)
}

func createTransaction(c echo.Context) error {
	raw, err := bindMap(c)
	if err != nil {
		return handleBindError(c, err)
	}
	req, err := inventory.DecodeTransactionRequest(raw)
	if err != nil {
		return domainError(c, err)
	}
	result, err := GetAppContext(c).Engine().CreateTransaction(c.Request().Context(), req)
	if err != nil {
		return domainError(c, err)
	}
	return created(c, "transaction", result)
}
