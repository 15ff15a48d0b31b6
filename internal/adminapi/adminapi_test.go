package adminapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/stockledger/stockledger/config"
	"github.com/stockledger/stockledger/internal/app"
	"github.com/stockledger/stockledger/internal/store/memstore"
	"github.com/stockledger/stockledger/internal/webserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func setup(t *testing.T) *app.Application {
	t.Helper()
	cfg := *config.DefaultAppConfig
	application := app.NewApplication(&cfg)
	require.NoError(t, application.OverrideStore(memstore.New()))
	require.NoError(t, application.SeedData(context.Background()))
	t.Cleanup(application.Notifier().Release)

	webserver.Init(&cfg)
	Init(application)
	return application
}

func do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/api/v1"+path, nil)
	} else {
		req = httptest.NewRequest(method, "/api/v1"+path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	webserver.Root().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestProductRoutes(t *testing.T) {
	setup(t)

	t.Run("create", func(t *testing.T) {
		rec := do(t, http.MethodPost, "/products",
			`{"id":"P100","name":"Spidol","price":"4.5","stock":"30","category":"Office","min_stock":5}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		body := decode(t, rec)
		assert.Equal(t, true, body["success"])
		product := body["product"].(map[string]interface{})
		assert.Equal(t, "P100", product["id"])
		assert.Equal(t, float64(30), product["stock"])
	})

	t.Run("duplicate id", func(t *testing.T) {
		rec := do(t, http.MethodPost, "/products", `{"id":"P001","name":"Again","price":1}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "CONFLICT", decode(t, rec)["code"])
	})

	t.Run("missing name", func(t *testing.T) {
		rec := do(t, http.MethodPost, "/products", `{"id":"P101","price":1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_REQUEST", decode(t, rec)["code"])
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := do(t, http.MethodPost, "/products", `{"id":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get", func(t *testing.T) {
		rec := do(t, http.MethodGet, "/products/P004", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Keyboard Mechanical", decode(t, rec)["name"])

		rec = do(t, http.MethodGet, "/products/NOPE", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "NOT_FOUND", decode(t, rec)["code"])
	})

	t.Run("list", func(t *testing.T) {
		rec := do(t, http.MethodGet, "/products?page=1&limit=4", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, float64(11), body["total"])
		assert.Len(t, body["data"], 4)

		rec = do(t, http.MethodGet, "/products?category=Electronics", "")
		body = decode(t, rec)
		assert.Equal(t, float64(4), body["total"])
		assert.Equal(t, float64(10), body["limit"])

		rec = do(t, http.MethodGet, "/products?q=MOUSE", "")
		assert.Equal(t, float64(2), decode(t, rec)["total"])
	})

	t.Run("partial update", func(t *testing.T) {
		rec := do(t, http.MethodPut, "/products/P006", `{"price":"17.25"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		product := decode(t, rec)["product"].(map[string]interface{})
		assert.Equal(t, "17.25", product["price"])
		assert.Equal(t, "Stapler", product["name"])
		assert.Equal(t, float64(80), product["stock"])

		rec = do(t, http.MethodPut, "/products/P006", `{"stock":-1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(t, http.MethodPut, "/products/NOPE", `{"name":"x"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("stock update", func(t *testing.T) {
		rec := do(t, http.MethodPost, "/products/P003/stock", `{"quantity":0}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(t, http.MethodPost, "/products/P003/stock", `{"quantity":10,"type":"sale"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		product := decode(t, rec)["product"].(map[string]interface{})
		assert.Equal(t, float64(10), product["stock"])

		rec = do(t, http.MethodPost, "/products/P003/stock", `{"quantity":11,"type":"sale"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "INSUFFICIENT_STOCK", decode(t, rec)["code"])

		rec = do(t, http.MethodPost, "/products/P003/stock", `{"quantity":5}`)
		require.Equal(t, http.StatusOK, rec.Code)
		product = decode(t, rec)["product"].(map[string]interface{})
		assert.Equal(t, float64(15), product["stock"])
	})

	t.Run("history", func(t *testing.T) {
		rec := do(t, http.MethodGet, "/products/P003/history?from=2025-01-01&to=2025-12-31", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "P003", body["productId"])
		history := body["history"].([]interface{})
		require.Len(t, history, 2)
		assert.Equal(t, "T006", history[0].(map[string]interface{})["id"])

		rec = do(t, http.MethodGet, "/products/P003/history?from=2025-03-01&to=2025-04-01", "")
		assert.Len(t, decode(t, rec)["history"], 1)

		rec = do(t, http.MethodGet, "/products/P003/history?from=2025-12-31&to=2025-01-01", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(t, http.MethodGet, "/products/P003/history?from=someday", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(t, http.MethodGet, "/products/NOPE/history", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decode(t, rec)["history"])
	})
}

func TestTransactionRoutes(t *testing.T) {
	setup(t)

	rec := do(t, http.MethodPost, "/transactions",
		`{"id":"T100","productId":"P001","quantity":5,"type":"sale","customerId":"C002"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	tx := body["transaction"].(map[string]interface{})
	assert.Equal(t, "T100", tx["transactionId"])
	assert.Equal(t, float64(5), tx["discountPercent"])
	assert.Equal(t, float64(95), tx["stock"])
	assert.NotContains(t, tx, "lowStock")

	rec = do(t, http.MethodPost, "/transactions",
		`{"id":"T100","productId":"P001","quantity":1,"type":"sale"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decode(t, rec)["code"])

	rec = do(t, http.MethodPost, "/transactions",
		`{"id":"T101","productId":"P010","quantity":13,"type":"sale"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", decode(t, rec)["code"])

	rec = do(t, http.MethodPost, "/transactions",
		`{"id":"T102","productId":"NOPE","quantity":1,"type":"sale"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, http.MethodPost, "/transactions",
		`{"id":"T103","productId":"P001","quantity":1,"type":"gift"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "type must be sale or purchase", decode(t, rec)["message"])

	rec = do(t, http.MethodPost, "/transactions",
		`{"id":"T104","productId":"P010","quantity":9,"type":"sale"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tx = decode(t, rec)["transaction"].(map[string]interface{})
	assert.Equal(t, float64(3), tx["stock"])
	lowStock := tx["lowStock"].(map[string]interface{})
	assert.Equal(t, "P010", lowStock["productId"])
}

func TestNonIntegerQuantitiesAreRejected(t *testing.T) {
	setup(t)

	for _, q := range []string{"1.5", "true", `"2.5"`} {
		rec := do(t, http.MethodPost, "/transactions",
			`{"id":"T200","productId":"P001","quantity":`+q+`,"type":"sale"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "quantity %s", q)
		assert.Equal(t, "INVALID_REQUEST", decode(t, rec)["code"])
	}

	rec := do(t, http.MethodGet, "/products/P001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(100), decode(t, rec)["stock"])
	rec = do(t, http.MethodGet, "/products/P001/history", "")
	assert.Len(t, decode(t, rec)["history"], 1)

	rec = do(t, http.MethodPost, "/products", `{"id":"P300","name":"Spidol","price":4,"stock":2.9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, http.MethodGet, "/products/P300", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, http.MethodPut, "/products/P001", `{"min_stock":"2.5"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportRoutes(t *testing.T) {
	application := setup(t)

	rec := do(t, http.MethodGet, "/reports/inventory", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"inventoryValue":"24740"}`, rec.Body.String())

	rec = do(t, http.MethodGet, "/reports/low-stock", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"lowStock":[]}`, rec.Body.String())
	assert.Equal(t, 0, application.SweepLowStock())

	rec = do(t, http.MethodPost, "/products", `{"id":"P200","name":"Lem","price":2,"stock":1,"min_stock":5}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, http.MethodGet, "/reports/low-stock", "")
	assert.Len(t, decode(t, rec)["lowStock"], 1)

	rec = do(t, http.MethodGet, "/reports/low-stock.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/csv")
	assert.Contains(t, rec.Body.String(), "id,name,category,price,stock,min_stock")
	assert.Contains(t, rec.Body.String(), "P200,Lem,,2.00,1,5")

	rec = do(t, http.MethodGet, "/reports/inventory.xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxMIME, rec.Header().Get(echo.HeaderContentType))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"))

	rec = do(t, http.MethodGet, "/reports/sales?from=2025-01-01&to=2025-12-31", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(8), body["count"])
	assert.NotEmpty(t, body["perMonth"])

	rec = do(t, http.MethodPost, "/system/low-stock/sweep", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"lowStockCount":1}`, rec.Body.String())
}

func TestSeedRouteIsIdempotent(t *testing.T) {
	setup(t)

	rec := do(t, http.MethodPost, "/system/seed", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, http.MethodGet, "/products", "")
	assert.Equal(t, float64(10), decode(t, rec)["total"])
}
