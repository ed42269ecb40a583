package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"restaurant-pos/internal/api"
	"restaurant-pos/internal/cache"
	"restaurant-pos/internal/database"
	"restaurant-pos/internal/kafka"
	"restaurant-pos/internal/lock"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/menu"
	menudb "restaurant-pos/internal/menu/db"
	"restaurant-pos/internal/order"
	orderdb "restaurant-pos/internal/order/db"
	"restaurant-pos/internal/payment"
	paymentdb "restaurant-pos/internal/payment/db"
	"restaurant-pos/internal/table"
	tabledb "restaurant-pos/internal/table/db"
	"restaurant-pos/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Status  utils.Status    `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func setupServer(t *testing.T) *httptest.Server {
	bunDB, err := database.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.CreateSchema(context.Background(), bunDB))
	t.Cleanup(func() { bunDB.Close() })

	log := logger.Discard()
	events := kafka.NewLogPublisher("pos", log)
	c := cache.NewMemoryCache()
	locker := lock.NewKeyedMutex()
	exp := cache.Expiration{Absolute: 10 * time.Minute, Sliding: 2 * time.Minute}

	h := api.NewHandler(
		table.NewService(tabledb.New(bunDB), c, locker, events, log, table.Options{Expiration: exp, QRBaseURL: "http://pos.local"}),
		order.NewOrderService(orderdb.New(bunDB), c, locker, events, log, exp),
		menu.NewService(menudb.New(bunDB), c, events, log, exp),
		payment.NewService(paymentdb.New(bunDB), locker, events, log),
		log,
	)
	srv := httptest.NewServer(h.Router(5 * time.Second))
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, body string) (int, envelope) {
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestHealthz(t *testing.T) {
	srv := setupServer(t)
	code, env := call(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.Equal(t, utils.StatusOK, env.Status)
}

func TestNotFoundMapsTo404(t *testing.T) {
	srv := setupServer(t)

	for _, path := range []string{
		"/api/Order/999",
		"/api/Table/GetTableById/42",
		"/api/Table/GetTableStatus/42",
		"/api/MenuItem/7",
		"/api/Payment/3",
		"/api/OrderItem/11",
	} {
		code, env := call(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, code, path)
		assert.False(t, env.Success, path)
		assert.Equal(t, utils.StatusNotFound, env.Status, path)
		assert.NotEmpty(t, env.Error, path)
	}
}

func TestBadPathParam(t *testing.T) {
	srv := setupServer(t)
	code, env := call(t, srv, http.MethodGet, "/api/Order/abc", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, utils.StatusBadRequest, env.Status)
}

func TestTableReserveFlow(t *testing.T) {
	srv := setupServer(t)

	code, env := call(t, srv, http.MethodPost, "/api/Table/AddTable", `{"tableNumber":5,"capacity":4}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Contains(t, string(env.Data), "http://pos.local/table/5")

	code, _ = call(t, srv, http.MethodPost, "/api/Table/ReserveTable/5", "")
	assert.Equal(t, http.StatusOK, code)

	code, env = call(t, srv, http.MethodPost, "/api/Table/ReserveTable/5", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, utils.StatusBadRequest, env.Status)

	code, env = call(t, srv, http.MethodGet, "/api/Table/GetTableStatus/5", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `"Occupied"`, string(env.Data))

	code, env = call(t, srv, http.MethodPost, "/api/Table/AddTable", `{"tableNumber":5,"capacity":2}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, utils.StatusBadRequest, env.Status)
}

func TestOrderAndPaymentFlow(t *testing.T) {
	srv := setupServer(t)

	code, _ := call(t, srv, http.MethodPost, "/api/Table/AddTable", `{"tableNumber":1,"capacity":2}`)
	require.Equal(t, http.StatusCreated, code)
	code, env := call(t, srv, http.MethodPost, "/api/MenuItem/add", `{"name":"Soup","price":6.5,"category":"Starters"}`)
	require.Equal(t, http.StatusCreated, code)
	var item struct {
		MenuItemID int64 `json:"menuItemId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &item))

	code, env = call(t, srv, http.MethodPost, "/api/Order/", `{"tableNumber":1}`)
	require.Equal(t, http.StatusCreated, code)
	var created struct {
		OrderID int64 `json:"orderId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	body, _ := json.Marshal(map[string]interface{}{"orderId": created.OrderID, "menuItemId": item.MenuItemID, "quantity": 2})
	code, _ = call(t, srv, http.MethodPost, "/api/OrderItem/", string(body))
	require.Equal(t, http.StatusCreated, code)

	code, env = call(t, srv, http.MethodGet, "/api/OrderItem/total-price/"+itoa(created.OrderID), "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `13`, string(env.Data))

	body, _ = json.Marshal(map[string]interface{}{"orderIds": []int64{created.OrderID}, "paymentMethod": "Cash", "amountPaid": 10})
	code, env = call(t, srv, http.MethodPost, "/api/Payment/", string(body))
	assert.Equal(t, http.StatusBadRequest, code, "underpayment")
	assert.Equal(t, utils.StatusBadRequest, env.Status)

	body, _ = json.Marshal(map[string]interface{}{"orderIds": []int64{created.OrderID}, "paymentMethod": "Cash", "amountPaid": 13})
	code, env = call(t, srv, http.MethodPost, "/api/Payment/", string(body))
	require.Equal(t, http.StatusCreated, code)
	var paid struct {
		PaymentID int64 `json:"paymentId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &paid))

	code, _ = call(t, srv, http.MethodPut, "/api/Order/"+itoa(created.OrderID)+"/status", `"Completed"`)
	assert.Equal(t, http.StatusOK, code)

	code, _ = call(t, srv, http.MethodPut, "/api/Order/"+itoa(created.OrderID)+"/status", `{"status":"Pending"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, srv, http.MethodPost, "/api/Payment/refund/"+itoa(paid.PaymentID), "")
	assert.Equal(t, http.StatusOK, code)
	code, env = call(t, srv, http.MethodPost, "/api/Payment/refund/"+itoa(paid.PaymentID), "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, utils.StatusBadRequest, env.Status)
}

func TestMenuItemScalarBodies(t *testing.T) {
	srv := setupServer(t)
	code, env := call(t, srv, http.MethodPost, "/api/MenuItem/add", `{"name":"Tea","price":2,"category":"Drinks"}`)
	require.Equal(t, http.StatusCreated, code)
	var item struct {
		MenuItemID int64 `json:"menuItemId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &item))
	base := "/api/MenuItem/" + itoa(item.MenuItemID)

	code, _ = call(t, srv, http.MethodPut, base+"/price", `2.75`)
	assert.Equal(t, http.StatusOK, code)
	code, _ = call(t, srv, http.MethodPut, base+"/name", `{"name":"Green Tea"}`)
	assert.Equal(t, http.StatusOK, code)
	code, _ = call(t, srv, http.MethodPut, base+"/price", `-1`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = call(t, srv, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"Green Tea"`)
	assert.Contains(t, string(env.Data), `2.75`)
}

func TestRequestIDHeader(t *testing.T) {
	srv := setupServer(t)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
