package order

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/taller/internal/config"
	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/internal/pricing"
	"github.com/Additional-Code/taller/internal/repository/memory"
	"github.com/Additional-Code/taller/internal/service/audit"
	service "github.com/Additional-Code/taller/internal/service/order"
	"github.com/Additional-Code/taller/internal/service/payment"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Error   struct {
		Kind    string         `json:"kind"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type testServer struct {
	echo  *echo.Echo
	store *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	store.PutProduct(entity.Product{ID: 1, Name: "Pastel", UnitPrice: decimal.NewFromInt(50), Active: true}, 10, 2)
	store.PutProduct(entity.Product{ID: 2, Name: "Bocadillos", UnitPrice: decimal.NewFromInt(150), Active: true}, 1, 0)
	store.PutMethod(entity.PaymentMethod{ID: 1, Name: "Efectivo", IsCash: true, Active: true})

	cfg := config.Config{Orders: config.Orders{
		DepositThreshold:  decimal.NewFromInt(300),
		DepositRate:       decimal.RequireFromString("0.25"),
		ElaborationMarkup: decimal.NewFromInt(2),
		PaymentTolerance:  decimal.RequireFromString("0.01"),
		ReferencePrefix:   "PEDIDO",
	}}
	recorder := audit.NewRecorder(store.Audit(), nil)
	payments := payment.NewService(payment.Params{
		UnitOfWork: store,
		Orders:     store.Orders(),
		Payments:   store.Payments(),
		Cash:       store.Cash(),
		Audit:      recorder,
		Config:     cfg,
	})
	svc, err := service.NewService(service.Params{
		UnitOfWork: store,
		Orders:     store.Orders(),
		Kardex:     store.Kardex(),
		Stocks:     store.Stocks(),
		Products:   store.Products(),
		Payments:   payments,
		Calculator: pricing.New(cfg),
		Audit:      recorder,
		Config:     cfg,
	})
	require.NoError(t, err)

	e := echo.New()
	Register(e, NewHandler(svc, payments, cfg))
	return &testServer{echo: e, store: store}
}

func (s *testServer) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set(ActorHeader, "ana")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	var out envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func deliveryDate() string {
	return time.Now().AddDate(0, 0, 3).Format(dateLayout)
}

func orderBody(lines string) string {
	return fmt.Sprintf(`{"client_id":7,"delivery_date":%q,"lines":[%s]}`, deliveryDate(), lines)
}

func decodeOrder(t *testing.T, env envelope) orderPayload {
	t.Helper()
	var out orderPayload
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

type orderPayload struct {
	ID              int64  `json:"id"`
	Reference       string `json:"reference"`
	Status          string `json:"status"`
	Total           string `json:"total"`
	RequiresDeposit bool   `json:"requires_deposit"`
	MinimumDeposit  string `json:"minimum_deposit"`
	DepositState    string `json:"deposit_state"`
}

func TestCreateAndGet(t *testing.T) {
	srv := newTestServer(t)

	status, env := srv.do(t, http.MethodPost, "/orders", orderBody(`{"product_id":1,"quantity":2}`))
	require.Equal(t, http.StatusCreated, status, env.Error.Message)
	created := decodeOrder(t, env)
	assert.Equal(t, "DRAFT", created.Status)
	assert.Equal(t, "100.00", created.Total)
	assert.Equal(t, fmt.Sprintf("PEDIDO-%d", created.ID), created.Reference)
	assert.Equal(t, true, env.Meta["changed"])

	status, env = srv.do(t, http.MethodGet, fmt.Sprintf("/orders/%d", created.ID), "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, created.ID, decodeOrder(t, env).ID)
}

func TestCreateRequiresActor(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(orderBody(`{"product_id":1,"quantity":2}`)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRejectsBadDate(t *testing.T) {
	srv := newTestServer(t)

	status, env := srv.do(t, http.MethodPost, "/orders", `{"client_id":7,"delivery_date":"10/05/2025","lines":[{"product_id":1,"quantity":1}]}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation", env.Error.Details["reason"])
}

func TestLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	_, env := srv.do(t, http.MethodPost, "/orders", orderBody(`{"product_id":1,"quantity":2}`))
	id := decodeOrder(t, env).ID

	for _, step := range []struct {
		path   string
		status string
	}{
		{"quote", "QUOTED"},
		{"approve", "APPROVED"},
		{"start", "IN_PRODUCTION"},
		{"finalize", "COMPLETED"},
	} {
		code, env := srv.do(t, http.MethodPost, fmt.Sprintf("/orders/%d/%s", id, step.path), "")
		require.Equal(t, http.StatusOK, code, "%s: %s", step.path, env.Error.Message)
		assert.Equal(t, step.status, decodeOrder(t, env).Status)
	}

	code, env := srv.do(t, http.MethodPost, fmt.Sprintf("/orders/%d/deliver", id), `{"method_id":1,"amount":"100","received":"100"}`)
	require.Equal(t, http.StatusOK, code, env.Error.Message)
	assert.Equal(t, "DELIVERED", decodeOrder(t, env).Status)
	assert.NotNil(t, env.Meta["receipt"])

	code, env = srv.do(t, http.MethodGet, fmt.Sprintf("/orders/%d/statement", id), "")
	require.Equal(t, http.StatusOK, code)
	var st struct {
		Outstanding string `json:"outstanding"`
		BalancePaid string `json:"balance_paid"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, "0.00", st.Outstanding)
	assert.Equal(t, "100.00", st.BalancePaid)
}

func TestApproveReportsShortfalls(t *testing.T) {
	srv := newTestServer(t)
	_, env := srv.do(t, http.MethodPost, "/orders", orderBody(`{"product_id":2,"quantity":1},{"product_id":1,"quantity":1}`))
	id := decodeOrder(t, env).ID
	require.NoError(t, srv.store.Stocks().Save(t.Context(), &entity.Stock{ProductID: 2, OnHand: 0}))

	status, env := srv.do(t, http.MethodPost, fmt.Sprintf("/orders/%d/approve", id), "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "insufficient_stock", env.Error.Details["reason"])
	assert.Contains(t, env.Error.Message, "Bocadillos")
}

func TestDepositRoute(t *testing.T) {
	srv := newTestServer(t)
	_, env := srv.do(t, http.MethodPost, "/orders", orderBody(`{"product_id":1,"quantity":8}`))
	created := decodeOrder(t, env)
	require.True(t, created.RequiresDeposit)
	require.Equal(t, "100.00", created.MinimumDeposit)

	status, env := srv.do(t, http.MethodPost, fmt.Sprintf("/orders/%d/approve", created.ID), "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "guard_violation", env.Error.Details["reason"])

	status, env = srv.do(t, http.MethodPost, fmt.Sprintf("/orders/%d/deposit", created.ID), `{"method_id":1,"amount":"100","received":"120"}`)
	require.Equal(t, http.StatusCreated, status, env.Error.Message)
	var receipt struct {
		Concept string `json:"concept"`
		Change  string `json:"change"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &receipt))
	assert.Equal(t, "DEPOSIT", receipt.Concept)
	assert.Equal(t, "20.00", receipt.Change)

	status, env = srv.do(t, http.MethodPost, fmt.Sprintf("/orders/%d/approve", created.ID), "")
	require.Equal(t, http.StatusOK, status, env.Error.Message)
	assert.Equal(t, "PAID", decodeOrder(t, env).DepositState)
}

func TestUnknownOrderAndBadID(t *testing.T) {
	srv := newTestServer(t)

	status, env := srv.do(t, http.MethodGet, "/orders/999", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", env.Error.Details["reason"])

	status, _ = srv.do(t, http.MethodPost, "/orders/abc/quote", "")
	assert.Equal(t, http.StatusBadRequest, status)
}
