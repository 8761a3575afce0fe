package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/taller/pkg/errorbank"
)

type envelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Meta    map[string]any `json:"meta"`
	Error   struct {
		Kind    string         `json:"kind"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func render(t *testing.T, build func(c echo.Context) error) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, build(c))

	var body envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestBuildSuccessWithMessage(t *testing.T) {
	status, body := render(t, func(c echo.Context) error {
		return New(c).
			WithStatus(http.StatusCreated).
			WithData(map[string]any{"id": 1}).
			WithMessage("pedido creado").
			WithMessage("").
			Build()
	})

	assert.Equal(t, http.StatusCreated, status)
	assert.True(t, body.Success)
	assert.Equal(t, float64(1), body.Data["id"])
	assert.Equal(t, "pedido creado", body.Meta["message"])
}

func TestBuildErrorUsesAppErrorStatus(t *testing.T) {
	status, body := render(t, func(c echo.Context) error {
		return New(c).WithError(errorbank.GuardViolation("no se puede aprobar")).Build()
	})

	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, body.Success)
	assert.Equal(t, string(errorbank.KindConflict), body.Error.Kind)
	assert.Equal(t, "no se puede aprobar", body.Error.Message)
	assert.Equal(t, string(errorbank.ReasonGuardViolation), body.Error.Details["reason"])
}

func TestBuildErrorWrapsUnknownErrors(t *testing.T) {
	status, body := render(t, func(c echo.Context) error {
		return New(c).WithError(assert.AnError).Build()
	})

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, string(errorbank.KindInternal), body.Error.Kind)
}
