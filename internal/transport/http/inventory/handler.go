package inventory

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/taller/internal/dto"
	"github.com/Additional-Code/taller/internal/presentation/http/response"
	service "github.com/Additional-Code/taller/internal/service/inventory"
	"github.com/Additional-Code/taller/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/taller/transport/http/inventory")

// Handler exposes stock queries over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an inventory Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/products/:id/kardex", h.kardex)
	e.GET("/stock/low", h.low)
}

func (h *Handler) kardex(c echo.Context) error {
	b := response.New(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return b.WithError(errorbank.BadRequest("invalid limit", errorbank.WithCause(err))).Build()
		}
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "products.kardex", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	entries, err := h.svc.Kardex(ctx, id, limit)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.KardexEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, dto.KardexEntryResponse{
			ID:         entry.ID,
			ProductID:  entry.ProductID,
			Kind:       string(entry.Kind),
			Quantity:   entry.Quantity,
			UnitCost:   entry.UnitCost.StringFixed(2),
			Reference:  entry.Reference,
			OccurredAt: entry.OccurredAt,
			CreatedBy:  entry.CreatedBy,
			UpdatedBy:  entry.UpdatedBy,
		})
	}
	return b.WithData(out).WithMeta("count", len(out)).Build()
}

func (h *Handler) low(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "stock.low")
	defer span.End()

	levels, err := h.svc.Low(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.StockLevelResponse, 0, len(levels))
	for _, level := range levels {
		out = append(out, dto.StockLevelResponse{
			ProductID:    level.ProductID,
			Name:         level.Name,
			OnHand:       level.OnHand,
			ReorderLevel: level.ReorderLevel,
		})
	}
	return b.WithData(out).WithMeta("count", len(out)).Build()
}
