package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/taller/internal/config"
	"github.com/Additional-Code/taller/internal/observability"
	"github.com/Additional-Code/taller/internal/presentation/http/response"
	"github.com/Additional-Code/taller/pkg/errorbank"
)

// Module exposes the HTTP server lifecycle to Fx.
var Module = fx.Module("http_server",
	fx.Provide(NewEcho),
	fx.Invoke(Run),
)

// NewEcho configures the Echo router with basic middleware.
func NewEcho(cfg config.Config, obs *observability.Manager, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		logger.Error("http request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			err = errorbank.New(kindFor(he.Code), fmt.Sprint(he.Message), errorbank.WithCause(err))
		}
		if renderErr := response.New(c).WithError(err).Build(); renderErr != nil {
			logger.Warn("render error response", zap.Error(renderErr))
		}
	}
	e.Use(middleware.Recover())

	if obs != nil && obs.TracingEnabled() {
		e.Use(otelecho.Middleware(cfg.Observability.ServiceName))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": cfg.Observability.ServiceName})
	})

	if obs != nil && obs.MetricsEnabled() && obs.MetricsHandler() != nil {
		e.GET(cfg.Observability.PrometheusPath, echo.WrapHandler(obs.MetricsHandler()))
	}

	return e
}

// Run starts the HTTP server and ties it to the Fx lifecycle.
func Run(lc fx.Lifecycle, cfg config.Config, e *echo.Echo, logger *zap.Logger) {
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)

	server := &http.Server{
		Addr:    addr,
		Handler: e,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting HTTP server", zap.String("addr", addr))
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping HTTP server")
			return server.Shutdown(ctx)
		},
	})
}

func kindFor(status int) errorbank.Kind {
	switch {
	case status == http.StatusNotFound:
		return errorbank.KindNotFound
	case status == http.StatusConflict:
		return errorbank.KindConflict
	case status == http.StatusUnprocessableEntity:
		return errorbank.KindUnprocessableEntity
	case status >= 400 && status < 500:
		return errorbank.KindBadRequest
	default:
		return errorbank.KindInternal
	}
}
