package grpc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/Additional-Code/taller/internal/config"
	"github.com/Additional-Code/taller/pkg/errorbank"
)

func TestToStatusMapsAppErrors(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{errorbank.GuardViolation("estado inválido"), codes.AlreadyExists},
		{errorbank.InsufficientStock("sin stock"), codes.FailedPrecondition},
		{errorbank.Validation("cantidad"), codes.InvalidArgument},
		{errorbank.Missing("pedido"), codes.NotFound},
		{fmt.Errorf("wrapped: %w", errorbank.TransactionFailure("falló", errors.New("db"))), codes.Internal},
	}
	for _, tc := range cases {
		st, ok := status.FromError(toStatus(tc.err))
		require.True(t, ok)
		assert.Equal(t, tc.code, st.Code(), tc.err.Error())
	}

	assert.NoError(t, toStatus(nil))
	existing := status.Error(codes.Unavailable, "down")
	assert.Equal(t, existing, toStatus(existing))
}

func TestRegisterMarksServing(t *testing.T) {
	server := NewServer(zap.NewNop())
	checker := health.NewServer()
	Register(server, checker, config.Config{Observability: config.Observability{ServiceName: "taller"}})

	resp, err := checker.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "taller"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
