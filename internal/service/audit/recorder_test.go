package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/taller/internal/entity"
	"github.com/Additional-Code/taller/internal/repository/memory"
)

func TestRecorderAppendsEntry(t *testing.T) {
	store := memory.New()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	recorder := NewRecorderWithClock(store.Audit(), nil, func() time.Time { return now })

	recorder.Record(context.Background(), Record{
		Entity:      "order",
		EntityID:    7,
		Action:      " approve ",
		Actor:       "ana",
		Description: "pedido aprobado",
	})

	entries := store.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "approve", entries[0].Action)
	assert.Equal(t, entity.AuditLevelInfo, entries[0].Level)
	assert.Equal(t, now, entries[0].CreatedAt)
	assert.Equal(t, int64(7), entries[0].EntityID)
}

func TestRecorderSwallowsAppendFailure(t *testing.T) {
	store := memory.New()
	store.FailOn("audit.Append", errors.New("disk full"))
	core, logs := observer.New(zap.WarnLevel)
	recorder := NewRecorder(store.Audit(), zap.New(core))

	assert.NotPanics(t, func() {
		recorder.Record(context.Background(), Record{Entity: "order", EntityID: 1, Action: "cancel"})
	})
	assert.Empty(t, store.AuditEntries())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "audit append failed", logs.All()[0].Message)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var recorder *Recorder
	assert.NotPanics(t, func() {
		recorder.Record(context.Background(), Record{Entity: "order"})
	})
}
