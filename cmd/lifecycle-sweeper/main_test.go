package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type sweeperStub struct {
	processed int
	err       error
	limit     int
}

func (s *sweeperStub) Sweep(ctx context.Context, limit int) (int, error) {
	s.limit = limit
	return s.processed, s.err
}

func TestSweepLogsOutcome(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	stub := &sweeperStub{processed: 3}

	sweep(context.Background(), stub, 50, zap.New(core))

	assert.Equal(t, 50, stub.limit)
	entries := logs.FilterMessage("sweep finished").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, int64(3), entries[0].ContextMap()["processed"])
	}
}

func TestSweepLogsFailure(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	stub := &sweeperStub{err: errors.New("db down")}

	sweep(context.Background(), stub, 10, zap.New(core))

	assert.Equal(t, 1, logs.FilterMessage("sweep failed").Len())
	assert.Zero(t, logs.FilterMessage("sweep finished").Len())
}
