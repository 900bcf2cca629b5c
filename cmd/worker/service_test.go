package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type fakePinger struct {
	err   error
	calls int
}

func (f *fakePinger) Ping(context.Context) error {
	f.calls++
	return f.err
}

type fakeConsumer struct {
	err error
	ran bool
}

func (f *fakeConsumer) Run(context.Context) error {
	f.ran = true
	return f.err
}

func newTestWorker(t *testing.T, redis *fakePinger, c *fakeConsumer) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:    logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard}),
		DB:        &fakePinger{},
		Redis:     redis,
		PubSub:    &fakePinger{},
		Consumers: map[string]consumer{"notifications": c},
	})
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
	_, err = NewService(ServiceParams{
		Logger: logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard}),
		DB:     &fakePinger{},
		Redis:  &fakePinger{},
		PubSub: &fakePinger{},
	})
	require.EqualError(t, err, "at least one consumer is required")
}

func TestRunStopsWhenDependencyUnavailable(t *testing.T) {
	consumer := &fakeConsumer{}
	svc := newTestWorker(t, &fakePinger{err: errors.New("connection refused")}, consumer)

	err := svc.Run(context.Background())
	require.ErrorContains(t, err, "redis ping failed")
	require.False(t, consumer.ran)
}

func TestRunTreatsCancellationAsCleanShutdown(t *testing.T) {
	consumer := &fakeConsumer{err: context.Canceled}
	svc := newTestWorker(t, &fakePinger{}, consumer)

	err := svc.Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, consumer.ran)
}

func TestRunSurfacesConsumerFailure(t *testing.T) {
	boom := errors.New("subscription deleted")
	svc := newTestWorker(t, &fakePinger{}, &fakeConsumer{err: boom})

	require.ErrorIs(t, svc.Run(context.Background()), boom)
}

type blockingConsumer struct{}

func (blockingConsumer) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunCancelsSiblingsOnFailure(t *testing.T) {
	boom := errors.New("subscription deleted")
	svc, err := NewService(ServiceParams{
		Logger: logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard}),
		DB:     &fakePinger{},
		Redis:  &fakePinger{},
		PubSub: &fakePinger{},
		Consumers: map[string]consumer{
			"notifications": &fakeConsumer{err: boom},
			"audit":         blockingConsumer{},
		},
	})
	require.NoError(t, err)
	require.ErrorIs(t, svc.Run(context.Background()), boom)
}
