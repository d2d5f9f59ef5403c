package mq

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkFunc func(ctx context.Context, msg kafka.Message, cause error) error

func (f sinkFunc) Handle(ctx context.Context, msg kafka.Message, cause error) error {
	return f(ctx, msg, cause)
}

func TestConsumer_CommitsAfterSuccessfulHandling(t *testing.T) {
	reader := newFakeReader(
		kafka.Message{Topic: "t", Offset: 1, Value: []byte("a")},
		kafka.Message{Topic: "t", Offset: 2, Value: []byte("b")},
	)
	var handled atomic.Int32
	c := NewConsumer("test", "t", reader, func(ctx context.Context, msg kafka.Message) error {
		handled.Add(1)
		return nil
	}, nil)

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return len(reader.Committed()) == 2 }, time.Second, 5*time.Millisecond)
	c.Stop(context.Background())

	assert.EqualValues(t, 2, handled.Load())
	assert.True(t, reader.closed)
}

func TestConsumer_FailureHandedOffThenCommitted(t *testing.T) {
	reader := newFakeReader(kafka.Message{Topic: "t", Offset: 7})
	var got error
	sink := sinkFunc(func(ctx context.Context, msg kafka.Message, cause error) error {
		got = cause
		return nil
	})
	boom := errors.New("boom")
	c := NewConsumer("test", "t", reader, func(ctx context.Context, msg kafka.Message) error { return boom }, sink)

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return len(reader.Committed()) == 1 }, time.Second, 5*time.Millisecond)
	c.Stop(context.Background())

	assert.ErrorIs(t, got, boom)
}

func TestConsumer_HandOffFailureHoldsOffset(t *testing.T) {
	reader := newFakeReader(kafka.Message{Topic: "t", Offset: 9})
	var attempts atomic.Int32
	sink := sinkFunc(func(ctx context.Context, msg kafka.Message, cause error) error {
		attempts.Add(1)
		return errors.New("dlt unavailable")
	})
	c := NewConsumer("test", "t", reader, func(ctx context.Context, msg kafka.Message) error {
		return errors.New("boom")
	}, sink)
	c.SetRetryBackoff(5 * time.Millisecond)

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return attempts.Load() >= 3 }, time.Second, 5*time.Millisecond)
	c.Stop(context.Background())

	assert.Empty(t, reader.Committed())
}

func TestConsumer_HandOffRecovers(t *testing.T) {
	reader := newFakeReader(kafka.Message{Topic: "t", Offset: 3})
	var attempts atomic.Int32
	sink := sinkFunc(func(ctx context.Context, msg kafka.Message, cause error) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	})
	c := NewConsumer("test", "t", reader, func(ctx context.Context, msg kafka.Message) error {
		return errors.New("boom")
	}, sink)
	c.SetRetryBackoff(time.Millisecond)

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return len(reader.Committed()) == 1 }, time.Second, 5*time.Millisecond)
	c.Stop(context.Background())

	assert.EqualValues(t, 3, attempts.Load())
}
