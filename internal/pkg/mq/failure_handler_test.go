package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFatal = errors.New("fatal invariant")

func newTestFailureHandler(ws *writerSet, maxRetries int) (*FailureHandler, *fakeWriter) {
	dlt := &fakeWriter{}
	h := NewFailureHandler(RetryPolicy{
		RetryTopic: "orders",
		Delay:      5 * time.Second,
		MaxRetries: maxRetries,
		IsFatal:    func(err error) bool { return errors.Is(err, errFatal) },
	}, NewDelayProducer(ws.Factory, nil), dlt, DLTTopic("orders"))
	return h, dlt
}

func TestFailureHandler_TransientErrorGoesThroughDelayTopic(t *testing.T) {
	ws := newWriterSet()
	h, dlt := newTestFailureHandler(ws, 5)

	msg := kafka.Message{Topic: "orders", Key: []byte("42"), Value: []byte(`{"orderId":42}`),
		Headers: []kafka.Header{{Key: HeaderRetryCount, Value: []byte("2")}}}
	require.NoError(t, h.Handle(context.Background(), msg, errors.New("db down")))

	assert.Empty(t, dlt.Written())
	out := ws.Get("delay_topic_5s").Written()
	require.Len(t, out, 1)
	assert.Equal(t, msg.Value, out[0].Value)
	assert.Equal(t, "orders", GetHeader(out[0].Headers, HeaderRealTopic))
	assert.Equal(t, 3, RetryCount(out[0].Headers))
}

func TestFailureHandler_MaxRetriesGoesToDLT(t *testing.T) {
	ws := newWriterSet()
	h, dlt := newTestFailureHandler(ws, 5)

	msg := kafka.Message{Topic: "orders", Partition: 4, Offset: 99, Value: []byte("v"),
		Headers: []kafka.Header{{Key: HeaderRetryCount, Value: []byte("5")}}}
	require.NoError(t, h.Handle(context.Background(), msg, errors.New("db down")))

	assert.Empty(t, ws.Get("delay_topic_5s").Written())
	out := dlt.Written()
	require.Len(t, out, 1)
	assert.Equal(t, "orders", GetHeader(out[0].Headers, HeaderOriginalTopic))
	assert.Equal(t, "4", GetHeader(out[0].Headers, HeaderOriginalPartition))
	assert.Equal(t, "99", GetHeader(out[0].Headers, HeaderOriginalOffset))
	assert.Equal(t, "db down", GetHeader(out[0].Headers, HeaderExceptionMessage))
}

func TestFailureHandler_FatalSkipsRetry(t *testing.T) {
	ws := newWriterSet()
	h, dlt := newTestFailureHandler(ws, 5)
	var deadLetters []string
	h.OnDeadLetter = func(topic string) { deadLetters = append(deadLetters, topic) }

	require.NoError(t, h.Handle(context.Background(), kafka.Message{Topic: "orders"}, errFatal))

	assert.Len(t, dlt.Written(), 1)
	assert.Equal(t, []string{"orders.DLT"}, deadLetters)
}

func TestFailureHandler_DLTWriteErrorIsReturned(t *testing.T) {
	ws := newWriterSet()
	h, dlt := newTestFailureHandler(ws, 0)
	dlt.SetErr(errors.New("broker down"))

	err := h.Handle(context.Background(), kafka.Message{Topic: "orders"}, errors.New("x"))
	assert.Error(t, err)
}
