package consumer

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/carbontracker/internal/cache"
	"example.com/carbontracker/internal/events"
)

func framed(schemaID uint32, payload string) []byte {
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], schemaID)
	copy(value[5:], payload)
	return value
}

func record(offset int64, eventType string, value []byte) kafka.Message {
	headers := []kafka.Header{{Key: "schema_subject", Value: []byte(events.TopicProgress + "-" + eventType)}}
	if eventType != "" {
		headers = append(headers, kafka.Header{Key: "event_type", Value: []byte(eventType)})
	}
	return kafka.Message{
		Topic:     events.TopicProgress,
		Partition: 0,
		Offset:    offset,
		Time:      time.Now().UTC(),
		Key:       []byte("u1"),
		Value:     value,
		Headers:   headers,
	}
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	payload := `{"user_id":"u1","delta":50}`
	reader := &stubReader{messages: []kafka.Message{record(10, events.TypePointsAwarded, framed(42, payload))}}
	handler := &stubHandler{}

	var logs bytes.Buffer
	err := NewProcessor(reader, handler, WithLogger(zerolog.New(&logs))).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, events.TypePointsAwarded, handler.last.EventType)
	require.Equal(t, "u1", handler.last.Key)
	require.Equal(t, 42, handler.last.SchemaID)
	require.Equal(t, "carbon_progress_events-points.awarded", handler.last.SchemaSubject)
	require.JSONEq(t, payload, string(handler.last.Payload))
	require.Zero(t, logs.Len())
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{record(20, events.TypeChallengeCompleted, framed(7, `{}`))}}
	handler := &stubHandler{err: errors.New("boom")}

	err := NewProcessor(reader, handler).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Zero(t, reader.commitCalls)
}

func TestProcessorCommitsUndecodableRecords(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{
		record(1, events.TypePointsAwarded, []byte{0, 1}),
		record(2, "", framed(1, `{}`)),
		record(3, events.TypePointsAwarded, append([]byte{1}, framed(1, `{}`)[1:]...)),
		record(4, events.TypePointsAwarded, framed(1, `{not json`)),
	}}
	handler := &stubHandler{}

	var logs bytes.Buffer
	err := NewProcessor(reader, handler, WithLogger(zerolog.New(&logs))).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, 4, reader.commitCalls)
	require.Contains(t, logs.String(), "decode error")
}

func TestProcessorRetriesFetchErrors(t *testing.T) {
	reader := &stubReader{
		fetchErrs: []error{errors.New("broker unavailable")},
		messages:  []kafka.Message{record(1, events.TypePointsAwarded, framed(1, `{}`))},
	}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, WithFetchBackoff(time.Millisecond)).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, handler.calls)
}

func TestProcessorStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewProcessor(&stubReader{}, &stubHandler{}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLeaderboardInvalidatorFiltersEvents(t *testing.T) {
	inv := &recordingInvalidator{}
	h := NewLeaderboardInvalidator(inv)
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, Message{EventType: events.TypeActivityLogged}))
	require.NoError(t, h.Handle(ctx, Message{EventType: events.TypePostCreated}))
	require.NoError(t, h.Handle(ctx, Message{EventType: events.TypePointsAwarded}))
	require.NoError(t, h.Handle(ctx, Message{EventType: events.TypeChallengeCompleted}))
	require.Equal(t, []string{cache.LeaderboardKey, cache.LeaderboardKey}, inv.keys)

	inv.err = errors.New("edge unavailable")
	require.Error(t, h.Handle(ctx, Message{EventType: events.TypePointsAwarded}))
}

func TestFanOutRunsEveryHandler(t *testing.T) {
	first, second := &stubHandler{}, &stubHandler{}
	msg := Message{EventType: events.TypePostCreated}

	require.NoError(t, FanOut(first, second).Handle(context.Background(), msg))
	require.Equal(t, 1, first.calls)
	require.Equal(t, 1, second.calls)

	boom := errors.New("boom")
	err := FanOut(&stubHandler{}, &stubHandler{err: boom}).Handle(context.Background(), msg)
	require.ErrorIs(t, err, boom)
}

type stubReader struct {
	messages    []kafka.Message
	fetchErrs   []error
	index       int
	commitCalls int
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		return kafka.Message{}, err
	}
	if r.index >= len(r.messages) {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

type stubHandler struct {
	mu    sync.Mutex
	calls int
	last  Message
	err   error
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.last = msg
	return h.err
}

type recordingInvalidator struct {
	keys []string
	err  error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, key string) error {
	if r.err != nil {
		return r.err
	}
	r.keys = append(r.keys, key)
	return nil
}
