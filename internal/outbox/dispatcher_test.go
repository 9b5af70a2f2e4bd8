package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/carbontracker/internal/events"
)

type stubWriter struct {
	mu     sync.Mutex
	topics []string
	sent   map[string][]kafka.Message
	err    error
}

func (w *stubWriter) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if w.sent == nil {
		w.sent = make(map[string][]kafka.Message)
	}
	w.topics = append(w.topics, topic)
	w.sent[topic] = append(w.sent[topic], msgs...)
	return nil
}

type stubRegistry struct {
	calls map[string]int
	ids   map[string]int
}

func (r *stubRegistry) EnsureSchema(_ context.Context, subject, _ string) (int, error) {
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[subject]++
	if id, ok := r.ids[subject]; ok {
		return id, nil
	}
	return 0, errors.New("registry unavailable")
}

func outboxMessage(id int64, eventType, key string) Message {
	route, _ := events.RouteFor(eventType)
	return Message{
		EventID:       id,
		AggregateType: "user",
		AggregateID:   key,
		EventType:     eventType,
		Topic:         route.Topic,
		SchemaSubject: route.SchemaSubject,
		PartitionKey:  key,
		Payload:       json.RawMessage(`{"user_id":"` + key + `"}`),
	}
}

func headerMap(msg kafka.Message) map[string]string {
	out := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

func TestDeliverGroupsByTopicAndFramesPayload(t *testing.T) {
	writer := &stubWriter{}
	registry := &stubRegistry{ids: map[string]int{
		"carbon_activity_events-activity.logged":     7,
		"carbon_progress_events-points.awarded":      8,
		"carbon_progress_events-challenge.completed": 9,
	}}
	d := NewDispatcher(nil, writer, registry, time.Second, 10)

	batch := []Message{
		outboxMessage(1, events.TypeActivityLogged, "u1"),
		outboxMessage(2, events.TypePointsAwarded, "u1"),
		outboxMessage(3, events.TypeChallengeCompleted, "u1"),
		outboxMessage(4, events.TypeActivityLogged, "u2"),
	}
	require.NoError(t, d.deliver(context.Background(), batch))

	if diff := cmp.Diff([]string{events.TopicActivity, events.TopicProgress}, writer.topics); diff != "" {
		t.Fatalf("topic order mismatch (-want +got):\n%s", diff)
	}

	activity := writer.sent[events.TopicActivity]
	require.Len(t, activity, 2)
	require.Equal(t, "u1", string(activity[0].Key))
	require.Equal(t, "u2", string(activity[1].Key))

	value := activity[0].Value
	require.Equal(t, byte(0), value[0])
	require.Equal(t, uint32(7), binary.BigEndian.Uint32(value[1:5]))
	require.JSONEq(t, `{"user_id":"u1"}`, string(value[5:]))

	progress := writer.sent[events.TopicProgress]
	require.Len(t, progress, 2)
	require.Equal(t, map[string]string{
		HeaderEventType:     events.TypeChallengeCompleted,
		HeaderSchemaSubject: "carbon_progress_events-challenge.completed",
		HeaderEventID:       "3",
	}, headerMap(progress[1]))
	require.Equal(t, uint32(9), binary.BigEndian.Uint32(progress[1].Value[1:5]))

	// Schema ids are cached per subject.
	require.Equal(t, 1, registry.calls["carbon_activity_events-activity.logged"])
	require.NoError(t, d.deliver(context.Background(), batch[:1]))
	require.Equal(t, 1, registry.calls["carbon_activity_events-activity.logged"])
}

func TestDeliverFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown event type", func(t *testing.T) {
		d := NewDispatcher(nil, &stubWriter{}, &stubRegistry{}, time.Second, 10)
		msg := outboxMessage(1, events.TypeActivityLogged, "u1")
		msg.EventType = "mystery"
		require.ErrorContains(t, d.deliver(ctx, []Message{msg}), "no schema metadata")
	})

	t.Run("registry failure", func(t *testing.T) {
		writer := &stubWriter{}
		d := NewDispatcher(nil, writer, &stubRegistry{}, time.Second, 10)
		require.Error(t, d.deliver(ctx, []Message{outboxMessage(1, events.TypePostCreated, "u1")}))
		require.Empty(t, writer.topics)
	})

	t.Run("producer failure", func(t *testing.T) {
		boom := errors.New("broker down")
		registry := &stubRegistry{ids: map[string]int{"carbon_community_events-post.created": 1}}
		d := NewDispatcher(nil, &stubWriter{err: boom}, registry, time.Second, 10)
		require.ErrorIs(t, d.deliver(ctx, []Message{outboxMessage(1, events.TypePostCreated, "u1")}), boom)
	})
}

func TestSchemasMatchEventPayloads(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	samples := map[string]any{
		events.TypeActivityLogged:     events.ActivityLogged{ActivityID: "a", UserID: "u", Category: "food", OccurredAt: now},
		events.TypePointsAwarded:      events.PointsAwarded{UserID: "u", Level: 1, Reason: "manual", OccurredAt: now},
		events.TypeChallengeCompleted: events.ChallengeCompleted{UserID: "u", ChallengeID: "1", CompletedAt: now},
		events.TypePostCreated:        events.PostCreated{PostID: "p", AuthorID: "u", Type: "general", CreatedAt: now},
	}

	for _, eventType := range events.Types() {
		t.Run(eventType, func(t *testing.T) {
			entry, ok := schemaCatalog[eventType]
			require.True(t, ok)

			var schema struct {
				Properties map[string]json.RawMessage `json:"properties"`
				Required   []string                   `json:"required"`
			}
			require.NoError(t, json.Unmarshal([]byte(entry.Schema), &schema))

			raw, err := json.Marshal(samples[eventType])
			require.NoError(t, err)
			var payload map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(raw, &payload))

			require.ElementsMatch(t, keys(schema.Properties), keys(payload))
			require.ElementsMatch(t, schema.Required, keys(payload))
		})
	}
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestBackoffDelay(t *testing.T) {
	m := NewDLQManager(nil, 0, time.Minute, zerolog.Nop())
	require.Equal(t, 5, m.maxRetries)
	require.Equal(t, time.Minute, m.backoffDelay(1))
	require.Equal(t, 4*time.Minute, m.backoffDelay(3))
	require.Equal(t, time.Hour, m.backoffDelay(7))
	require.Equal(t, time.Hour, m.backoffDelay(64))
}

func TestSchemaRegistryRegistersMissingSubject(t *testing.T) {
	var registered string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/subjects/known/versions/latest":
			_, _ = w.Write([]byte(`{"id": 11}`))
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost && r.URL.Path == "/subjects/fresh/versions":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			registered = body["schemaType"]
			_, _ = w.Write([]byte(`{"id": 12}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	client := NewSchemaRegistryClient(srv.URL + "/")
	ctx := context.Background()

	id, err := client.EnsureSchema(ctx, "known", "{}")
	require.NoError(t, err)
	require.Equal(t, 11, id)

	id, err = client.EnsureSchema(ctx, "fresh", "{}")
	require.NoError(t, err)
	require.Equal(t, 12, id)
	require.Equal(t, "JSON", registered)

	_, err = client.EnsureSchema(ctx, "rejected", "{}")
	require.ErrorContains(t, err, "register error")
}
