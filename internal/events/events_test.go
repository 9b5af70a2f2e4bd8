package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEveryTypeIsRouted(t *testing.T) {
	subjects := make(map[string]string)
	for _, eventType := range Types() {
		route, ok := RouteFor(eventType)
		require.True(t, ok, eventType)
		require.NotEmpty(t, route.Topic)
		require.NotContains(t, subjects, route.SchemaSubject, "subject shared by %s and %s", subjects[route.SchemaSubject], eventType)
		subjects[route.SchemaSubject] = eventType
	}

	_, ok := RouteFor("unknown")
	require.False(t, ok)
}

func TestPartitionKeyPrefersUser(t *testing.T) {
	require.Equal(t, "u1", Envelope{UserID: "u1", AggregateID: "a1"}.PartitionKey())
	require.Equal(t, "a1", Envelope{AggregateID: "a1"}.PartitionKey())
}
