package component

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/componentry/internal/observation/event"
)

func TestDescriptorAddedEvent_Matches(t *testing.T) {
	fired := DescriptorAddedEvent{Role: "listener", Hint: "audit"}

	require.True(t, DescriptorAddedEvent{}.Matches(fired))
	require.True(t, DescriptorAddedEvent{Role: "listener"}.Matches(fired))
	require.True(t, DescriptorAddedEvent{Role: "listener", Hint: "audit"}.Matches(fired))
	require.False(t, DescriptorAddedEvent{Role: "other"}.Matches(fired))
	require.False(t, DescriptorAddedEvent{Role: "listener", Hint: "x"}.Matches(fired))
	require.False(t, DescriptorAddedEvent{}.Matches(DescriptorRemovedEvent{Role: "listener"}))
}

func TestDescriptorRemovedEvent_Matches(t *testing.T) {
	fired := DescriptorRemovedEvent{Role: "listener", Hint: "audit"}

	require.True(t, DescriptorRemovedEvent{Role: "listener"}.Matches(fired))
	require.False(t, DescriptorRemovedEvent{Role: "x"}.Matches(fired))
	require.False(t, DescriptorRemovedEvent{}.Matches(DescriptorAddedEvent{}))
}

func TestDescriptorEvents_Generality(t *testing.T) {
	broad := DescriptorAddedEvent{Role: "listener"}
	narrow := DescriptorAddedEvent{Role: "listener", Hint: "audit"}

	require.True(t, broad.Matches(narrow))
	require.False(t, narrow.Matches(broad))
	require.NotEqual(t, event.TypeKey(broad), event.TypeKey(DescriptorRemovedEvent{}))
}
