package state_machine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewKVStateMachine(t *testing.T) {
	sm := NewKVStateMachine("test-replica")

	require.NotNil(t, sm)
	require.NotNil(t, sm.store)
	require.Equal(t, "test-replica", sm.id)
}

func TestKVStateMachine_ApplyAndGet(t *testing.T) {
	sm := NewKVStateMachine("test-replica")

	sm.Apply("k1", "v1")

	value, ok := sm.Get("k1")
	require.True(t, ok)
	require.Equal(t, "v1", value)
}

func TestKVStateMachine_ApplyOverwrites(t *testing.T) {
	sm := NewKVStateMachine("test-replica")

	sm.Apply("k1", "v1")
	sm.Apply("k1", "v2")

	value, ok := sm.Get("k1")
	require.True(t, ok)
	require.Equal(t, "v2", value)
}

func TestKVStateMachine_ApplySameValueTwiceIsNoop(t *testing.T) {
	sm := NewKVStateMachine("test-replica")

	sm.Apply("k1", "v1")
	sm.Apply("k1", "v1")

	value, ok := sm.Get("k1")
	require.True(t, ok)
	require.Equal(t, "v1", value)
}

func TestKVStateMachine_GetMissingKey(t *testing.T) {
	sm := NewKVStateMachine("test-replica")

	value, ok := sm.Get("missing")
	require.False(t, ok)
	require.Equal(t, "", value)
}
