package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_Ping(t *testing.T) {
	store := NewStore(10, NewServerStats())
	stats := NewServerStats()
	reply := Dispatch(store, stats, ParsedCommand{Command: CommandPing})

	require.Equal(t, KindSimpleString, reply.Kind)
	assert.Contains(t, reply.Str, "PONG")
}

func TestDispatch_Echo(t *testing.T) {
	store := NewStore(10, NewServerStats())
	stats := NewServerStats()
	reply := Dispatch(store, stats, ParsedCommand{Command: CommandEcho, Args: []string{"hello", "world"}})

	require.Equal(t, KindBulkString, reply.Kind)
	assert.Equal(t, "hello world", string(reply.Bulk))
}

func TestDispatch_SetThenGet(t *testing.T) {
	store := NewStore(10, NewServerStats())
	stats := NewServerStats()

	setReply := Dispatch(store, stats, ParsedCommand{Command: CommandSet, Args: []string{"k", "v"}})
	assert.Equal(t, "OK", setReply.Str)

	getReply := Dispatch(store, stats, ParsedCommand{Command: CommandGet, Args: []string{"k"}})
	require.Equal(t, KindBulkString, getReply.Kind)
	assert.Equal(t, "v", string(getReply.Bulk))
}

func TestDispatch_GetMissingIsNullBulk(t *testing.T) {
	store := NewStore(10, NewServerStats())
	stats := NewServerStats()

	reply := Dispatch(store, stats, ParsedCommand{Command: CommandGet, Args: []string{"missing"}})
	assert.True(t, reply.IsNull)
}

func TestDispatch_Delete(t *testing.T) {
	store := NewStore(10, NewServerStats())
	stats := NewServerStats()
	Dispatch(store, stats, ParsedCommand{Command: CommandSet, Args: []string{"k", "v"}})

	reply := Dispatch(store, stats, ParsedCommand{Command: CommandDelete, Args: []string{"k", "missing"}})
	assert.Equal(t, int64(1), reply.Int)
}

func TestDispatch_UnknownCommand(t *testing.T) {
	store := NewStore(10, NewServerStats())
	stats := NewServerStats()

	reply := Dispatch(store, stats, ParsedCommand{Command: CommandUnknown})
	assert.Equal(t, KindError, reply.Kind)
	assert.Equal(t, "Unrecognized command", reply.Str)
}

func TestDispatch_ArityViolation(t *testing.T) {
	store := NewStore(10, NewServerStats())
	stats := NewServerStats()

	reply := Dispatch(store, stats, ParsedCommand{Command: CommandGet, Args: []string{"a", "b"}})
	assert.Equal(t, KindError, reply.Kind)
	assert.Contains(t, reply.Str, "wrong number of arguments")
}

func TestDispatch_NilStoreIsRejected(t *testing.T) {
	stats := NewServerStats()

	reply := Dispatch(nil, stats, ParsedCommand{Command: CommandPing})
	assert.Equal(t, KindError, reply.Kind)
	assert.Equal(t, ErrStoreNotInitialized.Error(), reply.Str)
}

func TestDispatch_InvalidTTLDegradesToNoExpiry(t *testing.T) {
	store := NewStore(10, NewServerStats())
	stats := NewServerStats()

	setReply := Dispatch(store, stats, ParsedCommand{Command: CommandSet, Args: []string{"k", "v", "XX", "5"}})
	assert.Equal(t, "OK", setReply.Str)

	res := store.Get("k")
	require.NoError(t, res.Err)
	assert.Equal(t, "v", res.Value.String)
}

func TestDispatch_SetListLiteral(t *testing.T) {
	store := NewStore(10, NewServerStats())
	stats := NewServerStats()

	Dispatch(store, stats, ParsedCommand{Command: CommandSet, Args: []string{"k", "[a, b, c]"}})
	reply := Dispatch(store, stats, ParsedCommand{Command: CommandGet, Args: []string{"k"}})

	require.Equal(t, KindArray, reply.Kind)
	require.Len(t, reply.Array, 3)
	assert.Equal(t, "a", string(reply.Array[0].Bulk))
}
