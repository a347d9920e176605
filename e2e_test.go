package main

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConn starts handleConnection against one half of an in-memory
// pipe and hands the test the other half, so these scenarios exercise
// the real read/parse/dispatch/reply loop without a real socket.
func newTestConn(t *testing.T, store *Store) net.Conn {
	t.Helper()
	server, client := net.Pipe()
	stats := NewServerStats()

	go handleConnection(WrapConn(server), store, stats)
	t.Cleanup(func() { client.Close() })
	return client
}

func readN(t *testing.T, r *bufio.Reader, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	_, err := readFull(r, buf)
	require.NoError(t, err)
	return buf
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Scenario 1: PING.
func TestE2E_Ping(t *testing.T) {
	conn := newTestConn(t, NewStore(10, NewServerStats()))
	reader := bufio.NewReader(conn)

	_, err := conn.Write([]byte("*1\r\n$4\r\nPING\r\n"))
	require.NoError(t, err)

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "+PONG")
}

// Scenario 2: SET + GET.
func TestE2E_SetThenGet(t *testing.T) {
	conn := newTestConn(t, NewStore(10, NewServerStats()))
	reader := bufio.NewReader(conn)

	_, err := conn.Write([]byte("*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"))
	require.NoError(t, err)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "+OK\r\n", line)

	_, err = conn.Write([]byte("*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"))
	require.NoError(t, err)
	header := readN(t, reader, len("$3\r\n"))
	assert.Equal(t, "$3\r\n", string(header))
	body := readN(t, reader, len("bar\r\n"))
	assert.Equal(t, "bar\r\n", string(body))
}

// Scenario 3: GET on a missing key replies with a null bulk string.
func TestE2E_GetMissing(t *testing.T) {
	conn := newTestConn(t, NewStore(10, NewServerStats()))
	reader := bufio.NewReader(conn)

	_, err := conn.Write([]byte("*2\r\n$3\r\nGET\r\n$6\r\nabsent\r\n"))
	require.NoError(t, err)

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "$-1\r\n", line)
}

// Scenario 4: SET with PX expiry, GET after sleeping past it.
func TestE2E_SetWithExpiryThenGetAfterSleep(t *testing.T) {
	store := NewStore(10, NewServerStats())
	conn := newTestConn(t, store)
	reader := bufio.NewReader(conn)

	_, err := conn.Write([]byte("*5\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n$2\r\nPX\r\n$2\r\n50\r\n"))
	require.NoError(t, err)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "+OK\r\n", line)

	time.Sleep(100 * time.Millisecond)

	_, err = conn.Write([]byte("*2\r\n$3\r\nGET\r\n$1\r\nk\r\n"))
	require.NoError(t, err)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "$-1\r\n", line)

	assert.Equal(t, 0, store.Len())
}

// Scenario 5: eviction at capacity 2 favors the stalest key.
func TestE2E_EvictionAtCapacityTwo(t *testing.T) {
	store := NewStore(2, NewServerStats())
	stats := NewServerStats()

	Dispatch(store, stats, ParsedCommand{Command: CommandSet, Args: []string{"a", "1"}})
	Dispatch(store, stats, ParsedCommand{Command: CommandSet, Args: []string{"b", "2"}})
	Dispatch(store, stats, ParsedCommand{Command: CommandGet, Args: []string{"a"}})
	Dispatch(store, stats, ParsedCommand{Command: CommandSet, Args: []string{"c", "3"}})

	assert.NoError(t, store.Get("a").Err)
	assert.NoError(t, store.Get("c").Err)
	assert.Error(t, store.Get("b").Err)
}

// Scenario 6: DELETE returns the count of keys that existed.
func TestE2E_DeleteCount(t *testing.T) {
	conn := newTestConn(t, NewStore(10, NewServerStats()))
	reader := bufio.NewReader(conn)

	_, err := conn.Write([]byte("*3\r\n$3\r\nSET\r\n$1\r\nx\r\n$1\r\n1\r\n"))
	require.NoError(t, err)
	_, err = reader.ReadString('\n')
	require.NoError(t, err)

	_, err = conn.Write([]byte("*3\r\n$3\r\nSET\r\n$1\r\ny\r\n$1\r\n2\r\n"))
	require.NoError(t, err)
	_, err = reader.ReadString('\n')
	require.NoError(t, err)

	_, err = conn.Write([]byte("*4\r\n$6\r\nDELETE\r\n$1\r\nx\r\n$1\r\ny\r\n$1\r\nz\r\n"))
	require.NoError(t, err)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ":2\r\n", line)
}

// Scenario 7: two pipelined commands in one write produce two replies
// in order, and the second observes the first's effect.
func TestE2E_PipelinedInput(t *testing.T) {
	conn := newTestConn(t, NewStore(10, NewServerStats()))
	reader := bufio.NewReader(conn)

	both := "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n" + "*2\r\n$3\r\nGET\r\n$1\r\nk\r\n"
	_, err := conn.Write([]byte(both))
	require.NoError(t, err)

	first, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "+OK\r\n", first)

	header := readN(t, reader, len("$1\r\n"))
	assert.Equal(t, "$1\r\n", string(header))
	body := readN(t, reader, len("v\r\n"))
	assert.Equal(t, "v\r\n", string(body))
}

// Scenario 8: the bytes of one SET arrive split across two writes;
// exactly one +OK follows, only after the second write completes it.
func TestE2E_SplitInput(t *testing.T) {
	conn := newTestConn(t, NewStore(10, NewServerStats()))
	reader := bufio.NewReader(conn)

	whole := "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n"
	split := len(whole) / 2

	_, err := conn.Write([]byte(whole[:split]))
	require.NoError(t, err)

	_, err = conn.Write([]byte(whole[split:]))
	require.NoError(t, err)

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "+OK\r\n", line)
}
