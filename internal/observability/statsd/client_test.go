package statsd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listenUDP opens a local UDP listener and returns its address plus a
// function that reads one datagram.
func listenUDP(t *testing.T) (string, func() string) {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	read := func() string {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		buf := make([]byte, 1024)
		n, _, readErr := conn.ReadFrom(buf)
		require.NoError(t, readErr)
		return string(buf[:n])
	}
	return conn.LocalAddr().String(), read
}

func TestClient_Count(t *testing.T) {
	addr, read := listenUDP(t)

	client, err := NewClient(Config{Enabled: true, Address: addr, Prefix: "sessiond"})
	require.NoError(t, err)
	defer func() { _ = client.Close() }()
	require.True(t, client.Enabled())

	client.Count("session.login", 1, map[string]string{"result": "success"})
	assert.Equal(t, "sessiond.session.login:1|c|#result:success", read())
}

func TestClient_GaugeAndTiming(t *testing.T) {
	addr, read := listenUDP(t)

	client, err := NewClient(Config{Enabled: true, Address: addr})
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	client.Gauge("sessions.open", 3, nil)
	assert.Equal(t, "sessions.open:3|g", read())

	client.Timing("login.duration", 250*time.Millisecond, nil)
	assert.Equal(t, "login.duration:250|ms", read())
}

func TestClient_TagsMergedAndSorted(t *testing.T) {
	addr, read := listenUDP(t)

	client, err := NewClient(Config{
		Enabled:    true,
		Address:    addr,
		GlobalTags: map[string]string{"env": "test", "result": "global"},
	})
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	// Local tags win over global ones.
	client.Count("evt", 1, map[string]string{"result": "local"})
	assert.Equal(t, "evt:1|c|#env:test,result:local", read())
}

func TestClient_Disabled(t *testing.T) {
	client, err := NewClient(Config{Enabled: false, Address: "127.0.0.1:9"})
	require.NoError(t, err)
	assert.False(t, client.Enabled())

	// No-ops, no panics.
	client.Count("x", 1, nil)
	client.Gauge("x", 1, nil)
	client.Timing("x", time.Second, nil)
	assert.NoError(t, client.Close())
}

func TestClient_NilSafe(t *testing.T) {
	var client *Client
	assert.False(t, client.Enabled())
	client.Count("x", 1, nil)
	assert.NoError(t, client.Close())
}
