package server

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alinrajpoot/max30102-simulator/max30102/device"
	"github.com/alinrajpoot/max30102-simulator/max30102/model"
	"github.com/alinrajpoot/max30102-simulator/max30102/waveform"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer() *Server {
	logger := testLogger()
	m := model.New(model.WithLogger(logger))
	dev := device.New(device.WithLogger(logger))
	gen := waveform.New(m, waveform.WithLogger(logger), waveform.WithSeed(1))
	return New("127.0.0.1", 0,
		WithLogger(logger),
		WithComponents(dev, m, gen),
		WithBroadcastInterval(time.Millisecond),
	)
}

// pipeClient returns the server end of an in-memory connection plus a
// channel of the JSON lines arriving at the client end.
func pipeClient(t *testing.T) (net.Conn, chan string) {
	t.Helper()
	serverEnd, clientEnd := net.Pipe()
	lines := make(chan string, 64)
	go func() {
		scanner := bufio.NewScanner(clientEnd)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()
	t.Cleanup(func() {
		serverEnd.Close()
		clientEnd.Close()
	})
	return serverEnd, lines
}

func waitLine(t *testing.T, lines chan string) string {
	t.Helper()
	select {
	case line, ok := <-lines:
		require.True(t, ok, "connection closed before a line arrived")
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a line")
		return ""
	}
}

func TestBroadcastFanOut(t *testing.T) {
	s := newTestServer()

	conns := make([]net.Conn, 3)
	streams := make([]chan string, 3)
	for i := range conns {
		conns[i], streams[i] = pipeClient(t)
		s.mu.Lock()
		s.clients[conns[i]] = struct{}{}
		s.mu.Unlock()
	}

	s.broadcastTick()

	payloads := make([]string, 3)
	for i := range streams {
		payloads[i] = waitLine(t, streams[i])
	}
	assert.Equal(t, payloads[0], payloads[1], "all clients receive identical bytes")
	assert.Equal(t, payloads[0], payloads[2], "all clients receive identical bytes")

	var point waveform.Point
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &point))
	assert.Equal(t, "resting", point.Activity)
	assert.Greater(t, point.RedPPG, 0)
}

func TestBroadcastRemovesFailedConnection(t *testing.T) {
	s := newTestServer()

	good1, stream1 := pipeClient(t)
	good2, stream2 := pipeClient(t)
	bad, badStream := pipeClient(t)

	s.mu.Lock()
	s.clients[good1] = struct{}{}
	s.clients[good2] = struct{}{}
	s.clients[bad] = struct{}{}
	s.mu.Unlock()

	s.broadcastTick()
	waitLine(t, stream1)
	waitLine(t, stream2)
	waitLine(t, badStream)

	bad.Close()
	s.broadcastTick()
	waitLine(t, stream1)
	waitLine(t, stream2)

	s.mu.Lock()
	remaining := len(s.clients)
	_, badPresent := s.clients[bad]
	s.mu.Unlock()
	assert.Equal(t, 2, remaining, "only the failed connection is removed")
	assert.False(t, badPresent)

	// later ticks still reach the survivors
	s.broadcastTick()
	waitLine(t, stream1)
	waitLine(t, stream2)
}

func TestBroadcastFeedsSampleThroughFIFO(t *testing.T) {
	s := newTestServer()
	conn, stream := pipeClient(t)
	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	s.broadcastTick()
	line := waitLine(t, stream)

	var point waveform.Point
	require.NoError(t, json.Unmarshal([]byte(line), &point))
	// the payload passed through the 18-bit FIFO packing
	assert.Less(t, point.RedPPG, 1<<18)
	assert.Less(t, point.IRPPG, 1<<18)
	assert.Equal(t, 0, s.dev.FIFOLen(), "tick drains what it pushes")
}

func TestHandleCommandSetScenario(t *testing.T) {
	s := newTestServer()
	conn, stream := pipeClient(t)

	go s.handleCommand(conn, `{"command": "set_scenario", "scenario": "heart_attack"}`)

	var resp commandResponse
	require.NoError(t, json.Unmarshal([]byte(waitLine(t, stream)), &resp))
	assert.Equal(t, "command_response", resp.Type)
	assert.Equal(t, "set_scenario", resp.Command)
	assert.True(t, resp.Success)
	assert.Equal(t, "heart_attack", resp.Scenario)
	require.NotNil(t, resp.NewState)
	assert.Equal(t, 45.0, resp.NewState.HeartRateBPM)
}

func TestHandleCommandSetParameters(t *testing.T) {
	s := newTestServer()
	conn, stream := pipeClient(t)

	go s.handleCommand(conn, `{"command": "set_parameters", "parameters": {"activity": "walking"}}`)

	var resp commandResponse
	require.NoError(t, json.Unmarshal([]byte(waitLine(t, stream)), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.NewState)
	assert.Equal(t, "walking", resp.NewState.Activity)
}

func TestHandleCommandRejectsOutOfRangeParameters(t *testing.T) {
	s := newTestServer()
	conn, stream := pipeClient(t)

	go s.handleCommand(conn, `{"command": "set_parameters", "parameters": {"heart_rate_bpm": 500}}`)

	var resp commandResponse
	require.NoError(t, json.Unmarshal([]byte(waitLine(t, stream)), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "heart_rate_bpm")

	// the model was left alone
	assert.Equal(t, 72.0, s.model.Snapshot().HeartRateBPM)
}

func TestHandleCommandGetStatus(t *testing.T) {
	s := newTestServer()
	conn, stream := pipeClient(t)

	go s.handleCommand(conn, `{"command": "get_status"}`)

	var resp commandResponse
	require.NoError(t, json.Unmarshal([]byte(waitLine(t, stream)), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Status)
	assert.Equal(t, 0, resp.Status.ClientsConnected)
	assert.Equal(t, "active", resp.Status.SensorStatus.PowerState)
	assert.Equal(t, "resting", resp.Status.ModelState.Activity)
}

func TestHandleCommandReset(t *testing.T) {
	s := newTestServer()
	require.NoError(t, s.ApplyScenario("shock"))
	conn, stream := pipeClient(t)

	go s.handleCommand(conn, `{"command": "reset"}`)

	var resp commandResponse
	require.NoError(t, json.Unmarshal([]byte(waitLine(t, stream)), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.NewState)
	assert.Equal(t, "normal", resp.NewState.Condition)
}

func TestHandleCommandUnknown(t *testing.T) {
	s := newTestServer()
	conn, stream := pipeClient(t)

	go s.handleCommand(conn, `{"command": "self_destruct"}`)

	var resp commandResponse
	require.NoError(t, json.Unmarshal([]byte(waitLine(t, stream)), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "Unknown command: self_destruct")
}

func TestHandleCommandMalformedJSON(t *testing.T) {
	s := newTestServer()
	conn, stream := pipeClient(t)

	go s.handleCommand(conn, `{"command": `)

	var msg errorMessage
	require.NoError(t, json.Unmarshal([]byte(waitLine(t, stream)), &msg))
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Message, "Invalid JSON")
}

func TestServerLifecycle(t *testing.T) {
	s := newTestServer()
	require.NoError(t, s.Start())
	defer s.Stop()
	assert.True(t, s.Running())

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()

	reader := bufio.NewScanner(conn)
	require.True(t, reader.Scan(), "expected a welcome line")

	var welcome welcomeMessage
	require.NoError(t, json.Unmarshal(reader.Bytes(), &welcome))
	assert.Equal(t, "welcome", welcome.Type)
	assert.Equal(t, "resting", welcome.Config.Activity)

	// data points start flowing after the welcome
	require.True(t, reader.Scan())
	var point waveform.Point
	require.NoError(t, json.Unmarshal(reader.Bytes(), &point))
	assert.NotZero(t, point.Timestamp)

	// a command reply arrives interleaved with the stream
	_, err = conn.Write([]byte(`{"command": "get_status"}` + "\n"))
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("no command response before deadline")
		default:
		}
		require.True(t, reader.Scan())
		var resp commandResponse
		if err := json.Unmarshal(reader.Bytes(), &resp); err == nil && resp.Type == "command_response" {
			assert.True(t, resp.Success)
			require.NotNil(t, resp.Status)
			assert.Equal(t, 1, resp.Status.ClientsConnected)
			return
		}
	}
}

func TestServerStopClosesClients(t *testing.T) {
	s := newTestServer()
	require.NoError(t, s.Start())

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()

	reader := bufio.NewScanner(conn)
	require.True(t, reader.Scan(), "expected a welcome line")

	s.Stop()
	assert.False(t, s.Running())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	for {
		if _, err := conn.Read(buf); err != nil {
			return // connection torn down by the server
		}
	}
}
