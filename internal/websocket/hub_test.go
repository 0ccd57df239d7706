package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepulse/pkg/contracts/events"
)

// mockConnection implements Connection for pump tests.
type mockConnection struct {
	mu       sync.Mutex
	written  [][]byte
	incoming chan []byte
	closed   bool
}

func newMockConnection() *mockConnection {
	return &mockConnection{incoming: make(chan []byte)}
}

func (m *mockConnection) ReadMessage() (int, []byte, error) {
	msg, ok := <-m.incoming
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	return 1, msg, nil
}

func (m *mockConnection) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([]byte, len(data))
	copy(copied, data)
	m.written = append(m.written, copied)
	return nil
}

func (m *mockConnection) SetReadLimit(int64)                 {}
func (m *mockConnection) SetReadDeadline(time.Time) error    { return nil }
func (m *mockConnection) SetWriteDeadline(time.Time) error   { return nil }
func (m *mockConnection) SetPongHandler(func(string) error)  {}

func (m *mockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.incoming)
	}
	return nil
}

func (m *mockConnection) messages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.written))
	copy(out, m.written)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func connectClient(t *testing.T, hub *Hub) (*Client, *mockConnection) {
	t.Helper()
	conn := newMockConnection()
	client := NewClient(hub, conn, "inspector1", Timing{}, nil)
	hub.register <- client
	go client.WritePump()
	go client.ReadPump()
	waitFor(t, func() bool { return hub.ClientCount() == 1 })
	return client, conn
}

func TestHubBroadcastsJobProgress(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	defer hub.Stop()

	_, conn := connectClient(t, hub)

	hub.JobProgress("job-1", "parse", 25, "parsing rows")

	waitFor(t, func() bool { return len(conn.messages()) > 0 })

	var envelope events.Envelope
	require.NoError(t, json.Unmarshal(conn.messages()[0], &envelope))
	assert.Equal(t, events.TypeJobProgress, envelope.Type)
	assert.False(t, envelope.Timestamp.IsZero())

	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "job-1", data["job_id"])
	assert.Equal(t, float64(25), data["progress"])
}

func TestHubUnregistersOnReadClose(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	defer hub.Stop()

	_, conn := connectClient(t, hub)
	conn.Close()

	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func TestHubPublishReachesAllClients(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	defer hub.Stop()

	conn1 := newMockConnection()
	client1 := NewClient(hub, conn1, "a", Timing{}, nil)
	hub.register <- client1
	go client1.WritePump()

	conn2 := newMockConnection()
	client2 := NewClient(hub, conn2, "b", Timing{}, nil)
	hub.register <- client2
	go client2.WritePump()

	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	hub.PublishDefectUpdate(events.DefectUpdate{
		DefectID:     7,
		InspectionID: "insp-1",
		Status:       "completed",
		ChangedBy:    "builder1",
	})

	waitFor(t, func() bool {
		return len(conn1.messages()) > 0 && len(conn2.messages()) > 0
	})

	var envelope events.Envelope
	require.NoError(t, json.Unmarshal(conn1.messages()[0], &envelope))
	assert.Equal(t, events.TypeDefectUpdate, envelope.Type)
}

func TestHubStatsAndStop(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()

	connectClient(t, hub)

	stats := hub.Stats()
	assert.Equal(t, 1, stats["active_clients"])
	assert.Equal(t, int64(1), stats["total_connections"])

	hub.Stop()
	assert.Zero(t, hub.ClientCount())
}
