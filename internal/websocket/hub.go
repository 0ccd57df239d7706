// Package websocket pushes live platform events to connected browsers:
// upload job progress, defect workflow changes and report availability.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"sitepulse/pkg/contracts/events"
)

// Hub maintains the set of active clients and broadcasts events to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu     sync.RWMutex
	logger *slog.Logger

	totalConnections int64
	messagesSent     int64

	quit    chan struct{}
	running bool
}

// NewHub creates a hub. Call Start before serving connections.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		quit:       make(chan struct{}),
	}
}

// Start launches the hub loop.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

// Stop shuts the hub down and disconnects every client.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.totalConnections++
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.Info("client registered",
				slog.String("client_id", client.id),
				slog.String("username", client.username),
				slog.Int("total_clients", count))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.Info("client unregistered",
				slog.String("client_id", client.id),
				slog.Duration("connection_duration", time.Since(client.connectedAt)),
				slog.Int("total_clients", count))

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			for _, client := range clients {
				select {
				case client.send <- message:
					h.mu.Lock()
					h.messagesSent++
					h.mu.Unlock()
				default:
					// Slow consumer, drop the connection.
					h.mu.Lock()
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
					h.mu.Unlock()
					h.logger.Warn("client send buffer full, disconnecting",
						slog.String("client_id", client.id))
				}
			}
		}
	}
}

// Publish wraps data in an event envelope and broadcasts it.
func (h *Hub) Publish(eventType string, data interface{}) {
	envelope := events.Envelope{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		h.logger.Error("marshal event failed",
			slog.String("type", eventType),
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- payload:
	case <-h.quit:
	}
}

// JobProgress implements jobs.Notifier.
func (h *Hub) JobProgress(jobID, stage string, progress int, message string) {
	h.Publish(events.TypeJobProgress, events.JobProgress{
		JobID:    jobID,
		Stage:    stage,
		Progress: progress,
		Message:  message,
	})
}

// JobCompleted implements jobs.Notifier.
func (h *Hub) JobCompleted(jobID, inspectionID string) {
	h.Publish(events.TypeJobComplete, map[string]string{
		"job_id":        jobID,
		"inspection_id": inspectionID,
	})
}

// JobFailed implements jobs.Notifier.
func (h *Hub) JobFailed(jobID string, err error) {
	h.Publish(events.TypeJobFailed, map[string]string{
		"job_id": jobID,
		"error":  err.Error(),
	})
}

// PublishDefectUpdate announces a defect workflow change.
func (h *Hub) PublishDefectUpdate(update events.DefectUpdate) {
	h.Publish(events.TypeDefectUpdate, update)
}

// PublishReportReady announces a generated report.
func (h *Hub) PublishReportReady(ready events.ReportReady) {
	h.Publish(events.TypeReportReady, ready)
}

// PublishDataRefresh tells clients to reload dashboard data.
func (h *Hub) PublishDataRefresh(source string) {
	h.Publish(events.TypeDataRefresh, map[string]string{"source": source})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns hub counters for the health endpoint.
func (h *Hub) Stats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return map[string]interface{}{
		"active_clients":    len(h.clients),
		"total_connections": h.totalConnections,
		"messages_sent":     h.messagesSent,
	}
}
