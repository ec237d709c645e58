package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"github.com/photofuse/api/internal/model"
)

// Client is one websocket subscriber watching a single job.
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Hub fans job status transitions out to subscribers. Delivery is best
// effort: slow subscribers are dropped, and the job store stays the source
// of truth for pollers.
type Hub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu sync.RWMutex
}

type broadcastMessage struct {
	jobID   string
	payload []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.JobID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.JobID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.jobID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.payload:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// NotifyStatus announces a status transition for a job.
func (h *Hub) NotifyStatus(jobID string, status model.JobStatus) {
	h.send(jobID, model.WSStatusMessage{
		Type:   model.WSMessageTypeStatus,
		JobID:  jobID,
		Status: status,
	})
}

// NotifyComplete announces the completed terminal state with its output.
func (h *Hub) NotifyComplete(jobID string, output *model.JobOutput) {
	h.send(jobID, model.WSCompleteMessage{
		Type:   model.WSMessageTypeComplete,
		JobID:  jobID,
		Output: output,
	})
}

// NotifyError announces the failed terminal state.
func (h *Hub) NotifyError(jobID string, code, message string) {
	h.send(jobID, model.WSErrorMessage{
		Type:    model.WSMessageTypeError,
		JobID:   jobID,
		Code:    code,
		Message: message,
	})
}

func (h *Hub) send(jobID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal websocket message: %v", err)
		return
	}
	select {
	case h.broadcast <- &broadcastMessage{jobID: jobID, payload: data}:
	default:
		// Hub backlog full; pollers still observe the store.
	}
}

// HandleConnection serves one subscriber until it disconnects.
func (h *Hub) HandleConnection(conn *websocket.Conn, jobID string) {
	client := &Client{
		JobID: jobID,
		Conn:  conn,
		Send:  make(chan []byte, 16),
	}
	h.register <- client
	defer func() {
		h.unregister <- client
	}()

	go func() {
		for msg := range client.Send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	// Drain reads so close frames are processed; subscribers never send.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
