package websocket

import (
	"encoding/json"
	"log/slog"

	"tutorhub-portal/internal/event"
)

// Hub fans bus events out to the websocket clients of the browser each event
// belongs to. Events without a scope go to everyone.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	bus    event.Bus
	lenReq chan chan int
	quit   chan struct{}
}

func NewHub(bus event.Bus) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		bus:        bus,
		lenReq:     make(chan chan int),
		quit:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	events, unsubscribe := h.bus.Subscribe("")
	defer unsubscribe()

	for {
		select {
		case <-h.quit:
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		case reply := <-h.lenReq:
			reply <- len(h.clients)
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			message, err := json.Marshal(e)
			if err != nil {
				slog.Error("failed to marshal event", "component", "websocket", "error", err)
				continue
			}
			for client := range h.clients {
				if e.Scope != "" && client.scope != e.Scope {
					continue
				}
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	reply := make(chan int, 1)
	select {
	case h.lenReq <- reply:
		return <-reply
	case <-h.quit:
		return 0
	}
}

// Stop disconnects every client and ends Run.
func (h *Hub) Stop() {
	close(h.quit)
}
