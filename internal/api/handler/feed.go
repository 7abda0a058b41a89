package handler

import (
	"net/http"
	"sync"

	"invoice-export-service/internal/model"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// feedClient is one connected observer. The write mutex serializes
// sends: concurrent runs broadcast from their own goroutines, and the
// websocket protocol allows only one writer per connection.
type feedClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *feedClient) write(e model.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(e)
}

// Feed fans export events out to connected websocket clients. Clients
// are observers only: a slow or dead client is dropped, never allowed
// to stall a run.
type Feed struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]*feedClient
	log     zerolog.Logger

	upgrader websocket.Upgrader
}

// NewFeed builds an empty feed.
func NewFeed(log zerolog.Logger) *Feed {
	return &Feed{
		clients: make(map[*websocket.Conn]*feedClient),
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Serve upgrades the connection and keeps it registered until the
// client disconnects.
func (f *Feed) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	f.mu.Lock()
	f.clients[conn] = &feedClient{conn: conn}
	n := len(f.clients)
	f.mu.Unlock()
	f.log.Info().Int("clients", n).Msg("event feed client connected")

	// Read loop exists only to notice the close; inbound messages are
	// discarded.
	go func() {
		defer f.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (f *Feed) remove(conn *websocket.Conn) {
	f.mu.Lock()
	_, present := f.clients[conn]
	if present {
		delete(f.clients, conn)
		conn.Close()
	}
	n := len(f.clients)
	f.mu.Unlock()
	if present {
		f.log.Info().Int("clients", n).Msg("event feed client disconnected")
	}
}

// Broadcast sends one event to every connected client, dropping any
// client whose write fails. Safe to call from concurrently streaming
// runs: each client's writes go through its own mutex.
func (f *Feed) Broadcast(e model.Event) {
	f.mu.Lock()
	clients := make([]*feedClient, 0, len(f.clients))
	for _, c := range f.clients {
		clients = append(clients, c)
	}
	f.mu.Unlock()

	for _, c := range clients {
		if err := c.write(e); err != nil {
			f.log.Warn().Err(err).Msg("dropping event feed client after write error")
			f.remove(c.conn)
		}
	}
}

// ClientCount reports how many clients are connected.
func (f *Feed) ClientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}
