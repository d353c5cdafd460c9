package gateway

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/service-match/internal/rooms"
)

// wsSink adapts a websocket connection to the rooms.Sink contract. The
// write mutex serializes concurrent broadcasts so every frame reaches the
// wire whole and in the order the registry handed it over.
type wsSink struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func newWSSink(conn *websocket.Conn) *wsSink {
	return &wsSink{id: newID(), conn: conn}
}

func (s *wsSink) ID() string { return s.id }

func (s *wsSink) Send(ev rooms.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(ev)
}
