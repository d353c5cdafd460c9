package session

import "github.com/example/service-match/internal/rooms"

// Peer is a connected client as the coordinators see it: the outbound sink
// plus the identity binding established at connect time.
type Peer struct {
	Sink    rooms.Sink
	Binding Binding
}

func (p Peer) UserID() string { return p.Binding.UserID }
func (p Peer) Role() Role     { return p.Binding.Role }
