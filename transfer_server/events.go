package main

import (
	"sync"

	"e2eeserver/types"
)

// Broadcaster delivers fire-and-forget events to the members of a room and
// tracks which connections belong to which broadcast group.
type Broadcaster interface {
	Subscribe(roomID string, client *Client)
	Unsubscribe(roomID string, client *Client)
	Emit(roomID string, msg types.WSMessage)
}

// roomGroups is the in-process broadcast fabric: one subscriber set per
// room id.
type roomGroups struct {
	mu      sync.Mutex
	members map[string]map[*Client]struct{}
}

func newRoomGroups() *roomGroups {
	return &roomGroups{members: make(map[string]map[*Client]struct{})}
}

func (g *roomGroups) Subscribe(roomID string, client *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	group, ok := g.members[roomID]
	if !ok {
		group = make(map[*Client]struct{})
		g.members[roomID] = group
	}
	group[client] = struct{}{}
}

func (g *roomGroups) Unsubscribe(roomID string, client *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	group, ok := g.members[roomID]
	if !ok {
		return
	}
	delete(group, client)
	if len(group) == 0 {
		delete(g.members, roomID)
	}
}

// UnsubscribeAll removes the connection from every group, for transport
// teardown.
func (g *roomGroups) UnsubscribeAll(client *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for roomID, group := range g.members {
		delete(group, client)
		if len(group) == 0 {
			delete(g.members, roomID)
		}
	}
}

// Emit sends msg to every current member of the room.
func (g *roomGroups) Emit(roomID string, msg types.WSMessage) {
	for _, client := range g.snapshot(roomID, nil) {
		safeSend(client, client.Conn, msg)
	}
}

// EmitExcept sends msg to every member of the room other than sender; used
// by the peer-relay path.
func (g *roomGroups) EmitExcept(roomID string, sender *Client, msg types.WSMessage) {
	for _, client := range g.snapshot(roomID, sender) {
		safeSend(client, client.Conn, msg)
	}
}

func (g *roomGroups) snapshot(roomID string, skip *Client) []*Client {
	g.mu.Lock()
	defer g.mu.Unlock()
	group, ok := g.members[roomID]
	if !ok {
		return nil
	}
	out := make([]*Client, 0, len(group))
	for client := range group {
		if client == skip {
			continue
		}
		out = append(out, client)
	}
	return out
}
