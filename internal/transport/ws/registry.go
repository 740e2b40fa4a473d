package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Registry is the in-memory room map: classroomId to the set of currently
// connected clients, plus the set of all live connections the heartbeat
// watches. It is owned by the process and injected into the gateway;
// membership is ephemeral and dies with the connection or the process.
// Joins, leaves, and broadcasts on one room serialize on the registry lock,
// so a broadcast never sends to a just-removed connection.
type Registry struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	rooms    map[string]map[*Client]struct{}
	byClient map[*Client]string
}

func NewRegistry() *Registry {
	return &Registry{
		clients:  make(map[*Client]struct{}),
		rooms:    make(map[string]map[*Client]struct{}),
		byClient: make(map[*Client]string),
	}
}

// Register adds an authenticated connection to the heartbeat set. A client is
// registered for its whole life, whether or not it ever joins a room.
func (r *Registry) Register(client *Client) {
	r.mu.Lock()
	r.clients[client] = struct{}{}
	r.mu.Unlock()
}

// Deregister drops the connection from the heartbeat set and from its room.
func (r *Registry) Deregister(client *Client) {
	r.mu.Lock()
	delete(r.clients, client)
	r.mu.Unlock()
}

// Join registers a client under a classroom, creating the room on first join.
// A client joining a second room is moved, not duplicated.
func (r *Registry) Join(classroomID string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.byClient[client]; ok {
		r.removeLocked(current, client)
	}
	room, ok := r.rooms[classroomID]
	if !ok {
		room = make(map[*Client]struct{})
		r.rooms[classroomID] = room
	}
	room[client] = struct{}{}
	r.byClient[client] = classroomID
}

// Leave removes the client from whichever room it belongs to and reports the
// room it left. Empty rooms are deleted.
func (r *Registry) Leave(client *Client) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	classroomID, ok := r.byClient[client]
	if !ok {
		return "", false
	}
	r.removeLocked(classroomID, client)
	return classroomID, true
}

func (r *Registry) removeLocked(classroomID string, client *Client) {
	delete(r.byClient, client)
	room, ok := r.rooms[classroomID]
	if !ok {
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(r.rooms, classroomID)
	}
}

// Count returns the number of clients in a room, 0 when the room is absent.
func (r *Registry) Count(classroomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[classroomID])
}

// Broadcast pushes a message to every connection in the room. The message is
// serialized once; a missing room is a no-op, and a failed send to one member
// never aborts delivery to the rest.
func (r *Registry) Broadcast(classroomID string, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for client := range r.rooms[classroomID] {
		client.send(data)
	}
	return nil
}

// StartHeartbeat pings every registered client each interval and terminates
// connections that missed the previous ping. Terminated connections surface
// through their read loops, so the gateway's disconnect path notifies the
// room exactly as on a graceful disconnect.
func (r *Registry) StartHeartbeat(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (r *Registry) sweep() {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.clients))
	for client := range r.clients {
		clients = append(clients, client)
	}
	r.mu.RUnlock()

	for _, client := range clients {
		if !client.expire() {
			client.Close()
			continue
		}
		client.ping()
	}
}
