package server

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Broadcaster fans post events out to connected SSE clients. It satisfies
// the coordinator's Notifier interface.
type Broadcaster struct {
	sync.RWMutex
	clients map[string]chan interface{}
}

// Constructor
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]chan interface{}, 100),
	}
}

// Broadcast sends event to every connected client without blocking.
func (b *Broadcaster) Broadcast(event interface{}) {
	b.RLock()
	defer b.RUnlock()

	for id, client := range b.clients {
		select {
		case client <- event: // Non-blocking send
		default:
			log.Warnf("Client channel full, skipping event for client: %v", id)
		}
	}
}

// AddClient registers a client channel under key.
func (b *Broadcaster) AddClient(key string, events chan interface{}) {
	b.Lock()
	defer b.Unlock()
	b.clients[key] = events
	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Adding client to broadcaster")
}

// RemoveClient unregisters and closes the client channel under key.
func (b *Broadcaster) RemoveClient(key string) {
	b.Lock()
	defer b.Unlock()

	if client, ok := b.clients[key]; ok { // Check if the client exists
		close(client)           // Safely close the channel
		delete(b.clients, key)  // Remove from the map
	}

	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Removed client from broadcaster")
}

func (b *Broadcaster) Shutdown() {
	log.Info("Shutting down broadcaster")
	b.Lock()
	defer b.Unlock()
	for key, client := range b.clients {
		close(client)
		delete(b.clients, key)
	}
}
