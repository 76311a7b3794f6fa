package channel

import (
	"context"
	"slices"
	"sync"

	"github.com/mcdev12/timespeed/go/internal/models"
)

// MemoryNetwork is an in-process transport shared by several players.
// Messages are queued and delivered by Flush, preserving per-sender order.
type MemoryNetwork struct {
	mu      sync.Mutex
	members map[models.PlayerID]*Channel
	order   []models.PlayerID
	queue   []delivery
}

type delivery struct {
	to  models.PlayerID
	raw []byte
}

// NewMemoryNetwork returns an empty network.
func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{members: make(map[models.PlayerID]*Channel)}
}

// Join creates a channel for id attached to the network.
func (n *MemoryNetwork) Join(modID string, id models.PlayerID) *Channel {
	ch := New(modID, id, n.Transport(id))
	n.Attach(ch)
	return ch
}

// Transport returns a transport that sends as id.
func (n *MemoryNetwork) Transport(id models.PlayerID) Transport {
	return &memoryTransport{net: n, from: id}
}

// Attach makes ch receive messages addressed to its local player.
func (n *MemoryNetwork) Attach(ch *Channel) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := ch.Local()
	if _, ok := n.members[id]; !ok {
		n.order = append(n.order, id)
	}
	n.members[id] = ch
}

// Leave detaches id; queued messages for it are discarded.
func (n *MemoryNetwork) Leave(id models.PlayerID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.members, id)
	n.order = slices.DeleteFunc(n.order, func(p models.PlayerID) bool { return p == id })
}

// Pending returns the number of queued deliveries.
func (n *MemoryNetwork) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}

// Flush delivers queued messages until the queue is empty, including messages
// sent while flushing. It returns the number of deliveries.
func (n *MemoryNetwork) Flush(ctx context.Context) int {
	delivered := 0
	for {
		n.mu.Lock()
		if len(n.queue) == 0 {
			n.mu.Unlock()
			return delivered
		}
		d := n.queue[0]
		n.queue = n.queue[1:]
		ch := n.members[d.to]
		n.mu.Unlock()

		if ch == nil {
			continue
		}
		_ = ch.Dispatch(ctx, d.raw)
		delivered++
	}
}

type memoryTransport struct {
	net  *MemoryNetwork
	from models.PlayerID
}

func (t *memoryTransport) Send(_ context.Context, raw []byte, to []models.PlayerID) error {
	n := t.net
	n.mu.Lock()
	defer n.mu.Unlock()

	targets := to
	if len(targets) == 0 {
		targets = n.order
	}
	for _, id := range targets {
		if id == t.from {
			continue
		}
		if _, ok := n.members[id]; !ok {
			continue
		}
		n.queue = append(n.queue, delivery{to: id, raw: slices.Clone(raw)})
	}
	return nil
}
