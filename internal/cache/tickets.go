package cache

import (
	"context"
	"sync"

	"github.com/samandr77/microservices/ticketflow/internal/entity"
)

// TicketCache is the ticket list shared by the dashboard, the admin panel and the details view.
type TicketCache struct {
	tickets *Collection[entity.Ticket]
}

func NewTicketCache() *TicketCache {
	return &TicketCache{
		tickets: NewCollection[entity.Ticket]("tickets", entity.MsgLoadTickets),
	}
}

func (c *TicketCache) Load(ctx context.Context, fetch FetchFunc[entity.Ticket]) ([]entity.Ticket, error) {
	return c.tickets.Load(ctx, fetch)
}

// ApplyOptimisticUpdate merges patch into the cached ticket before the server confirms it.
// A failed write does not revert the change.
func (c *TicketCache) ApplyOptimisticUpdate(id string, patch entity.TicketPatch) bool {
	return c.tickets.ApplyOptimisticUpdate(id, patch.Apply)
}

func (c *TicketCache) Remove(id string) bool {
	return c.tickets.Remove(id)
}

func (c *TicketCache) Append(t entity.Ticket) {
	c.tickets.Append(t)
}

func (c *TicketCache) Get(id string) (entity.Ticket, bool) {
	return c.tickets.Get(id)
}

func (c *TicketCache) Snapshot() []entity.Ticket {
	return c.tickets.Snapshot()
}

func (c *TicketCache) Err() error {
	return c.tickets.Err()
}

func (c *TicketCache) Loaded() bool {
	return c.tickets.Loaded()
}

// CommentCache keeps one comment collection per ticket.
type CommentCache struct {
	mu       sync.Mutex
	byTicket map[string]*Collection[entity.Comment]
}

func NewCommentCache() *CommentCache {
	return &CommentCache{
		byTicket: make(map[string]*Collection[entity.Comment]),
	}
}

// For returns the collection of ticketID, creating it on first use.
func (c *CommentCache) For(ticketID string) *Collection[entity.Comment] {
	c.mu.Lock()
	defer c.mu.Unlock()

	col, ok := c.byTicket[ticketID]
	if !ok {
		col = NewCollection[entity.Comment]("comments of "+ticketID, entity.MsgLoadTicket)
		c.byTicket[ticketID] = col
	}

	return col
}

// Forget drops the comments of a deleted ticket.
func (c *CommentCache) Forget(ticketID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.byTicket, ticketID)
}
