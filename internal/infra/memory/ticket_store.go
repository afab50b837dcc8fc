package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"liveclass-service/internal/domain"
)

// TicketStore is the in-memory counterpart of the Redis ticket store. The
// mutex makes consume-on-read atomic.
type TicketStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.Mutex
	tickets map[string]ticketEntry
}

type ticketEntry struct {
	identity  domain.Identity
	expiresAt time.Time
}

func NewTicketStore(ttl time.Duration) *TicketStore {
	return NewTicketStoreWithClock(ttl, time.Now)
}

// NewTicketStoreWithClock allows deterministic expiry in tests.
func NewTicketStoreWithClock(ttl time.Duration, clock func() time.Time) *TicketStore {
	return &TicketStore{
		ttl:     ttl,
		clock:   clock,
		tickets: make(map[string]ticketEntry),
	}
}

func (s *TicketStore) Mint(_ context.Context, identity domain.Identity) (string, error) {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[token] = ticketEntry{
		identity:  identity,
		expiresAt: s.clock().Add(s.ttl),
	}
	return token, nil
}

func (s *TicketStore) Consume(_ context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, domain.ErrTicketInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.tickets[token]
	if !ok {
		return domain.Identity{}, domain.ErrTicketInvalid
	}
	delete(s.tickets, token)
	if s.clock().After(entry.expiresAt) {
		return domain.Identity{}, domain.ErrTicketInvalid
	}
	return entry.identity, nil
}
