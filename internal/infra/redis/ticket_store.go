package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"liveclass-service/internal/domain"
)

// TicketStore keeps single-use websocket admission tickets in Redis.
// Tickets are written with a short TTL and consumed with GETDEL, so the
// lookup and the delete are one atomic step; a replayed ticket can never
// win the race even inside the TTL window.
type TicketStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTicketStore(client *redis.Client, ttl time.Duration) *TicketStore {
	return &TicketStore{client: client, ttl: ttl}
}

func (s *TicketStore) Mint(ctx context.Context, identity domain.Identity) (string, error) {
	token := uuid.NewString()
	payload, err := json.Marshal(identity)
	if err != nil {
		return "", fmt.Errorf("marshal ticket identity: %w", err)
	}
	if err := s.client.Set(ctx, s.key(token), payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store ticket: %w", err)
	}
	return token, nil
}

func (s *TicketStore) Consume(ctx context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, domain.ErrTicketInvalid
	}
	payload, err := s.client.GetDel(ctx, s.key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Identity{}, domain.ErrTicketInvalid
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("consume ticket: %w", err)
	}
	var identity domain.Identity
	if err := json.Unmarshal([]byte(payload), &identity); err != nil {
		return domain.Identity{}, fmt.Errorf("unmarshal ticket identity: %w", err)
	}
	return identity, nil
}

func (s *TicketStore) key(token string) string {
	return "websocket:ticket:" + token
}
