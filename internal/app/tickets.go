package app

import (
	"context"

	"liveclass-service/internal/domain"
)

// TicketStore mints and consumes single-use realtime-admission tickets.
// Consume must be atomic: two concurrent uses of the same ticket must not
// both succeed.
type TicketStore interface {
	// Mint stores a fresh random token for the identity with a short TTL
	// and returns it.
	Mint(ctx context.Context, identity domain.Identity) (string, error)
	// Consume resolves a token to its identity and deletes it in the same
	// step. Missing, expired, and replayed tokens all yield ErrTicketInvalid.
	Consume(ctx context.Context, token string) (domain.Identity, error)
}
