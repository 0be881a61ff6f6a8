package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SentCache remembers correlation ids the gateway has already accepted, so a
// dispatch retried after a crash does not text the client twice.
type SentCache interface {
	StoreSent(ctx context.Context, correlationID uuid.UUID, sentAt time.Time) error
	SentAt(ctx context.Context, correlationID uuid.UUID) (time.Time, bool, error)
}
