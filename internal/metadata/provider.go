package metadata

import (
	"context"
	"sync"
	"time"

	"github.com/mrlokans/moonsync/internal/entities"
)

const userAgent = "moonsync/1.0 (https://github.com/mrlokans/moonsync)"

// Provider is the interface both bibliographic backends implement: query by
// title and author, return whichever fields the source knows. A nil result
// with a nil error means the source had no match.
type Provider interface {
	Name() string
	Search(ctx context.Context, title, author string) (*entities.BookMetadata, error)
}

// rateLimiter serializes outbound calls to one request per interval.
type rateLimiter struct {
	mu       sync.Mutex
	lastCall time.Time
	interval time.Duration
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	return &rateLimiter{interval: interval}
}

func (r *rateLimiter) wait() {
	r.mu.Lock()
	defer r.mu.Unlock()

	since := time.Since(r.lastCall)
	if since < r.interval {
		time.Sleep(r.interval - since)
	}
	r.lastCall = time.Now()
}
