// Package cache provides the dedup store used by the reminder scheduler to
// avoid re-sending a notification for the same event occurrence. The store is
// injected into the scheduler so it can be tested and swapped for a durable
// backend; entries expire on a TTL slightly longer than the reminder
// acceptance band.
package cache

import (
	"context"
	"fmt"
	"time"
)

// DefaultTTL keeps a dedup entry alive comfortably past the 8-12 minute
// acceptance band, so consecutive sweeps observing the same event cannot
// notify twice.
const DefaultTTL = 20 * time.Minute

// EventKey identifies one notification occurrence: the same event re-notifies
// only if its start time changes (e.g. the meeting was moved).
type EventKey struct {
	UserID    string
	EventID   string
	StartTime time.Time
}

// String renders the key for use as a storage key.
func (k EventKey) String() string {
	return fmt.Sprintf("reminder:%s:%s:%d", k.UserID, k.EventID, k.StartTime.UTC().Unix())
}

// NotifiedCache records which event occurrences have already been notified.
type NotifiedCache interface {
	// MarkIfFirst records the key and reports true when it was not present
	// before (i.e. the caller should send the notification). The check and
	// the write are one operation so two overlapping sweeps cannot both see
	// "first".
	MarkIfFirst(ctx context.Context, key EventKey) (bool, error)
}
