// Package ids is the ID service: it mints the monotonically-ordered,
// timestamp-prefixed identifiers the other services use as log keys.
package ids

import (
	"context"
	"fmt"
	"time"

	"github.com/sharedcode/storefront/kv"
	"github.com/sharedcode/storefront/wal"
)

// counterKey holds the process-wide counter in the service's store. It does
// not carry the log key prefix, so log enumeration never sees it.
const counterKey = "id-counter"

// Minter mints keys of form "log:<YYYYMMDDhhmmssuuuuuu><counter>". The
// counter increments atomically in the store; the timestamp advances, so
// uniqueness survives a counter reset across restarts.
type Minter struct {
	db kv.Store

	// Now is the clock used for the timestamp component; replaceable in tests.
	Now func() time.Time
}

// NewMinter returns a Minter over the ID service's store.
func NewMinter(db kv.Store) *Minter {
	return &Minter{db: db, Now: time.Now}
}

// Mint returns a fresh key. It fails only on counter-store errors.
func (m *Minter) Mint(ctx context.Context) (string, error) {
	counter, err := m.db.Incr(ctx, counterKey)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s%d", wal.KeyPrefix, wal.FormatTime(m.Now()), counter), nil
}
