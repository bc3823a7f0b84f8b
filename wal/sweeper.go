package wal

import (
	"context"
	"errors"
	log "log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sharedcode/storefront"
	"github.com/sharedcode/storefront/kv"
)

// Poster re-posts a compensating request during a sweep. A non-2xx reply or a
// transport failure is an error.
type Poster interface {
	Post(ctx context.Context, url string) error
}

// Sweeper rolls partially-completed requests back to a consistent state.
// It runs at service startup and on demand via the fault_tolerance endpoint.
//
// An unfinished group (one whose newest record is not a terminal Sent) is
// handled by shape: non-checkout groups have their entity writes undone in
// reverse (Create deleted, Update restored to the old snapshot); checkout
// groups have their outstanding stock subtractions compensated by re-posting
// stock/add, and the committed order row is never reverted.
type Sweeper struct {
	log    *Log
	db     kv.Store
	poster Poster

	// Quiescence keeps the sweeper off groups a live handler may still be
	// appending to: only groups whose newest record is older than this are
	// touched.
	Quiescence time.Duration
	// MaxRetries bounds each compensation replay; attempts = MaxRetries + 1.
	MaxRetries uint64
}

// NewSweeper returns a sweeper over the service's log and store. The poster is
// only exercised for checkout-shaped groups; services that never orchestrate a
// checkout may pass nil.
func NewSweeper(l *Log, db kv.Store, poster Poster) *Sweeper {
	return &Sweeper{
		log:        l,
		db:         db,
		poster:     poster,
		Quiescence: 30 * time.Second,
		MaxRetries: 9,
	}
}

// Sweep examines every log group within the look-back window and rolls
// unfinished ones back. It returns the number of groups cleaned up. A group
// that cannot be cleaned (persistent compensation failure) is left for the
// next pass; its error is joined into the returned error.
func (s *Sweeper) Sweep(ctx context.Context, lookBack time.Duration) (int, error) {
	groups, err := s.log.GroupsWithin(ctx, lookBack)
	if err != nil {
		return 0, err
	}
	now := s.log.Now().UTC()
	swept := 0
	var errs []error
	for _, g := range groups {
		if g.Last().Record.Terminal() {
			// Finished cleanly; nothing to reconcile.
			continue
		}
		if t, err := g.Last().Record.Time(); err == nil && now.Sub(t) < s.Quiescence {
			// A live handler may still be appending to this group.
			continue
		}
		var sweepErr error
		if g.Checkout() {
			sweepErr = s.sweepCheckout(ctx, g)
		} else {
			sweepErr = s.sweepLocal(ctx, g)
		}
		if sweepErr != nil {
			log.Warn("sweep of group failed", "correlation", g.Correlation, "error", sweepErr)
			errs = append(errs, sweepErr)
			continue
		}
		swept++
	}
	return swept, errors.Join(errs...)
}

// sweepLocal undoes a non-checkout group: walk the records newest first,
// deleting created entities and restoring updated ones to their old snapshot,
// then drop the group's records. Both undo steps are idempotent, so a crash
// mid-sweep is repaired by the next pass.
func (s *Sweeper) sweepLocal(ctx context.Context, g Group) error {
	for i := len(g.Entries) - 1; i >= 0; i-- {
		r := g.Entries[i].Record
		switch r.Kind {
		case KindCreate:
			if err := s.db.Delete(ctx, []string{r.EntityID}); err != nil {
				return err
			}
		case KindUpdate:
			if err := s.db.Set(ctx, r.EntityID, r.Old); err != nil {
				return err
			}
		case KindDelete:
			if len(r.Old) > 0 {
				if err := s.db.Set(ctx, r.EntityID, r.Old); err != nil {
					return err
				}
			}
		}
	}
	return s.deleteGroup(ctx, g, nil)
}

// sweepCheckout completes the pending stock compensations of an unfinished
// checkout. Outstanding work is derived from the hop trail: every confirmed
// subtract needs one confirmed add, and each replay is recorded under the same
// correlation id so a later pass counts it exactly once.
func (s *Sweeper) sweepCheckout(ctx context.Context, g Group) error {
	// The Update record is the paid=true commit. Once it is present the
	// saga completed and its stock moves stand; only the terminal Sent is
	// missing, so the trail is dropped without replaying anything.
	for _, e := range g.Entries {
		if e.Record.Kind == KindUpdate {
			return s.deleteGroup(ctx, g, nil)
		}
	}

	outstanding := make(map[string]int)
	for _, e := range g.Entries {
		r := e.Record
		if r.Kind != KindReceived || r.Status != StatusSuccess {
			continue
		}
		switch {
		case strings.Contains(r.FromURL, "/stock/subtract/"):
			outstanding[compensationURL(r.FromURL)]++
		case strings.Contains(r.FromURL, "/stock/add/"):
			outstanding[trimLogID(r.FromURL)]--
		}
	}
	urls := make([]string, 0, len(outstanding))
	for u, n := range outstanding {
		if n > 0 {
			urls = append(urls, u)
		}
	}
	sort.Strings(urls)

	var appended []string
	for _, u := range urls {
		for i := 0; i < outstanding[u]; i++ {
			target := WithLogID(u, g.Correlation)
			err := storefront.Retry(ctx, s.MaxRetries, func(ctx context.Context) error {
				if err := s.poster.Post(ctx, target); err != nil {
					return storefront.RetryableError(err)
				}
				return nil
			}, nil)
			status := StatusSuccess
			if err != nil {
				status = StatusFailure
			}
			key, appendErr := s.log.Append(ctx, NewReceived(g.Correlation, status, u, ""))
			if appendErr != nil {
				return appendErr
			}
			if err != nil {
				return err
			}
			appended = append(appended, key)
		}
	}
	return s.deleteGroup(ctx, g, appended)
}

func (s *Sweeper) deleteGroup(ctx context.Context, g Group, extra []string) error {
	keys := make([]string, 0, len(g.Entries)+len(extra))
	for _, e := range g.Entries {
		keys = append(keys, e.Key)
	}
	keys = append(keys, extra...)
	return s.db.Delete(ctx, keys)
}

// compensationURL derives the stock/add hop that reverses a stock/subtract hop.
func compensationURL(subtractURL string) string {
	return strings.Replace(trimLogID(subtractURL), "/stock/subtract/", "/stock/add/", 1)
}

// trimLogID strips the propagated correlation query so URLs compare equal
// across hops of different requests.
func trimLogID(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}
