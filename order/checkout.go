package order

import (
	"context"
	"fmt"
	log "log/slog"
	"sort"
	"time"

	"github.com/sharedcode/storefront"
	"github.com/sharedcode/storefront/wal"
)

// CheckoutTimeout bounds the whole saga; individual hops carry the gateway's
// per-call timeout.
const CheckoutTimeout = 10 * time.Second

// Checkout runs the checkout saga: subtract stock per distinct item, pay,
// then commit paid=true atomically with its update record. On any failure the
// already-confirmed subtractions are compensated with stock/add; compensation
// hops that fail are left to the recovery sweeper, which completes them by
// replaying the log trail.
//
// The saga runs to completion even if the client disconnects; callers must
// hand it a context that outlives the request.
func (s *Service) Checkout(ctx context.Context, req wal.Request, orderID string) (OrderValue, error) {
	ctx, cancel := context.WithTimeout(ctx, CheckoutTimeout)
	defer cancel()

	if _, err := s.log.Append(ctx, wal.NewReceived(req.Correlation, wal.StatusPending, req.Caller, req.Endpoint)); err != nil {
		return OrderValue{}, err
	}

	old, err := s.load(ctx, orderID)
	if err != nil {
		return OrderValue{}, s.fail(ctx, req, "", err)
	}
	if old.Paid {
		// Paid is one-way; a second checkout of the same order is a no-op.
		if _, err := s.log.Append(ctx, wal.NewSent(req.Correlation, wal.StatusSuccess, req.Endpoint, req.Caller)); err != nil {
			return OrderValue{}, err
		}
		return old, nil
	}

	// Coalesce duplicates so each distinct item gets a single atomic
	// decrement for its summed quantity.
	quantities := make(map[string]int)
	for _, it := range old.Items {
		quantities[it.ItemID] += it.Quantity
	}
	itemIDs := make([]string, 0, len(quantities))
	for id := range quantities {
		itemIDs = append(itemIDs, id)
	}
	sort.Strings(itemIDs)

	// removed tracks the subtractions already confirmed, for rollback.
	var removed []Item
	for _, itemID := range itemIDs {
		qty := quantities[itemID]
		subURL := s.gw.URL(fmt.Sprintf("/stock/subtract/%s/%d", itemID, qty))
		if err := s.callHop(ctx, req, subURL, nil, s.gw.Post); err != nil {
			return OrderValue{}, s.abort(ctx, req, removed, "OutOfStock:"+itemID,
				storefront.Errorf(storefront.Underflow, "out of stock on item %s", itemID))
		}
		removed = append(removed, Item{ItemID: itemID, Quantity: qty})
	}

	payURL := s.gw.URL(fmt.Sprintf("/payment/pay/%s/%d", old.UserID, old.TotalCost))
	if err := s.callHop(ctx, req, payURL, nil, s.gw.Post); err != nil {
		return OrderValue{}, s.abort(ctx, req, removed, "OutOfCredit",
			storefront.Errorf(storefront.Underflow, "user %s out of credit", old.UserID))
	}

	oldRaw, err := storefront.DefaultMarshaler.Marshal(old)
	if err != nil {
		return OrderValue{}, err
	}
	updated := old
	updated.Paid = true
	newRaw, err := storefront.DefaultMarshaler.Marshal(updated)
	if err != nil {
		return OrderValue{}, err
	}
	// Stock and credit have already moved; this commit makes the order row
	// the single source of truth for paid-ness.
	if err := s.commit(ctx, wal.NewUpdate(req.Correlation, orderID, oldRaw, newRaw), orderID, newRaw); err != nil {
		return OrderValue{}, s.fail(ctx, req, "", err)
	}

	if _, err := s.log.Append(ctx, wal.NewSent(req.Correlation, wal.StatusSuccess, req.Endpoint, req.Caller)); err != nil {
		return OrderValue{}, err
	}
	return updated, nil
}

// abort rolls the confirmed subtractions back and closes the request with a
// terminal Sent/Failure. When a rollback hop failed, the group is instead left
// unfinished so the recovery sweeper completes the missing compensation from
// the log trail.
func (s *Service) abort(ctx context.Context, req wal.Request, removed []Item, cause string, err error) error {
	if s.rollbackStock(ctx, req, removed) {
		return s.fail(ctx, req, cause, err)
	}
	return err
}

// rollbackStock re-adds every confirmed subtraction and reports whether every
// hop succeeded. A failed hop does not abort the loop: its Received/Failure
// record is what lets the sweeper retry exactly that hop later.
func (s *Service) rollbackStock(ctx context.Context, req wal.Request, removed []Item) bool {
	allOk := true
	for _, it := range removed {
		addURL := s.gw.URL(fmt.Sprintf("/stock/add/%s/%d", it.ItemID, it.Quantity))
		reply, err := s.gw.Post(ctx, wal.WithLogID(addURL, req.Correlation))
		status := wal.StatusFailure
		if err == nil && reply.Ok() {
			status = wal.StatusSuccess
		}
		if status == wal.StatusFailure {
			allOk = false
			log.Warn("stock rollback hop failed", "url", addURL, "correlation", req.Correlation, "error", err)
		}
		if _, appendErr := s.log.Append(ctx, wal.NewReceived(req.Correlation, status, addURL, req.Endpoint)); appendErr != nil {
			allOk = false
			log.Error("recording rollback outcome failed", "correlation", req.Correlation, "error", appendErr)
		}
	}
	return allOk
}
