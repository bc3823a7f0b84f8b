// Package order is the order service: it owns order records and orchestrates
// the checkout saga across the stock and payment services.
package order

import (
	"context"
	"encoding/json"

	"github.com/sharedcode/storefront"
	"github.com/sharedcode/storefront/gateway"
	"github.com/sharedcode/storefront/kv"
	"github.com/sharedcode/storefront/wal"
)

// Item is one (item id, quantity) pair of an order. Duplicates are allowed;
// checkout coalesces them.
type Item struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// OrderValue is one order record. TotalCost is the sum of quantity times the
// item's price at the time it was added. Paid transitions false to true
// exactly once, at a successful checkout commit.
type OrderValue struct {
	Paid      bool   `json:"paid"`
	Items     []Item `json:"items"`
	UserID    string `json:"user_id"`
	TotalCost int    `json:"total_cost"`
}

// Service implements the order operations and the checkout saga.
type Service struct {
	db  kv.Store
	log *wal.Log
	gw  *gateway.Client
}

// NewService returns an order service over its store and log, calling peers
// through gw.
func NewService(db kv.Store, l *wal.Log, gw *gateway.Client) *Service {
	return &Service{db: db, log: l, gw: gw}
}

// Log exposes the service's write-ahead log.
func (s *Service) Log() *wal.Log {
	return s.log
}

// Create verifies the user exists with the payment service, then allocates a
// fresh unpaid order for it.
func (s *Service) Create(ctx context.Context, req wal.Request, userID string) (string, error) {
	if _, err := s.log.Append(ctx, wal.NewReceived(req.Correlation, wal.StatusPending, req.Caller, req.Endpoint)); err != nil {
		return "", err
	}

	findURL := s.gw.URL("/payment/find_user/" + userID)
	if err := s.callHop(ctx, req, findURL, nil, s.gw.Get); err != nil {
		return "", s.fail(ctx, req, "",
			storefront.Errorf(storefront.NotFound, "user %s not found", userID))
	}

	orderID := storefront.NewUUID().String()
	raw, err := storefront.DefaultMarshaler.Marshal(OrderValue{Paid: false, Items: []Item{}, UserID: userID, TotalCost: 0})
	if err != nil {
		return "", err
	}
	if err := s.commit(ctx, wal.NewCreate(req.Correlation, orderID, raw), orderID, raw); err != nil {
		return "", s.fail(ctx, req, "", err)
	}

	if _, err := s.log.Append(ctx, wal.NewSent(req.Correlation, wal.StatusSuccess, req.Endpoint, req.Caller)); err != nil {
		return "", err
	}
	return orderID, nil
}

// Find reads the current value of an order.
func (s *Service) Find(ctx context.Context, req wal.Request, orderID string) (OrderValue, error) {
	if _, err := s.log.Append(ctx, wal.NewReceived(req.Correlation, wal.StatusPending, req.Caller, req.Endpoint)); err != nil {
		return OrderValue{}, err
	}
	value, err := s.load(ctx, orderID)
	if err != nil {
		return OrderValue{}, s.fail(ctx, req, "", err)
	}
	if _, err := s.log.Append(ctx, wal.NewSent(req.Correlation, wal.StatusSuccess, req.Endpoint, req.Caller)); err != nil {
		return OrderValue{}, err
	}
	return value, nil
}

// AddItem appends (itemID, quantity) to the order and raises its total cost
// by quantity times the item's current price.
func (s *Service) AddItem(ctx context.Context, req wal.Request, orderID, itemID string, quantity int) (OrderValue, error) {
	if _, err := s.log.Append(ctx, wal.NewReceived(req.Correlation, wal.StatusPending, req.Caller, req.Endpoint)); err != nil {
		return OrderValue{}, err
	}

	findURL := s.gw.URL("/stock/find/" + itemID)
	var item struct {
		Price int `json:"price"`
	}
	if err := s.callHop(ctx, req, findURL, &item, s.gw.Get); err != nil {
		return OrderValue{}, s.fail(ctx, req, "",
			storefront.Errorf(storefront.NotFound, "item %s does not exist", itemID))
	}

	old, err := s.load(ctx, orderID)
	if err != nil {
		return OrderValue{}, s.fail(ctx, req, "", err)
	}
	oldRaw, err := storefront.DefaultMarshaler.Marshal(old)
	if err != nil {
		return OrderValue{}, err
	}
	updated := old
	updated.Items = append(append([]Item(nil), old.Items...), Item{ItemID: itemID, Quantity: quantity})
	updated.TotalCost += quantity * item.Price
	newRaw, err := storefront.DefaultMarshaler.Marshal(updated)
	if err != nil {
		return OrderValue{}, err
	}
	if err := s.commit(ctx, wal.NewUpdate(req.Correlation, orderID, oldRaw, newRaw), orderID, newRaw); err != nil {
		return OrderValue{}, s.fail(ctx, req, "", err)
	}

	if _, err := s.log.Append(ctx, wal.NewSent(req.Correlation, wal.StatusSuccess, req.Endpoint, req.Caller)); err != nil {
		return OrderValue{}, err
	}
	return updated, nil
}

// callHop performs one outbound hop with the saga's hop-logging discipline:
// a Sent/Pending before the call, a Received with the reply's outcome after.
// Target, when non-nil, receives the decoded 2xx JSON body.
func (s *Service) callHop(ctx context.Context, req wal.Request, url string, target any,
	call func(ctx context.Context, url string) (*gateway.Reply, error)) error {

	if _, err := s.log.Append(ctx, wal.NewSent(req.Correlation, wal.StatusPending, req.Endpoint, url)); err != nil {
		return err
	}
	reply, err := call(ctx, wal.WithLogID(url, req.Correlation))
	status := wal.StatusFailure
	if err == nil && reply.Ok() {
		status = wal.StatusSuccess
	}
	if _, appendErr := s.log.Append(ctx, wal.NewReceived(req.Correlation, status, url, req.Endpoint)); appendErr != nil {
		return appendErr
	}
	if err != nil {
		return err
	}
	if !reply.Ok() {
		return storefront.Errorf(storefront.NetworkError, "%s replied %d", url, reply.StatusCode)
	}
	if target != nil {
		return reply.Decode(target)
	}
	return nil
}

// commit writes the entity and its log record in one atomic pipelined commit.
func (s *Service) commit(ctx context.Context, rec wal.Record, entityID string, entity json.RawMessage) error {
	logKey, err := s.log.NewKey(ctx)
	if err != nil {
		return err
	}
	encoded, err := s.log.Encode(rec)
	if err != nil {
		return err
	}
	return s.db.Pipelined(ctx, func(b kv.Batch) error {
		b.Set(logKey, encoded)
		b.Set(entityID, entity)
		return nil
	})
}

func (s *Service) load(ctx context.Context, orderID string) (OrderValue, error) {
	var value OrderValue
	found, err := s.db.GetStruct(ctx, orderID, &value)
	if err != nil {
		return OrderValue{}, err
	}
	if !found {
		return OrderValue{}, storefront.Errorf(storefront.NotFound, "order %s not found", orderID)
	}
	return value, nil
}

// fail closes the request with a terminal Sent/Failure carrying the cause and
// passes err through.
func (s *Service) fail(ctx context.Context, req wal.Request, cause string, err error) error {
	rec := wal.NewSent(req.Correlation, wal.StatusFailure, req.Endpoint, req.Caller)
	if cause == "" {
		cause = err.Error()
	}
	rec.Cause = cause
	if _, appendErr := s.log.Append(ctx, rec); appendErr != nil {
		return appendErr
	}
	return err
}
