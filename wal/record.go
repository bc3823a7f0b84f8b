package wal

import (
	"encoding/json"
	"net/url"
	"time"
)

// Kind tags a log record variant.
type Kind string

const (
	KindCreate   Kind = "Create"
	KindUpdate   Kind = "Update"
	KindDelete   Kind = "Delete"
	KindSent     Kind = "Sent"
	KindReceived Kind = "Received"
)

// Status of a Sent/Received record. Entity records (Create/Update/Delete)
// carry none.
type Status string

const (
	StatusNone    Status = ""
	StatusPending Status = "Pending"
	StatusSuccess Status = "Success"
	StatusFailure Status = "Failure"
)

// Record is one write-ahead log entry. Every record of one logical request,
// across services, shares the same correlation ID. The per-variant
// constructors below are the only intended way to build one; they make the
// variant payloads (entity id on Create, old snapshot on Update) impossible
// to omit.
type Record struct {
	// ID is the correlation id, a UUID string.
	ID string `json:"id"`
	// DateTime is the YYYYMMDDhhmmssuuuuuu stamp; Log.Append fills it when empty.
	DateTime string `json:"dateTime"`
	Kind     Kind   `json:"type,omitempty"`
	Status   Status `json:"status,omitempty"`
	// EntityID names the entity the record touches.
	EntityID string `json:"entity_id,omitempty"`
	// Old holds a full snapshot sufficient to reverse an update.
	Old json.RawMessage `json:"old_value,omitempty"`
	// New holds the value after the mutation.
	New json.RawMessage `json:"new_value,omitempty"`
	// FromURL and ToURL identify the two endpoints of an inter-service hop.
	FromURL string `json:"from_url,omitempty"`
	ToURL   string `json:"to_url,omitempty"`
	// Cause names the business failure behind a terminal Sent/Failure,
	// e.g. "OutOfStock:<item_id>" or "OutOfCredit".
	Cause string `json:"cause,omitempty"`
}

// NewCreate records that entityID was created with the given value.
func NewCreate(correlation, entityID string, newValue json.RawMessage) Record {
	return Record{ID: correlation, Kind: KindCreate, EntityID: entityID, New: newValue}
}

// NewUpdate records that entityID changed from old to new. The old snapshot is
// what the sweeper restores when the request never finished.
func NewUpdate(correlation, entityID string, old, newValue json.RawMessage) Record {
	return Record{ID: correlation, Kind: KindUpdate, EntityID: entityID, Old: old, New: newValue}
}

// NewDelete records that entityID was removed; old is its last value.
func NewDelete(correlation, entityID string, old json.RawMessage) Record {
	return Record{ID: correlation, Kind: KindDelete, EntityID: entityID, Old: old}
}

// NewSent records an outgoing hop or the terminal reply of a request.
func NewSent(correlation string, status Status, fromURL, toURL string) Record {
	return Record{ID: correlation, Kind: KindSent, Status: status, FromURL: fromURL, ToURL: toURL}
}

// NewReceived records an incoming request or a peer's reply.
func NewReceived(correlation string, status Status, fromURL, toURL string) Record {
	return Record{ID: correlation, Kind: KindReceived, Status: status, FromURL: fromURL, ToURL: toURL}
}

// Terminal reports whether the record closes its request: the last record of a
// finished request is always a Sent with Success or Failure.
func (r Record) Terminal() bool {
	return r.Kind == KindSent && (r.Status == StatusSuccess || r.Status == StatusFailure)
}

// Time parses the record's dateTime stamp.
func (r Record) Time() (time.Time, error) {
	return ParseTime(r.DateTime)
}

// WithLogID appends the correlation id to rawURL as the log_id query
// parameter, the wire form callers use to propagate it across services.
func WithLogID(rawURL, correlation string) string {
	sep := "?"
	if u, err := url.Parse(rawURL); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	return rawURL + sep + "log_id=" + url.QueryEscape(correlation)
}
