package storefront

import (
	"encoding/json"
)

// Marshaler interface specifies encoding to byte array and back to the object.
type Marshaler interface {
	// Encodes any object to byte array.
	Marshal(v any) ([]byte, error)
	// Decodes byte array back to its Object type.
	Unmarshal(data []byte, v any) error
}

type defaultMarshaler struct{}

// NewMarshaler returns the default marshaler which uses the golang's json package.
func NewMarshaler() Marshaler {
	return &defaultMarshaler{}
}

// DefaultMarshaler is the marshaler used for entity values and log records.
// Entity snapshots inside log records stay as raw JSON so the sweeper can
// restore them with a plain byte write.
var DefaultMarshaler Marshaler = &defaultMarshaler{}

// Encodes any object to a byte array.
func (m defaultMarshaler) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decodes a byte array back to its Object type.
func (m defaultMarshaler) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
