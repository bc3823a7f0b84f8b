package storefront

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeOf(t *testing.T) {
	err := Errorf(Underflow, "stock cannot get reduced below zero")
	if CodeOf(err) != Underflow {
		t.Errorf("CodeOf = %d", CodeOf(err))
	}
	// The code survives wrapping.
	wrapped := fmt.Errorf("checkout: %w", err)
	if CodeOf(wrapped) != Underflow {
		t.Errorf("CodeOf(wrapped) = %d", CodeOf(wrapped))
	}
	if CodeOf(errors.New("plain")) != Unknown {
		t.Error("plain error should map to Unknown")
	}
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("redis: connection refused")
	err := NewError(StoreError, inner)
	if !errors.Is(err, inner) {
		t.Error("wrapped error lost")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{NotFound, http.StatusBadRequest},
		{Underflow, http.StatusBadRequest},
		{NetworkError, http.StatusBadRequest},
		{Conflict, http.StatusBadRequest},
		{StoreError, http.StatusInternalServerError},
		{Unknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(Errorf(tc.code, "x")); got != tc.want {
			t.Errorf("code %d: status %d, want %d", tc.code, got, tc.want)
		}
	}
	if HTTPStatus(errors.New("plain")) != http.StatusInternalServerError {
		t.Error("unclassified error should be 500")
	}
}
