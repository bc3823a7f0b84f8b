package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sharedcode/storefront"
)

func TestClientRoundtrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/stock/find/i1":
			w.Write([]byte(`{"stock":4,"price":2}`))
		case r.Method == http.MethodPost && r.URL.Path == "/stock/subtract/i1/9":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message":"out of stock"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL)
	ctx := context.Background()

	reply, err := c.Get(ctx, c.URL("/stock/find/i1"))
	if err != nil {
		t.Fatal(err)
	}
	if !reply.Ok() {
		t.Fatalf("status %d", reply.StatusCode)
	}
	var item struct {
		Stock int `json:"stock"`
		Price int `json:"price"`
	}
	if err := reply.Decode(&item); err != nil {
		t.Fatal(err)
	}
	if item.Stock != 4 || item.Price != 2 {
		t.Errorf("decoded %+v", item)
	}

	// A refused mutation is a reply, not an error; the caller inspects Ok.
	reply, err = c.Post(ctx, c.URL("/stock/subtract/i1/9"))
	if err != nil {
		t.Fatal(err)
	}
	if reply.Ok() {
		t.Error("400 reported Ok")
	}
}

func TestClientNetworkError(t *testing.T) {
	server := httptest.NewServer(nil)
	server.Close()

	c := NewClient(server.URL)
	_, err := c.Get(context.Background(), c.URL("/stock/find/i1"))
	if storefront.CodeOf(err) != storefront.NetworkError {
		t.Errorf("err = %v, want NetworkError", err)
	}
}

func TestSweepPoster(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	p := SweepPoster{Client: NewClient(server.URL)}
	ctx := context.Background()
	if err := p.Post(ctx, server.URL+"/stock/add/i1/1"); err == nil {
		t.Error("non-2xx reply must be an error")
	}
	if err := p.Post(ctx, server.URL+"/stock/add/i1/1"); err != nil {
		t.Error(err)
	}
}
