package order

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/sharedcode/storefront"
	"github.com/sharedcode/storefront/gateway"
	"github.com/sharedcode/storefront/ids"
	"github.com/sharedcode/storefront/kv"
	"github.com/sharedcode/storefront/payment"
	"github.com/sharedcode/storefront/stock"
	"github.com/sharedcode/storefront/wal"
)

// fixture serves real stock and payment services over HTTP and points an order
// service at them, the shape production has behind the gateway.
type fixture struct {
	orders  *Service
	log     *wal.Log
	sweeper *wal.Sweeper

	stock    *stock.Service
	stockLog *wal.Log
	payments *payment.Service

	baseURL string
	// addsDown simulates the stock service rejecting compensations.
	addsDown atomic.Bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{}

	router := gin.New()

	stockDB := kv.NewMock()
	f.stockLog = wal.New(stockDB, ids.NewMinter(kv.NewMock()))
	f.stock = stock.NewService(stockDB, f.stockLog)
	stockGroup := router.Group("/stock")
	stockGroup.Use(func(c *gin.Context) {
		if f.addsDown.Load() && strings.HasPrefix(c.Request.URL.Path, "/stock/add/") {
			c.AbortWithStatusJSON(500, gin.H{"message": "stock service unavailable"})
			return
		}
		c.Next()
	})
	stock.RegisterRoutes(stockGroup, f.stock, wal.NewSweeper(f.stockLog, stockDB, nil))

	payDB := kv.NewMock()
	payLog := wal.New(payDB, ids.NewMinter(kv.NewMock()))
	f.payments = payment.NewService(payDB, payLog)
	payment.RegisterRoutes(router.Group("/payment"), f.payments, wal.NewSweeper(payLog, payDB, nil))

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	f.baseURL = server.URL

	gw := gateway.NewClient(server.URL)
	ordersDB := kv.NewMock()
	f.log = wal.New(ordersDB, ids.NewMinter(kv.NewMock()))
	f.orders = NewService(ordersDB, f.log, gw)
	f.sweeper = wal.NewSweeper(f.log, ordersDB, gateway.SweepPoster{Client: gw})
	f.sweeper.Quiescence = 0
	return f
}

func (f *fixture) request(path string) wal.Request {
	return wal.NewRequest("", f.baseURL+path, "")
}

// newItem creates an item at the given price with the given starting stock.
func (f *fixture) newItem(t *testing.T, price, stockQty int) string {
	t.Helper()
	ctx := context.Background()
	itemID, err := f.stock.CreateItem(ctx, f.request("/stock/item/create"), price)
	if err != nil {
		t.Fatal(err)
	}
	if stockQty > 0 {
		if _, err := f.stock.AddStock(ctx, f.request("/stock/add"), itemID, stockQty); err != nil {
			t.Fatal(err)
		}
	}
	return itemID
}

// newUser creates a user with the given starting credit.
func (f *fixture) newUser(t *testing.T, credit int) string {
	t.Helper()
	ctx := context.Background()
	userID, err := f.payments.CreateUser(ctx, f.request("/payment/create_user"))
	if err != nil {
		t.Fatal(err)
	}
	if credit > 0 {
		if _, err := f.payments.AddFunds(ctx, f.request("/payment/add_funds"), userID, credit); err != nil {
			t.Fatal(err)
		}
	}
	return userID
}

func (f *fixture) itemStock(t *testing.T, itemID string) int {
	t.Helper()
	value, err := f.stock.FindItem(context.Background(), f.request("/stock/find"), itemID)
	if err != nil {
		t.Fatal(err)
	}
	return value.Stock
}

func (f *fixture) userCredit(t *testing.T, userID string) int {
	t.Helper()
	value, err := f.payments.FindUser(context.Background(), f.request("/payment/find_user"), userID)
	if err != nil {
		t.Fatal(err)
	}
	return value.Credit
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.newUser(t, 0)

	orderID, err := f.orders.Create(ctx, f.request("/orders/create/"+userID), userID)
	if err != nil {
		t.Fatal(err)
	}
	// Received, Sent/Pending find_user hop, Received/Success, Create, Sent.
	if n, _ := f.log.Count(ctx); n != 5 {
		t.Errorf("log count after create = %d, want 5", n)
	}

	value, err := f.orders.Find(ctx, f.request("/orders/find/"+orderID), orderID)
	if err != nil {
		t.Fatal(err)
	}
	if value.Paid || value.UserID != userID || value.TotalCost != 0 || len(value.Items) != 0 {
		t.Errorf("fresh order = %+v", value)
	}
}

func TestCreateOrderUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.orders.Create(context.Background(), f.request("/orders/create/ghost"), "ghost")
	if storefront.CodeOf(err) != storefront.NotFound {
		t.Errorf("err = %v, want NotFound", err)
	}
}

func TestAddItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.newUser(t, 0)
	itemID := f.newItem(t, 5, 0)

	orderID, err := f.orders.Create(ctx, f.request("/orders/create/"+userID), userID)
	if err != nil {
		t.Fatal(err)
	}
	before, _ := f.log.Count(ctx)

	value, err := f.orders.AddItem(ctx, f.request("/orders/addItem"), orderID, itemID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if value.TotalCost != 10 {
		t.Errorf("total after first add = %d, want 10", value.TotalCost)
	}
	// Received, Sent/Pending find hop, Received/Success, Update, Sent.
	if after, _ := f.log.Count(ctx); after-before != 5 {
		t.Errorf("addItem appended %d records, want 5", after-before)
	}

	value, err = f.orders.AddItem(ctx, f.request("/orders/addItem"), orderID, itemID, 4)
	if err != nil {
		t.Fatal(err)
	}
	if value.TotalCost != 30 {
		t.Errorf("total after second add = %d, want 30", value.TotalCost)
	}
	if len(value.Items) != 2 {
		t.Errorf("items = %+v, duplicates must be kept", value.Items)
	}
}

func TestAddItemUnknownItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.newUser(t, 0)
	orderID, err := f.orders.Create(ctx, f.request("/orders/create/"+userID), userID)
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.orders.AddItem(ctx, f.request("/orders/addItem"), orderID, "ghost", 1)
	if storefront.CodeOf(err) != storefront.NotFound {
		t.Fatalf("err = %v, want NotFound", err)
	}
	value, err := f.orders.Find(ctx, f.request("/orders/find"), orderID)
	if err != nil {
		t.Fatal(err)
	}
	if value.TotalCost != 0 || len(value.Items) != 0 {
		t.Errorf("order changed by refused addItem: %+v", value)
	}
}
