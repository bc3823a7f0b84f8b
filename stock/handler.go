package stock

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sharedcode/storefront/internal/httpapi"
	"github.com/sharedcode/storefront/wal"
)

// RegisterRoutes mounts the stock endpoints on r (expected to be the /stock
// route group).
func RegisterRoutes(r gin.IRouter, svc *Service, sw *wal.Sweeper) {
	httpapi.RegisterLogRoutes(r, svc.Log(), sw)

	r.POST("/item/create/:price", func(c *gin.Context) {
		req := httpapi.Request(c)
		price, ok := httpapi.IntParam(c, "price")
		if !ok {
			return
		}
		itemID, err := svc.CreateItem(c.Request.Context(), req, price)
		if err != nil {
			httpapi.Error(c, req, err)
			return
		}
		c.IndentedJSON(http.StatusOK, gin.H{"item_id": itemID, "log_id": req.Correlation})
	})

	r.GET("/find/:item_id", func(c *gin.Context) {
		req := httpapi.Request(c)
		value, err := svc.FindItem(c.Request.Context(), req, c.Param("item_id"))
		if err != nil {
			httpapi.Error(c, req, err)
			return
		}
		c.IndentedJSON(http.StatusOK, gin.H{
			"stock":  value.Stock,
			"price":  value.Price,
			"log_id": req.Correlation,
		})
	})

	r.POST("/add/:item_id/:amount", func(c *gin.Context) {
		adjust(c, svc.AddStock)
	})

	r.POST("/subtract/:item_id/:amount", func(c *gin.Context) {
		adjust(c, svc.SubtractStock)
	})
}

func adjust(c *gin.Context, op func(ctx context.Context, req wal.Request, itemID string, amount int) (ItemValue, error)) {
	req := httpapi.Request(c)
	amount, ok := httpapi.IntParam(c, "amount")
	if !ok {
		return
	}
	itemID := c.Param("item_id")
	value, err := op(c.Request.Context(), req, itemID, amount)
	if err != nil {
		httpapi.Error(c, req, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{
		"item_id": itemID,
		"stock":   value.Stock,
		"log_id":  req.Correlation,
	})
}
