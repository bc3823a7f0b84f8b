package order

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sharedcode/storefront/internal/httpapi"
	"github.com/sharedcode/storefront/wal"
)

// RegisterRoutes mounts the order endpoints on r (expected to be the /orders
// route group).
func RegisterRoutes(r gin.IRouter, svc *Service, sw *wal.Sweeper) {
	httpapi.RegisterLogRoutes(r, svc.Log(), sw)

	r.POST("/create/:user_id", func(c *gin.Context) {
		req := httpapi.Request(c)
		orderID, err := svc.Create(c.Request.Context(), req, c.Param("user_id"))
		if err != nil {
			httpapi.Error(c, req, err)
			return
		}
		c.IndentedJSON(http.StatusOK, gin.H{"order_id": orderID, "log_id": req.Correlation})
	})

	r.GET("/find/:order_id", func(c *gin.Context) {
		req := httpapi.Request(c)
		orderID := c.Param("order_id")
		value, err := svc.Find(c.Request.Context(), req, orderID)
		if err != nil {
			httpapi.Error(c, req, err)
			return
		}
		c.IndentedJSON(http.StatusOK, gin.H{
			"order_id":   orderID,
			"paid":       value.Paid,
			"items":      value.Items,
			"user_id":    value.UserID,
			"total_cost": value.TotalCost,
			"log_id":     req.Correlation,
		})
	})

	r.POST("/addItem/:order_id/:item_id/:quantity", func(c *gin.Context) {
		req := httpapi.Request(c)
		quantity, ok := httpapi.IntParam(c, "quantity")
		if !ok {
			return
		}
		value, err := svc.AddItem(c.Request.Context(), req, c.Param("order_id"), c.Param("item_id"), quantity)
		if err != nil {
			httpapi.Error(c, req, err)
			return
		}
		c.IndentedJSON(http.StatusOK, gin.H{
			"order_id":   c.Param("order_id"),
			"total_cost": value.TotalCost,
			"log_id":     req.Correlation,
		})
	})

	r.POST("/checkout/:order_id", func(c *gin.Context) {
		req := httpapi.Request(c)
		// A client disconnect must not abort the saga; it runs to
		// completion on a context that survives the request.
		ctx := context.WithoutCancel(c.Request.Context())
		value, err := svc.Checkout(ctx, req, c.Param("order_id"))
		if err != nil {
			httpapi.Error(c, req, err)
			return
		}
		c.IndentedJSON(http.StatusOK, gin.H{
			"order_id":   c.Param("order_id"),
			"paid":       value.Paid,
			"total_cost": value.TotalCost,
			"log_id":     req.Correlation,
		})
	})
}
