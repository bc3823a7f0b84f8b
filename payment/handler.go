package payment

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sharedcode/storefront/internal/httpapi"
	"github.com/sharedcode/storefront/wal"
)

// RegisterRoutes mounts the payment endpoints on r (expected to be the
// /payment route group).
func RegisterRoutes(r gin.IRouter, svc *Service, sw *wal.Sweeper) {
	httpapi.RegisterLogRoutes(r, svc.Log(), sw)

	r.POST("/create_user", func(c *gin.Context) {
		req := httpapi.Request(c)
		userID, err := svc.CreateUser(c.Request.Context(), req)
		if err != nil {
			httpapi.Error(c, req, err)
			return
		}
		c.IndentedJSON(http.StatusOK, gin.H{"user_id": userID, "log_id": req.Correlation})
	})

	r.GET("/find_user/:user_id", func(c *gin.Context) {
		req := httpapi.Request(c)
		userID := c.Param("user_id")
		value, err := svc.FindUser(c.Request.Context(), req, userID)
		if err != nil {
			httpapi.Error(c, req, err)
			return
		}
		c.IndentedJSON(http.StatusOK, gin.H{
			"user_id": userID,
			"credit":  value.Credit,
			"log_id":  req.Correlation,
		})
	})

	r.POST("/add_funds/:user_id/:amount", func(c *gin.Context) {
		adjust(c, svc.AddFunds)
	})

	r.POST("/pay/:user_id/:amount", func(c *gin.Context) {
		adjust(c, svc.Pay)
	})
}

func adjust(c *gin.Context, op func(ctx context.Context, req wal.Request, userID string, amount int) (UserValue, error)) {
	req := httpapi.Request(c)
	amount, ok := httpapi.IntParam(c, "amount")
	if !ok {
		return
	}
	userID := c.Param("user_id")
	value, err := op(c.Request.Context(), req, userID, amount)
	if err != nil {
		httpapi.Error(c, req, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{
		"user_id": userID,
		"credit":  value.Credit,
		"log_id":  req.Correlation,
	})
}
