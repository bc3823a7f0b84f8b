package ids

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sharedcode/storefront"
)

// RegisterRoutes mounts the ID service endpoints on r.
func RegisterRoutes(r gin.IRouter, m *Minter) {
	r.GET("/create", func(c *gin.Context) {
		key, err := m.Mint(c.Request.Context())
		if err != nil {
			c.IndentedJSON(storefront.HTTPStatus(err), gin.H{"message": "minting id failed"})
			return
		}
		c.String(http.StatusOK, key)
	})
}
