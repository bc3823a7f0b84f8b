// Package httpapi holds the gin glue shared by the service HTTP surfaces:
// request-context extraction, error rendering, and the log/recovery endpoints
// every service exposes.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sharedcode/storefront"
	"github.com/sharedcode/storefront/wal"
)

// Request builds the correlation context for the incoming call. The caller
// propagates its correlation id as the log_id query parameter; when absent a
// fresh one is allocated.
func Request(c *gin.Context) wal.Request {
	return wal.NewRequest(c.Query("log_id"), endpointURL(c), c.Request.Referer())
}

func endpointURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.Path
}

// Error renders err with the status its error code maps to.
func Error(c *gin.Context, req wal.Request, err error) {
	c.IndentedJSON(storefront.HTTPStatus(err), gin.H{
		"message": err.Error(),
		"log_id":  req.Correlation,
	})
}

// IntParam parses a non-negative integer path parameter.
func IntParam(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil || n < 0 {
		c.IndentedJSON(http.StatusBadRequest, gin.H{"message": "invalid " + name})
		return 0, false
	}
	return n, true
}

// RegisterLogRoutes mounts the log surface every service shares: the raw log
// dump, the count, the sorted-by-correlation view, and the on-demand recovery
// sweep.
func RegisterLogRoutes(r gin.IRouter, l *wal.Log, sw *wal.Sweeper) {
	r.GET("/logs", func(c *gin.Context) {
		entries, err := l.All(c.Request.Context())
		if err != nil {
			c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": "failed to retrieve logs from the database"})
			return
		}
		c.IndentedJSON(http.StatusOK, gin.H{"logs": entries})
	})

	r.GET("/find_log/:log_id", func(c *gin.Context) {
		key := c.Param("log_id")
		entry, found, err := l.Find(c.Request.Context(), key)
		if err != nil {
			c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": "failed to retrieve logs from the database"})
			return
		}
		if !found {
			c.IndentedJSON(http.StatusBadRequest, gin.H{"message": "log " + key + " not found"})
			return
		}
		c.IndentedJSON(http.StatusOK, entry)
	})

	r.GET("/log_count", func(c *gin.Context) {
		n, err := l.Count(c.Request.Context())
		if err != nil {
			c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": "failed to count logs"})
			return
		}
		c.IndentedJSON(http.StatusOK, n)
	})

	r.GET("/sorted_logs/:min_diff", func(c *gin.Context) {
		minutes, ok := IntParam(c, "min_diff")
		if !ok {
			return
		}
		groups, err := l.GroupsWithin(c.Request.Context(), time.Duration(minutes)*time.Minute)
		if err != nil {
			c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": "failed to retrieve logs from the database"})
			return
		}
		sorted := make(map[string][]wal.Entry, len(groups))
		for _, g := range groups {
			sorted[g.Correlation] = g.Entries
		}
		c.IndentedJSON(http.StatusOK, sorted)
	})

	r.GET("/fault_tolerance/:min_diff", func(c *gin.Context) {
		minutes, ok := IntParam(c, "min_diff")
		if !ok {
			return
		}
		swept, err := sw.Sweep(c.Request.Context(), time.Duration(minutes)*time.Minute)
		if err != nil {
			c.IndentedJSON(http.StatusInternalServerError, gin.H{"message": err.Error(), "swept": swept})
			return
		}
		c.IndentedJSON(http.StatusOK, gin.H{"swept": swept})
	})
}
