package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// HealthHandler reports database and broker reachability. The broker check
// is a publish to a probe group nobody subscribes to; for the in-memory hub
// that is free, for redis it exercises the connection.
type HealthHandler struct {
	db          *sqlx.DB
	brokerCheck func() error
}

func NewHealthHandler(db *sqlx.DB, brokerCheck func() error) *HealthHandler {
	return &HealthHandler{db: db, brokerCheck: brokerCheck}
}

func (h *HealthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/health", h.Health)
}

func (h *HealthHandler) Health(c *gin.Context) {
	checks := gin.H{
		"database": "ok",
		"broker":   "ok",
	}
	status := http.StatusOK

	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	if h.brokerCheck != nil {
		if err := h.brokerCheck(); err != nil {
			checks["broker"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	if status == http.StatusOK {
		c.JSON(status, NewSuccessResponse(checks))
		return
	}
	c.JSON(status, &Response{Status: "error", Data: checks})
}
