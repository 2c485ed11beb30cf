// Package api exposes the prediction store over HTTP. Handlers are thin:
// they translate between HTTP and the store's contract and own no job
// semantics of their own.
package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/takeshijuan/ideogram-mcp-server-sub001/store"
)

// API wires the prediction store into HTTP handlers.
type API struct {
	store  *store.Store
	logger *slog.Logger
}

// New creates the HTTP layer over the given store.
func New(s *store.Store, logger *slog.Logger) *API {
	return &API{store: s, logger: logger}
}

// Register attaches all routes to the given router.
func (a *API) Register(r gin.IRouter) {
	r.GET("/healthz", a.health)

	v1 := r.Group("/v1")
	v1.POST("/predictions", a.createPrediction)
	v1.GET("/predictions", a.listPredictions)
	v1.GET("/predictions/:id", a.getPrediction)
	v1.DELETE("/predictions/:id", a.cancelPrediction)
}

// NewRouter builds a gin engine with the API routes attached.
func NewRouter(s *store.Store, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	New(s, logger).Register(r)
	return r
}
