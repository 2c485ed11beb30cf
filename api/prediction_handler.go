package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/takeshijuan/ideogram-mcp-server-sub001/id"
	"github.com/takeshijuan/ideogram-mcp-server-sub001/prediction"
)

// CreatePredictionRequest is the body of POST /v1/predictions.
type CreatePredictionRequest struct {
	// Kind names the operation family ("generate", "edit", ...). The store
	// does not interpret it; the upstream submitter does.
	Kind string `json:"kind" binding:"required"`
	// Input is forwarded verbatim to the upstream call.
	Input json.RawMessage `json:"input"`
}

func (a *API) createPrediction(c *gin.Context) {
	var req CreatePredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pid, err := a.store.Create(req.Kind, req.Input)
	if err != nil {
		if errors.Is(err, prediction.ErrStoreClosed) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store is shutting down"})
			return
		}
		a.logger.Error("create prediction", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"id":     pid.String(),
		"status": prediction.StatusQueued,
	})
}

func (a *API) getPrediction(c *gin.Context) {
	pid, err := id.ParsePredictionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid prediction id"})
		return
	}

	rec, err := a.store.Get(pid)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "prediction not found"})
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (a *API) cancelPrediction(c *gin.Context) {
	pid, err := id.ParsePredictionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid prediction id"})
		return
	}

	result, err := a.store.Cancel(pid)
	if err != nil {
		if errors.Is(err, prediction.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "prediction not found"})
			return
		}
		a.logger.Error("cancel prediction", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	// A refused cancel is an expected branch, not an error; 409 tells the
	// caller which status blocked it.
	if !result.Cancelled {
		c.JSON(http.StatusConflict, result)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (a *API) listPredictions(c *gin.Context) {
	status := prediction.Status(c.Query("status"))
	switch status {
	case "", prediction.StatusQueued, prediction.StatusProcessing,
		prediction.StatusCompleted, prediction.StatusFailed, prediction.StatusCancelled:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status filter"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"predictions": a.store.List(status)})
}

func (a *API) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
