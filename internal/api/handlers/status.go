package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facematch/internal/ingest"
	"github.com/your-org/facematch/internal/storage"
	"github.com/your-org/facematch/pkg/dto"
)

type StatusHandler struct {
	db      *storage.PostgresStore
	retrier *ingest.Retrier
}

func NewStatusHandler(db *storage.PostgresStore, retrier *ingest.Retrier) *StatusHandler {
	return &StatusHandler{db: db, retrier: retrier}
}

// Get reports the processing state of a photo or selfie by id.
func (h *StatusHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	photo, err := h.db.GetPhoto(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if photo != nil {
		c.JSON(http.StatusOK, dto.StatusResponse{
			ID:    photo.ID,
			Kind:  "photo",
			State: string(photo.State),
			Error: photo.ErrorMessage,
		})
		return
	}

	selfie, err := h.db.GetSelfie(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if selfie != nil {
		c.JSON(http.StatusOK, dto.StatusResponse{
			ID:    selfie.ID,
			Kind:  "selfie",
			State: string(selfie.State),
			Error: selfie.ErrorMessage,
		})
		return
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "no photo or selfie with that id"})
}

// Retry rewinds a failed photo or selfie and re-enqueues it.
func (h *StatusHandler) Retry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	err = h.retrier.Retry(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "requeued"})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no photo or selfie with that id"})
	case errors.Is(err, ingest.ErrNotRetriable):
		c.JSON(http.StatusConflict, gin.H{"error": "entity has not failed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
