package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facematch/internal/auth"
	"github.com/your-org/facematch/internal/models"
	"github.com/your-org/facematch/internal/storage"
	"github.com/your-org/facematch/pkg/dto"
)

type EventHandler struct {
	db    *storage.PostgresStore
	minio *storage.MinIOStore
}

func NewEventHandler(db *storage.PostgresStore, minio *storage.MinIOStore) *EventHandler {
	return &EventHandler{db: db, minio: minio}
}

func (h *EventHandler) Create(c *gin.Context) {
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	principal, _ := auth.FromContext(c)
	event, err := h.db.CreateEvent(c.Request.Context(), req.Name, principal.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, eventResponse(event))
}

func (h *EventHandler) List(c *gin.Context) {
	events, err := h.db.ListEvents(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.EventResponse, 0, len(events))
	for i := range events {
		resp = append(resp, eventResponse(&events[i]))
	}

	c.JSON(http.StatusOK, dto.EventListResponse{Events: resp, Total: len(resp)})
}

func (h *EventHandler) Get(c *gin.Context) {
	event, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, eventResponse(event))
}

// Close stops further photo and selfie uploads for the event. Already
// enqueued work still completes.
func (h *EventHandler) Close(c *gin.Context) {
	event, ok := h.lookup(c)
	if !ok {
		return
	}

	if err := h.db.SetEventStatus(c.Request.Context(), event.ID, models.EventStatusClosed); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	event.Status = models.EventStatusClosed
	c.JSON(http.StatusOK, eventResponse(event))
}

// Delete removes the event with all photos, selfies, descriptors and
// attributions, including the stored blobs.
func (h *EventHandler) Delete(c *gin.Context) {
	event, ok := h.lookup(c)
	if !ok {
		return
	}

	if err := h.minio.DeletePrefix(c.Request.Context(), storage.EventPrefix(event.ID)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete event blobs: " + err.Error()})
		return
	}
	if err := h.db.DeleteEvent(c.Request.Context(), event.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *EventHandler) lookup(c *gin.Context) (*models.Event, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return nil, false
	}

	event, err := h.db.GetEvent(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if event == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return nil, false
	}
	return event, true
}

func eventResponse(e *models.Event) dto.EventResponse {
	return dto.EventResponse{
		ID:             e.ID,
		Name:           e.Name,
		OrganizerEmail: e.OrganizerEmail,
		Status:         string(e.Status),
		CreatedAt:      e.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}
