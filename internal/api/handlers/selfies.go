package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facematch/internal/auth"
	"github.com/your-org/facematch/internal/models"
	"github.com/your-org/facematch/internal/observability"
	"github.com/your-org/facematch/internal/queue"
	"github.com/your-org/facematch/internal/storage"
	"github.com/your-org/facematch/pkg/dto"
)

type SelfieHandler struct {
	db       *storage.PostgresStore
	minio    *storage.MinIOStore
	producer *queue.Producer
}

func NewSelfieHandler(db *storage.PostgresStore, minio *storage.MinIOStore, producer *queue.Producer) *SelfieHandler {
	return &SelfieHandler{db: db, minio: minio, producer: producer}
}

// Upload accepts the attendee's selfie and enqueues registration. One
// registration per attendee per event; a second upload is rejected.
func (h *SelfieHandler) Upload(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	principal, _ := auth.FromContext(c)

	event, err := h.db.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if event == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	if event.Status == models.EventStatusClosed {
		c.JSON(http.StatusConflict, gin.H{"error": "event is closed"})
		return
	}

	existing, err := h.db.GetAttendee(c.Request.Context(), eventID, principal.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "already registered for this event"})
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	selfie := &models.Selfie{
		ID:            uuid.New(),
		EventID:       eventID,
		AttendeeEmail: principal.Email,
	}
	selfie.ObjectKey = storage.SelfieKey(eventID, selfie.ID)

	if err := h.minio.PutObject(c.Request.Context(), selfie.ObjectKey, imageData, header.Header.Get("Content-Type")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store image failed"})
		return
	}
	if err := h.db.CreateSelfie(c.Request.Context(), selfie); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	task := models.SelfieTask{
		SelfieID:      selfie.ID,
		EventID:       eventID,
		AttendeeEmail: principal.Email,
		ObjectKey:     selfie.ObjectKey,
	}
	if err := h.producer.PublishSelfieTask(c.Request.Context(), task); err != nil {
		c.JSON(http.StatusAccepted, selfieResponse(selfie))
		return
	}
	observability.SelfiesIngested.WithLabelValues(string(models.SelfieStateSubmitted)).Inc()

	c.JSON(http.StatusAccepted, selfieResponse(selfie))
}

func selfieResponse(sf *models.Selfie) dto.SelfieResponse {
	return dto.SelfieResponse{
		ID:            sf.ID,
		EventID:       sf.EventID,
		AttendeeEmail: sf.AttendeeEmail,
		State:         string(sf.State),
		Error:         sf.ErrorMessage,
		SubmittedAt:   sf.SubmittedAt.Format("2006-01-02T15:04:05Z"),
	}
}
