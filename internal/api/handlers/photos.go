package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facematch/internal/models"
	"github.com/your-org/facematch/internal/observability"
	"github.com/your-org/facematch/internal/queue"
	"github.com/your-org/facematch/internal/storage"
	"github.com/your-org/facematch/pkg/dto"
)

type PhotoHandler struct {
	db       *storage.PostgresStore
	minio    *storage.MinIOStore
	producer *queue.Producer
}

func NewPhotoHandler(db *storage.PostgresStore, minio *storage.MinIOStore, producer *queue.Producer) *PhotoHandler {
	return &PhotoHandler{db: db, minio: minio, producer: producer}
}

// Upload accepts a multipart image, stores the blob and enqueues
// extraction. Returns the photo id immediately; processing is async.
func (h *PhotoHandler) Upload(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

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

	photo := &models.Photo{
		EventID:     eventID,
		ContentType: header.Header.Get("Content-Type"),
	}
	photo.ID = uuid.New()
	photo.ObjectKey = storage.PhotoKey(eventID, photo.ID)

	if err := h.minio.PutObject(c.Request.Context(), photo.ObjectKey, imageData, photo.ContentType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store image failed"})
		return
	}
	if err := h.db.CreatePhoto(c.Request.Context(), photo); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	task := models.PhotoTask{PhotoID: photo.ID, EventID: eventID, ObjectKey: photo.ObjectKey}
	if err := h.producer.PublishPhotoTask(c.Request.Context(), task); err != nil {
		// The sweeper requeues photos stuck in uploaded, so the row is
		// still accepted.
		c.JSON(http.StatusAccepted, photoResponse(photo))
		return
	}
	observability.PhotosIngested.WithLabelValues(string(models.PhotoStateUploaded)).Inc()

	c.JSON(http.StatusAccepted, photoResponse(photo))
}

// ListForEvent is the organizer view: every photo of the event in every
// state, no attribution filtering.
func (h *PhotoHandler) ListForEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	photos, err := h.db.ListEventPhotos(c.Request.Context(), eventID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.PhotoResponse, 0, len(photos))
	for i := range photos {
		resp = append(resp, photoResponse(&photos[i]))
	}

	c.JSON(http.StatusOK, dto.PhotoListResponse{Photos: resp, Total: len(resp)})
}

func (h *PhotoHandler) Get(c *gin.Context) {
	photo, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, photoResponse(photo))
}

// Image proxies the raw photo bytes from the blob store.
func (h *PhotoHandler) Image(c *gin.Context) {
	photo, ok := h.lookup(c)
	if !ok {
		return
	}

	data, err := h.minio.GetObject(c.Request.Context(), photo.ObjectKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load image failed"})
		return
	}

	contentType := photo.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, data)
}

// Attendees is the moderation inverse lookup: who has this photo been
// attributed to.
func (h *PhotoHandler) Attendees(c *gin.Context) {
	photo, ok := h.lookup(c)
	if !ok {
		return
	}

	attendees, err := h.db.AttendeesForPhoto(c.Request.Context(), photo.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.PhotoAttendeeResponse, 0, len(attendees))
	for _, a := range attendees {
		resp = append(resp, dto.PhotoAttendeeResponse{
			AttendeeID: a.AttendeeID,
			Email:      a.Email,
			Score:      a.Score,
			DecidedAt:  a.DecidedAt.Format("2006-01-02T15:04:05Z"),
		})
	}

	c.JSON(http.StatusOK, gin.H{"attendees": resp, "total": len(resp)})
}

// Delete removes a photo, its blob and, via cascades, its descriptors
// and attributions. Moderation path for organizers.
func (h *PhotoHandler) Delete(c *gin.Context) {
	photo, ok := h.lookup(c)
	if !ok {
		return
	}

	if err := h.minio.DeleteObject(c.Request.Context(), photo.ObjectKey); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete image failed"})
		return
	}
	if err := h.db.DeletePhoto(c.Request.Context(), photo.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *PhotoHandler) lookup(c *gin.Context) (*models.Photo, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo id"})
		return nil, false
	}

	photo, err := h.db.GetPhoto(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if photo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return nil, false
	}
	return photo, true
}

func photoResponse(p *models.Photo) dto.PhotoResponse {
	return dto.PhotoResponse{
		ID:          p.ID,
		EventID:     p.EventID,
		State:       string(p.State),
		ContentType: p.ContentType,
		Error:       p.ErrorMessage,
		UploadedAt:  p.UploadedAt.Format("2006-01-02T15:04:05Z"),
	}
}
