package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facematch/internal/auth"
	"github.com/your-org/facematch/internal/storage"
	"github.com/your-org/facematch/pkg/dto"
)

type FeedHandler struct {
	db *storage.PostgresStore
}

func NewFeedHandler(db *storage.PostgresStore) *FeedHandler {
	return &FeedHandler{db: db}
}

// MyPhotos returns the photos attributed to the request principal,
// newest attribution first, across every event the attendee registered
// for. Unmatched and other attendees' photos never appear.
func (h *FeedHandler) MyPhotos(c *gin.Context) {
	principal, _ := auth.FromContext(c)

	photos, err := h.db.PhotosForAttendee(c.Request.Context(), principal.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.AttributedPhotoResponse, 0, len(photos))
	for _, p := range photos {
		resp = append(resp, dto.AttributedPhotoResponse{
			PhotoID:    p.PhotoID,
			EventID:    p.EventID,
			Score:      p.Score,
			ImageURL:   "/v1/photos/" + p.PhotoID.String() + "/image",
			UploadedAt: p.UploadedAt.Format("2006-01-02T15:04:05Z"),
			DecidedAt:  p.DecidedAt.Format("2006-01-02T15:04:05Z"),
		})
	}

	c.JSON(http.StatusOK, dto.FeedResponse{Photos: resp, Total: len(resp)})
}
