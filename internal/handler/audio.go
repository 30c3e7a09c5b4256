package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/cobardes/radia-fm-sub000/internal/service"
	"github.com/cobardes/radia-fm-sub000/internal/store"
	"github.com/cobardes/radia-fm-sub000/pkg/response"
)

type AudioHandler struct {
	service *service.AudioService
}

func NewAudioHandler(svc *service.AudioService) *AudioHandler {
	return &AudioHandler{service: svc}
}

// Song handles GET /audio/songs/:songId
//
// Resolves the song to a direct stream URL and redirects. The redirect is
// temporary: the underlying URL expires upstream and the next resolution
// may land on a different CDN host.
func (h *AudioHandler) Song(c *fiber.Ctx) error {
	songID := c.Params("songId")
	if songID == "" {
		return response.ValidationError(c, "Song ID is required", nil)
	}

	url, err := h.service.SongStreamURL(c.Context(), songID)
	if err != nil {
		return response.AudioError(c, "Failed to resolve song audio")
	}

	return c.Redirect(url, fiber.StatusFound)
}

// Segment handles GET /audio/segments/:segmentId
//
// Redirects to the stored object when storage is configured, otherwise
// streams the synthesized speech inline.
func (h *AudioHandler) Segment(c *fiber.Ctx) error {
	segmentID := c.Params("segmentId")
	if segmentID == "" {
		return response.ValidationError(c, "Segment ID is required", nil)
	}

	url, stream, err := h.service.SegmentAudio(c.Context(), segmentID)
	if err != nil {
		if errors.Is(err, store.ErrSegmentNotFound) {
			return response.NotFound(c, "Segment not found")
		}
		return response.AudioError(c, "Failed to resolve segment audio")
	}

	if url != "" {
		return c.Redirect(url, fiber.StatusFound)
	}

	c.Set("Content-Type", "audio/mpeg")
	c.Set("Cache-Control", "no-store")
	return c.SendStream(stream)
}
