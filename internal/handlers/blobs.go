package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/blob"
)

// maxBlobSize caps attachment uploads at 8 MiB.
const maxBlobSize = 8 << 20

// BlobHandler exposes the content-addressed attachment store. Blobs are
// opaque to the server; clients encrypt before uploading.
type BlobHandler struct {
	store blob.Store
}

// NewBlobHandler constructs a BlobHandler.
func NewBlobHandler(store blob.Store) *BlobHandler {
	return &BlobHandler{store: store}
}

// Upload stores the raw request body and returns its content hash.
func (h *BlobHandler) Upload(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBlobSize+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read body"})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty body"})
		return
	}
	if len(data) > maxBlobSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "blob too large"})
		return
	}

	hash, err := h.store.Put(c.Request.Context(), data)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store blob"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"hash": hash})
}

// Download streams the blob for a hash.
func (h *BlobHandler) Download(c *gin.Context) {
	data, err := h.store.Get(c.Request.Context(), c.Param("hash"))
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Blob not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load blob"})
		return
	}

	c.Data(http.StatusOK, "application/octet-stream", data)
}
