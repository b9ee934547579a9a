package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// imagesField is the multipart field that carries the uploaded files.
const imagesField = "images"

func (h *Handler) UploadImages(c *gin.Context) {
	if !h.requireProductStore(c, c.Param("id")) {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Expected a multipart form", "kind": "validation"})
		return
	}

	saved, err := h.Images.Upload(c.Request.Context(), c.Param("id"), form.File[imagesField])
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (h *Handler) ListImages(c *gin.Context) {
	if !h.requireProductStore(c, c.Param("id")) {
		return
	}
	list, err := h.Images.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) DeleteImage(c *gin.Context) {
	if !h.requireProductStore(c, c.Param("id")) {
		return
	}
	if err := h.Images.Delete(c.Request.Context(), c.Param("id"), c.Param("filename")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Image deleted"})
}
