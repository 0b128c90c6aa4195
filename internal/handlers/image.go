package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"dissent/internal/models"
	"dissent/internal/services"
	"dissent/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ImageHandler serves image blobs through the two-tier cache: local disk
// replica first, persistent store on a miss. Writes go to the store and then
// broadcast an invalidation so every process drops its replica.
type ImageHandler struct {
	db    *gorm.DB
	cache *services.ImageCache
	log   *logrus.Logger
}

func NewImageHandler(conn *gorm.DB, cache *services.ImageCache, log *logrus.Logger) *ImageHandler {
	return &ImageHandler{db: conn, cache: cache, log: log}
}

// Get handles GET /image/:imageId.
func (h *ImageHandler) Get(c *gin.Context) {
	imageID := c.Param("imageId")
	// Clients with a broken upload flow request this literal id
	if imageID == "undefined" {
		AbortError(c, services.NewError(http.StatusInternalServerError, "undefined is not a valid image id"))
		return
	}

	if image, ok := h.cache.Load(imageID); ok {
		h.serve(c, image)
		return
	}

	var image models.Image
	err := h.db.Where("iid = ?", imageID).First(&image).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			AbortError(c, services.NotFound("The specified image does not exist."))
			return
		}
		AbortError(c, err)
		return
	}

	if err := h.cache.Save(&image); err != nil {
		h.log.WithFields(logrus.Fields{
			"imageId": imageID,
			"error":   err,
		}).Error("image cache write failed")
	}
	h.serve(c, &image)
}

func (h *ImageHandler) serve(c *gin.Context, image *models.Image) {
	c.Header("Content-Length", strconv.FormatInt(image.Size, 10))
	c.Data(http.StatusOK, image.Mimetype, image.Data)
}

// Create handles POST /image: multipart upload into the persistent store.
func (h *ImageHandler) Create(c *gin.Context) {
	header, err := c.FormFile("image")
	if err != nil {
		AbortError(c, services.NewError(http.StatusNotAcceptable, "an image file is required"))
		return
	}

	file, err := header.Open()
	if err != nil {
		AbortError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		AbortError(c, fmt.Errorf("read upload: %w", err))
		return
	}

	image := models.Image{
		Iid:      utils.RandStringBytesMaskImpr(8),
		Filename: header.Filename,
		Mimetype: header.Header.Get("Content-Type"),
		Size:     int64(len(data)),
		Data:     data,
	}
	if err := h.db.Create(&image).Error; err != nil {
		AbortError(c, fmt.Errorf("store image: %w", err))
		return
	}

	if err := h.cache.Publish(c.Request.Context(), services.ImageEventCreate, image.Iid); err != nil {
		h.log.WithFields(logrus.Fields{
			"imageId": image.Iid,
			"error":   err,
		}).Error("image event publish failed")
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "image": image})
}

// Update handles POST /image/:imageId: replaces the stored blob, then
// broadcasts the invalidation so stale replicas disappear everywhere.
func (h *ImageHandler) Update(c *gin.Context) {
	imageID := c.Param("imageId")

	var image models.Image
	err := h.db.Select(models.ImageMetaColumns).Where("iid = ?", imageID).First(&image).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			AbortError(c, services.NotFound("The specified image does not exist."))
			return
		}
		AbortError(c, err)
		return
	}

	header, err := c.FormFile("image")
	if err != nil {
		AbortError(c, services.NewError(http.StatusNotAcceptable, "an image file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		AbortError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		AbortError(c, fmt.Errorf("read upload: %w", err))
		return
	}

	updates := map[string]interface{}{
		"data":     data,
		"size":     int64(len(data)),
		"mimetype": header.Header.Get("Content-Type"),
		"filename": header.Filename,
	}
	if err := h.db.Model(&models.Image{}).Where("iid = ?", imageID).UpdateColumns(updates).Error; err != nil {
		AbortError(c, fmt.Errorf("update image: %w", err))
		return
	}

	if err := h.cache.Publish(c.Request.Context(), services.ImageEventUpdate, imageID); err != nil {
		h.log.WithFields(logrus.Fields{
			"imageId": imageID,
			"error":   err,
		}).Error("image event publish failed")
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CacheEmpty handles GET /image/cache-empty: a manual sweep of this process's
// cache directory.
func (h *ImageHandler) CacheEmpty(c *gin.Context) {
	if err := h.cache.ExpireFiles(); err != nil {
		AbortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
