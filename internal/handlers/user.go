package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"dissent/internal/middleware"
	"dissent/internal/models"
	"dissent/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const feedSize = 20

// UserHandler serves the cached per-user feed and the worker-maintained
// top-news payload.
type UserHandler struct {
	db    *gorm.DB
	feeds *services.FeedCache
	log   *logrus.Logger
}

func NewUserHandler(conn *gorm.DB, feeds *services.FeedCache, log *logrus.Logger) *UserHandler {
	return &UserHandler{db: conn, feeds: feeds, log: log}
}

// Feed handles GET /user/feed: the caller's recent comments, cached as a
// rendered JSON blob so repeated loads skip the database entirely.
func (h *UserHandler) Feed(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		AbortError(c, services.Forbidden("You must be connected before you can see your feed."))
		return
	}

	ctx := c.Request.Context()
	cached, hit, err := h.feeds.GetUserFeed(ctx, user.Username)
	if err != nil {
		// Cache trouble never blocks the feed; fall back to the database
		h.log.WithFields(logrus.Fields{
			"user":  user.Username,
			"error": err,
		}).Error("user feed cache read failed")
	}
	if hit {
		c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
		return
	}

	var comments []models.Comment
	err = h.db.
		Preload("Domain").
		Preload("Url", urlMetaSelect).
		Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Limit(feedSize).
		Find(&comments).Error
	if err != nil {
		AbortError(c, err)
		return
	}

	body, err := json.Marshal(gin.H{
		"success":  true,
		"comments": renderComments(comments),
	})
	if err != nil {
		AbortError(c, fmt.Errorf("render feed: %w", err))
		return
	}
	if err := h.feeds.SetUserFeed(ctx, user.Username, body); err != nil {
		// The feed is already built; losing the cache write only costs the
		// next request a rebuild
		h.log.WithFields(logrus.Fields{
			"user":  user.Username,
			"error": err,
		}).Error("user feed cache write failed")
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// TopNews handles GET /top-news. The payload is produced by the worker; the
// front end only reads it.
func (h *UserHandler) TopNews(c *gin.Context) {
	content, hit, err := h.feeds.GetTopNews(c.Request.Context())
	if err != nil {
		AbortError(c, err)
		return
	}
	if !hit {
		AbortError(c, services.NotFound("No top news available yet."))
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", content)
}
