package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dissent/internal/middleware"
	"dissent/internal/models"
	"dissent/internal/services"
	"dissent/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultCommentsPerPage = 20

// CommentHandler owns the comment HTTP surface: creation with its rollup
// bookkeeping, and the browse endpoints.
type CommentHandler struct {
	db    *gorm.DB
	pages *services.PageService
	stats *services.StatsService
	jobs  *services.JobQueue
	cache *utils.Cache
	log   *logrus.Logger
}

func NewCommentHandler(conn *gorm.DB, pages *services.PageService, stats *services.StatsService, jobs *services.JobQueue, cache *utils.Cache, log *logrus.Logger) *CommentHandler {
	return &CommentHandler{
		db:    conn,
		pages: pages,
		stats: stats,
		jobs:  jobs,
		cache: cache,
		log:   log,
	}
}

type createCommentRequest struct {
	URL        string      `json:"url"`
	Parent     string      `json:"parent"`
	Body       string      `json:"body"`
	Nsfw       interface{} `json:"nsfw"`
	ShareToGab interface{} `json:"shareToGab"`
}

// commentView decorates a comment with its rendered body for read responses.
type commentView struct {
	models.Comment
	BodyHTML string `json:"bodyHtml"`
}

func renderComments(comments []models.Comment) []commentView {
	views := make([]commentView, len(comments))
	for i, com := range comments {
		views[i] = commentView{Comment: com, BodyHTML: utils.RenderMarkdown(com.Body)}
	}
	return views
}

// Create handles POST /comment. The domain and url records are upserted by
// natural key, the comment is created pending, and a shared reply fans out
// the three rollup increments before the worker job is published.
func (h *CommentHandler) Create(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		AbortError(c, services.Forbidden("You must be connected before you can post comments."))
		return
	}

	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortError(c, services.BadRequest("invalid comment request"))
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		AbortError(c, services.BadRequest("comment body must not be empty"))
		return
	}

	analyzed, err := h.pages.ParseURL(req.URL)
	if err != nil {
		AbortError(c, err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"user":   user.ID,
		"domain": analyzed.DomainName,
	}).Info("comment")

	domain, err := h.stats.EnsureDomain(analyzed.DomainName)
	if err != nil {
		AbortError(c, err)
		return
	}

	title, content, err := h.pages.ResolvePage(c.Request.Context(), analyzed.SourceURL)
	if err != nil {
		AbortError(c, err)
		return
	}

	url, err := h.stats.EnsureURL(domain, analyzed.Pathname, analyzed.SourceURL, title, content)
	if err != nil {
		AbortError(c, err)
		return
	}

	var parent *models.Comment
	if req.Parent != "" {
		var found models.Comment
		if err := h.db.Where("cid = ?", req.Parent).First(&found).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				AbortError(c, services.NotFound("The parent comment does not exist."))
				return
			}
			AbortError(c, err)
			return
		}
		parent = &found
	}

	comment := models.Comment{
		Cid:      utils.RandStringBytesMaskImpr(8),
		UserID:   user.ID,
		DomainID: domain.ID,
		UrlID:    url.ID,
		Body:     req.Body,
		Nsfw:     utils.IsCheckboxChecked(req.Nsfw),
		Status:   models.CommentStatusPending,
	}
	if parent != nil {
		comment.ParentID = &parent.ID
	}
	if err := h.db.Create(&comment).Error; err != nil {
		AbortError(c, fmt.Errorf("create comment: %w", err))
		return
	}

	// Sharing a reply bumps the parent/url/domain rollups; the three
	// increments are best effort once the comment itself committed.
	if utils.IsCheckboxChecked(req.ShareToGab) && parent != nil {
		h.log.WithField("parent", parent.Cid).Debug("inc parent reply count")
		h.stats.ApplyShareIncrements(parent.ID, url.ID, domain.ID)
	}

	if err := h.jobs.Publish(c.Request.Context(), services.WorkerJob{
		Command: services.JobShareComment,
		User:    user.ID,
		Comment: comment.Cid,
	}); err != nil {
		AbortError(c, err)
		return
	}

	h.cache.Delete(commentIndexCacheKey(1, defaultCommentsPerPage))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"domain":  domain,
		"url":     url,
		"comment": comment,
	})
}

func commentIndexCacheKey(p, cpp int) string {
	return fmt.Sprintf("comment:index:p:%d:cpp:%d", p, cpp)
}

func urlMetaSelect(tx *gorm.DB) *gorm.DB {
	return tx.Select(models.UrlMetaColumns)
}

// List handles GET /comment: root comments, newest first. The first pages go
// through the per-process TTL cache.
func (h *CommentHandler) List(c *gin.Context) {
	pagination := GetPagination(c, defaultCommentsPerPage)

	cacheKey := commentIndexCacheKey(pagination.P, pagination.Cpp)
	if cached := h.cache.Get(cacheKey); cached != nil {
		if body, ok := cached.(gin.H); ok {
			c.JSON(http.StatusOK, body)
			return
		}
	}

	var comments []models.Comment
	err := h.db.
		Preload("User").
		Preload("Domain").
		Preload("Url", urlMetaSelect).
		Where("parent_id IS NULL").
		Order("created_at DESC").
		Offset(pagination.Skip).
		Limit(pagination.Cpp).
		Find(&comments).Error
	if err != nil {
		AbortError(c, err)
		return
	}

	body := gin.H{
		"success":    true,
		"comments":   renderComments(comments),
		"pagination": pagination,
	}
	h.cache.Set(cacheKey, body, time.Minute)
	c.JSON(http.StatusOK, body)
}

// Get handles GET /comment/:commentId.
func (h *CommentHandler) Get(c *gin.Context) {
	var comment models.Comment
	err := h.db.
		Preload("User").
		Preload("Domain").
		Preload("Url", urlMetaSelect).
		Where("cid = ?", c.Param("commentId")).
		First(&comment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			AbortError(c, services.NotFound("The specified comment does not exist."))
			return
		}
		AbortError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"comment": commentView{Comment: comment, BodyHTML: utils.RenderMarkdown(comment.Body)},
	})
}

// Replies handles GET /comment/:commentId/replies: a comment's direct
// replies, oldest first.
func (h *CommentHandler) Replies(c *gin.Context) {
	pagination := GetPagination(c, defaultCommentsPerPage)

	var parent models.Comment
	if err := h.db.Where("cid = ?", c.Param("commentId")).First(&parent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			AbortError(c, services.NotFound("The specified comment does not exist."))
			return
		}
		AbortError(c, err)
		return
	}

	var replies []models.Comment
	err := h.db.
		Preload("User").
		Preload("Domain").
		Preload("Url", urlMetaSelect).
		Where("parent_id = ?", parent.ID).
		Order("created_at ASC").
		Offset(pagination.Skip).
		Limit(pagination.Cpp).
		Find(&replies).Error
	if err != nil {
		AbortError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"replies":    renderComments(replies),
		"pagination": pagination,
	})
}
