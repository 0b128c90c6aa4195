package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"dissent/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// WorkerService is the background job consumer: it post-processes shared
// comments and keeps the top-news cache fresh. One worker process runs per
// deployment; front-end processes only publish.
type WorkerService struct {
	db      *gorm.DB
	redis   *redis.Client
	feeds   *FeedCache
	client  *http.Client
	channel string
	newsURL string
	log     *logrus.Logger

	updating atomic.Bool
}

func NewWorkerService(conn *gorm.DB, redisClient *redis.Client, feeds *FeedCache, channel, newsURL string, log *logrus.Logger) *WorkerService {
	return &WorkerService{
		db:      conn,
		redis:   redisClient,
		feeds:   feeds,
		client:  &http.Client{Timeout: 30 * time.Second},
		channel: channel,
		newsURL: newsURL,
		log:     log,
	}
}

// Run consumes worker jobs from the shared channel until the context is
// canceled.
func (w *WorkerService) Run(ctx context.Context) {
	pubsub := w.redis.Subscribe(ctx, w.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := w.HandleJob(ctx, msg.Payload); err != nil {
				w.log.WithFields(logrus.Fields{
					"payload": msg.Payload,
					"error":   err,
				}).Error("worker job failed")
			}
		}
	}
}

// HandleJob dispatches one published job.
func (w *WorkerService) HandleJob(ctx context.Context, payload string) error {
	var job WorkerJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return fmt.Errorf("decode worker job: %w", err)
	}
	w.log.WithFields(logrus.Fields{
		"command": job.Command,
		"comment": job.Comment,
	}).Info("worker job")

	switch job.Command {
	case JobShareComment:
		return w.completeComment(job.User, job.Comment)
	default:
		return fmt.Errorf("unknown worker command %q", job.Command)
	}
}

// completeComment advances a pending comment to complete. A comment whose
// author no longer exists can never be shared, so it is marked error instead
// of being left pending forever; transient failures leave it pending for a
// redelivery.
func (w *WorkerService) completeComment(userID uint, cid string) error {
	var comment models.Comment
	if err := w.db.Where("cid = ?", cid).First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("shared comment %s does not exist", cid)
		}
		return fmt.Errorf("read comment %s: %w", cid, err)
	}
	if comment.Status != models.CommentStatusPending {
		w.log.WithFields(logrus.Fields{
			"comment": cid,
			"status":  comment.Status,
		}).Debug("comment already processed")
		return nil
	}

	var author models.User
	if err := w.db.First(&author, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if uerr := w.db.Model(&comment).
				UpdateColumn("status", models.CommentStatusError).Error; uerr != nil {
				return fmt.Errorf("mark comment %s errored: %w", cid, uerr)
			}
			return fmt.Errorf("share job for comment %s names missing user %d", cid, userID)
		}
		return fmt.Errorf("read user %d: %w", userID, err)
	}

	if err := w.db.Model(&comment).
		UpdateColumn("status", models.CommentStatusComplete).Error; err != nil {
		return fmt.Errorf("complete comment %s: %w", cid, err)
	}
	return nil
}

// RunNewsRefresh fetches the top-news payload on a fixed interval and stores
// it in the shared cache. Skipped entirely when no source URL is configured.
func (w *WorkerService) RunNewsRefresh(ctx context.Context, interval time.Duration) {
	if w.newsURL == "" {
		w.log.Info("no top news source configured, refresher disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.RefreshTopNews(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RefreshTopNews(ctx)
		}
	}
}

// RefreshTopNews fetches and stores the latest top-news content. Overlapping
// runs are skipped.
func (w *WorkerService) RefreshTopNews(ctx context.Context) {
	if !w.updating.CompareAndSwap(false, true) {
		w.log.Info("news update already in progress")
		return
	}
	defer w.updating.Store(false)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.newsURL, nil)
	if err != nil {
		w.log.WithField("error", err).Error("news update error")
		return
	}
	resp, err := w.client.Do(req)
	if err != nil {
		w.log.WithField("error", err).Error("news update error")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		w.log.WithField("status", resp.StatusCode).Error("news update error")
		return
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		w.log.WithField("error", err).Error("news update error")
		return
	}
	if err := w.feeds.SetTopNews(ctx, content); err != nil {
		w.log.WithField("error", err).Error("news update error")
		return
	}
	w.log.Info("latest top news content updated")
}
