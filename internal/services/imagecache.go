package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"dissent/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Image cache invalidation events broadcast on the image channel.
const (
	ImageEventCreate = "image-create"
	ImageEventUpdate = "image-update"
	ImageEventDelete = "image-delete"
)

// ImageEvent is the invalidation message exchanged between front-end
// processes after an image write commits to the store.
type ImageEvent struct {
	Event   string `json:"event"`
	ImageID string `json:"imageId"`
}

type imageMeta struct {
	ID       string    `json:"id"`
	Created  time.Time `json:"created"`
	Filename string    `json:"filename"`
	Mimetype string    `json:"mimetype"`
	Size     int64     `json:"size"`
}

// ImageCacheConfig configures one process's local image cache.
type ImageCacheConfig struct {
	Dir           string        // owned exclusively by this process
	Channel       string        // shared broadcast channel name
	MaxAge        time.Duration // entries at least this old are swept
	CleanInterval time.Duration
}

// ImageCache is the per-process on-disk replica of image blobs. The
// persistent store stays authoritative; every cached entry is either a
// faithful copy or absent. Coherence across front-end processes is
// invalidate-on-write over Redis pub/sub.
type ImageCache struct {
	cfg   ImageCacheConfig
	redis *redis.Client
	log   *logrus.Logger
}

func NewImageCache(cfg ImageCacheConfig, redisClient *redis.Client, log *logrus.Logger) *ImageCache {
	return &ImageCache{cfg: cfg, redis: redisClient, log: log}
}

func (c *ImageCache) dataFilename(imageID string) string {
	return filepath.Join(c.cfg.Dir, imageID)
}

func (c *ImageCache) metaFilename(imageID string) string {
	return filepath.Join(c.cfg.Dir, imageID+".json")
}

// Init creates the cache directory if absent and empties it otherwise. A
// restarted process cannot know what was written to the store while it was
// down, so leftover cache contents are never trusted.
func (c *ImageCache) Init() error {
	if err := os.MkdirAll(c.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create image cache dir: %w", err)
	}
	entries, err := os.ReadDir(c.cfg.Dir)
	if err != nil {
		return fmt.Errorf("read image cache dir: %w", err)
	}
	for _, entry := range entries {
		c.log.WithField("file", entry.Name()).Debug("removing image cache file")
		if err := os.Remove(filepath.Join(c.cfg.Dir, entry.Name())); err != nil {
			return fmt.Errorf("empty image cache dir: %w", err)
		}
	}
	return nil
}

// Load reads an image from the local cache. Any missing file is a cache
// miss, not an error; genuine I/O failures are logged and also reported as a
// miss so the read path falls back to the store.
func (c *ImageCache) Load(imageID string) (*models.Image, bool) {
	metaData, err := os.ReadFile(c.metaFilename(imageID))
	if err != nil {
		c.missOrError(imageID, err)
		return nil, false
	}

	var meta imageMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		c.log.WithFields(logrus.Fields{
			"imageId": imageID,
			"error":   err,
		}).Error("image cache meta corrupt")
		return nil, false
	}

	data, err := os.ReadFile(c.dataFilename(imageID))
	if err != nil {
		c.missOrError(imageID, err)
		return nil, false
	}

	c.log.WithField("imageId", imageID).Debug("image cache hit")
	return &models.Image{
		Iid:       meta.ID,
		Filename:  meta.Filename,
		Mimetype:  meta.Mimetype,
		Size:      meta.Size,
		Data:      data,
		CreatedAt: meta.Created,
	}, true
}

func (c *ImageCache) missOrError(imageID string, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		c.log.WithField("imageId", imageID).Debug("image cache miss")
		return
	}
	c.log.WithFields(logrus.Fields{
		"imageId": imageID,
		"error":   err,
	}).Error("image cache read failed")
}

// Save populates the local cache with an authoritative image: binary first,
// sidecar metadata second.
func (c *ImageCache) Save(image *models.Image) error {
	if err := os.WriteFile(c.dataFilename(image.Iid), image.Data, 0o644); err != nil {
		return fmt.Errorf("write image cache data: %w", err)
	}
	meta, err := json.Marshal(imageMeta{
		ID:       image.Iid,
		Created:  image.CreatedAt,
		Filename: image.Filename,
		Mimetype: image.Mimetype,
		Size:     image.Size,
	})
	if err != nil {
		return fmt.Errorf("encode image cache meta: %w", err)
	}
	if err := os.WriteFile(c.metaFilename(image.Iid), meta, 0o644); err != nil {
		return fmt.Errorf("write image cache meta: %w", err)
	}
	return nil
}

// Invalidate removes both cache files for an image. A file that is already
// gone counts as success.
func (c *ImageCache) Invalidate(imageID string) error {
	for _, filename := range []string{c.dataFilename(imageID), c.metaFilename(imageID)} {
		if err := os.Remove(filename); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove cache file %s: %w", filename, err)
		}
	}
	return nil
}

// Publish broadcasts an invalidation event after a store write commits.
// Every subscribed process, this one included, drops its local replica.
func (c *ImageCache) Publish(ctx context.Context, event, imageID string) error {
	payload, err := json.Marshal(ImageEvent{Event: event, ImageID: imageID})
	if err != nil {
		return fmt.Errorf("encode image event: %w", err)
	}
	if err := c.redis.Publish(ctx, c.cfg.Channel, payload).Err(); err != nil {
		return fmt.Errorf("publish image event: %w", err)
	}
	return nil
}

// Run subscribes to the image channel and applies invalidations until the
// context is canceled. Failures are logged and the subscription keeps going;
// invalidation handling never blocks request serving.
func (c *ImageCache) Run(ctx context.Context) {
	pubsub := c.redis.Subscribe(ctx, c.cfg.Channel)
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
			c.handleEvent(msg.Payload)
		}
	}
}

func (c *ImageCache) handleEvent(payload string) {
	var event ImageEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		c.log.WithFields(logrus.Fields{
			"payload": payload,
			"error":   err,
		}).Error("invalid image event")
		return
	}

	switch event.Event {
	case ImageEventCreate:
		// Nothing cached yet for a brand new image
		c.log.WithField("imageId", event.ImageID).Debug("image created")
	case ImageEventUpdate, ImageEventDelete:
		if err := c.Invalidate(event.ImageID); err != nil {
			c.log.WithFields(logrus.Fields{
				"imageId": event.ImageID,
				"error":   err,
			}).Error("image cache invalidation failed")
			return
		}
		c.log.WithField("imageId", event.ImageID).Debug("image removed from cache")
	default:
		c.log.WithFields(logrus.Fields{
			"event":   event.Event,
			"imageId": event.ImageID,
		}).Error("unknown image event")
	}
}

// RunSweeper expires stale cache files on a fixed interval until the context
// is canceled. The sweep bounds growth from images that are read but never
// invalidated.
func (c *ImageCache) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.CleanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ExpireFiles(); err != nil {
				c.log.WithField("error", err).Error("image cache sweep failed")
			}
		}
	}
}

// ExpireFiles stats every cache file sequentially and deletes those whose age
// has reached MaxAge. A file vanishing mid-sweep (concurrent invalidation) is
// tolerated and never fails the sweep.
func (c *ImageCache) ExpireFiles() error {
	entries, err := os.ReadDir(c.cfg.Dir)
	if err != nil {
		return fmt.Errorf("read image cache dir: %w", err)
	}

	for _, entry := range entries {
		filename := filepath.Join(c.cfg.Dir, entry.Name())
		info, err := os.Stat(filename)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			c.log.WithFields(logrus.Fields{
				"file":  entry.Name(),
				"error": err,
			}).Error("image cache stat failed")
			continue
		}
		if time.Since(info.ModTime()) < c.cfg.MaxAge {
			continue
		}
		c.log.WithField("file", entry.Name()).Debug("expiring image cache file")
		if err := os.Remove(filename); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.log.WithFields(logrus.Fields{
				"file":  entry.Name(),
				"error": err,
			}).Error("image cache expire failed")
		}
	}
	return nil
}
