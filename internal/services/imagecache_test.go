package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dissent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestImageCache(t *testing.T) *ImageCache {
	t.Helper()
	_, client := newTestRedis(t)
	return NewImageCache(ImageCacheConfig{
		Dir:           t.TempDir(),
		Channel:       "dissent-image",
		MaxAge:        time.Hour,
		CleanInterval: time.Hour,
	}, client, testLogger())
}

func testImage(iid string) *models.Image {
	return &models.Image{
		Iid:       iid,
		Filename:  "cat.png",
		Mimetype:  "image/png",
		Size:      4,
		Data:      []byte{0x89, 'P', 'N', 'G'},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestImageCacheSaveLoad(t *testing.T) {
	cache := newTestImageCache(t)
	require.NoError(t, cache.Init())

	stored := testImage("i1000001")
	require.NoError(t, cache.Save(stored))

	loaded, ok := cache.Load("i1000001")
	require.True(t, ok)
	assert.Equal(t, stored.Iid, loaded.Iid)
	assert.Equal(t, stored.Filename, loaded.Filename)
	assert.Equal(t, stored.Mimetype, loaded.Mimetype)
	assert.Equal(t, stored.Size, loaded.Size)
	assert.Equal(t, stored.Data, loaded.Data)
}

func TestImageCacheLoadMiss(t *testing.T) {
	cache := newTestImageCache(t)
	require.NoError(t, cache.Init())

	_, ok := cache.Load("nothere1")
	assert.False(t, ok)
}

func TestImageCacheMetaWithoutBinaryIsMiss(t *testing.T) {
	cache := newTestImageCache(t)
	require.NoError(t, cache.Init())

	require.NoError(t, cache.Save(testImage("i1000009")))
	require.NoError(t, os.Remove(filepath.Join(cache.cfg.Dir, "i1000009")))

	_, ok := cache.Load("i1000009")
	assert.False(t, ok)
}

func TestImageCacheCorruptMetaIsMiss(t *testing.T) {
	cache := newTestImageCache(t)
	require.NoError(t, cache.Init())

	require.NoError(t, os.WriteFile(filepath.Join(cache.cfg.Dir, "i1000002.json"), []byte("{broken"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cache.cfg.Dir, "i1000002"), []byte("data"), 0o644))

	_, ok := cache.Load("i1000002")
	assert.False(t, ok)
}

func TestImageCacheInitEmptiesDir(t *testing.T) {
	cache := newTestImageCache(t)
	require.NoError(t, cache.Init())
	require.NoError(t, cache.Save(testImage("i1000003")))

	require.NoError(t, cache.Init())

	entries, err := os.ReadDir(cache.cfg.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestImageCacheInvalidate(t *testing.T) {
	cache := newTestImageCache(t)
	require.NoError(t, cache.Init())
	require.NoError(t, cache.Save(testImage("i1000004")))

	require.NoError(t, cache.Invalidate("i1000004"))
	_, ok := cache.Load("i1000004")
	assert.False(t, ok)

	// Invalidating an absent entry succeeds
	require.NoError(t, cache.Invalidate("i1000004"))
}

func TestImageCacheUpdateEventInvalidates(t *testing.T) {
	cache := newTestImageCache(t)
	require.NoError(t, cache.Init())
	require.NoError(t, cache.Save(testImage("i1000005")))

	cache.handleEvent(`{"event":"image-update","imageId":"i1000005"}`)

	_, ok := cache.Load("i1000005")
	assert.False(t, ok)
}

func TestImageCacheCreateEventKeepsOthers(t *testing.T) {
	cache := newTestImageCache(t)
	require.NoError(t, cache.Init())
	require.NoError(t, cache.Save(testImage("i1000006")))

	cache.handleEvent(`{"event":"image-create","imageId":"i1000007"}`)
	cache.handleEvent(`not json at all`)

	_, ok := cache.Load("i1000006")
	assert.True(t, ok)
}

func TestImageCachePublishReachesSubscribers(t *testing.T) {
	mr, client := newTestRedis(t)
	dirA, dirB := t.TempDir(), t.TempDir()
	cacheA := NewImageCache(ImageCacheConfig{Dir: dirA, Channel: "dissent-image", MaxAge: time.Hour, CleanInterval: time.Hour}, client, testLogger())
	cacheB := NewImageCache(ImageCacheConfig{Dir: dirB, Channel: "dissent-image", MaxAge: time.Hour, CleanInterval: time.Hour}, client, testLogger())
	require.NoError(t, cacheA.Init())
	require.NoError(t, cacheB.Init())

	require.NoError(t, cacheA.Save(testImage("i1000008")))
	require.NoError(t, cacheB.Save(testImage("i1000008")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cacheA.Run(ctx)
	go cacheB.Run(ctx)

	// Wait until both subscriptions are registered; delete events for an
	// uncached id are harmless no-ops
	require.Eventually(t, func() bool {
		return mr.Publish("dissent-image", `{"event":"image-delete","imageId":"warmup01"}`) == 2
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, cacheA.Publish(ctx, ImageEventUpdate, "i1000008"))

	require.Eventually(t, func() bool {
		_, okA := cacheA.Load("i1000008")
		_, okB := cacheB.Load("i1000008")
		return !okA && !okB
	}, time.Second, 10*time.Millisecond)

	// The next read-miss repopulates from the authoritative copy; nothing
	// serves the superseded bytes
	replacement := testImage("i1000008")
	replacement.Data = []byte("fresh bytes")
	replacement.Size = int64(len(replacement.Data))
	require.NoError(t, cacheB.Save(replacement))

	reloaded, ok := cacheB.Load("i1000008")
	require.True(t, ok)
	assert.Equal(t, []byte("fresh bytes"), reloaded.Data)
	assert.Equal(t, replacement.Size, reloaded.Size)
}

func TestExpireFiles(t *testing.T) {
	cache := newTestImageCache(t)
	require.NoError(t, cache.Init())

	require.NoError(t, cache.Save(testImage("oldimg01")))
	require.NoError(t, cache.Save(testImage("newimg01")))

	stale := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(cache.cfg.Dir, "oldimg01"), stale, stale))
	require.NoError(t, os.Chtimes(filepath.Join(cache.cfg.Dir, "oldimg01.json"), stale, stale))

	require.NoError(t, cache.ExpireFiles())

	_, ok := cache.Load("oldimg01")
	assert.False(t, ok)
	_, ok = cache.Load("newimg01")
	assert.True(t, ok)
}

func TestExpireFilesAgeAtThreshold(t *testing.T) {
	cache := newTestImageCache(t)
	require.NoError(t, cache.Init())
	require.NoError(t, cache.Save(testImage("edgeimg1")))

	// Age exactly MaxAge counts as expired
	edge := time.Now().Add(-cache.cfg.MaxAge)
	require.NoError(t, os.Chtimes(filepath.Join(cache.cfg.Dir, "edgeimg1"), edge, edge))
	require.NoError(t, os.Chtimes(filepath.Join(cache.cfg.Dir, "edgeimg1.json"), edge, edge))

	require.NoError(t, cache.ExpireFiles())

	_, ok := cache.Load("edgeimg1")
	assert.False(t, ok)
}
