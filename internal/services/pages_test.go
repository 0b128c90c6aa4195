package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	svc := NewPageService(nil, "dissent", testLogger())

	parsed, err := svc.ParseURL("https://News.Example.COM/story/123?utm_source=feed&ref=x")
	require.NoError(t, err)
	assert.Equal(t, "news.example.com", parsed.DomainName)
	assert.Equal(t, "/story/123", parsed.Pathname)

	parsed, err = svc.ParseURL("https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "/", parsed.Pathname)
}

func TestParseURLRejectsBadInput(t *testing.T) {
	svc := NewPageService(nil, "dissent", testLogger())

	for _, raw := range []string{"", "not a url at all\x7f", "ftp://example.com/file", "/relative/path"} {
		_, err := svc.ParseURL(raw)
		require.Error(t, err, raw)
		assert.Equal(t, 400, ErrorStatus(err), raw)
	}
}

func TestResolvePageCachesTitle(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `<html><head><title>  Big Story  </title></head><body><p>text</p></body></html>`)
	}))
	defer server.Close()

	_, client := newTestRedis(t)
	svc := NewPageService(client, "dissent", testLogger())
	ctx := context.Background()

	title, err := svc.ResolveTitle(ctx, server.URL+"/story")
	require.NoError(t, err)
	assert.Equal(t, "Big Story", title)

	title, err = svc.ResolveTitle(ctx, server.URL+"/story")
	require.NoError(t, err)
	assert.Equal(t, "Big Story", title)
	assert.EqualValues(t, 1, hits.Load())
}

func TestResolvePageEmptyTitleFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head></head><body>no title here</body></html>`)
	}))
	defer server.Close()

	_, client := newTestRedis(t)
	svc := NewPageService(client, "dissent", testLogger())

	sourceURL := server.URL + "/untitled"
	title, err := svc.ResolveTitle(context.Background(), sourceURL)
	require.NoError(t, err)
	assert.Equal(t, sourceURL, title)

	// The fallback is cached like any other title
	cached, err := client.Get(context.Background(), svc.titleCacheKey(sourceURL)).Result()
	require.NoError(t, err)
	assert.Equal(t, sourceURL, cached)
}

func TestResolvePageFetchErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	mr, client := newTestRedis(t)
	svc := NewPageService(client, "dissent", testLogger())

	_, err := svc.ResolveTitle(context.Background(), server.URL+"/broken")
	require.Error(t, err)
	assert.Empty(t, mr.Keys())
}
