package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dissent/internal/utils"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const titleCacheTTL = 15 * time.Minute

// ParsedURL is the normalized form of a commented-on URL
type ParsedURL struct {
	SourceURL  string
	DomainName string
	Pathname   string
}

// PageService resolves commented-on URLs: normalizing them, resolving their
// page titles through a shared Redis cache, and extracting readable content.
type PageService struct {
	client    *http.Client
	redis     *redis.Client
	prefix    string
	sanitizer *bluemonday.Policy
	log       *logrus.Logger
}

func NewPageService(redisClient *redis.Client, prefix string, log *logrus.Logger) *PageService {
	return &PageService{
		client: &http.Client{
			// Unbounded fetches waste a pending request slot
			Timeout: 10 * time.Second,
		},
		redis:     redisClient,
		prefix:    prefix,
		sanitizer: bluemonday.UGCPolicy(),
		log:       log,
	}
}

// ParseURL normalizes a source URL: hostname lowercased, utm_* tracking
// parameters stripped. The original string is kept for display.
func (s *PageService) ParseURL(sourceURL string) (*ParsedURL, error) {
	parsed, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil {
		return nil, BadRequest(fmt.Sprintf("invalid url: %v", err))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, BadRequest("url must be http or https")
	}
	if parsed.Hostname() == "" {
		return nil, BadRequest("url has no hostname")
	}

	query := parsed.Query()
	for key := range query {
		if strings.HasPrefix(key, "utm_") {
			query.Del(key)
		}
	}
	parsed.RawQuery = query.Encode()

	pathname := parsed.EscapedPath()
	if pathname == "" {
		pathname = "/"
	}

	return &ParsedURL{
		SourceURL:  sourceURL,
		DomainName: strings.ToLower(parsed.Hostname()),
		Pathname:   pathname,
	}, nil
}

func (s *PageService) titleCacheKey(sourceURL string) string {
	return fmt.Sprintf("%s:url:%s:title", s.prefix, utils.HashString(sourceURL))
}

// ResolveTitle resolves a URL to its page title, cache-aside with a 15 minute
// TTL. A page without a usable <title> resolves to the URL itself. Fetch
// failures propagate to the caller; there is no retry.
func (s *PageService) ResolveTitle(ctx context.Context, sourceURL string) (string, error) {
	title, _, err := s.ResolvePage(ctx, sourceURL)
	return title, err
}

// ResolvePage resolves a URL to its title and, on a cache miss, also extracts
// the readable page content. Content extraction is best effort; a cache hit
// returns the title alone.
func (s *PageService) ResolvePage(ctx context.Context, sourceURL string) (title, content string, err error) {
	cacheKey := s.titleCacheKey(sourceURL)
	title, err = s.redis.Get(ctx, cacheKey).Result()
	if err == nil {
		s.log.WithField("url", sourceURL).Debug("url title cache hit")
		return title, "", nil
	}
	if err != redis.Nil {
		return "", "", fmt.Errorf("title cache read: %w", err)
	}

	body, err := s.fetchPage(ctx, sourceURL)
	if err != nil {
		return "", "", err
	}

	title = extractTitle(body)
	if title == "" {
		title = sourceURL
	}

	if article, rerr := readability.FromReader(strings.NewReader(body), nil); rerr == nil {
		content = s.sanitizer.Sanitize(article.Content)
	} else {
		s.log.WithFields(logrus.Fields{
			"url":   sourceURL,
			"error": rerr,
		}).Debug("content extraction failed")
	}

	if err := s.redis.SetEx(ctx, cacheKey, title, titleCacheTTL).Err(); err != nil {
		return "", "", fmt.Errorf("title cache write: %w", err)
	}
	return title, content, nil
}

func (s *PageService) fetchPage(ctx context.Context, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: HTTP status %d", sourceURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return string(body), nil
}

func extractTitle(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
