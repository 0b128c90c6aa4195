package models

import (
	"time"
)

type URLStats struct {
	Score         int `gorm:"column:stats_score;default:0;not null" json:"score"`
	CommentCount  int `gorm:"column:stats_comment_count;default:0;not null" json:"commentCount"`
	UpvoteCount   int `gorm:"column:stats_upvote_count;default:0;not null" json:"upvoteCount"`
	DownvoteCount int `gorm:"column:stats_downvote_count;default:0;not null" json:"downvoteCount"`
}

// Url is unique per (domain, pathname). Title comes from the title resolver,
// Content from the readability extractor; Content is large and is omitted
// from queries unless explicitly requested.
type Url struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	DomainID  uint      `gorm:"not null;index;uniqueIndex:idx_url_domain_pathname" json:"domain_id"`
	Domain    Domain    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"domain"`
	Pathname  string    `gorm:"not null;uniqueIndex:idx_url_domain_pathname" json:"pathname"`
	URL       string    `gorm:"not null;index" json:"url"`
	Title     string    `json:"title"`
	Content   string    `gorm:"type:text" json:"-"`
	Stats     URLStats  `gorm:"embedded" json:"stats"`
	CreatedAt time.Time `json:"created_at"`
}

// UrlMetaColumns lists every Url column except content.
const UrlMetaColumns = "id, domain_id, pathname, url, title, stats_score, stats_comment_count, stats_upvote_count, stats_downvote_count, created_at"
