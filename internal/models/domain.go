package models

import (
	"time"
)

// DomainStats are denormalized rollups maintained with atomic increments,
// never read-modify-write.
type DomainStats struct {
	URLCount      int `gorm:"column:stats_url_count;default:0;not null" json:"urlCount"`
	Score         int `gorm:"column:stats_score;default:0;not null" json:"score"`
	CommentCount  int `gorm:"column:stats_comment_count;default:0;not null" json:"commentCount"`
	UpvoteCount   int `gorm:"column:stats_upvote_count;default:0;not null" json:"upvoteCount"`
	DownvoteCount int `gorm:"column:stats_downvote_count;default:0;not null" json:"downvoteCount"`
}

// Domain is created lazily on the first comment against a new hostname and
// never deleted.
type Domain struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	Domain    string      `gorm:"uniqueIndex;not null" json:"domain"`
	Stats     DomainStats `gorm:"embedded" json:"stats"`
	CreatedAt time.Time   `json:"created_at"`
}
