package models

import (
	"time"
)

const (
	CommentStatusPending  = "pending"
	CommentStatusError    = "error"
	CommentStatusComplete = "complete"
	CommentStatusDeleted  = "deleted"
)

type CommentStats struct {
	Score         int `gorm:"column:stats_score;default:0;not null" json:"score"`
	UpvoteCount   int `gorm:"column:stats_upvote_count;default:0;not null" json:"upvoteCount"`
	DownvoteCount int `gorm:"column:stats_downvote_count;default:0;not null" json:"downvoteCount"`
	ReplyCount    int `gorm:"column:stats_reply_count;default:0;not null" json:"replyCount"`
}

// Comment score has two contributions: vote transitions and reply shares.
// Both are applied as atomic deltas against the stats columns.
type Comment struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	Cid       string       `gorm:"uniqueIndex;size:8;not null" json:"cid"`
	UserID    uint         `gorm:"not null;index" json:"user_id"`
	User      User         `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	DomainID  uint         `gorm:"not null;index" json:"domain_id"`
	Domain    Domain       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"domain"`
	UrlID     uint         `gorm:"not null;index" json:"url_id"`
	Url       Url          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"url"`
	ParentID  *uint        `gorm:"index" json:"parent_id"` // Nullable for root comments
	Parent    *Comment     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Body      string       `gorm:"type:text;not null" json:"body"`
	Nsfw      bool         `gorm:"default:false;not null" json:"nsfw"`
	Status    string       `gorm:"size:10;default:'pending';not null;index" json:"status"`
	Stats     CommentStats `gorm:"embedded" json:"stats"`
	CreatedAt time.Time    `json:"created_at"`
}
