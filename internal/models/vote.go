package models

import (
	"time"
)

const (
	VoteUp   = "up"
	VoteDown = "down"
)

// Vote holds at most one row per (comment, user). A changed vote mutates the
// row in place; it is never duplicated.
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CommentID uint      `gorm:"not null;uniqueIndex:idx_vote_comment_user" json:"comment_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_vote_comment_user;index" json:"user_id"`
	Vote      string    `gorm:"size:4;not null" json:"vote"` // "up" or "down"
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
