package services

import (
	"errors"
	"fmt"
	"time"

	"dissent/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// VoteService is the per-(comment, voter) vote ledger. Each pair moves
// through the states {no-vote, up, down}; every transition maps to one atomic
// multi-column increment on the comment's stats.
type VoteService struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewVoteService(conn *gorm.DB, log *logrus.Logger) *VoteService {
	return &VoteService{db: conn, log: log}
}

// Cast records a user's vote on a comment. Resubmitting the same vote is a
// complete no-op. Switching sides mutates the vote row in place and applies
// the double-strength transition delta. The returned comment mirrors the
// delta in memory for the immediate response; the persisted counters converge
// once the increment commits.
func (s *VoteService) Cast(commentCid string, userID uint, choice string) (*models.Comment, error) {
	if choice != models.VoteUp && choice != models.VoteDown {
		return nil, BadRequest("vote must be \"up\" or \"down\"")
	}

	var comment models.Comment
	if err := s.db.Where("cid = ?", commentCid).First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("The specified comment does not exist.")
		}
		return nil, fmt.Errorf("read comment %s: %w", commentCid, err)
	}

	var existing models.Vote
	err := s.db.Where("comment_id = ? AND user_id = ?", comment.ID, userID).First(&existing).Error
	hasVote := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("read vote: %w", err)
	}

	if hasVote && existing.Vote == choice {
		s.log.WithFields(logrus.Fields{
			"comment": commentCid,
			"user":    userID,
		}).Debug("vote is unchanged")
		return &comment, nil
	}

	var dScore, dUp, dDown int
	if hasVote {
		// Switching sides undoes the old vote and applies the new one
		if choice == models.VoteUp {
			dScore, dUp, dDown = 2, 1, -1
		} else {
			dScore, dUp, dDown = -2, -1, 1
		}
		if err := s.db.Model(&existing).UpdateColumns(map[string]interface{}{
			"vote":       choice,
			"updated_at": time.Now(),
		}).Error; err != nil {
			return nil, fmt.Errorf("update vote: %w", err)
		}
	} else {
		if choice == models.VoteUp {
			dScore, dUp, dDown = 1, 1, 0
		} else {
			dScore, dUp, dDown = -1, 0, 1
		}
		vote := models.Vote{
			CommentID: comment.ID,
			UserID:    userID,
			Vote:      choice,
		}
		if err := s.db.Create(&vote).Error; err != nil {
			return nil, fmt.Errorf("create vote: %w", err)
		}
	}

	if err := s.db.Model(&models.Comment{}).Where("id = ?", comment.ID).
		UpdateColumns(map[string]interface{}{
			"stats_score":          gorm.Expr("stats_score + ?", dScore),
			"stats_upvote_count":   gorm.Expr("stats_upvote_count + ?", dUp),
			"stats_downvote_count": gorm.Expr("stats_downvote_count + ?", dDown),
		}).Error; err != nil {
		return nil, fmt.Errorf("apply vote delta: %w", err)
	}

	comment.Stats.Score += dScore
	comment.Stats.UpvoteCount += dUp
	comment.Stats.DownvoteCount += dDown
	return &comment, nil
}
