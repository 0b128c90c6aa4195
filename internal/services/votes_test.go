package services

import (
	"fmt"
	"sync"
	"testing"

	"dissent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commentStats(t *testing.T, svc *VoteService, cid string) models.CommentStats {
	t.Helper()
	var comment models.Comment
	require.NoError(t, svc.db.Where("cid = ?", cid).First(&comment).Error)
	return comment.Stats
}

func TestCastFirstVote(t *testing.T) {
	conn := newTestDB(t)
	svc := NewVoteService(conn, testLogger())
	user := seedUser(t, conn, "alice")
	seedComment(t, conn, "c1000001", user.ID)

	comment, err := svc.Cast("c1000001", user.ID, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, models.CommentStats{Score: 1, UpvoteCount: 1}, comment.Stats)
	assert.Equal(t, models.CommentStats{Score: 1, UpvoteCount: 1}, commentStats(t, svc, "c1000001"))

	var votes []models.Vote
	require.NoError(t, conn.Find(&votes).Error)
	require.Len(t, votes, 1)
	assert.Equal(t, models.VoteUp, votes[0].Vote)
}

func TestCastDownvote(t *testing.T) {
	conn := newTestDB(t)
	svc := NewVoteService(conn, testLogger())
	user := seedUser(t, conn, "alice")
	seedComment(t, conn, "c1000002", user.ID)

	_, err := svc.Cast("c1000002", user.ID, models.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, models.CommentStats{Score: -1, DownvoteCount: 1}, commentStats(t, svc, "c1000002"))
}

func TestCastResubmitIsNoop(t *testing.T) {
	conn := newTestDB(t)
	svc := NewVoteService(conn, testLogger())
	user := seedUser(t, conn, "alice")
	seedComment(t, conn, "c1000003", user.ID)

	_, err := svc.Cast("c1000003", user.ID, models.VoteUp)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = svc.Cast("c1000003", user.ID, models.VoteUp)
		require.NoError(t, err)
	}

	assert.Equal(t, models.CommentStats{Score: 1, UpvoteCount: 1}, commentStats(t, svc, "c1000003"))

	var count int64
	require.NoError(t, conn.Model(&models.Vote{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCastSwitchSides(t *testing.T) {
	conn := newTestDB(t)
	svc := NewVoteService(conn, testLogger())
	user := seedUser(t, conn, "alice")
	seedComment(t, conn, "c1000004", user.ID)

	_, err := svc.Cast("c1000004", user.ID, models.VoteUp)
	require.NoError(t, err)
	_, err = svc.Cast("c1000004", user.ID, models.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, models.CommentStats{Score: -1, DownvoteCount: 1}, commentStats(t, svc, "c1000004"))

	_, err = svc.Cast("c1000004", user.ID, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, models.CommentStats{Score: 1, UpvoteCount: 1}, commentStats(t, svc, "c1000004"))

	// Still a single ledger row after all the flip-flopping
	var count int64
	require.NoError(t, conn.Model(&models.Vote{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCastManyVoters(t *testing.T) {
	conn := newTestDB(t)
	svc := NewVoteService(conn, testLogger())
	author := seedUser(t, conn, "author")
	seedComment(t, conn, "c1000005", author.ID)

	for i, choice := range []string{models.VoteUp, models.VoteUp, models.VoteDown, models.VoteUp} {
		voter := seedUser(t, conn, "voter"+string(rune('a'+i)))
		_, err := svc.Cast("c1000005", voter.ID, choice)
		require.NoError(t, err)
	}

	assert.Equal(t, models.CommentStats{Score: 2, UpvoteCount: 3, DownvoteCount: 1}, commentStats(t, svc, "c1000005"))
}

func TestCastConcurrentVotersConverge(t *testing.T) {
	conn := newTestDB(t)
	svc := NewVoteService(conn, testLogger())
	author := seedUser(t, conn, "author")
	seedComment(t, conn, "c1000007", author.ID)

	const upVoters, downVoters = 13, 7
	type ballot struct {
		userID uint
		choice string
	}
	ballots := make([]ballot, 0, upVoters+downVoters)
	for i := 0; i < upVoters+downVoters; i++ {
		voter := seedUser(t, conn, fmt.Sprintf("voter%02d", i))
		choice := models.VoteUp
		if i >= upVoters {
			choice = models.VoteDown
		}
		ballots = append(ballots, ballot{userID: voter.ID, choice: choice})
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(ballots))
	for _, b := range ballots {
		wg.Add(1)
		go func(b ballot) {
			defer wg.Done()
			if _, err := svc.Cast("c1000007", b.userID, b.choice); err != nil {
				errs <- err
			}
		}(b)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// Atomic deltas commute; the interleaving must not matter
	assert.Equal(t,
		models.CommentStats{Score: upVoters - downVoters, UpvoteCount: upVoters, DownvoteCount: downVoters},
		commentStats(t, svc, "c1000007"))

	var count int64
	require.NoError(t, conn.Model(&models.Vote{}).Count(&count).Error)
	assert.EqualValues(t, upVoters+downVoters, count)
}

func TestCastUnknownComment(t *testing.T) {
	conn := newTestDB(t)
	svc := NewVoteService(conn, testLogger())
	user := seedUser(t, conn, "alice")

	_, err := svc.Cast("missing1", user.ID, models.VoteUp)
	require.Error(t, err)
	assert.Equal(t, 404, ErrorStatus(err))
}

func TestCastInvalidChoice(t *testing.T) {
	conn := newTestDB(t)
	svc := NewVoteService(conn, testLogger())
	user := seedUser(t, conn, "alice")
	seedComment(t, conn, "c1000006", user.ID)

	_, err := svc.Cast("c1000006", user.ID, "sideways")
	require.Error(t, err)
	assert.Equal(t, 400, ErrorStatus(err))
	assert.Equal(t, models.CommentStats{}, commentStats(t, svc, "c1000006"))
}
