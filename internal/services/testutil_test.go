package services

import (
	"fmt"
	"io"
	"testing"

	"dissent/internal/db"
	"dissent/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter int

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDBCounter++
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared&_busy_timeout=5000", testDBCounter)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps concurrent writers from tripping over
	// sqlite's whole-database write lock.
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(conn))
	return conn
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func seedUser(t *testing.T, conn *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "x",
	}
	require.NoError(t, conn.Create(user).Error)
	return user
}

func seedComment(t *testing.T, conn *gorm.DB, cid string, userID uint) *models.Comment {
	t.Helper()
	domain := &models.Domain{Domain: "seed-" + cid + ".example.com"}
	require.NoError(t, conn.Create(domain).Error)
	url := &models.Url{
		DomainID: domain.ID,
		Pathname: "/article",
		URL:      "https://" + domain.Domain + "/article",
		Title:    "An Article",
	}
	require.NoError(t, conn.Create(url).Error)
	comment := &models.Comment{
		Cid:      cid,
		UserID:   userID,
		DomainID: domain.ID,
		UrlID:    url.ID,
		Body:     "first!",
		Status:   models.CommentStatusPending,
	}
	require.NoError(t, conn.Create(comment).Error)
	return comment
}
