package services

import (
	"fmt"
	"sync"

	"dissent/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatsService maintains the denormalized Domain -> Url -> Comment rollups.
// All counter mutations are atomic column increments so concurrent writers
// converge regardless of arrival order.
type StatsService struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewStatsService(conn *gorm.DB, log *logrus.Logger) *StatsService {
	return &StatsService{db: conn, log: log}
}

// EnsureDomain upserts a Domain by hostname and reads it back. The
// insert-then-read avoids duplicate-key races between concurrent first
// commenters on the same hostname.
func (s *StatsService) EnsureDomain(hostname string) (*models.Domain, error) {
	result := s.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "domain"}},
			DoNothing: true,
		}).
		Create(&models.Domain{Domain: hostname})
	if result.Error != nil {
		return nil, fmt.Errorf("upsert domain %s: %w", hostname, result.Error)
	}

	var domain models.Domain
	if err := s.db.Where("domain = ?", hostname).First(&domain).Error; err != nil {
		return nil, fmt.Errorf("read domain %s: %w", hostname, err)
	}
	return &domain, nil
}

// EnsureURL upserts a Url by its natural key (domain, pathname), refreshes
// the mutable fields, and reads the row back. A fresh insert also bumps the
// domain's urlCount rollup.
func (s *StatsService) EnsureURL(domain *models.Domain, pathname, sourceURL, title, content string) (*models.Url, error) {
	record := models.Url{
		DomainID: domain.ID,
		Pathname: pathname,
		URL:      sourceURL,
		Title:    title,
		Content:  content,
	}
	result := s.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "domain_id"}, {Name: "pathname"}},
			DoNothing: true,
		}).
		Create(&record)
	if result.Error != nil {
		return nil, fmt.Errorf("upsert url %s%s: %w", domain.Domain, pathname, result.Error)
	}

	if result.RowsAffected > 0 {
		if err := s.db.Model(&models.Domain{}).Where("id = ?", domain.ID).
			UpdateColumn("stats_url_count", gorm.Expr("stats_url_count + ?", 1)).Error; err != nil {
			s.log.WithFields(logrus.Fields{
				"domain": domain.Domain,
				"error":  err,
			}).Error("url count increment failed")
		}
	} else {
		// Row already existed; refresh title/url and keep any previously
		// extracted content unless we have a fresh copy.
		updates := map[string]interface{}{
			"url":   sourceURL,
			"title": title,
		}
		if content != "" {
			updates["content"] = content
		}
		if err := s.db.Model(&models.Url{}).
			Where("domain_id = ? AND pathname = ?", domain.ID, pathname).
			UpdateColumns(updates).Error; err != nil {
			return nil, fmt.Errorf("refresh url %s%s: %w", domain.Domain, pathname, err)
		}
	}

	var record2 models.Url
	if err := s.db.Select(models.UrlMetaColumns).
		Where("domain_id = ? AND pathname = ?", domain.ID, pathname).
		First(&record2).Error; err != nil {
		return nil, fmt.Errorf("read url %s%s: %w", domain.Domain, pathname, err)
	}
	return &record2, nil
}

// ApplyShareIncrements applies the three rollup increments for a shared
// reply: parent comment, url, and domain. The three documents are updated
// concurrently without a transaction; a partial failure is logged and
// accepted, never surfaced, because the reply itself already committed.
func (s *StatsService) ApplyShareIncrements(parentID, urlID, domainID uint) {
	var wg sync.WaitGroup
	run := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				s.log.WithFields(logrus.Fields{
					"target": name,
					"error":  err,
				}).Error("partial aggregate update failure")
			}
		}()
	}

	run("comment", func() error {
		return s.db.Model(&models.Comment{}).Where("id = ?", parentID).
			UpdateColumns(map[string]interface{}{
				"stats_score":       gorm.Expr("stats_score + ?", 1),
				"stats_reply_count": gorm.Expr("stats_reply_count + ?", 1),
			}).Error
	})
	run("url", func() error {
		return s.db.Model(&models.Url{}).Where("id = ?", urlID).
			UpdateColumns(map[string]interface{}{
				"stats_score":         gorm.Expr("stats_score + ?", 1),
				"stats_comment_count": gorm.Expr("stats_comment_count + ?", 1),
			}).Error
	})
	run("domain", func() error {
		return s.db.Model(&models.Domain{}).Where("id = ?", domainID).
			UpdateColumns(map[string]interface{}{
				"stats_score":         gorm.Expr("stats_score + ?", 1),
				"stats_comment_count": gorm.Expr("stats_comment_count + ?", 1),
			}).Error
	})

	wg.Wait()
}
