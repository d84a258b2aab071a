// Package hunks reads the per-line review output table populated by the
// downstream review consumer.
package hunks

import (
	"context"
	"errors"

	"prsmoke/pkg/storage"

	"gorm.io/gorm"
)

// DefaultTable is the hunks table name.
const DefaultTable = "hunks"

// Store implements storage.HunkStore on top of GORM.
type Store struct {
	db    *gorm.DB
	table string
}

type row struct {
	ReviewID     int64  `gorm:"column:review_id;not null"`
	RepoName     string `gorm:"column:repo_name;size:255;not null"`
	RepoOwner    string `gorm:"column:repo_owner;size:255;not null"`
	RepoProvider string `gorm:"column:repo_provider;size:32;not null"`
	HunkInfo     string `gorm:"column:hunk_info;type:text"`
}

// New returns a hunks store bound to the shared connection.
func New(db *gorm.DB, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{db: db, table: table}
}

// Migrate creates the table when it does not exist yet. The deployed schema
// is owned by the review consumer; this exists for local and test databases.
func (s *Store) Migrate() error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	return s.tableDB().AutoMigrate(&row{})
}

// HasHunkInfo reports whether the consumer has recorded review output for
// the key. Zero matching rows is a regular false result, not an error.
func (s *Store) HasHunkInfo(ctx context.Context, key storage.HunkKey) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("store is not initialized")
	}
	var count int64
	err := s.tableDB().
		WithContext(ctx).
		Where("review_id = ? AND repo_name = ? AND repo_owner = ? AND repo_provider = ?",
			key.ReviewID, key.RepoName, key.RepoOwner, key.RepoProvider).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) tableDB() *gorm.DB {
	return s.db.Table(s.table)
}
