// Package repos persists repository records into the repos table.
package repos

import (
	"context"
	"encoding/json"
	"errors"

	"prsmoke/pkg/storage"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultTable is the repos table name.
const DefaultTable = "repos"

// Store implements storage.RepoStore on top of GORM. The table schema is
// owned by the deployment; the store only writes this record shape.
type Store struct {
	db    *gorm.DB
	table string
}

type row struct {
	RepoName     string `gorm:"column:repo_name;size:255;not null;uniqueIndex:idx_repos_key"`
	RepoOwner    string `gorm:"column:repo_owner;size:255;not null;uniqueIndex:idx_repos_key"`
	RepoProvider string `gorm:"column:repo_provider;size:32;not null;uniqueIndex:idx_repos_key"`
	AuthInfo     string `gorm:"column:auth_info;type:text"`
	Metadata     string `gorm:"column:metadata;type:text"`
	GitURL       string `gorm:"column:git_url;type:text"`
}

// New returns a repos store bound to the shared connection.
func New(db *gorm.DB, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{db: db, table: table}
}

// Migrate creates the table when it does not exist yet. The deployed schema
// is managed externally; this exists for local and test databases.
func (s *Store) Migrate() error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	return s.tableDB().AutoMigrate(&row{})
}

// UpsertRepo inserts the record, overwriting auth_info, metadata, and
// git_url when a row with the same (repo_name, repo_owner, repo_provider)
// key already exists.
func (s *Store) UpsertRepo(ctx context.Context, record storage.RepoRecord) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if record.RepoName == "" || record.RepoOwner == "" || record.RepoProvider == "" {
		return errors.New("repo name, owner, and provider are required")
	}
	gitURL, err := json.Marshal(record.GitURLs)
	if err != nil {
		return err
	}

	data := row{
		RepoName:     record.RepoName,
		RepoOwner:    record.RepoOwner,
		RepoProvider: record.RepoProvider,
		AuthInfo:     record.AuthInfo,
		Metadata:     record.Metadata,
		GitURL:       string(gitURL),
	}
	return s.tableDB().
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "repo_name"}, {Name: "repo_owner"}, {Name: "repo_provider"}},
			DoUpdates: clause.AssignmentColumns([]string{"auth_info", "metadata", "git_url"}),
		}).
		Create(&data).Error
}

func (s *Store) tableDB() *gorm.DB {
	return s.db.Table(s.table)
}
