package storage

import "context"

// RepoRecord is one row of the repos table: the repository identity, its
// serialized auth bundle, provider metadata, and clone endpoints.
type RepoRecord struct {
	RepoName     string
	RepoOwner    string
	RepoProvider string
	AuthInfo     string
	Metadata     string
	GitURLs      []string
}

// HunkKey identifies the per-line review output row written by the
// downstream consumer for one pull request.
type HunkKey struct {
	ReviewID     int64
	RepoName     string
	RepoOwner    string
	RepoProvider string
}

// RepoStore persists repository records.
type RepoStore interface {
	UpsertRepo(ctx context.Context, record RepoRecord) error
}

// HunkStore reads review output produced by the downstream consumer.
type HunkStore interface {
	HasHunkInfo(ctx context.Context, key HunkKey) (bool, error)
}
