package hunks

import (
	"context"
	"path/filepath"
	"testing"

	"prsmoke/pkg/storage"

	"gorm.io/gorm"
)

func openTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	db, err := storage.Open(storage.Config{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "smoke.db"),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() {
		if err := storage.Close(db); err != nil {
			t.Errorf("close database: %v", err)
		}
	})

	store := New(db, "")
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store, db
}

// TestHasHunkInfoAbsent tests that zero matching rows is a regular false
// result, not an error.
func TestHasHunkInfoAbsent(t *testing.T) {
	store, _ := openTestStore(t)

	found, err := store.HasHunkInfo(context.Background(), storage.HunkKey{
		ReviewID:     42,
		RepoName:     "on-prem-bitbucket-test-repo",
		RepoOwner:    "alokit-innovations-test",
		RepoProvider: "bitbucket",
	})
	if err != nil {
		t.Fatalf("expected no error for empty table, got %v", err)
	}
	if found {
		t.Fatalf("expected no hunk info in empty table")
	}
}

// TestHasHunkInfoPresent tests that a row matching the exact composite key is
// found, and near-miss keys are not.
func TestHasHunkInfoPresent(t *testing.T) {
	store, db := openTestStore(t)
	ctx := context.Background()

	err := db.Table(DefaultTable).Create(map[string]interface{}{
		"review_id":     int64(42),
		"repo_name":     "on-prem-bitbucket-test-repo",
		"repo_owner":    "alokit-innovations-test",
		"repo_provider": "bitbucket",
		"hunk_info":     `{"hunks":[{"line":3}]}`,
	}).Error
	if err != nil {
		t.Fatalf("seed row: %v", err)
	}

	key := storage.HunkKey{
		ReviewID:     42,
		RepoName:     "on-prem-bitbucket-test-repo",
		RepoOwner:    "alokit-innovations-test",
		RepoProvider: "bitbucket",
	}
	found, err := store.HasHunkInfo(ctx, key)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !found {
		t.Fatalf("expected hunk info for exact key")
	}

	miss := key
	miss.ReviewID = 43
	found, err = store.HasHunkInfo(ctx, miss)
	if err != nil {
		t.Fatalf("lookup miss: %v", err)
	}
	if found {
		t.Fatalf("expected no hunk info for different review id")
	}

	miss = key
	miss.RepoProvider = "github"
	found, err = store.HasHunkInfo(ctx, miss)
	if err != nil {
		t.Fatalf("lookup miss: %v", err)
	}
	if found {
		t.Fatalf("expected no hunk info for different provider")
	}
}
