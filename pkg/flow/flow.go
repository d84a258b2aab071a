// Package flow drives one end-to-end smoke run: exercise the hosting
// provider's repository lifecycle, persist the repository record, deliver a
// simulated webhook, and verify the downstream consumer's output.
package flow

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"prsmoke/internal"
	"prsmoke/pkg/bitbucket"
	"prsmoke/pkg/oauth"
	"prsmoke/pkg/storage"
	"prsmoke/pkg/webhook"
)

// TokenSource acquires the OAuth bundle for the run.
type TokenSource func(ctx context.Context) (oauth.TokenBundle, error)

// API is the subset of the hosting provider client the flow drives.
type API interface {
	CreateRepository(ctx context.Context, workspace, repo string) (json.RawMessage, error)
	CreateBranch(ctx context.Context, workspace, repo, name, startRef string) error
	CommitFile(ctx context.Context, workspace, repo, branch, message, filename, content string) error
	OpenPullRequest(ctx context.Context, workspace, repo string, opts bitbucket.PullRequestOptions) (json.RawMessage, error)
	DeleteRepository(ctx context.Context, workspace, repo string) error
}

// Options carries the constants of one run.
type Options struct {
	Workspace         string
	RepoName          string
	Provider          string
	WebhookURL        string
	SourceBranch      string
	DestinationBranch string
	FileName          string
	FileContent       string
	CommitMessage     string
	PRTitle           string
	PRReason          string
	PollDelay         time.Duration
}

// Runner sequences the smoke flow with injected dependencies so tests can
// substitute stubs. Every step failure is logged with an operation-specific
// message and aborts the run; nothing is retried and remote state created
// before the failure is left as-is.
type Runner struct {
	Tokens    TokenSource
	NewAPI    func(accessToken string) API
	Repos     storage.RepoStore
	Hunks     storage.HunkStore
	Publisher internal.Publisher
	Logger    *log.Logger
	// Sleep defaults to time.Sleep.
	Sleep func(time.Duration)
	Opts  Options
}

// Run executes the sequence: token, create repository, raise PR (branch +
// commit + pull request), upsert repository record, deliver webhook, wait,
// check hunk output, delete repository. It returns the first step error.
func (r *Runner) Run(ctx context.Context) error {
	logger := r.logger()
	sleep := r.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	bundle, err := r.Tokens(ctx)
	if err != nil {
		logger.Printf("oauth token acquisition failed: %v", err)
		return err
	}
	api := r.NewAPI(bundle.AccessToken)

	repoRaw, err := api.CreateRepository(ctx, r.Opts.Workspace, r.Opts.RepoName)
	if err != nil {
		logger.Printf("create repository failed: %v", err)
		return err
	}
	logger.Printf("created repository %s/%s", r.Opts.Workspace, r.Opts.RepoName)

	prRaw, err := r.raisePR(ctx, api)
	if err != nil {
		return err
	}
	prID, err := bitbucket.PullRequestID(prRaw)
	if err != nil {
		logger.Printf("parse pull request response failed: %v", err)
		return err
	}
	logger.Printf("opened pull request %d", prID)

	// The record must exist before the webhook fires so the consumer can
	// correlate the event with it.
	if err := r.storeRepoRecord(ctx, bundle, repoRaw); err != nil {
		logger.Printf("store repository record failed: %v", err)
		return err
	}

	if err := webhook.Simulate(ctx, r.Publisher, r.Opts.WebhookURL, prRaw, repoRaw); err != nil {
		logger.Printf("webhook delivery failed: %v", err)
		return err
	}
	logger.Printf("delivered simulated webhook for pull request %d", prID)

	sleep(r.Opts.PollDelay)
	found, err := r.Hunks.HasHunkInfo(ctx, storage.HunkKey{
		ReviewID:     prID,
		RepoName:     r.Opts.RepoName,
		RepoOwner:    r.Opts.Workspace,
		RepoProvider: r.Opts.Provider,
	})
	if err != nil {
		logger.Printf("hunk info lookup failed: %v", err)
		return err
	}
	if found {
		logger.Printf("Hunk info is stored in the database.")
	} else {
		logger.Printf("no hunk info recorded for pull request %d", prID)
	}

	if err := api.DeleteRepository(ctx, r.Opts.Workspace, r.Opts.RepoName); err != nil {
		logger.Printf("delete repository failed: %v", err)
		return err
	}
	logger.Printf("deleted repository %s/%s", r.Opts.Workspace, r.Opts.RepoName)
	return nil
}

// raisePR creates the feature branch off the destination branch, commits the
// dummy file to it, and opens the pull request.
func (r *Runner) raisePR(ctx context.Context, api API) (json.RawMessage, error) {
	logger := r.logger()

	if err := api.CreateBranch(ctx, r.Opts.Workspace, r.Opts.RepoName, r.Opts.SourceBranch, r.Opts.DestinationBranch); err != nil {
		logger.Printf("create branch failed: %v", err)
		return nil, err
	}
	if err := api.CommitFile(ctx, r.Opts.Workspace, r.Opts.RepoName, r.Opts.SourceBranch, r.Opts.CommitMessage, r.Opts.FileName, r.Opts.FileContent); err != nil {
		logger.Printf("commit file failed: %v", err)
		return nil, err
	}
	prRaw, err := api.OpenPullRequest(ctx, r.Opts.Workspace, r.Opts.RepoName, bitbucket.PullRequestOptions{
		Title:             r.Opts.PRTitle,
		SourceBranch:      r.Opts.SourceBranch,
		DestinationBranch: r.Opts.DestinationBranch,
		CloseSourceBranch: true,
		Reason:            r.Opts.PRReason,
	})
	if err != nil {
		logger.Printf("open pull request failed: %v", err)
		return nil, err
	}
	return prRaw, nil
}

func (r *Runner) storeRepoRecord(ctx context.Context, bundle oauth.TokenBundle, repoRaw json.RawMessage) error {
	authInfo, err := bundle.AuthInfoJSON()
	if err != nil {
		return err
	}
	uuid, err := bitbucket.RepositoryUUID(repoRaw)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(map[string]string{"provider_repo_id": uuid})
	if err != nil {
		return err
	}
	cloneURLs, err := bitbucket.CloneURLs(repoRaw)
	if err != nil {
		return err
	}
	return r.Repos.UpsertRepo(ctx, storage.RepoRecord{
		RepoName:     r.Opts.RepoName,
		RepoOwner:    r.Opts.Workspace,
		RepoProvider: r.Opts.Provider,
		AuthInfo:     authInfo,
		Metadata:     string(metadata),
		GitURLs:      cloneURLs,
	})
}

func (r *Runner) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.Default()
}
